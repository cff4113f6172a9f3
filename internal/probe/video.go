package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// VideoInfo holds probed video metadata.
type VideoInfo struct {
	Width      int
	Height     int
	DurationMs int64
	FPS        float64
	VideoCodec string
	AudioCodec string
	Bitrate    int64
	HasAudio   bool
	Container  string // ffprobe format_name, e.g. "mov,mp4,m4a,3gp,3g2,mj2"
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

// Video runs ffprobe against the file at path and parses its JSON output.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - path: video file to probe.
//
// Returns:
//   - *VideoInfo: stream and container metadata.
//   - error: non-nil if ffprobe is missing, fails, or reports no video stream.
func Video(ctx context.Context, path string) (*VideoInfo, error) {
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %v, stderr: %s", err, stderr.String())
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{Container: out.Format.FormatName}

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = s.CodecName
				info.Width = s.Width
				info.Height = s.Height
				info.FPS = parseFrameRate(s.RFrameRate)
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
				info.HasAudio = true
			}
		}
	}

	if info.VideoCodec == "" {
		return nil, fmt.Errorf("no video stream in %s", path)
	}

	if sec, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		info.DurationMs = int64(sec * 1000)
	}
	if br, err := strconv.ParseInt(out.Format.BitRate, 10, 64); err == nil {
		info.Bitrate = br
	}

	return info, nil
}

// parseFrameRate converts ffprobe's rational frame rate ("30000/1001") to a float.
func parseFrameRate(r string) float64 {
	parts := strings.SplitN(r, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// containerExts maps video extensions to a substring the ffprobe
// format_name must contain for the extension to be considered truthful.
var containerExts = map[string]string{
	"mp4":  "mp4",
	"m4v":  "mp4",
	"mov":  "mp4", // mov shares the mp4 demuxer family
	"webm": "matroska",
	"mkv":  "matroska",
	"avi":  "avi",
	"mpg":  "mpeg",
	"mpeg": "mpeg",
	"ts":   "mpegts",
}

// MatchVideoExt reports whether ext is consistent with the probed container.
func MatchVideoExt(ext, container string) bool {
	want, ok := containerExts[strings.TrimPrefix(strings.ToLower(ext), ".")]
	if !ok {
		return false
	}
	return strings.Contains(container, want)
}
