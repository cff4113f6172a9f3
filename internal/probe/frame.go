package probe

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// ExtractFrame pulls a single frame from the video at the given timestamp,
// decoded over an image2pipe stream. This is the primary extraction
// strategy; ExtractFrameToFile is the fallback invocation.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - path: video file.
//   - ts: timestamp to seek to.
//
// Returns:
//   - image.Image: decoded frame.
//   - error: non-nil if ffmpeg is missing, fails, or yields no frame.
func ExtractFrame(ctx context.Context, path string, ts time.Duration) (image.Image, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-ss", formatTimestamp(ts),
		"-i", path,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", path)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}

// ExtractFrameToFile is the fallback strategy: ffmpeg writes the frame to a
// temp file which is then decoded. Some containers that break the pipe
// path still work through the file muxer.
func ExtractFrameToFile(ctx context.Context, path string, ts time.Duration) (image.Image, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("medialib-frame-%d.jpg", time.Now().UnixNano()))
	defer os.Remove(tmp)

	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-ss", formatTimestamp(ts),
		"-i", path,
		"-vframes", "1",
		"-q:v", "2",
		"-y", tmp,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
	}

	f, err := os.Open(tmp)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg produced no output for %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode extracted frame: %w", err)
	}
	return img, nil
}

// formatTimestamp renders a duration as an ffmpeg -ss argument.
func formatTimestamp(ts time.Duration) string {
	if ts < 0 {
		ts = 0
	}
	return fmt.Sprintf("%.3f", ts.Seconds())
}
