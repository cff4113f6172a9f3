// Package probe wraps the external media probing collaborators: stdlib and
// x/image decoders for image files, and the ffprobe/ffmpeg binaries for
// video metadata and frame extraction.
package probe

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/clipforge/medialib/internal/domain"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageInfo holds probed image metadata.
type ImageInfo struct {
	Width  int
	Height int
	Format string // decoder name: jpeg, png, gif, webp, bmp, tiff
}

// Image decodes only the header of the file at path.
func Image(path string) (*ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	return &ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// imageExts maps known image extensions to the decoder format they must
// probe as. An extension claiming one format over another format's bytes is
// an ingestion error.
var imageExts = map[string]string{
	"jpg":  "jpeg",
	"jpeg": "jpeg",
	"png":  "png",
	"gif":  "gif",
	"webp": "webp",
	"bmp":  "bmp",
	"tif":  "tiff",
	"tiff": "tiff",
}

var videoExts = map[string]bool{
	"mp4": true, "m4v": true, "mov": true, "webm": true,
	"mkv": true, "avi": true, "mpg": true, "mpeg": true, "ts": true,
}

// NormalizeExt lowercases and strips the leading dot from a path extension.
func NormalizeExt(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// KindForExt infers the asset kind from a file extension. Returns an empty
// kind for extensions the library does not handle.
func KindForExt(ext string) domain.AssetKind {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if _, ok := imageExts[ext]; ok {
		return domain.AssetKindImage
	}
	if videoExts[ext] {
		return domain.AssetKindVideo
	}
	return ""
}

// MatchImageExt reports whether ext is consistent with the probed decoder
// format.
func MatchImageExt(ext, format string) bool {
	want, ok := imageExts[strings.TrimPrefix(strings.ToLower(ext), ".")]
	return ok && want == format
}
