package probe

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/clipforge/medialib/internal/domain"
)

func TestNormalizeExt(t *testing.T) {
	testCases := []struct {
		path string
		want string
	}{
		{path: "photo.JPG", want: "jpg"},
		{path: "/a/b/clip.mp4", want: "mp4"},
		{path: "archive.tar.gz", want: "gz"},
		{path: "noext", want: ""},
	}
	for _, tc := range testCases {
		if got := NormalizeExt(tc.path); got != tc.want {
			t.Errorf("NormalizeExt(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestKindForExt(t *testing.T) {
	testCases := []struct {
		ext  string
		want domain.AssetKind
	}{
		{ext: "jpg", want: domain.AssetKindImage},
		{ext: "PNG", want: domain.AssetKindImage},
		{ext: "webp", want: domain.AssetKindImage},
		{ext: "mp4", want: domain.AssetKindVideo},
		{ext: "mkv", want: domain.AssetKindVideo},
		{ext: "txt", want: ""},
		{ext: "", want: ""},
	}
	for _, tc := range testCases {
		if got := KindForExt(tc.ext); got != tc.want {
			t.Errorf("KindForExt(%q) = %q, want %q", tc.ext, got, tc.want)
		}
	}
}

func TestMatchImageExt(t *testing.T) {
	testCases := []struct {
		ext    string
		format string
		want   bool
	}{
		{ext: "jpg", format: "jpeg", want: true},
		{ext: "jpeg", format: "jpeg", want: true},
		{ext: "png", format: "png", want: true},
		{ext: "tif", format: "tiff", want: true},
		{ext: "jpg", format: "png", want: false},
		{ext: "txt", format: "png", want: false},
	}
	for _, tc := range testCases {
		if got := MatchImageExt(tc.ext, tc.format); got != tc.want {
			t.Errorf("MatchImageExt(%q, %q) = %v, want %v", tc.ext, tc.format, got, tc.want)
		}
	}
}

func TestMatchVideoExt(t *testing.T) {
	testCases := []struct {
		ext       string
		container string
		want      bool
	}{
		// ffprobe reports comma-separated format lists.
		{ext: "mp4", container: "mov,mp4,m4a,3gp,3g2,mj2", want: true},
		{ext: "mov", container: "mov,mp4,m4a,3gp,3g2,mj2", want: true},
		{ext: "webm", container: "matroska,webm", want: true},
		{ext: "mkv", container: "matroska,webm", want: true},
		{ext: "avi", container: "avi", want: true},
		{ext: "mp4", container: "matroska,webm", want: false},
	}
	for _, tc := range testCases {
		if got := MatchVideoExt(tc.ext, tc.container); got != tc.want {
			t.Errorf("MatchVideoExt(%q, %q) = %v, want %v", tc.ext, tc.container, got, tc.want)
		}
	}
}

func TestImageProbesHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewNRGBA(image.Rect(0, 0, 20, 10))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	info, err := Image(path)
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if info.Width != 20 || info.Height != 10 {
		t.Errorf("dimensions = %dx%d, want 20x10", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("format = %s, want png", info.Format)
	}
}

func TestParseFrameRate(t *testing.T) {
	testCases := []struct {
		raw  string
		want float64
	}{
		{raw: "30/1", want: 30},
		{raw: "30000/1001", want: 29.97002997002997},
		{raw: "0/0", want: 0},
		{raw: "", want: 0},
		{raw: "garbage", want: 0},
	}
	for _, tc := range testCases {
		if got := parseFrameRate(tc.raw); got != tc.want {
			t.Errorf("parseFrameRate(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
