package service

import (
	"context"
	"image"
	"os"
	"testing"
	"time"

	"github.com/clipforge/medialib/internal/domain"
)

func newTestThumbnailer(t *testing.T, cfg *ThumbnailConfig) (*Thumbnailer, *ContentStore) {
	t.Helper()
	store := NewContentStore(t.TempDir())
	if err := store.EnsureLayout(); err != nil {
		t.Fatal(err)
	}
	return NewThumbnailer(store, testLogger(), cfg), store
}

func thumbDimensions(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("thumbnail missing: %v", err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("thumbnail unreadable: %v", err)
	}
	return cfg.Width, cfg.Height
}

func TestGenerateImageThumbnailResizes(t *testing.T) {
	thumbs, _ := newTestThumbnailer(t, &ThumbnailConfig{Width: 64})
	src := writeTestPNG(t, t.TempDir(), "wide.png", 256, 128, 1)

	path, err := thumbs.Generate(context.Background(), domain.AssetKindImage, src, "aa"+make64("1"), 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	w, h := thumbDimensions(t, path)
	if w != 64 {
		t.Errorf("thumb width = %d, want 64", w)
	}
	if h != 32 {
		t.Errorf("thumb height = %d, want 32 (aspect preserved)", h)
	}
}

func TestGenerateImageThumbnailNoUpscale(t *testing.T) {
	thumbs, _ := newTestThumbnailer(t, &ThumbnailConfig{Width: 480})
	src := writeTestPNG(t, t.TempDir(), "small.png", 32, 24, 2)

	path, err := thumbs.Generate(context.Background(), domain.AssetKindImage, src, "bb"+make64("2"), 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	w, h := thumbDimensions(t, path)
	if w != 32 || h != 24 {
		t.Errorf("small image upscaled to %dx%d, want 32x24", w, h)
	}
}

func TestGenerateRejectsUnknownKind(t *testing.T) {
	thumbs, _ := newTestThumbnailer(t, &ThumbnailConfig{Width: 64})
	if _, err := thumbs.Generate(context.Background(), domain.AssetKind("audio"), "x", "y", 0); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestEnqueueDrainsJobs(t *testing.T) {
	thumbs, _ := newTestThumbnailer(t, &ThumbnailConfig{Width: 32, Async: true, Concurrency: 2})
	src := writeTestPNG(t, t.TempDir(), "queued.png", 64, 64, 3)

	done := make(chan string, 1)
	thumbs.Enqueue(ThumbJob{
		Kind:       domain.AssetKindImage,
		SourcePath: src,
		SHA256:     "cc" + make64("3"),
		OnDone:     func(p string) { done <- p },
	})

	select {
	case path := <-done:
		if _, err := os.Stat(path); err != nil {
			t.Errorf("queued thumbnail not written: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("queued thumbnail job never completed")
	}
}

func TestEnqueueFailedJobSkipsCallback(t *testing.T) {
	thumbs, _ := newTestThumbnailer(t, &ThumbnailConfig{Width: 32, Async: true, Concurrency: 1})

	failed := make(chan string, 1)
	thumbs.Enqueue(ThumbJob{
		Kind:       domain.AssetKindImage,
		SourcePath: "/nonexistent/broken.png",
		SHA256:     "dd" + make64("4"),
		OnDone:     func(p string) { failed <- p },
	})

	// Give the worker time to fail; the callback must never fire.
	select {
	case p := <-failed:
		t.Fatalf("callback fired for failed job: %s", p)
	case <-time.After(500 * time.Millisecond):
	}
}

// make64 pads a seed out to a 62-char suffix so sha arguments have
// realistic length.
func make64(seed string) string {
	out := seed
	for len(out) < 62 {
		out += "0"
	}
	return out
}
