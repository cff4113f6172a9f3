package service

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/clipforge/medialib/internal/domain"
	"github.com/clipforge/medialib/internal/logger"
	"github.com/clipforge/medialib/internal/probe"

	"github.com/disintegration/imaging"
)

const thumbJPEGQuality = 80

// ThumbnailConfig holds thumbnail pipeline settings.
type ThumbnailConfig struct {
	Width       int
	Async       bool
	Concurrency int
}

// ThumbJob is one queued thumbnail generation request. OnDone is invoked
// with the thumbnail path on success; failures are logged and dropped, the
// asset stays stored without a thumbnail.
type ThumbJob struct {
	Kind       domain.AssetKind
	SourcePath string
	SHA256     string
	DurationMs int64
	OnDone     func(thumbPath string)
}

// Thumbnailer produces fixed-width preview images, inline or through a
// bounded-concurrency background queue.
type Thumbnailer struct {
	store       *ContentStore
	log         *logger.Logger
	width       int
	async       bool
	concurrency int

	jobs      chan ThumbJob
	startOnce sync.Once
}

// NewThumbnailer creates a thumbnailer writing previews into the content
// store's thumbs tree.
func NewThumbnailer(store *ContentStore, log *logger.Logger, cfg *ThumbnailConfig) *Thumbnailer {
	width := cfg.Width
	if width <= 0 {
		width = 480
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	return &Thumbnailer{
		store:       store,
		log:         log,
		width:       width,
		async:       cfg.Async,
		concurrency: concurrency,
		jobs:        make(chan ThumbJob, 256),
	}
}

// Async reports whether the queue mode is enabled.
func (t *Thumbnailer) Async() bool {
	return t.async
}

// Enqueue pushes a job onto the background queue, starting the drain
// workers on first use. Drops the job with a warning when the queue is
// saturated; the thumbnail will be repaired on the asset's next touch.
func (t *Thumbnailer) Enqueue(job ThumbJob) {
	t.startOnce.Do(func() {
		for i := 0; i < t.concurrency; i++ {
			go t.worker()
		}
	})
	select {
	case t.jobs <- job:
	default:
		t.log.WithFields(logger.Fields{
			logger.FieldAssetID: job.SHA256,
			logger.FieldKind:    string(job.Kind),
		}).Warn("Thumbnail queue full, dropping job")
	}
}

func (t *Thumbnailer) worker() {
	for job := range t.jobs {
		thumbPath, err := t.Generate(context.Background(), job.Kind, job.SourcePath, job.SHA256, job.DurationMs)
		if err != nil {
			t.log.WithFields(logger.Fields{
				logger.FieldKind: string(job.Kind),
				"source":         job.SourcePath,
			}).WithError(err).Warn("Background thumbnail generation failed")
			continue
		}
		if job.OnDone != nil {
			job.OnDone(thumbPath)
		}
	}
}

// Generate produces the preview for a stored original and returns its path.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - kind: asset kind selecting the strategy.
//   - src: stored original path.
//   - sha256Hex: stored hash, keys the thumbnail shard.
//   - durationMs: video duration, ignored for images.
//
// Returns:
//   - string: thumbnail path.
//   - error: non-nil when every strategy failed.
func (t *Thumbnailer) Generate(ctx context.Context, kind domain.AssetKind, src, sha256Hex string, durationMs int64) (string, error) {
	var (
		thumb *image.NRGBA
		err   error
	)
	switch kind {
	case domain.AssetKindImage:
		thumb, err = t.imageThumb(src)
	case domain.AssetKindVideo:
		thumb, err = t.videoThumb(ctx, src, durationMs)
	default:
		return "", fmt.Errorf("unsupported asset kind: %s", kind)
	}
	if err != nil {
		return "", err
	}

	dst := t.store.ThumbPath(kind, sha256Hex)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("failed to create thumb shard directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create thumbnail file: %w", err)
	}
	if err := jpeg.Encode(out, thumb, &jpeg.Options{Quality: thumbJPEGQuality}); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", err
	}
	return dst, nil
}

// imageThumb resizes fit-inside to the thumbnail width without upscaling.
func (t *Thumbnailer) imageThumb(src string) (*image.NRGBA, error) {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	if img.Bounds().Dx() <= t.width {
		return imaging.Clone(img), nil
	}
	return imaging.Resize(img, t.width, 0, imaging.Lanczos), nil
}

// videoThumb extracts a frame around one second in (midpoint for very
// short clips), retrying at the midpoint and then through the file-output
// fallback, and letterboxes it onto a 16:9 canvas.
func (t *Thumbnailer) videoThumb(ctx context.Context, src string, durationMs int64) (*image.NRGBA, error) {
	ts := time.Second
	mid := time.Duration(durationMs/2) * time.Millisecond
	if durationMs > 0 && durationMs < 2000 {
		ts = mid
	}

	frame, err := probe.ExtractFrame(ctx, src, ts)
	if err != nil && mid != ts {
		frame, err = probe.ExtractFrame(ctx, src, mid)
	}
	if err != nil {
		frame, err = probe.ExtractFrameToFile(ctx, src, ts)
	}
	if err != nil {
		return nil, fmt.Errorf("all frame extraction strategies failed: %w", err)
	}

	height := t.width * 9 / 16
	canvas := imaging.New(t.width, height, color.NRGBA{0, 0, 0, 255})
	fitted := imaging.Fit(frame, t.width, height, imaging.Lanczos)
	return imaging.PasteCenter(canvas, fitted), nil
}
