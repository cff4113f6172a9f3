package service

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clipforge/medialib/internal/config"
	"github.com/clipforge/medialib/internal/logger"
	"github.com/clipforge/medialib/internal/repository"

	"gorm.io/gorm"
)

// testLogger returns a quiet logger for tests.
func testLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error", Format: "text", Output: io.Discard, ServiceName: "test"})
}

// testDB opens a throwaway SQLite database with migrations applied.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:          "sqlite",
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxIdleConns:    1,
		MaxOpenConns:    1,
		ConnMaxLifetime: time.Hour,
		AutoMigrate:     true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

// testEnv wires the service stack against a throwaway database and
// library root, with synchronous thumbnails and no vector index.
type testEnv struct {
	images *repository.ImageRepository
	videos *repository.VideoRepository
	runs   *repository.GCRunRepository
	store  *ContentStore
	thumbs *Thumbnailer
	gc     *GCService
	ingest *IngestService
	search *SearchService
}

func newTestEnv(t *testing.T, budgetBytes int64) *testEnv {
	t.Helper()
	db := testDB(t)
	log := testLogger()

	store := NewContentStore(t.TempDir())
	if err := store.EnsureLayout(); err != nil {
		t.Fatalf("failed to create library layout: %v", err)
	}

	env := &testEnv{
		images: repository.NewImageRepository(db),
		videos: repository.NewVideoRepository(db),
		runs:   repository.NewGCRunRepository(db),
		store:  store,
	}
	env.thumbs = NewThumbnailer(store, log, &ThumbnailConfig{Width: 64, Async: false, Concurrency: 1})
	env.gc = NewGCService(env.images, env.videos, env.runs, nil, store, nil, log, budgetBytes)
	env.ingest = NewIngestService(IngestDeps{
		Images:   env.images,
		Videos:   env.videos,
		Store:    store,
		Thumbs:   env.thumbs,
		Embedder: NewEmbedder(64),
		Budget:   env.gc,
		Log:      log,
	})
	env.search = NewSearchService(env.images, env.videos, nil, NewEmbedder(64), log, SemanticOptions{
		Enabled:        true,
		Threshold:      0.35,
		CandidateLimit: 100,
	})
	return env
}

// writeTestPNG writes a solid-color PNG and returns its path. Color varies
// with the seed so different seeds produce different bytes and hashes.
func writeTestPNG(t *testing.T, dir, name string, width, height int, seed uint8) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: seed, G: uint8(x % 256), B: uint8(y % 256), A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create test image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return path
}

func mustUsage(t *testing.T, gc *GCService) int64 {
	t.Helper()
	usage, err := gc.Usage(context.Background())
	if err != nil {
		t.Fatalf("failed to compute usage: %v", err)
	}
	return usage
}
