package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/clipforge/medialib/internal/config"
	"github.com/clipforge/medialib/internal/domain"
	"github.com/clipforge/medialib/internal/logger"
	"github.com/clipforge/medialib/internal/repository"
	"github.com/clipforge/medialib/internal/storage"

	"gorm.io/gorm"
)

// LibraryStats is a point-in-time summary of library contents and budget.
type LibraryStats struct {
	Images      int64 `json:"images"`
	Videos      int64 `json:"videos"`
	UsageBytes  int64 `json:"usage_bytes"`
	BudgetBytes int64 `json:"budget_bytes"`
}

// Library is the public facade over the media library.
//
// The first call to EnsureAvailable (or any operation, which calls it
// internally) connects the metadata store and verifies the on-disk layout.
// After Dispose the instance must not be reused.
type Library struct {
	cfg *config.Config
	log *logger.Logger

	mu    sync.Mutex
	ready bool

	db      *gorm.DB
	images  *repository.ImageRepository
	videos  *repository.VideoRepository
	runs    *repository.GCRunRepository
	vectors *repository.VectorRepository

	ingest *IngestService
	search *SearchService
	gc     *GCService
}

// NewLibrary creates an unconnected library facade. No I/O happens until
// the first operation.
func NewLibrary(cfg *config.Config, log *logger.Logger) *Library {
	return &Library{cfg: cfg, log: log}
}

// EnsureAvailable connects the metadata store, verifies the directory
// layout, and wires the services. Idempotent; safe to call before every
// operation.
func (l *Library) EnsureAvailable(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready {
		return nil
	}

	store := NewContentStore(l.cfg.Library.Root)
	if err := store.EnsureLayout(); err != nil {
		return fmt.Errorf("library root is not usable: %w", err)
	}

	db, err := repository.InitDB(&l.cfg.Database)
	if err != nil {
		return fmt.Errorf("metadata store unavailable: %w", err)
	}
	l.db = db
	l.images = repository.NewImageRepository(db)
	l.videos = repository.NewVideoRepository(db)
	l.runs = repository.NewGCRunRepository(db)

	embedder := NewEmbedder(l.cfg.Semantic.Dimensions)

	useVectorIndex := l.cfg.Semantic.Enabled && l.cfg.Semantic.Index == "qdrant"
	if useVectorIndex {
		vectors, err := repository.NewVectorRepository(&repository.VectorConnectionConfig{
			Host:            l.cfg.Qdrant.Host,
			Port:            l.cfg.Qdrant.Port,
			Collection:      l.cfg.Qdrant.Collection,
			APIKey:          l.cfg.Qdrant.APIKey,
			UseTLS:          l.cfg.Qdrant.UseTLS,
			VectorDimension: embedder.Dimensions(),
		})
		if err != nil {
			return fmt.Errorf("vector index unavailable: %w", err)
		}
		if err := vectors.EnsureCollection(ctx); err != nil {
			return fmt.Errorf("vector index unavailable: %w", err)
		}
		l.vectors = vectors
	}

	archive, err := storage.NewArchive(&l.cfg.Archive)
	if err != nil {
		return fmt.Errorf("archive backend unavailable: %w", err)
	}

	thumbs := NewThumbnailer(store, l.log, &ThumbnailConfig{
		Width:       l.cfg.Thumbs.Width,
		Async:       l.cfg.Thumbs.Async,
		Concurrency: l.cfg.Thumbs.Concurrency,
	})

	l.gc = NewGCService(l.images, l.videos, l.runs, l.vectors, store, archive, l.log, l.cfg.Library.Budget())
	l.ingest = NewIngestService(IngestDeps{
		Images:   l.images,
		Videos:   l.videos,
		Vectors:  l.vectors,
		Store:    store,
		Thumbs:   thumbs,
		Embedder: embedder,
		Budget:   l.gc,
		Log:      l.log,
		Optimize: OptimizeOptions{
			Enabled:           l.cfg.Optimize.Enabled,
			MinSavingsPercent: l.cfg.Optimize.MinSavingsPercent,
		},
	})
	l.search = NewSearchService(l.images, l.videos, l.vectors, embedder, l.log, SemanticOptions{
		Enabled:        l.cfg.Semantic.Enabled,
		Threshold:      l.cfg.Semantic.Threshold,
		CandidateLimit: l.cfg.Semantic.CandidateLimit,
		UseVectorIndex: useVectorIndex,
	})

	l.ready = true
	l.log.WithField("root", store.Root()).Info("Media library ready")
	return nil
}

// Dispose releases the metadata store and vector index connections. The
// instance must not be used afterwards.
func (l *Library) Dispose() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ready {
		return nil
	}
	l.ready = false

	if l.vectors != nil {
		if err := l.vectors.Close(); err != nil {
			l.log.WithError(err).Warn("Failed to close vector index connection")
		}
	}

	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IngestImage stores one image file. See IngestService.IngestImage.
func (l *Library) IngestImage(ctx context.Context, sourcePath string, tags []string, opts IngestOptions) (*domain.ImageAsset, error) {
	if err := l.EnsureAvailable(ctx); err != nil {
		return nil, err
	}
	return l.ingest.IngestImage(ctx, sourcePath, tags, opts)
}

// IngestVideo stores one video file. See IngestService.IngestVideo.
func (l *Library) IngestVideo(ctx context.Context, sourcePath string, tags []string, opts IngestOptions) (*domain.VideoAsset, error) {
	if err := l.EnsureAvailable(ctx); err != nil {
		return nil, err
	}
	return l.ingest.IngestVideo(ctx, sourcePath, tags, opts)
}

// IngestDownloaded stores a local file, dispatching on its extension.
func (l *Library) IngestDownloaded(ctx context.Context, sourcePath string, tags []string, opts IngestOptions) (*domain.ImageAsset, *domain.VideoAsset, error) {
	if err := l.EnsureAvailable(ctx); err != nil {
		return nil, nil, err
	}
	return l.ingest.IngestDownloaded(ctx, sourcePath, tags, opts)
}

// IngestRemote downloads a URL and stores it.
func (l *Library) IngestRemote(ctx context.Context, rawURL string, tags []string, opts IngestOptions) (*domain.ImageAsset, *domain.VideoAsset, error) {
	if err := l.EnsureAvailable(ctx); err != nil {
		return nil, nil, err
	}
	return l.ingest.IngestRemote(ctx, rawURL, tags, opts)
}

// SearchImages returns ranked image hits for the query tags.
func (l *Library) SearchImages(ctx context.Context, tags []string, opts SearchOptions) ([]ScoredImage, error) {
	if err := l.EnsureAvailable(ctx); err != nil {
		return nil, err
	}
	return l.search.SearchImages(ctx, tags, opts)
}

// SearchVideos returns ranked video hits for the query tags.
func (l *Library) SearchVideos(ctx context.Context, tags []string, opts SearchOptions) ([]ScoredVideo, error) {
	if err := l.EnsureAvailable(ctx); err != nil {
		return nil, err
	}
	return l.search.SearchVideos(ctx, tags, opts)
}

// GetImage fetches one image row with its tags.
func (l *Library) GetImage(ctx context.Context, id string) (*domain.ImageAsset, error) {
	if err := l.EnsureAvailable(ctx); err != nil {
		return nil, err
	}
	return l.images.GetByID(ctx, id)
}

// GetVideo fetches one video row with its tags.
func (l *Library) GetVideo(ctx context.Context, id string) (*domain.VideoAsset, error) {
	if err := l.EnsureAvailable(ctx); err != nil {
		return nil, err
	}
	return l.videos.GetByID(ctx, id)
}

// MarkUsed advances last_used_at for the given assets, shielding them from
// LRU eviction.
func (l *Library) MarkUsed(ctx context.Context, kind domain.AssetKind, ids []string) error {
	if err := l.EnsureAvailable(ctx); err != nil {
		return err
	}
	now := time.Now().UTC()
	switch kind {
	case domain.AssetKindImage:
		return l.images.MarkUsed(ctx, ids, now)
	case domain.AssetKindVideo:
		return l.videos.MarkUsed(ctx, ids, now)
	default:
		return fmt.Errorf("unknown asset kind: %s", kind)
	}
}

// GarbageCollect runs one eviction pass. See GCService.GarbageCollect.
func (l *Library) GarbageCollect(ctx context.Context, opts GCOptions) (*GCResult, error) {
	if err := l.EnsureAvailable(ctx); err != nil {
		return nil, err
	}
	return l.gc.GarbageCollect(ctx, opts)
}

// Stats reports asset counts, current usage, and the configured budget.
func (l *Library) Stats(ctx context.Context) (*LibraryStats, error) {
	if err := l.EnsureAvailable(ctx); err != nil {
		return nil, err
	}
	images, err := l.images.Count(ctx)
	if err != nil {
		return nil, err
	}
	videos, err := l.videos.Count(ctx)
	if err != nil {
		return nil, err
	}
	usage, err := l.gc.Usage(ctx)
	if err != nil {
		return nil, err
	}
	return &LibraryStats{
		Images:      images,
		Videos:      videos,
		UsageBytes:  usage,
		BudgetBytes: l.gc.BudgetBytes(),
	}, nil
}

// GCRuns returns the most recent garbage-collection run records.
func (l *Library) GCRuns(ctx context.Context, limit int) ([]domain.GCRun, error) {
	if err := l.EnsureAvailable(ctx); err != nil {
		return nil, err
	}
	return l.runs.Recent(ctx, limit)
}
