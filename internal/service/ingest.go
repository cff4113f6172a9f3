package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/clipforge/medialib/internal/domain"
	"github.com/clipforge/medialib/internal/logger"
	"github.com/clipforge/medialib/internal/probe"
	"github.com/clipforge/medialib/internal/repository"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// budgetGuard is the slice of the garbage collector that ingestion needs:
// a pre-write admission check against the storage budget.
type budgetGuard interface {
	EnsureWithinBudget(ctx context.Context, additionalBytes int64) error
}

// OptimizeOptions controls the optional lossless re-encode step for image
// ingestion.
type OptimizeOptions struct {
	Enabled           bool
	MinSavingsPercent float64
}

// IngestOptions carries per-call metadata about where a file came from.
type IngestOptions struct {
	Provider  string
	SourceURL string
}

// IngestDeps bundles the collaborators of the ingestion service.
type IngestDeps struct {
	Images   *repository.ImageRepository
	Videos   *repository.VideoRepository
	Vectors  *repository.VectorRepository
	Store    *ContentStore
	Thumbs   *Thumbnailer
	Embedder *Embedder
	Budget   budgetGuard
	HTTP     *resty.Client
	Log      *logger.Logger
	Optimize OptimizeOptions
}

// IngestService moves source files into the content-addressed library.
//
// Deduplication keys on the hash of the source bytes as handed in, not on
// the stored bytes, so a file re-ingested after a lossless re-encode still
// resolves to its existing row. Re-ingesting an existing asset merges tags,
// refreshes last_used_at, and repairs any missing file or thumbnail.
type IngestService struct {
	images   *repository.ImageRepository
	videos   *repository.VideoRepository
	vectors  *repository.VectorRepository
	store    *ContentStore
	thumbs   *Thumbnailer
	embedder *Embedder
	budget   budgetGuard
	http     *resty.Client
	log      *logger.Logger
	optimize OptimizeOptions

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewIngestService creates an ingestion service from its dependency bundle.
func NewIngestService(deps IngestDeps) *IngestService {
	httpClient := deps.HTTP
	if httpClient == nil {
		httpClient = resty.New().SetTimeout(2 * time.Minute)
	}
	return &IngestService{
		images:   deps.Images,
		videos:   deps.Videos,
		vectors:  deps.Vectors,
		store:    deps.Store,
		thumbs:   deps.Thumbs,
		embedder: deps.Embedder,
		budget:   deps.Budget,
		http:     httpClient,
		log:      deps.Log,
		optimize: deps.Optimize,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockHash serializes ingestion per source hash so two concurrent calls
// with identical bytes cannot both take the insert path. The unique index
// on original_sha256 backstops collisions across processes.
func (s *IngestService) lockHash(hash string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[hash]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[hash] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// IngestDownloaded ingests a local file, dispatching on its extension.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - sourcePath: file to ingest; the caller keeps ownership of it.
//   - tags: raw tags, normalized before use.
//   - opts: provenance metadata.
//
// Returns:
//   - *domain.ImageAsset: the image row when the file is an image.
//   - *domain.VideoAsset: the video row when the file is a video.
//   - error: ErrUnsupportedExt, ErrNoTags, ErrQuotaExceeded, or an I/O error.
func (s *IngestService) IngestDownloaded(ctx context.Context, sourcePath string, tags []string, opts IngestOptions) (*domain.ImageAsset, *domain.VideoAsset, error) {
	switch probe.KindForExt(probe.NormalizeExt(sourcePath)) {
	case domain.AssetKindImage:
		img, err := s.IngestImage(ctx, sourcePath, tags, opts)
		return img, nil, err
	case domain.AssetKindVideo:
		vid, err := s.IngestVideo(ctx, sourcePath, tags, opts)
		return nil, vid, err
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedExt, filepath.Ext(sourcePath))
	}
}

// IngestRemote downloads a URL to a temporary file and ingests it. The
// temporary file is always removed afterwards.
func (s *IngestService) IngestRemote(ctx context.Context, rawURL string, tags []string, opts IngestOptions) (*domain.ImageAsset, *domain.VideoAsset, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid source url: %w", err)
	}
	ext := probe.NormalizeExt(path.Base(u.Path))
	if probe.KindForExt(ext) == "" {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedExt, path.Base(u.Path))
	}

	tmp, err := os.CreateTemp("", "medialib-download-*."+ext)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create download file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	resp, err := s.http.R().
		SetContext(ctx).
		SetOutput(tmpPath).
		Get(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	if resp.IsError() {
		return nil, nil, fmt.Errorf("failed to download %s: status %d", rawURL, resp.StatusCode())
	}

	if opts.SourceURL == "" {
		opts.SourceURL = rawURL
	}
	return s.IngestDownloaded(ctx, tmpPath, tags, opts)
}

// IngestImage ingests one image file.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - sourcePath: image file to ingest.
//   - tags: raw tags, normalized before use; at least one must survive.
//   - opts: provenance metadata.
//
// Returns:
//   - *domain.ImageAsset: the stored or refreshed asset row.
//   - error: validation, quota, integrity, or I/O error.
func (s *IngestService) IngestImage(ctx context.Context, sourcePath string, tags []string, opts IngestOptions) (*domain.ImageAsset, error) {
	normalized := NormalizeTags(tags)
	if len(normalized) == 0 {
		return nil, ErrNoTags
	}
	ext := probe.NormalizeExt(sourcePath)
	if probe.KindForExt(ext) != domain.AssetKindImage {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExt, filepath.Ext(sourcePath))
	}

	originalSHA, err := HashFile(sourcePath)
	if err != nil {
		return nil, err
	}

	unlock := s.lockHash(originalSHA)
	defer unlock()

	existing, err := s.images.FirstByHash(ctx, originalSHA)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		return s.refreshImage(ctx, existing, normalized, sourcePath)
	}

	info, err := probe.Image(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to probe image: %w", err)
	}
	if !probe.MatchImageExt(ext, info.Format) {
		return nil, &FormatMismatchError{Path: sourcePath, Ext: ext, Format: info.Format}
	}

	storedPath, storedSHA, storedExt := sourcePath, originalSHA, ext
	if s.optimize.Enabled {
		tmpPath, newExt, ok, optErr := OptimizeLossless(sourcePath, ext, s.optimize.MinSavingsPercent)
		if optErr != nil {
			s.log.WithError(optErr).WithField("source", sourcePath).Warn("Lossless optimization failed, storing original bytes")
		} else if ok {
			defer os.Remove(tmpPath)
			newSHA, hashErr := HashFile(tmpPath)
			if hashErr != nil {
				return nil, hashErr
			}
			storedPath, storedSHA, storedExt = tmpPath, newSHA, newExt
		}
	}

	stat, err := os.Stat(storedPath)
	if err != nil {
		return nil, err
	}
	if err := s.budget.EnsureWithinBudget(ctx, stat.Size()); err != nil {
		return nil, err
	}

	dst, written, err := s.store.CopyVerified(storedPath, domain.AssetKindImage, storedSHA, storedExt)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	asset := &domain.ImageAsset{
		ID:             uuid.NewString(),
		SHA256:         storedSHA,
		OriginalSHA256: originalSHA,
		Filename:       filepath.Base(sourcePath),
		Ext:            storedExt,
		Bytes:          written,
		Width:          info.Width,
		Height:         info.Height,
		Path:           dst,
		Provider:       opts.Provider,
		SourceURL:      opts.SourceURL,
		Embedding:      s.embedder.Embed(normalized),
		CreatedAt:      now,
		LastUsedAt:     now,
	}
	for _, tag := range normalized {
		asset.Tags = append(asset.Tags, domain.ImageTag{AssetID: asset.ID, Tag: tag})
	}

	if !s.thumbs.Async() {
		thumbPath, thumbErr := s.thumbs.Generate(ctx, domain.AssetKindImage, dst, storedSHA, 0)
		if thumbErr != nil {
			s.log.WithError(thumbErr).WithField(logger.FieldAssetID, asset.ID).Warn("Thumbnail generation failed, storing asset without preview")
		} else {
			asset.ThumbPath = thumbPath
		}
	}

	if err := s.images.Create(ctx, asset); err != nil {
		// A concurrent writer may have won the unique index on
		// original_sha256; fold into its row instead of failing.
		winner, raceErr := s.images.FirstByHash(ctx, originalSHA)
		if raceErr == nil && winner != nil {
			os.Remove(dst)
			return s.refreshImage(ctx, winner, normalized, sourcePath)
		}
		os.Remove(dst)
		return nil, err
	}

	if s.thumbs.Async() {
		assetID := asset.ID
		s.thumbs.Enqueue(ThumbJob{
			Kind:       domain.AssetKindImage,
			SourcePath: dst,
			SHA256:     storedSHA,
			OnDone: func(thumbPath string) {
				if err := s.images.UpdateThumbPath(context.Background(), assetID, thumbPath); err != nil {
					s.log.WithError(err).WithField(logger.FieldAssetID, assetID).Warn("Failed to record thumbnail path")
				}
			},
		})
	}

	s.upsertVector(ctx, asset.ID, domain.AssetKindImage, asset.Embedding, normalized)

	s.log.WithFields(logger.Fields{
		logger.FieldAssetID: asset.ID,
		logger.FieldKind:    string(domain.AssetKindImage),
		logger.FieldSize:    written,
	}).Info("Ingested image")
	return asset, nil
}

// IngestVideo ingests one video file.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - sourcePath: video file to ingest.
//   - tags: raw tags, normalized before use; at least one must survive.
//   - opts: provenance metadata.
//
// Returns:
//   - *domain.VideoAsset: the stored or refreshed asset row.
//   - error: validation, quota, integrity, or I/O error.
func (s *IngestService) IngestVideo(ctx context.Context, sourcePath string, tags []string, opts IngestOptions) (*domain.VideoAsset, error) {
	normalized := NormalizeTags(tags)
	if len(normalized) == 0 {
		return nil, ErrNoTags
	}
	ext := probe.NormalizeExt(sourcePath)
	if probe.KindForExt(ext) != domain.AssetKindVideo {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExt, filepath.Ext(sourcePath))
	}

	originalSHA, err := HashFile(sourcePath)
	if err != nil {
		return nil, err
	}

	unlock := s.lockHash(originalSHA)
	defer unlock()

	existing, err := s.videos.FirstByHash(ctx, originalSHA)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		return s.refreshVideo(ctx, existing, normalized, sourcePath)
	}

	info, err := probe.Video(ctx, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}
	if !probe.MatchVideoExt(ext, info.Container) {
		return nil, &FormatMismatchError{Path: sourcePath, Ext: ext, Format: info.Container}
	}

	stat, err := os.Stat(sourcePath)
	if err != nil {
		return nil, err
	}
	if err := s.budget.EnsureWithinBudget(ctx, stat.Size()); err != nil {
		return nil, err
	}

	dst, written, err := s.store.CopyVerified(sourcePath, domain.AssetKindVideo, originalSHA, ext)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	asset := &domain.VideoAsset{
		ID:             uuid.NewString(),
		SHA256:         originalSHA,
		OriginalSHA256: originalSHA,
		Filename:       filepath.Base(sourcePath),
		Ext:            ext,
		Bytes:          written,
		Width:          info.Width,
		Height:         info.Height,
		Path:           dst,
		Provider:       opts.Provider,
		SourceURL:      opts.SourceURL,
		Embedding:      s.embedder.Embed(normalized),
		DurationMs:     info.DurationMs,
		FPS:            info.FPS,
		VideoCodec:     info.VideoCodec,
		AudioCodec:     info.AudioCodec,
		Bitrate:        info.Bitrate,
		HasAudio:       info.HasAudio,
		CreatedAt:      now,
		LastUsedAt:     now,
	}
	for _, tag := range normalized {
		asset.Tags = append(asset.Tags, domain.VideoTag{AssetID: asset.ID, Tag: tag})
	}

	if !s.thumbs.Async() {
		thumbPath, thumbErr := s.thumbs.Generate(ctx, domain.AssetKindVideo, dst, originalSHA, info.DurationMs)
		if thumbErr != nil {
			s.log.WithError(thumbErr).WithField(logger.FieldAssetID, asset.ID).Warn("Thumbnail generation failed, storing asset without preview")
		} else {
			asset.ThumbPath = thumbPath
		}
	}

	if err := s.videos.Create(ctx, asset); err != nil {
		winner, raceErr := s.videos.FirstByHash(ctx, originalSHA)
		if raceErr == nil && winner != nil {
			os.Remove(dst)
			return s.refreshVideo(ctx, winner, normalized, sourcePath)
		}
		os.Remove(dst)
		return nil, err
	}

	if s.thumbs.Async() {
		assetID := asset.ID
		durationMs := info.DurationMs
		s.thumbs.Enqueue(ThumbJob{
			Kind:       domain.AssetKindVideo,
			SourcePath: dst,
			SHA256:     originalSHA,
			DurationMs: durationMs,
			OnDone: func(thumbPath string) {
				if err := s.videos.UpdateThumbPath(context.Background(), assetID, thumbPath); err != nil {
					s.log.WithError(err).WithField(logger.FieldAssetID, assetID).Warn("Failed to record thumbnail path")
				}
			},
		})
	}

	s.upsertVector(ctx, asset.ID, domain.AssetKindVideo, asset.Embedding, normalized)

	s.log.WithFields(logger.Fields{
		logger.FieldAssetID: asset.ID,
		logger.FieldKind:    string(domain.AssetKindVideo),
		logger.FieldSize:    written,
	}).Info("Ingested video")
	return asset, nil
}

// refreshImage is the idempotent re-ingest path: merge tags, touch
// last_used_at, backfill the embedding, and repair a missing stored file
// or thumbnail from the re-supplied source.
func (s *IngestService) refreshImage(ctx context.Context, asset *domain.ImageAsset, normalized []string, sourcePath string) (*domain.ImageAsset, error) {
	if err := s.repairImageFile(ctx, asset, sourcePath); err != nil {
		return nil, err
	}

	added := missingTags(asset.TagSet(), normalized)
	if len(added) > 0 {
		if err := s.images.AddTags(ctx, asset.ID, added); err != nil {
			return nil, err
		}
		for _, tag := range added {
			asset.Tags = append(asset.Tags, domain.ImageTag{AssetID: asset.ID, Tag: tag})
		}
	}

	if len(added) > 0 || len(asset.Embedding) == 0 {
		asset.Embedding = s.embedder.Embed(asset.TagSet())
	}
	asset.LastUsedAt = time.Now().UTC()
	if err := s.images.Save(ctx, asset); err != nil {
		return nil, err
	}

	s.repairThumb(ctx, domain.AssetKindImage, asset.ID, asset.Path, asset.SHA256, asset.ThumbPath, 0)
	s.upsertVector(ctx, asset.ID, domain.AssetKindImage, asset.Embedding, asset.TagSet())
	return asset, nil
}

// refreshVideo mirrors refreshImage for video assets.
func (s *IngestService) refreshVideo(ctx context.Context, asset *domain.VideoAsset, normalized []string, sourcePath string) (*domain.VideoAsset, error) {
	if err := s.repairVideoFile(ctx, asset, sourcePath); err != nil {
		return nil, err
	}

	added := missingTags(asset.TagSet(), normalized)
	if len(added) > 0 {
		if err := s.videos.AddTags(ctx, asset.ID, added); err != nil {
			return nil, err
		}
		for _, tag := range added {
			asset.Tags = append(asset.Tags, domain.VideoTag{AssetID: asset.ID, Tag: tag})
		}
	}

	if len(added) > 0 || len(asset.Embedding) == 0 {
		asset.Embedding = s.embedder.Embed(asset.TagSet())
	}
	asset.LastUsedAt = time.Now().UTC()
	if err := s.videos.Save(ctx, asset); err != nil {
		return nil, err
	}

	s.repairThumb(ctx, domain.AssetKindVideo, asset.ID, asset.Path, asset.SHA256, asset.ThumbPath, asset.DurationMs)
	s.upsertVector(ctx, asset.ID, domain.AssetKindVideo, asset.Embedding, asset.TagSet())
	return asset, nil
}

// repairImageFile restores a stored original that went missing from disk,
// re-deriving it from the re-supplied source the same way the initial
// ingest did. The row's stored hash and path are updated in place; the
// caller saves the row.
func (s *IngestService) repairImageFile(ctx context.Context, asset *domain.ImageAsset, sourcePath string) error {
	if _, err := os.Stat(asset.Path); err == nil {
		return nil
	}
	if _, err := os.Stat(sourcePath); err != nil {
		s.log.WithField(logger.FieldAssetID, asset.ID).Warn("Stored file missing and source unavailable, cannot repair")
		return nil
	}

	ext := probe.NormalizeExt(sourcePath)
	storedPath, storedExt := sourcePath, ext
	storedSHA := asset.OriginalSHA256
	if s.optimize.Enabled {
		tmpPath, newExt, ok, optErr := OptimizeLossless(sourcePath, ext, s.optimize.MinSavingsPercent)
		if optErr != nil {
			s.log.WithError(optErr).WithField(logger.FieldAssetID, asset.ID).Warn("Lossless optimization failed during repair, storing original bytes")
		} else if ok {
			defer os.Remove(tmpPath)
			newSHA, hashErr := HashFile(tmpPath)
			if hashErr != nil {
				return hashErr
			}
			storedPath, storedSHA, storedExt = tmpPath, newSHA, newExt
		}
	}

	dst, written, err := s.store.CopyVerified(storedPath, domain.AssetKindImage, storedSHA, storedExt)
	if err != nil {
		return err
	}
	asset.SHA256 = storedSHA
	asset.Path = dst
	asset.Ext = storedExt
	asset.Bytes = written
	s.log.WithField(logger.FieldAssetID, asset.ID).Info("Repaired missing stored file")
	return nil
}

// repairVideoFile mirrors repairImageFile for video assets.
func (s *IngestService) repairVideoFile(ctx context.Context, asset *domain.VideoAsset, sourcePath string) error {
	if _, err := os.Stat(asset.Path); err == nil {
		return nil
	}
	if _, err := os.Stat(sourcePath); err != nil {
		s.log.WithField(logger.FieldAssetID, asset.ID).Warn("Stored file missing and source unavailable, cannot repair")
		return nil
	}

	ext := probe.NormalizeExt(sourcePath)
	dst, written, err := s.store.CopyVerified(sourcePath, domain.AssetKindVideo, asset.OriginalSHA256, ext)
	if err != nil {
		return err
	}
	asset.SHA256 = asset.OriginalSHA256
	asset.Path = dst
	asset.Ext = ext
	asset.Bytes = written
	s.log.WithField(logger.FieldAssetID, asset.ID).Info("Repaired missing stored file")
	return nil
}

// repairThumb regenerates a thumbnail that was never produced or whose file
// disappeared. Best effort.
func (s *IngestService) repairThumb(ctx context.Context, kind domain.AssetKind, assetID, srcPath, sha256Hex, thumbPath string, durationMs int64) {
	if thumbPath != "" {
		if _, err := os.Stat(thumbPath); err == nil {
			return
		}
	}
	if _, err := os.Stat(srcPath); err != nil {
		return
	}

	record := func(p string) {
		var err error
		switch kind {
		case domain.AssetKindImage:
			err = s.images.UpdateThumbPath(context.Background(), assetID, p)
		case domain.AssetKindVideo:
			err = s.videos.UpdateThumbPath(context.Background(), assetID, p)
		}
		if err != nil {
			s.log.WithError(err).WithField(logger.FieldAssetID, assetID).Warn("Failed to record thumbnail path")
		}
	}

	if s.thumbs.Async() {
		s.thumbs.Enqueue(ThumbJob{
			Kind:       kind,
			SourcePath: srcPath,
			SHA256:     sha256Hex,
			DurationMs: durationMs,
			OnDone:     record,
		})
		return
	}

	p, err := s.thumbs.Generate(ctx, kind, srcPath, sha256Hex, durationMs)
	if err != nil {
		s.log.WithError(err).WithField(logger.FieldAssetID, assetID).Warn("Thumbnail repair failed")
		return
	}
	record(p)
}

// upsertVector mirrors an embedding into the vector index when one is
// configured. Index failures never fail ingestion.
func (s *IngestService) upsertVector(ctx context.Context, assetID string, kind domain.AssetKind, vector domain.EmbeddingVector, tags []string) {
	if s.vectors == nil {
		return
	}
	if err := s.vectors.Upsert(ctx, assetID, kind, vector, tags); err != nil {
		s.log.WithError(err).WithField(logger.FieldAssetID, assetID).Warn("Failed to upsert vector index point")
	}
}
