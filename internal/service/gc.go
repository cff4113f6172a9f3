package service

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/clipforge/medialib/internal/domain"
	"github.com/clipforge/medialib/internal/logger"
	"github.com/clipforge/medialib/internal/repository"
	"github.com/clipforge/medialib/internal/storage"

	"github.com/google/uuid"
)

// gcBatchSize is how many candidates each per-kind stream pulls per query.
const gcBatchSize = 100

// GCOptions parameterizes one garbage-collection pass.
type GCOptions struct {
	// TargetBytes overrides the configured budget as the collection
	// target. Zero means collect down to the budget.
	TargetBytes int64

	// DryRun computes and reports the eviction plan without deleting
	// anything.
	DryRun bool

	// ProtectedIDs are asset IDs that must never be evicted, typically
	// assets referenced by active project manifests.
	ProtectedIDs []string
}

// GCResult reports the outcome of one garbage-collection pass.
type GCResult struct {
	FreedBytes     int64 `json:"freed_bytes"`
	Removed        int   `json:"removed"`
	RemainingBytes int64 `json:"remaining_bytes"`
	BudgetBytes    int64 `json:"budget_bytes"`
	Skipped        int   `json:"skipped"`
}

// GCService enforces the storage budget.
//
// Eviction is a global LRU across both asset kinds: the two per-kind
// oldest-first streams are merged by repeatedly taking whichever head was
// used longer ago, so an old image is evicted before a newer video and
// vice versa.
type GCService struct {
	images  *repository.ImageRepository
	videos  *repository.VideoRepository
	runs    *repository.GCRunRepository
	vectors *repository.VectorRepository
	store   *ContentStore
	archive storage.ArchiveStore
	log     *logger.Logger
	budget  int64

	scheduled atomic.Bool
}

// NewGCService creates the budget governor. archive and vectors may be nil.
func NewGCService(images *repository.ImageRepository, videos *repository.VideoRepository, runs *repository.GCRunRepository, vectors *repository.VectorRepository, store *ContentStore, archive storage.ArchiveStore, log *logger.Logger, budgetBytes int64) *GCService {
	return &GCService{
		images:  images,
		videos:  videos,
		runs:    runs,
		vectors: vectors,
		store:   store,
		archive: archive,
		log:     log,
		budget:  budgetBytes,
	}
}

// BudgetBytes returns the configured byte budget, zero when unlimited.
func (s *GCService) BudgetBytes() int64 {
	return s.budget
}

// Usage returns the current total stored bytes across both asset kinds.
func (s *GCService) Usage(ctx context.Context) (int64, error) {
	imageBytes, err := s.images.TotalBytes(ctx)
	if err != nil {
		return 0, err
	}
	videoBytes, err := s.videos.TotalBytes(ctx)
	if err != nil {
		return 0, err
	}
	return imageBytes + videoBytes, nil
}

// EnsureWithinBudget admits or rejects additionalBytes against the budget.
// A rejection schedules one background GC pass (debounced, at most one
// pending at a time) and returns a retryable quota error; nothing is
// evicted on the caller's behalf.
func (s *GCService) EnsureWithinBudget(ctx context.Context, additionalBytes int64) error {
	if s.budget <= 0 {
		return nil
	}
	usage, err := s.Usage(ctx)
	if err != nil {
		return err
	}
	if usage+additionalBytes <= s.budget {
		return nil
	}

	s.scheduleBackgroundGC()
	return &QuotaError{
		UsageBytes:      usage,
		AdditionalBytes: additionalBytes,
		BudgetBytes:     s.budget,
	}
}

// scheduleBackgroundGC arms at most one pending background pass.
func (s *GCService) scheduleBackgroundGC() {
	if !s.scheduled.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.scheduled.Store(false)
		if _, err := s.collect(context.Background(), GCOptions{}, domain.GCTriggerBudget); err != nil {
			s.log.WithError(err).Error("Background garbage collection failed")
		}
	}()
}

// GarbageCollect runs one collection pass toward the target.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - opts: target override, dry-run flag, protected IDs.
//
// Returns:
//   - *GCResult: freed bytes, eviction count, remaining usage, budget
//     used, and skipped protected candidates.
//   - error: non-nil on a store failure.
func (s *GCService) GarbageCollect(ctx context.Context, opts GCOptions) (*GCResult, error) {
	return s.collect(ctx, opts, domain.GCTriggerManual)
}

func (s *GCService) collect(ctx context.Context, opts GCOptions, trigger domain.GCTrigger) (*GCResult, error) {
	startedAt := time.Now().UTC()
	target := opts.TargetBytes
	if target <= 0 {
		target = s.budget
	}

	result, err := s.evictToTarget(ctx, target, opts)

	run := &domain.GCRun{
		ID:          uuid.NewString(),
		Trigger:     trigger,
		DryRun:      opts.DryRun,
		TargetBytes: target,
		StartedAt:   startedAt,
		FinishedAt:  time.Now().UTC(),
	}
	if result != nil {
		run.FreedBytes = result.FreedBytes
		run.Removed = result.Removed
		run.Skipped = result.Skipped
		run.RemainingBytes = result.RemainingBytes
	}
	if err != nil {
		run.Error = err.Error()
	}
	if createErr := s.runs.Create(ctx, run); createErr != nil {
		s.log.WithError(createErr).Warn("Failed to record garbage-collection run")
	}

	if err != nil {
		return nil, err
	}
	s.log.WithFields(logger.Fields{
		logger.FieldGCRunID: run.ID,
		"freed_bytes":       result.FreedBytes,
		"removed":           result.Removed,
		"skipped":           result.Skipped,
		"dry_run":           opts.DryRun,
	}).Info("Garbage collection finished")
	return result, nil
}

func (s *GCService) evictToTarget(ctx context.Context, target int64, opts GCOptions) (*GCResult, error) {
	usage, err := s.Usage(ctx)
	if err != nil {
		return nil, err
	}

	result := &GCResult{RemainingBytes: usage, BudgetBytes: target}
	bytesOver := usage - target
	if target <= 0 || bytesOver <= 0 {
		return result, nil
	}

	protected := stringSet(opts.ProtectedIDs)
	imageStream := &lruStream{fetch: s.images.LRUBatch}
	videoStream := &lruStream{fetch: s.videos.LRUBatch}

	for bytesOver > 0 {
		candidate, stream, err := oldestHead(ctx, imageStream, videoStream)
		if err != nil {
			return nil, err
		}
		if candidate == nil {
			break
		}

		if protected[candidate.ID] {
			result.Skipped++
			stream.keep()
			continue
		}

		if opts.DryRun {
			stream.keep()
		} else if err := s.evict(ctx, candidate); err != nil {
			s.log.WithError(err).WithFields(logger.Fields{
				logger.FieldAssetID: candidate.ID,
				logger.FieldKind:    string(candidate.Kind),
			}).Error("Failed to evict asset, leaving it in place")
			stream.keep()
			continue
		} else {
			stream.evicted()
		}

		result.FreedBytes += candidate.Bytes
		result.Removed++
		bytesOver -= candidate.Bytes
	}

	result.RemainingBytes = usage - result.FreedBytes
	return result, nil
}

// evict archives (when configured) and deletes one asset: original file,
// thumbnail, vector point, metadata row.
func (s *GCService) evict(ctx context.Context, c *domain.GCCandidate) error {
	s.archiveBeforeDelete(ctx, c)

	if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if c.ThumbPath != "" {
		if err := os.Remove(c.ThumbPath); err != nil && !os.IsNotExist(err) {
			s.log.WithError(err).WithField(logger.FieldAssetID, c.ID).Warn("Failed to remove thumbnail")
		}
	}

	if s.vectors != nil {
		if err := s.vectors.Delete(ctx, c.ID); err != nil {
			s.log.WithError(err).WithField(logger.FieldAssetID, c.ID).Warn("Failed to remove vector index point")
		}
	}

	switch c.Kind {
	case domain.AssetKindImage:
		return s.images.Delete(ctx, c.ID)
	case domain.AssetKindVideo:
		return s.videos.Delete(ctx, c.ID)
	}
	return nil
}

// archiveBeforeDelete offloads the original to the archive bucket. Best
// effort: an archive failure is logged and eviction proceeds, budget
// enforcement takes precedence over the offsite copy.
func (s *GCService) archiveBeforeDelete(ctx context.Context, c *domain.GCCandidate) {
	if s.archive == nil {
		return
	}
	f, err := os.Open(c.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.WithError(err).WithField(logger.FieldAssetID, c.ID).Warn("Failed to open original for archival")
		}
		return
	}
	defer f.Close()

	key := s.store.ArchiveKey(c.Path)
	if err := s.archive.Upload(ctx, key, f, c.Bytes, "application/octet-stream"); err != nil {
		s.log.WithError(err).WithFields(logger.Fields{
			logger.FieldAssetID: c.ID,
			"archive_key":       key,
		}).Warn("Failed to archive original before eviction")
	}
}

// lruStream pages one repository's oldest-first candidates. kept counts
// consumed rows that stayed in the table (protected, dry-run, failed
// eviction) so the next page's offset skips them; evicted rows vanish from
// the table and need no offset.
type lruStream struct {
	fetch func(ctx context.Context, limit, offset int) ([]domain.GCCandidate, error)
	buf   []domain.GCCandidate
	kept  int
	done  bool
}

func (s *lruStream) peek(ctx context.Context) (*domain.GCCandidate, error) {
	if len(s.buf) == 0 && !s.done {
		batch, err := s.fetch(ctx, gcBatchSize, s.kept)
		if err != nil {
			return nil, err
		}
		if len(batch) < gcBatchSize {
			s.done = true
		}
		s.buf = batch
	}
	if len(s.buf) == 0 {
		return nil, nil
	}
	return &s.buf[0], nil
}

func (s *lruStream) keep() {
	s.buf = s.buf[1:]
	s.kept++
}

func (s *lruStream) evicted() {
	s.buf = s.buf[1:]
}

// oldestHead picks from the stream whose head was used longer ago,
// breaking ties by creation time then ID so the merge order is total.
func oldestHead(ctx context.Context, a, b *lruStream) (*domain.GCCandidate, *lruStream, error) {
	headA, err := a.peek(ctx)
	if err != nil {
		return nil, nil, err
	}
	headB, err := b.peek(ctx)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case headA == nil && headB == nil:
		return nil, nil, nil
	case headA == nil:
		return headB, b, nil
	case headB == nil:
		return headA, a, nil
	}

	if headA.LastUsedAt.Equal(headB.LastUsedAt) {
		if headA.CreatedAt.Equal(headB.CreatedAt) {
			if headA.ID < headB.ID {
				return headA, a, nil
			}
			return headB, b, nil
		}
		if headA.CreatedAt.Before(headB.CreatedAt) {
			return headA, a, nil
		}
		return headB, b, nil
	}
	if headA.LastUsedAt.Before(headB.LastUsedAt) {
		return headA, a, nil
	}
	return headB, b, nil
}
