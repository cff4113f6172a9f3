package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/clipforge/medialib/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VideoRepository handles video asset data operations.
type VideoRepository struct {
	db *gorm.DB
}

// NewVideoRepository creates a new VideoRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *VideoRepository: repository instance bound to db.
func NewVideoRepository(db *gorm.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// Create inserts a new video asset along with its tag rows.
func (r *VideoRepository) Create(ctx context.Context, asset *domain.VideoAsset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

// Save updates an existing video asset record (tags untouched).
func (r *VideoRepository) Save(ctx context.Context, asset *domain.VideoAsset) error {
	return r.db.WithContext(ctx).Omit("Tags").Save(asset).Error
}

// GetByID retrieves a video asset with its tags.
func (r *VideoRepository) GetByID(ctx context.Context, id string) (*domain.VideoAsset, error) {
	var asset domain.VideoAsset
	if err := r.db.WithContext(ctx).Preload("Tags").First(&asset, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

// GetByIDs retrieves video assets by a list of IDs.
func (r *VideoRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.VideoAsset, error) {
	if len(ids) == 0 {
		return []domain.VideoAsset{}, nil
	}
	var assets []domain.VideoAsset
	if err := r.db.WithContext(ctx).Preload("Tags").Where("id IN ?", ids).Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("failed to get videos by IDs: %w", err)
	}
	return assets, nil
}

// FirstByHash retrieves the asset whose original or stored hash matches.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - sha256: hex digest to match against both hash columns.
//
// Returns:
//   - *domain.VideoAsset: matching record with tags preloaded.
//   - error: gorm.ErrRecordNotFound when no row matches.
func (r *VideoRepository) FirstByHash(ctx context.Context, sha256 string) (*domain.VideoAsset, error) {
	var asset domain.VideoAsset
	if err := r.db.WithContext(ctx).Preload("Tags").
		First(&asset, "original_sha256 = ? OR sha256 = ?", sha256, sha256).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

// AddTags inserts tag rows for an asset, ignoring ones already present.
func (r *VideoRepository) AddTags(ctx context.Context, assetID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	rows := make([]domain.VideoTag, 0, len(tags))
	for _, tag := range tags {
		rows = append(rows, domain.VideoTag{AssetID: assetID, Tag: tag})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// TotalBytes returns the byte sum over all video assets.
func (r *VideoRepository) TotalBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.VideoAsset{}).
		Select("COALESCE(SUM(bytes), 0)").Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Count returns the number of video assets.
func (r *VideoRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.VideoAsset{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CandidatesByTags pulls the exact-match candidate window: assets sharing
// at least one tag with the query and meeting the hard dimension and
// duration filters, most recently used first.
func (r *VideoRepository) CandidatesByTags(ctx context.Context, tags []string, minWidth, minHeight int, minDurationMs int64, limit int) ([]domain.VideoAsset, error) {
	if len(tags) == 0 {
		return []domain.VideoAsset{}, nil
	}
	sub := r.db.Table("video_tags").Select("DISTINCT asset_id").Where("tag IN ?", tags)
	q := r.db.WithContext(ctx).Preload("Tags").Where("id IN (?)", sub)
	if minWidth > 0 {
		q = q.Where("width >= ?", minWidth)
	}
	if minHeight > 0 {
		q = q.Where("height >= ?", minHeight)
	}
	if minDurationMs > 0 {
		q = q.Where("duration_ms >= ?", minDurationMs)
	}
	var assets []domain.VideoAsset
	if err := q.Order("last_used_at DESC").Limit(limit).Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

// SemanticCandidates pulls assets carrying an embedding, excluding IDs the
// exact pass already matched, most recently used first.
func (r *VideoRepository) SemanticCandidates(ctx context.Context, excludeIDs []string, minWidth, minHeight int, minDurationMs int64, limit int) ([]domain.VideoAsset, error) {
	q := r.db.WithContext(ctx).Preload("Tags").
		Where("embedding IS NOT NULL AND embedding != '' AND embedding != '[]'")
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}
	if minWidth > 0 {
		q = q.Where("width >= ?", minWidth)
	}
	if minHeight > 0 {
		q = q.Where("height >= ?", minHeight)
	}
	if minDurationMs > 0 {
		q = q.Where("duration_ms >= ?", minDurationMs)
	}
	var assets []domain.VideoAsset
	if err := q.Order("last_used_at DESC").Limit(limit).Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

// LRUBatch returns a window of eviction candidates ordered oldest-first by
// last_used_at then created_at then id.
func (r *VideoRepository) LRUBatch(ctx context.Context, limit, offset int) ([]domain.GCCandidate, error) {
	var candidates []domain.GCCandidate
	if err := r.db.WithContext(ctx).Model(&domain.VideoAsset{}).
		Select("id, bytes, path, thumb_path, last_used_at, created_at").
		Order("last_used_at ASC, created_at ASC, id ASC").
		Limit(limit).Offset(offset).
		Scan(&candidates).Error; err != nil {
		return nil, err
	}
	for i := range candidates {
		candidates[i].Kind = domain.AssetKindVideo
	}
	return candidates, nil
}

// MarkUsed advances last_used_at for the given asset IDs.
func (r *VideoRepository) MarkUsed(ctx context.Context, ids []string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&domain.VideoAsset{}).
		Where("id IN ?", ids).Update("last_used_at", now).Error
}

// UpdateThumbPath records a generated thumbnail path for an asset.
func (r *VideoRepository) UpdateThumbPath(ctx context.Context, id, thumbPath string) error {
	return r.db.WithContext(ctx).Model(&domain.VideoAsset{}).
		Where("id = ?", id).Update("thumb_path", thumbPath).Error
}

// Delete removes a video asset and its tag rows.
func (r *VideoRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.VideoTag{}, "asset_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.VideoAsset{}, "id = ?", id).Error
	})
}
