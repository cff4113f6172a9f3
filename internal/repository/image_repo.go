package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/clipforge/medialib/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ImageRepository handles image asset data operations.
type ImageRepository struct {
	db *gorm.DB
}

// NewImageRepository creates a new ImageRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *ImageRepository: repository instance bound to db.
func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// Create inserts a new image asset along with its tag rows.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - asset: asset record to persist.
//
// Returns:
//   - error: non-nil if the insert fails.
func (r *ImageRepository) Create(ctx context.Context, asset *domain.ImageAsset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

// Save updates an existing image asset record (tags untouched).
func (r *ImageRepository) Save(ctx context.Context, asset *domain.ImageAsset) error {
	return r.db.WithContext(ctx).Omit("Tags").Save(asset).Error
}

// GetByID retrieves an image asset with its tags.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: asset ID.
//
// Returns:
//   - *domain.ImageAsset: asset record if found.
//   - error: non-nil if lookup fails (gorm.ErrRecordNotFound when missing).
func (r *ImageRepository) GetByID(ctx context.Context, id string) (*domain.ImageAsset, error) {
	var asset domain.ImageAsset
	if err := r.db.WithContext(ctx).Preload("Tags").First(&asset, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

// GetByIDs retrieves image assets by a list of IDs.
func (r *ImageRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.ImageAsset, error) {
	if len(ids) == 0 {
		return []domain.ImageAsset{}, nil
	}
	var assets []domain.ImageAsset
	if err := r.db.WithContext(ctx).Preload("Tags").Where("id IN ?", ids).Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("failed to get images by IDs: %w", err)
	}
	return assets, nil
}

// FirstByHash retrieves the asset whose original or stored hash matches.
// This is the dedup lookup: the original hash catches re-ingests of the
// same source, the stored hash catches sources that are themselves a copy
// of an already-stored file.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - sha256: hex digest to match against both hash columns.
//
// Returns:
//   - *domain.ImageAsset: matching record with tags preloaded.
//   - error: gorm.ErrRecordNotFound when no row matches.
func (r *ImageRepository) FirstByHash(ctx context.Context, sha256 string) (*domain.ImageAsset, error) {
	var asset domain.ImageAsset
	if err := r.db.WithContext(ctx).Preload("Tags").
		First(&asset, "original_sha256 = ? OR sha256 = ?", sha256, sha256).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

// AddTags inserts tag rows for an asset, ignoring ones already present.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - assetID: owning asset ID.
//   - tags: normalized tags to attach.
//
// Returns:
//   - error: non-nil if the insert fails.
func (r *ImageRepository) AddTags(ctx context.Context, assetID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	rows := make([]domain.ImageTag, 0, len(tags))
	for _, tag := range tags {
		rows = append(rows, domain.ImageTag{AssetID: assetID, Tag: tag})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// TotalBytes returns the byte sum over all image assets.
func (r *ImageRepository) TotalBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.ImageAsset{}).
		Select("COALESCE(SUM(bytes), 0)").Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Count returns the number of image assets.
func (r *ImageRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.ImageAsset{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CandidatesByTags pulls the exact-match candidate window: assets sharing
// at least one tag with the query and meeting the hard dimension filters,
// most recently used first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - tags: normalized query tags.
//   - minWidth, minHeight: hard dimension filters; 0 disables.
//   - limit: window cap.
//
// Returns:
//   - []domain.ImageAsset: candidate records with tags preloaded.
//   - error: non-nil if the query fails.
func (r *ImageRepository) CandidatesByTags(ctx context.Context, tags []string, minWidth, minHeight, limit int) ([]domain.ImageAsset, error) {
	if len(tags) == 0 {
		return []domain.ImageAsset{}, nil
	}
	sub := r.db.Table("image_tags").Select("DISTINCT asset_id").Where("tag IN ?", tags)
	q := r.db.WithContext(ctx).Preload("Tags").Where("id IN (?)", sub)
	if minWidth > 0 {
		q = q.Where("width >= ?", minWidth)
	}
	if minHeight > 0 {
		q = q.Where("height >= ?", minHeight)
	}
	var assets []domain.ImageAsset
	if err := q.Order("last_used_at DESC").Limit(limit).Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

// SemanticCandidates pulls assets carrying an embedding, excluding IDs the
// exact pass already matched, most recently used first.
func (r *ImageRepository) SemanticCandidates(ctx context.Context, excludeIDs []string, minWidth, minHeight, limit int) ([]domain.ImageAsset, error) {
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
	var assets []domain.ImageAsset
	if err := q.Order("last_used_at DESC").Limit(limit).Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

// LRUBatch returns a window of eviction candidates ordered oldest-first by
// last_used_at then created_at then id.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: batch size.
//   - offset: rows to skip (advances as earlier batches are consumed).
//
// Returns:
//   - []domain.GCCandidate: eviction view rows, kind set to image.
//   - error: non-nil if the query fails.
func (r *ImageRepository) LRUBatch(ctx context.Context, limit, offset int) ([]domain.GCCandidate, error) {
	var candidates []domain.GCCandidate
	if err := r.db.WithContext(ctx).Model(&domain.ImageAsset{}).
		Select("id, bytes, path, thumb_path, last_used_at, created_at").
		Order("last_used_at ASC, created_at ASC, id ASC").
		Limit(limit).Offset(offset).
		Scan(&candidates).Error; err != nil {
		return nil, err
	}
	for i := range candidates {
		candidates[i].Kind = domain.AssetKindImage
	}
	return candidates, nil
}

// MarkUsed advances last_used_at for the given asset IDs.
func (r *ImageRepository) MarkUsed(ctx context.Context, ids []string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&domain.ImageAsset{}).
		Where("id IN ?", ids).Update("last_used_at", now).Error
}

// UpdateThumbPath records a generated thumbnail path for an asset.
func (r *ImageRepository) UpdateThumbPath(ctx context.Context, id, thumbPath string) error {
	return r.db.WithContext(ctx).Model(&domain.ImageAsset{}).
		Where("id = ?", id).Update("thumb_path", thumbPath).Error
}

// Delete removes an image asset and its tag rows.
func (r *ImageRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.ImageTag{}, "asset_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.ImageAsset{}, "id = ?", id).Error
	})
}
