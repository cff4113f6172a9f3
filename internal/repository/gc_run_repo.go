package repository

import (
	"context"

	"github.com/clipforge/medialib/internal/domain"
	"gorm.io/gorm"
)

// GCRunRepository persists garbage-collection run records.
type GCRunRepository struct {
	db *gorm.DB
}

// NewGCRunRepository creates a new GCRunRepository.
func NewGCRunRepository(db *gorm.DB) *GCRunRepository {
	return &GCRunRepository{db: db}
}

// Create inserts a GC run record.
func (r *GCRunRepository) Create(ctx context.Context, run *domain.GCRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Recent returns the most recent GC runs, newest first.
func (r *GCRunRepository) Recent(ctx context.Context, limit int) ([]domain.GCRun, error) {
	var runs []domain.GCRun
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
