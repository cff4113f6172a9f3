package domain

import "time"

// GCTrigger records what started a garbage-collection pass.
type GCTrigger string

const (
	GCTriggerManual GCTrigger = "manual"
	GCTriggerBudget GCTrigger = "budget"
)

// GCRun is the persisted record of one garbage-collection pass. Background
// GC failures never propagate to callers, so this table is the only place
// they become visible.
type GCRun struct {
	ID             string    `gorm:"type:text;primaryKey" json:"id"`
	Trigger        GCTrigger `gorm:"type:text;not null;index:idx_gc_runs_trigger" json:"trigger"`
	DryRun         bool      `json:"dry_run"`
	TargetBytes    int64     `json:"target_bytes"`
	FreedBytes     int64     `json:"freed_bytes"`
	Removed        int       `json:"removed"`
	Skipped        int       `json:"skipped"`
	RemainingBytes int64     `json:"remaining_bytes"`
	Error          string    `gorm:"type:text" json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// TableName returns the database table name for GCRun.
func (GCRun) TableName() string {
	return "gc_runs"
}
