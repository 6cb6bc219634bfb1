package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// BackfillRun records the outcome of one metadata repair pass.
type BackfillRun struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Trigger      string         `gorm:"column:trigger;type:text;not null"`
	ActorID      *string        `gorm:"column:actor_id;type:text"`
	Category     *string        `gorm:"column:category;type:text"`
	DryRun       bool           `gorm:"column:dry_run;not null"`
	MaxItems     int            `gorm:"column:max_items;not null"`
	Total        int            `gorm:"column:total;not null"`
	Updated      int            `gorm:"column:updated;not null"`
	Skipped      int            `gorm:"column:skipped;not null"`
	Errors       int            `gorm:"column:errors;not null"`
	Planned      int            `gorm:"column:planned;not null"`
	ErrorSamples datatypes.JSON `gorm:"column:error_samples;type:jsonb"`
	StartedAt    time.Time      `gorm:"column:started_at;not null"`
	FinishedAt   time.Time      `gorm:"column:finished_at;not null"`
}

func (BackfillRun) TableName() string { return "media_backfill_runs" }
