package backfill

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/castingly/castingly-backend/internal/repo"
	"github.com/castingly/castingly-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultRecentRuns = 20

// RunRepository persists backfill run summaries.
type RunRepository struct {
	repo.Base
}

// NewRunRepository binds the run history to db.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{Base: repo.NewBase(db)}
}

// Create inserts a run, assigning an id when missing.
func (r *RunRepository) Create(ctx context.Context, run *models.BackfillRun) error {
	if run == nil {
		return fmt.Errorf("run required")
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	return r.DB(ctx).Create(run).Error
}

// Recent returns the latest runs, newest first.
func (r *RunRepository) Recent(ctx context.Context, limit int) ([]models.BackfillRun, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultRecentRuns
	}
	var runs []models.BackfillRun
	err := r.DB(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

func toRunRecord(opts Options, res *Result) *models.BackfillRun {
	run := &models.BackfillRun{
		Trigger:    string(opts.Trigger),
		DryRun:     opts.DryRun,
		MaxItems:   opts.Max,
		Total:      res.Total,
		Updated:    res.Updated,
		Skipped:    res.Skipped,
		Errors:     res.Errors,
		Planned:    len(res.Planned),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	if opts.ActorID != "" {
		actorID := opts.ActorID
		run.ActorID = &actorID
	}
	if opts.Category != nil {
		category := opts.Category.String()
		run.Category = &category
	}
	if samples, err := json.Marshal(res.ErrorSamples); err == nil {
		run.ErrorSamples = datatypes.JSON(samples)
	}
	return run
}
