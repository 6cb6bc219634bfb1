package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/castingly/castingly-backend/internal/backfill"
	"github.com/castingly/castingly-backend/pkg/logger"
	"go.uber.org/multierr"
)

// BackfillJobName labels the scheduled metadata repair.
const BackfillJobName = "media_backfill"

// BackfillJobParams configure the scheduled repair.
type BackfillJobParams struct {
	Logger   *logger.Logger
	Backfill backfill.Service
	MaxItems int
}

// NewBackfillJob wraps the repair job for the scheduler.
func NewBackfillJob(params BackfillJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Backfill == nil {
		return nil, fmt.Errorf("backfill service required")
	}
	return &backfillJob{
		logg:     params.Logger,
		backfill: params.Backfill,
		maxItems: params.MaxItems,
	}, nil
}

type backfillJob struct {
	logg     *logger.Logger
	backfill backfill.Service
	maxItems int
}

func (j *backfillJob) Name() string { return BackfillJobName }

// Run repairs every actor's files. A run already in progress elsewhere is not
// a failure. Item failures fail the job so they show up in the job metrics.
func (j *backfillJob) Run(ctx context.Context) error {
	res, err := j.backfill.Run(ctx, backfill.Options{Max: j.maxItems, Trigger: backfill.TriggerCron})
	if errors.Is(err, backfill.ErrAlreadyRunning) {
		j.logg.Info(ctx, "backfill already running; skipping")
		return nil
	}
	if err != nil {
		return err
	}
	if res.Errors == 0 {
		return nil
	}
	var itemErrs error
	for _, itemErr := range res.ItemErrors {
		itemErrs = multierr.Append(itemErrs, itemErr)
	}
	return fmt.Errorf("%d of %d items failed: %w", res.Errors, res.Total, itemErrs)
}
