package cron

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/castingly/castingly-backend/internal/backfill"
	"github.com/castingly/castingly-backend/pkg/logger"
	pkgerrors "github.com/castingly/castingly-backend/pkg/errors"
)

type stubBackfill struct {
	res  *backfill.Result
	err  error
	opts backfill.Options
}

func (s *stubBackfill) Run(_ context.Context, opts backfill.Options) (*backfill.Result, error) {
	s.opts = opts
	return s.res, s.err
}

func TestBackfillJobRunsGlobalRepair(t *testing.T) {
	stub := &stubBackfill{res: &backfill.Result{OK: true, Total: 3, Updated: 3}}
	job, err := NewBackfillJob(BackfillJobParams{Logger: logger.New(logger.Options{ServiceName: "t"}), Backfill: stub, MaxItems: 250})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != BackfillJobName {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stub.opts.Trigger != backfill.TriggerCron || stub.opts.Max != 250 || stub.opts.ActorID != "" || stub.opts.DryRun {
		t.Fatalf("unexpected options %+v", stub.opts)
	}
}

func TestBackfillJobSurfacesItemErrors(t *testing.T) {
	stub := &stubBackfill{res: &backfill.Result{
		OK:     true,
		Total:  4,
		Errors: 2,
		ItemErrors: []*backfill.ItemError{
			{FileID: "a", Err: errors.New("boom")},
			{FileID: "b", Err: errors.New("bang")},
		},
	}}
	job, _ := NewBackfillJob(BackfillJobParams{Logger: logger.New(logger.Options{ServiceName: "t"}), Backfill: stub})
	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected item errors to fail the job")
	}
	for _, want := range []string{"2 of 4 items failed", "backfill a: boom", "backfill b: bang"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %q", want, err.Error())
		}
	}
}

func TestBackfillJobSkipsWhenAlreadyRunning(t *testing.T) {
	stub := &stubBackfill{err: pkgerrors.Wrap(pkgerrors.CodeConflict, backfill.ErrAlreadyRunning, "backfill already running")}
	job, _ := NewBackfillJob(BackfillJobParams{Logger: logger.New(logger.Options{ServiceName: "t"}), Backfill: stub})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("expected skip, got %v", err)
	}
}
