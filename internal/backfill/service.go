package backfill

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/castingly/castingly-backend/internal/media"
	"github.com/castingly/castingly-backend/pkg/config"
	"github.com/castingly/castingly-backend/pkg/db/models"
	"github.com/castingly/castingly-backend/pkg/dmapi"
	"github.com/castingly/castingly-backend/pkg/enums"
	pkgerrors "github.com/castingly/castingly-backend/pkg/errors"
	"github.com/castingly/castingly-backend/pkg/logger"
	"github.com/castingly/castingly-backend/pkg/metrics"
	"github.com/castingly/castingly-backend/pkg/pubsub"
	"github.com/castingly/castingly-backend/pkg/redis"
	"github.com/castingly/castingly-backend/pkg/retry"
)

const (
	// MaxItemsLimit bounds the max option.
	MaxItemsLimit = 10000
	// scanLimit bounds the files listed per bucket in one run.
	scanLimit  = 100000
	rootFolder = "actors"

	// Rate-limit backoff used when the config leaves a field unset.
	defaultRetryAttempts   = 12
	defaultRetryBaseDelay  = time.Second
	defaultRetryMultiplier = 1.8
)

// Trigger records who started a run.
type Trigger string

const (
	TriggerAPI  Trigger = "api"
	TriggerCron Trigger = "cron"
	TriggerCLI  Trigger = "cli"
)

// ErrAlreadyRunning is returned when another run holds the lock.
var ErrAlreadyRunning = errors.New("backfill already running")

// Storage is the subset of the media API the repair job needs.
type Storage interface {
	ListAll(ctx context.Context, q dmapi.ListQuery, max int) ([]dmapi.File, error)
	PatchMetadata(ctx context.Context, id string, patch map[string]any) error
	PatchMetadataByKey(ctx context.Context, ref dmapi.KeyRef, patch map[string]any) error
}

type emailLookup interface {
	EmailsByIDs(ctx context.Context, ids []string) (map[string]string, error)
}

type runRecorder interface {
	Create(ctx context.Context, run *models.BackfillRun) error
}

// Options scope one run.
type Options struct {
	ActorID  string
	Category *enums.MediaCategory
	Max      int
	DryRun   bool
	Trigger  Trigger
	// Storage overrides the service credential for this run.
	Storage Storage
}

// PlannedChange is reported for each candidate of a dry run.
type PlannedChange struct {
	FileID     string `json:"id,omitempty"`
	StorageKey string `json:"storage_key,omitempty"`
	Patch      Patch  `json:"patch"`
}

// Result summarizes a run.
type Result struct {
	OK           bool            `json:"ok"`
	Total        int             `json:"total"`
	Updated      int             `json:"updated"`
	Skipped      int             `json:"skipped"`
	Errors       int             `json:"errors"`
	ErrorSamples []string        `json:"errorSamples"`
	DryRun       bool            `json:"dryRun"`
	Planned      []PlannedChange `json:"planned,omitempty"`

	// ScanTruncated is set when a bucket listing hit the scan bound.
	ScanTruncated bool `json:"scanTruncated,omitempty"`

	ItemErrors []*ItemError `json:"-"`
	StartedAt  time.Time    `json:"-"`
	FinishedAt time.Time    `json:"-"`
}

// Service repairs category and owner metadata of stored files.
type Service interface {
	Run(ctx context.Context, opts Options) (*Result, error)
}

// Deps are the collaborators of the repair job. Lock, Runs, Publisher and
// Metrics are optional.
type Deps struct {
	Storage   Storage
	Actors    emailLookup
	Lock      redis.Lock
	Runs      runRecorder
	Publisher pubsub.EventPublisher
	Metrics   *metrics.MediaMetrics
	Logger    *logger.Logger
}

type service struct {
	storage     Storage
	actors      emailLookup
	lock        redis.Lock
	runs        runRecorder
	publisher   pubsub.EventPublisher
	metrics     *metrics.MediaMetrics
	logg        *logger.Logger
	locator     media.Locator
	legacyAppID string
	defaultMax  int
	pause       time.Duration
	retry       retry.Policy
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

// NewService constructs the repair job.
func NewService(cfg config.Config, deps Deps) (Service, error) {
	if deps.Storage == nil {
		return nil, fmt.Errorf("storage required")
	}
	if deps.Actors == nil {
		return nil, fmt.Errorf("actors repository required")
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = pubsub.NoopPublisher{}
	}
	defaultMax := cfg.Backfill.DefaultMax
	if defaultMax <= 0 || defaultMax > MaxItemsLimit {
		defaultMax = 500
	}
	s := &service{
		storage:     deps.Storage,
		actors:      deps.Actors,
		lock:        deps.Lock,
		runs:        deps.Runs,
		publisher:   publisher,
		metrics:     deps.Metrics,
		logg:        deps.Logger,
		locator:     media.Locator{PublicBucket: cfg.DMAPI.PublicBucket, PrivateBucket: cfg.DMAPI.PrivateBucket},
		legacyAppID: cfg.DMAPI.LegacyAppID,
		defaultMax:  defaultMax,
		pause:       cfg.Backfill.MutationPause,
		sleep:       retry.SleepContext,
		now:         time.Now,
	}
	s.retry = retry.Policy{
		MaxAttempts: cfg.Backfill.RetryMaxAttempts,
		BaseDelay:   cfg.Backfill.RetryBaseDelay,
		Multiplier:  cfg.Backfill.RetryMultiplier,
		Retryable:   s.rateLimited,
	}
	if s.retry.MaxAttempts <= 0 {
		s.retry.MaxAttempts = defaultRetryAttempts
	}
	if s.retry.BaseDelay <= 0 {
		s.retry.BaseDelay = defaultRetryBaseDelay
	}
	if s.retry.Multiplier < 1 {
		s.retry.Multiplier = defaultRetryMultiplier
	}
	return s, nil
}

func (s *service) rateLimited(err error) bool {
	if dmapi.IsRateLimited(err) {
		s.metrics.IncRateLimited()
		return true
	}
	return false
}

func (s *service) Run(ctx context.Context, opts Options) (*Result, error) {
	opts.ActorID = strings.TrimSpace(opts.ActorID)
	if opts.Max == 0 {
		opts.Max = s.defaultMax
	}
	if opts.Max < 1 || opts.Max > MaxItemsLimit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("max must be between 1 and %d", MaxItemsLimit))
	}
	if opts.Category != nil && !opts.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid media category")
	}
	if opts.Trigger == "" {
		opts.Trigger = TriggerAPI
	}
	storage := opts.Storage
	if storage == nil {
		storage = s.storage
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"backfill_trigger": string(opts.Trigger),
			"dry_run":          opts.DryRun,
		})
		if opts.ActorID != "" {
			ctx = s.logg.WithActorID(ctx, opts.ActorID)
		}
	}

	if s.lock != nil {
		ok, err := s.lock.Acquire(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire backfill lock")
		}
		if !ok {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, ErrAlreadyRunning, ErrAlreadyRunning.Error())
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil && s.logg != nil {
				s.logg.WarnErr(ctx, "release backfill lock failed", err)
			}
		}()
	}

	res := &Result{DryRun: opts.DryRun, ErrorSamples: []string{}, StartedAt: s.now()}
	files, err := s.candidates(ctx, storage, opts, res)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list candidate files")
	}
	emails := s.lookupEmails(ctx, files)

	runErr := s.process(ctx, storage, opts, files, emails, res)
	res.OK = runErr == nil
	res.FinishedAt = s.now()
	s.finish(ctx, opts, res)
	if runErr != nil {
		return res, runErr
	}
	return res, nil
}

// candidates lists the scoped files and applies the category filter. Max is
// applied later, to files that need a change.
func (s *service) candidates(ctx context.Context, storage Storage, opts Options, res *Result) ([]dmapi.File, error) {
	folder := rootFolder
	if opts.ActorID != "" {
		folder = media.ActorRoot(opts.ActorID)
	}
	var out []dmapi.File
	for _, bucket := range s.locator.Buckets() {
		files, err := storage.ListAll(ctx, dmapi.ListQuery{Bucket: bucket, Folder: folder, Recursive: true}, scanLimit)
		if err != nil {
			return nil, err
		}
		if len(files) >= scanLimit {
			res.ScanTruncated = true
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "bucket", bucket), "backfill listing hit scan limit; remaining files are left for a scoped run")
			}
		}
		for _, f := range files {
			if opts.Category != nil {
				if EffectiveCategory(f, ComputePatch(f, nil)) != *opts.Category {
					continue
				}
			}
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *service) lookupEmails(ctx context.Context, files []dmapi.File) map[string]string {
	seen := map[string]bool{}
	var ids []string
	for _, f := range files {
		if id := ownerToEnrich(f); id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	emails, err := s.actors.EmailsByIDs(ctx, ids)
	if err != nil {
		if s.logg != nil {
			s.logg.WarnErr(ctx, "actor email lookup failed; continuing without enrichment", err)
		}
		return nil
	}
	return emails
}

// process walks files until opts.Max of them needed a change. Files already
// correct count toward Total and Skipped but not toward Max.
func (s *service) process(ctx context.Context, storage Storage, opts Options, files []dmapi.File, emails map[string]string, res *Result) error {
	mutated := false
	actionable := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if actionable >= opts.Max {
			break
		}
		res.Total++
		patch := ComputePatch(f, emails)
		if patch.Empty() {
			res.Skipped++
			continue
		}
		actionable++
		if opts.DryRun {
			res.Planned = append(res.Planned, PlannedChange{FileID: f.ID, StorageKey: f.StorageKey, Patch: patch})
			continue
		}

		if mutated && s.pause > 0 {
			if err := s.sleep(ctx, s.pause); err != nil {
				return err
			}
		}
		mutated = true

		if err := s.mutate(ctx, storage, f, patch); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			itemErr := &ItemError{FileID: f.ID, Path: f.Path(), Err: err}
			res.Errors++
			res.ItemErrors = append(res.ItemErrors, itemErr)
			if len(res.ErrorSamples) < maxErrorSamples {
				res.ErrorSamples = append(res.ErrorSamples, itemErr.Error())
			}
			continue
		}
		res.Updated++
		s.publishRepaired(ctx, f, patch)
	}
	return nil
}

// mutate patches by canonical id when known, else by storage key in the
// legacy application namespace. Only rate limiting is retried.
func (s *service) mutate(ctx context.Context, storage Storage, f dmapi.File, patch Patch) error {
	var op func(ctx context.Context) error
	switch {
	case f.ID != "":
		op = func(ctx context.Context) error { return storage.PatchMetadata(ctx, f.ID, patch) }
	case f.StorageKey != "":
		ref := dmapi.KeyRef{AppID: s.legacyAppID, Bucket: f.Bucket, StorageKey: f.StorageKey}
		op = func(ctx context.Context) error { return storage.PatchMetadataByKey(ctx, ref, patch) }
	default:
		return errors.New("file has neither id nor storage key")
	}
	_, err := s.retry.Do(ctx, op)
	return err
}

func (s *service) publishRepaired(ctx context.Context, f dmapi.File, patch Patch) {
	event := RepairedEvent{FileID: f.ID, StorageKey: f.StorageKey, Bucket: f.Bucket, Patch: patch}
	if err := s.publisher.Publish(ctx, pubsub.EventMediaMetadataRepaired, event); err != nil && s.logg != nil {
		s.logg.WarnErr(ctx, "publish media.metadata_repaired failed", err)
	}
}

// RepairedEvent is published for each mutated file.
type RepairedEvent struct {
	FileID     string `json:"file_id,omitempty"`
	StorageKey string `json:"storage_key,omitempty"`
	Bucket     string `json:"bucket,omitempty"`
	Patch      Patch  `json:"patch"`
}

func (s *service) finish(ctx context.Context, opts Options, res *Result) {
	s.metrics.AddBackfillItems("updated", res.Updated)
	s.metrics.AddBackfillItems("skipped", res.Skipped)
	s.metrics.AddBackfillItems("error", res.Errors)
	s.metrics.AddBackfillItems("planned", len(res.Planned))

	if s.runs != nil {
		if err := s.runs.Create(context.WithoutCancel(ctx), toRunRecord(opts, res)); err != nil && s.logg != nil {
			s.logg.WarnErr(ctx, "record backfill run failed", err)
		}
	}
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"total":   res.Total,
			"updated": res.Updated,
			"skipped": res.Skipped,
			"errors":  res.Errors,
			"planned": len(res.Planned),
		})
		s.logg.Info(ctx, "backfill finished")
	}
}
