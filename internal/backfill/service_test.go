package backfill

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castingly/castingly-backend/pkg/config"
	"github.com/castingly/castingly-backend/pkg/db/models"
	"github.com/castingly/castingly-backend/pkg/dmapi"
	"github.com/castingly/castingly-backend/pkg/enums"
	pkgerrors "github.com/castingly/castingly-backend/pkg/errors"
)

type fakeStorage struct {
	mu      sync.Mutex
	files   map[string][]dmapi.File
	patches []string
	byKey   []dmapi.KeyRef
	// failures scripts errors per file id, consumed in order.
	failures map[string][]error
}

func (s *fakeStorage) ListAll(_ context.Context, q dmapi.ListQuery, _ int) ([]dmapi.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dmapi.File, len(s.files[q.Bucket]))
	copy(out, s.files[q.Bucket])
	return out, nil
}

func (s *fakeStorage) PatchMetadata(_ context.Context, id string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if errs := s.failures[id]; len(errs) > 0 {
		s.failures[id] = errs[1:]
		s.patches = append(s.patches, id)
		return errs[0]
	}
	s.patches = append(s.patches, id)
	s.apply(func(f dmapi.File) bool { return f.ID == id }, patch)
	return nil
}

func (s *fakeStorage) PatchMetadataByKey(_ context.Context, ref dmapi.KeyRef, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey = append(s.byKey, ref)
	s.apply(func(f dmapi.File) bool { return f.StorageKey == ref.StorageKey }, patch)
	return nil
}

func (s *fakeStorage) apply(match func(dmapi.File) bool, patch map[string]any) {
	for bucket, files := range s.files {
		for i := range files {
			if !match(files[i]) {
				continue
			}
			meta := map[string]any{}
			for k, v := range files[i].Metadata {
				meta[k] = v
			}
			for k, v := range patch {
				meta[k] = v
			}
			s.files[bucket][i].Metadata = meta
		}
	}
}

type fakeActors struct{ emails map[string]string }

func (a fakeActors) EmailsByIDs(_ context.Context, ids []string) (map[string]string, error) {
	out := map[string]string{}
	for _, id := range ids {
		if e, ok := a.emails[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

type fakeLock struct {
	held     bool
	released int
}

func (l *fakeLock) Acquire(context.Context) (bool, error) {
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLock) Release(context.Context) error {
	l.held = false
	l.released++
	return nil
}

type fakeRuns struct{ runs []*models.BackfillRun }

func (r *fakeRuns) Create(_ context.Context, run *models.BackfillRun) error {
	r.runs = append(r.runs, run)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		DMAPI: config.DMAPIConfig{PublicBucket: "pub", PrivateBucket: "priv", LegacyAppID: "castingly-legacy"},
		Backfill: config.BackfillConfig{
			DefaultMax:       500,
			MutationPause:    120 * time.Millisecond,
			RetryMaxAttempts: 12,
			RetryBaseDelay:   time.Second,
			RetryMultiplier:  1.8,
		},
	}
}

type harness struct {
	svc     *service
	storage *fakeStorage
	lock    *fakeLock
	runs    *fakeRuns
	sleeps  []time.Duration
}

func newHarness(t *testing.T, files map[string][]dmapi.File) *harness {
	t.Helper()
	h := &harness{
		storage: &fakeStorage{files: files, failures: map[string][]error{}},
		lock:    &fakeLock{},
		runs:    &fakeRuns{},
	}
	svc, err := NewService(testConfig(), Deps{
		Storage: h.storage,
		Actors:  fakeActors{emails: map[string]string{"42": "jane@castingly.test"}},
		Lock:    h.lock,
		Runs:    h.runs,
	})
	require.NoError(t, err)
	h.svc = svc.(*service)
	record := func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	h.svc.sleep = record
	h.svc.retry.Sleep = record
	return h
}

func driftFiles() map[string][]dmapi.File {
	return map[string][]dmapi.File{
		"pub": {
			{ID: "1", StorageKey: "actors/42/headshots/me.jpg", Bucket: "pub", Metadata: map[string]any{"category": "gallery", "actor_id": "42"}},
			{ID: "2", StorageKey: "actors/42/gallery/beach.jpg", Bucket: "pub", Metadata: map[string]any{"category": "gallery", "actor_id": "42"}},
			{StorageKey: "actors/42/reels/demo.mp4", Bucket: "pub"},
		},
		"priv": {
			{ID: "4", StorageKey: "actors/42/uploads/cv.pdf", Bucket: "priv", Metadata: map[string]any{"actor_id": "42"}},
		},
	}
}

func TestRunDryRunPlansWithoutMutating(t *testing.T) {
	h := newHarness(t, driftFiles())
	res, err := h.svc.Run(context.Background(), Options{ActorID: "42", DryRun: true})
	require.NoError(t, err)

	assert.True(t, res.OK)
	assert.True(t, res.DryRun)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, res.Planned, 3)
	assert.Empty(t, h.storage.patches)
	assert.Empty(t, h.storage.byKey)
	assert.Empty(t, h.sleeps)
}

func TestRunRepairsAndIsIdempotent(t *testing.T) {
	h := newHarness(t, driftFiles())
	res, err := h.svc.Run(context.Background(), Options{ActorID: "42"})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 3, res.Updated)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Errors)
	assert.Equal(t, []string{"1", "4"}, h.storage.patches)
	require.Len(t, h.storage.byKey, 1)
	assert.Equal(t, dmapi.KeyRef{AppID: "castingly-legacy", Bucket: "pub", StorageKey: "actors/42/reels/demo.mp4"}, h.storage.byKey[0])
	assert.Equal(t, []time.Duration{120 * time.Millisecond, 120 * time.Millisecond}, h.sleeps)

	reel := h.storage.files["pub"][2]
	assert.Equal(t, "reel", reel.MetadataString("category"))
	assert.Equal(t, "jane@castingly.test", reel.MetadataString("actor_email"))

	again, err := h.svc.Run(context.Background(), Options{ActorID: "42"})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Updated)
	assert.Equal(t, 4, again.Skipped)
	assert.Len(t, h.runs.runs, 2)
	assert.Equal(t, 2, h.lock.released)
}

func TestRunRetriesOnlyRateLimits(t *testing.T) {
	h := newHarness(t, driftFiles())
	limited := &dmapi.APIError{Status: 429, Message: "slow down"}
	h.storage.failures["1"] = []error{limited, limited, limited}
	h.storage.failures["4"] = []error{&dmapi.APIError{Status: 500, Message: "boom"}}

	res, err := h.svc.Run(context.Background(), Options{ActorID: "42"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.Errors)
	require.Len(t, res.ItemErrors, 1)
	assert.Equal(t, "4", res.ItemErrors[0].FileID)
	assert.Len(t, res.ErrorSamples, 1)
	assert.Equal(t, []string{"1", "1", "1", "1", "4"}, h.storage.patches)

	// Three backoff waits for file 1, then the pauses before items 3 and 4.
	assert.Equal(t, []time.Duration{
		time.Second,
		1800 * time.Millisecond,
		3240 * time.Millisecond,
		120 * time.Millisecond,
		120 * time.Millisecond,
	}, h.sleeps)
}

func TestNewServiceDefaultsRetryPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Backfill.RetryMaxAttempts = 0
	cfg.Backfill.RetryBaseDelay = 0
	cfg.Backfill.RetryMultiplier = 0

	svc, err := NewService(cfg, Deps{Storage: &fakeStorage{}, Actors: fakeActors{}})
	require.NoError(t, err)
	policy := svc.(*service).retry
	assert.Equal(t, 12, policy.MaxAttempts)
	assert.Equal(t, time.Second, policy.BaseDelay)
	assert.InDelta(t, 1.8, policy.Multiplier, 1e-9)
	assert.Equal(t, 1800*time.Millisecond, policy.Delay(2))

	cfg.Backfill.RetryMaxAttempts = 4
	svc, err = NewService(cfg, Deps{Storage: &fakeStorage{}, Actors: fakeActors{}})
	require.NoError(t, err)
	assert.Equal(t, 4, svc.(*service).retry.MaxAttempts)
}

func TestRunCapsErrorSamples(t *testing.T) {
	var files []dmapi.File
	for i := 0; i < 8; i++ {
		id := string(rune('a' + i))
		files = append(files, dmapi.File{ID: id, StorageKey: "actors/42/headshots/" + id + ".jpg"})
	}
	h := newHarness(t, map[string][]dmapi.File{"pub": files})
	for _, f := range files {
		h.storage.failures[f.ID] = []error{errors.New("nope")}
	}
	res, err := h.svc.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 8, res.Errors)
	assert.Len(t, res.ErrorSamples, maxErrorSamples)
	assert.True(t, res.OK)
}

func TestRunCategoryFilterAndMax(t *testing.T) {
	h := newHarness(t, driftFiles())
	headshot := enums.MediaCategoryHeadshot
	res, err := h.svc.Run(context.Background(), Options{Category: &headshot, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Planned, 1)
	assert.Equal(t, "1", res.Planned[0].FileID)

	capped, err := h.svc.Run(context.Background(), Options{Max: 2, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 3, capped.Total)
	assert.Equal(t, 1, capped.Skipped)
	require.Len(t, capped.Planned, 2)
	assert.Equal(t, "1", capped.Planned[0].FileID)
	assert.Equal(t, "actors/42/reels/demo.mp4", capped.Planned[1].StorageKey)
}

func TestRunMaxCountsOnlyFilesNeedingChange(t *testing.T) {
	clean := map[string]any{"category": "headshot", "actor_id": "42"}
	files := map[string][]dmapi.File{
		"pub": {
			{ID: "h1", StorageKey: "actors/42/headshots/a.jpg", Bucket: "pub", Metadata: clean},
			{ID: "h2", StorageKey: "actors/42/headshots/b.jpg", Bucket: "pub", Metadata: clean},
			{ID: "h3", StorageKey: "actors/42/headshots/c.jpg", Bucket: "pub", Metadata: clean},
			{ID: "drift", StorageKey: "actors/42/headshots/d.jpg", Bucket: "pub", Metadata: map[string]any{"category": "gallery", "actor_id": "42"}},
		},
	}
	h := newHarness(t, files)

	res, err := h.svc.Run(context.Background(), Options{Max: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, 1, res.Updated)
	assert.False(t, res.ScanTruncated)
	assert.Equal(t, []string{"drift"}, h.storage.patches)
	assert.Equal(t, "headshot", h.storage.files["pub"][3].MetadataString("category"))
}

func TestRunValidatesOptions(t *testing.T) {
	h := newHarness(t, driftFiles())
	_, err := h.svc.Run(context.Background(), Options{Max: MaxItemsLimit + 1})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	bogus := enums.MediaCategory("bogus")
	_, err = h.svc.Run(context.Background(), Options{Category: &bogus})
	require.Error(t, err)
}

func TestRunConflictsWhileLocked(t *testing.T) {
	h := newHarness(t, driftFiles())
	h.lock.held = true
	_, err := h.svc.Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Empty(t, h.storage.patches)
}

func TestRunUsesOverrideStorage(t *testing.T) {
	h := newHarness(t, map[string][]dmapi.File{})
	override := &fakeStorage{files: driftFiles(), failures: map[string][]error{}}
	res, err := h.svc.Run(context.Background(), Options{Storage: override, Trigger: TriggerCLI})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Updated)
	assert.Len(t, override.patches, 2)
	require.Len(t, h.runs.runs, 1)
	assert.Equal(t, "cli", h.runs.runs[0].Trigger)
}
