package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/castingly/castingly-backend/api/middleware"
	"github.com/castingly/castingly-backend/api/responses"
	"github.com/castingly/castingly-backend/api/validators"
	"github.com/castingly/castingly-backend/internal/backfill"
	"github.com/castingly/castingly-backend/pkg/db/models"
	"github.com/castingly/castingly-backend/pkg/enums"
	pkgerrors "github.com/castingly/castingly-backend/pkg/errors"
	"github.com/castingly/castingly-backend/pkg/logger"
)

// StorageForKey scopes media API calls to a caller-supplied API key.
type StorageForKey func(apiKey string) backfill.Storage

// AdminMediaBackfill handles POST /api/admin/media/backfill.
func AdminMediaBackfill(svc backfill.Service, defaultMax int, storageForKey StorageForKey, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "backfill service unavailable"))
			return
		}
		opts, err := parseBackfillOptions(r, defaultMax)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if key := middleware.StorageKeyFromContext(r.Context()); key != "" && storageForKey != nil {
			opts.Storage = storageForKey(key)
		}

		res, err := svc.Run(r.Context(), opts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, res)
	}
}

func parseBackfillOptions(r *http.Request, defaultMax int) (backfill.Options, error) {
	if defaultMax <= 0 {
		defaultMax = 500
	}
	q := r.URL.Query()
	opts := backfill.Options{
		ActorID: strings.TrimSpace(q.Get("userId")),
		Trigger: backfill.TriggerAPI,
	}
	dry, err := validators.ParseQueryBool(r, "dry", false)
	if err != nil {
		return opts, err
	}
	opts.DryRun = dry
	max, err := validators.ParseQueryInt(r, "max", defaultMax, 1, backfill.MaxItemsLimit)
	if err != nil {
		return opts, err
	}
	opts.Max = max
	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		category, err := enums.ParseMediaCategory(raw)
		if err != nil {
			return opts, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
		}
		opts.Category = &category
	}
	return opts, nil
}

// BackfillRunLister reads recent backfill run records.
type BackfillRunLister interface {
	Recent(ctx context.Context, limit int) ([]models.BackfillRun, error)
}

// AdminBackfillRuns handles GET /api/admin/media/backfill/runs.
func AdminBackfillRuns(runs BackfillRunLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runs == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "run history unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := runs.Recent(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list backfill runs"))
			return
		}
		responses.WriteSuccess(w, list)
	}
}
