package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/castingly/castingly-backend/api/middleware"
	"github.com/castingly/castingly-backend/api/responses"
	"github.com/castingly/castingly-backend/api/validators"
	"github.com/castingly/castingly-backend/internal/media"
	"github.com/castingly/castingly-backend/pkg/enums"
	pkgerrors "github.com/castingly/castingly-backend/pkg/errors"
	"github.com/castingly/castingly-backend/pkg/logger"
)

// multipartOverhead is headroom above the largest file for form fields and boundaries.
const multipartOverhead = 1 << 20

// UploadLimits bound how much of a request body the upload handler reads.
type UploadLimits struct {
	MaxMemory int64
	MaxBody   int64
}

// MediaUpload handles POST /api/media/actor/{actorId}/upload.
func MediaUpload(svc media.Service, limits UploadLimits, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "media service unavailable"))
			return
		}
		principal := middleware.PrincipalFromContext(r.Context())
		if principal == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		if limits.MaxBody > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, limits.MaxBody+multipartOverhead)
		}
		parsed, err := validators.ParseUploadForm(r, limits.MaxMemory)
		if err != nil {
			if isBodyTooLarge(err) {
				err = pkgerrors.Wrap(pkgerrors.CodePayloadTooLarge, err, "file too large")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer func() {
			if cerr := parsed.Close(); cerr != nil && logg != nil {
				logg.WarnErr(r.Context(), "release upload temp files failed", cerr)
			}
		}()

		result, err := svc.Upload(r.Context(), principal, media.UploadInput{
			ActorID:     chi.URLParam(r, "actorId"),
			Category:    parsed.Form.MediaCategory(),
			Title:       parsed.Form.Title,
			Filename:    parsed.Filename,
			ContentType: parsed.ContentType,
			Size:        parsed.Size,
			Body:        parsed.File,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteJSON(w, http.StatusOK, result)
	}
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "request body too large")
}

type mediaListResponse struct {
	Success bool                   `json:"success"`
	Files   []media.FileDescriptor `json:"files"`
}

// MediaList handles GET /api/media/actor/{actorId}?category=.
func MediaList(svc media.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "media service unavailable"))
			return
		}
		var category *enums.MediaCategory
		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
			parsed, err := enums.ParseMediaCategory(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
				return
			}
			category = &parsed
		}

		files, err := svc.List(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "actorId"), category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, mediaListResponse{Success: true, Files: files})
	}
}

// MediaProxy handles GET /api/media/proxy/{fileId} by redirecting to the
// file's current URL.
func MediaProxy(svc media.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "media service unavailable"))
			return
		}
		target, err := svc.ResolveProxy(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "fileId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "private, max-age=60")
		http.Redirect(w, r, target, http.StatusFound)
	}
}
