package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/castingly/castingly-backend/pkg/auth"
	"github.com/castingly/castingly-backend/pkg/db/models"
	"github.com/castingly/castingly-backend/pkg/dmapi"
	"github.com/castingly/castingly-backend/pkg/enums"
	pkgerrors "github.com/castingly/castingly-backend/pkg/errors"
	"github.com/castingly/castingly-backend/pkg/logger"
	"github.com/castingly/castingly-backend/pkg/metrics"
	"github.com/castingly/castingly-backend/pkg/pubsub"
)

const (
	maxTitleLength = 200
	maxFolderScan  = 1000
)

// Storage is the subset of the media API the reconciler needs.
type Storage interface {
	Upload(ctx context.Context, in dmapi.UploadRequest) (*dmapi.File, error)
	ListAll(ctx context.Context, q dmapi.ListQuery, max int) ([]dmapi.File, error)
	GetFile(ctx context.Context, id string) (*dmapi.File, error)
	SignedURL(ctx context.Context, id string, ttl time.Duration) (string, error)
}

// UserStorageFunc returns storage scoped to an end-user credential.
type UserStorageFunc func(token string) Storage

type actorsRepository interface {
	FindByID(ctx context.Context, id string) (*models.Actor, error)
	UpdateAvatar(ctx context.Context, id, avatarURL string) error
}

// Service exposes the media ingestion reconciler.
type Service interface {
	Upload(ctx context.Context, principal *auth.Principal, input UploadInput) (*UploadResult, error)
	List(ctx context.Context, principal *auth.Principal, actorID string, category *enums.MediaCategory) ([]FileDescriptor, error)
	ResolveProxy(ctx context.Context, principal *auth.Principal, fileID string) (string, error)
}

// Config carries the service's static settings.
type Config struct {
	App           string
	PublicBaseURL string
	SignedURLTTL  time.Duration
	Policy        Policy
	Locator       Locator
}

// Deps are the collaborators of the service. Publisher and Metrics are optional.
type Deps struct {
	Actors         actorsRepository
	ServiceStorage Storage
	UserStorage    UserStorageFunc
	Publisher      pubsub.EventPublisher
	Metrics        *metrics.MediaMetrics
	Logger         *logger.Logger
}

type service struct {
	cfg         Config
	actors      actorsRepository
	storage     Storage
	userStorage UserStorageFunc
	publisher   pubsub.EventPublisher
	metrics     *metrics.MediaMetrics
	logg        *logger.Logger
	now         func() time.Time
}

// NewService constructs the media reconciler.
func NewService(cfg Config, deps Deps) (Service, error) {
	if deps.Actors == nil {
		return nil, fmt.Errorf("actors repository required")
	}
	if deps.ServiceStorage == nil {
		return nil, fmt.Errorf("service storage required")
	}
	if cfg.Locator.PublicBucket == "" || cfg.Locator.PrivateBucket == "" {
		return nil, fmt.Errorf("storage buckets required")
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = time.Hour
	}
	if cfg.Policy.limits == nil {
		cfg.Policy = DefaultPolicy()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = pubsub.NoopPublisher{}
	}
	return &service{
		cfg:         cfg,
		actors:      deps.Actors,
		storage:     deps.ServiceStorage,
		userStorage: deps.UserStorage,
		publisher:   publisher,
		metrics:     deps.Metrics,
		logg:        deps.Logger,
		now:         time.Now,
	}, nil
}

// UploadInput is one parsed upload request.
type UploadInput struct {
	ActorID     string
	Category    enums.MediaCategory
	Title       string
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// UploadResult is returned to the client as {success, file, id}.
type UploadResult struct {
	Success bool           `json:"success"`
	File    FileDescriptor `json:"file"`
	ID      string         `json:"id"`
	// Duplicate is true when the upload resolved to an existing stored file.
	Duplicate bool `json:"-"`
}

// UploadedEvent is published after a successful upload.
type UploadedEvent struct {
	FileID     string              `json:"file_id"`
	ActorID    string              `json:"actor_id"`
	Category   enums.MediaCategory `json:"category"`
	Bucket     string              `json:"bucket"`
	StorageKey string              `json:"storage_key,omitempty"`
	UploadedBy string              `json:"uploaded_by"`
	Duplicate  bool                `json:"duplicate"`
}

func (s *service) Upload(ctx context.Context, principal *auth.Principal, input UploadInput) (*UploadResult, error) {
	started := s.now()
	category := input.Category
	if category == "" {
		category = enums.MediaCategoryOther
	}

	result, err := s.upload(ctx, principal, input, category)
	outcome := metrics.UploadOutcomeStored
	switch {
	case err != nil && isRejection(err):
		outcome = metrics.UploadOutcomeRejected
	case err != nil:
		outcome = metrics.UploadOutcomeFailed
	case result.Duplicate:
		outcome = metrics.UploadOutcomeDuplicate
	}
	s.metrics.ObserveUpload(category.String(), outcome, input.Size, s.now().Sub(started))
	return result, err
}

func (s *service) upload(ctx context.Context, principal *auth.Principal, input UploadInput, category enums.MediaCategory) (*UploadResult, error) {
	actorID := strings.TrimSpace(input.ActorID)
	if actorID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	if !category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid media category")
	}
	if len([]rune(input.Title)) > maxTitleLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
	if input.Body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is required")
	}
	filename := sanitizeFileName(input.Filename)
	if filename == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file name is required")
	}

	access, err := s.authorize(ctx, principal, actorID)
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithActorID(ctx, actorID)
		ctx = s.logg.WithCategory(ctx, category.String())
	}

	if max := s.cfg.Policy.MaxBytes(category); max > 0 && input.Size > max {
		return nil, pkgerrors.New(pkgerrors.CodePayloadTooLarge, TooLargeMessage(category, max)).
			WithDetails(map[string]any{"max_bytes": max, "size": input.Size, "category": category})
	}

	storage := s.storageFor(principal, access)
	location := s.cfg.Locator.For(actorID, category)

	if s.cfg.Policy.CountLimited(category) {
		existing, err := storage.ListAll(ctx, dmapi.ListQuery{Bucket: location.Bucket, Folder: location.Folder}, maxFolderScan)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list existing media")
		}
		max := s.cfg.Policy.MaxCount(category)
		if len(DedupeVariants(existing)) >= max {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, LimitReachedMessage(category, max))
		}
	}

	contentType, err := resolveContentType(input.ContentType, filename, input.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUploadFailed, err, "upload failed")
	}

	meta := map[string]any{
		MetaActorID:    actorID,
		MetaCategory:   category.String(),
		MetaUploadedBy: principal.UserID,
		MetaApp:        s.cfg.App,
	}
	if access.actorEmail != "" {
		meta[MetaActorEmail] = access.actorEmail
	}
	if title := strings.TrimSpace(input.Title); title != "" {
		meta[MetaTitle] = title
	}

	duplicate := false
	stored, err := storage.Upload(ctx, dmapi.UploadRequest{
		Bucket:      location.Bucket,
		Folder:      location.Folder,
		Filename:    filename,
		ContentType: contentType,
		Public:      location.Visibility.IsPublic(),
		Metadata:    meta,
		Body:        input.Body,
	})
	if err != nil {
		if !dmapi.IsDuplicate(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUploadFailed, err, "upload failed")
		}
		match, findErr := s.findDuplicate(ctx, storage, location, filename)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUploadFailed, errors.Join(err, findErr), "upload failed")
		}
		if match == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUploadFailed, err, "upload failed: duplicate file could not be located")
		}
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "file_id", match.ID), "duplicate upload resolved to existing file")
		}
		stored = match
		duplicate = true
	}

	descriptor := Describe(*stored, s.cfg.PublicBaseURL)
	if descriptor.ActorID == "" {
		descriptor.ActorID = actorID
	}
	if descriptor.Title == "" {
		descriptor.Title = strings.TrimSpace(input.Title)
	}

	s.afterUpload(ctx, principal, category, descriptor, duplicate)

	return &UploadResult{
		Success:   true,
		File:      descriptor,
		ID:        descriptor.ID,
		Duplicate: duplicate,
	}, nil
}

func (s *service) findDuplicate(ctx context.Context, storage Storage, location Location, filename string) (*dmapi.File, error) {
	files, err := storage.ListAll(ctx, dmapi.ListQuery{Bucket: location.Bucket, Folder: location.Folder}, maxFolderScan)
	if err != nil {
		return nil, err
	}
	match, ok := MostRecentMatch(files, filename)
	if !ok {
		return nil, nil
	}
	return match, nil
}

// afterUpload runs the best-effort side effects; failures are only logged.
func (s *service) afterUpload(ctx context.Context, principal *auth.Principal, category enums.MediaCategory, d FileDescriptor, duplicate bool) {
	if category == enums.MediaCategoryHeadshot && d.ProxyURL != "" {
		if err := s.actors.UpdateAvatar(ctx, d.ActorID, d.ProxyURL); err != nil && s.logg != nil {
			s.logg.WarnErr(ctx, "persist actor avatar failed", err)
		}
	}

	event := UploadedEvent{
		FileID:     d.ID,
		ActorID:    d.ActorID,
		Category:   category,
		Bucket:     d.Bucket,
		StorageKey: d.StorageKey,
		UploadedBy: principal.UserID,
		Duplicate:  duplicate,
	}
	if err := s.publisher.Publish(ctx, pubsub.EventMediaUploaded, event); err != nil && s.logg != nil {
		s.logg.WarnErr(ctx, "publish media.uploaded failed", err)
	}
}

func (s *service) storageFor(principal *auth.Principal, access access) Storage {
	if access.self && principal.HasProviderToken() && s.userStorage != nil {
		return s.userStorage(principal.Token)
	}
	return s.storage
}

func isRejection(err error) bool {
	return pkgerrors.HasCode(err,
		pkgerrors.CodeValidation, pkgerrors.CodeUnauthorized, pkgerrors.CodeForbidden,
		pkgerrors.CodeConflict, pkgerrors.CodePayloadTooLarge, pkgerrors.CodeNotFound)
}

func sanitizeFileName(name string) string {
	if name == "" {
		return ""
	}
	clean := path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if clean == "" || clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case r == '/' || r == '\\' || unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}
