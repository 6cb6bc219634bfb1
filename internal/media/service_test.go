package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/castingly/castingly-backend/pkg/auth"
	"github.com/castingly/castingly-backend/pkg/db/models"
	"github.com/castingly/castingly-backend/pkg/dmapi"
	"github.com/castingly/castingly-backend/pkg/enums"
	pkgerrors "github.com/castingly/castingly-backend/pkg/errors"
)

type stubStorage struct {
	name       string
	listed     []dmapi.File
	listErr    error
	uploadErr  error
	uploaded   *dmapi.File
	file       *dmapi.File
	getErr     error
	signed     string
	uploads    []dmapi.UploadRequest
	listCalls  []dmapi.ListQuery
	signCalls  int
	uploadBody []byte
}

func (s *stubStorage) Upload(_ context.Context, in dmapi.UploadRequest) (*dmapi.File, error) {
	s.uploads = append(s.uploads, in)
	if in.Body != nil {
		s.uploadBody, _ = io.ReadAll(in.Body)
	}
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	if s.uploaded != nil {
		return s.uploaded, nil
	}
	return &dmapi.File{
		ID:               "file-1",
		StorageKey:       in.Folder + "/" + in.Filename,
		Bucket:           in.Bucket,
		Folder:           in.Folder,
		OriginalFilename: in.Filename,
		MimeType:         in.ContentType,
		IsPublic:         in.Public,
		Metadata:         in.Metadata,
	}, nil
}

func (s *stubStorage) ListAll(_ context.Context, q dmapi.ListQuery, _ int) ([]dmapi.File, error) {
	s.listCalls = append(s.listCalls, q)
	return s.listed, s.listErr
}

func (s *stubStorage) GetFile(context.Context, string) (*dmapi.File, error) {
	return s.file, s.getErr
}

func (s *stubStorage) SignedURL(context.Context, string, time.Duration) (string, error) {
	s.signCalls++
	return s.signed, nil
}

type stubActors struct {
	actors    map[string]*models.Actor
	avatars   map[string]string
	avatarErr error
}

func (a *stubActors) FindByID(_ context.Context, id string) (*models.Actor, error) {
	if actor, ok := a.actors[id]; ok {
		return actor, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (a *stubActors) UpdateAvatar(_ context.Context, id, avatarURL string) error {
	if a.avatarErr != nil {
		return a.avatarErr
	}
	if a.avatars == nil {
		a.avatars = map[string]string{}
	}
	a.avatars[id] = avatarURL
	return nil
}

type recordingPublisher struct {
	events []string
	data   []any
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, data any) error {
	p.events = append(p.events, eventType)
	p.data = append(p.data, data)
	return nil
}

type fixture struct {
	svc       Service
	storage   *stubStorage
	user      *stubStorage
	userToken string
	actors    *stubActors
	publisher *recordingPublisher
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	f := &fixture{
		storage:   &stubStorage{name: "service"},
		user:      &stubStorage{name: "user"},
		actors:    &stubActors{actors: map[string]*models.Actor{"42": {ID: "42", Email: "jane@castingly.test"}}},
		publisher: &recordingPublisher{},
	}
	svc, err := NewService(Config{
		App:           "castingly",
		PublicBaseURL: "https://api.castingly.test",
		Policy:        policy,
		Locator:       Locator{PublicBucket: "castingly-public", PrivateBucket: "castingly-private"},
	}, Deps{
		Actors:         f.actors,
		ServiceStorage: f.storage,
		UserStorage: func(token string) Storage {
			f.userToken = token
			return f.user
		},
		Publisher: f.publisher,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func jpegInput(actorID string, category enums.MediaCategory, size int64) UploadInput {
	return UploadInput{
		ActorID:     actorID,
		Category:    category,
		Title:       "Spring headshot",
		Filename:    "me.jpg",
		ContentType: "image/jpeg",
		Size:        size,
		Body:        bytes.NewReader([]byte("jpeg-bytes")),
	}
}

func legacySelf() *auth.Principal {
	return &auth.Principal{UserID: "42", Email: "jane@castingly.test", Role: enums.RoleActor, Source: auth.SourceLegacyJWT, Token: "legacy"}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
}

func TestNewServiceValidatesDeps(t *testing.T) {
	_, err := NewService(Config{Locator: Locator{PublicBucket: "a", PrivateBucket: "b"}}, Deps{ServiceStorage: &stubStorage{}})
	require.Error(t, err)
	_, err = NewService(Config{}, Deps{Actors: &stubActors{}, ServiceStorage: &stubStorage{}})
	require.Error(t, err)
}

func TestUploadRequiresPrincipal(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	_, err := f.svc.Upload(context.Background(), nil, jpegInput("42", enums.MediaCategoryHeadshot, 10))
	requireCode(t, err, pkgerrors.CodeUnauthorized)
	assert.Empty(t, f.storage.uploads)
}

func TestUploadForbiddenForOtherActor(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	other := &auth.Principal{UserID: "7", Email: "bob@castingly.test", Role: enums.RoleActor, Source: auth.SourceLegacyJWT}
	_, err := f.svc.Upload(context.Background(), other, jpegInput("42", enums.MediaCategoryHeadshot, 10))
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestUploadSelfByEmail(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	p := &auth.Principal{UserID: "core-user-1", Email: "JANE@castingly.test", Role: enums.RoleActor, Source: auth.SourceLegacyJWT}
	_, err := f.svc.Upload(context.Background(), p, jpegInput("42", enums.MediaCategoryGallery, 10))
	require.NoError(t, err)
	require.Len(t, f.storage.uploads, 1)
}

func TestUploadTooLargeSkipsStorage(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	_, err := f.svc.Upload(context.Background(), legacySelf(), jpegInput("42", enums.MediaCategoryHeadshot, 11*megabyte))
	requireCode(t, err, pkgerrors.CodePayloadTooLarge)
	assert.Empty(t, f.storage.uploads)
	assert.Empty(t, f.storage.listCalls)
}

func TestUploadCountLimitCollapsesVariants(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	for _, name := range []string{"a.jpg", "a_large.jpg", "a_thumb.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"} {
		f.storage.listed = append(f.storage.listed, dmapi.File{ID: name, OriginalFilename: name})
	}
	_, err := f.svc.Upload(context.Background(), legacySelf(), jpegInput("42", enums.MediaCategoryHeadshot, 10))
	requireCode(t, err, pkgerrors.CodeConflict)
	assert.Equal(t, "Limit reached: you can have up to 5 headshots", pkgerrors.As(err).Message())
	assert.Empty(t, f.storage.uploads)

	f.storage.listed = f.storage.listed[:4]
	_, err = f.svc.Upload(context.Background(), legacySelf(), jpegInput("42", enums.MediaCategoryHeadshot, 10))
	require.NoError(t, err)
}

func TestUploadImageLimitsDisabled(t *testing.T) {
	f := newFixture(t, Policy{limits: DefaultPolicy().limits, disableImageLimits: true})
	for i := 0; i < 10; i++ {
		f.storage.listed = append(f.storage.listed, dmapi.File{ID: string(rune('a' + i)), OriginalFilename: string(rune('a'+i)) + ".jpg"})
	}
	_, err := f.svc.Upload(context.Background(), legacySelf(), jpegInput("42", enums.MediaCategoryHeadshot, 10))
	require.NoError(t, err)
	assert.Empty(t, f.storage.listCalls)
}

func TestUploadHeadshotStoresAndPersistsAvatar(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	res, err := f.svc.Upload(context.Background(), legacySelf(), jpegInput("42", enums.MediaCategoryHeadshot, 10))
	require.NoError(t, err)

	require.Len(t, f.storage.uploads, 1)
	req := f.storage.uploads[0]
	assert.Equal(t, "castingly-public", req.Bucket)
	assert.Equal(t, "actors/42/headshots", req.Folder)
	assert.True(t, req.Public)
	assert.Equal(t, "image/jpeg", req.ContentType)
	assert.Equal(t, map[string]any{
		MetaActorID:    "42",
		MetaActorEmail: "jane@castingly.test",
		MetaCategory:   "headshot",
		MetaTitle:      "Spring headshot",
		MetaUploadedBy: "42",
		MetaApp:        "castingly",
	}, req.Metadata)
	assert.Equal(t, []byte("jpeg-bytes"), f.storage.uploadBody)
	assert.Empty(t, f.user.uploads, "legacy tokens use the service credential")

	assert.True(t, res.Success)
	assert.Equal(t, "file-1", res.ID)
	assert.Equal(t, enums.MediaCategoryHeadshot, res.File.Category)
	assert.Equal(t, "https://api.castingly.test/api/media/proxy/file-1", res.File.ProxyURL)
	assert.Equal(t, res.File.ProxyURL, f.actors.avatars["42"])
	assert.Equal(t, []string{"media.uploaded"}, f.publisher.events)
}

func TestUploadDefaultsToOtherPrivate(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	in := jpegInput("42", "", 10)
	in.Filename = "notes.txt"
	in.ContentType = ""
	res, err := f.svc.Upload(context.Background(), legacySelf(), in)
	require.NoError(t, err)
	req := f.storage.uploads[0]
	assert.Equal(t, "castingly-private", req.Bucket)
	assert.Equal(t, "actors/42/other", req.Folder)
	assert.False(t, req.Public)
	assert.Equal(t, "text/plain", req.ContentType)
	assert.Equal(t, enums.MediaCategoryOther, res.File.Category)
	assert.Empty(t, f.actors.avatars)
}

func TestUploadAvatarFailureIsNotSurfaced(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	f.actors.avatarErr = errors.New("db down")
	_, err := f.svc.Upload(context.Background(), legacySelf(), jpegInput("42", enums.MediaCategoryHeadshot, 10))
	require.NoError(t, err)
}

func TestUploadSelfWithCoreTokenUsesUserStorage(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	p := &auth.Principal{UserID: "42", Role: enums.RoleActor, Source: auth.SourceDaileyCore, Token: "core-token"}
	_, err := f.svc.Upload(context.Background(), p, jpegInput("42", enums.MediaCategoryReel, 10))
	require.NoError(t, err)
	assert.Empty(t, f.storage.uploads)
	require.Len(t, f.user.uploads, 1)
	assert.Equal(t, "core-token", f.userToken)
}

func TestUploadPrivilegedUsesServiceStorage(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	agent := &auth.Principal{UserID: "agent-1", Role: enums.RoleAgent, Source: auth.SourceDaileyCore, Token: "agent-token"}
	_, err := f.svc.Upload(context.Background(), agent, jpegInput("42", enums.MediaCategoryGallery, 10))
	require.NoError(t, err)
	require.Len(t, f.storage.uploads, 1)
	assert.Empty(t, f.user.uploads)
	assert.Equal(t, "agent-1", f.storage.uploads[0].Metadata[MetaUploadedBy])
}

func TestUploadUnknownActorOmitsEmail(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	admin := &auth.Principal{UserID: "root", Role: enums.RoleAdmin, Source: auth.SourceLegacyJWT}
	_, err := f.svc.Upload(context.Background(), admin, jpegInput("99", enums.MediaCategoryResume, 10))
	require.NoError(t, err)
	_, hasEmail := f.storage.uploads[0].Metadata[MetaActorEmail]
	assert.False(t, hasEmail)
}

func TestUploadDuplicateFallsBackToExisting(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	f.storage.uploadErr = &dmapi.APIError{Status: 409, Message: "file already exists"}
	f.storage.listed = []dmapi.File{
		{ID: "old", OriginalFilename: "me.jpg", UploadedAt: base, Folder: "actors/42/gallery"},
		{ID: "new", OriginalFilename: "me_large.jpg", UploadedAt: base.Add(time.Hour), Folder: "actors/42/gallery"},
	}
	res, err := f.svc.Upload(context.Background(), legacySelf(), jpegInput("42", enums.MediaCategoryGallery, 10))
	require.NoError(t, err)
	assert.Equal(t, "new", res.ID)
	assert.True(t, res.Duplicate)
	assert.Equal(t, "42", res.File.ActorID)
}

func TestUploadDuplicateWithoutMatchFails(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	f.storage.uploadErr = &dmapi.APIError{Status: 400, Code: "DUPLICATE_FILE", Message: "dup"}
	f.storage.listed = []dmapi.File{{ID: "x", OriginalFilename: "someone-else.jpg"}}
	_, err := f.svc.Upload(context.Background(), legacySelf(), jpegInput("42", enums.MediaCategoryGallery, 10))
	requireCode(t, err, pkgerrors.CodeUploadFailed)
}

func TestUploadOtherStorageErrorFails(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	f.storage.uploadErr = &dmapi.APIError{Status: 502, Message: "bad gateway"}
	_, err := f.svc.Upload(context.Background(), legacySelf(), jpegInput("42", enums.MediaCategoryGallery, 10))
	requireCode(t, err, pkgerrors.CodeUploadFailed)
	assert.Len(t, f.storage.listCalls, 1, "only the count check lists the folder")
	assert.Empty(t, f.publisher.events)
}

func TestUploadRejectsLongTitle(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	in := jpegInput("42", enums.MediaCategoryGallery, 10)
	in.Title = string(bytes.Repeat([]byte("a"), 201))
	_, err := f.svc.Upload(context.Background(), legacySelf(), in)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestListFiltersAndDedupes(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	f.storage.listed = []dmapi.File{
		{ID: "1", OriginalFilename: "me.jpg", Folder: "actors/42/headshots", IsPublic: true},
		{ID: "2", OriginalFilename: "me_thumb.jpg", Folder: "actors/42/headshots", IsPublic: true},
		{ID: "3", OriginalFilename: "cv.pdf", Folder: "actors/42/resumes"},
	}
	all, err := f.svc.List(context.Background(), legacySelf(), "42", nil)
	require.NoError(t, err)
	assert.Len(t, f.storage.listCalls, 2, "one recursive listing per bucket")
	assert.True(t, f.storage.listCalls[0].Recursive)
	// Both buckets return the same stub page, so collapse still yields two assets.
	assert.Len(t, all, 2)

	headshots := enums.MediaCategoryHeadshot
	only, err := f.svc.List(context.Background(), legacySelf(), "42", &headshots)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, enums.MediaCategoryHeadshot, only[0].Category)
}

func TestResolveProxy(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	f.storage.file = &dmapi.File{ID: "pub", IsPublic: true, PublicURL: "https://cdn.test/pub.jpg"}
	url, err := f.svc.ResolveProxy(context.Background(), nil, "pub")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/pub.jpg", url)

	f.storage.file = &dmapi.File{ID: "priv", Folder: "actors/42/resumes", OriginalFilename: "cv.pdf"}
	f.storage.signed = "https://signed.test/priv"
	_, err = f.svc.ResolveProxy(context.Background(), nil, "priv")
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	stranger := &auth.Principal{UserID: "7", Role: enums.RoleActor}
	_, err = f.svc.ResolveProxy(context.Background(), stranger, "priv")
	requireCode(t, err, pkgerrors.CodeForbidden)

	url, err = f.svc.ResolveProxy(context.Background(), legacySelf(), "priv")
	require.NoError(t, err)
	assert.Equal(t, "https://signed.test/priv", url)
	assert.Equal(t, 1, f.storage.signCalls)

	f.storage.getErr = &dmapi.APIError{Status: 404, Message: "not found"}
	_, err = f.svc.ResolveProxy(context.Background(), legacySelf(), "gone")
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd":  "passwd",
		`C:\photos\me.jpg`:  "me.jpg",
		"my headshot.jpg":   "my-headshot.jpg",
		"   ":               "",
		"..":                "",
		"clip\x00name.mp4":  "clipname.mp4",
	}
	for in, want := range cases {
		if got := sanitizeFileName(in); got != want {
			t.Errorf("sanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}
