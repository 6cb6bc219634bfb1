package media

import (
	"net/url"
	"strings"
	"time"

	"github.com/castingly/castingly-backend/pkg/dmapi"
	"github.com/castingly/castingly-backend/pkg/enums"
)

// Metadata keys written on upload and repaired by backfill.
const (
	MetaActorID    = "actor_id"
	MetaActorEmail = "actor_email"
	MetaCategory   = "category"
	MetaTitle      = "title"
	MetaUploadedBy = "uploaded_by"
	MetaApp        = "app"
)

// ProxyPath is the route that redirects to a file's current URL.
const ProxyPath = "/api/media/proxy/"

// FileDescriptor is the normalized view of a stored file returned to clients.
type FileDescriptor struct {
	ID           string              `json:"id"`
	StorageKey   string              `json:"storage_key,omitempty"`
	ActorID      string              `json:"actor_id,omitempty"`
	Category     enums.MediaCategory `json:"category"`
	Visibility   enums.Visibility    `json:"visibility"`
	Bucket       string              `json:"bucket,omitempty"`
	Folder       string              `json:"folder,omitempty"`
	Name         string              `json:"name"`
	Title        string              `json:"title,omitempty"`
	MimeType     string              `json:"mime_type,omitempty"`
	Size         int64               `json:"size"`
	UploadedAt   time.Time           `json:"uploaded_at"`
	URL          string              `json:"url,omitempty"`
	ThumbnailURL string              `json:"thumbnail_url,omitempty"`
	ProxyURL     string              `json:"proxy_url,omitempty"`
}

// ProxyURL derives the stable proxy URL for a file id.
func ProxyURL(publicBaseURL, fileID string) string {
	if strings.TrimSpace(fileID) == "" {
		return ""
	}
	return strings.TrimRight(publicBaseURL, "/") + ProxyPath + url.PathEscape(fileID)
}

// Describe normalizes a stored file. Explicit metadata wins; the storage path
// fills what metadata lacks.
func Describe(f dmapi.File, publicBaseURL string) FileDescriptor {
	inferred := InferFromPath(f.Path(), f.OriginalFilename)

	category, err := enums.ParseMediaCategory(f.MetadataString(MetaCategory))
	if err != nil {
		category = inferred.Category
	}
	if category == "" {
		category = enums.MediaCategoryOther
	}

	actorID := f.MetadataString(MetaActorID)
	if actorID == "" {
		actorID = inferred.ActorID
	}

	visibility := enums.VisibilityPrivate
	if f.IsPublic {
		visibility = enums.VisibilityPublic
	}

	id := f.ID
	if id == "" {
		id = f.StorageKey
	}

	d := FileDescriptor{
		ID:           id,
		StorageKey:   f.StorageKey,
		ActorID:      actorID,
		Category:     category,
		Visibility:   visibility,
		Bucket:       f.Bucket,
		Folder:       f.Folder,
		Name:         fileName(f),
		Title:        f.MetadataString(MetaTitle),
		MimeType:     f.MimeType,
		Size:         f.Size,
		UploadedAt:   f.UploadedAt,
		ThumbnailURL: f.ThumbnailURL,
		ProxyURL:     ProxyURL(publicBaseURL, f.ID),
	}
	if f.IsPublic {
		d.URL = f.PublicURL
	}
	return d
}
