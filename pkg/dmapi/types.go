package dmapi

import (
	"io"
	"path"
	"strings"
	"time"
)

// File is a stored object as reported by the media API.
type File struct {
	ID               string         `json:"id"`
	StorageKey       string         `json:"storage_key"`
	Bucket           string         `json:"bucket_id"`
	Folder           string         `json:"folder_path"`
	OriginalFilename string         `json:"original_filename"`
	MimeType         string         `json:"mime_type"`
	Size             int64          `json:"file_size"`
	IsPublic         bool           `json:"is_public"`
	PublicURL        string         `json:"public_url"`
	ThumbnailURL     string         `json:"thumbnail_url"`
	Metadata         map[string]any `json:"metadata"`
	UploadedAt       time.Time      `json:"uploaded_at"`
}

// Path returns the object path used for convention-based inference.
// It prefers the storage key and falls back to folder + filename.
func (f File) Path() string {
	if key := strings.TrimSpace(f.StorageKey); key != "" {
		return key
	}
	if f.Folder == "" {
		return f.OriginalFilename
	}
	return path.Join(f.Folder, f.OriginalFilename)
}

// MetadataString returns a trimmed string metadata value, or "".
func (f File) MetadataString(key string) string {
	if f.Metadata == nil {
		return ""
	}
	v, ok := f.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// UploadRequest describes a single object upload.
type UploadRequest struct {
	Bucket      string
	Folder      string
	Filename    string
	ContentType string
	Public      bool
	Metadata    map[string]any
	// Body must implement io.Seeker for the request to be replayed after a
	// credential refresh.
	Body io.Reader
}

// ListQuery filters a file listing.
type ListQuery struct {
	Bucket string
	Folder string
	// Recursive includes files in nested folders below Folder.
	Recursive bool
	Limit     int
	Offset    int
}

// FileList is a single page of results.
type FileList struct {
	Files []File `json:"files"`
	Total int    `json:"total"`
}

// KeyRef addresses an object by storage key inside an application namespace.
type KeyRef struct {
	AppID      string `json:"app_id"`
	Bucket     string `json:"bucket_id,omitempty"`
	StorageKey string `json:"storage_key"`
}
