package media

import (
	"context"
	"strings"

	"github.com/castingly/castingly-backend/pkg/auth"
	"github.com/castingly/castingly-backend/pkg/dmapi"
	"github.com/castingly/castingly-backend/pkg/enums"
	pkgerrors "github.com/castingly/castingly-backend/pkg/errors"
)

// List returns the actor's files, newest first, with size variants collapsed.
// A nil category lists every category.
func (s *service) List(ctx context.Context, principal *auth.Principal, actorID string, category *enums.MediaCategory) ([]FileDescriptor, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	if category != nil && !category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid media category")
	}
	access, err := s.authorize(ctx, principal, actorID)
	if err != nil {
		return nil, err
	}
	storage := s.storageFor(principal, access)

	var queries []dmapi.ListQuery
	if category != nil {
		loc := s.cfg.Locator.For(actorID, *category)
		queries = append(queries, dmapi.ListQuery{Bucket: loc.Bucket, Folder: loc.Folder})
	} else {
		for _, bucket := range s.cfg.Locator.Buckets() {
			queries = append(queries, dmapi.ListQuery{Bucket: bucket, Folder: ActorRoot(actorID), Recursive: true})
		}
	}

	var files []dmapi.File
	for _, q := range queries {
		page, err := storage.ListAll(ctx, q, maxFolderScan)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list media")
		}
		files = append(files, page...)
	}

	out := make([]FileDescriptor, 0, len(files))
	for _, f := range DedupeVariants(files) {
		d := Describe(f, s.cfg.PublicBaseURL)
		if category != nil && d.Category != *category {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// ResolveProxy returns the URL a proxy request should redirect to. Public
// files resolve without a principal; private files get a fresh signed URL
// for the owning actor or a privileged caller.
func (s *service) ResolveProxy(ctx context.Context, principal *auth.Principal, fileID string) (string, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "file id is required")
	}
	file, err := s.storage.GetFile(ctx, fileID)
	if err != nil {
		if dmapi.IsNotFound(err) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "file not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve file")
	}
	if file.IsPublic && file.PublicURL != "" {
		return file.PublicURL, nil
	}

	if principal == nil {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	d := Describe(*file, s.cfg.PublicBaseURL)
	if d.ActorID == "" {
		if !principal.IsAdmin() {
			return "", pkgerrors.New(pkgerrors.CodeForbidden, "file has no owning actor")
		}
	} else if _, err := s.authorize(ctx, principal, d.ActorID); err != nil {
		return "", err
	}

	signed, err := s.storage.SignedURL(ctx, file.ID, s.cfg.SignedURLTTL)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign file url")
	}
	return signed, nil
}
