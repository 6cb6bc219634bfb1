package media

import (
	"context"

	"github.com/castingly/castingly-backend/internal/repo"
	"github.com/castingly/castingly-backend/pkg/auth"
	pkgerrors "github.com/castingly/castingly-backend/pkg/errors"
)

type access struct {
	self       bool
	actorEmail string
}

// authorize decides whether principal may manage actorID's media. Self access
// matches on id or on the legacy actor email; otherwise the role must be
// privileged. A missing legacy row does not block either path.
func (s *service) authorize(ctx context.Context, principal *auth.Principal, actorID string) (access, error) {
	if principal == nil || principal.UserID == "" {
		return access{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	var a access
	actor, err := s.actors.FindByID(ctx, actorID)
	switch {
	case err == nil && actor != nil:
		a.actorEmail = actor.Email
	case err != nil && !repo.IsNotFound(err):
		if s.logg != nil {
			s.logg.WarnErr(ctx, "actor lookup failed", err)
		}
	}

	if principal.IsSelf(actorID, a.actorEmail) {
		a.self = true
		return a, nil
	}
	if principal.Role.CanManageActorMedia() {
		return a, nil
	}
	return access{}, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to manage this actor's media")
}
