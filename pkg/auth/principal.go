package auth

import (
	"strings"

	"github.com/castingly/castingly-backend/pkg/enums"
)

// Source records which scheme authenticated a principal.
type Source string

const (
	SourceLegacyJWT  Source = "legacy_jwt"
	SourceDaileyCore Source = "dailey_core"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string     `json:"user_id"`
	Email  string     `json:"email,omitempty"`
	Role   enums.Role `json:"role"`
	Source Source     `json:"source"`
	// Token is the raw bearer credential. It is never cached or serialized.
	Token string `json:"-"`
}

// IsAdmin reports whether the principal holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == enums.RoleAdmin
}

// IsSelf reports whether the principal is the actor identified by actorID or actorEmail.
func (p *Principal) IsSelf(actorID, actorEmail string) bool {
	if p == nil {
		return false
	}
	if actorID != "" && p.UserID == actorID {
		return true
	}
	return actorEmail != "" && p.Email != "" && strings.EqualFold(strings.TrimSpace(p.Email), strings.TrimSpace(actorEmail))
}

// HasProviderToken reports whether the principal's bearer is a Dailey Core
// token usable as a per-user storage credential.
func (p *Principal) HasProviderToken() bool {
	return p != nil && p.Source == SourceDaileyCore && p.Token != ""
}
