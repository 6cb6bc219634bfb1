package enums

import (
	"fmt"
	"strings"
)

// Role is the application-level role of an authenticated principal.
type Role string

const (
	RoleActor           Role = "actor"
	RoleAgent           Role = "agent"
	RoleCastingDirector Role = "casting_director"
	RoleAdmin           Role = "admin"
)

var validRoles = []Role{
	RoleActor,
	RoleAgent,
	RoleCastingDirector,
	RoleAdmin,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanManageActorMedia reports whether the role may upload on behalf of any actor.
func (r Role) CanManageActorMedia() bool {
	return r == RoleAdmin || r == RoleAgent || r == RoleCastingDirector
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
