package auth

import (
	"strings"

	"github.com/castingly/castingly-backend/pkg/enums"
)

var roleAliases = map[string]enums.Role{
	"admin":            enums.RoleAdmin,
	"super_admin":      enums.RoleAdmin,
	"superadmin":       enums.RoleAdmin,
	"owner":            enums.RoleAdmin,
	"agent":            enums.RoleAgent,
	"talent_agent":     enums.RoleAgent,
	"manager":          enums.RoleAgent,
	"casting_director": enums.RoleCastingDirector,
	"director":         enums.RoleCastingDirector,
	"casting":          enums.RoleCastingDirector,
	"actor":            enums.RoleActor,
	"talent":           enums.RoleActor,
	"user":             enums.RoleActor,
}

var rolePrecedence = map[enums.Role]int{
	enums.RoleActor:           0,
	enums.RoleAgent:           1,
	enums.RoleCastingDirector: 2,
	enums.RoleAdmin:           3,
}

// MapProviderRoles folds identity-provider roles onto one application role.
// Roles may be namespaced ("tenant.admin", "castingly:agent"); the most
// privileged recognised role wins and unknown roles map to actor.
func MapProviderRoles(roles []string) enums.Role {
	best := enums.RoleActor
	for _, raw := range roles {
		role, ok := mapRole(raw)
		if !ok {
			continue
		}
		if rolePrecedence[role] > rolePrecedence[best] {
			best = role
		}
	}
	return best
}

// MapLegacyRole maps the single role string carried by legacy tokens.
func MapLegacyRole(raw string) enums.Role {
	if role, ok := mapRole(raw); ok {
		return role
	}
	return enums.RoleActor
}

func mapRole(raw string) (enums.Role, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.LastIndexAny(name, ".:/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	role, ok := roleAliases[name]
	return role, ok
}
