package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// LegacyTokenPayload captures the data available when minting a legacy JWT.
type LegacyTokenPayload struct {
	UserID string
	Email  string
	Role   string
}

// LegacyClaims is the HS256 token issued by the original Castingly login.
type LegacyClaims struct {
	UserID string `json:"userId,omitempty"`
	ID     string `json:"id,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID returns the user id, falling back through the claim spellings
// older clients used.
func (c *LegacyClaims) SubjectID() string {
	for _, candidate := range []string{c.UserID, c.ID, c.Subject} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v
		}
	}
	return ""
}
