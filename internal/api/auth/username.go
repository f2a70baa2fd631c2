package auth

import (
	"strings"

	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

// DefaultEmailDomain is appended to usernames to build the identity email.
const DefaultEmailDomain = "demo.com"

// NormalizeUsername trims and lowercases raw, then drops every character
// outside [a-z0-9._-]. An empty result means the username is invalid.
func NormalizeUsername(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SyntheticEmail is the identity email for a normalized username.
func SyntheticEmail(username, domain string) string {
	if domain == "" {
		domain = DefaultEmailDomain
	}
	return username + "@" + domain
}

// RoleFor grants admin to the literal username "admin" and user to everyone else.
func RoleFor(username string) string {
	if username == "admin" {
		return types.RoleAdmin
	}
	return types.RoleUser
}
