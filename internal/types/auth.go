package types

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// IdentityMetadata is the free-form metadata the identity store keeps next to a credential.
// It is only a hint once a profile row exists.
type IdentityMetadata struct {
	Username string `json:"username,omitempty" example:"bob"`
	Role     string `json:"role,omitempty" example:"user"`
}

// Identity is a credential record owned by the identity store.
type Identity struct {
	ID        string           `json:"id" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"`
	Email     string           `json:"email" example:"bob@demo.com"`
	Metadata  IdentityMetadata `json:"user_metadata"`
	CreatedAt time.Time        `json:"created_at"`
}

// IdentityUpdate carries the fields that may be overwritten on an existing identity.
// Nil fields are left untouched.
type IdentityUpdate struct {
	Password *string
	Metadata *IdentityMetadata
}

// Session is the credential handle returned to the client after a successful login.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type" example:"bearer"`
	ExpiresIn    int64  `json:"expires_in" example:"3600"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// User is the representation returned by register and login: the identity merged with its profile.
type User struct {
	ID        string           `json:"id" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"`
	Username  string           `json:"username" example:"bob"`
	Email     string           `json:"email" example:"bob@demo.com"`
	Role      string           `json:"role" example:"user"`
	Metadata  IdentityMetadata `json:"user_metadata"`
	CreatedAt time.Time        `json:"created_at"`
}

// LoginResult pairs the issued session with the reconciled user.
type LoginResult struct {
	Session *Session `json:"session"`
	User    *User    `json:"user"`
}

// Claims represents the custom claims included in the JWT access token.
// Subject carries the identity id.
type Claims struct {
	UserID   string `json:"uid,omitempty"`
	Username string `json:"usr,omitempty"`
	Email    string `json:"eml,omitempty"`
	Role     string `json:"rol,omitempty"`
	jwt.RegisteredClaims
}
