package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/minimarket-auth/config"
	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

// TokenIssuer signs HS256 access tokens for the self-hosted store.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewTokenIssuer(cfg config.JWTConfig) (*TokenIssuer, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("jwt secret key is required to issue sessions")
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{
		secret:   []byte(cfg.SecretKey),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Issue returns a bearer session whose subject is the identity id.
func (t *TokenIssuer) Issue(ident *types.Identity) (*types.Session, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)

	claims := types.Claims{
		UserID:   ident.ID,
		Username: ident.Metadata.Username,
		Email:    ident.Email,
		Role:     ident.Metadata.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if t.audience != "" {
		claims.Audience = jwt.ClaimStrings{t.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &types.Session{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int64(t.ttl / time.Second),
		ExpiresAt:   expiresAt.Unix(),
	}, nil
}
