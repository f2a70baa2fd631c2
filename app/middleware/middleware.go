package appMiddleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/minimarket-auth/config"
	"github.com/FACorreiaa/minimarket-auth/internal/api"
	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

// NoCache marks every response as not storable, for browsers and proxies alike.
func NoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next.ServeHTTP(w, r)
	})
}

// Authenticate validates an HS256 bearer token and puts the subject into the
// request context. Only routes that opt in are wrapped with it.
func Authenticate(logger *slog.Logger, jwtCfg config.JWTConfig) func(next http.Handler) http.Handler {
	secretKey := []byte(jwtCfg.SecretKey)
	if len(secretKey) == 0 {
		logger.Error("FATAL: JWT Secret Key is not configured!")
		panic("JWT Secret Key cannot be empty")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if jwtCfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(jwtCfg.Issuer))
	}
	if jwtCfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(jwtCfg.Audience))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				l.WarnContext(ctx, "Missing Authorization header")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header required")
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				l.WarnContext(ctx, "Invalid Authorization header format")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
				return
			}

			claims := &types.Claims{}
			token, err := parser.ParseWithClaims(headerParts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return secretKey, nil
			})
			if err != nil {
				l.WarnContext(ctx, "Token parsing/validation failed", slog.Any("error", err))
				errMsg := "Invalid or expired token"
				switch {
				case errors.Is(err, jwt.ErrTokenExpired):
					errMsg = "Token has expired"
				case errors.Is(err, jwt.ErrTokenMalformed):
					errMsg = "Malformed token"
				case errors.Is(err, jwt.ErrTokenSignatureInvalid):
					errMsg = "Invalid token signature"
				case errors.Is(err, jwt.ErrTokenInvalidIssuer):
					errMsg = "Invalid token issuer"
				case errors.Is(err, jwt.ErrTokenInvalidAudience):
					errMsg = "Invalid token audience"
				}
				api.ErrorResponse(w, r, http.StatusUnauthorized, errMsg)
				return
			}
			if !token.Valid {
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid token")
				return
			}

			userID := claims.Subject
			if userID == "" {
				userID = claims.UserID
			}
			if userID == "" {
				l.WarnContext(ctx, "Token carries no subject")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx = context.WithValue(ctx, UserIDKey, userID)
			l.DebugContext(ctx, "Authentication successful, claims added to context", slog.String("userID", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole runs after Authenticate. It looks the role up through resolve
// instead of trusting the token, since the profile table owns roles.
func RequireRole(logger *slog.Logger, resolve RoleResolver, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "RequireRole"), slog.String("required_role", role))

			userID, ok := GetUserIDFromContext(ctx)
			if !ok || userID == "" {
				l.ErrorContext(ctx, "User ID not found in context")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}

			actual, err := resolve(ctx, userID)
			if err != nil {
				if errors.Is(err, types.ErrNotFound) {
					l.WarnContext(ctx, "Authenticated user has no profile", slog.String("userID", userID))
					api.ErrorResponse(w, r, http.StatusForbidden, "Access denied")
					return
				}
				l.ErrorContext(ctx, "Failed to resolve user role", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusBadGateway, "Could not verify permissions")
				return
			}
			if actual != role {
				l.WarnContext(ctx, "Role check failed", slog.String("userID", userID), slog.String("actual_role", actual))
				api.ErrorResponse(w, r, http.StatusForbidden, "Access denied")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, UserRoleKey, actual)))
		})
	}
}
