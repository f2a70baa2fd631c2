package types

import (
	"errors"
	"net/http"
)

var ErrNotFound = errors.New("requested item not found")
var ErrConflict = errors.New("item already exists or conflict")
var ErrUnauthenticated = errors.New("authentication required or invalid credentials")
var ErrForbidden = errors.New("action forbidden")

// ErrIdentityExists is returned by an identity store when the email is already registered.
var ErrIdentityExists = errors.New("identity already registered")

// ErrWeakPassword is returned by an identity store that rejects the password itself.
var ErrWeakPassword = errors.New("password rejected by identity store")

// ErrorKind tags the failures of the register and login flows.
type ErrorKind string

const (
	KindInvalidUsername      ErrorKind = "InvalidUsername"
	KindInvalidPassword      ErrorKind = "InvalidPassword"
	KindUsernameTaken        ErrorKind = "UsernameTaken"
	KindGhostCleanupFailed   ErrorKind = "GhostCleanupFailed"
	KindAuthenticationFailed ErrorKind = "AuthenticationFailed"
	KindProfileMissing       ErrorKind = "ProfileMissing"
	KindUpstreamUnavailable  ErrorKind = "UpstreamUnavailable"
)

// HTTPStatus maps a kind to the status code used at the HTTP boundary.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindInvalidUsername, KindInvalidPassword:
		return http.StatusBadRequest
	case KindUsernameTaken, KindGhostCleanupFailed:
		return http.StatusConflict
	case KindAuthenticationFailed:
		return http.StatusUnauthorized
	case KindProfileMissing:
		return http.StatusForbidden
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AuthError is the failure result of the register and login flows.
// Message is safe to show to the caller; Err keeps the underlying cause for logs.
type AuthError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func NewAuthError(kind ErrorKind, message string, err error) *AuthError {
	return &AuthError{Kind: kind, Message: message, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first AuthError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind, true
	}
	return "", false
}
