package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindHTTPStatus(t *testing.T) {
	cases := map[ErrorKind]int{
		KindInvalidUsername:      http.StatusBadRequest,
		KindInvalidPassword:      http.StatusBadRequest,
		KindUsernameTaken:        http.StatusConflict,
		KindGhostCleanupFailed:   http.StatusConflict,
		KindAuthenticationFailed: http.StatusUnauthorized,
		KindProfileMissing:       http.StatusForbidden,
		KindUpstreamUnavailable:  http.StatusBadGateway,
		ErrorKind("Unknown"):     http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.HTTPStatus(), string(kind))
	}
}

func TestAuthErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("list identities: %w", ErrNotFound)
	err := fmt.Errorf("register: %w", NewAuthError(KindGhostCleanupFailed, "stuck", cause))

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindGhostCleanupFailed, kind)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "GhostCleanupFailed: stuck")

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}
