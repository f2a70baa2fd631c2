package user

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

// MockProfileRepo is a mock implementation of ProfileRepo.
type MockProfileRepo struct {
	mock.Mock
}

func (m *MockProfileRepo) GetProfileByID(ctx context.Context, id string) (*types.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockProfileRepo) GetProfileByUsername(ctx context.Context, username string) (*types.Profile, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockProfileRepo) InsertProfile(ctx context.Context, p types.Profile) (*types.Profile, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockProfileRepo) UpsertProfile(ctx context.Context, p types.Profile) (*types.Profile, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockProfileRepo) ListProfiles(ctx context.Context) ([]types.Profile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Profile), args.Error(1)
}

func TestListUsersHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo := new(MockProfileRepo)
		repo.On("ListProfiles", mock.Anything).Return([]types.Profile{
			{ID: "id-1", Username: "bob", Email: "bob@demo.com", Role: "user"},
		}, nil).Once()
		h := NewHandlerImpl(NewUserService(repo, slog.Default()), slog.Default())

		w := httptest.NewRecorder()
		h.ListUsers(w, httptest.NewRequest(http.MethodGet, "/api/users", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var got []types.Profile
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "bob", got[0].Username)
		repo.AssertExpectations(t)
	})

	t.Run("EmptyArray", func(t *testing.T) {
		repo := new(MockProfileRepo)
		repo.On("ListProfiles", mock.Anything).Return(nil, nil).Once()
		h := NewHandlerImpl(NewUserService(repo, slog.Default()), slog.Default())

		w := httptest.NewRecorder()
		h.ListUsers(w, httptest.NewRequest(http.MethodGet, "/api/users", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("RepoFailure", func(t *testing.T) {
		repo := new(MockProfileRepo)
		repo.On("ListProfiles", mock.Anything).Return(nil, errors.New("db down")).Once()
		h := NewHandlerImpl(NewUserService(repo, slog.Default()), slog.Default())

		w := httptest.NewRecorder()
		h.ListUsers(w, httptest.NewRequest(http.MethodGet, "/api/users", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "Failed to retrieve users")
	})
}

func TestRoleOf(t *testing.T) {
	repo := new(MockProfileRepo)
	svc := NewUserService(repo, slog.Default())
	ctx := context.Background()

	repo.On("GetProfileByID", ctx, "id-admin").Return(&types.Profile{ID: "id-admin", Role: types.RoleAdmin}, nil).Once()
	repo.On("GetProfileByID", ctx, "id-ghost").Return(nil, types.ErrNotFound).Once()

	role, err := svc.RoleOf(ctx, "id-admin")
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, role)

	_, err = svc.RoleOf(ctx, "id-ghost")
	assert.ErrorIs(t, err, types.ErrNotFound)
	repo.AssertExpectations(t)
}
