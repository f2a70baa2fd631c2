package user

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

var profileColumns = []string{"id", "username", "email", "role", "created_at"}

func newTestRepo(t *testing.T) (*PostgresProfileRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewPostgresProfileRepo(mockPool, slog.Default(), nil), mockPool
}

func TestGetProfileByUsername(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta("SELECT id, username, email, role, created_at FROM users WHERE username = $1")

	t.Run("Found", func(t *testing.T) {
		repo, mockPool := newTestRepo(t)
		now := time.Now()
		mockPool.ExpectQuery(query).WithArgs("bob").
			WillReturnRows(pgxmock.NewRows(profileColumns).AddRow("id-bob", "bob", "bob@demo.com", "user", now))

		p, err := repo.GetProfileByUsername(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, types.Profile{ID: "id-bob", Username: "bob", Email: "bob@demo.com", Role: "user", CreatedAt: now}, *p)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, mockPool := newTestRepo(t)
		mockPool.ExpectQuery(query).WithArgs("carol").WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetProfileByUsername(ctx, "carol")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("DatabaseError", func(t *testing.T) {
		repo, mockPool := newTestRepo(t)
		mockPool.ExpectQuery(query).WithArgs("bob").WillReturnError(errors.New("connection refused"))

		_, err := repo.GetProfileByUsername(ctx, "bob")
		require.Error(t, err)
		assert.NotErrorIs(t, err, types.ErrNotFound)
	})
}

func TestGetProfileByID(t *testing.T) {
	repo, mockPool := newTestRepo(t)
	mockPool.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).WithArgs("id-admin").
		WillReturnRows(pgxmock.NewRows(profileColumns).AddRow("id-admin", "admin", "admin@demo.com", "admin", time.Now()))

	p, err := repo.GetProfileByID(context.Background(), "id-admin")
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, p.Role)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestInsertProfile(t *testing.T) {
	ctx := context.Background()
	profile := types.Profile{ID: "id-bob", Username: "bob", Email: "bob@demo.com", Role: "user"}

	t.Run("Success", func(t *testing.T) {
		repo, mockPool := newTestRepo(t)
		now := time.Now()
		mockPool.ExpectQuery("INSERT INTO users").
			WithArgs("id-bob", "bob", "bob@demo.com", "user").
			WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))

		p, err := repo.InsertProfile(ctx, profile)
		require.NoError(t, err)
		assert.Equal(t, now, p.CreatedAt)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Conflict", func(t *testing.T) {
		repo, mockPool := newTestRepo(t)
		mockPool.ExpectQuery("INSERT INTO users").
			WithArgs("id-bob", "bob", "bob@demo.com", "user").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

		_, err := repo.InsertProfile(ctx, profile)
		assert.ErrorIs(t, err, types.ErrConflict)
	})
}

func TestUpsertProfile(t *testing.T) {
	repo, mockPool := newTestRepo(t)
	mockPool.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE")).
		WithArgs("id-carol", "carol", "carol@demo.com", "user").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	p, err := repo.UpsertProfile(context.Background(), types.Profile{ID: "id-carol", Username: "carol", Email: "carol@demo.com", Role: "user"})
	require.NoError(t, err)
	assert.Equal(t, "id-carol", p.ID)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestListProfiles(t *testing.T) {
	ctx := context.Background()

	t.Run("NewestFirst", func(t *testing.T) {
		repo, mockPool := newTestRepo(t)
		now := time.Now()
		mockPool.ExpectQuery("ORDER BY created_at DESC").
			WillReturnRows(pgxmock.NewRows(profileColumns).
				AddRow("id-2", "bob", "bob@demo.com", "user", now).
				AddRow("id-1", "admin", "admin@demo.com", "admin", now.Add(-time.Hour)))

		profiles, err := repo.ListProfiles(ctx)
		require.NoError(t, err)
		require.Len(t, profiles, 2)
		assert.Equal(t, "bob", profiles[0].Username)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("EmptyIsNotNil", func(t *testing.T) {
		repo, mockPool := newTestRepo(t)
		mockPool.ExpectQuery("ORDER BY created_at DESC").WillReturnRows(pgxmock.NewRows(profileColumns))

		profiles, err := repo.ListProfiles(ctx)
		require.NoError(t, err)
		assert.NotNil(t, profiles)
		assert.Empty(t, profiles)
	})
}
