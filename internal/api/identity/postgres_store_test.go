package identity

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

const carolID = "5b0c2c52-3e39-4a41-9c36-9a9a0c6f2f9e"

func newTestStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	tokens, err := NewTokenIssuer(testJWT)
	require.NoError(t, err)
	return NewPostgresStore(mockPool, tokens, bcrypt.MinCost, slog.Default(), nil), mockPool
}

func TestPostgresStoreCreateIdentity(t *testing.T) {
	ctx := context.Background()
	meta := types.IdentityMetadata{Username: "bob", Role: types.RoleUser}
	metaJSON := []byte(`{"username":"bob","role":"user"}`)

	t.Run("Success", func(t *testing.T) {
		store, mockPool := newTestStore(t)
		created := time.Now()
		mockPool.ExpectQuery("INSERT INTO identities").
			WithArgs(pgxmock.AnyArg(), "bob@demo.com", pgxmock.AnyArg(), metaJSON).
			WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

		ident, err := store.CreateIdentity(ctx, "bob@demo.com", "secret", meta)
		require.NoError(t, err)
		assert.NotEmpty(t, ident.ID)
		assert.Equal(t, "bob@demo.com", ident.Email)
		assert.Equal(t, meta, ident.Metadata)
		assert.Equal(t, created, ident.CreatedAt)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		store, mockPool := newTestStore(t)
		mockPool.ExpectQuery("INSERT INTO identities").
			WithArgs(pgxmock.AnyArg(), "bob@demo.com", pgxmock.AnyArg(), metaJSON).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "identities_email_key"})

		_, err := store.CreateIdentity(ctx, "bob@demo.com", "secret", meta)
		assert.ErrorIs(t, err, types.ErrIdentityExists)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("EmptyPasswordNeverHitsDatabase", func(t *testing.T) {
		store, mockPool := newTestStore(t)
		_, err := store.CreateIdentity(ctx, "bob@demo.com", "   ", meta)
		assert.ErrorIs(t, err, types.ErrWeakPassword)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("DatabaseDown", func(t *testing.T) {
		store, mockPool := newTestStore(t)
		mockPool.ExpectQuery("INSERT INTO identities").
			WithArgs(pgxmock.AnyArg(), "bob@demo.com", pgxmock.AnyArg(), metaJSON).
			WillReturnError(errors.New("connection reset"))

		_, err := store.CreateIdentity(ctx, "bob@demo.com", "secret", meta)
		require.Error(t, err)
		assert.NotErrorIs(t, err, types.ErrIdentityExists)
	})
}

func TestPostgresStoreVerifyPassword(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	columns := []string{"id", "email", "password_hash", "user_metadata", "created_at"}

	t.Run("Success", func(t *testing.T) {
		store, mockPool := newTestStore(t)
		mockPool.ExpectQuery("SELECT id, email, password_hash, user_metadata, created_at").
			WithArgs("carol@demo.com").
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow(carolID, "carol@demo.com", string(hash), []byte(`{"username":"carol","role":"user"}`), time.Now()))

		ident, session, err := store.VerifyPassword(ctx, "carol@demo.com", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, carolID, ident.ID)
		assert.Equal(t, "carol", ident.Metadata.Username)
		assert.NotEmpty(t, session.AccessToken)
		assert.Equal(t, "bearer", session.TokenType)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("WrongPassword", func(t *testing.T) {
		store, mockPool := newTestStore(t)
		mockPool.ExpectQuery("SELECT id, email, password_hash").
			WithArgs("carol@demo.com").
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow(carolID, "carol@demo.com", string(hash), []byte(`{}`), time.Now()))

		_, _, err := store.VerifyPassword(ctx, "carol@demo.com", "wrong")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		store, mockPool := newTestStore(t)
		mockPool.ExpectQuery("SELECT id, email, password_hash").
			WithArgs("nobody@demo.com").
			WillReturnError(pgx.ErrNoRows)

		_, _, err := store.VerifyPassword(ctx, "nobody@demo.com", "whatever")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})
}

func TestPostgresStoreListIdentities(t *testing.T) {
	store, mockPool := newTestStore(t)
	now := time.Now()
	mockPool.ExpectQuery("ORDER BY created_at, id").
		WithArgs(2, 2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "user_metadata", "created_at"}).
			AddRow("id-3", "dave@demo.com", []byte(`{"username":"dave"}`), now).
			AddRow("id-4", "erin@demo.com", []byte(nil), now))

	page, err := store.ListIdentities(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "dave", page[0].Metadata.Username)
	assert.Empty(t, page[1].Metadata.Username)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresStoreUpdateIdentity(t *testing.T) {
	ctx := context.Background()
	returning := []string{"id", "email", "user_metadata", "created_at"}

	t.Run("PasswordAndMetadata", func(t *testing.T) {
		store, mockPool := newTestStore(t)
		password := "new secret"
		meta := &types.IdentityMetadata{Username: "carol", Role: types.RoleUser}
		mockPool.ExpectQuery("UPDATE identities").
			WithArgs(carolID, pgxmock.AnyArg(), []byte(`{"username":"carol","role":"user"}`)).
			WillReturnRows(pgxmock.NewRows(returning).
				AddRow(carolID, "carol@demo.com", []byte(`{"username":"carol","role":"user"}`), time.Now()))

		ident, err := store.UpdateIdentity(ctx, carolID, types.IdentityUpdate{Password: &password, Metadata: meta})
		require.NoError(t, err)
		assert.Equal(t, carolID, ident.ID)
		assert.Equal(t, *meta, ident.Metadata)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("MetadataOnlyKeepsPassword", func(t *testing.T) {
		store, mockPool := newTestStore(t)
		meta := &types.IdentityMetadata{Username: "carol"}
		mockPool.ExpectQuery("UPDATE identities").
			WithArgs(carolID, (*string)(nil), []byte(`{"username":"carol"}`)).
			WillReturnRows(pgxmock.NewRows(returning).
				AddRow(carolID, "carol@demo.com", []byte(`{"username":"carol"}`), time.Now()))

		_, err := store.UpdateIdentity(ctx, carolID, types.IdentityUpdate{Metadata: meta})
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UnknownID", func(t *testing.T) {
		store, mockPool := newTestStore(t)
		mockPool.ExpectQuery("UPDATE identities").
			WithArgs("missing", (*string)(nil), []byte(nil)).
			WillReturnError(pgx.ErrNoRows)

		_, err := store.UpdateIdentity(ctx, "missing", types.IdentityUpdate{})
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}
