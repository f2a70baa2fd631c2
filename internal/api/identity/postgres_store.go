package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	database "github.com/FACorreiaa/minimarket-auth/app/db"
	"github.com/FACorreiaa/minimarket-auth/app/observability/metrics"
	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

var _ Store = (*PostgresStore)(nil)

const identitiesTable = "identities"

// PostgresStore keeps credentials in the identities table and signs its own sessions.
type PostgresStore struct {
	db      database.Querier
	logger  *slog.Logger
	metrics *metrics.AppMetrics
	tokens  *TokenIssuer
	cost    int
}

func NewPostgresStore(db database.Querier, tokens *TokenIssuer, bcryptCost int, logger *slog.Logger, m *metrics.AppMetrics) *PostgresStore {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &PostgresStore{
		db:      db,
		logger:  logger,
		metrics: m,
		tokens:  tokens,
		cost:    bcryptCost,
	}
}

func startSpan(ctx context.Context, name, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", identitiesTable),
	}, attrs...)
	return otel.Tracer("IdentityStore").Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *PostgresStore) hash(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", fmt.Errorf("empty password: %w", types.ErrWeakPassword)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("password longer than 72 bytes: %w", types.ErrWeakPassword)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func scanIdentity(row pgx.Row, withHash bool) (*types.Identity, string, error) {
	var (
		ident types.Identity
		hash  string
		raw   []byte
		err   error
	)
	if withHash {
		err = row.Scan(&ident.ID, &ident.Email, &hash, &raw, &ident.CreatedAt)
	} else {
		err = row.Scan(&ident.ID, &ident.Email, &raw, &ident.CreatedAt)
	}
	if err != nil {
		return nil, "", err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &ident.Metadata); err != nil {
			return nil, "", fmt.Errorf("decode user_metadata for %s: %w", ident.ID, err)
		}
	}
	return &ident, hash, nil
}

func (s *PostgresStore) CreateIdentity(ctx context.Context, email, password string, meta types.IdentityMetadata) (*types.Identity, error) {
	ctx, span := startSpan(ctx, "CreateIdentity", "INSERT")
	defer span.End()

	l := s.logger.With(slog.String("method", "CreateIdentity"), slog.String("email", email))

	hashed, err := s.hash(password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Password rejected")
		return nil, err
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode user_metadata: %w", err)
	}

	ident := &types.Identity{
		ID:       uuid.NewString(),
		Email:    email,
		Metadata: meta,
	}

	start := time.Now()
	err = s.db.QueryRow(ctx,
		`INSERT INTO identities (id, email, password_hash, user_metadata)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		ident.ID, email, hashed, metaJSON).Scan(&ident.CreatedAt)
	s.metrics.RecordDBQuery(ctx, identitiesTable, "INSERT", start, err)
	if err != nil {
		span.RecordError(err)
		if database.IsUniqueViolation(err) {
			l.InfoContext(ctx, "Identity already registered")
			span.SetStatus(codes.Error, "Duplicate email")
			return nil, fmt.Errorf("email %s: %w", email, types.ErrIdentityExists)
		}
		l.ErrorContext(ctx, "Failed to insert identity", slog.Any("error", err))
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating identity: %w", err)
	}

	span.SetAttributes(attribute.String("identity.id", ident.ID))
	span.SetStatus(codes.Ok, "Identity created")
	l.DebugContext(ctx, "Identity created", slog.String("id", ident.ID))
	return ident, nil
}

func (s *PostgresStore) VerifyPassword(ctx context.Context, email, password string) (*types.Identity, *types.Session, error) {
	ctx, span := startSpan(ctx, "VerifyPassword", "SELECT")
	defer span.End()

	l := s.logger.With(slog.String("method", "VerifyPassword"), slog.String("email", email))

	start := time.Now()
	ident, hash, err := scanIdentity(s.db.QueryRow(ctx,
		`SELECT id, email, password_hash, user_metadata, created_at
		 FROM identities
		 WHERE email = $1`, email), true)
	if errors.Is(err, pgx.ErrNoRows) {
		s.metrics.RecordDBQuery(ctx, identitiesTable, "SELECT", start, nil)
		l.DebugContext(ctx, "No identity for email")
		span.SetStatus(codes.Error, "Unknown email")
		return nil, nil, fmt.Errorf("unknown email: %w", types.ErrUnauthenticated)
	}
	s.metrics.RecordDBQuery(ctx, identitiesTable, "SELECT", start, err)
	if err != nil {
		l.ErrorContext(ctx, "Failed to load identity", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, nil, fmt.Errorf("database error loading identity: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		l.DebugContext(ctx, "Password mismatch")
		span.SetStatus(codes.Error, "Password mismatch")
		return nil, nil, fmt.Errorf("password mismatch: %w", types.ErrUnauthenticated)
	}

	session, err := s.tokens.Issue(ident)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Token signing failed")
		return nil, nil, err
	}

	span.SetStatus(codes.Ok, "Password verified")
	return ident, session, nil
}

func (s *PostgresStore) ListIdentities(ctx context.Context, page, perPage int) ([]types.Identity, error) {
	ctx, span := startSpan(ctx, "ListIdentities", "SELECT",
		attribute.Int("page", page), attribute.Int("per_page", perPage))
	defer span.End()

	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	start := time.Now()
	rows, err := s.db.Query(ctx,
		`SELECT id, email, user_metadata, created_at
		 FROM identities
		 ORDER BY created_at, id
		 LIMIT $1 OFFSET $2`, perPage, (page-1)*perPage)
	if err != nil {
		s.metrics.RecordDBQuery(ctx, identitiesTable, "SELECT", start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error listing identities: %w", err)
	}
	defer rows.Close()

	identities := make([]types.Identity, 0, perPage)
	for rows.Next() {
		ident, _, err := scanIdentity(rows, false)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, *ident)
	}
	err = rows.Err()
	s.metrics.RecordDBQuery(ctx, identitiesTable, "SELECT", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Row iteration failed")
		return nil, fmt.Errorf("iterate identities: %w", err)
	}

	span.SetAttributes(attribute.Int("results.count", len(identities)))
	span.SetStatus(codes.Ok, "Identities listed")
	return identities, nil
}

func (s *PostgresStore) UpdateIdentity(ctx context.Context, id string, upd types.IdentityUpdate) (*types.Identity, error) {
	ctx, span := startSpan(ctx, "UpdateIdentity", "UPDATE", attribute.String("identity.id", id))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdateIdentity"), slog.String("id", id))

	var hashed *string
	if upd.Password != nil {
		h, err := s.hash(*upd.Password)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Password rejected")
			return nil, err
		}
		hashed = &h
	}

	var metaJSON []byte
	if upd.Metadata != nil {
		var err error
		if metaJSON, err = json.Marshal(upd.Metadata); err != nil {
			return nil, fmt.Errorf("encode user_metadata: %w", err)
		}
	}

	start := time.Now()
	ident, _, err := scanIdentity(s.db.QueryRow(ctx,
		`UPDATE identities
		 SET password_hash = COALESCE($2, password_hash),
		     user_metadata = COALESCE($3::jsonb, user_metadata),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING id, email, user_metadata, created_at`,
		id, hashed, metaJSON), false)
	if errors.Is(err, pgx.ErrNoRows) {
		s.metrics.RecordDBQuery(ctx, identitiesTable, "UPDATE", start, nil)
		l.WarnContext(ctx, "Identity not found for update")
		span.SetStatus(codes.Error, "Identity not found")
		return nil, fmt.Errorf("identity %s: %w", id, types.ErrNotFound)
	}
	s.metrics.RecordDBQuery(ctx, identitiesTable, "UPDATE", start, err)
	if err != nil {
		l.ErrorContext(ctx, "Failed to update identity", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return nil, fmt.Errorf("database error updating identity: %w", err)
	}

	l.InfoContext(ctx, "Identity updated")
	span.SetStatus(codes.Ok, "Identity updated")
	return ident, nil
}
