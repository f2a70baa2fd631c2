package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/minimarket-auth/app/db"
	"github.com/FACorreiaa/minimarket-auth/app/observability/metrics"
	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

var _ ProfileRepo = (*PostgresProfileRepo)(nil)

const usersTable = "users"

// ProfileRepo is the profile table. Lookups return types.ErrNotFound when no row matches.
type ProfileRepo interface {
	GetProfileByID(ctx context.Context, id string) (*types.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (*types.Profile, error)
	// InsertProfile returns types.ErrConflict when the id or username is already taken.
	InsertProfile(ctx context.Context, p types.Profile) (*types.Profile, error)
	// UpsertProfile overwrites username, email and role of an existing id.
	UpsertProfile(ctx context.Context, p types.Profile) (*types.Profile, error)
	ListProfiles(ctx context.Context) ([]types.Profile, error)
}

type PostgresProfileRepo struct {
	logger  *slog.Logger
	db      database.Querier
	metrics *metrics.AppMetrics
}

func NewPostgresProfileRepo(db database.Querier, logger *slog.Logger, m *metrics.AppMetrics) *PostgresProfileRepo {
	return &PostgresProfileRepo{
		logger:  logger,
		db:      db,
		metrics: m,
	}
}

func (r *PostgresProfileRepo) span(ctx context.Context, name, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", usersTable),
	}, attrs...)
	return otel.Tracer("ProfileRepo").Start(ctx, name, trace.WithAttributes(attrs...))
}

func (r *PostgresProfileRepo) getOne(ctx context.Context, name, where string, arg string) (*types.Profile, error) {
	ctx, span := r.span(ctx, name, "SELECT", attribute.String("db.lookup", arg))
	defer span.End()

	var p types.Profile
	start := time.Now()
	err := r.db.QueryRow(ctx,
		"SELECT id, username, email, role, created_at FROM users WHERE "+where+" = $1", arg).
		Scan(&p.ID, &p.Username, &p.Email, &p.Role, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		r.metrics.RecordDBQuery(ctx, usersTable, "SELECT", start, nil)
		span.SetStatus(codes.Ok, "Profile not found")
		return nil, fmt.Errorf("profile %s=%s: %w", where, arg, types.ErrNotFound)
	}
	r.metrics.RecordDBQuery(ctx, usersTable, "SELECT", start, err)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query profile", slog.String("method", name), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching profile: %w", err)
	}

	span.SetStatus(codes.Ok, "Profile found")
	return &p, nil
}

func (r *PostgresProfileRepo) GetProfileByID(ctx context.Context, id string) (*types.Profile, error) {
	return r.getOne(ctx, "GetProfileByID", "id", id)
}

func (r *PostgresProfileRepo) GetProfileByUsername(ctx context.Context, username string) (*types.Profile, error) {
	return r.getOne(ctx, "GetProfileByUsername", "username", username)
}

func (r *PostgresProfileRepo) InsertProfile(ctx context.Context, p types.Profile) (*types.Profile, error) {
	ctx, span := r.span(ctx, "InsertProfile", "INSERT", attribute.String("db.user.id", p.ID))
	defer span.End()

	l := r.logger.With(slog.String("method", "InsertProfile"), slog.String("id", p.ID), slog.String("username", p.Username))

	start := time.Now()
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (id, username, email, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		p.ID, p.Username, p.Email, p.Role).Scan(&p.CreatedAt)
	r.metrics.RecordDBQuery(ctx, usersTable, "INSERT", start, err)
	if err != nil {
		span.RecordError(err)
		if database.IsUniqueViolation(err) {
			l.WarnContext(ctx, "Profile insert conflicts with an existing row", slog.Any("error", err))
			span.SetStatus(codes.Error, "Duplicate profile")
			return nil, fmt.Errorf("profile %s: %w", p.Username, types.ErrConflict)
		}
		l.ErrorContext(ctx, "Failed to insert profile", slog.Any("error", err))
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error inserting profile: %w", err)
	}

	l.InfoContext(ctx, "Profile created")
	span.SetStatus(codes.Ok, "Profile created")
	return &p, nil
}

func (r *PostgresProfileRepo) UpsertProfile(ctx context.Context, p types.Profile) (*types.Profile, error) {
	ctx, span := r.span(ctx, "UpsertProfile", "INSERT", attribute.String("db.user.id", p.ID))
	defer span.End()

	l := r.logger.With(slog.String("method", "UpsertProfile"), slog.String("id", p.ID), slog.String("username", p.Username))

	start := time.Now()
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (id, username, email, role)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET username = EXCLUDED.username,
		     email = EXCLUDED.email,
		     role = EXCLUDED.role
		 RETURNING created_at`,
		p.ID, p.Username, p.Email, p.Role).Scan(&p.CreatedAt)
	r.metrics.RecordDBQuery(ctx, usersTable, "UPSERT", start, err)
	if err != nil {
		span.RecordError(err)
		if database.IsUniqueViolation(err) {
			l.WarnContext(ctx, "Profile upsert conflicts on username", slog.Any("error", err))
			span.SetStatus(codes.Error, "Duplicate username")
			return nil, fmt.Errorf("profile %s: %w", p.Username, types.ErrConflict)
		}
		l.ErrorContext(ctx, "Failed to upsert profile", slog.Any("error", err))
		span.SetStatus(codes.Error, "DB UPSERT failed")
		return nil, fmt.Errorf("database error upserting profile: %w", err)
	}

	l.InfoContext(ctx, "Profile upserted")
	span.SetStatus(codes.Ok, "Profile upserted")
	return &p, nil
}

func (r *PostgresProfileRepo) ListProfiles(ctx context.Context) ([]types.Profile, error) {
	ctx, span := r.span(ctx, "ListProfiles", "SELECT")
	defer span.End()

	start := time.Now()
	rows, err := r.db.Query(ctx,
		`SELECT id, username, email, role, created_at
		 FROM users
		 ORDER BY created_at DESC`)
	if err != nil {
		r.metrics.RecordDBQuery(ctx, usersTable, "SELECT", start, err)
		r.logger.ErrorContext(ctx, "Failed to list profiles", slog.String("method", "ListProfiles"), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error listing profiles: %w", err)
	}
	defer rows.Close()

	profiles := []types.Profile{}
	for rows.Next() {
		var p types.Profile
		if err := rows.Scan(&p.ID, &p.Username, &p.Email, &p.Role, &p.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	err = rows.Err()
	r.metrics.RecordDBQuery(ctx, usersTable, "SELECT", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Row iteration failed")
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	span.SetAttributes(attribute.Int("results.count", len(profiles)))
	span.SetStatus(codes.Ok, "Profiles listed")
	return profiles, nil
}
