package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

var _ UserService = (*UserServiceImpl)(nil)

// UserService exposes read access to profiles for the HTTP layer and the admin guard.
type UserService interface {
	ListUsers(ctx context.Context) ([]types.Profile, error)
	// RoleOf returns the role stored on the profile, or types.ErrNotFound.
	RoleOf(ctx context.Context, userID string) (string, error)
}

type UserServiceImpl struct {
	logger *slog.Logger
	repo   ProfileRepo
}

func NewUserService(repo ProfileRepo, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *UserServiceImpl) ListUsers(ctx context.Context) ([]types.Profile, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "ListUsers")
	defer span.End()

	l := s.logger.With(slog.String("method", "ListUsers"))
	l.DebugContext(ctx, "Listing user profiles")

	profiles, err := s.repo.ListProfiles(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list user profiles", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list profiles")
		return nil, fmt.Errorf("error listing users: %w", err)
	}

	span.SetAttributes(attribute.Int("users.count", len(profiles)))
	span.SetStatus(codes.Ok, "Users listed")
	return profiles, nil
}

func (s *UserServiceImpl) RoleOf(ctx context.Context, userID string) (string, error) {
	profile, err := s.repo.GetProfileByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			s.logger.ErrorContext(ctx, "Failed to resolve role", slog.String("method", "RoleOf"), slog.String("userID", userID), slog.Any("error", err))
		}
		return "", err
	}
	return profile.Role, nil
}
