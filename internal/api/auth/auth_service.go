package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/minimarket-auth/app/observability/metrics"
	"github.com/FACorreiaa/minimarket-auth/config"
	"github.com/FACorreiaa/minimarket-auth/internal/api/identity"
	"github.com/FACorreiaa/minimarket-auth/internal/api/user"
	"github.com/FACorreiaa/minimarket-auth/internal/events"
	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// Messages returned to the caller. Causes stay in the logs.
const (
	msgInvalidUsername = "Invalid username (use letters and numbers)"
	msgInvalidPassword = "Password was rejected by the identity provider"
	msgUsernameTaken   = "Username is already taken by another user."
	msgGhostStuck      = "Username is stuck on an orphaned account and could not be repaired automatically. Contact an administrator."
	msgBadCredentials  = "Invalid username or password"
	msgProfileMissing  = "Access denied: your account was not found or has been removed."
	msgUpstream        = "Authentication service is unavailable, please try again later"
)

// AuthService runs registration and login across the identity store and the profile table.
type AuthService interface {
	Register(ctx context.Context, rawUsername, password string) (*types.User, error)
	Login(ctx context.Context, rawUsername, password string) (*types.LoginResult, error)
}

type AuthServiceImpl struct {
	logger      *slog.Logger
	identities  identity.Store
	profiles    user.ProfileRepo
	events      events.Publisher
	metrics     *metrics.AppMetrics
	emailDomain string
	perPage     int
}

func NewAuthService(identities identity.Store, profiles user.ProfileRepo, publisher events.Publisher, cfg config.IdentityConfig, logger *slog.Logger, m *metrics.AppMetrics) *AuthServiceImpl {
	if publisher == nil {
		publisher = events.Noop{}
	}
	perPage := cfg.ListPerPage
	if perPage <= 0 {
		perPage = identity.DefaultPerPage
	}
	return &AuthServiceImpl{
		logger:      logger,
		identities:  identities,
		profiles:    profiles,
		events:      publisher,
		metrics:     m,
		emailDomain: cfg.EmailDomain,
		perPage:     perPage,
	}
}

func outcomeOf(err error) string {
	if kind, ok := types.KindOf(err); ok {
		return string(kind)
	}
	return "error"
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	if kind, ok := types.KindOf(err); ok {
		span.SetAttributes(attribute.String("auth.error_kind", string(kind)))
	}
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (s *AuthServiceImpl) publish(ctx context.Context, evt events.Event) {
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.WarnContext(ctx, "Domain event dropped", slog.String("type", evt.Type), slog.Any("error", err))
	}
}

// Register creates the identity and its profile. A taken email is either a
// legitimate owner (UsernameTaken) or a ghost, which is resurrected in place.
func (s *AuthServiceImpl) Register(ctx context.Context, rawUsername, password string) (result *types.User, err error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register")
	defer span.End()

	start := time.Now()
	outcome := metrics.OutcomeSuccess
	defer func() {
		if err != nil {
			outcome = outcomeOf(err)
		}
		s.metrics.RecordRegister(ctx, outcome, time.Since(start))
	}()

	username := NormalizeUsername(rawUsername)
	l := s.logger.With(slog.String("method", "Register"), slog.String("username", username))
	if username == "" {
		l.InfoContext(ctx, "Rejected registration with empty normalized username", slog.String("raw", rawUsername))
		return nil, fail(span, types.NewAuthError(types.KindInvalidUsername, msgInvalidUsername, nil))
	}

	email := SyntheticEmail(username, s.emailDomain)
	role := RoleFor(username)
	meta := types.IdentityMetadata{Username: username, Role: role}
	span.SetAttributes(attribute.String("auth.username", username), attribute.String("auth.role", role))

	ident, err := s.identities.CreateIdentity(ctx, email, password, meta)
	resurrected := false
	switch {
	case err == nil:
	case errors.Is(err, types.ErrIdentityExists):
		ident, err = s.reclaim(ctx, l, username, email, password, meta)
		if err != nil {
			return nil, fail(span, err)
		}
		resurrected = true
		outcome = metrics.OutcomeResurrected
	case errors.Is(err, types.ErrWeakPassword):
		l.InfoContext(ctx, "Identity store rejected the password", slog.Any("error", err))
		return nil, fail(span, types.NewAuthError(types.KindInvalidPassword, msgInvalidPassword, err))
	default:
		l.ErrorContext(ctx, "Identity store failed during registration", slog.Any("error", err))
		return nil, fail(span, types.NewAuthError(types.KindUpstreamUnavailable, msgUpstream, err))
	}

	profile := types.Profile{ID: ident.ID, Username: username, Email: email, Role: role}
	s.syncProfile(ctx, l, profile, resurrected)

	evtType := events.UserRegistered
	if resurrected {
		evtType = events.UserResurrected
	}
	s.publish(ctx, events.Event{Type: evtType, UserID: ident.ID, Username: username, Role: role})

	span.SetAttributes(attribute.String("auth.user_id", ident.ID), attribute.Bool("auth.resurrected", resurrected))
	span.SetStatus(codes.Ok, "Registered")
	l.InfoContext(ctx, "User registered", slog.String("userID", ident.ID), slog.Bool("resurrected", resurrected))

	return &types.User{
		ID:        ident.ID,
		Username:  username,
		Email:     email,
		Role:      role,
		Metadata:  meta,
		CreatedAt: ident.CreatedAt,
	}, nil
}

// reclaim handles a registration whose email is already known to the identity store.
func (s *AuthServiceImpl) reclaim(ctx context.Context, l *slog.Logger, username, email, password string, meta types.IdentityMetadata) (*types.Identity, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ReclaimIdentity")
	defer span.End()

	_, err := s.profiles.GetProfileByUsername(ctx, username)
	if err == nil {
		l.InfoContext(ctx, "Username already owned by an existing profile")
		return nil, types.NewAuthError(types.KindUsernameTaken, msgUsernameTaken, nil)
	}
	if !errors.Is(err, types.ErrNotFound) {
		l.ErrorContext(ctx, "Profile lookup failed while checking for a ghost", slog.Any("error", err))
		return nil, types.NewAuthError(types.KindUpstreamUnavailable, msgUpstream, err)
	}

	l.WarnContext(ctx, "Ghost account detected: identity exists without a profile")
	ghost, err := identity.FindByEmail(ctx, s.identities, email, s.perPage)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			l.ErrorContext(ctx, "Identity store reports the email as registered but it is not listed", slog.String("email", email))
			return nil, types.NewAuthError(types.KindGhostCleanupFailed, msgGhostStuck, err)
		}
		l.ErrorContext(ctx, "Failed to enumerate identities", slog.Any("error", err))
		return nil, types.NewAuthError(types.KindUpstreamUnavailable, msgUpstream, err)
	}

	l.WarnContext(ctx, "Resurrecting ghost identity", slog.String("userID", ghost.ID))
	updated, err := s.identities.UpdateIdentity(ctx, ghost.ID, types.IdentityUpdate{
		Password: &password,
		Metadata: &meta,
	})
	if err != nil {
		switch {
		case errors.Is(err, types.ErrWeakPassword):
			return nil, types.NewAuthError(types.KindInvalidPassword, msgInvalidPassword, err)
		case errors.Is(err, types.ErrNotFound):
			l.ErrorContext(ctx, "Ghost identity vanished before it could be resurrected", slog.String("userID", ghost.ID))
			return nil, types.NewAuthError(types.KindGhostCleanupFailed, msgGhostStuck, err)
		default:
			l.ErrorContext(ctx, "Failed to resurrect ghost identity", slog.String("userID", ghost.ID), slog.Any("error", err))
			return nil, types.NewAuthError(types.KindUpstreamUnavailable, msgUpstream, err)
		}
	}

	s.metrics.RecordGhostResurrected(ctx)
	span.SetAttributes(attribute.String("auth.user_id", updated.ID))
	return updated, nil
}

// syncProfile writes the profile row. Failures are logged and never returned:
// the identity already exists and the next registration repairs the gap.
func (s *AuthServiceImpl) syncProfile(ctx context.Context, l *slog.Logger, p types.Profile, resurrected bool) {
	var err error
	if resurrected {
		_, err = s.profiles.UpsertProfile(ctx, p)
	} else {
		_, err = s.profiles.InsertProfile(ctx, p)
	}
	if err == nil {
		return
	}

	l.ErrorContext(ctx, "Failed to sync user profile after identity write",
		slog.String("userID", p.ID),
		slog.Bool("resurrected", resurrected),
		slog.Any("error", err))
	s.metrics.RecordProfileSyncFailure(ctx)
	s.publish(ctx, events.Event{
		Type:     events.ProfileSyncFailed,
		UserID:   p.ID,
		Username: p.Username,
		Role:     p.Role,
		Detail:   err.Error(),
	})
}

// Login verifies credentials and requires a profile row. The profile's role
// and username override whatever the identity metadata says.
func (s *AuthServiceImpl) Login(ctx context.Context, rawUsername, password string) (result *types.LoginResult, err error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()

	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = outcomeOf(err)
		}
		s.metrics.RecordLogin(ctx, outcome, time.Since(start))
	}()

	username := NormalizeUsername(rawUsername)
	l := s.logger.With(slog.String("method", "Login"), slog.String("username", username))
	if username == "" {
		return nil, fail(span, types.NewAuthError(types.KindAuthenticationFailed, msgBadCredentials, nil))
	}
	span.SetAttributes(attribute.String("auth.username", username))

	ident, session, err := s.identities.VerifyPassword(ctx, SyntheticEmail(username, s.emailDomain), password)
	if err != nil {
		if errors.Is(err, types.ErrUnauthenticated) {
			l.InfoContext(ctx, "Invalid credentials")
			return nil, fail(span, types.NewAuthError(types.KindAuthenticationFailed, msgBadCredentials, err))
		}
		l.ErrorContext(ctx, "Identity store failed during login", slog.Any("error", err))
		return nil, fail(span, types.NewAuthError(types.KindUpstreamUnavailable, msgUpstream, err))
	}

	profile, err := s.profiles.GetProfileByID(ctx, ident.ID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			l.WarnContext(ctx, "Login blocked: authenticated identity has no profile", slog.String("userID", ident.ID))
			return nil, fail(span, types.NewAuthError(types.KindProfileMissing, msgProfileMissing, err))
		}
		l.ErrorContext(ctx, "Profile lookup failed during login", slog.String("userID", ident.ID), slog.Any("error", err))
		return nil, fail(span, types.NewAuthError(types.KindUpstreamUnavailable, msgUpstream, err))
	}

	final := &types.User{
		ID:        ident.ID,
		Username:  profile.Username,
		Email:     ident.Email,
		Role:      profile.Role,
		Metadata:  ident.Metadata,
		CreatedAt: ident.CreatedAt,
	}
	if ident.Metadata.Role != "" && ident.Metadata.Role != profile.Role {
		l.DebugContext(ctx, "Identity metadata role differs from profile role",
			slog.String("metadata_role", ident.Metadata.Role),
			slog.String("profile_role", profile.Role))
	}

	s.publish(ctx, events.Event{Type: events.UserLoggedIn, UserID: final.ID, Username: final.Username, Role: final.Role})
	span.SetAttributes(attribute.String("auth.user_id", final.ID), attribute.String("auth.role", final.Role))
	span.SetStatus(codes.Ok, "Logged in")
	l.InfoContext(ctx, "User logged in", slog.String("userID", final.ID))

	return &types.LoginResult{Session: session, User: final}, nil
}
