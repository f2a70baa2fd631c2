package ghost

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/minimarket-auth/internal/api"
	"github.com/FACorreiaa/minimarket-auth/internal/api/identity"
	"github.com/FACorreiaa/minimarket-auth/internal/api/user"
	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

// Scanner compares the identity store with the profile table.
type Scanner struct {
	identities identity.Store
	profiles   user.ProfileRepo
	perPage    int
	logger     *slog.Logger
}

func NewScanner(identities identity.Store, profiles user.ProfileRepo, perPage int, logger *slog.Logger) *Scanner {
	return &Scanner{
		identities: identities,
		profiles:   profiles,
		perPage:    perPage,
		logger:     logger,
	}
}

// Scan loads both sides concurrently and reports every identity without a profile.
func (s *Scanner) Scan(ctx context.Context) (*types.GhostReport, error) {
	ctx, span := otel.Tracer("GhostScanner").Start(ctx, "Scan")
	defer span.End()

	l := s.logger.With(slog.String("method", "Scan"))

	var (
		idents   []types.Identity
		profiles []types.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		idents, err = identity.ListAll(gctx, s.identities, s.perPage)
		return err
	})
	g.Go(func() error {
		var err error
		profiles, err = s.profiles.ListProfiles(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		l.ErrorContext(ctx, "Ghost scan failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Scan failed")
		return nil, fmt.Errorf("ghost scan: %w", err)
	}

	known := make(map[string]struct{}, len(profiles))
	for _, p := range profiles {
		known[p.ID] = struct{}{}
	}

	report := &types.GhostReport{
		TotalIdentities: len(idents),
		TotalProfiles:   len(profiles),
		Ghosts:          []types.Ghost{},
	}
	for _, ident := range idents {
		if _, ok := known[ident.ID]; ok {
			continue
		}
		report.Ghosts = append(report.Ghosts, types.Ghost{
			ID:       ident.ID,
			Email:    ident.Email,
			Username: ident.Metadata.Username,
		})
	}
	sort.Slice(report.Ghosts, func(i, j int) bool { return report.Ghosts[i].Email < report.Ghosts[j].Email })

	if len(report.Ghosts) > 0 {
		l.WarnContext(ctx, "Ghost accounts found", slog.Int("count", len(report.Ghosts)))
	}
	span.SetAttributes(
		attribute.Int("ghost.identities", report.TotalIdentities),
		attribute.Int("ghost.profiles", report.TotalProfiles),
		attribute.Int("ghost.count", len(report.Ghosts)),
	)
	span.SetStatus(codes.Ok, "Scan complete")
	return report, nil
}

type HandlerImpl struct {
	scanner *Scanner
	logger  *slog.Logger
}

func NewHandlerImpl(scanner *Scanner, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{scanner: scanner, logger: logger}
}

// ScanGhosts godoc
// @Summary      List ghost accounts
// @Description  Reports identities that have no matching user profile.
// @Tags         Admin
// @Produce      json
// @Success      200 {object} types.GhostReport
// @Failure      401 {object} api.ErrorBody "Unauthorized"
// @Failure      403 {object} api.ErrorBody "Forbidden"
// @Failure      502 {object} api.ErrorBody "Store unavailable"
// @Security     BearerAuth
// @Router       /admin/ghosts [get]
func (h *HandlerImpl) ScanGhosts(w http.ResponseWriter, r *http.Request) {
	report, err := h.scanner.Scan(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Ghost scan request failed", slog.String("HandlerImpl", "ScanGhosts"), slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadGateway, "Could not compare identity store and profiles")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, report)
}
