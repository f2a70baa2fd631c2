package user

import (
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/minimarket-auth/internal/api"
	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	ListUsers(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	userService UserService
	logger      *slog.Logger
}

// NewHandlerImpl creates a new user HandlerImpl instance.
func NewHandlerImpl(userService UserService, logger *slog.Logger) *HandlerImpl {
	if logger == nil {
		panic("PANIC: Attempting to create HandlerImpl with nil logger!")
	}

	return &HandlerImpl{
		userService: userService,
		logger:      logger,
	}
}

// ListUsers godoc
// @Summary      List users
// @Description  Returns every user profile, newest first.
// @Tags         Users
// @Produce      json
// @Success      200 {array}  types.Profile "User profiles"
// @Failure      500 {object} api.ErrorBody "Internal Server Error"
// @Router       /users [get]
func (h *HandlerImpl) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "ListUsers"))

	profiles, err := h.userService.ListUsers(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to retrieve users")
		return
	}
	if profiles == nil {
		profiles = []types.Profile{}
	}

	api.WriteJSONResponse(w, r, http.StatusOK, profiles)
}
