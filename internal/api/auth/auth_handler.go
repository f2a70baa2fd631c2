package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/minimarket-auth/internal/api"
	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

type AuthHandler struct {
	AuthService AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		logger:      logger,
		AuthService: authService,
	}
}

// writeAuthError maps a flow failure to its status. Anything untagged is a 500.
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, r *http.Request, l *slog.Logger, err error) {
	var authErr *types.AuthError
	if errors.As(err, &authErr) {
		l.InfoContext(r.Context(), "Auth flow failed", slog.String("kind", string(authErr.Kind)))
		api.ErrorResponse(w, r, authErr.Kind.HTTPStatus(), authErr.Message)
		return
	}
	l.ErrorContext(r.Context(), "Unexpected auth flow error", slog.Any("error", err))
	api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
}

// Register godoc
// @Summary      Register a user
// @Description  Creates the identity and profile for a username. A username left behind without a profile is reclaimed.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body RegisterRequest true "Username and password"
// @Success      201 {object} RegisterResponse
// @Failure      400 {object} api.ErrorBody "Invalid username or body"
// @Failure      409 {object} api.ErrorBody "Username taken or stuck"
// @Failure      502 {object} api.ErrorBody "Identity store unavailable"
// @Router       /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Register"))

	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid register body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "username and password are required")
		return
	}

	created, err := h.AuthService.Register(ctx, req.Username, req.Password)
	if err != nil {
		h.writeAuthError(w, r, l, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, RegisterResponse{
		Message: "User registered successfully",
		User:    created,
	})
}

// Login godoc
// @Summary      Log in
// @Description  Verifies credentials and returns a session. Accounts without a profile are refused.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body LoginRequest true "Username and password"
// @Success      200 {object} LoginResponse
// @Failure      400 {object} api.ErrorBody "Malformed body"
// @Failure      401 {object} api.ErrorBody "Invalid or missing credentials"
// @Failure      403 {object} api.ErrorBody "Profile missing"
// @Failure      502 {object} api.ErrorBody "Identity store unavailable"
// @Router       /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Login"))

	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid login body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	// empty fields go to the service so they fail like any bad credential
	result, err := h.AuthService.Login(ctx, req.Username, req.Password)
	if err != nil {
		h.writeAuthError(w, r, l, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, LoginResponse{
		Message: "Login successful",
		Session: result.Session,
		User:    result.User,
	})
}
