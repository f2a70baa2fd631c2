package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/minimarket-auth/config"
	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

var _ Store = (*GoTrueClient)(nil)

// GoTrueClient talks to a hosted GoTrue-compatible auth API using the service role key.
type GoTrueClient struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewGoTrueClient(cfg config.GoTrueConfig, logger *slog.Logger) *GoTrueClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoTrueClient{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		serviceKey: cfg.ServiceRoleKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type gotrueUser struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	UserMetadata types.IdentityMetadata `json:"user_metadata"`
	CreatedAt    time.Time              `json:"created_at"`
}

func (u gotrueUser) identity() *types.Identity {
	return &types.Identity{
		ID:        u.ID,
		Email:     u.Email,
		Metadata:  u.UserMetadata,
		CreatedAt: u.CreatedAt,
	}
}

type gotrueSession struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	RefreshToken string      `json:"refresh_token"`
	User         *gotrueUser `json:"user"`
}

// gotrueError covers both the current and the legacy error envelopes.
type gotrueError struct {
	Code             int    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Err              string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e gotrueError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Err} {
		if s != "" {
			return s
		}
	}
	return ""
}

// statusError is returned for any non-2xx response.
type statusError struct {
	Status int
	Body   gotrueError
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gotrue responded %d: %s", e.Status, e.Body.text())
}

func (c *GoTrueClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, span := otel.Tracer("IdentityStore").Start(ctx, "gotrue "+method+" "+path, trace.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	))
	defer span.End()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Request failed")
		return fmt.Errorf("gotrue %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read gotrue response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr gotrueError
		_ = json.Unmarshal(data, &apiErr)
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return &statusError{Status: resp.StatusCode, Body: apiErr}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode gotrue response: %w", err)
		}
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *GoTrueClient) CreateIdentity(ctx context.Context, email, password string, meta types.IdentityMetadata) (*types.Identity, error) {
	l := c.logger.With(slog.String("method", "CreateIdentity"), slog.String("email", email))

	// signup answers with a bare user, or with a session wrapping it when autoconfirm is on
	var out struct {
		gotrueUser
		User *gotrueUser `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/v1/signup", nil, map[string]any{
		"email":    email,
		"password": password,
		"data":     meta,
	}, &out)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			switch {
			case se.Body.ErrorCode == "weak_password":
				return nil, fmt.Errorf("%s: %w", se.Body.text(), types.ErrWeakPassword)
			case se.Body.ErrorCode == "user_already_exists",
				se.Body.ErrorCode == "email_exists",
				strings.Contains(strings.ToLower(se.Body.text()), "already registered"):
				l.InfoContext(ctx, "Identity already registered")
				return nil, fmt.Errorf("email %s: %w", email, types.ErrIdentityExists)
			}
		}
		l.ErrorContext(ctx, "Signup failed", slog.Any("error", err))
		return nil, err
	}

	user := out.gotrueUser
	if out.User != nil {
		user = *out.User
	}
	if user.ID == "" {
		return nil, errors.New("gotrue signup returned no user id")
	}
	return user.identity(), nil
}

func (c *GoTrueClient) VerifyPassword(ctx context.Context, email, password string) (*types.Identity, *types.Session, error) {
	var out gotrueSession
	err := c.do(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"password"}}, map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && (se.Status == http.StatusBadRequest || se.Status == http.StatusUnauthorized) {
			return nil, nil, fmt.Errorf("%s: %w", se.Body.text(), types.ErrUnauthenticated)
		}
		return nil, nil, err
	}
	if out.User == nil || out.AccessToken == "" {
		return nil, nil, errors.New("gotrue token grant returned no session")
	}

	session := &types.Session{
		AccessToken:  out.AccessToken,
		TokenType:    out.TokenType,
		ExpiresIn:    out.ExpiresIn,
		ExpiresAt:    out.ExpiresAt,
		RefreshToken: out.RefreshToken,
	}
	return out.User.identity(), session, nil
}

func (c *GoTrueClient) ListIdentities(ctx context.Context, page, perPage int) ([]types.Identity, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	var out struct {
		Users []gotrueUser `json:"users"`
	}
	err := c.do(ctx, http.MethodGet, "/auth/v1/admin/users", url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}, nil, &out)
	if err != nil {
		return nil, err
	}

	identities := make([]types.Identity, 0, len(out.Users))
	for _, u := range out.Users {
		identities = append(identities, *u.identity())
	}
	return identities, nil
}

func (c *GoTrueClient) UpdateIdentity(ctx context.Context, id string, upd types.IdentityUpdate) (*types.Identity, error) {
	body := map[string]any{}
	if upd.Password != nil {
		body["password"] = *upd.Password
	}
	if upd.Metadata != nil {
		body["user_metadata"] = upd.Metadata
	}

	var out gotrueUser
	err := c.do(ctx, http.MethodPut, "/auth/v1/admin/users/"+url.PathEscape(id), nil, body, &out)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			switch {
			case se.Status == http.StatusNotFound:
				return nil, fmt.Errorf("identity %s: %w", id, types.ErrNotFound)
			case se.Body.ErrorCode == "weak_password":
				return nil, fmt.Errorf("%s: %w", se.Body.text(), types.ErrWeakPassword)
			}
		}
		c.logger.ErrorContext(ctx, "Identity update failed", slog.String("method", "UpdateIdentity"), slog.String("id", id), slog.Any("error", err))
		return nil, err
	}
	return out.identity(), nil
}
