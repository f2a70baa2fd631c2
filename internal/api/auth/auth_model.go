package auth

import "github.com/FACorreiaa/minimarket-auth/internal/types"

// RegisterRequest represents the register request body
type RegisterRequest struct {
	Username string `json:"username" example:"bob"`
	Password string `json:"password" example:"pw123456"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username" example:"bob"`
	Password string `json:"password" example:"pw123456"`
}

// RegisterResponse represents the register response body
type RegisterResponse struct {
	Message string      `json:"message" example:"User registered successfully"`
	User    *types.User `json:"user"`
}

// LoginResponse represents the login response body
type LoginResponse struct {
	Message string         `json:"message" example:"Login successful"`
	Session *types.Session `json:"session"`
	User    *types.User    `json:"user"`
}
