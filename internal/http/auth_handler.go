package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_food/internal/auth"
)

type AuthAPI interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.Session, error)
}

type AuthHandler struct {
	auth    AuthAPI
	timeout time.Duration
	logger  *slog.Logger
}

func NewAuthHandler(a AuthAPI, timeout time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: a, timeout: timeout, logger: logger}
}

type RefreshRequestDTO struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req auth.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.auth.Register(ctx, req)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req auth.LoginInput
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.auth.Login(ctx, req)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req RefreshRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}
