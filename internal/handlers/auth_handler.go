package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/studymaterials/backend/internal/auth"
	"github.com/studymaterials/backend/internal/models"
	"go.uber.org/zap"
)

// AuthService is the interface that wraps methods for sign in, teacher registration and password reset.
type AuthService interface {
	// Method Login checks the credentials and issues a session.
	//
	// Wrong credentials yield services.ErrInvalidCredentials.
	Login(ctx context.Context, req *models.LoginRequest) (*models.Session, error)
	// Method Register creates a teacher account on behalf of a signed-in teacher.
	//
	// A taken email yields services.ErrAlreadyExists.
	Register(ctx context.Context, session *models.Session, req *models.RegisterRequest) (*models.User, error)
	// Method RequestPasswordReset emails a reset token to the account owner.
	//
	// An unknown email is not an error. Without a mail server it yields services.ErrUnavailable.
	RequestPasswordReset(ctx context.Context, req *models.PasswordResetRequest) error
	// Method ConfirmPasswordReset sets a new password with a reset token.
	//
	// An invalid, expired or used token yields a services.ValidationError for the "token" field.
	ConfirmPasswordReset(ctx context.Context, req *models.PasswordResetConfirmRequest) error
}

// AuthHandler handles HTTP requests for authentication
type AuthHandler struct {
	BaseHandler
	service AuthService
	authMw  func(http.Handler) http.Handler
	roleMw  func(http.Handler) http.Handler
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc AuthService, logger *zap.Logger, authMw, roleMw func(http.Handler) http.Handler) *AuthHandler {
	return &AuthHandler{
		BaseHandler: BaseHandler{Logger: logger},
		service:     svc,
		authMw:      authMw,
		roleMw:      roleMw,
	}
}

// RegisterRoutes registers all auth handler routes
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/password-reset", h.RequestPasswordReset)
		r.Post("/password-reset/confirm", h.ConfirmPasswordReset)

		r.Group(func(r chi.Router) {
			r.Use(h.authMw)
			r.Get("/session", h.GetSession)
			r.With(h.roleMw).Post("/register", h.Register)
		})
	})
}

// Login handles POST /api/v1/auth/login
// @Summary Sign in
// @Description Sign in with email and password and receive an access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} models.TokenResponse
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.service.Login(r.Context(), &req)
	if err != nil {
		h.RespondServiceError(w, err, "failed to sign in")
		return
	}

	h.RespondJSON(w, http.StatusOK, models.TokenResponse{
		AccessToken: session.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   session.ExpiresAt,
	})
}

// GetSession handles GET /api/v1/auth/session
// @Summary Current session
// @Description Get the session of the access token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Session
// @Failure 401 {object} ErrorResponse "Authentication required"
// @Router /auth/session [get]
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.GetSession(r.Context())
	if !ok {
		h.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	h.RespondJSON(w, http.StatusOK, session)
}

// Register handles POST /api/v1/auth/register
// @Summary Register teacher
// @Description Create a teacher account. Only a signed-in teacher can register another teacher.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.RegisterRequest true "New account"
// @Success 201 {object} models.User
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Authentication required"
// @Failure 403 {object} ErrorResponse "Insufficient permissions"
// @Failure 409 {object} ErrorResponse "Email already exists"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, _ := auth.GetSession(r.Context())
	user, err := h.service.Register(r.Context(), session, &req)
	if err != nil {
		h.RespondServiceError(w, err, "failed to register")
		return
	}

	h.RespondJSON(w, http.StatusCreated, user)
}

// RequestPasswordReset handles POST /api/v1/auth/password-reset
// @Summary Request password reset
// @Description Email a password reset link. The response is the same whether or not the account exists.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.PasswordResetRequest true "Account email"
// @Success 202 {object} MessageResponse
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Failure 503 {object} ErrorResponse "Email is not configured"
// @Router /auth/password-reset [post]
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), &req); err != nil {
		h.RespondServiceError(w, err, "failed to request password reset")
		return
	}

	h.RespondJSON(w, http.StatusAccepted, MessageResponse{
		Message: "if an account with this email exists, a reset link has been sent",
	})
}

// ConfirmPasswordReset handles POST /api/v1/auth/password-reset/confirm
// @Summary Confirm password reset
// @Description Set a new password with the token from the reset email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.PasswordResetConfirmRequest true "Reset token and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse "Invalid request or token"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /auth/password-reset/confirm [post]
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.ConfirmPasswordReset(r.Context(), &req); err != nil {
		h.RespondServiceError(w, err, "failed to reset password")
		return
	}

	h.RespondJSON(w, http.StatusOK, MessageResponse{Message: "password updated"})
}
