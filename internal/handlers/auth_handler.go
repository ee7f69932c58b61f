package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/userdesk/backend/internal/auth"
	"github.com/userdesk/backend/internal/config"
	"github.com/userdesk/backend/internal/middleware"
	"github.com/userdesk/backend/internal/models"
	"github.com/userdesk/backend/internal/services"
)

type AuthHandler struct {
	provider     auth.Provider
	registration *services.RegistrationService
	profiles     *services.ProfileService
	cfg          *config.Config
	logger       *slog.Logger
}

func NewAuthHandler(provider auth.Provider, registration *services.RegistrationService, profiles *services.ProfileService, cfg *config.Config, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		provider:     provider,
		registration: registration,
		profiles:     profiles,
		cfg:          cfg,
		logger:       logger,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	sess, err := h.registration.Register(ctx, req)
	if err != nil {
		if writeValidationError(w, err) {
			return
		}
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			writeJSON(w, http.StatusConflict, models.NewErrorResponse("Email already registered"))
		case errors.Is(err, auth.ErrWeakPassword):
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Password does not meet provider policy"))
		default:
			h.logger.Error("registration failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to create account"))
		}
		return
	}

	h.respondWithToken(w, http.StatusCreated, sess, models.UserProfile{
		ID:       sess.UID,
		Username: req.Username,
		Email:    sess.Email,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(fields))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	sess, err := h.provider.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid email or password"))
			return
		}
		h.logger.Error("login failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Login failed"))
		return
	}

	profile, _, err := h.profiles.Get(ctx, sess.UID, sess.Email)
	if err != nil {
		h.logger.Warn("profile load at login failed", "uid", sess.UID, "error", err)
		profile = models.UserProfile{ID: sess.UID, Email: sess.Email}
	}

	h.respondWithToken(w, http.StatusOK, sess, profile)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, sess auth.Session, profile models.UserProfile) {
	role := middleware.RoleUser
	if h.cfg.IsAdminEmail(sess.Email) {
		role = middleware.RoleAdmin
	}

	token, err := h.generateToken(sess, role)
	if err != nil {
		h.logger.Error("token generation failed", "uid", sess.UID, "error", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to generate token"))
		return
	}

	writeJSON(w, status, models.NewSuccessResponse(models.AuthResponse{
		Token: token,
		User:  profile,
		Role:  role,
	}))
}

func (h *AuthHandler) generateToken(sess auth.Session, role string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": sess.UID,
		"email":   sess.Email,
		"role":    role,
		"exp":     time.Now().Add(h.cfg.JWTExpiration).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}
