package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"bookverse/internal/middleware"
	"bookverse/internal/models"
	"bookverse/internal/services"
)

type AuthHandler struct {
	userService *services.UserService
	authService *services.AuthService
	logger      zerolog.Logger
}

func NewAuthHandler(userService *services.UserService, authService *services.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		authService: authService,
		logger:      logger,
	}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.userService.Signup(&req)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Signup failed")
		h.respondWithError(w, statusForError(err), signupMessage(err))
		return
	}

	if err := h.setSessionCookie(w, r, user); err != nil {
		h.respondWithError(w, http.StatusInternalServerError, "Server error")
		return
	}

	h.respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Signup successful",
		"user":    user,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.userService.Authenticate(&req)
	if err != nil {
		h.logger.Warn().Str("email", req.Email).Msg("Login failed")
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		} else {
			h.respondWithError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	if err := h.setSessionCookie(w, r, user); err != nil {
		h.respondWithError(w, http.StatusInternalServerError, "Server error")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Login successful",
		"user":    user,
	})
}

// Logout expires the session cookie. Tokens are stateless, so there is
// nothing to invalidate server-side.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logged out successfully",
	})
}

// Me reports the current session's user. No or invalid session is a normal
// outcome and answers 200 with a null user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	var user *models.User

	if claims, ok := middleware.GetClaims(r); ok {
		u, err := h.userService.GetUserByID(claims.UserID)
		if err == nil {
			user = u
		}
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, r *http.Request, user *models.User) error {
	token, err := h.authService.GenerateToken(user)
	if err != nil {
		h.logger.Error().Err(err).Msg("Token generation failed")
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   24 * 60 * 60,
	})
	return nil
}

func (h *AuthHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

func (h *AuthHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func signupMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return "Name, email and password are required"
	case errors.Is(err, services.ErrDuplicate):
		return "User already exists"
	default:
		return "Server error"
	}
}
