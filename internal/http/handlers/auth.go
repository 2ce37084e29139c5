package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contactly/server/internal/auth"
)

const (
	refreshTokenCookie = "refreshToken"
	sessionIDCookie    = "sessionId"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService  *auth.AuthService
	secureCookie bool
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		secureCookie: secureCookie,
	}
}

// registerRequest is the request body for POST /auth/register
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the user object in API responses
type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// HandleRegister handles POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if msg := validateRegister(req); msg != "" {
		respondWithError(w, http.StatusBadRequest, msg)
		return
	}

	summary, err := h.authService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailInUse) {
			respondWithError(w, http.StatusConflict, "Email in use")
			return
		}
		log.Printf("register failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	respondWithEnvelope(w, http.StatusCreated, "Successfully registered a user!", userResponse{
		ID:    summary.ID.String(),
		Name:  summary.Name,
		Email: summary.Email,
	})
}

// loginRequest is the request body for POST /auth/login
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse carries the access token; the refresh token and session ID
// travel as httpOnly cookies.
type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	pair, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondWithError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		log.Printf("login failed for %s: %v", maskEmail(req.Email), err)
		respondWithError(w, http.StatusInternalServerError, "failed to log in")
		return
	}

	h.setSessionCookies(w, pair)
	respondWithEnvelope(w, http.StatusOK, "Successfully logged in a user!", loginResponse{
		AccessToken: pair.AccessToken,
	})
}

// HandleRefresh handles POST /auth/refresh. The refresh token arrives as a
// cookie; on success both cookies are rotated alongside the token pair.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := cookieValue(r, refreshTokenCookie)
	if refreshToken == "" {
		respondWithError(w, http.StatusUnauthorized, "Refresh token not provided")
		return
	}

	pair, err := h.authService.Refresh(r.Context(), refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNoActiveSession), errors.Is(err, auth.ErrInvalidOrExpiredToken):
			respondWithError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		default:
			log.Printf("refresh failed: %v", err)
			respondWithError(w, http.StatusInternalServerError, "failed to refresh session")
		}
		return
	}

	h.setSessionCookies(w, pair)
	respondWithEnvelope(w, http.StatusOK, "Successfully refreshed a session!", loginResponse{
		AccessToken: pair.AccessToken,
	})
}

// HandleLogout handles POST /auth/logout. Deletes the session named by the
// sessionId cookie and clears both cookies. A repeat logout gets 404, which
// clients treat as already logged out.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sessionIDStr := cookieValue(r, sessionIDCookie)
	if sessionIDStr == "" {
		respondWithError(w, http.StatusUnauthorized, "Session ID not provided")
		return
	}
	sessionID, err := uuid.Parse(sessionIDStr)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Session ID not provided")
		return
	}

	if err := h.authService.Logout(r.Context(), sessionID); err != nil {
		if errors.Is(err, auth.ErrSessionNotFound) {
			h.clearSessionCookies(w)
			respondWithError(w, http.StatusNotFound, "Session not found")
			return
		}
		log.Printf("logout failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	h.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// resetEmailRequest is the request body for POST /auth/send-reset-email
type resetEmailRequest struct {
	Email string `json:"email"`
}

// HandleSendResetEmail handles POST /auth/send-reset-email
func (h *AuthHandler) HandleSendResetEmail(w http.ResponseWriter, r *http.Request) {
	var req resetEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !isValidEmail(req.Email) {
		respondWithError(w, http.StatusBadRequest, "a valid email is required")
		return
	}

	err := h.authService.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			respondWithError(w, http.StatusNotFound, "User not found!")
		case errors.Is(err, auth.ErrDeliveryFailure):
			respondWithError(w, http.StatusInternalServerError, "Failed to send the email, please try again later.")
		default:
			log.Printf("send reset email failed for %s: %v", maskEmail(req.Email), err)
			respondWithError(w, http.StatusInternalServerError, "Failed to send the email, please try again later.")
		}
		return
	}

	respondWithEnvelope(w, http.StatusOK, "Reset password email has been successfully sent.", struct{}{})
}

// HandleVerifyResetToken handles GET /auth/reset-password?token=...
// Probes token validity before the client shows the reset form.
func (h *AuthHandler) HandleVerifyResetToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondWithError(w, http.StatusBadRequest, "Token is missing.")
		return
	}

	email, err := h.authService.VerifyResetToken(token)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid or expired token.")
		return
	}

	respondWithEnvelope(w, http.StatusOK, "Token is valid, proceed to reset password.", map[string]string{
		"email": email,
	})
}

// resetPasswordRequest is the request body for POST /auth/reset-password
type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// HandleResetPassword handles POST /auth/reset-password
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		req.Token = r.URL.Query().Get("token")
	}
	if req.Token == "" || len(req.NewPassword) < 6 {
		respondWithError(w, http.StatusBadRequest, "token and newPassword (min 6 chars) are required")
		return
	}

	err := h.authService.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidOrExpiredToken):
			respondWithError(w, http.StatusUnauthorized, "Token is expired or invalid.")
		case errors.Is(err, auth.ErrUserNotFound):
			respondWithError(w, http.StatusNotFound, "User not found")
		default:
			log.Printf("reset password failed: %v", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to reset the password.")
		}
		return
	}

	respondWithEnvelope(w, http.StatusOK, "Password has been successfully reset.", struct{}{})
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, pair auth.TokenPair) {
	maxAge := int(h.authService.RefreshTokenMaxAge() / time.Second)
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteNoneMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     sessionIDCookie,
		Value:    pair.SessionID.String(),
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteNoneMode,
	})
}

func (h *AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{refreshTokenCookie, sessionIDCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteNoneMode,
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func validateRegister(req registerRequest) string {
	if len(req.Name) < 3 || len(req.Name) > 30 {
		return "name must be 3-30 characters"
	}
	if !isValidEmail(req.Email) {
		return "a valid email is required"
	}
	if len(req.Password) < 6 {
		return "password must be at least 6 characters"
	}
	return ""
}

func isValidEmail(email string) bool {
	if email == "" {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}

// maskEmail masks the local part of an email for logging (e.g. al***@example.com)
func maskEmail(email string) string {
	at := strings.Index(email, "@")
	if at < 0 {
		return "***"
	}
	if at <= 2 {
		return "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]string{"error": message}
	_ = json.NewEncoder(w).Encode(response)
}

// envelope is the {status, message, data} response shape used across the API
type envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respondWithEnvelope(w http.ResponseWriter, statusCode int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(envelope{Status: statusCode, Message: message, Data: data})
}
