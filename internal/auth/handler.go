package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/redmonkez12/taskboard-api/internal/httputil"
	"github.com/redmonkez12/taskboard-api/internal/logging"
	"github.com/redmonkez12/taskboard-api/internal/metrics"
	"github.com/redmonkez12/taskboard-api/internal/ratelimit"
	"github.com/redmonkez12/taskboard-api/internal/user"
)

const forgotPasswordMessage = "If your email is registered, you will receive a password reset link."

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service     *Service
	rateLimiter *ratelimit.Limiter
	collector   *metrics.Collector
	logger      *logging.Logger
}

func NewHandler(service *Service, rateLimiter *ratelimit.Limiter, collector *metrics.Collector, logger *logging.Logger) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
		collector:   collector,
		logger:      logger,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// TokenRequest represents the password grant request body
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest represents the password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents the password reset confirmation
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// RegisterResponse represents the registration response
type RegisterResponse struct {
	User    UserResponse `json:"user"`
	Message string       `json:"message"`
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.ipRateLimited(w, r, "register") {
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	newUser, err := h.service.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			logger.Warn("registration failed: email already exists")
			respondError(w, "email already exists", httputil.CodeEmailAlreadyExists, http.StatusBadRequest)
			return
		}
		if isValidationError(err) {
			logger.Warn("registration failed: validation error", "error", err.Error())
			respondError(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
			return
		}
		logger.Error("registration failed: internal error", "error", err.Error())
		respondError(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)
	h.collector.RecordRegistration()

	respondJSON(w, RegisterResponse{
		User:    UserResponse{ID: newUser.ID, Email: newUser.Email},
		Message: "Registration successful. Please check your email for confirmation.",
	}, http.StatusCreated)
}

// Token handles the password grant
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.ipRateLimited(w, r, "token") {
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid token request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	tokens, err := h.service.Token(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("token request failed: invalid credentials")
			// Same message whether the account exists or not
			respondError(w, "invalid credentials", httputil.CodeInvalidCredentials, http.StatusBadRequest)
			return
		}
		logger.Error("token request failed: internal error", "error", err.Error())
		respondError(w, "failed to issue token", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("access token issued")
	h.collector.RecordLogin("password")

	respondJSON(w, tokens, http.StatusOK)
}

// ExternalLogin starts the external-login flow by redirecting to the
// provider's authorization endpoint
func (h *Handler) ExternalLogin(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	provider := r.URL.Query().Get("provider")
	returnURL := r.URL.Query().Get("returnUrl")

	redirectURL, err := h.service.BeginExternalLogin(r.Context(), provider, returnURL)
	if err != nil {
		if errors.Is(err, ErrUnknownProvider) {
			logger.Warn("external login failed: unknown provider", "provider", provider)
			respondError(w, "provider "+provider+" is not configured", httputil.CodeUnknownProvider, http.StatusBadRequest)
			return
		}
		logger.Error("external login failed: internal error", "error", err.Error())
		respondError(w, "failed to start external login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// ExternalCallback finishes the external-login flow and returns an
// access token
func (h *Handler) ExternalCallback(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	tokens, err := h.service.CompleteExternalLogin(r.Context(), state, code)
	if err != nil {
		switch {
		case errors.Is(err, ErrLoginStateNotFound):
			logger.Warn("external callback failed: no pending login state")
			respondError(w, "error loading external login information", httputil.CodeExternalLoginState, http.StatusBadRequest)
		case errors.Is(err, ErrEmailClaimMissing):
			logger.Warn("external callback failed: provider omitted email claim")
			respondError(w, "external provider did not supply an email address", httputil.CodeEmailClaimMissing, http.StatusBadRequest)
		case errors.Is(err, ErrExternalLoginTaken):
			logger.Warn("external callback failed: identity linked elsewhere")
			respondError(w, "this external login is already linked to another account", httputil.CodeExternalLoginTaken, http.StatusBadRequest)
		case errors.Is(err, user.ErrDuplicateEmail):
			logger.Warn("external callback failed: email already exists")
			respondError(w, "email already exists", httputil.CodeEmailAlreadyExists, http.StatusBadRequest)
		default:
			logger.Error("external callback failed: internal error", "error", err.Error())
			respondError(w, "failed to complete external login", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("external login completed")
	h.collector.RecordLogin("external")

	respondJSON(w, tokens, http.StatusOK)
}

// Logout tears down the caller's session. Anonymous callers get the
// same confirmation without any state change.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var claims *Claims
	if token, err := bearerToken(r); err == nil && token != "" {
		// An invalid or expired token is treated as anonymous
		if c, err := h.service.VerifyAccessToken(r.Context(), token); err == nil {
			claims = c
		}
	}

	if claims != nil {
		if err := h.service.Logout(r.Context(), claims); err != nil {
			logger.Warn("failed to revoke session on logout", "error", err.Error())
			// Still confirm: the token will expire on its own
		} else {
			logger.Info("user logged out", "user_id", claims.Subject)
			h.collector.RecordTokenRevoked()
		}
	}

	respondJSON(w, map[string]string{"message": "Logged out successfully"}, http.StatusOK)
}

// ConfirmEmail confirms a user's email address via the token from the
// confirmation mail
func (h *Handler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "confirmation token required", httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}

	if err := h.service.ConfirmEmail(r.Context(), token); err != nil {
		if errors.Is(err, ErrConfirmationNotFound) {
			logger.Warn("email confirmation failed: invalid token")
			respondError(w, "invalid confirmation token", httputil.CodeInvalidToken, http.StatusBadRequest)
			return
		}
		logger.Error("email confirmation failed: internal error", "error", err.Error())
		respondError(w, "failed to confirm email", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]string{"message": "Email confirmed successfully."}, http.StatusOK)
}

// ForgotPassword handles password reset requests. The response is the
// same for registered and unregistered addresses.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid forgot password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if h.ipRateLimited(w, r, "forgot-password") {
		return
	}

	// Per-email cooldown on top of the IP limit
	onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), req.Email)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
	} else if onCooldown {
		logger.Warn("email on cooldown", "email", req.Email)
		respondError(w, "please wait before requesting another reset", httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return
	}
	if err := h.rateLimiter.SetEmailCooldown(r.Context(), req.Email); err != nil {
		logger.Error("failed to set email cooldown", "error", err.Error())
	}

	// Always succeeds from the caller's point of view
	_ = h.service.RequestPasswordReset(r.Context(), req.Email)

	respondJSON(w, map[string]string{"message": forgotPasswordMessage}, http.StatusOK)
}

// ResetPassword applies a new password using a reset token
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid reset password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Email, req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRequest):
			logger.Warn("password reset failed: unknown account")
			respondError(w, "invalid request", httputil.CodeInvalidRequest, http.StatusBadRequest)
		case errors.Is(err, ErrResetTokenNotFound):
			logger.Warn("password reset failed: invalid or expired token")
			respondError(w, "invalid or expired reset token", httputil.CodeInvalidResetToken, http.StatusBadRequest)
		case isValidationError(err):
			logger.Warn("password reset failed: validation error", "error", err.Error())
			respondError(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		default:
			logger.Error("password reset failed: internal error", "error", err.Error())
			respondError(w, "failed to reset password", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("password reset successfully")
	h.collector.RecordPasswordReset()

	respondJSON(w, map[string]string{"message": "Password has been reset successfully."}, http.StatusOK)
}

// ipRateLimited enforces the per-IP limit for the given purpose and
// writes the 429 response itself when the limit is hit
func (h *Handler) ipRateLimited(w http.ResponseWriter, r *http.Request, purpose string) bool {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimit(r.Context(), ip, purpose)
	if err != nil {
		// Do not block legitimate requests on limiter failures
		logger.Error("failed to check IP rate limit", "error", err.Error())
		return false
	}
	if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return true
	}

	if err := h.rateLimiter.RecordIPRequest(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	return false
}

// isValidationError reports whether err is one of the input-shape
// sentinel errors
func isValidationError(err error) bool {
	return errors.Is(err, ErrEmailRequired) ||
		errors.Is(err, ErrInvalidEmailFormat) ||
		errors.Is(err, ErrPasswordRequired) ||
		errors.Is(err, ErrPasswordTooShort) ||
		errors.Is(err, ErrFirstNameRequired) ||
		errors.Is(err, ErrLastNameRequired) ||
		errors.Is(err, ErrNameTooLong)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For first (behind proxy/load balancer)
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr format is "IP:port", strip the port
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
