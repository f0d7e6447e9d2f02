// @title FieldOps API
// @version 1.0.0
// @description Authorization and login security core for the FieldOps operations platform
// @termsOfService http://swagger.io/terms/

// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name session_id

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fieldops/fieldops/internal/authz"
	"github.com/fieldops/fieldops/internal/identity"
	"github.com/fieldops/fieldops/internal/login"
	"github.com/fieldops/fieldops/internal/observability/logger"
	"github.com/fieldops/fieldops/internal/session"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	sessionService  *session.Service
	orchestrator    *login.Orchestrator
	guard           *authz.Guard
	resolver        *authz.Resolver
	sessionConfig   SessionConfig
}

// SessionConfig holds session cookie configuration
type SessionConfig struct {
	CookieName     string
	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite http.SameSite
	Lifetime       time.Duration
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	sessionService *session.Service,
	orchestrator *login.Orchestrator,
	guard *authz.Guard,
	resolver *authz.Resolver,
	sessionConfig SessionConfig,
) *Handler {
	return &Handler{
		identityService: identityService,
		sessionService:  sessionService,
		orchestrator:    orchestrator,
		guard:           guard,
		resolver:        resolver,
		sessionConfig:   sessionConfig,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		// Protected routes. Session auth rides on a cookie, so every
		// state-changing call inside the group additionally has to carry
		// the CSRF header.
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Use(h.CSRFMiddleware)

			r.Post("/auth/logout", h.Logout)
			r.Get("/auth/me", h.GetCurrentUser)

			// User profile
			r.Get("/user/profile", h.GetProfile)
			r.Put("/user/profile", h.UpdateProfile)
			r.Post("/user/change-password", h.ChangePassword)

			// Effective permissions of the calling principal
			r.Get("/authz/permissions", h.GetPermissions)
			r.Get("/authz/permissions/{capability}", h.CheckPermission)

			// Role assignment, guarded
			r.Route("/users/{userID}/roles", func(r chi.Router) {
				r.Post("/", h.AssignRole)
				r.Delete("/{role}", h.RemoveRole)
			})
		})
	})

	return r
}

// HealthResponse is the health check payload
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: "fieldops",
	})
}

// RegisterRequest represents registration data
type RegisterRequest struct {
	TenantID   string `json:"tenant_id" binding:"required"`
	Email      string `json:"email" binding:"required" example:"user@example.com"`
	Password   string `json:"password" binding:"required" example:"secret123"`
	GivenName  string `json:"given_name" example:"John"`
	FamilyName string `json:"family_name" example:"Doe"`
}

// Register handles user registration
// @Summary Register a new user
// @Description Register a new user in a tenant
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration Data"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	profile := identity.Profile{
		GivenName:  req.GivenName,
		FamilyName: req.FamilyName,
		FullName:   req.GivenName + " " + req.FamilyName,
	}

	user, err := h.identityService.ProvisionIdentity(r.Context(), req.TenantID, req.Email, profile)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to provision user",
			logger.Error(err),
			logger.Email(req.Email),
		)

		switch err {
		case identity.ErrUserAlreadyExists:
			respondError(w, http.StatusConflict, "user already exists")
		case identity.ErrInvalidEmail:
			respondError(w, http.StatusBadRequest, "invalid email address")
		default:
			respondError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	if err := h.identityService.AddPassword(r.Context(), user.ID, req.Password); err != nil {
		slog.ErrorContext(r.Context(), "failed to set password",
			logger.Error(err),
			logger.UserID(user.ID),
		)
		if err == identity.ErrWeakPassword {
			respondError(w, http.StatusBadRequest, "password does not meet security requirements")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to set password")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
}

// LoginRequest represents login credentials. ChallengeToken echoes back
// the token from a previous 403 challenge response.
type LoginRequest struct {
	TenantID       string `json:"tenant_id" binding:"required"`
	Email          string `json:"email" binding:"required" example:"user@example.com"`
	Password       string `json:"password" binding:"required" example:"secret123"`
	ChallengeToken string `json:"challenge_token,omitempty"`
}

// Login handles user login through the login security pipeline
// @Summary Login
// @Description Authenticate user and create a session
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]any
// @Failure 429 {object} map[string]string
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" || req.Email == "" {
		respondError(w, http.StatusBadRequest, "tenant_id and email are required")
		return
	}

	result := h.orchestrator.SecureLogin(r.Context(), login.Request{
		TenantID:       req.TenantID,
		Email:          req.Email,
		Password:       req.Password,
		ChallengeToken: req.ChallengeToken,
		IPAddress:      getIPAddress(r),
		UserAgent:      r.UserAgent(),
	})

	switch {
	case result.Success:
		// fall through to session creation below
	case result.RequiresChallenge:
		respondJSON(w, http.StatusForbidden, map[string]any{
			"error":              result.Message,
			"requires_challenge": true,
			"challenge_token":    result.ChallengeToken,
		})
		return
	case result.Message == login.MsgTooManyAttempts:
		respondError(w, http.StatusTooManyRequests, result.Message)
		return
	default:
		respondError(w, http.StatusUnauthorized, result.Message)
		return
	}

	sess, err := h.sessionService.Create(
		r.Context(),
		req.TenantID,
		result.PrincipalID,
		getIPAddress(r),
		r.UserAgent(),
	)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create session", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.setSessionCookie(w, sess.ID)

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": result.PrincipalID,
	})
}

// Logout handles user logout
// @Summary Logout
// @Description Destroy the current session
// @Tags Auth
// @Produce json
// @Security CookieAuth
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := GetSessionID(r.Context())
	if sessionID != "" {
		if err := h.sessionService.Destroy(r.Context(), sessionID); err != nil {
			slog.WarnContext(r.Context(), "failed to destroy session", logger.Error(err))
		}
	}

	h.clearSessionCookie(w)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "logged out successfully",
	})
}

// GetCurrentUser returns the current authenticated user identity
// @Summary Get Current User
// @Description Retrieve details of the currently logged-in user
// @Tags User
// @Produce json
// @Security CookieAuth
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /auth/me [get]
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	user, err := h.identityService.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":        user.ID,
		"tenant_id":      user.TenantID,
		"email":          user.Email,
		"email_verified": user.EmailVerified,
		"profile":        user.Profile,
	})
}

// GetProfile returns the user profile
// @Summary Get User Profile
// @Description Retrieve the profile of the current user
// @Tags User
// @Produce json
// @Security CookieAuth
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /user/profile [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	user, err := h.identityService.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
		"profile": user.Profile,
	})
}

// UpdateProfile updates the user profile
// @Summary Update Profile
// @Description Update the profile information
// @Tags User
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body identity.Profile true "New Profile"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /user/profile [put]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	var profile identity.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.identityService.UpdateProfile(r.Context(), userID, profile); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "profile updated successfully",
	})
}

// ChangePasswordRequest represents password change data
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ChangePassword changes the user password
// @Summary Change Password
// @Description Update the password for the current user
// @Tags User
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body ChangePasswordRequest true "Password Change Data"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /user/change-password [post]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	var req ChangePasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.identityService.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword)
	if err != nil {
		switch err {
		case identity.ErrInvalidCredentials:
			respondError(w, http.StatusUnauthorized, "invalid old password")
		case identity.ErrWeakPassword:
			respondError(w, http.StatusBadRequest, "new password does not meet security requirements")
		default:
			respondError(w, http.StatusInternalServerError, "failed to change password")
		}
		return
	}

	// Password change invalidates every other session for the user.
	if err := h.sessionService.DestroyAll(r.Context(), userID); err != nil {
		slog.WarnContext(r.Context(), "failed to destroy user sessions", logger.Error(err))
	}
	h.clearSessionCookie(w)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "password changed successfully",
	})
}

// GetPermissions returns the effective permission set of the caller
// @Summary Effective Permissions
// @Description Retrieve the capability record enforced for the current user
// @Tags Authz
// @Produce json
// @Security CookieAuth
// @Success 200 {object} catalog.PermissionSet
// @Failure 500 {object} map[string]string
// @Router /authz/permissions [get]
func (h *Handler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())
	userID := GetUserID(r.Context())

	perms, err := h.resolver.EffectivePermissions(r.Context(), tenantID, userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to resolve permissions",
			logger.Error(err),
			logger.UserID(userID),
		)
		respondError(w, http.StatusInternalServerError, "failed to resolve permissions")
		return
	}

	respondJSON(w, http.StatusOK, perms)
}

// CheckPermission reports whether the caller holds a single capability
// @Summary Check Capability
// @Description Check a single named capability for the current user
// @Tags Authz
// @Produce json
// @Security CookieAuth
// @Success 200 {object} map[string]bool
// @Failure 500 {object} map[string]string
// @Router /authz/permissions/{capability} [get]
func (h *Handler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())
	userID := GetUserID(r.Context())
	capability := chi.URLParam(r, "capability")

	allowed, err := h.resolver.HasPermission(r.Context(), tenantID, userID, capability)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to resolve permissions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{
		"allowed": allowed,
	})
}

// AssignRoleRequest represents a role grant
type AssignRoleRequest struct {
	Role string `json:"role" binding:"required" example:"technician"`
}

// AssignRole grants a role to a user
// @Summary Assign Role
// @Description Grant a role to a user, subject to the assignment guard
// @Tags Authz
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param userID path string true "Subject User ID"
// @Param request body AssignRoleRequest true "Role"
// @Success 201 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /users/{userID}/roles [post]
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())
	actorID := GetUserID(r.Context())
	subjectID := chi.URLParam(r, "userID")

	var req AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Role == "" {
		respondError(w, http.StatusBadRequest, "role is required")
		return
	}

	err := h.guard.AssignRole(r.Context(), tenantID, actorID, subjectID, req.Role)
	if err != nil {
		switch err {
		case authz.ErrPermissionDenied:
			respondError(w, http.StatusForbidden, "permission denied")
		case authz.ErrAssignmentAlreadyExists:
			respondError(w, http.StatusConflict, "role already assigned")
		default:
			respondError(w, http.StatusInternalServerError, "failed to assign role")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"message": "role assigned",
	})
}

// RemoveRole revokes a role from a user
// @Summary Remove Role
// @Description Revoke a role from a user, subject to the assignment guard
// @Tags Authz
// @Produce json
// @Security CookieAuth
// @Param userID path string true "Subject User ID"
// @Param role path string true "Role Name"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /users/{userID}/roles/{role} [delete]
func (h *Handler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())
	actorID := GetUserID(r.Context())
	subjectID := chi.URLParam(r, "userID")
	roleName := chi.URLParam(r, "role")

	err := h.guard.RemoveRole(r.Context(), tenantID, actorID, subjectID, roleName)
	if err != nil {
		switch err {
		case authz.ErrPermissionDenied:
			respondError(w, http.StatusForbidden, "permission denied")
		case authz.ErrAssignmentNotFound:
			respondError(w, http.StatusNotFound, "assignment not found")
		default:
			respondError(w, http.StatusInternalServerError, "failed to remove role")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "role removed",
	})
}

// Helper functions
func (h *Handler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	maxAge := int(h.sessionConfig.Lifetime.Seconds())
	if maxAge <= 0 {
		maxAge = 86400
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionConfig.CookieName,
		Value:    sessionID,
		Path:     h.sessionConfig.CookiePath,
		Domain:   h.sessionConfig.CookieDomain,
		Secure:   h.sessionConfig.CookieSecure,
		HttpOnly: h.sessionConfig.CookieHTTPOnly,
		SameSite: h.sessionConfig.CookieSameSite,
		MaxAge:   maxAge,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   h.sessionConfig.CookieName,
		Value:  "",
		Path:   h.sessionConfig.CookiePath,
		Domain: h.sessionConfig.CookieDomain,
		MaxAge: -1,
	})
}

func (h *Handler) getSessionFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(h.sessionConfig.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
