package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/R3E-Network/tenant_portal/internal/errors"
	"github.com/R3E-Network/tenant_portal/internal/httputil"
	"github.com/R3E-Network/tenant_portal/internal/logging"
	"github.com/R3E-Network/tenant_portal/internal/supabase"
)

// TokenVerifier validates an access token and returns its user.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*supabase.User, error)
}

// AuthMiddleware authenticates API requests with the identity backend's
// access token, taken from the Authorization header or the session cookie.
type AuthMiddleware struct {
	verifier     TokenVerifier
	logger       *logging.Logger
	accessCookie string
	skipPaths    map[string]bool
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(verifier TokenVerifier, logger *logging.Logger, accessCookie string, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}

	return &AuthMiddleware{
		verifier:     verifier,
		logger:       logger,
		accessCookie: accessCookie,
		skipPaths:    skip,
	}
}

// Handler rejects requests without a valid access token.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token, err := m.extractToken(r)
		if err != nil {
			m.respondError(w, r, err)
			return
		}

		user, err := m.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("Token validation failed")
			m.respondError(w, r, errors.InvalidToken(err))
			return
		}

		ctx := withUser(r.Context(), user)
		m.logger.WithContext(ctx).Debug("Authentication successful")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional attaches the user when a valid token is present and never rejects.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := m.extractToken(r)
		if err == nil {
			if user, err := m.verifier.VerifyToken(r.Context(), token); err == nil {
				r = r.WithContext(withUser(r.Context(), user))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) extractToken(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", errors.Unauthorized("Invalid Authorization header format")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if m.accessCookie != "" {
		if c, err := r.Cookie(m.accessCookie); err == nil && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", errors.Unauthorized("Missing access token")
}

func withUser(ctx context.Context, user *supabase.User) context.Context {
	ctx = logging.WithUserID(ctx, user.ID)
	if user.Role != "" {
		ctx = context.WithValue(ctx, logging.RoleKey, user.Role)
	}
	return ctx
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("Authentication failed", err)
	}

	httputil.WriteError(w, r, serviceErr)

	m.logger.LogSecurityEvent(r.Context(), "authentication_failed", map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
		"reason": serviceErr.Message,
	})
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	return logging.GetUserID(ctx)
}

// GetUserRole extracts user role from context
func GetUserRole(ctx context.Context) string {
	return logging.GetRole(ctx)
}

// RequireUserID middleware ensures user ID is present in context
func RequireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			httputil.WriteError(w, r, errors.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
