package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/kestrel-qa/testpilot/apitoken"
	"github.com/kestrel-qa/testpilot/logger"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// TokenNameKey is the context key for the authenticated token name.
	TokenNameKey ContextKey = "token_name"

	// ScopeKey is the context key for the authenticated scope.
	ScopeKey ContextKey = "scope"
)

// AuthMiddleware validates Bearer tokens and adds token info to context.
type AuthMiddleware struct {
	tokenStore apitoken.Store
	logger     logger.Logger
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(tokenStore apitoken.Store, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokenStore: tokenStore,
		logger:     log,
	}
}

// Handler wraps an HTTP handler with Bearer token authentication.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			m.logger.Warn(r.Context(), "missing bearer token", map[string]interface{}{
				"path": r.URL.Path,
			})
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		rawToken := strings.TrimPrefix(authHeader, "Bearer ")
		hash := apitoken.HashToken(rawToken)
		token, err := m.tokenStore.GetByTokenHash(r.Context(), hash)
		if err != nil {
			m.logger.Warn(r.Context(), "invalid bearer token", map[string]interface{}{
				"path": r.URL.Path,
			})
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), TokenNameKey, token.Name)
		ctx = context.WithValue(ctx, ScopeKey, token.Scope)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetTokenName extracts the authenticated token name from the request context.
func GetTokenName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(TokenNameKey).(string)
	return name, ok
}

// GetScope extracts the scope from the request context.
func GetScope(ctx context.Context) string {
	scope, ok := ctx.Value(ScopeKey).(string)
	if !ok {
		return apitoken.ScopeReadOnly
	}
	return scope
}

// RequireWriteScope checks if the current request has write scope.
// Returns true if the scope is read_write, false otherwise (and writes a 403 response).
func RequireWriteScope(w http.ResponseWriter, r *http.Request) bool {
	scope := GetScope(r.Context())
	if scope != apitoken.ScopeReadWrite {
		respondError(w, http.StatusForbidden, "write access required")
		return false
	}
	return true
}

// WriteScopeMiddleware enforces write scope for state-mutating HTTP methods.
// GET and HEAD requests pass through regardless of scope. POST, PUT, DELETE,
// and PATCH require read_write scope.
func WriteScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
			if !RequireWriteScope(w, r) {
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
