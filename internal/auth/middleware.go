// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package auth

import (
	"context"
	"net/http"
	"strings"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// UserIDKey is the context key for user ID
	UserIDKey ContextKey = "user_id"
	// TokenKey is the context key for the auth token
	TokenKey ContextKey = "token"
)

// Middleware provides HTTP middleware for authentication
type Middleware struct {
	tokenManager *TokenManager
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(tokenManager *TokenManager) *Middleware {
	return &Middleware{
		tokenManager: tokenManager,
	}
}

// RequireAuth rejects requests that do not carry a valid bearer token and
// stamps the user id and token onto the request context for handlers
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, "missing credentials", http.StatusUnauthorized)
			return
		}

		authToken, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, authToken.UserID)
		ctx = context.WithValue(ctx, TokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken pulls the token from the Authorization header, falling back to
// the access_token query parameter for clients that cannot set headers
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if scheme, rest, found := strings.Cut(header, " "); found && strings.EqualFold(scheme, "bearer") {
		return rest
	}
	return r.URL.Query().Get("access_token")
}

// GetUserIDFromContext extracts the user ID from request context
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok
}

// GetTokenFromContext extracts the token from request context
func GetTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}
