package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arbilo/arbilod/internal/domain"
)

// ValidateJWT parses and verifies an HS256 token against the given secret.
// It rejects tokens signed with any other algorithm.
func ValidateJWT(secret, token string) error {
	_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return fmt.Errorf("middleware: validate token: %w: %w", domain.ErrUnauthorized, err)
	}
	return nil
}

// ExtractToken looks for a token in the Authorization header (Bearer scheme)
// or in the `token` query parameter. The query form exists for WebSocket
// clients, which cannot set custom headers during the handshake.
func ExtractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	if tok := r.URL.Query().Get("token"); tok != "" {
		return strings.TrimSpace(tok)
	}

	return ""
}

// Auth returns middleware that validates API requests using a JWT carried in
// the Authorization header or the `token` query parameter. If secret is
// empty, the middleware passes all requests through (disabled).
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// If no secret is configured, authentication is disabled.
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := ExtractToken(r)
			if token == "" {
				writeUnauthorized(w, "missing authentication token")
				return
			}

			if err := ValidateJWT(secret, token); err != nil {
				writeUnauthorized(w, "invalid authentication token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestAuthenticator adapts the JWT check into the per-request form the
// WebSocket hub consumes. Returns nil when secret is empty.
func RequestAuthenticator(secret string) func(r *http.Request) error {
	if secret == "" {
		return nil
	}
	return func(r *http.Request) error {
		token := ExtractToken(r)
		if token == "" {
			return fmt.Errorf("middleware: missing authentication token: %w", domain.ErrUnauthorized)
		}
		return ValidateJWT(secret, token)
	}
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
