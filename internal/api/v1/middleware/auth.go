package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/deepclaude/deepclaude/internal/config"
	"github.com/deepclaude/deepclaude/pkg/httpext"
)

// RequireAuth validates the bearer credential on /v1 requests. A request is
// accepted when the token equals the configured API key, or when it is a
// valid HS256 JWT signed with the configured secret. With neither an API key
// nor a JWT secret configured, authentication is disabled.
func RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := config.GetAPIKey()
			secret := config.GetJWTSecret()

			if apiKey == "" && len(secret) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			token := extractBearer(r)
			if token == "" {
				httpext.JsonError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if apiKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			if len(secret) > 0 && validateJWT(token, secret) {
				next.ServeHTTP(w, r)
				return
			}

			log.Warn().Str("client_ip", r.RemoteAddr).Msg("Rejected request with invalid credentials")
			httpext.JsonError(w, "Invalid token", http.StatusUnauthorized)
		})
	}
}

func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func validateJWT(tokenString string, secret []byte) bool {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return false
	}
	return token.Valid
}
