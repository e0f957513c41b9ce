package config

import (
	"sync"
)

var (
	jwtSecretMu sync.RWMutex
	// jwtSecret signs and verifies bearer JWTs accepted by the API. Empty
	// disables JWT validation.
	jwtSecret = []byte(GetEnvOrDefault("JWT_SECRET", ""))
)

// GetAPIKey returns the static API key clients may present instead of a JWT.
// Empty disables authentication entirely.
func GetAPIKey() string {
	return GetEnvOrDefault("ALLOW_API_KEY", "")
}

// SetJWTSecret temporarily changes the JWT secret and returns a function to restore it
// This is primarily used for testing
func SetJWTSecret(secret []byte) func() {
	jwtSecretMu.Lock()
	previous := jwtSecret
	jwtSecret = secret
	jwtSecretMu.Unlock()

	return func() {
		jwtSecretMu.Lock()
		jwtSecret = previous
		jwtSecretMu.Unlock()
	}
}

// GetJWTSecret returns the current JWT secret in a thread-safe manner
func GetJWTSecret() []byte {
	jwtSecretMu.RLock()
	defer jwtSecretMu.RUnlock()
	return jwtSecret
}
