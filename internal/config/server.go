package config

import (
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// GetServerAddr returns the listen address for the HTTP server.
func GetServerAddr() string {
	return GetEnvOrDefault("SERVER_ADDR", ":8080")
}

// GetStreamTimeout returns the end-to-end deadline for one relay request.
func GetStreamTimeout() time.Duration {
	raw := GetEnvOrDefault("STREAM_TIMEOUT_SECONDS", "300")
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		log.Warn().Str("value", raw).Msg("Invalid STREAM_TIMEOUT_SECONDS, falling back to 300")
		seconds = 300
	}
	return time.Duration(seconds) * time.Second
}
