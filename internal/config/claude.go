package config

// GetClaudeAPIKey returns the answer provider API key.
func GetClaudeAPIKey() string {
	return GetEnvOrDefault("CLAUDE_API_KEY", "")
}

// GetClaudeAPIURL returns the answer provider endpoint. Empty means the
// client's built-in default.
func GetClaudeAPIURL() string {
	return GetEnvOrDefault("CLAUDE_API_URL", "")
}

// GetClaudeModel returns the default answer model, used when a request does
// not name one.
func GetClaudeModel() string {
	return GetEnvOrDefault("CLAUDE_MODEL", "claude-3-5-sonnet-20241022")
}
