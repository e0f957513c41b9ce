package config

// GetDeepSeekAPIKey returns the reasoning provider API key.
func GetDeepSeekAPIKey() string {
	return GetEnvOrDefault("DEEPSEEK_API_KEY", "")
}

// GetDeepSeekAPIURL returns the reasoning provider endpoint. Empty means the
// client's built-in default.
func GetDeepSeekAPIURL() string {
	return GetEnvOrDefault("DEEPSEEK_API_URL", "")
}

// GetDeepSeekModel returns the reasoning model identifier.
func GetDeepSeekModel() string {
	return GetEnvOrDefault("DEEPSEEK_MODEL", "deepseek-reasoner")
}
