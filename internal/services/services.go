package services

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/deepclaude/deepclaude/internal/clients"
	"github.com/deepclaude/deepclaude/internal/config"
	"github.com/deepclaude/deepclaude/internal/infrastructure/redis"
	"github.com/deepclaude/deepclaude/internal/services/deepclaude"
	"github.com/deepclaude/deepclaude/internal/services/usage"
)

var (
	// Mutex for thread-safe initialization
	servicesMu sync.RWMutex
)

type Services struct {
	redisService      *redis.Service
	usageTracker      *usage.Tracker
	deepClaudeService *deepclaude.Service
}

// InitializeServices initializes all required services
func InitializeServices() (*Services, error) {
	servicesMu.Lock()
	defer servicesMu.Unlock()

	log.Info().Msg("Initializing core services")

	// Initialize Redis service (optional)
	redisService := redis.NewService()
	usageTracker := usage.NewTracker(redisService)

	deepseekKey := config.GetDeepSeekAPIKey()
	claudeKey := config.GetClaudeAPIKey()
	if deepseekKey == "" || claudeKey == "" {
		return nil, fmt.Errorf("DEEPSEEK_API_KEY and CLAUDE_API_KEY are required")
	}

	reasoner := clients.NewDeepSeekClient(deepseekKey, config.GetDeepSeekAPIURL())
	answerer := clients.NewClaudeClient(claudeKey, config.GetClaudeAPIURL())

	deepClaudeService, err := deepclaude.NewService(reasoner, answerer, usageTracker, config.GetStreamTimeout())
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize relay service")
		return nil, fmt.Errorf("failed to initialize relay service: %w", err)
	}

	log.Info().Msg("All services initialized successfully")

	return &Services{
		redisService:      redisService,
		usageTracker:      usageTracker,
		deepClaudeService: deepClaudeService,
	}, nil
}

// GetDeepClaudeService returns the relay service
func (s *Services) GetDeepClaudeService() *deepclaude.Service {
	return s.deepClaudeService
}

// Close releases infrastructure connections.
func (s *Services) Close() {
	if s.redisService != nil {
		s.redisService.Close()
	}
}
