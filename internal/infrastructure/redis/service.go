package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/deepclaude/deepclaude/internal/config"
)

// Service wraps the Redis client used for usage counters. It is optional: a
// missing REDIS_URL yields a nil service and callers degrade to no-ops.
type Service struct {
	client *redis.Client
}

func NewService() *Service {
	url := config.GetRedisURL()

	if url == "" {
		log.Warn().Msg("Redis URL not configured - usage tracking will be unavailable")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: config.GetRedisPassword(),
		DB:       0,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Error().
			Err(err).
			Str("addr", url).
			Msg("Failed to establish Redis connection")
		return nil
	}

	return &Service{
		client: client,
	}
}

// IncrBy atomically increments a counter key.
func (s *Service) IncrBy(ctx context.Context, key string, value int64) error {
	if err := s.client.IncrBy(ctx, key, value).Err(); err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Msg("Failed to increment Redis counter")
		return err
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Service) Close() error {
	return s.client.Close()
}
