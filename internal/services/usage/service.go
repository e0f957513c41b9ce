package usage

import (
	"context"
	"fmt"

	"github.com/deepclaude/deepclaude/internal/infrastructure/redis"
)

// Tracker records per-model usage counters in Redis. A nil Tracker is a
// no-op, so callers never need to branch on whether tracking is configured.
// Recording is fire and forget and never sits on the request critical path.
type Tracker struct {
	redis *redis.Service
}

func NewTracker(redisService *redis.Service) *Tracker {
	if redisService == nil {
		return nil
	}
	return &Tracker{redis: redisService}
}

// RecordRequest counts one relay invocation for the model.
func (t *Tracker) RecordRequest(ctx context.Context, model string) {
	if t == nil {
		return
	}
	go t.redis.IncrBy(ctx, fmt.Sprintf("usage:requests:%s", model), 1)
}

// RecordFrames counts stream frames emitted for the model.
func (t *Tracker) RecordFrames(ctx context.Context, model string, frames int) {
	if t == nil || frames == 0 {
		return
	}
	go t.redis.IncrBy(ctx, fmt.Sprintf("usage:frames:%s", model), int64(frames))
}
