package clients

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultClaudeAPIURL = "https://openrouter.ai/api/v1/chat/completions"

	defaultMaxTokens   = 8192
	defaultTemperature = float32(0.7)
)

// ClaudeClient streams final answer deltas from an OpenAI-compatible chat
// completions endpoint, typically Claude behind OpenRouter.
type ClaudeClient struct {
	*Client
}

func NewClaudeClient(apiKey, apiURL string) *ClaudeClient {
	if apiURL == "" {
		apiURL = defaultClaudeAPIURL
	}
	return &ClaudeClient{newClient(apiKey, apiURL)}
}

// claudeDecoder performs plain line/event framing: every content delta is an
// answer event. There is no marker handling on this path.
type claudeDecoder struct{}

func (claudeDecoder) decode(chunk []byte) (events []StreamEvent, done bool) {
	payloads, done := parseDataLines(chunk)
	for _, payload := range payloads {
		delta, ok := parseDelta(payload)
		if !ok {
			continue
		}
		if delta.Content != nil {
			events = append(events, StreamEvent{Kind: KindAnswer, Text: *delta.Content})
		}
	}
	return events, done
}

// StreamChat streams answer events for the conversation. Zero maxTokens or
// temperature fall back to the service defaults. The channel is closed at end
// of stream; failures degrade to an early close.
func (c *ClaudeClient) StreamChat(ctx context.Context, messages []openai.ChatCompletionMessage, model string, maxTokens int, temperature float32) <-chan StreamEvent {
	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		if maxTokens <= 0 {
			maxTokens = defaultMaxTokens
		}
		if temperature <= 0 {
			temperature = defaultTemperature
		}

		body, err := json.Marshal(map[string]any{
			"model":       model,
			"messages":    messages,
			"stream":      true,
			"max_tokens":  maxTokens,
			"temperature": temperature,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode Claude request")
			return
		}

		chunks, err := c.streamRequest(ctx, body, nil)
		if err != nil {
			log.Error().Err(err).Str("model", model).Msg("Claude stream request failed")
			return
		}

		var dec claudeDecoder
		for chunk := range chunks {
			decoded, done := dec.decode(chunk)
			for _, ev := range decoded {
				if !emit(ctx, events, ev) {
					return
				}
			}
			if done {
				return
			}
		}
	}()

	return events
}
