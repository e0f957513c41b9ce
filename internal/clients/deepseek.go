package clients

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultDeepSeekAPIURL = "https://api.deepseek.com/v1/chat/completions"

	// ModelDeepSeekReasoner separates reasoning into its own delta channel.
	// Other models embed reasoning in plain content between <think> markers.
	ModelDeepSeekReasoner = "deepseek-reasoner"
)

// DeepSeekClient streams reasoning and content deltas from a DeepSeek
// compatible chat completions endpoint.
type DeepSeekClient struct {
	*Client
}

func NewDeepSeekClient(apiKey, apiURL string) *DeepSeekClient {
	if apiURL == "" {
		apiURL = defaultDeepSeekAPIURL
	}
	return &DeepSeekClient{newClient(apiKey, apiURL)}
}

// deepseekDecoder turns raw response chunks into semantic events. It holds the
// per-stream marker state and remembers whether any content event has been
// produced, so the stream can close with the mandatory empty content event
// when the provider never signalled a transition.
type deepseekDecoder struct {
	model          string
	tags           thinkTagState
	yieldedContent bool
}

func (d *deepseekDecoder) decode(chunk []byte) (events []StreamEvent, done bool) {
	payloads, done := parseDataLines(chunk)
	for _, payload := range payloads {
		delta, ok := parseDelta(payload)
		if !ok {
			continue
		}
		events = append(events, d.decodeDelta(delta)...)
	}
	for _, ev := range events {
		if ev.Kind == KindContent {
			d.yieldedContent = true
		}
	}
	return events, done
}

func (d *deepseekDecoder) decodeDelta(delta *chunkDelta) []StreamEvent {
	if d.model == ModelDeepSeekReasoner {
		var events []StreamEvent
		if delta.ReasoningContent != nil && *delta.ReasoningContent != "" {
			events = append(events, StreamEvent{Kind: KindReasoning, Text: *delta.ReasoningContent})
		}
		// A delta carrying content with no reasoning field is the transition
		// out of the reasoning phase.
		if delta.ReasoningContent == nil && delta.Content != nil && *delta.Content != "" {
			events = append(events, StreamEvent{Kind: KindContent, Text: *delta.Content})
		}
		return events
	}
	if delta.Content == nil || *delta.Content == "" {
		return nil
	}
	return d.tags.classify(*delta.Content)
}

// StreamChat streams semantic events for the conversation. The returned
// channel is closed at end of stream; transport failures degrade to an early
// close and are logged rather than surfaced. A stream that ends without any
// content event yields one final empty content event so the caller can still
// hand off the accumulated reasoning.
func (c *DeepSeekClient) StreamChat(ctx context.Context, messages []openai.ChatCompletionMessage, model string) <-chan StreamEvent {
	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		body, err := json.Marshal(map[string]any{
			"model":    model,
			"messages": messages,
			"stream":   true,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode DeepSeek request")
			return
		}

		chunks, err := c.streamRequest(ctx, body, map[string]string{
			"Accept": "text/event-stream",
		})
		if err != nil {
			log.Error().Err(err).Str("model", model).Msg("DeepSeek stream request failed")
			return
		}

		dec := &deepseekDecoder{model: model}
		defer func() {
			if !dec.yieldedContent {
				log.Info().Str("model", model).Msg("Stream ended without content, emitting empty content event")
				emit(ctx, events, StreamEvent{Kind: KindContent})
			}
		}()

		for chunk := range chunks {
			decoded, done := dec.decode(chunk)
			for _, ev := range decoded {
				if !emit(ctx, events, ev) {
					dec.yieldedContent = true
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

// emit delivers one event unless the context has been cancelled.
func emit(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
