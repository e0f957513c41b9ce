package clients

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	sseDataPrefix = "data: "
	doneSentinel  = "[DONE]"
)

// chunkDelta is the incremental payload inside a provider stream chunk.
// Pointers distinguish an absent field from an empty string, which matters for
// detecting the reasoning-to-content transition.
type chunkDelta struct {
	Content          *string `json:"content"`
	ReasoningContent *string `json:"reasoning_content"`
}

type chunkPayload struct {
	Choices []struct {
		Delta chunkDelta `json:"delta"`
	} `json:"choices"`
}

// parseDataLines splits a raw chunk into SSE data payloads, reporting whether
// the termination sentinel was observed. Lines without the data prefix and
// blank lines are ignored. Payloads after the sentinel are dropped.
func parseDataLines(chunk []byte) (payloads []string, done bool) {
	for _, line := range strings.Split(string(chunk), "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, sseDataPrefix) {
			continue
		}
		payload := line[len(sseDataPrefix):]
		if payload == doneSentinel {
			return payloads, true
		}
		payloads = append(payloads, payload)
	}
	return payloads, false
}

// parseDelta decodes one data payload into its first-choice delta. A malformed
// payload is skipped so one bad line never aborts the rest of the stream.
func parseDelta(payload string) (*chunkDelta, bool) {
	var chunk chunkPayload
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		log.Debug().Err(err).Str("payload", payload).Msg("Skipping malformed stream line")
		return nil, false
	}
	if len(chunk.Choices) == 0 {
		return nil, false
	}
	return &chunk.Choices[0].Delta, true
}
