package chat

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/deepclaude/deepclaude/internal/models"
	"github.com/deepclaude/deepclaude/internal/services/deepclaude"
	"github.com/deepclaude/deepclaude/pkg/httpext"
)

// HandleChatCompletions handles chat completions requests, streaming the
// relayed reasoning and answer deltas as server-sent events, or returning one
// aggregated response when stream is false.
func HandleChatCompletions(service *deepclaude.Service, w http.ResponseWriter, r *http.Request) {
	var req models.ChatCompletionRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Client sent malformed JSON request")
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	// use a single instance of Validate, it caches struct info
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(req); err != nil {
		log.Warn().Err(err).Msg("Request validation failed")
		httpext.JsonError(w, "Messages array cannot be empty", http.StatusBadRequest)
		return
	}

	log.Info().
		Int("message_count", len(req.Messages)).
		Bool("stream", req.Stream).
		Str("client_ip", r.RemoteAddr).
		Msg("Received chat completions request")

	relayReq := deepclaude.RequestFrom(req)

	if !req.Stream {
		resp, err := service.CreateCompletion(r.Context(), relayReq)
		if err != nil {
			log.Error().Err(err).Msg("Failed to process chat completion")
			httpext.JsonError(w, "Failed to process chat", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error().Err(err).Msg("Failed to encode response")
		}
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error().Msg("Response writer does not support streaming")
		httpext.JsonError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames := service.StreamCompletion(ctx, relayReq)

	clientGone := false
	for frame := range frames {
		if clientGone {
			// Keep draining so the relay can finish unwinding.
			continue
		}
		if _, err := w.Write(frame); err != nil {
			log.Warn().Err(err).Msg("Client disconnected mid-stream")
			clientGone = true
			cancel()
			continue
		}
		flusher.Flush()
	}
}
