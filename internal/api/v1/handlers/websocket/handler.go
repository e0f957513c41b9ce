package websocket

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/deepclaude/deepclaude/internal/models"
	"github.com/deepclaude/deepclaude/internal/services/deepclaude"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleChatStream streams one relay request over a websocket, for clients
// that cannot consume server-sent events. The client sends a single chat
// completion request message; the server answers with the same wire frames
// the SSE endpoint emits and closes after the [DONE] frame.
func HandleChatStream(service *deepclaude.Service, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}
	defer conn.Close()

	var req models.ChatCompletionRequest
	if err := conn.ReadJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Invalid websocket chat request")
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInvalidFramePayloadData, "invalid request"))
		return
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(req); err != nil {
		log.Warn().Err(err).Msg("Websocket request validation failed")
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInvalidFramePayloadData, "invalid request"))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client is not expected to send anything else; a read error means it
	// went away and the relay should stop.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	frames := service.StreamCompletion(ctx, deepclaude.RequestFrom(req))

	clientGone := false
	for frame := range frames {
		if clientGone {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			log.Warn().Err(err).Msg("Websocket client disconnected mid-stream")
			clientGone = true
			cancel()
		}
	}

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
