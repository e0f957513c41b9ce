package deepclaude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/deepclaude/deepclaude/internal/clients"
	"github.com/deepclaude/deepclaude/internal/config"
	"github.com/deepclaude/deepclaude/internal/models"
	"github.com/deepclaude/deepclaude/internal/services/usage"
)

const (
	doneFrame    = "data: [DONE]\n\n"
	timeoutFrame = "data: {\"error\": \"Operation timeout\"}\n\n"

	// Buffered so a briefly slow drain loop does not stall the provider
	// stages.
	outputBufferSize = 64
)

// ReasoningStreamer produces reasoning and content events for a conversation.
type ReasoningStreamer interface {
	StreamChat(ctx context.Context, messages []openai.ChatCompletionMessage, model string) <-chan clients.StreamEvent
}

// AnswerStreamer produces answer events for a conversation.
type AnswerStreamer interface {
	StreamChat(ctx context.Context, messages []openai.ChatCompletionMessage, model string, maxTokens int, temperature float32) <-chan clients.StreamEvent
}

// Request describes one relay invocation.
type Request struct {
	Messages       []openai.ChatCompletionMessage
	ReasoningModel string
	AnswerModel    string
	MaxTokens      int
	Temperature    float32
}

// RequestFrom builds a relay Request from an inbound completion request,
// filling model defaults from configuration.
func RequestFrom(req models.ChatCompletionRequest) Request {
	answerModel := req.Model
	if answerModel == "" {
		answerModel = config.GetClaudeModel()
	}
	return Request{
		Messages:       req.Messages,
		ReasoningModel: config.GetDeepSeekModel(),
		AnswerModel:    answerModel,
		MaxTokens:      req.MaxTokens,
		Temperature:    req.Temperature,
	}
}

// Service chains a reasoning provider and an answer provider into a single
// outgoing completion stream. The reasoning stage runs first; its accumulated
// reasoning is handed off exactly once to the answer stage, which replays it
// to the answer provider before streaming the final response.
type Service struct {
	reasoner ReasoningStreamer
	answerer AnswerStreamer
	usage    *usage.Tracker
	timeout  time.Duration
}

func NewService(reasoner ReasoningStreamer, answerer AnswerStreamer, tracker *usage.Tracker, timeout time.Duration) (*Service, error) {
	if reasoner == nil || answerer == nil {
		return nil, fmt.Errorf("both provider clients are required")
	}
	return &Service{
		reasoner: reasoner,
		answerer: answerer,
		usage:    tracker,
		timeout:  timeout,
	}, nil
}

// StreamCompletion runs the two provider stages and returns a channel of wire
// frames ready to be written to the client verbatim. The channel always ends
// with the [DONE] frame, preceded by an error frame if the deadline elapsed,
// and is closed only after both stages have fully stopped. Cancelling ctx
// stops the stream early.
func (s *Service) StreamCompletion(ctx context.Context, req Request) <-chan []byte {
	frames := make(chan []byte)

	go func() {
		defer close(frames)

		err := s.relay(ctx, req, func(chunk *models.ChatCompletionChunk) {
			data, merr := json.Marshal(chunk)
			if merr != nil {
				log.Error().Err(merr).Msg("Failed to encode stream chunk")
				return
			}
			frames <- []byte(fmt.Sprintf("data: %s\n\n", data))
		})
		if errors.Is(err, context.DeadlineExceeded) {
			frames <- []byte(timeoutFrame)
		}
		frames <- []byte(doneFrame)
	}()

	return frames
}

// CreateCompletion runs the relay and aggregates the streamed deltas into a
// single chat.completion response.
func (s *Service) CreateCompletion(ctx context.Context, req Request) (*models.ChatCompletionResponse, error) {
	var (
		id        string
		created   int64
		reasoning strings.Builder
		content   strings.Builder
	)

	err := s.relay(ctx, req, func(chunk *models.ChatCompletionChunk) {
		id = chunk.ID
		created = chunk.Created
		delta := chunk.Choices[0].Delta
		if delta.ReasoningContent != "" {
			reasoning.WriteString(delta.ReasoningContent)
			return
		}
		content.WriteString(delta.Content)
	})
	if err != nil {
		return nil, fmt.Errorf("completion did not finish: %w", err)
	}

	return &models.ChatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: created,
		Model:   req.AnswerModel,
		Choices: []models.ResponseChoice{{
			Index: 0,
			Message: models.ResponseMessage{
				Role:             "assistant",
				Content:          content.String(),
				ReasoningContent: reasoning.String(),
			},
			FinishReason: "stop",
		}},
	}, nil
}

// relay launches the reasoning and answer stages, drains their shared output
// channel through emit, and guarantees both stages are stopped before
// returning. A nil item on the output channel marks one finished stage; the
// drain loop ends when both have been counted. The returned error is non-nil
// only when the deadline elapsed or ctx was cancelled before both stages
// finished.
func (s *Service) relay(ctx context.Context, req Request, emit func(*models.ChatCompletionChunk)) error {
	chatID := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	output := make(chan *models.ChatCompletionChunk, outputBufferSize)
	handoff := make(chan string, 1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.runReasoningStage(ctx, req, chatID, created, output, handoff)
	}()
	go func() {
		defer wg.Done()
		s.runAnswerStage(ctx, req, chatID, created, output, handoff)
	}()

	s.usage.RecordRequest(context.WithoutCancel(ctx), req.AnswerModel)

	var relayErr error
	finished := 0
	emitted := 0
drain:
	for finished < 2 {
		select {
		case <-ctx.Done():
			relayErr = ctx.Err()
			break drain
		default:
		}

		select {
		case chunk := <-output:
			if chunk == nil {
				finished++
				continue
			}
			emit(chunk)
			emitted++
		case <-ctx.Done():
			relayErr = ctx.Err()
			break drain
		}
	}

	if relayErr != nil {
		log.Warn().
			Err(relayErr).
			Str("chat_id", chatID).
			Msg("Relay stopped before both stages finished, cancelling provider stages")
	}

	// Both stages must be fully unwound before the caller gets control back,
	// on every exit path.
	cancel()
	wg.Wait()

	s.usage.RecordFrames(context.WithoutCancel(ctx), req.AnswerModel, emitted)

	return relayErr
}

// runReasoningStage consumes the reasoning provider's events. Reasoning text
// is accumulated and mirrored to the output channel; the first content event
// triggers the one-shot handoff and ends the stage, abandoning any remainder
// of the provider stream. Every exit path deposits a handoff value and the
// stage-finished marker so the answer stage and the drain loop never block
// forever.
func (s *Service) runReasoningStage(ctx context.Context, req Request, chatID string, created int64, output chan<- *models.ChatCompletionChunk, handoff chan<- string) {
	defer finishStage(ctx, output)

	handoffSent := false
	var reasoning strings.Builder
	defer func() {
		if !handoffSent {
			// Capacity one, single writer: this never blocks.
			handoff <- ""
		}
	}()

	events := s.reasoner.StreamChat(ctx, req.Messages, req.ReasoningModel)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case clients.KindReasoning:
				reasoning.WriteString(ev.Text)
				if !send(ctx, output, models.NewReasoningChunk(chatID, created, req.ReasoningModel, ev.Text)) {
					return
				}
			case clients.KindContent:
				if reasoning.Len() == 0 {
					log.Warn().Str("chat_id", chatID).Msg("Reasoning provider finished without reasoning output")
				}
				handoff <- reasoning.String()
				handoffSent = true
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// runAnswerStage blocks on the handoff, builds the forwarded conversation and
// streams the answer provider's events to the output channel. Empty answer
// deltas are dropped.
func (s *Service) runAnswerStage(ctx context.Context, req Request, chatID string, created int64, output chan<- *models.ChatCompletionChunk, handoff <-chan string) {
	defer finishStage(ctx, output)

	var reasoning string
	select {
	case reasoning = <-handoff:
	case <-ctx.Done():
		return
	}

	messages := answerMessages(req.Messages, reasoning)
	if reasoning == "" {
		log.Warn().Str("chat_id", chatID).Msg("No reasoning handed off, forwarding original conversation")
	}

	events := s.answerer.StreamChat(ctx, messages, req.AnswerModel, req.MaxTokens, req.Temperature)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind != clients.KindAnswer || ev.Text == "" {
				continue
			}
			if !send(ctx, output, models.NewAnswerChunk(chatID, created, req.AnswerModel, ev.Text)) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// answerMessages builds the conversation forwarded to the answer provider.
// System messages are always stripped; when reasoning is available it is
// replayed as a synthetic assistant message.
func answerMessages(messages []openai.ChatCompletionMessage, reasoning string) []openai.ChatCompletionMessage {
	forwarded := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	for _, msg := range messages {
		if msg.Role == openai.ChatMessageRoleSystem {
			continue
		}
		forwarded = append(forwarded, msg)
	}
	if reasoning != "" {
		forwarded = append(forwarded, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: fmt.Sprintf("Here's my reasoning process:\n%s\n\nBased on this reasoning, I will now provide my response:", reasoning),
		})
	}
	return forwarded
}

func send(ctx context.Context, output chan<- *models.ChatCompletionChunk, chunk *models.ChatCompletionChunk) bool {
	select {
	case output <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// finishStage deposits the nil stage-finished marker. The send is abandoned
// when the context is done, because then the drain loop has already stopped
// counting.
func finishStage(ctx context.Context, output chan<- *models.ChatCompletionChunk) {
	select {
	case output <- nil:
	case <-ctx.Done():
	}
}
