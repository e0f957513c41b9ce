package models

import (
	openai "github.com/sashabaranov/go-openai"
)

// ChatCompletionRequest is the inbound request body for /v1/chat/completions.
// The model field selects the answer provider model; the reasoning model is
// configured server-side.
type ChatCompletionRequest struct {
	Model       string                         `json:"model"`
	Messages    []openai.ChatCompletionMessage `json:"messages" validate:"required,min=1"`
	Stream      bool                           `json:"stream"`
	MaxTokens   int                            `json:"max_tokens,omitempty"`
	Temperature float32                        `json:"temperature,omitempty"`
}

// Delta carries the incremental assistant payload for one stream chunk.
type Delta struct {
	Role             string `json:"role"`
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

type Choice struct {
	Index int   `json:"index"`
	Delta Delta `json:"delta"`
}

// ChatCompletionChunk is the outgoing wire envelope wrapping one semantic
// event. ID and Created are fixed once per request and repeated on every
// chunk of that request.
type ChatCompletionChunk struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// NewReasoningChunk wraps a reasoning delta. The text is duplicated into both
// content and reasoning_content so consumers that only read content still see
// the reasoning.
func NewReasoningChunk(id string, created int64, model, text string) *ChatCompletionChunk {
	return newChunk(id, created, model, Delta{
		Role:             "assistant",
		Content:          text,
		ReasoningContent: text,
	})
}

// NewAnswerChunk wraps a final answer delta.
func NewAnswerChunk(id string, created int64, model, text string) *ChatCompletionChunk {
	return newChunk(id, created, model, Delta{
		Role:    "assistant",
		Content: text,
	})
}

func newChunk(id string, created int64, model string, delta Delta) *ChatCompletionChunk {
	return &ChatCompletionChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   model,
		Choices: []Choice{{Index: 0, Delta: delta}},
	}
}

// ResponseMessage is the aggregated assistant message for non-streaming
// completions.
type ResponseMessage struct {
	Role             string `json:"role"`
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

type ResponseChoice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ChatCompletionResponse is the non-streaming completion body.
type ChatCompletionResponse struct {
	ID      string           `json:"id"`
	Object  string           `json:"object"`
	Created int64            `json:"created"`
	Model   string           `json:"model"`
	Choices []ResponseChoice `json:"choices"`
}
