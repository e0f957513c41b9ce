package deepclaude

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/deepclaude/deepclaude/internal/clients"
	"github.com/deepclaude/deepclaude/internal/models"
)

type fakeReasoner struct {
	events []clients.StreamEvent
}

func (f *fakeReasoner) StreamChat(ctx context.Context, _ []openai.ChatCompletionMessage, _ string) <-chan clients.StreamEvent {
	ch := make(chan clients.StreamEvent)
	go func() {
		defer close(ch)
		for _, ev := range f.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// endlessReasoner keeps emitting reasoning until cancelled.
type endlessReasoner struct{}

func (endlessReasoner) StreamChat(ctx context.Context, _ []openai.ChatCompletionMessage, _ string) <-chan clients.StreamEvent {
	ch := make(chan clients.StreamEvent)
	go func() {
		defer close(ch)
		for {
			select {
			case ch <- clients.StreamEvent{Kind: clients.KindReasoning, Text: "more"}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

type fakeAnswerer struct {
	events      []clients.StreamEvent
	calls       int
	gotMessages []openai.ChatCompletionMessage
}

func (f *fakeAnswerer) StreamChat(ctx context.Context, messages []openai.ChatCompletionMessage, _ string, _ int, _ float32) <-chan clients.StreamEvent {
	f.calls++
	f.gotMessages = messages
	ch := make(chan clients.StreamEvent)
	go func() {
		defer close(ch)
		for _, ev := range f.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func newTestService(t *testing.T, reasoner ReasoningStreamer, answerer AnswerStreamer, timeout time.Duration) *Service {
	t.Helper()
	service, err := NewService(reasoner, answerer, nil, timeout)
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	return service
}

func collectFrames(t *testing.T, frames <-chan []byte) []string {
	t.Helper()
	var got []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return got
			}
			got = append(got, string(frame))
		case <-timeout:
			t.Fatal("timed out waiting for frame channel to close")
		}
	}
}

func decodeChunk(t *testing.T, frame string) *models.ChatCompletionChunk {
	t.Helper()
	payload := strings.TrimSuffix(strings.TrimPrefix(frame, "data: "), "\n\n")
	var chunk models.ChatCompletionChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		t.Fatalf("frame %q is not a chunk: %v", frame, err)
	}
	return &chunk
}

func TestStreamCompletionFullFlow(t *testing.T) {
	reasoner := &fakeReasoner{events: []clients.StreamEvent{
		{Kind: clients.KindReasoning, Text: "<think>"},
		{Kind: clients.KindReasoning, Text: "4"},
		{Kind: clients.KindReasoning, Text: "</think>"},
		{Kind: clients.KindContent},
	}}
	answerer := &fakeAnswerer{events: []clients.StreamEvent{
		{Kind: clients.KindAnswer, Text: "The answer is 4."},
	}}
	service := newTestService(t, reasoner, answerer, 5*time.Second)

	req := Request{
		Messages:       []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "2+2?"}},
		ReasoningModel: "deepseek-reasoner",
		AnswerModel:    "claude-3-5-sonnet-20241022",
	}
	frames := collectFrames(t, service.StreamCompletion(context.Background(), req))

	if len(frames) != 5 {
		t.Fatalf("got %d frames %v, want 3 reasoning + 1 answer + done", len(frames), frames)
	}
	if frames[len(frames)-1] != "data: [DONE]\n\n" {
		t.Errorf("last frame = %q, want done sentinel", frames[len(frames)-1])
	}

	first := decodeChunk(t, frames[0])
	delta := first.Choices[0].Delta
	if delta.Content != "<think>" || delta.ReasoningContent != "<think>" {
		t.Errorf("reasoning delta = %+v, want text mirrored into content and reasoning_content", delta)
	}
	if first.Object != "chat.completion.chunk" || !strings.HasPrefix(first.ID, "chatcmpl-") {
		t.Errorf("unexpected envelope header %+v", first)
	}

	answer := decodeChunk(t, frames[3])
	if answer.Choices[0].Delta.Content != "The answer is 4." {
		t.Errorf("answer delta = %+v", answer.Choices[0].Delta)
	}
	if answer.Choices[0].Delta.ReasoningContent != "" {
		t.Error("answer delta must not carry reasoning_content")
	}
	if answer.ID != first.ID || answer.Created != first.Created {
		t.Error("envelope id and created must be fixed for the whole request")
	}

	// The answer provider must have received the accumulated reasoning.
	last := answerer.gotMessages[len(answerer.gotMessages)-1]
	if last.Role != openai.ChatMessageRoleAssistant || !strings.Contains(last.Content, "<think>4</think>") {
		t.Errorf("synthetic reasoning message = %+v", last)
	}
	if !strings.Contains(last.Content, "Here's my reasoning process:") {
		t.Errorf("synthetic message missing preamble: %q", last.Content)
	}
}

func TestStreamCompletionReasonerFailureStillRunsAnswerStage(t *testing.T) {
	// A reasoning stream that dies immediately produces zero events.
	reasoner := &fakeReasoner{}
	answerer := &fakeAnswerer{events: []clients.StreamEvent{
		{Kind: clients.KindAnswer, Text: "fallback answer"},
	}}
	service := newTestService(t, reasoner, answerer, 5*time.Second)

	req := Request{
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "be nice"},
			{Role: openai.ChatMessageRoleUser, Content: "2+2?"},
		},
		AnswerModel: "claude-3-5-sonnet-20241022",
	}
	frames := collectFrames(t, service.StreamCompletion(context.Background(), req))

	if len(frames) != 2 {
		t.Fatalf("got %d frames %v, want answer + done", len(frames), frames)
	}
	if answerer.calls != 1 {
		t.Fatalf("answer stage ran %d times, want 1", answerer.calls)
	}
	// System messages stripped, no synthetic reasoning message appended.
	if len(answerer.gotMessages) != 1 || answerer.gotMessages[0].Role != openai.ChatMessageRoleUser {
		t.Errorf("forwarded messages = %+v, want only the user message", answerer.gotMessages)
	}
}

func TestStreamCompletionTimeout(t *testing.T) {
	service := newTestService(t, endlessReasoner{}, &fakeAnswerer{}, 0)

	req := Request{
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "2+2?"}},
		AnswerModel: "claude-3-5-sonnet-20241022",
	}
	frames := collectFrames(t, service.StreamCompletion(context.Background(), req))

	want := []string{
		"data: {\"error\": \"Operation timeout\"}\n\n",
		"data: [DONE]\n\n",
	}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames %v, want error frame then done", len(frames), frames)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("frame %d = %q, want %q", i, frames[i], want[i])
		}
	}
}

func TestStreamCompletionAbandonsReasonerAfterHandoff(t *testing.T) {
	reasoner := &fakeReasoner{events: []clients.StreamEvent{
		{Kind: clients.KindReasoning, Text: "a"},
		{Kind: clients.KindContent, Text: "trigger"},
		// Everything after the first content event must be abandoned.
		{Kind: clients.KindReasoning, Text: "late"},
		{Kind: clients.KindContent, Text: "again"},
	}}
	answerer := &fakeAnswerer{events: []clients.StreamEvent{
		{Kind: clients.KindAnswer, Text: "ok"},
	}}
	service := newTestService(t, reasoner, answerer, 5*time.Second)

	req := Request{
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "hi"}},
		AnswerModel: "m",
	}
	frames := collectFrames(t, service.StreamCompletion(context.Background(), req))

	if answerer.calls != 1 {
		t.Fatalf("answer stage ran %d times, want exactly 1", answerer.calls)
	}
	for _, frame := range frames {
		if strings.Contains(frame, "late") {
			t.Errorf("abandoned reasoning leaked into output: %q", frame)
		}
	}
	if len(frames) != 3 {
		t.Errorf("got %d frames %v, want reasoning + answer + done", len(frames), frames)
	}
}

func TestStreamCompletionCallerCancellation(t *testing.T) {
	answerer := &fakeAnswerer{}
	service := newTestService(t, endlessReasoner{}, answerer, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	frames := service.StreamCompletion(ctx, Request{
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "hi"}},
		AnswerModel: "m",
	})

	// Read a few frames, then walk away.
	for i := 0; i < 3; i++ {
		select {
		case <-frames:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for frames")
		}
	}
	cancel()

	got := collectFrames(t, frames)
	if len(got) == 0 || got[len(got)-1] != "data: [DONE]\n\n" {
		t.Errorf("stream after cancellation = %v, want it to end with the done sentinel", got)
	}
	for _, frame := range got {
		if strings.Contains(frame, "Operation timeout") {
			t.Errorf("caller cancellation must not produce a timeout frame, got %q", frame)
		}
	}
}

func TestCreateCompletionAggregates(t *testing.T) {
	reasoner := &fakeReasoner{events: []clients.StreamEvent{
		{Kind: clients.KindReasoning, Text: "step 1 "},
		{Kind: clients.KindReasoning, Text: "step 2"},
		{Kind: clients.KindContent},
	}}
	answerer := &fakeAnswerer{events: []clients.StreamEvent{
		{Kind: clients.KindAnswer, Text: "The answer"},
		{Kind: clients.KindAnswer, Text: " is 4."},
	}}
	service := newTestService(t, reasoner, answerer, 5*time.Second)

	resp, err := service.CreateCompletion(context.Background(), Request{
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "2+2?"}},
		AnswerModel: "claude-3-5-sonnet-20241022",
	})
	if err != nil {
		t.Fatalf("CreateCompletion() error: %v", err)
	}

	msg := resp.Choices[0].Message
	if msg.Content != "The answer is 4." {
		t.Errorf("content = %q", msg.Content)
	}
	if msg.ReasoningContent != "step 1 step 2" {
		t.Errorf("reasoning_content = %q", msg.ReasoningContent)
	}
	if resp.Object != "chat.completion" || resp.Model != "claude-3-5-sonnet-20241022" {
		t.Errorf("unexpected response header %+v", resp)
	}
}

func TestCreateCompletionTimeout(t *testing.T) {
	service := newTestService(t, endlessReasoner{}, &fakeAnswerer{}, 0)

	_, err := service.CreateCompletion(context.Background(), Request{
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "hi"}},
		AnswerModel: "m",
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestAnswerMessages(t *testing.T) {
	base := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: "sys"},
		{Role: openai.ChatMessageRoleUser, Content: "hi"},
		{Role: openai.ChatMessageRoleAssistant, Content: "hello"},
	}

	t.Run("with reasoning", func(t *testing.T) {
		got := answerMessages(base, "because")
		if len(got) != 3 {
			t.Fatalf("got %d messages %v", len(got), got)
		}
		if got[0].Role != openai.ChatMessageRoleUser {
			t.Error("system message must be stripped")
		}
		last := got[len(got)-1]
		if last.Role != openai.ChatMessageRoleAssistant || !strings.Contains(last.Content, "because") {
			t.Errorf("synthetic message = %+v", last)
		}
	})

	t.Run("without reasoning", func(t *testing.T) {
		got := answerMessages(base, "")
		if len(got) != 2 {
			t.Fatalf("got %d messages %v", len(got), got)
		}
		for _, msg := range got {
			if msg.Role == openai.ChatMessageRoleSystem {
				t.Error("system message must be stripped")
			}
		}
	})

	t.Run("input is not mutated", func(t *testing.T) {
		answerMessages(base, "r")
		if len(base) != 3 || base[0].Role != openai.ChatMessageRoleSystem {
			t.Errorf("input messages mutated: %+v", base)
		}
	})
}
