package clients

// EventKind classifies a decoded provider delta.
type EventKind string

const (
	// KindReasoning is internal deliberation text from the reasoning provider.
	KindReasoning EventKind = "reasoning"
	// KindContent marks the reasoning provider's transition to final content.
	// An empty-text content event at end of stream means the provider finished
	// without producing a usable answer trigger.
	KindContent EventKind = "content"
	// KindAnswer is user-facing text from the answer provider.
	KindAnswer EventKind = "answer"
)

// StreamEvent is one semantic unit decoded from a provider stream.
type StreamEvent struct {
	Kind EventKind
	Text string
}
