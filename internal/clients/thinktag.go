package clients

import "strings"

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"
)

// thinkTagState tracks an inline <think>...</think> marker pair for providers
// that do not separate reasoning into its own channel. The opening and closing
// tags may arrive in different deltas, so the state lives for the whole stream
// and is discarded when the stream ends.
type thinkTagState struct {
	inside bool
}

// classify buckets one content delta into semantic events. Text between the
// markers is reasoning; when the closing marker is seen an extra empty content
// event signals the reasoning-to-content transition. A stream that ends before
// the closing marker leaves all collected text classified as reasoning.
func (s *thinkTagState) classify(text string) []StreamEvent {
	if strings.Contains(text, thinkOpenTag) && !s.inside {
		s.inside = true
		return []StreamEvent{{Kind: KindReasoning, Text: text}}
	}
	if s.inside {
		if strings.Contains(text, thinkCloseTag) {
			s.inside = false
			return []StreamEvent{
				{Kind: KindReasoning, Text: text},
				{Kind: KindContent},
			}
		}
		return []StreamEvent{{Kind: KindReasoning, Text: text}}
	}
	return []StreamEvent{{Kind: KindContent, Text: text}}
}
