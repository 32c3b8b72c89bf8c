package extract

import "context"

// usage reports the token breakdown of one provider call, for
// telemetry.
type usage struct {
	PromptTokens     int
	CachedTokens     int
	CompletionTokens int
}

// provider is the capability every concrete LLM backend implements:
// a single chat-style call that returns raw text. Providers are
// interchangeable behind this interface so the dispatcher can fall
// back across them.
type provider interface {
	name() string
	model() string
	call(ctx context.Context, system, user string) (text string, u usage, err error)
}
