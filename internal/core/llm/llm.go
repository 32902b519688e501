// Package llm wraps the chat-completion capability behind a single
// JSON-object contract. The pipeline never depends on any vendor-specific
// request or response shape beyond this interface.
package llm

import (
	"context"
	"time"
)

// Request describes one JSON-producing completion call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float32
	Retries      int
	Timeout      time.Duration
}

// Response carries the parsed JSON object plus the raw completion text for
// logging and audit.
type Response struct {
	Payload map[string]any
	RawText string
}

// Client is the chat-completion capability consumed by the selection and
// composition engines.
type Client interface {
	// CompleteJSON issues a completion that must return a JSON object.
	// Transient failures are retried internally with capped exponential
	// backoff before an error is returned.
	CompleteJSON(ctx context.Context, req Request) (*Response, error)
}
