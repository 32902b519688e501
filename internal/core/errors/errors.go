// Package errors provides centralized error definitions for the application.
// Errors are organized by pipeline stage to avoid duplication and provide
// consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// LLM capability errors.
var (
	// ErrLLMNotConfigured indicates the chat-completion capability is unavailable.
	ErrLLMNotConfigured = errors.New("llm not configured")

	// ErrEmptyResponse indicates an empty completion was received.
	ErrEmptyResponse = errors.New("empty response")

	// ErrNotJSON indicates a completion could not be parsed as a JSON object.
	ErrNotJSON = errors.New("response is not a json object")

	// ErrCircuitBreakerOpen indicates the circuit breaker has tripped and requests are blocked.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
)

// Selection errors.
var (
	// ErrSelectionInsufficient indicates Phase 1 returned no usable candidate IDs.
	ErrSelectionInsufficient = errors.New("selection_insufficient")

	// ErrSelectionMissingEntries indicates the Phase 1 payload had no entries list.
	ErrSelectionMissingEntries = errors.New("selection_missing_entries")
)

// Composition errors.
var (
	// ErrCompositionEmpty indicates a composed entry came back with empty fields.
	ErrCompositionEmpty = errors.New("composition returned empty fields")

	// ErrMissingCitation indicates a composed entry has no citation URL.
	ErrMissingCitation = errors.New("entry has no citation")
)

// Capacity errors.
var (
	// ErrPoolExhausted indicates fewer candidates than target remain after filtering.
	ErrPoolExhausted = errors.New("candidate pool exhausted")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
