package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sashabaranov/go-openai"
)

// Kind classifies a gateway failure.
type Kind string

const (
	// KindUnavailable means the provider could not be reached (transport,
	// timeout, rate limit). Retrying later may succeed.
	KindUnavailable Kind = "model_unavailable"
	// KindModel means the provider answered but the answer is unusable
	// (API error status, empty completion).
	KindModel Kind = "model_error"
)

var errEmptyResponse = errors.New("empty response from provider")

// Error is the gateway error type surfaced to the workflow engine.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classify wraps a raw provider error with a Kind.
func classify(err error) *Error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindUnavailable, Err: err}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 500 {
		return &Error{Kind: KindUnavailable, Err: err}
	}
	return &Error{Kind: KindModel, Err: err}
}
