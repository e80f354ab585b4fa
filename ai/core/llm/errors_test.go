package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "connection refused" }
func (fakeNetError) Timeout() bool   { return false }
func (fakeNetError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"network error", fakeNetError{}, KindUnavailable},
		{"deadline exceeded", context.DeadlineExceeded, KindUnavailable},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindUnavailable},
		{"provider 503", &openai.APIError{HTTPStatusCode: 503}, KindUnavailable},
		{"provider 400", &openai.APIError{HTTPStatusCode: 400}, KindModel},
		{"empty response", errEmptyResponse, KindModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.Equal(t, tt.want, got.Kind)
			assert.True(t, errors.Is(got, tt.err), "cause must stay unwrappable")
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Kind: KindUnavailable, Err: context.DeadlineExceeded}
	assert.Contains(t, err.Error(), "model_unavailable")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMessageHelpers(t *testing.T) {
	assert.Equal(t, Message{Role: "system", Content: "s"}, SystemPrompt("s"))
	assert.Equal(t, Message{Role: "user", Content: "u"}, UserMessage("u"))
	assert.Equal(t, Message{Role: "assistant", Content: "a"}, AssistantMessage("a"))
}

func TestNewServiceDefaults(t *testing.T) {
	svc, err := NewService(&Config{Provider: "deepseek", APIKey: "test-key"})
	assert.NoError(t, err)
	assert.NotNil(t, svc)
}
