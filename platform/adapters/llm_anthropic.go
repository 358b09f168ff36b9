package adapters

import (
	"context"
	"errors"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicLLM implements LlmAdapter over the Anthropic Messages API.
type AnthropicLLM struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropicLLM builds an AnthropicLLM client for the given model (e.g.
// anthropic.ModelClaude3_5SonnetLatest).
func NewAnthropicLLM(apiKey, model string) *AnthropicLLM {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicLLM{client: &client, model: anthropic.Model(model)}
}

// llmTimeoutError marks a timeout/connection failure as transient, so
// resilience.Retrier retries it rather than treating it as permanent.
type llmTimeoutError struct{ err error }

func (e *llmTimeoutError) Error() string        { return e.err.Error() }
func (e *llmTimeoutError) Unwrap() error         { return e.err }
func (e *llmTimeoutError) Class() ErrorClass     { return ErrorTransient }

// Complete sends prompt as a single user turn and returns the assistant's
// text plus total tokens used. deadline bounds the call via
// context.WithDeadline; a context deadline exceeded, connection-refused or
// 5xx API status error is classified transient so the caller's retrier can
// back off and retry within its own remaining budget.
func (a *AnthropicLLM) Complete(ctx context.Context, tenantID, prompt string, deadline time.Time) (string, int, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) ||
			(errors.As(err, &apiErr) && apiErr.StatusCode >= 500) {
			return "", 0, &llmTimeoutError{err: err}
		}
		return "", 0, err
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	tokens := int(msg.Usage.InputTokens + msg.Usage.OutputTokens)
	return text, tokens, nil
}
