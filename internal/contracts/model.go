package contracts

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"

	"mcpbox/internal/domain"
)

// ToolUse is a single tool invocation requested by the model.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// ModelTurn is the outcome of one model API call.
type ModelTurn struct {
	// Text is the concatenated text content of the response.
	Text string

	// ToolUses holds the tool invocations the model requested, in order.
	// Empty for a final answer.
	ToolUses []ToolUse

	// Assistant is the assistant message to append to the conversation
	// history before feeding tool results back.
	Assistant anthropic.MessageParam

	StopReason string
}

// ModelClient is the boundary to the external conversational completion API.
type ModelClient interface {
	// Generate performs one model API call with the given message history and
	// tool schema list. Transient failures are returned wrapped in
	// errors.ErrModelTransient, non-retryable ones in errors.ErrModelFatal.
	Generate(ctx context.Context, messages []anthropic.MessageParam, tools []domain.ToolDescriptor) (*ModelTurn, error)
}
