// Package model implements the boundary to the external conversational
// completion API.
package model

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hashicorp/go-hclog"

	"mcpbox/internal/config"
	"mcpbox/internal/contracts"
	"mcpbox/internal/domain"
	"mcpbox/internal/errors"
)

// EnvVarAPIKey names the environment variable holding the Anthropic API key.
const EnvVarAPIKey = "ANTHROPIC_API_KEY"

const systemPrompt = `You are an AI assistant with access to MCP (Model Context Protocol) tools.

You have access to database operations and other tools provided by MCP servers.
Always explain your actions clearly and handle errors gracefully.`

var _ contracts.ModelClient = (*AnthropicClient)(nil)

// AnthropicClient calls the Anthropic Messages API with a message history and
// a tool schema list.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    hclog.Logger
}

// NewAnthropicClient builds a client from ANTHROPIC_API_KEY.
func NewAnthropicClient(logger hclog.Logger, cfg config.ModelConfig) (*AnthropicClient, error) {
	apiKey := os.Getenv(EnvVarAPIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", errors.ErrModelFatal, EnvVarAPIKey)
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     cfg.Name,
		maxTokens: cfg.MaxTokens,
		logger:    logger.Named("model"),
	}, nil
}

// Generate performs one model API call. The returned turn carries either a
// final text answer or the set of requested tool invocations, plus the
// assistant message to append to the conversation history.
func (a *AnthropicClient) Generate(
	ctx context.Context,
	messages []anthropic.MessageParam,
	tools []domain.ToolDescriptor,
) (*contracts.ModelTurn, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:  messages,
		Tools:     convertTools(tools),
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	turn := &contracts.ModelTurn{StopReason: string(msg.StopReason)}

	var blocks []anthropic.ContentBlockParamUnion
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			turn.Text += b.Text
			blocks = append(blocks, anthropic.NewTextBlock(b.Text))

		case anthropic.ToolUseBlock:
			input := decodeInput(b.Input)
			turn.ToolUses = append(turn.ToolUses, contracts.ToolUse{
				ID:    b.ID,
				Name:  b.Name,
				Input: input,
			})
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    b.ID,
					Name:  b.Name,
					Input: input,
				},
			})
		}
	}
	turn.Assistant = anthropic.NewAssistantMessage(blocks...)

	a.logger.Debug("model call completed",
		"stop_reason", msg.StopReason,
		"tool_uses", len(turn.ToolUses),
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
	)

	return turn, nil
}

func decodeInput(raw any) map[string]any {
	data, err := json.Marshal(raw)
	if err != nil {
		return map[string]any{}
	}
	var input map[string]any
	if err := json.Unmarshal(data, &input); err != nil || input == nil {
		return map[string]any{}
	}
	return input
}

func convertTools(tools []domain.ToolDescriptor) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))

	for _, t := range tools {
		tp := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
		}

		var schema struct {
			Properties any      `json:"properties"`
			Required   []string `json:"required"`
		}
		if len(t.InputSchema) > 0 {
			_ = json.Unmarshal(t.InputSchema, &schema)
		}
		tp.InputSchema = anthropic.ToolInputSchemaParam{
			Properties: schema.Properties,
			Required:   schema.Required,
		}

		out = append(out, anthropic.ToolUnionParam{OfTool: &tp})
	}

	return out
}

// classify maps an API failure onto the retry taxonomy: rate limits,
// timeouts and 5xx-equivalents are transient; other HTTP errors (bad
// request, auth) are fatal. Caller cancellation passes through untouched.
func classify(err error) error {
	if stdErrors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *anthropic.Error
	if stdErrors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 408,
			apiErr.StatusCode == 429,
			apiErr.StatusCode >= 500:
			return fmt.Errorf("%w: %v", errors.ErrModelTransient, err)
		default:
			return fmt.Errorf("%w: %v", errors.ErrModelFatal, err)
		}
	}

	if stdErrors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out", errors.ErrModelTransient)
	}

	// Connection-level failures without an HTTP status are retryable.
	return fmt.Errorf("%w: %v", errors.ErrModelTransient, err)
}
