// Package orchestrator drives conversational turns against the model API,
// resolving any tool calls the model requests via the session manager and
// recording metrics for every model-call attempt.
package orchestrator

import (
	"context"
	stdErrors "errors"
	"fmt"
	"slices"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"mcpbox/internal/config"
	"mcpbox/internal/contracts"
	"mcpbox/internal/domain"
	"mcpbox/internal/errors"
	"mcpbox/internal/metrics"
)

// TurnResult is the outcome of one successful conversational turn.
type TurnResult struct {
	// Text is the model's final answer.
	Text string

	// ToolsInvoked lists the tool names executed during the turn, in order.
	ToolsInvoked []string
}

// Client owns one conversation. It issues model calls and tool calls
// sequentially, never in parallel, because tool results must be fed back into
// the next model call. Not safe for concurrent Send calls.
type Client struct {
	logger  hclog.Logger
	model   contracts.ModelClient
	tools   contracts.ToolCaller
	metrics *metrics.Collector
	clock   contracts.Clock
	cfg     config.ModelConfig

	history []anthropic.MessageParam
}

// Option configures a Client.
type Option func(*Client)

// WithClock replaces the wall clock, letting tests drive the retry schedule
// without real elapsed time.
func WithClock(c contracts.Clock) Option {
	return func(cl *Client) { cl.clock = c }
}

func NewClient(
	logger hclog.Logger,
	model contracts.ModelClient,
	tools contracts.ToolCaller,
	collector *metrics.Collector,
	cfg config.ModelConfig,
	opt ...Option,
) *Client {
	c := &Client{
		logger:  logger.Named("orchestrator"),
		model:   model,
		tools:   tools,
		metrics: collector,
		clock:   systemClock{},
		cfg:     cfg,
	}
	for _, o := range opt {
		o(c)
	}
	return c
}

// Send appends the user message to the conversation and drives the turn to
// completion: model call, execution of any requested tools, feeding results
// back, repeated until the model returns a final answer or the iteration cap
// is reached (ErrToolLoopExceeded).
//
// Cancellation is honored at retry and model-call boundaries; a started tool
// call always runs to completion or its own timeout.
func (c *Client) Send(ctx context.Context, userMessage string) (*TurnResult, error) {
	requestID := uuid.NewString()
	c.history = append(c.history, anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)))

	descriptors := c.tools.Tools()
	c.logger.Info("processing request", "request_id", requestID, "tools", len(descriptors))

	var invoked []string

	for iteration := 0; iteration < c.cfg.MaxToolIterations; iteration++ {
		turn, err := c.generateWithRetry(ctx, requestID, descriptors, invoked)
		if err != nil {
			return nil, err
		}

		c.history = append(c.history, turn.Assistant)

		if len(turn.ToolUses) == 0 {
			c.logger.Info("request completed", "request_id", requestID, "tools_invoked", len(invoked))
			return &TurnResult{Text: turn.Text, ToolsInvoked: invoked}, nil
		}

		results := make([]anthropic.ContentBlockParamUnion, 0, len(turn.ToolUses))
		for _, tu := range turn.ToolUses {
			invoked = append(invoked, tu.Name)
			text, isError := c.executeTool(ctx, requestID, tu)
			results = append(results, anthropic.NewToolResultBlock(tu.ID, text, isError))
		}
		c.history = append(c.history, anthropic.NewUserMessage(results...))
	}

	return nil, fmt.Errorf("%w: gave up after %d tool iterations", errors.ErrToolLoopExceeded, c.cfg.MaxToolIterations)
}

// generateWithRetry wraps one logical model call in the backoff state
// machine. Only transient failures are retried; every attempt, success or
// failure, is recorded as its own metric entry sharing the request id.
func (c *Client) generateWithRetry(
	ctx context.Context,
	requestID string,
	descriptors []domain.ToolDescriptor,
	invoked []string,
) (*contracts.ModelTurn, error) {
	bo := newBackoff(c.cfg.BaseDelay.Duration(), c.cfg.MaxDelay.Duration(), c.cfg.MaxRetries)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := c.clock.Now()
		turn, err := c.model.Generate(ctx, c.history, descriptors)
		end := c.clock.Now()

		c.metrics.Record(domain.RequestMetric{
			RequestID:   requestID,
			Attempt:     bo.Attempt() + 1,
			StartTime:   start,
			EndTime:     end,
			Success:     err == nil,
			ErrorKind:   errorKind(err),
			ToolsCalled: slices.Clone(invoked),
			Duration:    end.Sub(start),
		})

		if err == nil {
			return turn, nil
		}
		if !stdErrors.Is(err, errors.ErrModelTransient) {
			return nil, err
		}

		delay, ok := bo.Next()
		if !ok {
			return nil, fmt.Errorf("retries exhausted after %d attempts: %w", bo.Attempt()+1, err)
		}

		c.logger.Warn("transient model failure, backing off",
			"request_id", requestID, "attempt", bo.Attempt(), "delay", delay, "error", err)

		if err := c.clock.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// executeTool runs one requested tool invocation. Failures are absorbed into
// the conversation as error results so the turn continues with the remaining
// tools (graceful degradation). The tool call deliberately does not inherit
// cancellation: once started it runs to completion or its own timeout.
func (c *Client) executeTool(ctx context.Context, requestID string, tu contracts.ToolUse) (string, bool) {
	c.logger.Info("executing tool", "request_id", requestID, "tool", tu.Name)

	text, err := c.tools.CallTool(context.WithoutCancel(ctx), tu.Name, tu.Input)
	if err != nil {
		c.logger.Error("tool execution failed", "request_id", requestID, "tool", tu.Name, "error", err)
		if text == "" {
			text = fmt.Sprintf(`{"error": %q}`, err.Error())
		}
		return text, true
	}

	return text, false
}

// ClearHistory drops the conversation history. Metrics are unaffected.
func (c *Client) ClearHistory() {
	c.history = nil
}

// HistoryLen returns the number of messages in the conversation.
func (c *Client) HistoryLen() int {
	return len(c.history)
}

// errorKind buckets an attempt failure for metrics aggregation.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case stdErrors.Is(err, errors.ErrModelTransient):
		return "transient"
	case stdErrors.Is(err, errors.ErrModelFatal):
		return "fatal"
	case stdErrors.Is(err, context.Canceled):
		return "canceled"
	case stdErrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "unknown"
	}
}
