package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"mcpbox/internal/config"
	"mcpbox/internal/contracts"
	"mcpbox/internal/domain"
	"mcpbox/internal/errors"
	"mcpbox/internal/metrics"
)

// fakeModel replays a scripted sequence of turns and errors.
type fakeModel struct {
	script []fakeTurn
	calls  int
}

type fakeTurn struct {
	turn *contracts.ModelTurn
	err  error
}

func (f *fakeModel) Generate(
	_ context.Context,
	_ []anthropic.MessageParam,
	_ []domain.ToolDescriptor,
) (*contracts.ModelTurn, error) {
	if f.calls >= len(f.script) {
		return nil, fmt.Errorf("unexpected model call %d", f.calls+1)
	}
	step := f.script[f.calls]
	f.calls++
	return step.turn, step.err
}

func textTurn(text string) fakeTurn {
	return fakeTurn{turn: &contracts.ModelTurn{
		Text:      text,
		Assistant: anthropic.NewAssistantMessage(anthropic.NewTextBlock(text)),
	}}
}

func toolTurn(uses ...contracts.ToolUse) fakeTurn {
	return fakeTurn{turn: &contracts.ModelTurn{
		ToolUses:  uses,
		Assistant: anthropic.NewAssistantMessage(anthropic.NewTextBlock("using tools")),
	}}
}

func transientErr() fakeTurn {
	return fakeTurn{err: fmt.Errorf("%w: rate limited", errors.ErrModelTransient)}
}

// fakeToolCaller answers every tool call with a canned result or error.
type fakeToolCaller struct {
	descriptors []domain.ToolDescriptor
	results     map[string]string
	errs        map[string]error
	called      []string
}

func (f *fakeToolCaller) Tools() []domain.ToolDescriptor {
	return f.descriptors
}

func (f *fakeToolCaller) CallTool(_ context.Context, name string, _ map[string]any) (string, error) {
	f.called = append(f.called, name)
	if err, ok := f.errs[name]; ok {
		return "", err
	}
	return f.results[name], nil
}

// fakeClock records requested sleeps without waiting.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return nil
}

func testModelConfig() config.ModelConfig {
	return config.ModelConfig{
		Name:              "claude-sonnet-4-5",
		MaxTokens:         1000,
		MaxToolIterations: 5,
		MaxRetries:        3,
		BaseDelay:         config.Duration(100 * time.Millisecond),
		MaxDelay:          config.Duration(time.Second),
	}
}

func newTestClient(model contracts.ModelClient, tools contracts.ToolCaller, cfg config.ModelConfig) (*Client, *metrics.Collector) {
	collector := metrics.NewCollector()
	c := NewClient(hclog.NewNullLogger(), model, tools, collector, cfg, WithClock(newFakeClock()))
	return c, collector
}

func TestClient_Send_PlainAnswer(t *testing.T) {
	t.Parallel()

	model := &fakeModel{script: []fakeTurn{textTurn("hello there")}}
	tools := &fakeToolCaller{}
	client, collector := newTestClient(model, tools, testModelConfig())

	result, err := client.Send(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "hello there", result.Text)
	require.Empty(t, result.ToolsInvoked)
	require.Empty(t, tools.called)

	records := collector.Records()
	require.Len(t, records, 1)
	require.True(t, records[0].Success)
	require.Equal(t, 1, records[0].Attempt)
}

func TestClient_Send_ToolRoundTrip(t *testing.T) {
	t.Parallel()

	model := &fakeModel{script: []fakeTurn{
		toolTurn(contracts.ToolUse{ID: "tu_1", Name: "get_database_schema", Input: map[string]any{}}),
		textTurn("the database has one table"),
	}}
	tools := &fakeToolCaller{
		results: map[string]string{"get_database_schema": `{"success": true}`},
	}
	client, collector := newTestClient(model, tools, testModelConfig())

	result, err := client.Send(context.Background(), "what tables exist?")
	require.NoError(t, err)
	require.Equal(t, "the database has one table", result.Text)
	require.Equal(t, []string{"get_database_schema"}, result.ToolsInvoked)
	require.Equal(t, []string{"get_database_schema"}, tools.called)

	records := collector.Records()
	require.Len(t, records, 2)
	for _, r := range records {
		require.True(t, r.Success)
	}
	// Both attempts belong to the same logical request.
	require.Equal(t, records[0].RequestID, records[1].RequestID)
	// The second model call happened after the tool ran.
	require.Equal(t, []string{"get_database_schema"}, records[1].ToolsCalled)
}

func TestClient_Send_TransientTwiceThenSuccess(t *testing.T) {
	t.Parallel()

	model := &fakeModel{script: []fakeTurn{
		transientErr(),
		transientErr(),
		textTurn("finally"),
	}}
	clock := newFakeClock()
	collector := metrics.NewCollector()
	client := NewClient(hclog.NewNullLogger(), model, &fakeToolCaller{}, collector, testModelConfig(), WithClock(clock))

	result, err := client.Send(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "finally", result.Text)

	records := collector.Records()
	require.Len(t, records, 3)
	require.False(t, records[0].Success)
	require.Equal(t, "transient", records[0].ErrorKind)
	require.False(t, records[1].Success)
	require.True(t, records[2].Success)
	require.Equal(t, []int{1, 2, 3}, []int{records[0].Attempt, records[1].Attempt, records[2].Attempt})
	require.Equal(t, records[0].RequestID, records[2].RequestID)

	// Backoff doubled between attempts.
	require.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, clock.sleeps)
}

func TestClient_Send_RetriesExhausted(t *testing.T) {
	t.Parallel()

	model := &fakeModel{script: []fakeTurn{
		transientErr(), transientErr(), transientErr(), transientErr(),
	}}
	client, collector := newTestClient(model, &fakeToolCaller{}, testModelConfig())

	_, err := client.Send(context.Background(), "hi")
	require.Error(t, err)
	require.ErrorIs(t, err, errors.ErrModelTransient)

	// max_retries=3 bounds the total attempts at 4.
	require.Equal(t, 4, model.calls)
	require.Len(t, collector.Records(), 4)
}

func TestClient_Send_FatalNotRetried(t *testing.T) {
	t.Parallel()

	model := &fakeModel{script: []fakeTurn{
		{err: fmt.Errorf("%w: invalid api key", errors.ErrModelFatal)},
	}}
	clock := newFakeClock()
	collector := metrics.NewCollector()
	client := NewClient(hclog.NewNullLogger(), model, &fakeToolCaller{}, collector, testModelConfig(), WithClock(clock))

	_, err := client.Send(context.Background(), "hi")
	require.ErrorIs(t, err, errors.ErrModelFatal)
	require.Equal(t, 1, model.calls)
	require.Empty(t, clock.sleeps)

	records := collector.Records()
	require.Len(t, records, 1)
	require.Equal(t, "fatal", records[0].ErrorKind)
}

func TestClient_Send_ToolLoopExceeded(t *testing.T) {
	t.Parallel()

	cfg := testModelConfig()
	cfg.MaxToolIterations = 2

	model := &fakeModel{script: []fakeTurn{
		toolTurn(contracts.ToolUse{ID: "tu_1", Name: "search_users", Input: map[string]any{}}),
		toolTurn(contracts.ToolUse{ID: "tu_2", Name: "search_users", Input: map[string]any{}}),
		textTurn("never reached"),
	}}
	tools := &fakeToolCaller{results: map[string]string{"search_users": `{"success": true}`}}
	client, _ := newTestClient(model, tools, cfg)

	_, err := client.Send(context.Background(), "keep going")
	require.ErrorIs(t, err, errors.ErrToolLoopExceeded)
	require.Equal(t, 2, model.calls)
}

func TestClient_Send_ToolFailureAbsorbed(t *testing.T) {
	t.Parallel()

	model := &fakeModel{script: []fakeTurn{
		toolTurn(contracts.ToolUse{ID: "tu_1", Name: "broken_tool", Input: map[string]any{}}),
		textTurn("the tool was unavailable"),
	}}
	tools := &fakeToolCaller{
		errs: map[string]error{
			"broken_tool": fmt.Errorf("%w: server %q is not healthy", errors.ErrToolUnavailable, "db"),
		},
	}
	client, _ := newTestClient(model, tools, testModelConfig())

	// A failing tool terminates nothing: the error result is fed back to the
	// model and the turn completes.
	result, err := client.Send(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "the tool was unavailable", result.Text)
	require.Equal(t, []string{"broken_tool"}, result.ToolsInvoked)
}

func TestClient_Send_ContextCanceled(t *testing.T) {
	t.Parallel()

	model := &fakeModel{script: []fakeTurn{textTurn("unused")}}
	client, collector := newTestClient(model, &fakeToolCaller{}, testModelConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Send(ctx, "hi")
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, model.calls)
	require.Empty(t, collector.Records())
}

func TestClient_ClearHistory(t *testing.T) {
	t.Parallel()

	model := &fakeModel{script: []fakeTurn{textTurn("one"), textTurn("two")}}
	client, _ := newTestClient(model, &fakeToolCaller{}, testModelConfig())

	_, err := client.Send(context.Background(), "first")
	require.NoError(t, err)
	require.Equal(t, 2, client.HistoryLen()) // user + assistant

	client.ClearHistory()
	require.Zero(t, client.HistoryLen())

	_, err = client.Send(context.Background(), "second")
	require.NoError(t, err)
	require.Equal(t, 2, client.HistoryLen())
}
