package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mcpbox/internal/domain"
)

type fakeSummary struct {
	summary domain.Summary
}

func (f *fakeSummary) Summary() domain.Summary { return f.summary }

func TestHandleMetricsSummary(t *testing.T) {
	t.Parallel()

	source := &fakeSummary{summary: domain.Summary{
		TotalRequests: 10,
		Successful:    8,
		Failed:        2,
		SuccessRate:   0.8,
		AvgDuration:   150 * time.Millisecond,
		MaxDuration:   900 * time.Millisecond,
		P95Duration:   600 * time.Millisecond,
		ErrorCounts:   map[string]int{"transient": 2},
	}}
	monitor := &fakeMonitor{servers: []domain.ServerHealth{
		{Name: "db", Status: domain.HealthStatusHealthy},
		{Name: "files", Status: domain.HealthStatusDisabled},
		{Name: "search", Status: domain.HealthStatusHealthy},
	}}

	resp, err := handleMetricsSummary(source, monitor)
	require.NoError(t, err)

	body := resp.Body
	require.Equal(t, 10, body.TotalRequests)
	require.Equal(t, 8, body.Successful)
	require.Equal(t, 2, body.Failed)
	require.InEpsilon(t, 0.8, body.SuccessRate, 1e-9)
	require.Equal(t, "150ms", body.AvgDuration)
	require.Equal(t, "900ms", body.MaxDuration)
	require.Equal(t, "600ms", body.P95Duration)
	require.Equal(t, map[string]int{"transient": 2}, body.ErrorCounts)
	require.Equal(t, 2, body.HealthyServers)
	require.Equal(t, 3, body.TotalServers)
}

func TestHandleMetricsSummary_Empty(t *testing.T) {
	t.Parallel()

	resp, err := handleMetricsSummary(&fakeSummary{}, &fakeMonitor{})
	require.NoError(t, err)

	body := resp.Body
	require.Zero(t, body.TotalRequests)
	require.Zero(t, body.SuccessRate)
	require.Equal(t, "0s", body.AvgDuration)
	require.Zero(t, body.TotalServers)
}
