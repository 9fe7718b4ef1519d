package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"mcpbox/internal/contracts"
	"mcpbox/internal/domain"
)

// MetricsSource exposes the aggregate request metrics view.
type MetricsSource interface {
	Summary() domain.Summary
}

// MetricsSummary is the API-safe projection of a metrics summary.
// Durations are rendered as strings so callers never have to interpret
// nanosecond integers.
type MetricsSummary struct {
	TotalRequests  int            `json:"totalRequests"`
	Successful     int            `json:"successful"`
	Failed         int            `json:"failed"`
	SuccessRate    float64        `json:"successRate"`
	AvgDuration    string         `json:"avgDuration"`
	MaxDuration    string         `json:"maxDuration"`
	P95Duration    string         `json:"p95Duration"`
	ErrorCounts    map[string]int `json:"errorCounts,omitempty"`
	HealthyServers int            `json:"healthyServers"`
	TotalServers   int            `json:"totalServers"`
}

// MetricsSummaryResponse is the response for GET /metrics
type MetricsSummaryResponse struct {
	Body MetricsSummary
}

// RegisterMetricsRoutes sets up metrics-related API endpoint routes.
func RegisterMetricsRoutes(
	routerAPI huma.API,
	source MetricsSource,
	monitor contracts.MCPHealthMonitor,
	apiPathPrefix string,
) {
	metricsAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Metrics"}

	huma.Register(
		metricsAPI,
		huma.Operation{
			OperationID: "getMetricsSummary",
			Method:      http.MethodGet,
			Path:        "/",
			Summary:     "Get the aggregate request metrics summary",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*MetricsSummaryResponse, error) {
			return handleMetricsSummary(source, monitor)
		},
	)
}

// handleMetricsSummary recomputes the summary on demand and layers the
// current server health counts on top.
func handleMetricsSummary(source MetricsSource, monitor contracts.MCPHealthMonitor) (*MetricsSummaryResponse, error) {
	summary := source.Summary()

	for _, s := range monitor.List() {
		summary.TotalServers++
		if s.Usable() {
			summary.HealthyServers++
		}
	}

	resp := &MetricsSummaryResponse{}
	resp.Body = MetricsSummary{
		TotalRequests:  summary.TotalRequests,
		Successful:     summary.Successful,
		Failed:         summary.Failed,
		SuccessRate:    summary.SuccessRate,
		AvgDuration:    summary.AvgDuration.String(),
		MaxDuration:    summary.MaxDuration.String(),
		P95Duration:    summary.P95Duration.String(),
		ErrorCounts:    summary.ErrorCounts,
		HealthyServers: summary.HealthyServers,
		TotalServers:   summary.TotalServers,
	}

	return resp, nil
}
