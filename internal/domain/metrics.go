package domain

import "time"

// RequestMetric is one record per completed model-call attempt. Retried calls
// produce multiple records linked by a shared RequestID. Immutable once
// recorded.
type RequestMetric struct {
	RequestID   string        `json:"request_id"`
	Attempt     int           `json:"attempt"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Success     bool          `json:"success"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	ToolsCalled []string      `json:"tools_called,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Summary is derived on demand from the recorded metrics. Never persisted
// independently of the underlying records.
type Summary struct {
	TotalRequests  int            `json:"total_requests" yaml:"total_requests"`
	Successful     int            `json:"successful" yaml:"successful"`
	Failed         int            `json:"failed" yaml:"failed"`
	SuccessRate    float64        `json:"success_rate" yaml:"success_rate"`
	AvgDuration    time.Duration  `json:"avg_duration" yaml:"avg_duration"`
	MaxDuration    time.Duration  `json:"max_duration" yaml:"max_duration"`
	P95Duration    time.Duration  `json:"p95_duration" yaml:"p95_duration"`
	ErrorCounts    map[string]int `json:"error_counts,omitempty" yaml:"error_counts,omitempty"`
	HealthyServers int            `json:"healthy_servers" yaml:"healthy_servers"`
	TotalServers   int            `json:"total_servers" yaml:"total_servers"`
}
