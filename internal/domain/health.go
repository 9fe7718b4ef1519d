package domain

import "time"

const (
	HealthStatusUnknown   HealthStatus = "unknown"
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDisabled  HealthStatus = "disabled"
	HealthStatusClosed    HealthStatus = "closed"
)

// HealthStatus represents the internal state of an MCP server's availability.
//
// Connections move unknown -> healthy <-> unhealthy. A connection that fails
// enough consecutive probes becomes disabled, which is terminal for the
// process lifetime unless the session is explicitly re-initialized.
// Closed is terminal and reached only via shutdown.
type HealthStatus string

// ServerHealth tracks the internal health state for an MCP server.
type ServerHealth struct {
	Name                string
	Status              HealthStatus
	Latency             *time.Duration
	LastChecked         *time.Time
	LastSuccessful      *time.Time
	ConsecutiveFailures int
}

// Usable reports whether calls may currently be routed to the server.
func (s ServerHealth) Usable() bool {
	return s.Status == HealthStatusHealthy
}
