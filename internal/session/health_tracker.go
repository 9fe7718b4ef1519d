package session

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"mcpbox/internal/domain"
	"mcpbox/internal/errors"
)

// DefaultDisableThreshold is the number of consecutive failed probes after
// which a connection is disabled for the remainder of the process lifetime.
const DefaultDisableThreshold = 3

// HealthTracker records the health state of tracked MCP servers and applies
// the circuit-breaker policy: once disabled, a server stays disabled until an
// explicit re-initialize. It is safe for concurrent use.
type HealthTracker struct {
	mu        sync.RWMutex
	threshold int
	statuses  map[string]domain.ServerHealth
}

// NewHealthTracker tracks the given servers, all starting as unknown.
// threshold values below 1 fall back to DefaultDisableThreshold.
func NewHealthTracker(serverNames []string, threshold int) *HealthTracker {
	if threshold < 1 {
		threshold = DefaultDisableThreshold
	}
	t := &HealthTracker{threshold: threshold}
	t.Reset(serverNames)
	return t
}

// Reset replaces all tracked state, clearing any disabled connections.
// Used by explicit re-initialization.
func (h *HealthTracker) Reset(serverNames []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	statuses := make(map[string]domain.ServerHealth, len(serverNames))
	for _, name := range serverNames {
		statuses[name] = domain.ServerHealth{Name: name, Status: domain.HealthStatusUnknown}
	}
	h.statuses = statuses
}

// Status returns the health status for a single tracked server.
func (h *HealthTracker) Status(name string) (domain.ServerHealth, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if health, ok := h.statuses[name]; ok {
		return health, nil
	}

	return domain.ServerHealth{}, fmt.Errorf("%w: %s", errors.ErrHealthNotTracked, name)
}

// List returns a copy of all known server health records.
func (h *HealthTracker) List() []domain.ServerHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Collect(maps.Values(h.statuses))
}

// Usable reports whether calls may currently be routed to the server.
func (h *HealthTracker) Usable(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.statuses[name].Usable()
}

// Update records a health observation for a tracked server. The current time
// is recorded as LastChecked, and LastSuccessful is updated only on success.
// Latency can be nil if the probe failed or was not measured.
//
// Disabled and closed are terminal: observations against them are dropped.
// A server observed unhealthy threshold times in a row transitions to
// disabled.
func (h *HealthTracker) Update(name string, healthy bool, latency *time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, exists := h.statuses[name]
	if !exists {
		return fmt.Errorf("%w: %s", errors.ErrHealthNotTracked, name)
	}
	if prev.Status == domain.HealthStatusDisabled || prev.Status == domain.HealthStatusClosed {
		return nil
	}

	now := time.Now().UTC()
	next := domain.ServerHealth{
		Name:           name,
		Latency:        latency,
		LastChecked:    &now,
		LastSuccessful: prev.LastSuccessful,
	}

	if healthy {
		next.Status = domain.HealthStatusHealthy
		next.LastSuccessful = &now
	} else {
		next.ConsecutiveFailures = prev.ConsecutiveFailures + 1
		next.Status = domain.HealthStatusUnhealthy
		if next.ConsecutiveFailures >= h.threshold {
			next.Status = domain.HealthStatusDisabled
		}
	}

	h.statuses[name] = next

	return nil
}

// MarkClosed transitions a server to the terminal closed state during shutdown.
func (h *HealthTracker) MarkClosed(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.statuses[name]; ok {
		prev.Status = domain.HealthStatusClosed
		h.statuses[name] = prev
	}
}
