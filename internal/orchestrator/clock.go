package orchestrator

import (
	"context"
	"time"

	"mcpbox/internal/contracts"
)

var _ contracts.Clock = systemClock{}

// systemClock is the wall-clock implementation of contracts.Clock.
type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
