package contracts

import (
	"context"
	"time"
)

// Clock abstracts time for the retry/backoff machinery so that cancellation
// and timeout composition are testable without real elapsed time.
type Clock interface {
	Now() time.Time

	// Sleep blocks for d or until ctx is canceled, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}
