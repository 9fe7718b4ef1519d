package orchestrator

import "time"

// backoff is an explicit retry state machine: an attempt counter and a
// deterministic next-delay schedule (base doubled per attempt, capped at
// max). Terminal exhaustion is signaled by Next returning false.
type backoff struct {
	base       time.Duration
	max        time.Duration
	maxRetries int
	attempt    int
}

func newBackoff(base, max time.Duration, maxRetries int) *backoff {
	return &backoff{
		base:       base,
		max:        max,
		maxRetries: maxRetries,
	}
}

// Next consumes one retry from the budget, returning the delay to wait
// before the next attempt. Returns false once maxRetries retries have been
// handed out, bounding total attempts at maxRetries+1.
func (b *backoff) Next() (time.Duration, bool) {
	if b.attempt >= b.maxRetries {
		return 0, false
	}

	d := b.base << uint(b.attempt)
	if d <= 0 || d > b.max {
		d = b.max
	}

	b.attempt++
	return d, true
}

// Attempt returns how many retries have been consumed so far.
func (b *backoff) Attempt() int {
	return b.attempt
}
