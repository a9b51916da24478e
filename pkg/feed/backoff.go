package feed

import "time"

// Backoff configures the delay between consecutive receive failures.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoff returns the retry schedule used when none is configured:
// 100ms doubling up to 5s.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: 100 * time.Millisecond,
		Max:     5 * time.Second,
	}
}

// Delay returns the wait before retry number attempt (1-based):
// Initial * 2^(attempt-1), capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if b.Initial <= 0 {
		return b.Max
	}
	// Past 2^20 the cap always wins; stop shifting before it overflows.
	if attempt > 20 {
		return b.Max
	}

	delay := b.Initial * time.Duration(1<<uint(attempt-1))
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	return delay
}
