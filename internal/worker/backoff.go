package worker

import (
	"math/rand"
	"time"
)

// RetryPolicy computes the rescheduling delay for a failed attempt:
// min(Base * 2^(attempt-1), Max) plus uniform jitter in [0, Jitter).
// The delay is persisted as next_retry_at, never held in memory, so
// schedules survive restarts.
type RetryPolicy struct {
	Base        time.Duration
	Max         time.Duration
	Jitter      time.Duration
	MaxAttempts int
}

func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.Base
	for i := 1; i < attempt && delay < p.Max; i++ {
		delay *= 2
	}
	if delay > p.Max {
		delay = p.Max
	}

	if p.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return delay
}
