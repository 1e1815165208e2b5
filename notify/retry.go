package notify

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// fixedSchedule drives github.com/cenkalti/backoff/v4's Retry with an
// exact 1s/2s/4s backoff schedule, rather than the library's randomized
// exponential curve.
type fixedSchedule struct {
	delays []time.Duration
	idx    int
}

func newFixedSchedule(delays []time.Duration) *fixedSchedule {
	return &fixedSchedule{delays: delays}
}

func (f *fixedSchedule) NextBackOff() time.Duration {
	if f.idx >= len(f.delays) {
		return backoff.Stop
	}
	d := f.delays[f.idx]
	f.idx++
	return d
}

func (f *fixedSchedule) Reset() { f.idx = 0 }

// retryWithSchedule runs op up to len(backoffSchedule)+1 times total,
// sleeping the fixed schedule between attempts, and stops early on ctx
// cancellation.
func retryWithSchedule(ctx context.Context, op func() error) error {
	bo := backoff.WithContext(newFixedSchedule(backoffSchedule), ctx)
	return backoff.Retry(op, bo)
}
