package retry

import (
	"context"
	"time"
)

// PollFunc probes once for a result. ok=true stops the poll; an error
// counts as a miss and the next attempt still runs.
type PollFunc[T any] func(ctx context.Context) (T, bool, error)

// Poll runs fn up to attempts times with a fixed interval between
// tries. First hit wins; exhaustion returns ok=false with the last
// error seen (which may be nil). Never loops unbounded.
func Poll[T any](ctx context.Context, attempts int, interval time.Duration, fn PollFunc[T]) (T, bool, error) {
	var zero T
	var lastErr error

	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return zero, false, ctx.Err()
			case <-time.After(interval):
			}
		}
		v, ok, err := fn(ctx)
		if ok {
			return v, true, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return zero, false, lastErr
}
