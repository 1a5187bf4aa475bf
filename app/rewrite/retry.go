package rewrite

import (
	"context"
	"log/slog"
	"time"
)

type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry calls fn up to attempts times, doubling the delay after each
// failure. The last error is returned once attempts are exhausted.
func Retry[T any](ctx context.Context, attempts int, baseDelay time.Duration, sleep SleepFunc, fn func(context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)

	delay := baseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}

		if attempt == attempts {
			break
		}

		slog.Warn("Generation attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", err)

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return result, sleepErr
		}
		delay *= 2
	}

	return result, err
}
