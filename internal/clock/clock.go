package clock

import (
	"context"
	"time"
)

// Clock abstracts time for deterministic tests and strict UTC usage.
type Clock interface {
	NowUTC() time.Time
}

// SystemUTC is the production clock.
type SystemUTC struct{}

func (SystemUTC) NowUTC() time.Time {
	return time.Now().UTC()
}

// Sleeper abstracts waiting so refresh cadence and polling backoff can be
// tested without real sleeps.
type Sleeper interface {
	// Sleep waits for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemSleeper is the production sleeper.
type SystemSleeper struct{}

func (SystemSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
