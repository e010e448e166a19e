package throttle

import (
	"context"
	"time"

	"pathfinder/pkg/utils"
)

// Pause sleeps for a random duration in [min, max] or until ctx is done
func Pause(ctx context.Context, min, max time.Duration) error {
	d := utils.Jitter(min, max)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
