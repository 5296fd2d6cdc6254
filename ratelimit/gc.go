package ratelimit

import (
	"context"
	"time"

	"github.com/corvidlabs/raven/telemetry"
)

// GCConfig tunes the periodic sweep over a Limiter's BucketStore.
type GCConfig struct {
	// Interval is how often the sweep runs.
	Interval time.Duration
	// ExpiredAfter is how long past its reset window a bucket entry
	// must sit idle before the sweep considers it dead.
	ExpiredAfter time.Duration
	// ShrinkThreshold is the minimum number of entries a sweep must
	// remove from one bucket map before that map is reallocated.
	ShrinkThreshold int
}

// DefaultGCConfig matches a conservative sweep: hourly, an hour of
// idleness before an entry is considered dead, reallocate after any
// removal since per-route maps are small.
func DefaultGCConfig() GCConfig {
	return GCConfig{
		Interval:        time.Hour,
		ExpiredAfter:    time.Hour,
		ShrinkThreshold: 1,
	}
}

// RunGC sweeps l's BucketStore on cfg.Interval until ctx is cancelled.
// Callers start it in its own goroutine alongside a Controller.
func RunGC(ctx context.Context, l *Limiter, cfg GCConfig) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dropped := l.store.GC(cfg.ExpiredAfter, cfg.ShrinkThreshold)
			if dropped > 0 {
				telemetry.Logger.Debug().Int("dropped_buckets", dropped).Msg("rate limit bucket gc swept")
			}
		}
	}
}
