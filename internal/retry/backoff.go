package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Config bounds the backoff schedule.
type Config struct {
	Attempts   int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     bool
}

// DefaultConfig suits short-lived API calls on the triage path: a
// couple of quick attempts, never more than a few seconds of waiting.
func DefaultConfig() Config {
	return Config{
		Attempts:   3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Do runs op until it succeeds, fails with an error retryable rejects,
// the attempts are exhausted, or the context ends. The last error is
// returned as-is.
func Do(ctx context.Context, cfg Config, retryable func(error) bool, op func() error) error {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}

	var err error
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		if attempt > 0 {
			delay := cfg.delay(attempt)
			log.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).
				Msg("retrying after transient error")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = op(); err == nil || !retryable(err) {
			return err
		}
	}
	return err
}

func (c Config) delay(attempt int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt-1))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.Jitter {
		// Between 50% and 100% of the computed delay.
		d *= 0.5 + rand.Float64()/2
	}
	return time.Duration(d)
}
