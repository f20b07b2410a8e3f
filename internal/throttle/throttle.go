package throttle

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RateLimiter caps requests per minute against the backend, with an
// optional random delay between requests
type RateLimiter struct {
	mu                   sync.Mutex
	maxRequestsPerMinute int
	requestTimes         []time.Time
	minDelay             time.Duration
	maxDelay             time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a new rate limiter. maxPerMinute <= 0 disables the cap.
func NewRateLimiter(maxPerMinute int, minDelay, maxDelay time.Duration) *RateLimiter {
	capacity := maxPerMinute
	if capacity < 0 {
		capacity = 0
	}
	return &RateLimiter{
		maxRequestsPerMinute: maxPerMinute,
		requestTimes:         make([]time.Time, 0, capacity),
		minDelay:             minDelay,
		maxDelay:             maxDelay,
		now:                  time.Now,
		sleep:                sleepContext,
	}
}

// Wait blocks until a request can be made within rate limits or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return ctx.Err()
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-time.Minute)

	// Remove old request times
	filtered := rl.requestTimes[:0]
	for _, t := range rl.requestTimes {
		if t.After(cutoff) {
			filtered = append(filtered, t)
		}
	}
	rl.requestTimes = filtered

	// If at limit, wait until oldest request expires
	if rl.maxRequestsPerMinute > 0 && len(rl.requestTimes) >= rl.maxRequestsPerMinute {
		waitUntil := rl.requestTimes[0].Add(time.Minute)
		if waitUntil.After(now) {
			if err := rl.sleep(ctx, waitUntil.Sub(now)); err != nil {
				return err
			}
		}
		rl.requestTimes = rl.requestTimes[1:]
	}

	if delay := rl.randomDelay(); delay > 0 {
		if err := rl.sleep(ctx, delay); err != nil {
			return err
		}
	}

	rl.requestTimes = append(rl.requestTimes, rl.now())
	return nil
}

// randomDelay returns a random duration between minDelay and maxDelay
func (rl *RateLimiter) randomDelay() time.Duration {
	if rl.maxDelay <= rl.minDelay {
		return rl.minDelay
	}
	diff := rl.maxDelay - rl.minDelay
	return rl.minDelay + time.Duration(rand.Int63n(int64(diff)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
