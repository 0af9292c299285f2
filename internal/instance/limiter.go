package instance

import (
	"context"

	"golang.org/x/time/rate"
)

// defaultRefreshRatePerSecond limits refreshes (scheduled, forced, and retries alike)
// to one per minute on average, protecting the admin API's quota, with a
// burst of one so the manager's very first refresh is not delayed.
const (
	defaultRefreshRatePerSecond = 1.0 / 60.0
	defaultRefreshBurst         = 1
)

// refreshLimiter is the forced-refresh limiter: a token-bucket rate
// limiter consulted at the start of every refresh attempt, scheduled or
// forced. Its outcome is never surfaced to callers.
type refreshLimiter struct {
	limiter *rate.Limiter
}

func newRefreshLimiter() *refreshLimiter {
	return &refreshLimiter{limiter: rate.NewLimiter(rate.Limit(defaultRefreshRatePerSecond), defaultRefreshBurst)}
}

func newRefreshLimiterWithRate(perSecond rate.Limit, burst int) *refreshLimiter {
	return &refreshLimiter{limiter: rate.NewLimiter(perSecond, burst)}
}

// acquire blocks until a token is available or ctx is done.
func (l *refreshLimiter) acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
