package fetcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit configures an optional token bucket per host: at most Requests
// requests per Window.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// Enabled reports whether r limits anything.
func (r RateLimit) Enabled() bool {
	return r.Requests > 0 && r.Window > 0
}

// hostBucket is the token bucket of one host and the rate it was built for.
type hostBucket struct {
	limiter *rate.Limiter
	rate    RateLimit
}

// HostLimiter enforces per-host politeness by combining a minimum delay
// between requests with an optional token-bucket rate limit.
type HostLimiter struct {
	delay time.Duration
	rate  RateLimit
	now   func() time.Time

	mu       sync.Mutex
	next     map[string]time.Time
	limiters map[string]hostBucket
}

// NewHostLimiter creates a limiter. delay is the minimum spacing between
// two requests to the same host; Wait may ask for a longer one.
func NewHostLimiter(delay time.Duration, rl RateLimit) *HostLimiter {
	return &HostLimiter{
		delay:    delay,
		rate:     rl,
		now:      time.Now,
		next:     make(map[string]time.Time),
		limiters: make(map[string]hostBucket),
	}
}

// Wait blocks until a request to host may be sent. delay overrides the
// limiter's default spacing when it is larger, which is how a robots.txt
// Crawl-delay takes effect.
//
// Slots are reserved before sleeping, so concurrent callers for the same
// host are spaced out rather than released together.
func (l *HostLimiter) Wait(ctx context.Context, host string, delay time.Duration) error {
	return l.WaitRate(ctx, host, delay, RateLimit{})
}

// WaitRate is Wait with a per-host rate limit. A disabled rl falls back to
// the limiter's default rate.
func (l *HostLimiter) WaitRate(ctx context.Context, host string, delay time.Duration, rl RateLimit) error {
	if l == nil || host == "" {
		return nil
	}
	host = strings.ToLower(host)
	if l.delay > delay {
		delay = l.delay
	}

	now := l.now()
	var sleep time.Duration
	var limiter *rate.Limiter

	l.mu.Lock()
	slot := now
	if next, ok := l.next[host]; ok && next.After(now) {
		slot = next
	}
	l.next[host] = slot.Add(delay)
	sleep = slot.Sub(now)
	if !rl.Enabled() {
		rl = l.rate
	}
	if rl.Enabled() {
		limiter = l.ensureLimiterLocked(host, rl)
	}
	l.mu.Unlock()

	if sleep > 0 {
		timer := time.NewTimer(sleep)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if limiter != nil {
		return limiter.Wait(ctx)
	}
	return nil
}

// ensureLimiterLocked returns the token bucket of host, creating it on
// first use or when rl differs from the rate it was built for. l.mu must
// be held.
func (l *HostLimiter) ensureLimiterLocked(host string, rl RateLimit) *rate.Limiter {
	if b, ok := l.limiters[host]; ok && b.rate == rl {
		return b.limiter
	}
	interval := rl.Window / time.Duration(rl.Requests)
	if interval <= 0 {
		interval = time.Millisecond
	}
	limiter := rate.NewLimiter(rate.Every(interval), rl.Requests)
	l.limiters[host] = hostBucket{limiter: limiter, rate: rl}
	return limiter
}

// Forget drops the timing state of host.
func (l *HostLimiter) Forget(host string) {
	host = strings.ToLower(host)
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.next, host)
	delete(l.limiters, host)
}
