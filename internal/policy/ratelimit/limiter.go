// Package ratelimit implements the politeness policies applied between
// successive requests: a fixed minimum delay, a per-domain token bucket and
// an adaptive exponential backoff.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Policy throttles outgoing requests. Wait blocks until a request to rawURL
// may be issued; Observe reports how that request ended.
type Policy interface {
	Wait(ctx context.Context, rawURL string) error
	Observe(rawURL string, statusCode int, err error)
}

// Limiter manages per-domain token buckets.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// Config holds token bucket configuration.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until a token is available for the URL's domain, respecting the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	domain := domainOf(rawURL)
	l.mu.Lock()
	limiter, exists := l.limiters[domain]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[domain] = limiter
	}
	l.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Observe is a no-op; the bucket refills at a fixed rate.
func (l *Limiter) Observe(_ string, _ int, _ error) {}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}

// gap enforces a minimum interval between the end of one request and the
// start of the next.
type gap struct {
	mu       sync.Mutex
	lastDone time.Time
	now      func() time.Time
}

func (g *gap) wait(ctx context.Context, delay time.Duration) error {
	g.mu.Lock()
	var remaining time.Duration
	if !g.lastDone.IsZero() {
		remaining = g.lastDone.Add(delay).Sub(g.now())
	}
	g.mu.Unlock()
	if remaining <= 0 {
		return nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("politeness wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (g *gap) done() {
	g.mu.Lock()
	g.lastDone = g.now()
	g.mu.Unlock()
}

// FixedDelay waits a constant interval between successive requests.
type FixedDelay struct {
	delay time.Duration
	gap   gap
}

// NewFixedDelay returns a FixedDelay policy.
func NewFixedDelay(delay time.Duration) *FixedDelay {
	return &FixedDelay{delay: delay, gap: gap{now: time.Now}}
}

// Wait implements Policy.
func (f *FixedDelay) Wait(ctx context.Context, _ string) error {
	return f.gap.wait(ctx, f.delay)
}

// Observe implements Policy.
func (f *FixedDelay) Observe(_ string, _ int, _ error) {
	f.gap.done()
}

// Backoff waits a base interval between requests and doubles it, up to max,
// after each throttled (429), server (5xx) or network failure. A success
// resets it to base.
type Backoff struct {
	base  time.Duration
	max   time.Duration
	mu    sync.Mutex
	delay time.Duration
	gap   gap
}

// NewBackoff returns a Backoff policy.
func NewBackoff(base, maxDelay time.Duration) *Backoff {
	if maxDelay < base {
		maxDelay = base
	}
	return &Backoff{base: base, max: maxDelay, delay: base, gap: gap{now: time.Now}}
}

// Wait implements Policy.
func (b *Backoff) Wait(ctx context.Context, _ string) error {
	return b.gap.wait(ctx, b.Current())
}

// Observe implements Policy.
func (b *Backoff) Observe(_ string, statusCode int, err error) {
	b.gap.done()
	b.mu.Lock()
	defer b.mu.Unlock()
	if statusCode == 429 || statusCode >= 500 || (err != nil && statusCode == 0) {
		next := b.delay * 2
		if next <= 0 {
			next = time.Second
		}
		b.delay = min(next, b.max)
		return
	}
	if err == nil {
		b.delay = b.base
	}
}

// Current returns the interval the next Wait will enforce.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.delay
}

// None never waits.
type None struct{}

// Wait implements Policy.
func (None) Wait(context.Context, string) error { return nil }

// Observe implements Policy.
func (None) Observe(string, int, error) {}
