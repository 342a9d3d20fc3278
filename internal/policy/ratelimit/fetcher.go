package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/jobmarket-crawler/internal/crawler"
	"github.com/JakeFAU/jobmarket-crawler/internal/metrics"
)

// Strategy names accepted by FromConfig.
const (
	StrategyFixed       = "fixed"
	StrategyTokenBucket = "token_bucket"
	StrategyBackoff     = "backoff"
	StrategyNone        = "none"
)

// Settings selects and tunes a politeness Policy.
type Settings struct {
	Strategy string
	Delay    time.Duration
	MaxDelay time.Duration
	RPS      float64
	Burst    int
}

// FromConfig builds the Policy named by s.Strategy.
func FromConfig(s Settings) (Policy, error) {
	switch s.Strategy {
	case "", StrategyFixed:
		return NewFixedDelay(s.Delay), nil
	case StrategyTokenBucket:
		return New(Config{DefaultRPS: s.RPS, DefaultBurst: s.Burst}), nil
	case StrategyBackoff:
		return NewBackoff(s.Delay, s.MaxDelay), nil
	case StrategyNone:
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown politeness strategy %q", s.Strategy)
	}
}

// Fetcher applies a Policy in front of another crawler.Fetcher.
type Fetcher struct {
	inner  crawler.Fetcher
	policy Policy
}

// NewFetcher wraps inner with policy.
func NewFetcher(inner crawler.Fetcher, policy Policy) *Fetcher {
	if policy == nil {
		policy = None{}
	}
	return &Fetcher{inner: inner, policy: policy}
}

// Fetch waits on the policy, then delegates. A canceled wait returns the
// context error without issuing the request.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	start := time.Now()
	if err := f.policy.Wait(ctx, request.URL); err != nil {
		return crawler.FetchResponse{}, err
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObservePolitenessDelay(waited)
	}

	resp, err := f.inner.Fetch(ctx, request)
	status := resp.StatusCode
	if fe, ok := crawler.AsFetchError(err); ok && fe.StatusCode > 0 {
		status = fe.StatusCode
	}
	f.policy.Observe(request.URL, status, err)
	return resp, err
}
