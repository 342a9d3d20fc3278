package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobmarket-crawler/internal/crawler"
)

func TestLimiter_Wait(t *testing.T) {
	t.Parallel()

	// 10 RPS = one token every 100ms, starting with one.
	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://test.com"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://test.com/2"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiter_DifferentDomains(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.com/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.com/1"))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "domain B blocked by domain A")
}

func TestFixedDelay(t *testing.T) {
	t.Parallel()

	p := NewFixedDelay(60 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, p.Wait(ctx, "u"))
	assert.Less(t, time.Since(start), 30*time.Millisecond, "first request must not wait")
	p.Observe("u", 200, nil)

	start = time.Now()
	require.NoError(t, p.Wait(ctx, "u"))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestFixedDelayHonorsCancellation(t *testing.T) {
	t.Parallel()

	p := NewFixedDelay(time.Hour)
	p.Observe("u", 200, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Wait(ctx, "u")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	b := NewBackoff(100*time.Millisecond, 350*time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, b.Current())

	b.Observe("u", 429, &crawler.FetchError{Kind: crawler.FetchErrorStatus, StatusCode: 429})
	assert.Equal(t, 200*time.Millisecond, b.Current())

	b.Observe("u", 0, &crawler.FetchError{Kind: crawler.FetchErrorNetwork})
	assert.Equal(t, 350*time.Millisecond, b.Current())

	// A 404 is neither throttling nor an outage.
	b.Observe("u", 404, &crawler.FetchError{Kind: crawler.FetchErrorStatus, StatusCode: 404})
	assert.Equal(t, 350*time.Millisecond, b.Current())

	b.Observe("u", 200, nil)
	assert.Equal(t, 100*time.Millisecond, b.Current())
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	p, err := FromConfig(Settings{Delay: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &FixedDelay{}, p)

	p, err = FromConfig(Settings{Strategy: StrategyTokenBucket, RPS: 2})
	require.NoError(t, err)
	assert.IsType(t, &Limiter{}, p)

	p, err = FromConfig(Settings{Strategy: StrategyBackoff, Delay: time.Second, MaxDelay: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &Backoff{}, p)

	p, err = FromConfig(Settings{Strategy: StrategyNone})
	require.NoError(t, err)
	assert.Equal(t, None{}, p)

	_, err = FromConfig(Settings{Strategy: "warp"})
	require.ErrorContains(t, err, "unknown politeness strategy")
}

type recordingPolicy struct {
	waitErr  error
	waits    int
	observed []int
}

func (r *recordingPolicy) Wait(context.Context, string) error {
	r.waits++
	return r.waitErr
}

func (r *recordingPolicy) Observe(_ string, statusCode int, _ error) {
	r.observed = append(r.observed, statusCode)
}

func TestFetcherDecorator(t *testing.T) {
	t.Parallel()

	calls := 0
	inner := crawler.FetcherFunc(func(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
		calls++
		if req.URL == "bad" {
			return crawler.FetchResponse{}, &crawler.FetchError{URL: req.URL, Kind: crawler.FetchErrorStatus, StatusCode: 503}
		}
		return crawler.FetchResponse{URL: req.URL, StatusCode: 200}, nil
	})
	policy := &recordingPolicy{}
	f := NewFetcher(inner, policy)

	_, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: "good"})
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), crawler.FetchRequest{URL: "bad"})
	require.Error(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, policy.waits)
	assert.Equal(t, []int{200, 503}, policy.observed)
}

func TestFetcherDecoratorStopsOnWaitError(t *testing.T) {
	t.Parallel()

	inner := crawler.FetcherFunc(func(context.Context, crawler.FetchRequest) (crawler.FetchResponse, error) {
		t.Fatal("inner fetcher must not be called")
		return crawler.FetchResponse{}, nil
	})
	f := NewFetcher(inner, &recordingPolicy{waitErr: context.Canceled})
	_, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: "u"})
	assert.True(t, errors.Is(err, context.Canceled))
}
