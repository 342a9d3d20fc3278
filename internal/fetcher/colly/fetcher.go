// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobmarket-crawler/internal/crawler"
	"github.com/JakeFAU/jobmarket-crawler/internal/metrics"
)

const (
	defaultTimeout = 15 * time.Second
	// maxRequestTimeout is the collector-wide ceiling; per-request deadlines
	// are applied through the request context.
	maxRequestTimeout = 2 * time.Minute
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	// Timeout is used when a FetchRequest carries none.
	Timeout time.Duration
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = crawler.DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgent),
	)
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.SetRequestTimeout(maxRequestTimeout)

	var transport http.RoundTripper = newHTTPTransport()
	if cfg.RespectRobots {
		transport = &robotsTransport{
			base:    transport,
			backoff: robotsRetryBackoff,
			logger:  logger,
		}
	}
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch executes a single HTTP GET using Colly. The request is not canceled
// with ctx; it runs to completion or until its own timeout expires.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	var (
		result     crawler.FetchResponse
		fetchErr   error
		statusCode int
	)
	timeout := f.requestTimeout(request)
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	start := time.Now()
	collector := f.buildCollector(reqCtx)
	f.configureCollectorHooks(collector, request, start, &result, &fetchErr, &statusCode)

	visitErr := collector.Visit(request.URL)
	if fetchErr == nil {
		fetchErr = visitErr
	}
	if fetchErr != nil {
		fe := classify(request.URL, statusCode, fetchErr)
		metrics.ObserveFetch(request.URL, kindLabel(request), string(fe.Kind), 0)
		f.logger.Debug("fetch failed",
			zap.String("url", request.URL),
			zap.String("kind", string(fe.Kind)),
			zap.Int("status_code", statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.Error(fetchErr),
		)
		if statusCode > 0 {
			result.URL = request.URL
			result.StatusCode = statusCode
			result.Duration = time.Since(start)
		}
		return result, fe
	}

	metrics.ObserveFetch(request.URL, kindLabel(request), metrics.OutcomeOK, len(result.Body))
	f.logger.Debug("fetched",
		zap.String("url", result.URL),
		zap.Int("status_code", result.StatusCode),
		zap.Int("bytes", len(result.Body)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (f *Fetcher) requestTimeout(request crawler.FetchRequest) time.Duration {
	timeout := request.Timeout
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}
	return min(timeout, maxRequestTimeout)
}

func (f *Fetcher) buildCollector(ctx context.Context) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.Context = ctx
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request crawler.FetchRequest,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
	statusCode *int,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		resp := crawler.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
		if r.Headers != nil {
			resp.Headers = r.Headers.Clone()
		}
		*result = resp
	})

	hooks.OnError(func(r *colly.Response, err error) {
		*fetchErr = err
		if r != nil {
			*statusCode = r.StatusCode
		}
	})
}

func (f *Fetcher) copyHeaders(request crawler.FetchRequest, r *colly.Request) {
	if request.Headers == nil {
		return
	}
	for key, values := range request.Headers {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

// classify maps a colly failure onto a FetchError. Colly reports non-2xx
// statuses through OnError with the response status set; network failures
// arrive with a zero status.
func classify(rawURL string, statusCode int, err error) *crawler.FetchError {
	fe := &crawler.FetchError{URL: rawURL, StatusCode: statusCode, Err: err}
	var netErr net.Error
	switch {
	case statusCode > 0:
		fe.Kind = crawler.FetchErrorStatus
	case errors.Is(err, colly.ErrRobotsTxtBlocked):
		fe.Kind = crawler.FetchErrorRobots
	case errors.Is(err, context.DeadlineExceeded):
		fe.Kind = crawler.FetchErrorTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		fe.Kind = crawler.FetchErrorTimeout
	default:
		fe.Kind = crawler.FetchErrorNetwork
	}
	return fe
}

func kindLabel(request crawler.FetchRequest) string {
	if request.Kind == "" {
		return crawler.KindPage
	}
	return request.Kind
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
