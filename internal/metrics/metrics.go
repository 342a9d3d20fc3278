// Package metrics exposes Prometheus collectors for the job market crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerFetchesTotal           *prometheus.CounterVec
	crawlerBytesTotal             *prometheus.CounterVec
	crawlerCardsTotal             *prometheus.CounterVec
	crawlerDescriptionsTotal      *prometheus.CounterVec
	crawlerRetriesTotal           *prometheus.CounterVec
	crawlerRunsTotal              *prometheus.CounterVec
	crawlerPolitenessDelaySeconds prometheus.Histogram
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Fetch outcomes recorded by ObserveFetch.
const (
	OutcomeOK      = "ok"
	OutcomeStatus  = "status"
	OutcomeNetwork = "network"
	OutcomeTimeout = "timeout"
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_fetches_total",
				Help: "Total number of HTTP fetches, labeled by site, kind (page/description) and outcome.",
			},
			[]string{"site", "kind", "outcome"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_bytes_total",
				Help: "Total number of body bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerCardsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_cards_total",
				Help: "Total number of listing cards parsed, labeled by result (valid/rejected).",
			},
			[]string{"result"},
		)

		crawlerDescriptionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_descriptions_total",
				Help: "Total number of description lookups, labeled by result (found/missing).",
			},
			[]string{"result"},
		)

		crawlerRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_retries_total",
				Help: "Total number of fetch retries, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_runs_total",
				Help: "Total number of pipeline runs, labeled by status.",
			},
			[]string{"status"},
		)

		crawlerPolitenessDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobcrawler_politeness_delay_seconds",
				Help:    "Histogram of time spent waiting on the politeness policy.",
				Buckets: []float64{0.1, 0.5, 1, 1.5, 2, 5, 10, 30},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP API request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one fetch and the bytes it returned.
func ObserveFetch(rawURL, kind, outcome string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	crawlerFetchesTotal.WithLabelValues(site, kind, outcome).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveCards records how many cards on a page were kept and discarded.
func ObserveCards(valid, rejected int) {
	Init()
	if valid > 0 {
		crawlerCardsTotal.WithLabelValues("valid").Add(float64(valid))
	}
	if rejected > 0 {
		crawlerCardsTotal.WithLabelValues("rejected").Add(float64(rejected))
	}
}

// ObserveDescription records whether a description was found.
func ObserveDescription(found bool) {
	Init()
	result := "missing"
	if found {
		result = "found"
	}
	crawlerDescriptionsTotal.WithLabelValues(result).Inc()
}

// ObserveRetry records one retried fetch.
func ObserveRetry(rawURL string) {
	Init()
	crawlerRetriesTotal.WithLabelValues(SanitizeSite(rawURL)).Inc()
}

// ObserveRun records the terminal status of a pipeline run.
func ObserveRun(status string) {
	Init()
	crawlerRunsTotal.WithLabelValues(status).Inc()
}

// ObservePolitenessDelay records time spent waiting before a request.
func ObservePolitenessDelay(d time.Duration) {
	Init()
	crawlerPolitenessDelaySeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP API request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
