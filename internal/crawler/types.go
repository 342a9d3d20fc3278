package crawler

import (
	"net/http"
	"time"

	"github.com/JakeFAU/jobmarket-crawler/internal/analysis"
	"github.com/JakeFAU/jobmarket-crawler/internal/model"
)

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL string
	// Timeout bounds the whole request. Zero means the fetcher default.
	Timeout time.Duration
	Headers http.Header
	// Kind labels the request for metrics ("page" or "description").
	Kind string
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Fetch kinds.
const (
	KindPage        = "page"
	KindDescription = "description"
)

// Stage names a step of a pipeline run.
type Stage string

// Pipeline stages, in the order a run moves through them.
const (
	StageIdle        Stage = "idle"
	StageFetching    Stage = "fetching_pages"
	StageParsing     Stage = "parsing"
	StageDeduping    Stage = "deduplicating"
	StageDescribing  Stage = "fetching_descriptions"
	StageAggregating Stage = "aggregating"
	StageDone        Stage = "done"
)

// Result is everything a pipeline run produced.
type Result struct {
	RunID               string             `json:"run_id"`
	Query               model.SearchQuery  `json:"query"`
	StartedAt           time.Time          `json:"started_at"`
	FinishedAt          time.Time          `json:"finished_at"`
	PagesFetched        int                `json:"pages_fetched"`
	CardsRejected       int                `json:"cards_rejected"`
	DescriptionsFetched int                `json:"descriptions_fetched"`
	StoppedEarly        bool               `json:"stopped_early"`
	Listings            []model.JobListing `json:"listings"`
	Stats               analysis.Stats     `json:"stats"`
	Warnings            []string           `json:"warnings,omitempty"`
}

// Empty reports whether the run produced no listings.
func (r Result) Empty() bool {
	return len(r.Listings) == 0
}
