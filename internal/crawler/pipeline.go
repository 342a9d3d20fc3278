package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobmarket-crawler/internal/analysis"
	"github.com/JakeFAU/jobmarket-crawler/internal/metrics"
	"github.com/JakeFAU/jobmarket-crawler/internal/model"
)

// Run statuses recorded in metrics.
const (
	RunSucceeded = "succeeded"
	RunPartial   = "partial"
	RunCanceled  = "canceled"
	RunFailed    = "failed"
)

// PipelineConfig holds the immutable knobs of a Pipeline.
type PipelineConfig struct {
	Profile     SiteProfile
	PageTimeout time.Duration
	// DescriptionLimit caps how many leading listings get a description
	// lookup. Zero disables description fetching.
	DescriptionLimit int
	// MaxPagesLimit bounds SearchQuery.MaxPages. Zero means unbounded.
	MaxPagesLimit int
	Headers       http.Header
}

// Pipeline drives one search from the first results page to ranked stats.
// It holds no per-run state and is safe to reuse.
type Pipeline struct {
	cfg          PipelineConfig
	fetcher      Fetcher
	parser       *PageParser
	descriptions *DescriptionFetcher
	clock        Clock
	ids          IDGenerator
	logger       *zap.Logger
}

// NewPipeline wires the pipeline collaborators.
func NewPipeline(
	cfg PipelineConfig,
	fetcher Fetcher,
	parser *PageParser,
	descriptions *DescriptionFetcher,
	clock Clock,
	ids IDGenerator,
	logger *zap.Logger,
) (*Pipeline, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if parser == nil {
		return nil, errors.New("page parser is required")
	}
	if descriptions == nil && cfg.DescriptionLimit > 0 {
		return nil, errors.New("description fetcher is required when description limit > 0")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if ids == nil {
		return nil, errors.New("id generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:          cfg,
		fetcher:      fetcher,
		parser:       parser,
		descriptions: descriptions,
		clock:        clock,
		ids:          ids,
		logger:       logger,
	}, nil
}

// MaxPagesLimit returns the configured page ceiling.
func (p *Pipeline) MaxPagesLimit() int {
	return p.cfg.MaxPagesLimit
}

// run is the accumulating state of one Run call.
type run struct {
	result   Result
	listings []model.JobListing
	canceled bool
	logger   *zap.Logger
}

func (r *run) enter(stage Stage, fields ...zap.Field) {
	r.logger.Debug("stage", append([]zap.Field{zap.String("stage", string(stage))}, fields...)...)
}

func (r *run) warn(msg string, fields ...zap.Field) {
	r.logger.Warn(msg, fields...)
	r.result.Warnings = append(r.result.Warnings, msg)
}

// Run executes the search described by query. It returns the best-effort
// result even when some requests failed. The error is non-nil only for an
// invalid query (ErrInvalidQuery) or when the first results page could not
// be fetched; in the latter case it wraps ErrNoListings and the FetchError.
func (p *Pipeline) Run(ctx context.Context, query model.SearchQuery) (Result, error) {
	query.Skills = model.NormalizeSkills(query.Skills)
	if err := query.Validate(p.cfg.MaxPagesLimit); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	runID, err := p.ids.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("generate run id: %w", err)
	}

	r := &run{
		result: Result{
			RunID:     runID,
			Query:     query,
			StartedAt: p.clock.Now(),
		},
		logger: p.logger.With(zap.String("run_id", runID)),
	}
	r.enter(StageIdle, zap.String("query", query.Query), zap.String("location", query.Location),
		zap.Int("max_pages", query.MaxPages))

	firstPageErr := p.fetchPages(ctx, r, query)

	listings := Dedupe(r.listings)
	if dropped := len(r.listings) - len(listings); dropped > 0 {
		r.enter(StageDeduping, zap.Int("duplicates", dropped))
	}

	p.fetchDescriptions(ctx, r, listings)

	r.enter(StageAggregating, zap.Int("listings", len(listings)))
	r.result.Stats = analysis.Aggregate(listings, query.Skills)
	r.result.Listings = listings
	r.result.FinishedAt = p.clock.Now()
	r.enter(StageDone, zap.Int("pages", r.result.PagesFetched), zap.Int("listings", len(listings)),
		zap.Bool("stopped_early", r.result.StoppedEarly))

	if len(listings) == 0 && firstPageErr == nil && !r.canceled {
		r.warn("no listings found")
	}

	switch {
	case firstPageErr != nil:
		metrics.ObserveRun(RunFailed)
		return r.result, fmt.Errorf("%w: %w", ErrNoListings, firstPageErr)
	case r.canceled:
		metrics.ObserveRun(RunCanceled)
	case r.result.StoppedEarly || len(r.result.Warnings) > 0:
		metrics.ObserveRun(RunPartial)
	default:
		metrics.ObserveRun(RunSucceeded)
	}
	return r.result, nil
}

// fetchPages walks the results pages. It returns the fetch error of the first
// page when nothing could be collected.
func (p *Pipeline) fetchPages(ctx context.Context, r *run, query model.SearchQuery) error {
	for page := 0; page < query.MaxPages; page++ {
		if ctx.Err() != nil {
			r.canceled = true
			r.result.StoppedEarly = true
			r.warn(fmt.Sprintf("canceled before page %d", page+1))
			return nil
		}

		pageURL := SearchURL(p.cfg.Profile.BaseURL, query.Query, query.Location, page, p.cfg.Profile.PageSize)
		r.enter(StageFetching, zap.Int("page", page+1), zap.String("url", pageURL))
		resp, err := p.fetcher.Fetch(ctx, FetchRequest{
			URL:     pageURL,
			Timeout: p.cfg.PageTimeout,
			Headers: p.cfg.Headers,
			Kind:    KindPage,
		})
		if err != nil {
			r.result.StoppedEarly = true
			if ctx.Err() != nil {
				r.canceled = true
				r.warn(fmt.Sprintf("canceled before page %d", page+1))
				return nil
			}
			r.warn(fmt.Sprintf("failed to retrieve page %d: %v", page+1, err),
				zap.Int("page", page+1), zap.String("url", pageURL), zap.Error(err))
			if page == 0 {
				return err
			}
			return nil
		}
		r.result.PagesFetched++

		r.enter(StageParsing, zap.Int("page", page+1), zap.Int("bytes", len(resp.Body)))
		cards, err := p.parser.ParsePage(resp.Body, page+1)
		if err != nil {
			r.warn(fmt.Sprintf("failed to parse page %d: %v", page+1, err), zap.Int("page", page+1))
			continue
		}
		if len(cards) == 0 {
			r.warn(fmt.Sprintf("no listings found on page %d", page+1), zap.Int("page", page+1))
			continue
		}

		valid, rejected := 0, 0
		for _, card := range cards {
			if !card.OK() {
				rejected++
				r.warn(fmt.Sprintf("discarded card: %v", card.Err), zap.Int("page", page+1))
				continue
			}
			valid++
			r.listings = append(r.listings, card.Listing)
		}
		r.result.CardsRejected += rejected
		metrics.ObserveCards(valid, rejected)
	}
	return nil
}

// fetchDescriptions enriches the leading listings in place.
func (p *Pipeline) fetchDescriptions(ctx context.Context, r *run, listings []model.JobListing) {
	limit := min(p.cfg.DescriptionLimit, len(listings))
	if limit <= 0 || r.canceled {
		return
	}
	r.enter(StageDescribing, zap.Int("count", limit))
	for i := range limit {
		if ctx.Err() != nil {
			r.canceled = true
			r.warn(fmt.Sprintf("canceled after %d of %d descriptions", i, limit))
			return
		}
		desc := p.descriptions.FetchDescription(ctx, listings[i].Link)
		if desc == "" {
			continue
		}
		listings[i].Description = desc
		r.result.DescriptionsFetched++
	}
}
