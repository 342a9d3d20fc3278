// Package app initializes and holds long-lived application services: the
// crawl pipeline and the sinks finished runs are exported to.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobmarket-crawler/internal/clock/system"
	"github.com/JakeFAU/jobmarket-crawler/internal/config"
	"github.com/JakeFAU/jobmarket-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/jobmarket-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/jobmarket-crawler/internal/id/uuid"
	"github.com/JakeFAU/jobmarket-crawler/internal/model"
	"github.com/JakeFAU/jobmarket-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/jobmarket-crawler/internal/policy/retry"
)

// App holds the shared services built once at startup.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	pipeline *crawler.Pipeline
	exporter *Exporter
	closers  []closer
}

// New builds the pipeline and opens every configured sink. It fails fast
// when a sink cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pipeline, err := BuildPipeline(cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, logger: logger, pipeline: pipeline}

	blobs, closeBlobs, err := newBlobStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	a.addCloser(closeBlobs)

	listings, err := newListingStore(ctx, cfg.DB, logger)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("listing store: %w", err)
	}
	if listings != nil {
		a.addCloser(listings.Close)
	}

	pub, closePub, err := newPublisher(ctx, cfg.PubSub, logger)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("publisher: %w", err)
	}
	a.addCloser(closePub)

	formats, err := cfg.Storage.ReportFormats()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.exporter = NewExporter(ExporterConfig{
		Prefix:  cfg.Storage.Prefix,
		Formats: formats,
		Topic:   cfg.PubSub.TopicName,
	}, blobs, listings, pub, logger.Named("export"))
	return a, nil
}

// NewWithExporter assembles an App from prebuilt parts.
func NewWithExporter(cfg config.Config, pipeline *crawler.Pipeline, exporter *Exporter, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exporter == nil {
		exporter = NewExporter(ExporterConfig{}, nil, nil, nil, logger)
	}
	return &App{cfg: cfg, logger: logger, pipeline: pipeline, exporter: exporter}
}

// BuildPipeline assembles the fetch chain (colly, politeness, optional
// retry) and the pipeline around it.
func BuildPipeline(cfg config.Config, logger *zap.Logger) (*crawler.Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	profile := cfg.Site.Profile()

	base := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawl.UserAgent,
		RespectRobots: cfg.Crawl.RespectRobots,
		Timeout:       cfg.Crawl.PageTimeout,
	}, logger.Named("fetcher"))

	policy, err := ratelimit.FromConfig(cfg.Politeness.Settings())
	if err != nil {
		return nil, fmt.Errorf("politeness: %w", err)
	}
	var fetcher crawler.Fetcher = ratelimit.NewFetcher(base, policy)
	if cfg.Retry.MaxRetries > 0 {
		fetcher = retry.NewFetcher(
			fetcher,
			retry.NewExponentialRetryPolicy(cfg.Retry.MaxRetries, cfg.Retry.BaseDelay, cfg.Retry.MaxDelay),
			logger.Named("retry"),
		)
	}

	parser, err := crawler.NewPageParser(profile, logger.Named("parser"))
	if err != nil {
		return nil, fmt.Errorf("page parser: %w", err)
	}
	descriptions := crawler.NewDescriptionFetcher(
		fetcher,
		profile.DescriptionSelectors,
		cfg.Crawl.DescriptionTimeout,
		logger.Named("descriptions"),
	)

	return crawler.NewPipeline(crawler.PipelineConfig{
		Profile:          profile,
		PageTimeout:      cfg.Crawl.PageTimeout,
		DescriptionLimit: cfg.Crawl.DescriptionLimit,
		MaxPagesLimit:    cfg.Crawl.MaxPagesLimit,
		Headers:          cfg.Crawl.Headers(),
	}, fetcher, parser, descriptions, system.New(), uuid.New(), logger.Named("pipeline"))
}

// Query builds a SearchQuery, filling pages and skills from configuration
// when they are unset.
func (a *App) Query(query, location string, pages int, skills []string) model.SearchQuery {
	if pages == 0 {
		pages = a.cfg.Crawl.DefaultPages
	}
	if skills == nil {
		skills = a.cfg.Crawl.DefaultSkills
	}
	return model.SearchQuery{
		Query:    query,
		Location: location,
		MaxPages: pages,
		Skills:   model.NormalizeSkills(skills),
	}
}

// Analyze runs the pipeline and exports the result. Export failures are
// logged and reported through Outcome.ExportErr; they never discard the
// result.
func (a *App) Analyze(ctx context.Context, query model.SearchQuery) (Outcome, error) {
	res, err := a.pipeline.Run(ctx, query)
	if err != nil {
		return Outcome{Result: res}, err
	}
	out := Outcome{Result: res}
	if !a.exporter.Enabled() {
		return out, nil
	}
	// Export even when the caller has gone away; the result already exists.
	exportCtx := context.WithoutCancel(ctx)
	out.Artifacts, out.ExportErr = a.exporter.Export(exportCtx, res)
	if out.ExportErr != nil {
		a.logger.Error("export failed", zap.String("run_id", res.RunID), zap.Error(out.ExportErr))
	}
	return out, nil
}

// Outcome is a run result plus where it was exported.
type Outcome struct {
	Result    crawler.Result `json:"result"`
	Artifacts Artifacts      `json:"artifacts,omitempty"`
	ExportErr error          `json:"-"`
}

func (a *App) addCloser(c closer) {
	if c != nil {
		a.closers = append(a.closers, c)
	}
}

// Close releases every sink in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
