package crawler

import (
	"bytes"
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobmarket-crawler/internal/metrics"
)

// DescriptionFetcher looks up the free-text description on a listing's
// detail page.
type DescriptionFetcher struct {
	fetcher    Fetcher
	containers Chain
	timeout    time.Duration
	logger     *zap.Logger
}

// NewDescriptionFetcher builds a DescriptionFetcher that tries selectors in
// order. A zero timeout leaves the fetcher default in place.
func NewDescriptionFetcher(fetcher Fetcher, selectors []string, timeout time.Duration, logger *zap.Logger) *DescriptionFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DescriptionFetcher{
		fetcher:    fetcher,
		containers: ChainOf(selectors...),
		timeout:    timeout,
		logger:     logger,
	}
}

// FetchDescription returns the description text for link, or "" when the
// page cannot be fetched or has no description container.
func (d *DescriptionFetcher) FetchDescription(ctx context.Context, link string) string {
	desc := d.fetch(ctx, link)
	metrics.ObserveDescription(desc != "")
	return desc
}

func (d *DescriptionFetcher) fetch(ctx context.Context, link string) string {
	if link == "" {
		return ""
	}
	resp, err := d.fetcher.Fetch(ctx, FetchRequest{URL: link, Timeout: d.timeout, Kind: KindDescription})
	if err != nil {
		d.logger.Debug("description unavailable", zap.String("url", link), zap.Error(err))
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		d.logger.Debug("description page unreadable", zap.String("url", link), zap.Error(err))
		return ""
	}
	container, ok := d.containers.TryExtract(doc.Selection)
	if !ok {
		d.logger.Debug("no description container", zap.String("url", link))
		return ""
	}
	return joinedText(container.First())
}
