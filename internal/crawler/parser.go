package crawler

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobmarket-crawler/internal/model"
)

// PageParser extracts listing cards from a search-results page.
type PageParser struct {
	profile SiteProfile
	cards   Chain
	logger  *zap.Logger
}

// NewPageParser validates profile and builds a parser for it.
func NewPageParser(profile SiteProfile, logger *zap.Logger) (*PageParser, error) {
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("site profile: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageParser{
		profile: profile,
		cards:   ChainOf(profile.CardSelectors...),
		logger:  logger,
	}, nil
}

// ParsePage returns one result per card in document order. page is the
// 1-based page number stamped on each listing. A page with no matching cards
// yields an empty slice; the error is reserved for unreadable documents.
func (p *PageParser) ParsePage(body []byte, page int) ([]model.CardResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page %d: %w", page, err)
	}
	cards, ok := p.cards.TryExtract(doc.Selection)
	if !ok {
		p.logger.Debug("no cards matched", zap.Int("page", page))
		return []model.CardResult{}, nil
	}

	results := make([]model.CardResult, 0, cards.Length())
	cards.Each(func(i int, card *goquery.Selection) {
		results = append(results, p.parseCard(card, page, i))
	})
	return results, nil
}

func (p *PageParser) parseCard(card *goquery.Selection, page, index int) model.CardResult {
	listing := model.JobListing{
		Title:      fieldText(card, p.profile.TitleSelector),
		Company:    fieldText(card, p.profile.CompanySelector),
		Location:   fieldText(card, p.profile.LocationSelector),
		SourcePage: page,
	}
	if href, ok := card.Find(p.profile.LinkSelector).First().Attr("href"); ok {
		link, err := ResolveLink(p.profile.BaseURL, href)
		if err != nil {
			p.logger.Debug("unresolvable card link",
				zap.Int("page", page), zap.Int("card", index), zap.String("href", href), zap.Error(err))
		}
		listing.Link = link
	}

	if err := listing.Validate(); err != nil {
		var cardErr *model.CardParseError
		if errors.As(err, &cardErr) {
			cardErr.Index = index
		}
		return model.CardResult{Err: err}
	}
	return model.CardResult{Listing: listing}
}

func fieldText(card *goquery.Selection, selector string) string {
	return CleanText(card.Find(selector).First().Text())
}
