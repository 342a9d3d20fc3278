package crawler

import (
	"errors"
	"fmt"
	"net/url"
)

// DefaultUserAgent is the browser-like identification sent with every request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// SiteProfile describes one job board: where to search and how its markup
// is laid out.
type SiteProfile struct {
	BaseURL  string
	PageSize int
	// CardSelectors are tried in order; the first that matches any card wins.
	CardSelectors    []string
	TitleSelector    string
	CompanySelector  string
	LocationSelector string
	// LinkSelector's first match supplies the href.
	LinkSelector         string
	DescriptionSelectors []string
}

// DefaultProfile returns the wuzzuf.net profile.
func DefaultProfile() SiteProfile {
	return SiteProfile{
		BaseURL:  "https://wuzzuf.net",
		PageSize: 10,
		CardSelectors: []string{
			"div.css-1gatmva.e1v1l3u10",
			"div.css-1t7spv1",
		},
		TitleSelector:    "h2",
		CompanySelector:  "a.css-17s97q8",
		LocationSelector: "span.css-5wys0k",
		LinkSelector:     "a",
		DescriptionSelectors: []string{
			"div.css-1m4cuuf",
			"div.css-1uobp1k",
		},
	}
}

// Validate checks the profile is usable.
func (p SiteProfile) Validate() error {
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return fmt.Errorf("base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base url must be absolute, got %q", p.BaseURL)
	}
	if p.PageSize <= 0 {
		return fmt.Errorf("page size must be > 0, got %d", p.PageSize)
	}
	if len(ChainOf(p.CardSelectors...)) == 0 {
		return errors.New("at least one card selector is required")
	}
	if p.TitleSelector == "" || p.CompanySelector == "" || p.LocationSelector == "" || p.LinkSelector == "" {
		return errors.New("title, company, location and link selectors are required")
	}
	return nil
}
