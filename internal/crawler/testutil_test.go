package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const testBase = "https://site.test"

func testProfile() SiteProfile {
	p := DefaultProfile()
	p.BaseURL = testBase
	return p
}

type card struct {
	title, company, location, href string
}

// cardHTML renders one card using the default profile markup. Empty fields
// are left out of the fragment entirely.
func cardHTML(class string, c card) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="%s">`, class)
	if c.href != "" {
		fmt.Fprintf(&b, `<h2><a href="%s">%s</a></h2>`, c.href, c.title)
	} else if c.title != "" {
		fmt.Fprintf(&b, `<h2>%s</h2>`, c.title)
	}
	if c.company != "" {
		fmt.Fprintf(&b, `<div><a class="css-17s97q8">%s</a></div>`, c.company)
	}
	if c.location != "" {
		fmt.Fprintf(&b, `<span class="css-5wys0k">  %s </span>`, c.location)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func pageHTML(class string, cards ...card) []byte {
	var b strings.Builder
	b.WriteString(`<html><body><div id="results">`)
	for _, c := range cards {
		b.WriteString(cardHTML(class, c))
	}
	b.WriteString(`</div></body></html>`)
	return []byte(b.String())
}

const primaryCard = "css-1gatmva e1v1l3u10"

type stubFetcher struct {
	mu       sync.Mutex
	handlers map[string]func() (FetchResponse, error)
	calls    []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{handlers: make(map[string]func() (FetchResponse, error))}
}

func (s *stubFetcher) body(url string, body []byte) {
	s.handlers[url] = func() (FetchResponse, error) {
		return FetchResponse{URL: url, StatusCode: 200, Body: body}, nil
	}
}

func (s *stubFetcher) status(url string, code int) {
	s.handlers[url] = func() (FetchResponse, error) {
		return FetchResponse{URL: url, StatusCode: code}, &FetchError{URL: url, Kind: FetchErrorStatus, StatusCode: code}
	}
}

func (s *stubFetcher) Fetch(_ context.Context, req FetchRequest) (FetchResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req.URL)
	h, ok := s.handlers[req.URL]
	s.mu.Unlock()
	if !ok {
		return FetchResponse{}, &FetchError{URL: req.URL, Kind: FetchErrorStatus, StatusCode: 404}
	}
	return h()
}

func (s *stubFetcher) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fixedIDs struct{ id string }

func (g fixedIDs) NewID() (string, error) { return g.id, nil }
