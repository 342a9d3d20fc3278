package crawler

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobmarket-crawler/internal/model"
)

func newTestParser(t *testing.T) *PageParser {
	t.Helper()
	p, err := NewPageParser(testProfile(), nil)
	require.NoError(t, err)
	return p
}

func TestParsePageExtractsCardsInOrder(t *testing.T) {
	t.Parallel()

	body := pageHTML(primaryCard,
		card{"Data Scientist", "Acme", "Cairo, Egypt", "/jobs/p/1"},
		card{"ML   Engineer", "Globex", "Giza, Egypt", "https://other.test/jobs/p/2"},
	)
	results, err := newTestParser(t).ParsePage(body, 3)
	require.NoError(t, err)
	require.Len(t, results, 2)

	first := results[0]
	require.True(t, first.OK())
	assert.Equal(t, model.JobListing{
		Title:      "Data Scientist",
		Company:    "Acme",
		Location:   "Cairo, Egypt",
		Link:       testBase + "/jobs/p/1",
		SourcePage: 3,
	}, first.Listing)

	second := results[1]
	require.True(t, second.OK())
	assert.Equal(t, "ML Engineer", second.Listing.Title)
	assert.Equal(t, "https://other.test/jobs/p/2", second.Listing.Link)
}

func TestParsePageCardErrorIsLocal(t *testing.T) {
	t.Parallel()

	body := pageHTML(primaryCard,
		card{"A", "Acme", "Cairo", "/jobs/1"},
		card{title: "B", company: "Acme", location: "Cairo"},
		card{"C", "Acme", "Cairo", "/jobs/3"},
	)
	results, err := newTestParser(t).ParsePage(body, 1)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK())
	assert.True(t, results[2].OK())
	require.False(t, results[1].OK())

	var cardErr *model.CardParseError
	require.True(t, errors.As(results[1].Err, &cardErr))
	assert.Equal(t, 1, cardErr.Index)
	assert.Equal(t, 1, cardErr.Page)
	assert.Equal(t, []string{model.FieldLink}, cardErr.Missing)
}

func TestParsePageUsesFallbackSelector(t *testing.T) {
	t.Parallel()

	body := pageHTML("css-1t7spv1", card{"Analyst", "Initech", "Alexandria", "/jobs/9"})
	results, err := newTestParser(t).ParsePage(body, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Analyst", results[0].Listing.Title)
}

func TestParsePagePrefersPrimarySelector(t *testing.T) {
	t.Parallel()

	body := []byte(cardHTML(primaryCard, card{"Primary", "Acme", "Cairo", "/jobs/1"}) +
		cardHTML("css-1t7spv1", card{"Fallback", "Acme", "Cairo", "/jobs/2"}))
	results, err := newTestParser(t).ParsePage(body, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Primary", results[0].Listing.Title)
}

func TestParsePageNoCards(t *testing.T) {
	t.Parallel()

	results, err := newTestParser(t).ParsePage([]byte(`<html><body><p>nothing</p></body></html>`), 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNewPageParserRejectsBadProfile(t *testing.T) {
	t.Parallel()

	p := testProfile()
	p.CardSelectors = nil
	_, err := NewPageParser(p, nil)
	require.ErrorContains(t, err, "card selector")

	p = testProfile()
	p.BaseURL = "/relative"
	_, err = NewPageParser(p, nil)
	require.ErrorContains(t, err, "absolute")
}

func TestChainFirstMatchWins(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div class="b">B</div><div class="c">C</div>`))
	require.NoError(t, err)

	sel, ok := ChainOf("div.a", "div.c", "div.b").TryExtract(doc.Selection)
	require.True(t, ok)
	assert.Equal(t, "C", sel.Text())

	_, ok = ChainOf("div.a", "").TryExtract(doc.Selection)
	assert.False(t, ok)

	_, ok = Chain{}.TryExtract(doc.Selection)
	assert.False(t, ok)
}
