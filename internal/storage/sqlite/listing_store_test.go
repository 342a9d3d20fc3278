package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobmarket-crawler/internal/crawler"
	"github.com/JakeFAU/jobmarket-crawler/internal/model"
)

func sampleResult(runID string) crawler.Result {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return crawler.Result{
		RunID:        runID,
		Query:        model.SearchQuery{Query: "AI", Location: "Egypt", MaxPages: 2},
		StartedAt:    start,
		FinishedAt:   start.Add(time.Minute),
		PagesFetched: 2,
		Listings: []model.JobListing{
			{Title: "ML Engineer", Company: "Acme", Location: "Cairo", Link: "https://site.test/jobs/1", SourcePage: 1, Description: "Python"},
			{Title: "Analyst", Company: "Globex", Location: "Giza", Link: "https://site.test/jobs/2", SourcePage: 2},
		},
	}
}

func TestSaveRunRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewListingStore(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	res := sampleResult("run-1")
	require.NoError(t, store.SaveRun(ctx, res))

	got, err := store.Listings(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, res.Listings, got)

	count, err := store.RunCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	none, err := store.Listings(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveRunDuplicateRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewListingStore(ctx, filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveRun(ctx, sampleResult("run-1")))
	err = store.SaveRun(ctx, sampleResult("run-1"))
	require.ErrorContains(t, err, "insert run run-1")

	got, err := store.Listings(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSaveRunRequiresID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewListingStore(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.Error(t, store.SaveRun(ctx, crawler.Result{}))

	_, err = NewListingStore(ctx, "")
	require.Error(t, err)
}
