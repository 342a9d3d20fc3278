package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobmarket-crawler/internal/model"
)

// TestRankedBreaksTiesByFirstSeen covers {A:3, B:3, C:1} with A seen before B.
func TestRankedBreaksTiesByFirstSeen(t *testing.T) {
	t.Parallel()

	table := NewFrequencyTable()
	for _, key := range []string{"C", "A", "B", "A", "B", "A", "B"} {
		table.Add(key)
	}
	// C was seen first but has the lowest count.
	require.Equal(t, []Count{{"A", 3}, {"B", 3}, {"C", 1}}, table.Ranked())
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, 3, table.Get("B"))
	assert.Equal(t, 0, table.Get("missing"))
}

func TestRankedEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, NewFrequencyTable().Ranked())
}

func TestTop(t *testing.T) {
	t.Parallel()

	counts := []Count{{"a", 3}, {"b", 2}, {"c", 1}}
	assert.Equal(t, counts[:2], Top(counts, 2))
	assert.Equal(t, counts, Top(counts, 10))
	assert.Equal(t, counts, Top(counts, -1))
}

func TestMatchSkills(t *testing.T) {
	t.Parallel()

	t.Run("case insensitive substring", func(t *testing.T) {
		t.Parallel()
		got := MatchSkills("Strong PYTHON programming", []string{"Python"})
		assert.Equal(t, []string{"Python"}, got)
	})

	t.Run("keyword casing preserved", func(t *testing.T) {
		t.Parallel()
		got := MatchSkills("Experience with sql and NLP required", []string{"SQL", "NLP"})
		assert.ElementsMatch(t, []string{"SQL", "NLP"}, got)
	})

	t.Run("repeated mention counted once", func(t *testing.T) {
		t.Parallel()
		got := MatchSkills("SQL, more SQL, always SQL", []string{"SQL", "SQL"})
		assert.Equal(t, []string{"SQL"}, got)
	})

	t.Run("empty description", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, MatchSkills("", []string{"Python"}))
	})
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	listings := []model.JobListing{
		{Title: "Data Scientist", Location: "Cairo", Description: "python and SQL"},
		{Title: "ML Engineer", Location: "Giza", Description: "SQL SQL SQL"},
		{Title: "Data Scientist", Location: "Cairo"},
		{Title: "ML Engineer", Location: "Cairo", Description: "PyTorch, Python"},
	}
	stats := Aggregate(listings, []string{"Python", "SQL", "PyTorch", "Docker"})

	assert.Equal(t, []Count{{"Data Scientist", 2}, {"ML Engineer", 2}}, stats.Titles)
	assert.Equal(t, []Count{{"Python", 2}, {"SQL", 2}, {"PyTorch", 1}}, stats.Skills)
	assert.Equal(t, []Count{{"Cairo", 3}, {"Giza", 1}}, stats.Locations)
}

func TestAggregateNoListings(t *testing.T) {
	t.Parallel()

	stats := Aggregate(nil, []string{"Python"})
	assert.Empty(t, stats.Titles)
	assert.Empty(t, stats.Skills)
	assert.Empty(t, stats.Locations)
}
