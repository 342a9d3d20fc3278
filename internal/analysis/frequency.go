// Package analysis turns crawled listings into ranked frequency statistics.
package analysis

import "sort"

// Count is one ranked entry of a FrequencyTable.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// FrequencyTable counts string keys and remembers the order in which each key
// was first seen, which is the tie-breaker when ranking.
type FrequencyTable struct {
	counts map[string]int
	order  []string
}

// NewFrequencyTable returns an empty table.
func NewFrequencyTable() *FrequencyTable {
	return &FrequencyTable{counts: make(map[string]int)}
}

// Add records one occurrence of key.
func (t *FrequencyTable) Add(key string) {
	if _, ok := t.counts[key]; !ok {
		t.order = append(t.order, key)
	}
	t.counts[key]++
}

// Len returns the number of distinct keys.
func (t *FrequencyTable) Len() int {
	return len(t.order)
}

// Get returns the count recorded for key.
func (t *FrequencyTable) Get(key string) int {
	return t.counts[key]
}

// Ranked returns the entries by descending count, ties in first-seen order.
func (t *FrequencyTable) Ranked() []Count {
	out := make([]Count, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, Count{Key: key, Count: t.counts[key]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

// Top returns at most n leading entries of counts.
func Top(counts []Count, n int) []Count {
	if n < 0 || n >= len(counts) {
		return counts
	}
	return counts[:n]
}
