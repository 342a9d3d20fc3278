package model

import (
	"errors"
	"fmt"
	"strings"
)

// SearchQuery is the caller-supplied input of one pipeline run.
type SearchQuery struct {
	Query    string   `json:"query"`
	Location string   `json:"location"`
	MaxPages int      `json:"max_pages"`
	Skills   []string `json:"skills"`
}

// Validate checks the query against the configured page ceiling.
// A limit <= 0 disables the ceiling.
func (q SearchQuery) Validate(maxPagesLimit int) error {
	if strings.TrimSpace(q.Query) == "" {
		return errors.New("query is required")
	}
	if strings.TrimSpace(q.Location) == "" {
		return errors.New("location is required")
	}
	if q.MaxPages <= 0 {
		return fmt.Errorf("max pages must be > 0, got %d", q.MaxPages)
	}
	if maxPagesLimit > 0 && q.MaxPages > maxPagesLimit {
		return fmt.Errorf("max pages must be <= %d, got %d", maxPagesLimit, q.MaxPages)
	}
	return nil
}

// ParseSkills splits comma-separated skill text, trimming entries and
// dropping empty or repeated ones. Order of first appearance is kept.
func ParseSkills(raw string) []string {
	return NormalizeSkills(strings.Split(raw, ","))
}

// NormalizeSkills trims entries and drops empty or repeated ones.
func NormalizeSkills(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
