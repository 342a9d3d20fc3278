package crawler

import "github.com/JakeFAU/jobmarket-crawler/internal/model"

// Dedupe keeps the first listing for each normalized link, in first-seen
// order. Links that fail to normalize are compared verbatim. The input slice
// is not modified.
func Dedupe(listings []model.JobListing) []model.JobListing {
	out := make([]model.JobListing, 0, len(listings))
	seen := make(map[string]struct{}, len(listings))
	for _, l := range listings {
		key, err := NormalizeURL(l.Link)
		if err != nil {
			key = l.Link
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}
