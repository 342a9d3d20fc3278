package analysis

import (
	"strings"

	"github.com/JakeFAU/jobmarket-crawler/internal/model"
)

// Stats holds the three ranked tables computed over one result set.
type Stats struct {
	Titles    []Count `json:"titles"`
	Skills    []Count `json:"skills"`
	Locations []Count `json:"locations"`
}

// MatchSkills returns the keywords found in description. Matching is a
// case-insensitive substring test; the returned keywords keep their configured
// casing and appear at most once each, in keyword order.
func MatchSkills(description string, skills []string) []string {
	if description == "" || len(skills) == 0 {
		return nil
	}
	desc := strings.ToLower(description)
	var found []string
	seen := make(map[string]struct{}, len(skills))
	for _, skill := range skills {
		if skill == "" {
			continue
		}
		if _, dup := seen[skill]; dup {
			continue
		}
		if strings.Contains(desc, strings.ToLower(skill)) {
			seen[skill] = struct{}{}
			found = append(found, skill)
		}
	}
	return found
}

// Aggregate counts titles, matched skills and locations across listings.
// A listing without a description contributes no skills.
func Aggregate(listings []model.JobListing, skills []string) Stats {
	titles := NewFrequencyTable()
	skillTable := NewFrequencyTable()
	locations := NewFrequencyTable()
	for _, l := range listings {
		titles.Add(l.Title)
		locations.Add(l.Location)
		for _, skill := range MatchSkills(l.Description, skills) {
			skillTable.Add(skill)
		}
	}
	return Stats{
		Titles:    titles.Ranked(),
		Skills:    skillTable.Ranked(),
		Locations: locations.Ranked(),
	}
}
