// Package model holds the records that flow through the crawl pipeline.
package model

import "strings"

// JobListing is the structured record produced from one listing card.
// Two listings with the same normalized Link are the same entity.
type JobListing struct {
	Title       string `json:"title" yaml:"title"`
	Company     string `json:"company" yaml:"company"`
	Location    string `json:"location" yaml:"location"`
	Link        string `json:"link" yaml:"link"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"` // empty when unavailable
	SourcePage  int    `json:"source_page" yaml:"source_page"`                     // 1-based
}

// Validate reports every required field that is blank.
func (j JobListing) Validate() error {
	var missing []string
	if strings.TrimSpace(j.Title) == "" {
		missing = append(missing, FieldTitle)
	}
	if strings.TrimSpace(j.Company) == "" {
		missing = append(missing, FieldCompany)
	}
	if strings.TrimSpace(j.Location) == "" {
		missing = append(missing, FieldLocation)
	}
	if strings.TrimSpace(j.Link) == "" {
		missing = append(missing, FieldLink)
	}
	if len(missing) == 0 {
		return nil
	}
	return &CardParseError{Page: j.SourcePage, Missing: missing}
}

// Required listing fields, as named in CardParseError.Missing.
const (
	FieldTitle    = "title"
	FieldCompany  = "company"
	FieldLocation = "location"
	FieldLink     = "link"
)

// CardResult is either a valid listing or the reason the card was discarded.
type CardResult struct {
	Listing JobListing
	Err     error
}

// OK reports whether the card produced a valid listing.
func (r CardResult) OK() bool {
	return r.Err == nil
}
