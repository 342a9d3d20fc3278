package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/jobmarket-crawler/internal/analysis"
	"github.com/JakeFAU/jobmarket-crawler/internal/crawler"
	"github.com/JakeFAU/jobmarket-crawler/internal/model"
)

// Format names an output rendering.
type Format string

// Supported formats.
const (
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatMarkdown, FormatCSV, FormatJSON, FormatYAML:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown format %q (want markdown, csv, json or yaml)", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Extension returns the file extension of f, without the dot.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

var csvHeader = []string{"Job Title", "Company", "Location", "Link", "Page", "Description"}

// CSV writes one row per listing.
func CSV(w io.Writer, listings []model.JobListing) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, l := range listings {
		row := []string{l.Title, l.Company, l.Location, l.Link, strconv.Itoa(l.SourcePage), l.Description}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// JSON writes res as indented JSON.
func JSON(w io.Writer, res crawler.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// yamlResult mirrors crawler.Result with yaml field names.
type yamlResult struct {
	RunID               string             `yaml:"run_id"`
	Query               string             `yaml:"query"`
	Location            string             `yaml:"location"`
	MaxPages            int                `yaml:"max_pages"`
	Skills              []string           `yaml:"skills,omitempty"`
	StartedAt           string             `yaml:"started_at"`
	FinishedAt          string             `yaml:"finished_at"`
	PagesFetched        int                `yaml:"pages_fetched"`
	CardsRejected       int                `yaml:"cards_rejected"`
	DescriptionsFetched int                `yaml:"descriptions_fetched"`
	StoppedEarly        bool               `yaml:"stopped_early"`
	Titles              []yamlCount        `yaml:"titles"`
	SkillCounts         []yamlCount        `yaml:"skill_counts"`
	Locations           []yamlCount        `yaml:"locations"`
	Listings            []model.JobListing `yaml:"listings"`
	Warnings            []string           `yaml:"warnings,omitempty"`
}

type yamlCount struct {
	Key   string `yaml:"key"`
	Count int    `yaml:"count"`
}

// YAML writes res as a YAML document.
func YAML(w io.Writer, res crawler.Result) error {
	doc := yamlResult{
		RunID:               res.RunID,
		Query:               res.Query.Query,
		Location:            res.Query.Location,
		MaxPages:            res.Query.MaxPages,
		Skills:              res.Query.Skills,
		StartedAt:           res.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:          res.FinishedAt.UTC().Format(time.RFC3339),
		PagesFetched:        res.PagesFetched,
		CardsRejected:       res.CardsRejected,
		DescriptionsFetched: res.DescriptionsFetched,
		StoppedEarly:        res.StoppedEarly,
		Titles:              toYAMLCounts(res.Stats.Titles),
		SkillCounts:         toYAMLCounts(res.Stats.Skills),
		Locations:           toYAMLCounts(res.Stats.Locations),
		Listings:            res.Listings,
		Warnings:            res.Warnings,
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close yaml encoder: %w", err)
	}
	return nil
}

func toYAMLCounts(counts []analysis.Count) []yamlCount {
	out := make([]yamlCount, len(counts))
	for i, c := range counts {
		out[i] = yamlCount{Key: c.Key, Count: c.Count}
	}
	return out
}

// Write renders res in format f.
func Write(w io.Writer, f Format, res crawler.Result) error {
	switch f {
	case FormatCSV:
		return CSV(w, res.Listings)
	case FormatJSON:
		return JSON(w, res)
	case FormatYAML:
		return YAML(w, res)
	default:
		md, err := Markdown(res)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, md); err != nil {
			return fmt.Errorf("write markdown: %w", err)
		}
		return nil
	}
}
