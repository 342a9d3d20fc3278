// Package report renders pipeline results as markdown, CSV, JSON and YAML.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/JakeFAU/jobmarket-crawler/internal/analysis"
	"github.com/JakeFAU/jobmarket-crawler/internal/crawler"
)

// Section sizes of the markdown report.
const (
	TopRoles       = 10
	TopSkills      = 15
	SummarySkills  = 5
	truncateMarker = "... (Report truncated for preview) ..."
)

var markdownTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"date": func(t time.Time) string { return t.UTC().Format("January 2006") },
	"keys": joinKeys,
}).Parse(`# Job Market Report: {{.Query.Query}} in {{.Query.Location}} ({{date .FinishedAt}})

{{len .Listings}} listings from {{.PagesFetched}} page(s){{if .StoppedEarly}}, stopped early{{end}}. Run {{.RunID}}.

## Top Roles
{{range $i, $c := .Roles}}{{inc $i}}. {{$c.Key}} ({{$c.Count}} postings)
{{else}}No data.
{{end}}
## Key Skills Required
{{if .Skills}}{{keys .Skills}}{{else}}No data.{{end}}

## Location Distribution
{{range .Stats.Locations}}- {{.Key}}: {{.Count}} jobs
{{else}}No data.
{{end}}
## Trends & Observations
{{.Summary}}
{{if .Warnings}}
## Warnings
{{range .Warnings}}- {{.}}
{{end}}{{end}}`))

type markdownView struct {
	crawler.Result
	Roles   []analysis.Count
	Skills  []analysis.Count
	Summary string
}

// Markdown renders the human-readable report for res.
func Markdown(res crawler.Result) (string, error) {
	view := markdownView{
		Result:  res,
		Roles:   analysis.Top(res.Stats.Titles, TopRoles),
		Skills:  analysis.Top(res.Stats.Skills, TopSkills),
		Summary: TrendsSummary(res.Stats),
	}
	var buf bytes.Buffer
	if err := markdownTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// TrendsSummary names the most demanded role and the leading skills.
func TrendsSummary(stats analysis.Stats) string {
	if len(stats.Titles) == 0 {
		return "No listings were collected, so no trends could be derived."
	}
	top := stats.Titles[0]
	var b strings.Builder
	fmt.Fprintf(&b, "The role '%s' is currently the most demanded position, with %d job postings.", top.Key, top.Count)
	if skills := analysis.Top(stats.Skills, SummarySkills); len(skills) > 0 {
		fmt.Fprintf(&b, " Key skills in demand include %s.", joinKeys(skills))
	} else {
		b.WriteString(" None of the configured skills appeared in the fetched descriptions.")
	}
	if len(stats.Locations) > 0 {
		fmt.Fprintf(&b, " Most postings are located in %s.", stats.Locations[0].Key)
	}
	return b.String()
}

// Preview returns at most maxLines lines of md, followed by a marker when
// lines were cut. maxLines <= 0 returns md unchanged.
func Preview(md string, maxLines int) string {
	if maxLines <= 0 {
		return md
	}
	lines := strings.Split(md, "\n")
	if len(lines) <= maxLines {
		return md
	}
	return strings.Join(lines[:maxLines], "\n") + "\n\n" + truncateMarker + "\n"
}

func joinKeys(counts []analysis.Count) string {
	keys := make([]string, len(counts))
	for i, c := range counts {
		keys[i] = c.Key
	}
	return strings.Join(keys, ", ")
}
