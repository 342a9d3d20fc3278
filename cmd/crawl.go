package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobmarket-crawler/internal/app"
	"github.com/JakeFAU/jobmarket-crawler/internal/model"
	"github.com/JakeFAU/jobmarket-crawler/internal/report"
)

const defaultPreviewLines = 30

type crawlOptions struct {
	query        string
	location     string
	pages        int
	skills       string
	format       string
	output       string
	previewLines int
}

// newCrawlCmd creates the 'crawl' subcommand, which runs one search and
// prints or saves the report.
func newCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one search and reports on the listings found",
		Long: `Fetches up to --pages result pages for --query in --location, extracts
the listings, fetches descriptions for the leading ones and renders the
report. Without --output the report is written to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.query, "query", "q", "", "job title or keyword to search for")
	flags.StringVarP(&opts.location, "location", "l", "", "location to search in")
	flags.IntVarP(&opts.pages, "pages", "p", 0, "result pages to fetch (default crawl.default_pages)")
	flags.StringVar(&opts.skills, "skills", "", "comma-separated skill keywords (default crawl.default_skills)")
	flags.StringVarP(&opts.format, "format", "f", string(report.FormatMarkdown), "output format: markdown, csv, json or yaml")
	flags.StringVarP(&opts.output, "output", "o", "", "write the report to this file instead of stdout")
	flags.IntVar(&opts.previewLines, "preview-lines", defaultPreviewLines,
		"lines of the markdown report echoed to stdout when --output is set (0 disables)")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("location")
	return cmd
}

func runCrawl(cmd *cobra.Command, opts *crawlOptions) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	var skills []string
	if cmd.Flags().Changed("skills") {
		skills = model.ParseSkills(opts.skills)
	}
	query := e.app.Query(opts.query, opts.location, opts.pages, skills)

	out, err := e.app.Analyze(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	res := out.Result

	if opts.output == "" {
		if err := report.Write(cmd.OutOrStdout(), format, res); err != nil {
			return err
		}
	} else {
		if err := writeReportFile(opts.output, format, out); err != nil {
			return err
		}
		e.logger.Info("report written", zap.String("path", opts.output), zap.String("format", string(format)))
		if format == report.FormatMarkdown && opts.previewLines > 0 {
			md, err := report.Markdown(res)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Preview(md, opts.previewLines))
		}
	}

	printSummary(cmd.ErrOrStderr(), out)
	return nil
}

func writeReportFile(path string, format report.Format, out app.Outcome) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()
	return report.Write(f, format, out.Result)
}

// printSummary reports run counters, warnings and exported artifacts.
func printSummary(w io.Writer, out app.Outcome) {
	res := out.Result
	fmt.Fprintf(w, "run %s: %d listings from %d page(s), %d descriptions, %d cards rejected\n",
		res.RunID, len(res.Listings), res.PagesFetched, res.DescriptionsFetched, res.CardsRejected)
	if res.StoppedEarly {
		fmt.Fprintln(w, "stopped early")
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}

	names := make([]string, 0, len(out.Artifacts))
	for name := range out.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "exported %s: %s\n", name, out.Artifacts[name])
	}
	if out.ExportErr != nil {
		fmt.Fprintf(w, "export failed: %v\n", out.ExportErr)
	}
}
