package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/politecrawler/internal/config"
	"github.com/nao1215/politecrawler/internal/database"
	"github.com/nao1215/politecrawler/internal/model"
	"github.com/nao1215/politecrawler/internal/urlproc"
)

// storeStatus is the JSON form of the status command output.
type storeStatus struct {
	Database string                   `json:"database"`
	Pages    int                      `json:"pages"`
	Domains  []database.DomainSummary `json:"domains"`
}

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [domain...]",
		Short: "Show pages stored by earlier crawls",
		Long: `Status summarizes the page database written by the crawl command.

Without arguments every stored domain is listed. Arguments restrict the
output to the given domains. With --url the stored record of one page is
printed instead.

Examples:
  # Summary of all domains
  politecrawler status

  # Summary of one domain as JSON
  politecrawler status --json example.se

  # Stored record of one page
  politecrawler status --url https://example.se/about`,
		Args: cobra.ArbitraryArgs,
		RunE: runStatus,
	}

	cmd.Flags().String("db-dir", "",
		"Directory of the page database (default: XDG data directory)")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	cmd.Flags().StringP("url", "u", "", "Show the stored record of this URL")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, args []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	pageURL, err := cmd.Flags().GetString("url")
	if err != nil {
		return err
	}

	store, err := database.Open(dbDir, database.Options{CreateIfNotExists: false})
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if pageURL != "" {
		canonical, err := urlproc.Normalize(pageURL)
		if err != nil {
			return fmt.Errorf("invalid url %q: %w", pageURL, err)
		}
		page, err := store.GetPage(ctx, canonical.String())
		if err != nil {
			return err
		}
		if page == nil {
			return fmt.Errorf("page not stored: %s", canonical)
		}
		if asJSON {
			return writeJSON(out, page)
		}
		return writePage(out, page)
	}

	summaries, err := store.DomainSummaries(ctx)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		summaries, err = filterSummaries(summaries, args)
		if err != nil {
			return err
		}
	}
	total, err := store.CountPages(ctx)
	if err != nil {
		return err
	}

	status := storeStatus{Database: store.Path(), Pages: total, Domains: summaries}
	if asJSON {
		return writeJSON(out, status)
	}
	return writeStatusTable(out, status)
}

// filterSummaries keeps the summaries of the named domains. Names are
// normalized the way the crawler registers domains.
func filterSummaries(summaries []database.DomainSummary, names []string) ([]database.DomainSummary, error) {
	wanted := make([]string, 0, len(names))
	for _, name := range names {
		u, err := urlproc.Normalize("http://" + name)
		if err != nil {
			return nil, fmt.Errorf("invalid domain %q: %w", name, err)
		}
		wanted = append(wanted, u.Host())
	}

	var kept []database.DomainSummary
	for _, s := range summaries {
		if slices.Contains(wanted, s.Domain) {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return nil, errors.New("no stored pages for the given domains")
	}
	return kept, nil
}

// writeJSON writes v as indented JSON.
func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeStatusTable writes the store summary as an aligned table.
func writeStatusTable(out io.Writer, status storeStatus) error {
	fmt.Fprintf(out, "Database: %s\n", status.Database)
	fmt.Fprintf(out, "Pages:    %d\n\n", status.Pages)

	if len(status.Domains) == 0 {
		fmt.Fprintln(out, "No pages stored yet.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tPAGES\tCHANGED\tSIZE\tLAST CRAWLED")
	for _, s := range status.Domains {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
			s.Domain, s.Pages, s.ChangedPages,
			humanize.Bytes(uint64(max(s.Bytes, 0))),
			humanize.Time(s.LastCrawled),
		)
	}
	return tw.Flush()
}

// writePage writes the stored record of one page.
func writePage(out io.Writer, page *model.PageRecord) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "URL:\t%s\n", page.URL)
	fmt.Fprintf(tw, "Domain:\t%s\n", page.Domain)
	fmt.Fprintf(tw, "Depth:\t%d\n", page.Depth)
	fmt.Fprintf(tw, "Status:\t%d\n", page.StatusCode)
	fmt.Fprintf(tw, "Title:\t%s\n", page.Title)
	fmt.Fprintf(tw, "Description:\t%s\n", page.Description)
	fmt.Fprintf(tw, "Links:\t%d (%d pagination)\n", len(page.Links), len(page.PaginationLinks))
	fmt.Fprintf(tw, "Size:\t%s\n", humanize.Bytes(uint64(max(page.ContentLength, 0))))
	fmt.Fprintf(tw, "Changed:\t%t\n", page.Changed)
	fmt.Fprintf(tw, "Hash:\t%s\n", page.ContentHash)
	fmt.Fprintf(tw, "Crawled:\t%s\n", page.CrawledAt.Format("2006-01-02 15:04:05 MST"))
	return tw.Flush()
}
