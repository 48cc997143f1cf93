package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/politecrawler/internal/model"
)

// timeLayout is the timestamp format of text reports.
const timeLayout = "2006-01-02 15:04:05 MST"

// SimpleWriter outputs human-readable text reports for terminal display.
// It uses plain ASCII formatting so the output can be piped to files.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections without entries are shown.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *Report) (int, error) {
	var sb strings.Builder

	summary := summaryOf(report)
	w.writeHeader(&sb, summary)
	w.writeSummary(&sb, summary)
	w.writeDomains(&sb, report.Domains)
	w.writeStored(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs only the header and totals.
func (w *SimpleWriter) WriteSummary(summary *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeSummary(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// section writes a section title between rules.
func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with session information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        POLITECRAWLER REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Generated:      %s\n", s.GeneratedAt.Format(timeLayout))
	fmt.Fprintf(sb, "Uptime:         %s\n", s.Uptime.Round(time.Second))
	if s.Error != "" {
		fmt.Fprintf(sb, "State:          %s - %s\n", strings.ToUpper(s.State), s.Error)
	} else {
		fmt.Fprintf(sb, "State:          %s\n", strings.ToUpper(s.State))
	}
	sb.WriteString("\n")
}

// writeSummary writes the totals section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, s *Summary) {
	section(sb, "SUMMARY")

	fmt.Fprintf(sb, "  PAGES CRAWLED:  %d\n", s.PagesCrawled)
	fmt.Fprintf(sb, "  PAGES FAILED:   %d\n", s.PagesFailed)
	fmt.Fprintf(sb, "  SUCCESS RATE:   %.1f%%\n", s.SuccessRate*100)
	fmt.Fprintf(sb, "  DOWNLOADED:     %s\n", humanize.Bytes(uint64(max(s.BytesDownloaded, 0))))
	fmt.Fprintf(sb, "  CHANGED PAGES:  %d\n", s.ChangedPages)
	fmt.Fprintf(sb, "  ROBOTS BLOCKED: %d\n", s.RobotsBlocked)
	fmt.Fprintf(sb, "  PENDING URLS:   %d\n", s.Pending)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  DOMAINS:        %d (%d healthy, %d suspended, %d disabled)\n",
		s.DomainsTotal, s.DomainsHealthy, s.DomainsSuspended, s.DomainsDisabled)
	for _, name := range s.Suspended {
		fmt.Fprintf(sb, "  [!] %s is suspended\n", name)
	}
	sb.WriteString("\n")
}

// writeDomains writes one block per registered domain.
func (w *SimpleWriter) writeDomains(sb *strings.Builder, domains []model.DomainState) {
	if len(domains) == 0 && !w.showEmpty {
		return
	}

	section(sb, "DOMAINS")

	if len(domains) == 0 {
		sb.WriteString("  No domains registered\n\n")
		return
	}

	for _, d := range domains {
		fmt.Fprintf(sb, "[%s] %s\n", healthIndicator(d), d.Name)
		fmt.Fprintf(sb, "  Pages:    %d crawled, %d failed (%.1f%%)\n",
			d.PagesCrawled, d.PagesFailed, d.SuccessRate()*100)
		fmt.Fprintf(sb, "  Pending:  %d\n", d.Pending)
		if d.Dropped > 0 {
			fmt.Fprintf(sb, "  Dropped:  %d\n", d.Dropped)
		}
		if d.Health == model.HealthSuspended {
			fmt.Fprintf(sb, "  Suspended since %s after %d consecutive errors\n",
				d.SuspendedAt.Format(timeLayout), d.ConsecutiveErrors)
		}
		if w.verbose {
			fmt.Fprintf(sb, "  Priority: %d\n", d.Priority)
			fmt.Fprintf(sb, "  Delay:    %s\n", d.CrawlDelay)
			fmt.Fprintf(sb, "  Bytes:    %s\n", humanize.Bytes(uint64(max(d.BytesDownloaded, 0))))
			if d.LastStatusCode != 0 {
				fmt.Fprintf(sb, "  Last:     HTTP %d at %s\n", d.LastStatusCode, d.LastVisit.Format(timeLayout))
			}
			if !d.RobotsFetchedAt.IsZero() {
				fmt.Fprintf(sb, "  Robots:   fetched %s\n", d.RobotsFetchedAt.Format(timeLayout))
			}
		}
	}
	sb.WriteString("\n")
}

// writeStored writes the page store totals.
func (w *SimpleWriter) writeStored(sb *strings.Builder, report *Report) {
	if len(report.Stored) == 0 && !w.showEmpty {
		return
	}

	section(sb, "STORED PAGES")

	if len(report.Stored) == 0 {
		sb.WriteString("  No pages stored\n\n")
		return
	}
	for _, s := range report.Stored {
		fmt.Fprintf(sb, "  %-30s %6d pages  %6d changed  %10s  last %s\n",
			s.Domain, s.Pages, s.ChangedPages,
			humanize.Bytes(uint64(max(s.Bytes, 0))),
			humanize.Time(s.LastCrawled))
	}
	sb.WriteString("\n")
}

// healthIndicator returns a visual indicator for the domain state.
func healthIndicator(d model.DomainState) string {
	switch {
	case d.Health == model.HealthSuspended:
		return "!!"
	case !d.Enabled:
		return "--"
	case d.ConsecutiveErrors > 0:
		return "!"
	default:
		return "ok"
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by politecrawler\n")
	sb.WriteString("https://github.com/nao1215/politecrawler\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
