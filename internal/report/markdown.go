package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/politecrawler/internal/model"
)

// maxChartSlices caps the number of domains in the pages pie chart.
const maxChartSlices = 8

// MarkdownWriter outputs reports as GitHub-flavored Markdown using
// nao1215/markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *Report) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := summaryOf(report)

	w.writeHeader(md, summary)
	w.writeSummary(md, summary)
	w.writePieChart(md, report.Domains)
	w.writeDomains(md, report.Domains)
	w.writeStored(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeSummary(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with session information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Generated", s.GeneratedAt.Format(timeLayout)},
			{"Uptime", s.Uptime.Round(time.Second).String()},
			{"State", w.stateText(s)},
			{"Domains", strconv.Itoa(s.DomainsTotal)},
		},
	})
	md.PlainText("")
}

// stateText returns the state cell of the header.
func (w *MarkdownWriter) stateText(s *Summary) string {
	if s.Error != "" {
		return "❌ " + s.State + " - " + s.Error
	}
	switch s.State {
	case "running":
		return "🟢 running"
	case "paused":
		return "⏸️ paused"
	default:
		return "✅ " + s.State
	}
}

// writeSummary writes the totals table and an alert for the session.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s *Summary) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Pages crawled", strconv.FormatInt(s.PagesCrawled, 10)},
			{"Pages failed", strconv.FormatInt(s.PagesFailed, 10)},
			{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate*100)},
			{"Downloaded", humanize.Bytes(uint64(max(s.BytesDownloaded, 0)))},
			{"Changed pages", strconv.FormatInt(s.ChangedPages, 10)},
			{"Blocked by robots.txt", strconv.FormatInt(s.RobotsBlocked, 10)},
			{"Pending URLs", strconv.Itoa(s.Pending)},
			{"Suspended domains", strconv.Itoa(s.DomainsSuspended)},
		},
	})
	md.PlainText("")

	w.writeAlert(md, s)
}

// writeAlert writes an alert matching the health of the session.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *Summary) {
	switch {
	case s.Error != "":
		md.Cautionf("The crawl ended with an error: %s", s.Error)
	case s.DomainsSuspended > 0:
		md.Warningf(
			"%d domain(s) suspended after repeated failures. Use a domain reset to resume them.",
			s.DomainsSuspended,
		)
	case s.HasFailures():
		md.Note(fmt.Sprintf("%d page(s) failed to download.", s.PagesFailed))
	default:
		md.Tip("All domains are healthy.")
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of crawled pages per domain.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, domains []model.DomainState) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages Crawled per Domain"),
		piechart.WithShowData(true),
	)

	slices := 0
	var other int64
	for _, d := range domains {
		if d.PagesCrawled == 0 {
			continue
		}
		if slices == maxChartSlices {
			other += d.PagesCrawled
			continue
		}
		chart.LabelAndIntValue(d.Name, uint64(d.PagesCrawled))
		slices++
	}
	if slices == 0 {
		return
	}
	if other > 0 {
		chart.LabelAndIntValue("other", uint64(other))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeDomains writes the domain table and details for suspended domains.
func (w *MarkdownWriter) writeDomains(md *markdown.Markdown, domains []model.DomainState) {
	md.H2("Domains")
	md.PlainText("")

	if len(domains) == 0 {
		md.PlainText("No domains registered.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(domains))
	for i, d := range domains {
		rows[i] = []string{
			"`" + d.Name + "`",
			healthText(d),
			strconv.FormatInt(d.PagesCrawled, 10),
			strconv.FormatInt(d.PagesFailed, 10),
			fmt.Sprintf("%.1f%%", d.SuccessRate()*100),
			strconv.Itoa(d.Pending),
			d.CrawlDelay.String(),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Domain", "Health", "Crawled", "Failed", "Success", "Pending", "Delay"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, d := range domains {
		if d.Health != model.HealthSuspended {
			continue
		}
		md.Details(d.Name, fmt.Sprintf(
			"Suspended at %s after %d consecutive errors (%d in total). Last HTTP status: %d.",
			d.SuspendedAt.Format(timeLayout), d.ConsecutiveErrors, d.TotalErrors, d.LastStatusCode,
		))
	}
	md.PlainText("")
}

// healthText returns the health cell of the domain table.
func healthText(d model.DomainState) string {
	switch {
	case d.Health == model.HealthSuspended:
		return "🔴 suspended"
	case !d.Enabled:
		return "⚪ disabled"
	case d.ConsecutiveErrors > 0:
		return "🟡 erroring"
	default:
		return "🟢 healthy"
	}
}

// writeStored writes the page store totals.
func (w *MarkdownWriter) writeStored(md *markdown.Markdown, report *Report) {
	if len(report.Stored) == 0 {
		return
	}

	md.H2("Stored Pages")
	md.PlainText("")

	rows := make([][]string, len(report.Stored))
	for i, s := range report.Stored {
		rows[i] = []string{
			"`" + s.Domain + "`",
			strconv.Itoa(s.Pages),
			strconv.Itoa(s.ChangedPages),
			humanize.Bytes(uint64(max(s.Bytes, 0))),
			s.LastCrawled.Format(timeLayout),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Domain", "Pages", "Changed", "Size", "Last Crawled"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [politecrawler](https://github.com/nao1215/politecrawler)*")
}
