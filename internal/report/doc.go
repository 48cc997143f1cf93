// Package report renders crawl reports.
//
// A Report combines the crawler's Status, the state of every registered
// domain and, when a page store is in use, the per-domain totals of stored
// pages. Writers render it in different formats:
//   - SimpleWriter: plain text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: GitHub-flavored Markdown for sharing
//
// Writers implement the Writer interface, so they can be used
// interchangeably and combined with MultiWriter.
package report
