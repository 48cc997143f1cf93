package model

import "time"

// PageRecord is the extracted result of one crawled page.
// It is produced by the crawler after a successful fetch and handed to the
// storage sink. The record is self-contained; it holds no references back
// into crawler state.
type PageRecord struct {
	// URL is the canonical URL of the page.
	URL string `json:"url"`

	// Domain is the registered crawl domain the page belongs to.
	Domain string `json:"domain"`

	// Depth is the link distance from the seed URL.
	Depth int `json:"depth"`

	// StatusCode is the HTTP status of the final response.
	StatusCode int `json:"status_code"`

	// Title is taken from <title>, og:title, or the first <h1>.
	Title string `json:"title,omitempty"`

	// Description is taken from the meta description, og:description, or
	// the first paragraph.
	Description string `json:"description,omitempty"`

	// Keywords are the deduplicated meta keywords.
	Keywords []string `json:"keywords,omitempty"`

	// Text is the visible text of the page with whitespace collapsed.
	Text string `json:"text,omitempty"`

	// Links are the canonical outbound links found on the page.
	Links []string `json:"links,omitempty"`

	// PaginationLinks is the subset of Links that navigate a listing.
	PaginationLinks []string `json:"pagination_links,omitempty"`

	// ContentHash is the hex digest of the response body used for change
	// detection.
	ContentHash string `json:"content_hash"`

	// Changed reports whether the content differs from the previous visit.
	// The first visit is always a change.
	Changed bool `json:"changed"`

	// ContentLength is the number of body bytes downloaded.
	ContentLength int64 `json:"content_length"`

	// CrawledAt is when the page was fetched.
	CrawledAt time.Time `json:"crawled_at"`
}

// MaxTextSize is the maximum number of bytes of extracted text kept on a
// PageRecord.
const MaxTextSize = 512 * 1024 // 512 KB

// TruncateText enforces MaxTextSize on Text without splitting a UTF-8
// sequence.
func (p *PageRecord) TruncateText() {
	if len(p.Text) <= MaxTextSize {
		return
	}
	cut := MaxTextSize
	for cut > 0 && !isRuneStart(p.Text[cut]) {
		cut--
	}
	p.Text = p.Text[:cut]
}

// isRuneStart reports whether b begins a UTF-8 sequence.
func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
