package report

import (
	"sort"
	"time"

	"github.com/nao1215/politecrawler/internal/crawler"
	"github.com/nao1215/politecrawler/internal/database"
	"github.com/nao1215/politecrawler/internal/model"
)

// maxFailing is how many failing domains a Summary lists.
const maxFailing = 5

// Report is everything known about one crawl session.
type Report struct {
	// GeneratedAt is when the report was assembled.
	GeneratedAt time.Time `json:"generated_at"`

	// Status is the crawler snapshot.
	Status crawler.Status `json:"status"`

	// Domains holds the state of every registered domain, ordered by name.
	Domains []model.DomainState `json:"domains"`

	// Stored holds per-domain totals from the page store. Empty when no
	// store is in use.
	Stored []database.DomainSummary `json:"stored,omitempty"`

	// Error is the fault that ended the crawl, if any.
	Error string `json:"error,omitempty"`

	// Summary is the condensed view. Writers compute it when nil.
	Summary *Summary `json:"summary,omitempty"`
}

// NewReport builds a report from a crawler snapshot.
func NewReport(status crawler.Status, domains []model.DomainState, stored []database.DomainSummary) *Report {
	r := &Report{
		GeneratedAt: time.Now(),
		Status:      status,
		Domains:     domains,
		Stored:      stored,
	}
	if status.Err != nil {
		r.Error = status.Err.Error()
	}
	r.Summary = NewSummary(r)
	return r
}

// FromCrawler builds a report from the live state of c.
func FromCrawler(c *crawler.Crawler, stored []database.DomainSummary) *Report {
	return NewReport(c.Status(), c.Domains(), stored)
}

// Summary is the condensed view of a Report.
type Summary struct {
	State       string        `json:"state"`
	GeneratedAt time.Time     `json:"generated_at"`
	Uptime      time.Duration `json:"uptime"`
	Error       string        `json:"error,omitempty"`

	PagesCrawled    int64   `json:"pages_crawled"`
	PagesFailed     int64   `json:"pages_failed"`
	BytesDownloaded int64   `json:"bytes_downloaded"`
	ChangedPages    int64   `json:"changed_pages"`
	RobotsBlocked   int64   `json:"robots_blocked"`
	SuccessRate     float64 `json:"success_rate"`
	Pending         int     `json:"pending"`

	DomainsTotal     int `json:"domains_total"`
	DomainsHealthy   int `json:"domains_healthy"`
	DomainsSuspended int `json:"domains_suspended"`
	DomainsDisabled  int `json:"domains_disabled"`

	// Suspended lists the names of suspended domains.
	Suspended []string `json:"suspended,omitempty"`

	// Failing lists the domains with the most errors, worst first.
	Failing []model.DomainState `json:"failing,omitempty"`
}

// NewSummary condenses r.
func NewSummary(r *Report) *Summary {
	snap := r.Status.Stats
	s := &Summary{
		State:           r.Status.State.String(),
		GeneratedAt:     r.GeneratedAt,
		Uptime:          r.Status.Uptime,
		Error:           r.Error,
		PagesCrawled:    snap.PagesCrawled,
		PagesFailed:     snap.PagesFailed,
		BytesDownloaded: snap.BytesDownloaded,
		ChangedPages:    snap.ChangedPages,
		RobotsBlocked:   snap.RobotsBlocked,
		Pending:         r.Status.Pending,
		DomainsTotal:    len(r.Domains),
	}
	if total := snap.PagesCrawled + snap.PagesFailed; total > 0 {
		s.SuccessRate = float64(snap.PagesCrawled) / float64(total)
	}

	var failing []model.DomainState
	for _, d := range r.Domains {
		switch {
		case d.Health == model.HealthSuspended:
			s.DomainsSuspended++
			s.Suspended = append(s.Suspended, d.Name)
		case !d.Enabled:
			s.DomainsDisabled++
		default:
			s.DomainsHealthy++
		}
		if d.TotalErrors > 0 {
			failing = append(failing, d)
		}
	}

	sort.SliceStable(failing, func(i, j int) bool {
		return failing[i].TotalErrors > failing[j].TotalErrors
	})
	if len(failing) > maxFailing {
		failing = failing[:maxFailing]
	}
	s.Failing = failing
	return s
}

// HasFailures reports whether any fetch failed.
func (s *Summary) HasFailures() bool {
	return s.PagesFailed > 0
}
