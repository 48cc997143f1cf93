package stats

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	PagesCrawled    int64     `json:"pages_crawled"`
	PagesFailed     int64     `json:"pages_failed"`
	BytesDownloaded int64     `json:"bytes_downloaded"`
	ChangedPages    int64     `json:"changed_pages"`
	RobotsBlocked   int64     `json:"robots_blocked"`
	InvalidURLs     int64     `json:"invalid_urls"`
	Duplicates      int64     `json:"duplicates"`
	CappedURLs      int64     `json:"capped_urls"`
	Retries         int64     `json:"retries"`
	StartedAt       time.Time `json:"started_at"`
}

// Total returns the number of fetched pages, successful or not.
func (s Snapshot) Total() int64 {
	return s.PagesCrawled + s.PagesFailed
}

// SuccessRate returns the share of fetched pages that succeeded, between 0
// and 1. It is 0 before the first page.
func (s Snapshot) SuccessRate() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return float64(s.PagesCrawled) / float64(total)
}

// AverageBytesPerPage returns the mean body size of successful pages.
func (s Snapshot) AverageBytesPerPage() float64 {
	if s.PagesCrawled == 0 {
		return 0
	}
	return float64(s.BytesDownloaded) / float64(s.PagesCrawled)
}

// Statistics holds the crawl counters. It is safe for concurrent use.
type Statistics struct {
	now func() time.Time

	mu sync.Mutex
	s  Snapshot
}

// New creates zeroed Statistics. now is used for the start time; nil means
// time.Now.
func New(now func() time.Time) *Statistics {
	if now == nil {
		now = time.Now
	}
	return &Statistics{now: now, s: Snapshot{StartedAt: now()}}
}

// RecordPage counts one fetched page. Bytes are counted for successful
// pages only.
func (st *Statistics) RecordPage(success bool, bytes int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if success {
		st.s.PagesCrawled++
		st.s.BytesDownloaded += max(bytes, 0)
		return
	}
	st.s.PagesFailed++
}

// RecordChanged counts a page whose content changed.
func (st *Statistics) RecordChanged() {
	st.add(&st.s.ChangedPages, 1)
}

// RecordRobotsBlocked counts a URL skipped because of robots.txt.
func (st *Statistics) RecordRobotsBlocked() {
	st.add(&st.s.RobotsBlocked, 1)
}

// RecordInvalidURL counts a link that failed normalization.
func (st *Statistics) RecordInvalidURL() {
	st.add(&st.s.InvalidURLs, 1)
}

// RecordDuplicate counts a URL that was already known.
func (st *Statistics) RecordDuplicate() {
	st.add(&st.s.Duplicates, 1)
}

// RecordCapped counts a URL dropped by the per-domain page limit.
func (st *Statistics) RecordCapped() {
	st.add(&st.s.CappedURLs, 1)
}

// RecordRetries adds n fetch retries.
func (st *Statistics) RecordRetries(n int) {
	if n > 0 {
		st.add(&st.s.Retries, int64(n))
	}
}

// add increments one counter under the lock.
func (st *Statistics) add(counter *int64, n int64) {
	st.mu.Lock()
	*counter += n
	st.mu.Unlock()
}

// Snapshot returns a consistent copy of all counters.
func (st *Statistics) Snapshot() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// Reset zeroes every counter and restarts the clock in one step.
func (st *Statistics) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = Snapshot{StartedAt: st.now()}
}
