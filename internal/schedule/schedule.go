package schedule

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultInterval is the default time between two visits of a URL.
const DefaultInterval = 7 * 24 * time.Hour

// Scheduler tracks last crawl times. It is safe for concurrent use.
type Scheduler struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.RWMutex
	last map[string]time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the recrawl interval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a Scheduler.
func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		interval: DefaultInterval,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.interval <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, s.interval)
	}
	return s, nil
}

// Interval returns the recrawl interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// ShouldRecrawl reports whether url was never crawled or its last crawl is
// at least one interval old.
func (s *Scheduler) ShouldRecrawl(url string) bool {
	s.mu.RLock()
	at, ok := s.last[url]
	s.mu.RUnlock()
	if !ok {
		return true
	}
	return s.now().Sub(at) >= s.interval
}

// MarkCrawled records that url was crawled now.
func (s *Scheduler) MarkCrawled(url string) {
	s.Restore(url, s.now())
}

// Restore records a crawl of url at a past time, e.g. loaded from the page
// store. An older time never replaces a newer one.
func (s *Scheduler) Restore(url string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.last[url]; ok && prev.After(at) {
		return
	}
	s.last[url] = at
}

// LastCrawled returns the last crawl time of url.
func (s *Scheduler) LastCrawled(url string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.last[url]
	return at, ok
}

// Due returns the known URLs whose interval has elapsed, oldest first.
func (s *Scheduler) Due() []string {
	now := s.now()

	s.mu.RLock()
	type item struct {
		url string
		at  time.Time
	}
	var due []item
	for url, at := range s.last {
		if now.Sub(at) >= s.interval {
			due = append(due, item{url: url, at: at})
		}
	}
	s.mu.RUnlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].url < due[j].url
		}
		return due[i].at.Before(due[j].at)
	})
	urls := make([]string, len(due))
	for i, d := range due {
		urls[i] = d.url
	}
	return urls
}

// Len returns the number of tracked URLs.
func (s *Scheduler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.last)
}
