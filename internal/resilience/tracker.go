package resilience

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/politecrawler/internal/model"
)

// DefaultThreshold is the default number of consecutive failures that
// suspends a domain.
const DefaultThreshold = 5

// Snapshot is the failure state of one domain.
type Snapshot struct {
	Health            model.Health
	ConsecutiveErrors int
	TotalErrors       int
	SuspendedAt       time.Time
	// ResumesAt is zero when the suspension only ends with Reset.
	ResumesAt time.Time
}

// domainRecord is the mutable state behind a Snapshot.
type domainRecord struct {
	consecutive int
	total       int
	suspended   bool
	suspendedAt time.Time
}

// Tracker records failures per domain. It is safe for concurrent use.
type Tracker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	domains map[string]*domainRecord
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithThreshold sets the number of consecutive failures that suspends a
// domain.
func WithThreshold(n int) Option {
	return func(t *Tracker) {
		t.threshold = n
	}
}

// WithCooldown lifts a suspension automatically after d. Zero keeps
// domains suspended until Reset.
func WithCooldown(d time.Duration) Option {
	return func(t *Tracker) {
		t.cooldown = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = l
	}
}

// New creates a Tracker.
func New(opts ...Option) (*Tracker, error) {
	t := &Tracker{
		threshold: DefaultThreshold,
		now:       time.Now,
		logger:    slog.Default(),
		domains:   make(map[string]*domainRecord),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.threshold < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidThreshold, t.threshold)
	}
	return t, nil
}

// recordLocked returns the record of domain, creating it.
func (t *Tracker) recordLocked(domain string) *domainRecord {
	domain = strings.ToLower(domain)
	r, ok := t.domains[domain]
	if !ok {
		r = &domainRecord{}
		t.domains[domain] = r
	}
	return r
}

// expireLocked lifts a suspension whose cooldown has elapsed.
func (t *Tracker) expireLocked(domain string, r *domainRecord) {
	if !r.suspended || t.cooldown <= 0 {
		return
	}
	if t.now().Sub(r.suspendedAt) < t.cooldown {
		return
	}
	r.suspended = false
	r.suspendedAt = time.Time{}
	r.consecutive = 0
	t.logger.Info("domain suspension expired", "domain", domain)
}

// RecordFailure counts a failed fetch for domain and returns the resulting
// health. The domain is suspended when its consecutive failures reach the
// threshold.
func (t *Tracker) RecordFailure(domain string) model.Health {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.recordLocked(domain)
	t.expireLocked(domain, r)
	r.consecutive++
	r.total++
	if !r.suspended && r.consecutive >= t.threshold {
		r.suspended = true
		r.suspendedAt = t.now()
		t.logger.Warn("domain suspended",
			"domain", domain,
			"consecutive_errors", r.consecutive,
			"total_errors", r.total,
		)
	}
	return health(r)
}

// RecordSuccess clears the consecutive failure count of domain. It does not
// lift a suspension.
func (t *Tracker) RecordSuccess(domain string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recordLocked(domain).consecutive = 0
}

// IsSuspended reports whether domain is suspended.
func (t *Tracker) IsSuspended(domain string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.domains[strings.ToLower(domain)]
	if !ok {
		return false
	}
	t.expireLocked(domain, r)
	return r.suspended
}

// Check returns ErrSuspended when domain is suspended.
func (t *Tracker) Check(domain string) error {
	if t.IsSuspended(domain) {
		return fmt.Errorf("%w: %s", ErrSuspended, domain)
	}
	return nil
}

// Reset lifts the suspension of domain and clears its consecutive
// failures. The total error count is kept.
func (t *Tracker) Reset(domain string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.domains[strings.ToLower(domain)]
	if !ok {
		return
	}
	r.suspended = false
	r.suspendedAt = time.Time{}
	r.consecutive = 0
}

// Snapshot returns the failure state of domain. Unknown domains are healthy.
func (t *Tracker) Snapshot(domain string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.domains[strings.ToLower(domain)]
	if !ok {
		return Snapshot{Health: model.HealthHealthy}
	}
	t.expireLocked(domain, r)

	s := Snapshot{
		Health:            health(r),
		ConsecutiveErrors: r.consecutive,
		TotalErrors:       r.total,
		SuspendedAt:       r.suspendedAt,
	}
	if r.suspended && t.cooldown > 0 {
		s.ResumesAt = r.suspendedAt.Add(t.cooldown)
	}
	return s
}

// Suspended returns the currently suspended domains in sorted order.
func (t *Tracker) Suspended() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for name, r := range t.domains {
		t.expireLocked(name, r)
		if r.suspended {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// health maps a record to a Health value.
func health(r *domainRecord) model.Health {
	if r.suspended {
		return model.HealthSuspended
	}
	return model.HealthHealthy
}
