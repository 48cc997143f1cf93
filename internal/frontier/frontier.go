package frontier

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/nao1215/politecrawler/internal/urlproc"
)

const (
	// DefaultMaxConsecutive is the default cap on back-to-back dequeues
	// from a single domain while others are waiting.
	DefaultMaxConsecutive = 5

	// DefaultMaxPerDomain is the default number of URLs admitted per domain.
	DefaultMaxPerDomain = 1000
)

// Entry is a unit of work in the frontier.
type Entry struct {
	// URL is the canonical URL to fetch.
	URL urlproc.CanonicalURL

	// Key is the deduplication key of URL. Enqueue fills it when empty.
	Key urlproc.DedupKey

	// Domain is the registered crawl domain the entry is accounted to.
	// Enqueue falls back to URL.Hostname() when empty.
	Domain string

	// Depth is the link distance from a seed URL.
	Depth int

	// Priority is the score used to order entries within a domain.
	// Higher is served first.
	Priority float64

	// DiscoveredAt is when the URL was found.
	DiscoveredAt time.Time

	// Pagination marks entries discovered through a pagination link.
	Pagination bool

	seq uint64
}

// Outcome is the result of an Enqueue call.
type Outcome int

const (
	// Added means the entry is now pending.
	Added Outcome = iota
	// Duplicate means the URL was already seen; nothing changed.
	Duplicate
	// Capped means the domain reached its admission limit and the entry
	// was dropped.
	Capped
)

// String returns a lowercase name for the outcome.
func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Duplicate:
		return "duplicate"
	case Capped:
		return "capped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Frontier is a deduplicating, domain-fair priority queue.
type Frontier struct {
	mu sync.Mutex

	maxPerDomain   int
	maxConsecutive int
	eligible       func(domain string) bool
	now            func() time.Time

	// seen holds every key ever admitted.
	seen map[urlproc.DedupKey]struct{}

	// visited holds keys reported as fetched.
	visited map[urlproc.DedupKey]struct{}

	// pending maps keys currently queued to their domain.
	pending map[urlproc.DedupKey]string

	domains map[string]*domainQueue

	// order keeps domains in first-seen order so selection is deterministic.
	order []*domainQueue

	lastDomain string
	streak     int
	seq        uint64
}

// domainQueue is the per-domain heap plus round-robin bookkeeping.
type domainQueue struct {
	name     string
	entries  entryHeap
	weight   int
	current  int
	admitted int
	dropped  int
}

// Option configures a Frontier.
type Option func(*Frontier)

// WithMaxPerDomain sets how many URLs a domain may admit in total.
// Zero or a negative value disables the cap.
func WithMaxPerDomain(n int) Option {
	return func(f *Frontier) {
		f.maxPerDomain = n
	}
}

// WithMaxConsecutive sets the back-to-back cap per domain. Values below 1
// are treated as 1.
func WithMaxConsecutive(n int) Option {
	return func(f *Frontier) {
		if n < 1 {
			n = 1
		}
		f.maxConsecutive = n
	}
}

// WithEligibility installs a filter consulted on every Dequeue. Domains for
// which it returns false keep their entries but are skipped.
func WithEligibility(fn func(domain string) bool) Option {
	return func(f *Frontier) {
		f.eligible = fn
	}
}

// WithClock overrides the time source used to stamp DiscoveredAt.
func WithClock(now func() time.Time) Option {
	return func(f *Frontier) {
		f.now = now
	}
}

// New creates an empty Frontier.
func New(opts ...Option) *Frontier {
	f := &Frontier{
		maxPerDomain:   DefaultMaxPerDomain,
		maxConsecutive: DefaultMaxConsecutive,
		now:            time.Now,
		seen:           make(map[urlproc.DedupKey]struct{}),
		visited:        make(map[urlproc.DedupKey]struct{}),
		pending:        make(map[urlproc.DedupKey]string),
		domains:        make(map[string]*domainQueue),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// domainLocked returns the queue for name, creating it on first use.
func (f *Frontier) domainLocked(name string) *domainQueue {
	dq, ok := f.domains[name]
	if !ok {
		dq = &domainQueue{name: name, weight: 1}
		f.domains[name] = dq
		f.order = append(f.order, dq)
	}
	return dq
}

// prepare fills defaulted fields of e.
func (f *Frontier) prepare(e *Entry, priority float64) {
	if e.Key == "" {
		e.Key = e.URL.DedupKey()
	}
	if e.Domain == "" {
		e.Domain = e.URL.Hostname()
	}
	if e.DiscoveredAt.IsZero() {
		e.DiscoveredAt = f.now()
	}
	e.Priority = priority
	f.seq++
	e.seq = f.seq
}

// Enqueue admits e with the given priority score.
// URLs already seen or visited are reported as Duplicate. A domain that
// has admitted its maximum number of URLs reports Capped and counts the
// drop.
func (f *Frontier) Enqueue(e Entry, priority float64) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()

	if e.Key == "" {
		e.Key = e.URL.DedupKey()
	}
	if _, ok := f.seen[e.Key]; ok {
		return Duplicate
	}
	if _, ok := f.visited[e.Key]; ok {
		return Duplicate
	}

	f.prepare(&e, priority)
	dq := f.domainLocked(e.Domain)
	if f.maxPerDomain > 0 && dq.admitted >= f.maxPerDomain {
		dq.dropped++
		return Capped
	}

	heap.Push(&dq.entries, e)
	f.seen[e.Key] = struct{}{}
	f.pending[e.Key] = e.Domain
	dq.admitted++
	return Added
}

// Reschedule puts a previously handed out URL back into the frontier for a
// recrawl. It bypasses deduplication and the domain cap, but a URL that is
// still pending is not queued twice.
func (f *Frontier) Reschedule(e Entry, priority float64) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()

	if e.Key == "" {
		e.Key = e.URL.DedupKey()
	}
	if _, ok := f.pending[e.Key]; ok {
		return Duplicate
	}

	e.DiscoveredAt = time.Time{}
	f.prepare(&e, priority)
	dq := f.domainLocked(e.Domain)
	heap.Push(&dq.entries, e)
	f.seen[e.Key] = struct{}{}
	f.pending[e.Key] = e.Domain
	return Added
}

// Dequeue removes and returns the next entry.
// It returns ErrEmpty when no eligible domain has pending entries and
// ErrCorrupt when internal bookkeeping is inconsistent.
func (f *Frontier) Dequeue() (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	candidates := make([]*domainQueue, 0, len(f.order))
	for _, dq := range f.order {
		if dq.entries.Len() == 0 {
			continue
		}
		if f.eligible != nil && !f.eligible(dq.name) {
			continue
		}
		candidates = append(candidates, dq)
	}
	if len(candidates) == 0 {
		return Entry{}, ErrEmpty
	}

	chosen := f.pickLocked(candidates)

	e, ok := heap.Pop(&chosen.entries).(Entry)
	if !ok {
		return Entry{}, fmt.Errorf("%w: unexpected heap element in %s", ErrCorrupt, chosen.name)
	}
	domain, ok := f.pending[e.Key]
	if !ok || domain != chosen.name {
		return Entry{}, fmt.Errorf("%w: %s not indexed under %s", ErrCorrupt, e.URL, chosen.name)
	}
	delete(f.pending, e.Key)

	if chosen.name == f.lastDomain {
		f.streak++
	} else {
		f.lastDomain = chosen.name
		f.streak = 1
	}
	return e, nil
}

// pickLocked runs one round of smooth weighted round-robin over candidates
// and applies the consecutive cap.
func (f *Frontier) pickLocked(candidates []*domainQueue) *domainQueue {
	total := 0
	for _, dq := range candidates {
		dq.current += dq.weight
		total += dq.weight
	}

	blocked := ""
	if len(candidates) > 1 && f.streak >= f.maxConsecutive {
		blocked = f.lastDomain
	}

	var chosen *domainQueue
	for _, dq := range candidates {
		if dq.name == blocked {
			continue
		}
		if chosen == nil || dq.current > chosen.current {
			chosen = dq
		}
	}
	chosen.current -= total
	return chosen
}

// MarkVisited records key as fetched. Later Enqueue calls for the same key
// report Duplicate.
func (f *Frontier) MarkVisited(key urlproc.DedupKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visited[key] = struct{}{}
}

// Visited reports whether key has been marked as fetched.
func (f *Frontier) Visited(key urlproc.DedupKey) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[key]
	return ok
}

// Seen reports whether key was ever admitted.
func (f *Frontier) Seen(key urlproc.DedupKey) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[key]
	return ok
}

// VisitedCount returns the number of distinct keys marked as fetched.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// SetWeight sets the round-robin weight of domain. Weights below 1 are
// treated as 1.
func (f *Frontier) SetWeight(domain string, weight int) {
	if weight < 1 {
		weight = 1
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.domainLocked(domain).weight = weight
}

// Len returns the number of pending entries across all domains.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Ready returns the number of pending entries Dequeue could hand out now,
// that is entries of domains the eligibility filter accepts.
func (f *Frontier) Ready() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, dq := range f.order {
		if dq.entries.Len() == 0 {
			continue
		}
		if f.eligible != nil && !f.eligible(dq.name) {
			continue
		}
		n += dq.entries.Len()
	}
	return n
}

// Pending returns the number of pending entries for domain.
func (f *Frontier) Pending(domain string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if dq, ok := f.domains[domain]; ok {
		return dq.entries.Len()
	}
	return 0
}

// Dropped returns how many entries domain lost to the admission cap.
func (f *Frontier) Dropped(domain string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if dq, ok := f.domains[domain]; ok {
		return dq.dropped
	}
	return 0
}

// ResetDomain clears the admission and drop counters of domain so it can
// admit a fresh batch of URLs. Pending entries are kept.
func (f *Frontier) ResetDomain(domain string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if dq, ok := f.domains[domain]; ok {
		dq.admitted = dq.entries.Len()
		dq.dropped = 0
	}
}

// entryHeap orders entries by priority (desc), discovery time (asc) and
// insertion sequence (asc).
type entryHeap []Entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	if !h[i].DiscoveredAt.Equal(h[j].DiscoveredAt) {
		return h[i].DiscoveredAt.Before(h[j].DiscoveredAt)
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) {
	e, _ := x.(Entry) //nolint:errcheck // only Entry values are pushed
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
