package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/politecrawler/internal/change"
	"github.com/nao1215/politecrawler/internal/config"
	"github.com/nao1215/politecrawler/internal/fetcher"
	"github.com/nao1215/politecrawler/internal/frontier"
	"github.com/nao1215/politecrawler/internal/model"
	"github.com/nao1215/politecrawler/internal/pipeline"
	"github.com/nao1215/politecrawler/internal/resilience"
	"github.com/nao1215/politecrawler/internal/robots"
	"github.com/nao1215/politecrawler/internal/schedule"
	"github.com/nao1215/politecrawler/internal/stats"
	"github.com/nao1215/politecrawler/internal/urlproc"
)

// Fetcher downloads pages and robots.txt files. *fetcher.Client is the
// production implementation.
type Fetcher interface {
	Fetch(ctx context.Context, target string, opts fetcher.Options) *model.FetchResult
}

// Sink receives a PageRecord for every successfully fetched page. It is
// called from worker goroutines and must be safe for concurrent use.
type Sink interface {
	SavePage(ctx context.Context, page model.PageRecord) error
}

// Crawler is the crawl engine. All methods are safe for concurrent use.
type Crawler struct {
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time

	fetcher     Fetcher
	closeClient func()
	changeStore change.Store
	sink        Sink

	frontier  *frontier.Frontier
	robots    *robots.Checker
	detector  *change.Detector
	scheduler *schedule.Scheduler
	tracker   *resilience.Tracker
	stats     *stats.Statistics
	pipeline  *pipeline.Pipeline

	// regMu guards the domains map. It is never held while calling the
	// frontier or locking a domain.
	regMu   sync.RWMutex
	domains map[string]*domain

	// depths remembers the depth of crawled URLs for recrawls.
	depths sync.Map

	// mu guards the lifecycle fields below.
	mu         sync.Mutex
	state      State
	err        error
	startedAt  time.Time
	stoppedAt  time.Time
	gate       chan struct{}
	cancel     context.CancelFunc
	workCancel context.CancelFunc
	done       chan struct{}

	wake     chan struct{}
	inFlight atomic.Int64
	activity atomic.Uint64
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSink sets where page records are delivered. Without a sink records
// are discarded.
func WithSink(s Sink) Option {
	return func(c *Crawler) {
		c.sink = s
	}
}

// WithFetcher replaces the HTTP client built from the configuration.
func WithFetcher(f Fetcher) Option {
	return func(c *Crawler) {
		c.fetcher = f
	}
}

// WithChangeStore sets where content hashes are kept. The default is an
// in-memory store.
func WithChangeStore(s change.Store) Option {
	return func(c *Crawler) {
		c.changeStore = s
	}
}

// WithClock overrides the time source of the crawler and its components.
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an idle Crawler. cfg is validated first; every configuration
// problem is reported wrapped in ErrConfiguration. Domains and seeds listed
// in cfg.Domains are registered.
func New(cfg *config.Config, opts ...Option) (*Crawler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	c := &Crawler{
		cfg:     cfg,
		logger:  slog.Default(),
		now:     time.Now,
		domains: make(map[string]*domain),
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.build(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	if cfg.Domains != nil {
		for name, dc := range cfg.Domains.Domains {
			if err := c.AddDomain(name, dc.Priority, dc.IsEnabled()); err != nil {
				c.Close()
				return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
			}
			for _, seed := range cfg.Domains.GetDomainConfig(name).Seeds {
				if err := c.AddSeed(seed); err != nil {
					c.logger.Warn("ignoring seed", "domain", name, "seed", seed, "error", err)
				}
			}
		}
	}
	return c, nil
}

// build creates the components from the configuration.
func (c *Crawler) build() error {
	cfg := c.cfg

	if c.fetcher == nil {
		opts := []fetcher.Option{
			fetcher.WithUserAgent(cfg.UserAgent),
			fetcher.WithTimeout(cfg.RequestTimeout),
			fetcher.WithMaxBodySize(cfg.MaxBodySize),
			fetcher.WithBackoff(cfg.RetryBaseDelay, cfg.RetryMaxDelay),
			fetcher.WithHostLimiter(fetcher.NewHostLimiter(cfg.CrawlDelay, fetcher.RateLimit{
				Requests: cfg.RateLimitRequests,
				Window:   cfg.RateLimitWindow,
			})),
			fetcher.WithLogger(c.logger),
		}
		if cfg.ProxyAddress != "" {
			opts = append(opts, fetcher.WithProxy(cfg.ProxyAddress))
		}
		client, err := fetcher.New(opts...)
		if err != nil {
			return err
		}
		c.fetcher = client
		c.closeClient = client.Close
	}

	policy, err := robots.ParsePolicy(cfg.RobotsFailurePolicy)
	if err != nil {
		return err
	}
	c.robots = robots.New(c.fetcher, cfg.UserAgent,
		robots.WithTTL(cfg.RobotsTTL),
		robots.WithFailureTTL(cfg.RobotsFailureTTL),
		robots.WithPolicy(policy),
		robots.WithTimeout(cfg.RequestTimeout),
		robots.WithClock(c.now),
		robots.WithLogger(c.logger),
	)

	c.tracker, err = resilience.New(
		resilience.WithThreshold(cfg.FailureThreshold),
		resilience.WithCooldown(cfg.SuspendCooldown),
		resilience.WithClock(c.now),
		resilience.WithLogger(c.logger),
	)
	if err != nil {
		return err
	}

	c.scheduler, err = schedule.New(
		schedule.WithInterval(cfg.RecrawlInterval),
		schedule.WithClock(c.now),
	)
	if err != nil {
		return err
	}

	c.stats = stats.New(c.now)
	c.detector = change.NewDetector(c.changeStore)
	c.frontier = frontier.New(
		frontier.WithMaxPerDomain(cfg.MaxPagesPerDomain),
		frontier.WithMaxConsecutive(cfg.MaxConsecutive),
		frontier.WithEligibility(c.eligible),
		frontier.WithClock(c.now),
	)

	var sink pipeline.Sink
	if c.sink != nil {
		sink = c.sink
	}
	c.pipeline = pipeline.New([]pipeline.Step{
		pipeline.NewScheduleStep(c.scheduler),
		pipeline.NewRobotsStep(c.robots),
		pipeline.NewFetchStep(c.fetcher,
			pipeline.WithFetchTimeout(cfg.RequestTimeout),
			pipeline.WithFetchRetries(cfg.MaxRetries),
			pipeline.WithFetchClock(c.now),
		),
		pipeline.NewExtractStep(c.logger),
		pipeline.NewChangeStep(c.detector, c.logger),
		pipeline.NewEmitStep(sink),
	}, pipeline.WithLogger(c.logger))
	return nil
}

// Close releases the HTTP client built by New. It does not stop a running
// crawl; call Stop first.
func (c *Crawler) Close() {
	if c.closeClient != nil {
		c.closeClient()
	}
}

// Stats returns a snapshot of the crawl statistics.
func (c *Crawler) Stats() stats.Snapshot {
	return c.stats.Snapshot()
}

// ResetStats zeroes the crawl statistics. Domain counters are kept.
func (c *Crawler) ResetStats() {
	c.stats.Reset()
}

// Statistics returns the live statistics, for example to register a
// Prometheus collector.
func (c *Crawler) Statistics() *stats.Statistics {
	return c.stats
}

// IsURLCached reports whether rawURL has already been crawled in this
// session. Malformed URLs are never cached.
func (c *Crawler) IsURLCached(rawURL string) bool {
	key, err := urlproc.DedupKeyOf(rawURL)
	if err != nil {
		return false
	}
	return c.frontier.Visited(key)
}

// RestoreHistory tells the recrawl scheduler that rawURL was crawled at at,
// typically from a persistent page store. Such URLs are skipped until the
// recrawl interval has passed.
func (c *Crawler) RestoreHistory(rawURL string, at time.Time) {
	u, err := urlproc.Normalize(rawURL)
	if err != nil {
		return
	}
	c.scheduler.Restore(u.String(), at)
}

// MarkPageCrawled records the outcome of one fetch. It updates the domain
// state, the statistics and the dedup cache together while holding the
// domain's lock, and feeds the failure tracker that suspends domains.
// bytes is added to the domain's download counter for every fetch.
//
// An unregistered domain returns ErrUnknownDomain and changes nothing.
func (c *Crawler) MarkPageCrawled(rawURL, domainName string, statusCode int, bytes int64, success bool) error {
	d, err := c.registered(domainName)
	if err != nil {
		return err
	}
	u, err := urlproc.Normalize(rawURL)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	st := &d.state
	st.BytesDownloaded += bytes
	st.LastStatusCode = statusCode
	st.LastVisit = c.now()

	wasSuspended := c.tracker.IsSuspended(d.name)
	if success {
		st.PagesCrawled++
		c.tracker.RecordSuccess(d.name)
	} else {
		st.PagesFailed++
		st.TotalErrors++
		c.tracker.RecordFailure(d.name)
	}
	health := c.tracker.Snapshot(d.name)
	st.Health = health.Health
	st.SuspendedAt = health.SuspendedAt
	st.ConsecutiveErrors = health.ConsecutiveErrors
	if health.Health == model.HealthSuspended && !wasSuspended {
		c.logger.Warn("domain suspended",
			"domain", d.name,
			"consecutive_errors", st.ConsecutiveErrors,
			"cooldown", c.cfg.SuspendCooldown,
		)
	}

	c.stats.RecordPage(success, bytes)
	c.frontier.MarkVisited(u.DedupKey())
	return nil
}

// noteRobots remembers the host of a job and stores the robots.txt
// summary it observed.
func (c *Crawler) noteRobots(d *domain, job *pipeline.Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if host := job.URL.Host(); host != "" {
		if d.hosts == nil {
			d.hosts = make(map[string]struct{})
		}
		d.hosts[host] = struct{}{}
	}
	if job.RobotsFetchedAt.IsZero() {
		return
	}
	d.state.RobotsFetchedAt = job.RobotsFetchedAt
	d.state.CrawlDelay = job.EffectiveDelay()
}
