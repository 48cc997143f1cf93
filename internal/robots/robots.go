package robots

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"github.com/nao1215/politecrawler/internal/fetcher"
	"github.com/nao1215/politecrawler/internal/model"
)

// Default cache lifetimes.
const (
	DefaultTTL        = 24 * time.Hour
	DefaultFailureTTL = 10 * time.Minute
	defaultTimeout    = 10 * time.Second
)

// Policy decides what happens when robots.txt is unreachable.
type Policy int

const (
	// PolicyAllow crawls the host as if robots.txt were empty.
	PolicyAllow Policy = iota
	// PolicyDeny refuses every URL of the host until the failure expires.
	PolicyDeny
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	if p == PolicyDeny {
		return "deny"
	}
	return "allow"
}

// ParsePolicy converts "allow" or "deny" into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "allow":
		return PolicyAllow, nil
	case "deny":
		return PolicyDeny, nil
	default:
		return PolicyAllow, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Fetcher is the subset of fetcher.Client used to download robots.txt.
type Fetcher interface {
	Fetch(ctx context.Context, target string, opts fetcher.Options) *model.FetchResult
}

// Rules is the cached robots.txt state of one host.
type Rules struct {
	// Host is the host the rules were fetched from.
	Host string

	// FetchedAt is when the fetch completed.
	FetchedAt time.Time

	// StatusCode is the HTTP status of the robots.txt response, 0 when no
	// response was received.
	StatusCode int

	// Err is non-nil when robots.txt was unreachable. It wraps
	// ErrRobotsFetch.
	Err error

	data  *robotstxt.RobotsData
	group *robotstxt.Group
}

// Unreachable reports whether the fetch failed and the policy applies.
func (r *Rules) Unreachable() bool {
	return r.Err != nil
}

// CrawlDelay returns the Crawl-delay of the matching group, or zero.
func (r *Rules) CrawlDelay() time.Duration {
	if r.group == nil {
		return 0
	}
	return r.group.CrawlDelay
}

// allowed tests a request URI against the rules.
func (r *Rules) allowed(requestURI string, policy Policy) bool {
	if r.Unreachable() {
		return policy == PolicyAllow
	}
	if r.group == nil {
		return true
	}
	return r.group.Test(requestURI)
}

// cacheEntry pairs rules with their expiry.
type cacheEntry struct {
	rules   *Rules
	expires time.Time
}

// Checker answers robots.txt questions with a per-host cache.
// A Checker is safe for concurrent use.
type Checker struct {
	fetcher    Fetcher
	agent      string
	ttl        time.Duration
	failureTTL time.Duration
	timeout    time.Duration
	policy     Policy
	now        func() time.Time
	logger     *slog.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
	group singleflight.Group
}

// Option configures a Checker.
type Option func(*Checker)

// WithTTL sets how long fetched rules are cached.
func WithTTL(d time.Duration) Option {
	return func(c *Checker) {
		c.ttl = d
	}
}

// WithFailureTTL sets how long an unreachable robots.txt is cached.
func WithFailureTTL(d time.Duration) Option {
	return func(c *Checker) {
		c.failureTTL = d
	}
}

// WithPolicy sets the policy for unreachable robots.txt files.
func WithPolicy(p Policy) Option {
	return func(c *Checker) {
		c.policy = p
	}
}

// WithTimeout sets the timeout of a robots.txt request.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		c.timeout = d
	}
}

// WithClock overrides the time source used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = l
	}
}

// New creates a Checker that downloads robots.txt with f and matches
// groups against the product token of userAgent.
func New(f Fetcher, userAgent string, opts ...Option) *Checker {
	c := &Checker{
		fetcher:    f,
		agent:      AgentName(userAgent),
		ttl:        DefaultTTL,
		failureTTL: DefaultFailureTTL,
		timeout:    defaultTimeout,
		policy:     PolicyAllow,
		now:        time.Now,
		logger:     slog.Default(),
		cache:      make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AgentName returns the product token of a User-Agent string, e.g.
// "PoliteCrawler" for "PoliteCrawler/1.0 (+https://...)".
func AgentName(userAgent string) string {
	name := strings.TrimSpace(userAgent)
	if i := strings.IndexAny(name, "/ "); i > 0 {
		name = name[:i]
	}
	return name
}

// Policy returns the configured failure policy.
func (c *Checker) Policy() Policy {
	return c.policy
}

// IsAllowed reports whether rawURL may be fetched. Invalid URLs are never
// allowed. The robots.txt file itself is always allowed.
func (c *Checker) IsAllowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	if u.Path == "/robots.txt" {
		return true
	}
	rules := c.Rules(ctx, u.Scheme, u.Host)
	return rules.allowed(u.RequestURI(), c.policy)
}

// CrawlDelay returns the Crawl-delay the host asks for, or zero. host may
// include a port; https is assumed when the rules are not cached yet.
func (c *Checker) CrawlDelay(ctx context.Context, host string) time.Duration {
	return c.Rules(ctx, "https", host).CrawlDelay()
}

// Rules returns the rules of host, fetching robots.txt when the cache
// entry is missing or expired. It never returns nil.
func (c *Checker) Rules(ctx context.Context, scheme, host string) *Rules {
	host = strings.ToLower(host)

	if rules, ok := c.cached(host); ok {
		return rules
	}

	v, _, _ := c.group.Do(host, func() (any, error) { //nolint:errcheck // the function never fails
		if rules, ok := c.cached(host); ok {
			return rules, nil
		}
		return c.fetch(ctx, scheme, host), nil
	})
	rules, _ := v.(*Rules) //nolint:errcheck // always *Rules
	return rules
}

// cached returns an unexpired cache entry.
func (c *Checker) cached(host string) (*Rules, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[host]
	if !ok || !c.now().Before(entry.expires) {
		return nil, false
	}
	return entry.rules, true
}

// fetch downloads and parses robots.txt and stores the result.
func (c *Checker) fetch(ctx context.Context, scheme, host string) *Rules {
	target := scheme + "://" + host + "/robots.txt"
	res := c.fetcher.Fetch(ctx, target, fetcher.Options{Timeout: c.timeout, MaxRetries: 1})

	rules := &Rules{Host: host, FetchedAt: c.now(), StatusCode: res.StatusCode}
	ttl := c.ttl

	switch {
	case res.Kind == model.FailureCanceled:
		// Not cached: the caller gave up, the host did not fail.
		rules.Err = fmt.Errorf("%w: %s: %v", ErrRobotsFetch, host, res.Err)
		return rules
	case res.OK():
		data, err := robotstxt.FromStatusAndBytes(res.StatusCode, res.Body)
		if err != nil {
			c.logger.Debug("malformed robots.txt, allowing all", "host", host, "error", err)
			data, _ = robotstxt.FromStatusAndBytes(404, nil) //nolint:errcheck // cannot fail for 404
		}
		rules.data = data
	case res.StatusCode >= 300 && res.StatusCode < 500 && res.StatusCode != 429:
		data, _ := robotstxt.FromStatusAndBytes(404, nil) //nolint:errcheck // cannot fail for 404
		rules.data = data
	default:
		rules.Err = fmt.Errorf("%w: %s: %v", ErrRobotsFetch, host, res.Err)
		ttl = c.failureTTL
		c.logger.Warn("robots.txt unreachable",
			"host", host,
			"status", res.StatusCode,
			"policy", c.policy.String(),
			"error", res.Err,
		)
	}
	if rules.data != nil {
		rules.group = rules.data.FindGroup(c.agent)
	}

	c.mu.Lock()
	c.cache[host] = cacheEntry{rules: rules, expires: rules.FetchedAt.Add(ttl)}
	c.mu.Unlock()

	return rules
}

// Invalidate evicts the cached rules of host so the next lookup fetches
// robots.txt again.
func (c *Checker) Invalidate(host string) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return
	}
	c.mu.Lock()
	delete(c.cache, host)
	c.mu.Unlock()
}

// Len returns the number of cached hosts.
func (c *Checker) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
