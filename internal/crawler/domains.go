package crawler

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/politecrawler/internal/config"
	"github.com/nao1215/politecrawler/internal/fetcher"
	"github.com/nao1215/politecrawler/internal/model"
	"github.com/nao1215/politecrawler/internal/urlproc"
)

// domain is the registry entry of one crawl target.
//
// state and hosts are guarded by mu. enabled is read by the frontier's
// eligibility filter while the frontier lock is held, so it is an atomic
// and mu is never taken there.
type domain struct {
	name       string
	cfg        config.DomainConfig
	crawlDelay time.Duration
	rateLimit  fetcher.RateLimit

	enabled atomic.Bool

	mu    sync.Mutex
	state model.DomainState
	hosts map[string]struct{}
}

// normalizeDomain turns a domain name, host or URL into the registry key:
// the lowercased host without "www." and without a default port.
func normalizeDomain(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, name)
	}
	if !strings.Contains(name, "://") {
		name = "http://" + name
	}
	u, err := urlproc.Normalize(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidDomain, err)
	}
	return u.Host(), nil
}

// AddDomain registers a crawl target. Calling it again for the same domain
// updates priority and enabled and keeps all counters. priority weights the
// domain in the frontier's round-robin; values below 1 count as 1.
//
// Per-domain settings from the configuration file (seeds excluded) apply to
// the domain.
func (c *Crawler) AddDomain(name string, priority int, enabled bool) error {
	key, err := normalizeDomain(name)
	if err != nil {
		return err
	}
	if priority < 1 {
		priority = 1
	}

	c.regMu.Lock()
	d, exists := c.domains[key]
	if !exists {
		dc := config.DomainConfig{}
		if c.cfg.Domains != nil {
			dc = c.cfg.Domains.GetDomainConfig(key)
		}
		delay := c.cfg.CrawlDelay
		if dc.CrawlDelay > 0 {
			delay = dc.CrawlDelay
		}
		rl := fetcher.RateLimit{Requests: c.cfg.RateLimitRequests, Window: c.cfg.RateLimitWindow}
		if dc.RateLimitRequests > 0 {
			rl.Requests = dc.RateLimitRequests
		}
		if dc.RateLimitWindow > 0 {
			rl.Window = dc.RateLimitWindow
		}
		d = &domain{
			name:       key,
			cfg:        dc,
			crawlDelay: delay,
			rateLimit:  rl,
			state: model.DomainState{
				Name:       key,
				CrawlDelay: delay,
			},
		}
		c.domains[key] = d
	}
	c.regMu.Unlock()

	d.mu.Lock()
	d.state.Priority = priority
	d.state.Enabled = enabled
	d.mu.Unlock()
	d.enabled.Store(enabled)

	c.frontier.SetWeight(key, priority)
	c.wakeDispatcher()

	if exists {
		c.logger.Debug("domain updated", "domain", key, "priority", priority, "enabled", enabled)
	} else {
		c.logger.Info("domain registered", "domain", key, "priority", priority, "enabled", enabled)
	}
	return nil
}

// SetDomainEnabled enables or disables a registered domain. A disabled
// domain keeps its pending URLs but none are dispatched.
func (c *Crawler) SetDomainEnabled(name string, enabled bool) error {
	d, err := c.registered(name)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.state.Enabled = enabled
	d.mu.Unlock()
	d.enabled.Store(enabled)
	c.wakeDispatcher()
	return nil
}

// registered returns the entry of a registered domain name.
func (c *Crawler) registered(name string) (*domain, error) {
	key, err := normalizeDomain(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownDomain, err)
	}
	c.regMu.RLock()
	d, ok := c.domains[key]
	c.regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, key)
	}
	return d, nil
}

// lookup returns the registered domain u belongs to. The host with port is
// tried first, then the hostname, then the registrable domain, so both
// "news.example.se" and "example.se" registrations work.
func (c *Crawler) lookup(u urlproc.CanonicalURL) *domain {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	for _, key := range []string{u.Host(), u.Hostname(), u.Domain()} {
		if d, ok := c.domains[key]; ok {
			return d
		}
	}
	return nil
}

// eligible is the frontier's dequeue filter. It runs under the frontier
// lock and must not call back into the frontier or take a domain mutex.
func (c *Crawler) eligible(name string) bool {
	c.regMu.RLock()
	d, ok := c.domains[name]
	c.regMu.RUnlock()
	if !ok || !d.enabled.Load() {
		return false
	}
	return !c.tracker.IsSuspended(name)
}

// DomainStatus returns a copy of the state of a registered domain.
func (c *Crawler) DomainStatus(name string) (model.DomainState, bool) {
	d, err := c.registered(name)
	if err != nil {
		return model.DomainState{}, false
	}
	return c.snapshot(d), true
}

// Domains returns the state of every registered domain, ordered by name.
func (c *Crawler) Domains() []model.DomainState {
	list := c.domainList()
	states := make([]model.DomainState, 0, len(list))
	for _, d := range list {
		states = append(states, c.snapshot(d))
	}
	return states
}

// domainList returns the registry entries ordered by name.
func (c *Crawler) domainList() []*domain {
	c.regMu.RLock()
	list := make([]*domain, 0, len(c.domains))
	for _, d := range c.domains {
		list = append(list, d)
	}
	c.regMu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].name < list[j].name })
	return list
}

// snapshot copies the state of d and fills the fields owned by other
// components.
func (c *Crawler) snapshot(d *domain) model.DomainState {
	d.mu.Lock()
	st := d.state
	d.mu.Unlock()

	health := c.tracker.Snapshot(d.name)
	st.Health = health.Health
	st.SuspendedAt = health.SuspendedAt
	st.ConsecutiveErrors = health.ConsecutiveErrors
	st.Pending = c.frontier.Pending(d.name)
	st.Dropped = c.frontier.Dropped(d.name)
	return st
}

// ResetDomain lifts a suspension, clears the consecutive error count and
// lets the domain admit a fresh batch of URLs. Cached robots.txt rules of
// every host crawled for the domain are dropped.
func (c *Crawler) ResetDomain(name string) error {
	d, err := c.registered(name)
	if err != nil {
		return err
	}

	d.mu.Lock()
	c.tracker.Reset(d.name)
	d.state.ConsecutiveErrors = 0
	d.state.Health = model.HealthHealthy
	d.state.SuspendedAt = time.Time{}
	hosts := make([]string, 0, len(d.hosts)+1)
	hosts = append(hosts, d.name)
	for h := range d.hosts {
		hosts = append(hosts, h)
	}
	d.mu.Unlock()

	c.frontier.ResetDomain(d.name)
	for _, h := range hosts {
		c.robots.Invalidate(h)
	}
	c.wakeDispatcher()

	c.logger.Info("domain reset", "domain", d.name)
	return nil
}

// maxDepth returns the depth limit of d.
func (c *Crawler) maxDepth(d *domain) int {
	if d.cfg.Depth > 0 {
		return d.cfg.Depth
	}
	return c.cfg.MaxDepth
}
