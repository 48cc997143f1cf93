package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/politecrawler/internal/stats"
)

// waitPoll is how often Wait re-checks for a drained crawl.
const waitPoll = 50 * time.Millisecond

// Status is a point-in-time view of the crawler for dashboards.
type Status struct {
	State            State          `json:"state"`
	StartedAt        time.Time      `json:"started_at,omitzero"`
	Uptime           time.Duration  `json:"uptime"`
	Stats            stats.Snapshot `json:"stats"`
	DomainsTotal     int            `json:"domains_total"`
	DomainsEnabled   int            `json:"domains_enabled"`
	DomainsSuspended int            `json:"domains_suspended"`
	URLsCached       int            `json:"urls_cached"`
	Pending          int            `json:"pending"`
	InFlight         int            `json:"in_flight"`

	// Err is the fault that moved the crawler to StateError.
	Err error `json:"-"`
}

// Start begins dispatching URLs. Calling Start on a running crawler is a
// no-op. ctx bounds the whole crawl: canceling it stops the crawler as if
// Stop had been called, without the drain period.
func (c *Crawler) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateRunning:
		return nil
	case StateIdle:
	default:
		c.logger.Warn("ignoring start", "state", c.state.String())
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, c.state)
	}

	workCtx, workCancel := context.WithCancel(ctx)
	dispatchCtx, cancel := context.WithCancel(workCtx)

	c.gate = make(chan struct{})
	close(c.gate)
	c.cancel = cancel
	c.workCancel = workCancel
	c.done = make(chan struct{})
	c.startedAt = c.now()
	c.state = StateRunning

	go c.run(dispatchCtx, workCtx)

	c.logger.Info("crawler started",
		"workers", c.cfg.Workers,
		"domains", c.domainCount(),
		"pending", c.frontier.Len(),
	)
	return nil
}

// Pause stops dispatching new URLs. Fetches already in flight complete.
func (c *Crawler) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		c.logger.Warn("ignoring pause", "state", c.state.String())
		return fmt.Errorf("%w: cannot pause from %s", ErrInvalidTransition, c.state)
	}
	c.gate = make(chan struct{})
	c.state = StatePaused
	c.logger.Info("crawler paused", "in_flight", c.inFlight.Load())
	return nil
}

// Resume continues dispatching after Pause.
func (c *Crawler) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePaused {
		c.logger.Warn("ignoring resume", "state", c.state.String())
		return fmt.Errorf("%w: cannot resume from %s", ErrInvalidTransition, c.state)
	}
	close(c.gate)
	c.state = StateRunning
	c.logger.Info("crawler resumed")
	return nil
}

// Stop ends the crawl. No new URLs are dispatched; in-flight fetches get
// the configured stop timeout to finish before they are canceled. Stop
// returns once every worker has exited.
func (c *Crawler) Stop() error {
	c.mu.Lock()
	if c.state != StateRunning && c.state != StatePaused {
		state := c.state
		c.mu.Unlock()
		c.logger.Warn("ignoring stop", "state", state.String())
		return fmt.Errorf("%w: cannot stop from %s", ErrInvalidTransition, state)
	}
	c.state = StateStopped
	cancel, workCancel, done := c.cancel, c.workCancel, c.done
	c.mu.Unlock()

	c.logger.Info("stopping crawler", "in_flight", c.inFlight.Load())
	cancel()

	timer := time.NewTimer(c.cfg.StopTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		c.logger.Warn("stop timeout reached, canceling in-flight fetches", "in_flight", c.inFlight.Load())
		workCancel()
		<-done
	}
	workCancel()

	c.mu.Lock()
	c.stoppedAt = c.now()
	c.mu.Unlock()

	c.logger.Info("crawler stopped", "pages", c.stats.Snapshot().PagesCrawled)
	return nil
}

// State returns the current lifecycle state.
func (c *Crawler) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the fault that moved the crawler to StateError, or nil.
func (c *Crawler) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Status returns a snapshot of the crawler.
func (c *Crawler) Status() Status {
	c.mu.Lock()
	st := Status{
		State:     c.state,
		StartedAt: c.startedAt,
		Err:       c.err,
	}
	switch {
	case c.startedAt.IsZero():
	case !c.stoppedAt.IsZero():
		st.Uptime = c.stoppedAt.Sub(c.startedAt)
	default:
		st.Uptime = c.now().Sub(c.startedAt)
	}
	c.mu.Unlock()

	for _, d := range c.domainList() {
		st.DomainsTotal++
		if d.enabled.Load() {
			st.DomainsEnabled++
		}
		if c.tracker.IsSuspended(d.name) {
			st.DomainsSuspended++
		}
	}
	st.Stats = c.stats.Snapshot()
	st.URLsCached = c.frontier.VisitedCount()
	st.Pending = c.frontier.Len()
	st.InFlight = int(c.inFlight.Load())
	return st
}

// Wait blocks until the crawl is drained: no URL can be dispatched and no
// fetch is in flight. URLs of suspended or disabled domains do not keep
// Wait blocked. It also returns when the crawler stops or fails, with the
// fault in the latter case, and when ctx is done.
func (c *Crawler) Wait(ctx context.Context) error {
	ticker := time.NewTicker(waitPoll)
	defer ticker.Stop()

	for {
		c.mu.Lock()
		state, err := c.state, c.err
		c.mu.Unlock()

		switch state {
		case StateIdle:
			return ErrNotStarted
		case StateStopped:
			return nil
		case StateError:
			return err
		case StateRunning:
			if c.drained() {
				return nil
			}
		case StatePaused:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drained reports whether nothing is in flight and nothing can be
// dispatched. The activity counter catches an entry that was dequeued and
// finished between the individual reads.
func (c *Crawler) drained() bool {
	before := c.activity.Load()
	if c.inFlight.Load() != 0 {
		return false
	}
	if c.frontier.Ready() != 0 {
		return false
	}
	if c.inFlight.Load() != 0 {
		return false
	}
	return c.activity.Load() == before
}

// fail moves the crawler to StateError and cancels dispatching and every
// in-flight fetch.
func (c *Crawler) fail(err error) {
	c.mu.Lock()
	if c.state == StateError {
		c.mu.Unlock()
		return
	}
	c.state = StateError
	c.err = err
	c.stoppedAt = c.now()
	cancel, workCancel := c.cancel, c.workCancel
	c.mu.Unlock()

	c.logger.Error("crawler failed", "error", err)
	if cancel != nil {
		cancel()
	}
	if workCancel != nil {
		workCancel()
	}
}

// finish marks a crawl whose context ended without Stop as stopped.
func (c *Crawler) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning || c.state == StatePaused {
		c.state = StateStopped
		c.stoppedAt = c.now()
		c.logger.Info("crawler context ended")
	}
}

// waitGate blocks while the crawler is paused.
func (c *Crawler) waitGate(ctx context.Context) error {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()

	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// paused reports whether Pause was called and not yet resumed.
func (c *Crawler) paused() bool {
	return c.State() == StatePaused
}

// wakeDispatcher nudges an idle dispatcher to look at the frontier again.
func (c *Crawler) wakeDispatcher() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// domainCount returns the number of registered domains.
func (c *Crawler) domainCount() int {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	return len(c.domains)
}
