package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nao1215/politecrawler/internal/frontier"
	"github.com/nao1215/politecrawler/internal/log"
	"github.com/nao1215/politecrawler/internal/model"
	"github.com/nao1215/politecrawler/internal/pipeline"
	"github.com/nao1215/politecrawler/internal/urlproc"
)

const (
	// idlePoll is how long an idle dispatcher sleeps before it looks at
	// the frontier again without being woken. Suspensions expire without
	// a wake-up, so the dispatcher must poll.
	idlePoll = 250 * time.Millisecond

	// seedPriority ranks seeds above every discovered link.
	seedPriority = 2.0

	// recrawlPriority ranks recrawls below fresh links of the same depth.
	recrawlPriority = 0.1
)

// AddSeed enqueues rawURL at depth 0. The URL must belong to a registered
// domain. A seed already seen in this session is ignored.
func (c *Crawler) AddSeed(rawURL string) error {
	u, err := urlproc.Normalize(rawURL)
	if err != nil {
		c.stats.RecordInvalidURL()
		return err
	}
	if !u.Crawlable() {
		c.stats.RecordInvalidURL()
		return fmt.Errorf("%w: %s is not crawlable", urlproc.ErrInvalidURL, u)
	}
	d := c.lookup(u)
	if d == nil {
		return fmt.Errorf("%w: %s", ErrUnknownDomain, u.Host())
	}

	c.enqueue(frontier.Entry{URL: u, Domain: d.name}, seedPriority)
	c.wakeDispatcher()
	return nil
}

// enqueue admits e and counts refused entries.
func (c *Crawler) enqueue(e frontier.Entry, priority float64) frontier.Outcome {
	outcome := c.frontier.Enqueue(e, priority)
	switch outcome {
	case frontier.Duplicate:
		c.stats.RecordDuplicate()
	case frontier.Capped:
		c.stats.RecordCapped()
		c.logger.Debug("domain cap reached", "domain", e.Domain, "url", log.RedactURL(e.URL.String()))
	case frontier.Added:
	}
	return outcome
}

// linkPriority scores a discovered link. Shallow links come first;
// pagination links get the configured boost so listings are walked before
// the articles they link to.
func (c *Crawler) linkPriority(depth int, pagination bool) float64 {
	p := 1 / float64(depth+1)
	if pagination {
		p += c.cfg.PaginationBoost
	}
	return p
}

// run is the dispatcher. It hands frontier entries to at most Workers
// concurrent pipeline runs until ctx is canceled or the frontier is
// corrupt, then waits for the workers.
func (c *Crawler) run(ctx, workCtx context.Context) {
	defer close(c.done)
	defer c.finish()

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	sem := semaphore.NewWeighted(int64(c.cfg.Workers))
	var g errgroup.Group

	if c.cfg.RecrawlCheckInterval > 0 {
		g.Go(func() error {
			c.recrawlLoop(ctx)
			return nil
		})
	}

	for {
		if err := c.waitGate(ctx); err != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		if c.paused() {
			sem.Release(1)
			continue
		}

		c.inFlight.Add(1)
		entry, err := c.frontier.Dequeue()
		if err != nil {
			c.inFlight.Add(-1)
			sem.Release(1)
			if errors.Is(err, frontier.ErrCorrupt) {
				c.fail(err)
				break
			}
			if !c.idle(ctx) {
				break
			}
			continue
		}
		c.activity.Add(1)

		g.Go(func() error {
			defer sem.Release(1)
			defer c.inFlight.Add(-1)
			c.process(workCtx, entry)
			return nil
		})
	}

	stop()
	_ = g.Wait() //nolint:errcheck // workers never return errors
}

// idle waits for a wake-up, the poll interval or the end of ctx. It
// returns false when ctx is done.
func (c *Crawler) idle(ctx context.Context) bool {
	timer := time.NewTimer(idlePoll)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-c.wake:
	case <-timer.C:
	}
	return true
}

// process runs one frontier entry through the pipeline and records the
// outcome.
func (c *Crawler) process(ctx context.Context, e frontier.Entry) {
	d := c.lookup(e.URL)
	if d == nil {
		c.frontier.MarkVisited(e.Key)
		return
	}

	job := &pipeline.Job{
		URL:        e.URL,
		Domain:     d.name,
		Depth:      e.Depth,
		CrawlDelay: d.crawlDelay,
		Headers:    d.cfg.Headers,
		RateLimit:  d.rateLimit,
	}
	err := c.pipeline.Execute(ctx, job)
	c.noteRobots(d, job)

	switch job.Skipped() {
	case pipeline.SkipRobots:
		c.stats.RecordRobotsBlocked()
		c.frontier.MarkVisited(e.Key)
		return
	case pipeline.SkipFresh:
		c.frontier.MarkVisited(e.Key)
		return
	case pipeline.SkipNone:
	}

	// Canceled during shutdown: the host did nothing wrong.
	if job.Fetch == nil || job.Fetch.Kind == model.FailureCanceled {
		return
	}

	url := log.RedactURL(job.URL.String())
	success := job.Succeeded()
	c.stats.RecordRetries(job.Fetch.Retries())

	if err != nil && !errors.Is(err, pipeline.ErrFetch) {
		c.logger.Warn("page processing failed", "url", url, "error", err)
	}
	if success {
		c.scheduler.MarkCrawled(job.URL.String())
		c.depths.Store(job.URL.String(), job.Depth)
		if job.Record.Changed {
			c.stats.RecordChanged()
		}
	}

	if err := c.MarkPageCrawled(job.URL.String(), d.name, job.Fetch.StatusCode, job.Fetch.BodySize(), success); err != nil {
		c.logger.Warn("failed to record page", "url", url, "error", err)
	}

	if !success {
		c.logger.Debug("page failed",
			"url", url,
			"status", job.Fetch.StatusCode,
			"kind", job.Fetch.Kind.String(),
			"attempts", job.Fetch.Attempts,
		)
		return
	}

	c.logger.Debug("page crawled",
		"url", url,
		"status", job.Fetch.StatusCode,
		"bytes", job.Fetch.BodySize(),
		"links", len(job.Content.Links),
		"changed", job.Record.Changed,
	)
	c.enqueueLinks(job)
}

// enqueueLinks queues the links of a crawled page that stay within a
// registered domain, the depth limit and the domain's URL patterns.
func (c *Crawler) enqueueLinks(job *pipeline.Job) {
	for range job.Content.InvalidLinks {
		c.stats.RecordInvalidURL()
	}

	depth := job.Depth + 1
	added := 0
	for _, link := range job.Content.Links {
		target := c.lookup(link.URL)
		if target == nil {
			continue
		}
		if depth > c.maxDepth(target) {
			continue
		}
		if !shouldCrawl(link.URL.Path(), target.cfg) {
			continue
		}

		entry := frontier.Entry{
			URL:        link.URL,
			Domain:     target.name,
			Depth:      depth,
			Pagination: link.Pagination,
		}
		if c.enqueue(entry, c.linkPriority(depth, link.Pagination)) == frontier.Added {
			added++
		}
	}
	if added > 0 {
		c.wakeDispatcher()
	}
}

// recrawlLoop periodically moves pages due for a recrawl back into the
// frontier.
func (c *Crawler) recrawlLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.RecrawlCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.RescheduleDue(); n > 0 {
				c.logger.Info("pages rescheduled for recrawl", "count", n)
			}
		}
	}
}

// RescheduleDue puts every page whose recrawl interval has passed back
// into the frontier and returns how many were added. Pages that are still
// pending or belong to no registered domain are skipped.
func (c *Crawler) RescheduleDue() int {
	n := 0
	for _, raw := range c.scheduler.Due() {
		u, err := urlproc.Normalize(raw)
		if err != nil {
			continue
		}
		d := c.lookup(u)
		if d == nil {
			continue
		}

		depth := c.maxDepth(d)
		if v, ok := c.depths.Load(u.String()); ok {
			if known, ok := v.(int); ok {
				depth = known
			}
		}
		entry := frontier.Entry{URL: u, Domain: d.name, Depth: depth}
		if c.frontier.Reschedule(entry, recrawlPriority) == frontier.Added {
			n++
		}
	}
	if n > 0 {
		c.wakeDispatcher()
	}
	return n
}
