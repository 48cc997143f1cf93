package pipeline

import (
	"time"

	"github.com/nao1215/politecrawler/internal/extract"
	"github.com/nao1215/politecrawler/internal/fetcher"
	"github.com/nao1215/politecrawler/internal/model"
	"github.com/nao1215/politecrawler/internal/urlproc"
)

// SkipReason explains why a Job was not crawled.
type SkipReason int

const (
	// SkipNone means the job ran through the pipeline.
	SkipNone SkipReason = iota

	// SkipRobots means robots.txt disallows the URL.
	SkipRobots

	// SkipFresh means the URL was crawled within the recrawl interval.
	SkipFresh
)

// String returns a lowercase name for the reason.
func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "none"
	case SkipRobots:
		return "robots"
	case SkipFresh:
		return "fresh"
	default:
		return "unknown"
	}
}

// Job is one URL on its way through the pipeline.
type Job struct {
	// URL is the canonical URL to crawl.
	URL urlproc.CanonicalURL

	// Domain is the registered domain the URL is accounted to.
	Domain string

	// Depth is the link distance from a seed.
	Depth int

	// CrawlDelay is the configured politeness delay of the domain.
	CrawlDelay time.Duration

	// Headers are extra request headers for the domain.
	Headers map[string]string

	// RateLimit is the request budget of the domain's hosts.
	RateLimit fetcher.RateLimit

	// RobotsDelay is the Crawl-delay robots.txt asks for.
	RobotsDelay time.Duration

	// RobotsFetchedAt is when the robots.txt rules in use were fetched.
	RobotsFetchedAt time.Time

	// Fetch is the fetch outcome, nil until the fetch step ran.
	Fetch *model.FetchResult

	// Content is the extracted page content. It is empty for non-HTML
	// responses.
	Content extract.Content

	// Record is the PageRecord built for the page.
	Record model.PageRecord

	skip SkipReason
}

// Skip stops the pipeline without an error.
func (j *Job) Skip(reason SkipReason) {
	j.skip = reason
}

// Skipped returns why the job was skipped, or SkipNone.
func (j *Job) Skipped() SkipReason {
	return j.skip
}

// Succeeded reports whether the page was fetched with a 2xx response.
func (j *Job) Succeeded() bool {
	return j.Fetch != nil && j.Fetch.OK()
}

// EffectiveDelay is the larger of the configured and robots.txt delays.
func (j *Job) EffectiveDelay() time.Duration {
	return max(j.CrawlDelay, j.RobotsDelay)
}
