package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/nao1215/politecrawler/internal/change"
	"github.com/nao1215/politecrawler/internal/extract"
	"github.com/nao1215/politecrawler/internal/fetcher"
	"github.com/nao1215/politecrawler/internal/log"
	"github.com/nao1215/politecrawler/internal/model"
	"github.com/nao1215/politecrawler/internal/robots"
)

// Scheduler is the subset of schedule.Scheduler used by ScheduleStep.
type Scheduler interface {
	ShouldRecrawl(url string) bool
}

// RobotsChecker is the subset of robots.Checker used by RobotsStep.
type RobotsChecker interface {
	Rules(ctx context.Context, scheme, host string) *robots.Rules
	IsAllowed(ctx context.Context, rawURL string) bool
}

// Fetcher downloads a page.
type Fetcher interface {
	Fetch(ctx context.Context, target string, opts fetcher.Options) *model.FetchResult
}

// Sink receives the records of crawled pages.
type Sink interface {
	SavePage(ctx context.Context, page model.PageRecord) error
}

// ScheduleStep skips URLs that were crawled within the recrawl interval.
type ScheduleStep struct {
	scheduler Scheduler
}

// NewScheduleStep creates a schedule check step.
func NewScheduleStep(s Scheduler) *ScheduleStep {
	return &ScheduleStep{scheduler: s}
}

// Name returns the step name.
func (s *ScheduleStep) Name() string {
	return "schedule"
}

// Do executes the schedule check.
func (s *ScheduleStep) Do(_ context.Context, job *Job) error {
	if !s.scheduler.ShouldRecrawl(job.URL.String()) {
		job.Skip(SkipFresh)
	}
	return nil
}

// RobotsStep applies robots.txt to the job and records the Crawl-delay the
// host asks for.
type RobotsStep struct {
	checker RobotsChecker
}

// NewRobotsStep creates a robots.txt step.
func NewRobotsStep(c RobotsChecker) *RobotsStep {
	return &RobotsStep{checker: c}
}

// Name returns the step name.
func (s *RobotsStep) Name() string {
	return "robots"
}

// Do executes the robots.txt check.
func (s *RobotsStep) Do(ctx context.Context, job *Job) error {
	rules := s.checker.Rules(ctx, job.URL.Scheme(), job.URL.Host())
	job.RobotsDelay = rules.CrawlDelay()
	job.RobotsFetchedAt = rules.FetchedAt

	if !s.checker.IsAllowed(ctx, job.URL.String()) {
		job.Skip(SkipRobots)
	}
	return nil
}

// FetchStep downloads the page.
type FetchStep struct {
	fetcher    Fetcher
	timeout    time.Duration
	maxRetries int
	now        func() time.Time
}

// FetchStepOption configures a FetchStep.
type FetchStepOption func(*FetchStep)

// WithFetchTimeout sets the per-attempt timeout.
func WithFetchTimeout(d time.Duration) FetchStepOption {
	return func(s *FetchStep) {
		s.timeout = d
	}
}

// WithFetchRetries sets the retry budget for transient failures.
func WithFetchRetries(n int) FetchStepOption {
	return func(s *FetchStep) {
		s.maxRetries = n
	}
}

// WithFetchClock overrides the time source used for CrawledAt.
func WithFetchClock(now func() time.Time) FetchStepOption {
	return func(s *FetchStep) {
		s.now = now
	}
}

// NewFetchStep creates a fetch step.
func NewFetchStep(f Fetcher, opts ...FetchStepOption) *FetchStep {
	s := &FetchStep{
		fetcher: f,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return "fetch"
}

// Do executes the fetch. A response other than 2xx ends the run with
// ErrFetch.
func (s *FetchStep) Do(ctx context.Context, job *Job) error {
	res := s.fetcher.Fetch(ctx, job.URL.String(), fetcher.Options{
		Timeout:    s.timeout,
		MaxRetries: s.maxRetries,
		CrawlDelay: job.EffectiveDelay(),
		Headers:    job.Headers,
		RateLimit:  job.RateLimit,
	})
	job.Fetch = res
	job.Record = model.PageRecord{
		URL:           job.URL.String(),
		Domain:        job.Domain,
		Depth:         job.Depth,
		StatusCode:    res.StatusCode,
		ContentLength: res.BodySize(),
		CrawledAt:     s.now(),
	}

	if !res.OK() {
		if res.Err != nil {
			return fmt.Errorf("%w: %s: %w", ErrFetch, res.Kind, res.Err)
		}
		return fmt.Errorf("%w: status %d", ErrFetch, res.StatusCode)
	}
	return nil
}

// ExtractStep parses HTML responses and fills the content fields of the
// record. Other content types pass through with empty content.
type ExtractStep struct {
	logger *slog.Logger
}

// NewExtractStep creates an extraction step.
func NewExtractStep(logger *slog.Logger) *ExtractStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStep{logger: logger}
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do executes the extraction. Unparsable HTML is logged and leaves the
// content empty; the fetch itself still counts as a success.
func (s *ExtractStep) Do(_ context.Context, job *Job) error {
	if !job.Fetch.IsHTML() {
		return nil
	}

	base := job.URL.URL()
	if job.Fetch.FinalURL != "" {
		if u, err := url.Parse(job.Fetch.FinalURL); err == nil {
			base = u
		}
	}

	doc, err := extract.Parse(job.Fetch.Body, job.Fetch.ContentType, base)
	if err != nil {
		s.logger.Debug("failed to parse page", "url", log.RedactURL(job.URL.String()), "error", err)
		return nil
	}

	job.Content = extract.Extract(doc)
	job.Record.Title = job.Content.Title
	job.Record.Description = job.Content.Description
	job.Record.Keywords = job.Content.Keywords
	job.Record.Text = job.Content.Text
	job.Record.Links, job.Record.PaginationLinks = job.Content.LinkURLs()
	job.Record.TruncateText()
	return nil
}

// ChangeStep hashes the body and compares it with the previous visit.
type ChangeStep struct {
	detector *change.Detector
	logger   *slog.Logger
}

// NewChangeStep creates a change detection step.
func NewChangeStep(d *change.Detector, logger *slog.Logger) *ChangeStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeStep{detector: d, logger: logger}
}

// Name returns the step name.
func (s *ChangeStep) Name() string {
	return "change"
}

// Do executes change detection. A failing hash store is logged and the page
// is treated as changed.
func (s *ChangeStep) Do(ctx context.Context, job *Job) error {
	res, err := s.detector.Check(ctx, job.URL.String(), job.Fetch.Body)
	if err != nil {
		s.logger.Warn("change detection failed", "url", log.RedactURL(job.URL.String()), "error", err)
	}
	job.Record.ContentHash = res.Hash
	job.Record.Changed = res.Changed
	return nil
}

// EmitStep hands the finished record to the sink.
type EmitStep struct {
	sink Sink
}

// NewEmitStep creates an emission step. A nil sink discards records.
func NewEmitStep(sink Sink) *EmitStep {
	return &EmitStep{sink: sink}
}

// Name returns the step name.
func (s *EmitStep) Name() string {
	return "emit"
}

// Do executes the emission.
func (s *EmitStep) Do(ctx context.Context, job *Job) error {
	if s.sink == nil {
		return nil
	}
	if err := s.sink.SavePage(ctx, job.Record); err != nil {
		return fmt.Errorf("%w: %w", ErrEmit, err)
	}
	return nil
}
