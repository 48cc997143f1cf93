package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/politecrawler/internal/change"
	"github.com/nao1215/politecrawler/internal/fetcher"
	"github.com/nao1215/politecrawler/internal/model"
	"github.com/nao1215/politecrawler/internal/robots"
)

const testAgent = "PoliteCrawler/1.0"

// fakeFetcher serves canned results by URL and 404 for everything else.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]*model.FetchResult
	opts  []fetcher.Options
}

func (f *fakeFetcher) Fetch(_ context.Context, target string, opts fetcher.Options) *model.FetchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opts = append(f.opts, opts)
	if r, ok := f.pages[target]; ok {
		cp := *r
		cp.URL = target
		return &cp
	}
	return &model.FetchResult{URL: target, StatusCode: 404, Kind: model.FailureTerminal, Attempts: 1}
}

func htmlPage(body string) *model.FetchResult {
	return &model.FetchResult{StatusCode: 200, ContentType: "text/html; charset=utf-8", Body: []byte(body), Attempts: 1}
}

// fakeScheduler reports a fixed answer.
type fakeScheduler bool

func (s fakeScheduler) ShouldRecrawl(string) bool { return bool(s) }

// memorySink collects records.
type memorySink struct {
	records []model.PageRecord
	err     error
}

func (m *memorySink) SavePage(_ context.Context, page model.PageRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, page)
	return nil
}

// TestScheduleStep tests skipping of fresh pages.
func TestScheduleStep(t *testing.T) {
	t.Parallel()

	job := newJob(t, "https://example.se/")
	if err := NewScheduleStep(fakeScheduler(true)).Do(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if job.Skipped() != SkipNone {
		t.Errorf("due page skipped: %v", job.Skipped())
	}

	job = newJob(t, "https://example.se/")
	_ = NewScheduleStep(fakeScheduler(false)).Do(context.Background(), job) //nolint:errcheck // never fails
	if job.Skipped() != SkipFresh {
		t.Errorf("Skipped() = %v, want fresh", job.Skipped())
	}
}

// TestRobotsStep tests robots.txt application.
func TestRobotsStep(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]*model.FetchResult{
		"https://example.se/robots.txt": {
			StatusCode:  200,
			ContentType: "text/plain",
			Body:        []byte("User-agent: *\nDisallow: /private\nCrawl-delay: 2\n"),
			Attempts:    1,
		},
	}}
	step := NewRobotsStep(robots.New(f, testAgent))

	tests := []struct {
		url  string
		want SkipReason
	}{
		{"https://example.se/news", SkipNone},
		{"https://example.se/private/page", SkipRobots},
	}
	for _, tt := range tests {
		job := newJob(t, tt.url)
		if err := step.Do(context.Background(), job); err != nil {
			t.Fatal(err)
		}
		if job.Skipped() != tt.want {
			t.Errorf("%s: Skipped() = %v, want %v", tt.url, job.Skipped(), tt.want)
		}
		if job.RobotsDelay != 2*time.Second {
			t.Errorf("RobotsDelay = %v, want 2s", job.RobotsDelay)
		}
		if job.RobotsFetchedAt.IsZero() {
			t.Error("RobotsFetchedAt not set")
		}
	}
}

// TestFetchStep tests record construction and failure reporting.
func TestFetchStep(t *testing.T) {
	t.Parallel()

	crawledAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeFetcher{pages: map[string]*model.FetchResult{
		"https://example.se/": htmlPage("<html><title>Hi</title></html>"),
	}}
	step := NewFetchStep(f,
		WithFetchTimeout(5*time.Second),
		WithFetchRetries(2),
		WithFetchClock(func() time.Time { return crawledAt }),
	)

	t.Run("success fills the record", func(t *testing.T) {
		job := newJob(t, "https://example.se/")
		job.Depth = 3
		job.CrawlDelay = time.Second
		job.RobotsDelay = 4 * time.Second
		job.Headers = map[string]string{"X-Test": "1"}
		job.RateLimit = fetcher.RateLimit{Requests: 3, Window: time.Second}

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !job.Succeeded() {
			t.Fatal("expected success")
		}
		r := job.Record
		if r.URL != "https://example.se/" || r.Domain != "example.se" || r.Depth != 3 || r.StatusCode != 200 {
			t.Errorf("unexpected record %+v", r)
		}
		if !r.CrawledAt.Equal(crawledAt) || r.ContentLength == 0 {
			t.Errorf("CrawledAt = %v, ContentLength = %d", r.CrawledAt, r.ContentLength)
		}

		opts := f.opts[len(f.opts)-1]
		if opts.CrawlDelay != 4*time.Second || opts.MaxRetries != 2 || opts.Timeout != 5*time.Second {
			t.Errorf("unexpected fetch options %+v", opts)
		}
		if opts.Headers["X-Test"] != "1" {
			t.Error("headers not forwarded")
		}
		if opts.RateLimit != job.RateLimit {
			t.Errorf("rate limit = %+v, want %+v", opts.RateLimit, job.RateLimit)
		}
	})

	t.Run("non-2xx returns ErrFetch", func(t *testing.T) {
		job := newJob(t, "https://example.se/missing")
		err := step.Do(context.Background(), job)
		if !errors.Is(err, ErrFetch) {
			t.Fatalf("expected ErrFetch, got %v", err)
		}
		if job.Succeeded() || job.Record.StatusCode != 404 {
			t.Errorf("unexpected job state %+v", job.Record)
		}
	})
}

// TestExtractStep tests content extraction into the record.
func TestExtractStep(t *testing.T) {
	t.Parallel()

	t.Run("html page", func(t *testing.T) {
		t.Parallel()

		job := newJob(t, "https://example.se/list")
		job.Fetch = htmlPage(`<html><head><title>List</title>
			<meta name="description" content="All items">
			<meta name="keywords" content="a, b"></head>
			<body><p>Hello world</p>
			<a href="/item/1">Item</a>
			<a href="/list?page=2">Next</a></body></html>`)

		if err := NewExtractStep(nil).Do(context.Background(), job); err != nil {
			t.Fatal(err)
		}
		r := job.Record
		if r.Title != "List" || r.Description != "All items" || len(r.Keywords) != 2 {
			t.Errorf("unexpected meta %+v", r)
		}
		if len(r.Links) != 2 || len(r.PaginationLinks) != 1 {
			t.Errorf("links = %v, pagination = %v", r.Links, r.PaginationLinks)
		}
		if r.PaginationLinks[0] != "https://example.se/list?page=2" {
			t.Errorf("pagination link = %s", r.PaginationLinks[0])
		}
	})

	t.Run("links resolve against the final URL", func(t *testing.T) {
		t.Parallel()

		job := newJob(t, "https://example.se/old")
		job.Fetch = htmlPage(`<a href="next">x</a>`)
		job.Fetch.FinalURL = "https://example.se/new/"

		_ = NewExtractStep(nil).Do(context.Background(), job) //nolint:errcheck // never fails
		if len(job.Record.Links) != 1 || job.Record.Links[0] != "https://example.se/new/next" {
			t.Errorf("links = %v", job.Record.Links)
		}
	})

	t.Run("non-html passes through", func(t *testing.T) {
		t.Parallel()

		job := newJob(t, "https://example.se/feed")
		job.Fetch = &model.FetchResult{StatusCode: 200, ContentType: "application/json", Body: []byte(`{}`)}

		if err := NewExtractStep(nil).Do(context.Background(), job); err != nil {
			t.Fatal(err)
		}
		if job.Record.Title != "" || len(job.Content.Links) != 0 {
			t.Errorf("unexpected content %+v", job.Content)
		}
	})
}

// TestChangeStep tests hashing and first-visit detection.
func TestChangeStep(t *testing.T) {
	t.Parallel()

	step := NewChangeStep(change.NewDetector(nil), nil)
	run := func(body string) model.PageRecord {
		job := newJob(t, "https://example.se/")
		job.Fetch = htmlPage(body)
		if err := step.Do(context.Background(), job); err != nil {
			t.Fatal(err)
		}
		return job.Record
	}

	first := run("v1")
	if !first.Changed || first.ContentHash != change.Hash([]byte("v1")) {
		t.Errorf("first visit = %+v", first)
	}
	if run("v1").Changed {
		t.Error("identical body reported as changed")
	}
	if !run("v2").Changed {
		t.Error("new body not reported as changed")
	}
}

// TestEmitStep tests sink delivery.
func TestEmitStep(t *testing.T) {
	t.Parallel()

	sink := &memorySink{}
	job := newJob(t, "https://example.se/")
	job.Record.URL = job.URL.String()

	if err := NewEmitStep(sink).Do(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if len(sink.records) != 1 || sink.records[0].URL != "https://example.se/" {
		t.Errorf("records = %+v", sink.records)
	}

	failing := &memorySink{err: errors.New("disk full")}
	if err := NewEmitStep(failing).Do(context.Background(), job); !errors.Is(err, ErrEmit) {
		t.Errorf("expected ErrEmit, got %v", err)
	}

	if err := NewEmitStep(nil).Do(context.Background(), job); err != nil {
		t.Errorf("nil sink should discard, got %v", err)
	}
}
