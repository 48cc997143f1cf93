package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/politecrawler/internal/config"
	"github.com/nao1215/politecrawler/internal/crawler"
	"github.com/nao1215/politecrawler/internal/database"
	"github.com/nao1215/politecrawler/internal/log"
)

// testSite serves a small site with a robots.txt and counts page hits.
type testSite struct {
	*httptest.Server

	mu   sync.Mutex
	hits map[string]int
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()

	site := &testSite{hits: make(map[string]int)}
	pages := map[string]string{
		"/":        `<a href="/a">A</a> <a href="/b">B</a> <a href="/private/x">secret</a>`,
		"/a":       `<a href="/">home</a>`,
		"/b":       `<p>Leaf page</p>`,
		"/private": `<p>hidden</p>`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		site.mu.Lock()
		site.hits[r.URL.Path]++
		site.mu.Unlock()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><head><title>Page %s</title></head><body>%s</body></html>", r.URL.Path, body)
	})

	site.Server = httptest.NewServer(mux)
	t.Cleanup(site.Close)
	return site
}

func (s *testSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// testCrawlConfig returns a config that crawls the test site quickly and
// stores pages in dbDir.
func testCrawlConfig(dbDir string) *config.Config {
	cfg := config.NewConfig()
	cfg.CrawlDelay = 0
	cfg.MaxRetries = 0
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 10 * time.Millisecond
	cfg.RequestTimeout = 5 * time.Second
	cfg.StopTimeout = time.Second
	cfg.DBDir = dbDir
	return cfg
}

func runTestCrawl(t *testing.T, cfg *config.Config, opts crawlOptions) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var out bytes.Buffer
	if err := runCrawl(ctx, cfg, opts, log.NewSecureLogger(io.Discard, false), &out); err != nil {
		t.Fatalf("runCrawl failed: %v", err)
	}
	return out.String()
}

// TestNewCrawlCmd tests the crawl command creation.
func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "crawl [seed-url...]" {
			t.Errorf("expected use 'crawl [seed-url...]', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" {
			t.Error("expected short and long descriptions")
		}
	})

	shorthands := map[string]string{
		"depth":     "d",
		"max-pages": "p",
		"workers":   "w",
		"timeout":   "t",
		"config":    "c",
		"json":      "j",
		"markdown":  "m",
		"output":    "o",
	}
	for name, short := range shorthands {
		t.Run("has "+name+" flag", func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(name)
			if flag == nil {
				t.Fatalf("expected %s flag", name)
			}
			if flag.Shorthand != short {
				t.Errorf("expected shorthand %q, got %q", short, flag.Shorthand)
			}
		})
	}

	for _, name := range []string{
		"retries", "delay", "rate", "rate-window", "user-agent", "robots-policy", "failure-threshold",
		"cooldown", "recrawl-interval", "duration", "progress", "proxy", "redis",
		"db-dir", "no-store", "fresh", "metrics-addr",
	} {
		t.Run("has "+name+" flag", func(t *testing.T) {
			t.Parallel()
			if cmd.Flags().Lookup(name) == nil {
				t.Fatalf("expected %s flag", name)
			}
		})
	}
}

// TestBuildConfig tests flag and configuration file precedence.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults without flags", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"--config", writeConfigFile(t, "crawler:\n  workers: 3\n")}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}
		if cfg.MaxDepth != config.DefaultMaxDepth {
			t.Errorf("MaxDepth = %d, want default %d", cfg.MaxDepth, config.DefaultMaxDepth)
		}
		if cfg.Workers != 3 {
			t.Errorf("Workers = %d, want 3 from file", cfg.Workers)
		}
	})

	t.Run("flags override file", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		args := []string{
			"--config", writeConfigFile(t, "crawler:\n  workers: 3\n  maxDepth: 2\n"),
			"--workers", "6",
			"--delay", "250ms",
			"--rate", "10",
			"--rate-window", "1m",
			"--robots-policy", "deny",
			"--db-dir", "/tmp/pc",
		}
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}
		if cfg.Workers != 6 {
			t.Errorf("Workers = %d, want 6", cfg.Workers)
		}
		if cfg.MaxDepth != 2 {
			t.Errorf("MaxDepth = %d, want 2 from file", cfg.MaxDepth)
		}
		if cfg.CrawlDelay != 250*time.Millisecond {
			t.Errorf("CrawlDelay = %v, want 250ms", cfg.CrawlDelay)
		}
		if cfg.RateLimitRequests != 10 || cfg.RateLimitWindow != time.Minute {
			t.Errorf("rate limit = %d per %v, want 10 per 1m", cfg.RateLimitRequests, cfg.RateLimitWindow)
		}
		if cfg.RobotsFailurePolicy != config.RobotsPolicyDeny {
			t.Errorf("RobotsFailurePolicy = %q, want deny", cfg.RobotsFailurePolicy)
		}
		if cfg.DBDir != "/tmp/pc" {
			t.Errorf("DBDir = %q", cfg.DBDir)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		missing := filepath.Join(t.TempDir(), "missing.yaml")
		if err := cmd.ParseFlags([]string{"--config", missing}); err != nil {
			t.Fatal(err)
		}
		if _, err := buildConfig(cmd); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crawl.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestRunCrawl crawls a local site end to end.
func TestRunCrawl(t *testing.T) {
	t.Parallel()

	t.Run("crawls, stores and reports", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		dbDir := t.TempDir()
		out := runTestCrawl(t, testCrawlConfig(dbDir), crawlOptions{seeds: []string{site.URL + "/"}})

		if !strings.Contains(out, "POLITECRAWLER REPORT") {
			t.Errorf("expected simple report, got:\n%s", out)
		}
		for _, path := range []string{"/", "/a", "/b"} {
			if got := site.hitCount(path); got != 1 {
				t.Errorf("hits of %s = %d, want 1", path, got)
			}
		}
		if got := site.hitCount("/private"); got != 0 {
			t.Errorf("disallowed page fetched %d times", got)
		}

		store, err := database.Open(dbDir, database.Options{CreateIfNotExists: false})
		if err != nil {
			t.Fatal(err)
		}
		defer store.Close()

		n, err := store.CountPages(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if n != 3 {
			t.Errorf("stored pages = %d, want 3", n)
		}
	})

	t.Run("second run skips recently crawled pages", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		dbDir := t.TempDir()
		opts := crawlOptions{seeds: []string{site.URL + "/"}}

		runTestCrawl(t, testCrawlConfig(dbDir), opts)
		runTestCrawl(t, testCrawlConfig(dbDir), opts)

		if got := site.hitCount("/"); got != 1 {
			t.Errorf("seed fetched %d times, want 1", got)
		}
	})

	t.Run("fresh ignores history", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		dbDir := t.TempDir()

		runTestCrawl(t, testCrawlConfig(dbDir), crawlOptions{seeds: []string{site.URL + "/"}})
		runTestCrawl(t, testCrawlConfig(dbDir), crawlOptions{seeds: []string{site.URL + "/"}, fresh: true})

		if got := site.hitCount("/"); got != 2 {
			t.Errorf("seed fetched %d times, want 2", got)
		}
	})

	t.Run("json report to file", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		reportPath := filepath.Join(t.TempDir(), "reports", "crawl.json")
		runTestCrawl(t, testCrawlConfig(t.TempDir()), crawlOptions{
			seeds:      []string{site.URL + "/"},
			noStore:    true,
			jsonReport: true,
			reportFile: reportPath,
		})

		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("report not written: %v", err)
		}
		var decoded struct {
			Version string `json:"version"`
			Report  struct {
				Summary struct {
					PagesCrawled  int64 `json:"pages_crawled"`
					RobotsBlocked int64 `json:"robots_blocked"`
				} `json:"summary"`
			} `json:"report"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON report: %v", err)
		}
		if decoded.Version == "" {
			t.Error("expected version in report")
		}
		if decoded.Report.Summary.PagesCrawled != 3 {
			t.Errorf("pages_crawled = %d, want 3", decoded.Report.Summary.PagesCrawled)
		}
		if decoded.Report.Summary.RobotsBlocked != 1 {
			t.Errorf("robots_blocked = %d, want 1", decoded.Report.Summary.RobotsBlocked)
		}
	})

	t.Run("markdown report", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		out := runTestCrawl(t, testCrawlConfig(t.TempDir()), crawlOptions{
			seeds:          []string{site.URL + "/"},
			noStore:        true,
			markdownReport: true,
		})
		if !strings.Contains(out, "# Crawl Report") {
			t.Errorf("expected markdown report, got:\n%s", out)
		}
	})

	t.Run("no seeds", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		err := runCrawl(context.Background(), testCrawlConfig(t.TempDir()), crawlOptions{noStore: true},
			log.NewSecureLogger(io.Discard, false), &out)
		if err == nil {
			t.Error("expected error without seeds")
		}
	})

	t.Run("invalid seed", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		err := runCrawl(context.Background(), testCrawlConfig(t.TempDir()),
			crawlOptions{seeds: []string{"mailto:someone@example.se"}, noStore: true},
			log.NewSecureLogger(io.Discard, false), &out)
		if err == nil {
			t.Error("expected error for invalid seed")
		}
	})
}

// TestMetricsHandler tests the metrics and status endpoints.
func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	c, err := crawler.New(testCrawlConfig(t.TempDir()), crawler.WithLogger(log.NewSecureLogger(io.Discard, false)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	if err := c.AddDomain("example.se", 1, true); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(metricsHandler(c))
	t.Cleanup(server.Close)

	t.Run("metrics", func(t *testing.T) {
		t.Parallel()

		body := get(t, server.URL+"/metrics")
		if !strings.Contains(body, "politecrawler_") {
			t.Errorf("expected politecrawler metrics, got:\n%s", body)
		}
	})

	t.Run("status", func(t *testing.T) {
		t.Parallel()

		body := get(t, server.URL+"/status")
		if !strings.Contains(body, `"state":"idle"`) {
			t.Errorf("expected idle state, got:\n%s", body)
		}
		if !strings.Contains(body, "example.se") {
			t.Errorf("expected registered domain, got:\n%s", body)
		}
	})
}

func get(t *testing.T, url string) string {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
