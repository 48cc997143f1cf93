package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/politecrawler/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *PageStore {
	t.Helper()

	ps, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = ps.Close()
	})
	return ps
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		ps, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer ps.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if ps.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %s", ps.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		ps, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		_ = ps.Close()

		ps, err = Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		_ = ps.Close()
	})
}

// TestDefaultOptions tests the default option values.
func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists || !opts.EnableWAL {
		t.Errorf("unexpected defaults %+v", opts)
	}
}

// TestSaveAndGetPage tests page round trips and upserts.
func TestSaveAndGetPage(t *testing.T) {
	t.Parallel()

	ps := setupTestDB(t)
	ctx := context.Background()
	crawledAt := time.Date(2026, 4, 1, 10, 30, 0, 123456789, time.UTC)

	page := model.PageRecord{
		URL:             "https://example.se/news",
		Domain:          "example.se",
		Depth:           2,
		StatusCode:      200,
		Title:           "News",
		Description:     "Latest",
		Keywords:        []string{"news", "sweden"},
		Text:            "body text",
		Links:           []string{"https://example.se/a", "https://example.se/news?page=2"},
		PaginationLinks: []string{"https://example.se/news?page=2"},
		ContentHash:     "abc",
		Changed:         true,
		ContentLength:   1234,
		CrawledAt:       crawledAt,
	}

	t.Run("insert and retrieve record", func(t *testing.T) {
		if err := ps.SavePage(ctx, page); err != nil {
			t.Fatal(err)
		}
		got, err := ps.GetPage(ctx, page.URL)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil {
			t.Fatal("expected record")
		}
		if got.Title != "News" || got.Depth != 2 || !got.Changed || got.ContentLength != 1234 {
			t.Errorf("unexpected record %+v", got)
		}
		if len(got.Keywords) != 2 || len(got.Links) != 2 || len(got.PaginationLinks) != 1 {
			t.Errorf("lists not restored: %+v", got)
		}
		if !got.CrawledAt.Equal(crawledAt) {
			t.Errorf("CrawledAt = %v, want %v", got.CrawledAt, crawledAt)
		}
	})

	t.Run("upsert updates existing record and keeps the smallest depth", func(t *testing.T) {
		updated := page
		updated.Title = "News v2"
		updated.Depth = 4
		updated.Changed = false
		updated.Keywords = nil
		if err := ps.SavePage(ctx, updated); err != nil {
			t.Fatal(err)
		}

		got, err := ps.GetPage(ctx, page.URL)
		if err != nil {
			t.Fatal(err)
		}
		if got.Title != "News v2" || got.Changed {
			t.Errorf("record not updated: %+v", got)
		}
		if got.Depth != 2 {
			t.Errorf("depth = %d, want 2", got.Depth)
		}
		if len(got.Keywords) != 0 {
			t.Errorf("keywords = %v", got.Keywords)
		}
		if n, _ := ps.CountPages(ctx); n != 1 {
			t.Errorf("CountPages() = %d, want 1", n)
		}
	})

	t.Run("returns nil for non-existent record", func(t *testing.T) {
		got, err := ps.GetPage(ctx, "https://example.se/missing")
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})
}

// TestHasRecentCrawl tests the recent crawl window.
func TestHasRecentCrawl(t *testing.T) {
	t.Parallel()

	ps := setupTestDB(t)
	ctx := context.Background()

	fresh := model.PageRecord{URL: "https://a.se/fresh", Domain: "a.se", CrawledAt: time.Now()}
	stale := model.PageRecord{URL: "https://a.se/stale", Domain: "a.se", CrawledAt: time.Now().Add(-48 * time.Hour)}
	for _, p := range []model.PageRecord{fresh, stale} {
		if err := ps.SavePage(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		url  string
		want bool
	}{
		{fresh.URL, true},
		{stale.URL, false},
		{"https://a.se/none", false},
	}
	for _, tt := range tests {
		got, err := ps.HasRecentCrawl(ctx, tt.url, 24*time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("HasRecentCrawl(%s) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

// TestLastCrawledTimesAndSummaries tests the aggregate queries.
func TestLastCrawledTimesAndSummaries(t *testing.T) {
	t.Parallel()

	ps := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	pages := []model.PageRecord{
		{URL: "https://a.se/1", Domain: "a.se", ContentLength: 100, Changed: true, CrawledAt: base},
		{URL: "https://a.se/2", Domain: "a.se", ContentLength: 50, CrawledAt: base.Add(time.Hour)},
		{URL: "https://b.se/1", Domain: "b.se", ContentLength: 10, Changed: true, CrawledAt: base.Add(2 * time.Hour)},
	}
	for _, p := range pages {
		if err := ps.SavePage(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	times, err := ps.LastCrawledTimes(ctx, "a.se")
	if err != nil {
		t.Fatal(err)
	}
	if len(times) != 2 || !times["https://a.se/2"].Equal(base.Add(time.Hour)) {
		t.Errorf("LastCrawledTimes(a.se) = %v", times)
	}
	all, err := ps.LastCrawledTimes(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("LastCrawledTimes() has %d entries, want 3", len(all))
	}

	summaries, err := ps.DomainSummaries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries", len(summaries))
	}
	a := summaries[0]
	if a.Domain != "a.se" || a.Pages != 2 || a.ChangedPages != 1 || a.Bytes != 150 {
		t.Errorf("unexpected summary %+v", a)
	}
	if !a.LastCrawled.Equal(base.Add(time.Hour)) {
		t.Errorf("LastCrawled = %v", a.LastCrawled)
	}
}

// TestHashStore tests the content hash table.
func TestHashStore(t *testing.T) {
	t.Parallel()

	hs := setupTestDB(t).HashStore()
	ctx := context.Background()

	if _, ok, err := hs.LastHash(ctx, "https://a.se/"); err != nil || ok {
		t.Fatalf("LastHash on empty store = %v, %v", ok, err)
	}
	for _, h := range []string{"h1", "h2"} {
		if err := hs.SetHash(ctx, "https://a.se/", h); err != nil {
			t.Fatal(err)
		}
	}
	hash, ok, err := hs.LastHash(ctx, "https://a.se/")
	if err != nil || !ok || hash != "h2" {
		t.Errorf("LastHash = %q, %v, %v", hash, ok, err)
	}
}

// TestParseTimestamp tests the supported formats.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, s := range []string{
		"2026-01-02 03:04:05.000000000",
		"2026-01-02 03:04:05",
		"2026-01-02T03:04:05Z",
	} {
		if got := parseTimestamp(s); !got.Equal(want) {
			t.Errorf("parseTimestamp(%q) = %v", s, got)
		}
	}
	if !parseTimestamp("garbage").IsZero() {
		t.Error("expected zero time")
	}
}
