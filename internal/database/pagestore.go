package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/politecrawler/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "politecrawler.db"

// timeLayout stores timestamps in UTC with a fixed width so they sort as
// text.
const timeLayout = "2006-01-02 15:04:05.000000000"

// PageStore provides SQLite-based storage for crawled pages.
type PageStore struct {
	db     *sql.DB
	dbPath string
}

// Options configures PageStore behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the page store in dbDir.
func Open(dbDir string, opts Options) (*PageStore, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ps := &PageStore{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := ps.createTables(); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return ps, nil
}

// Path returns the database file path.
func (ps *PageStore) Path() string {
	return ps.dbPath
}

// Close closes the database connection.
func (ps *PageStore) Close() error {
	return ps.db.Close()
}

// createTables creates the schema if it doesn't exist.
func (ps *PageStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		url TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		depth INTEGER NOT NULL DEFAULT 0,
		status_code INTEGER NOT NULL DEFAULT 0,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		keywords TEXT NOT NULL DEFAULT '[]',
		body_text TEXT NOT NULL DEFAULT '',
		links TEXT NOT NULL DEFAULT '[]',
		pagination_links TEXT NOT NULL DEFAULT '[]',
		content_hash TEXT NOT NULL DEFAULT '',
		changed INTEGER NOT NULL DEFAULT 0,
		content_length INTEGER NOT NULL DEFAULT 0,
		crawled_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pages_domain ON pages(domain);
	CREATE INDEX IF NOT EXISTS idx_pages_crawled_at ON pages(crawled_at);

	-- Content hashes are written by the change detector before the page
	-- record, so they live in their own table.
	CREATE TABLE IF NOT EXISTS content_hashes (
		url TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := ps.db.ExecContext(context.Background(), schema)
	return err
}

// SavePage inserts or replaces the record of page.URL.
func (ps *PageStore) SavePage(ctx context.Context, page model.PageRecord) error {
	keywords, err := marshalList(page.Keywords)
	if err != nil {
		return err
	}
	links, err := marshalList(page.Links)
	if err != nil {
		return err
	}
	pagination, err := marshalList(page.PaginationLinks)
	if err != nil {
		return err
	}

	crawledAt := page.CrawledAt
	if crawledAt.IsZero() {
		crawledAt = time.Now()
	}

	query := `
	INSERT INTO pages (url, domain, depth, status_code, title, description, keywords,
		body_text, links, pagination_links, content_hash, changed, content_length, crawled_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		domain = excluded.domain,
		depth = MIN(depth, excluded.depth),
		status_code = excluded.status_code,
		title = excluded.title,
		description = excluded.description,
		keywords = excluded.keywords,
		body_text = excluded.body_text,
		links = excluded.links,
		pagination_links = excluded.pagination_links,
		content_hash = excluded.content_hash,
		changed = excluded.changed,
		content_length = excluded.content_length,
		crawled_at = excluded.crawled_at
	`
	_, err = ps.db.ExecContext(ctx, query,
		page.URL,
		page.Domain,
		page.Depth,
		page.StatusCode,
		page.Title,
		page.Description,
		keywords,
		page.Text,
		links,
		pagination,
		page.ContentHash,
		page.Changed,
		page.ContentLength,
		formatTime(crawledAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save page %s: %w", page.URL, err)
	}
	return nil
}

// GetPage returns the stored record of url, or nil when there is none.
func (ps *PageStore) GetPage(ctx context.Context, url string) (*model.PageRecord, error) {
	query := `
	SELECT url, domain, depth, status_code, title, description, keywords, body_text,
		links, pagination_links, content_hash, changed, content_length, crawled_at
	FROM pages
	WHERE url = ?
	`

	var (
		page                        model.PageRecord
		keywords, links, pagination string
		crawledAt                   string
	)
	err := ps.db.QueryRowContext(ctx, query, url).Scan(
		&page.URL,
		&page.Domain,
		&page.Depth,
		&page.StatusCode,
		&page.Title,
		&page.Description,
		&keywords,
		&page.Text,
		&links,
		&pagination,
		&page.ContentHash,
		&page.Changed,
		&page.ContentLength,
		&crawledAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	for _, f := range []struct {
		raw string
		dst *[]string
	}{
		{keywords, &page.Keywords},
		{links, &page.Links},
		{pagination, &page.PaginationLinks},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("failed to parse stored list: %w", err)
		}
	}
	page.CrawledAt = parseTimestamp(crawledAt)
	return &page, nil
}

// HasRecentCrawl reports whether url was crawled within d of now.
func (ps *PageStore) HasRecentCrawl(ctx context.Context, url string, d time.Duration) (bool, error) {
	query := `SELECT COUNT(*) FROM pages WHERE url = ? AND crawled_at > ?`

	var count int
	if err := ps.db.QueryRowContext(ctx, query, url, formatTime(time.Now().Add(-d))).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check recent crawl: %w", err)
	}
	return count > 0, nil
}

// LastCrawledTimes returns the crawl time of every stored URL of domain.
// An empty domain returns all URLs.
func (ps *PageStore) LastCrawledTimes(ctx context.Context, domain string) (map[string]time.Time, error) {
	query := `SELECT url, crawled_at FROM pages`
	var args []any
	if domain != "" {
		query += ` WHERE domain = ?`
		args = append(args, domain)
	}

	rows, err := ps.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query crawl times: %w", err)
	}
	defer rows.Close()

	times := make(map[string]time.Time)
	for rows.Next() {
		var url, at string
		if err := rows.Scan(&url, &at); err != nil {
			return nil, fmt.Errorf("failed to scan crawl time: %w", err)
		}
		times[url] = parseTimestamp(at)
	}
	return times, rows.Err()
}

// DomainSummary aggregates the stored pages of one domain.
type DomainSummary struct {
	Domain       string    `json:"domain"`
	Pages        int       `json:"pages"`
	ChangedPages int       `json:"changed_pages"`
	Bytes        int64     `json:"bytes"`
	LastCrawled  time.Time `json:"last_crawled"`
}

// DomainSummaries returns one summary per stored domain, ordered by name.
func (ps *PageStore) DomainSummaries(ctx context.Context) ([]DomainSummary, error) {
	query := `
	SELECT domain, COUNT(*), COALESCE(SUM(changed), 0), COALESCE(SUM(content_length), 0), MAX(crawled_at)
	FROM pages
	GROUP BY domain
	ORDER BY domain
	`

	rows, err := ps.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize domains: %w", err)
	}
	defer rows.Close()

	var summaries []DomainSummary
	for rows.Next() {
		var s DomainSummary
		var last string
		if err := rows.Scan(&s.Domain, &s.Pages, &s.ChangedPages, &s.Bytes, &last); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		s.LastCrawled = parseTimestamp(last)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// CountPages returns the number of stored pages.
func (ps *PageStore) CountPages(ctx context.Context) (int, error) {
	var n int
	if err := ps.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

// marshalList encodes a string slice as a JSON array, never "null".
func marshalList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to serialize list: %w", err)
	}
	return string(b), nil
}

// formatTime renders t in the stored layout.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats a stored value may have.
var timestampFormats = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
}

// parseTimestamp parses s with each known format and returns the zero time
// when none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
