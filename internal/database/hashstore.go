package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/politecrawler/internal/change"
)

var _ change.Store = (*HashStore)(nil)

// HashStore keeps content hashes in the page store database. It
// satisfies change.Store.
type HashStore struct {
	db *sql.DB
}

// HashStore returns the content hash view of ps.
func (ps *PageStore) HashStore() *HashStore {
	return &HashStore{db: ps.db}
}

// LastHash returns the stored hash of url.
func (hs *HashStore) LastHash(ctx context.Context, url string) (string, bool, error) {
	var hash string
	err := hs.db.QueryRowContext(ctx, `SELECT hash FROM content_hashes WHERE url = ?`, url).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read content hash: %w", err)
	}
	return hash, true, nil
}

// SetHash records hash as the latest hash of url.
func (hs *HashStore) SetHash(ctx context.Context, url, hash string) error {
	query := `
	INSERT INTO content_hashes (url, hash, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET hash = excluded.hash, updated_at = excluded.updated_at
	`
	if _, err := hs.db.ExecContext(ctx, query, url, hash, formatTime(time.Now())); err != nil {
		return fmt.Errorf("failed to write content hash: %w", err)
	}
	return nil
}
