package change

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/crypto/sha3"
)

// Store keeps the last content hash of each URL.
// Implementations must be safe for concurrent use.
type Store interface {
	// LastHash returns the stored hash of url. ok is false when the URL was
	// never recorded.
	LastHash(ctx context.Context, url string) (hash string, ok bool, err error)

	// SetHash records hash as the latest hash of url.
	SetHash(ctx context.Context, url, hash string) error
}

// Hash returns the hex encoded SHA3-256 digest of body.
func Hash(body []byte) string {
	sum := sha3.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Result is the outcome of a Check.
type Result struct {
	// Hash is the digest of the checked body.
	Hash string

	// Changed is true when Hash differs from the stored hash or no hash
	// was stored.
	Changed bool

	// FirstVisit is true when the URL had no stored hash.
	FirstVisit bool
}

// Detector compares page bodies with their previous versions.
type Detector struct {
	store Store
}

// NewDetector returns a Detector backed by store. A nil store uses a new
// MemoryStore.
func NewDetector(store Store) *Detector {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Detector{store: store}
}

// HasChanged reports whether body differs from the previous body seen for
// url, and records the new hash. On a store error it reports true together
// with the error, so a failing store never hides content.
func (d *Detector) HasChanged(ctx context.Context, url string, body []byte) (bool, error) {
	res, err := d.Check(ctx, url, body)
	return res.Changed, err
}

// Check is HasChanged with the digest included in the result.
func (d *Detector) Check(ctx context.Context, url string, body []byte) (Result, error) {
	res := Result{Hash: Hash(body), Changed: true}
	if url == "" {
		return res, ErrEmptyURL
	}

	prev, ok, err := d.store.LastHash(ctx, url)
	if err != nil {
		return res, fmt.Errorf("%w: read %s: %v", ErrStore, url, err)
	}
	res.FirstVisit = !ok
	res.Changed = !ok || prev != res.Hash

	if res.Changed {
		if err := d.store.SetHash(ctx, url, res.Hash); err != nil {
			return res, fmt.Errorf("%w: write %s: %v", ErrStore, url, err)
		}
	}
	return res, nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	hashes map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hashes: make(map[string]string)}
}

// LastHash implements Store.
func (m *MemoryStore) LastHash(_ context.Context, url string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hashes[url]
	return h, ok, nil
}

// SetHash implements Store.
func (m *MemoryStore) SetHash(_ context.Context, url, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[url] = hash
	return nil
}

// Len returns the number of stored hashes.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hashes)
}
