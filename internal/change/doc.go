// Package change detects whether a page's content differs from the last
// time it was crawled.
//
// A Detector hashes the response body with SHA3-256 and compares the digest
// with the one kept in a Store. The first visit of a URL is always a
// change. Stores are pluggable: MemoryStore keeps hashes for the lifetime
// of the process, RedisStore shares them between runs and processes, and
// the database package provides a SQLite backed store.
package change
