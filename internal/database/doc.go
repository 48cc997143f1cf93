// Package database stores crawled pages in SQLite.
//
// PageStore is the persistence sink of the crawler. It keeps the latest
// PageRecord of every URL, answers recrawl questions ("when was this URL
// last crawled?") when a new session starts, and summarizes pages per
// domain for status reports. HashStore exposes the content hash table to
// the change detector so change history survives restarts.
//
// The driver is modernc.org/sqlite, which needs no cgo. The database is a
// single file in WAL mode with one writer connection.
package database
