// Package model defines the data structures shared by the crawler packages.
//
// This package contains the following main types:
//   - PageRecord: the extracted result of one successfully fetched page,
//     handed to the downstream storage sink
//   - DomainState: the per-domain counters and health kept by the core
//   - FetchResult: the outcome of a single HTTP fetch including retries
//
// The types live in their own package so that fetcher, crawler, database
// and report can share them without import cycles. All of them serialize
// to JSON for reports and storage.
package model
