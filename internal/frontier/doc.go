// Package frontier implements the crawl frontier: the set of discovered but
// not yet fetched URLs.
//
// The frontier deduplicates by urlproc.DedupKey, caps the number of URLs
// admitted per domain, and hands entries out in an order that balances
// priority against fairness:
//
//   - across domains, a smooth weighted round-robin picks the next domain,
//     weighted by the domain's configured priority
//   - no domain is served more than MaxConsecutive times in a row while
//     another eligible domain still has pending entries
//   - within a domain, the highest priority score wins and ties are broken
//     by discovery order
//
// Every entry is handed out exactly once. The only way back in is
// Reschedule, used by the recrawl scheduler.
//
// All methods are safe for concurrent use and never block on I/O.
package frontier
