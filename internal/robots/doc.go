// Package robots decides whether the crawler may fetch a URL according to
// the site's robots.txt, and reports the Crawl-delay the site asks for.
//
// Rules are fetched through the crawler's own HTTP client, parsed with
// github.com/temoto/robotstxt and cached per host for a TTL (24 hours by
// default). Concurrent lookups for an uncached host share one fetch.
//
// # Failure handling
//
//   - 2xx: the file is parsed and its rules apply
//   - 3xx that cannot be followed and 4xx: the site has no usable
//     robots.txt and everything is allowed
//   - network errors, 429 and 5xx: the file is unreachable and the
//     configured Policy decides; the failure is cached for a shorter TTL
//     so the host is retried soon
//
// The default PolicyAllow crawls hosts whose robots.txt is unreachable.
// PolicyDeny skips them until the failure entry expires.
package robots
