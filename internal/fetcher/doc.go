// Package fetcher performs HTTP GET requests for the crawler with retries,
// per-host politeness and bounded, decoded response bodies.
//
// # Failure classification
//
// Every fetch ends in exactly one model.FailureKind:
//   - FailureNone: a 2xx response was read within the size limit
//   - FailureTransient: timeouts, connection resets, 429 and 5xx responses;
//     these are retried with exponential backoff until the retry budget is
//     spent
//   - FailureTerminal: other 4xx responses, malformed URLs, TLS failures,
//     unknown hosts and oversized bodies; these are never retried
//   - FailureCanceled: the caller's context ended
//
// A fetch never sends more than MaxRetries+1 requests.
//
// # Politeness
//
// Before each attempt the client waits on a HostLimiter, which spaces
// requests to one host by the larger of the global and the per-call crawl
// delay, and optionally applies a token-bucket rate limit from
// golang.org/x/time/rate.
//
// # Usage
//
//	client, err := fetcher.New(fetcher.WithUserAgent(ua))
//	res := client.Fetch(ctx, "https://example.se/", fetcher.Options{
//	    Timeout:    10 * time.Second,
//	    MaxRetries: 3,
//	    CrawlDelay: time.Second,
//	})
//	if res.OK() { ... }
package fetcher
