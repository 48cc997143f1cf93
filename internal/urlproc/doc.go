// Package urlproc canonicalizes URLs for the crawler.
//
// Every URL that enters the frontier goes through Normalize first, so two
// spellings of the same resource (different case, default port, fragment,
// unordered query parameters, trailing slash) collapse into one CanonicalURL
// and one DedupKey.
//
// The functions in this package are pure and hold no shared state; they are
// safe to call from any number of goroutines.
//
// # Normalization rules
//
//   - scheme and host are lowercased, a trailing dot and a leading "www."
//     are removed from the host
//   - default ports (80 for http, 443 for https) are dropped
//   - userinfo and fragment are dropped
//   - dot segments are resolved, a trailing slash is removed except for the
//     root path, and an empty path becomes "/"
//   - query parameters are sorted by key, then by value
//
// Normalize is idempotent: normalizing the string form of a CanonicalURL
// yields the same CanonicalURL.
package urlproc
