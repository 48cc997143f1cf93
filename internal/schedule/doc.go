// Package schedule decides when a crawled URL is due for another visit.
//
// A Scheduler remembers the last crawl time of every URL it is told about
// and reports a URL as due once the recrawl interval has passed. URLs that
// were never crawled are always due. The clock is injectable so tests can
// move time forward.
package schedule
