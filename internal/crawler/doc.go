// Package crawler is the crawl engine: it owns the frontier, the politeness
// components and the per-domain state, and runs them as one lifecycle.
//
// # Lifecycle
//
// A Crawler starts Idle. Start moves it to Running, Pause and Resume toggle
// between Running and Paused, and Stop drains in-flight fetches and ends in
// Stopped. An unrecoverable internal fault, such as an inconsistent
// frontier, moves it to Error. Invalid transitions are logged and reported
// with ErrInvalidTransition; they never change the state.
//
// # Work
//
// A dispatcher dequeues entries from the frontier while a worker slot is
// free and runs each entry through a pipeline.Pipeline: schedule check,
// robots.txt, fetch, extraction, change detection and emission to the Sink.
// The outcome is recorded with MarkPageCrawled, the single place where
// domain state, statistics and the dedup cache are updated, and discovered
// links of registered domains are enqueued.
//
// # Usage
//
//	c, err := crawler.New(cfg, crawler.WithSink(store))
//	if err != nil {
//		return err
//	}
//	_ = c.AddDomain("example.se", 5, true)
//	_ = c.AddSeed("https://example.se/")
//	if err := c.Start(ctx); err != nil {
//		return err
//	}
//	_ = c.Wait(ctx)
//	_ = c.Stop()
package crawler
