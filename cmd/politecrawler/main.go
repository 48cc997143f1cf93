// Package main provides the entry point for the politecrawler CLI.
//
// politecrawler crawls a set of registered domains politely: it honors
// robots.txt, spaces requests to each host, suspends failing domains and
// stores every fetched page in a local SQLite database.
//
// Usage:
//
//	politecrawler crawl https://example.se/ https://news.example.no/
//	politecrawler status
//
// See --help for all available options.
package main

// main is the entry point for politecrawler.
func main() {
	Execute()
}
