// Package extract turns a fetched HTML body into the content the crawler
// stores and the links it follows.
//
// Parse decodes the body into an immutable Document. Everything else in the
// package is a pure function of a Document: Title, Description, Keywords,
// Text and Links each read the tree without modifying it, so a Document can
// be shared between goroutines once parsed. Extract runs the whole pipeline
// in a fixed order and returns a Content value.
//
// Pagination detection lives in IsPagination. It recognizes "next page"
// style anchors by rel attribute, by anchor text (English and Swedish) and
// by common URL patterns such as ?page=2 or /page/2.
package extract
