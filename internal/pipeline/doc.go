// Package pipeline runs the per-page work of the crawler as an ordered list
// of steps.
//
// A Job carries one frontier entry through the steps. Each step reads what
// earlier steps left on the Job and adds its own results: the schedule check,
// the robots.txt check, the fetch, content extraction, change detection and
// finally emission of the PageRecord to a Sink.
//
// A step ends the run early in two ways. Skip marks the Job as deliberately
// not crawled (disallowed by robots.txt, crawled too recently); the pipeline
// stops without an error. Returning an error stops the pipeline as well, and
// the caller inspects Job.Fetch to decide how the page is accounted.
package pipeline
