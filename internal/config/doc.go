// Package config provides configuration structures and utilities for the
// crawler. It defines the crawl limits, politeness and retry settings,
// failure isolation thresholds and the per-domain settings read from the
// YAML configuration file.
package config
