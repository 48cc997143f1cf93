package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// namespace prefixes every exported metric.
const namespace = "politecrawler"

// collector exports a Statistics snapshot on every scrape.
type collector struct {
	stats *Statistics

	pages       *prometheus.Desc
	bytes       *prometheus.Desc
	changed     *prometheus.Desc
	skipped     *prometheus.Desc
	retries     *prometheus.Desc
	successRate *prometheus.Desc
	avgBytes    *prometheus.Desc
}

// NewCollector returns a prometheus.Collector reading from st.
func NewCollector(st *Statistics) prometheus.Collector {
	return &collector{
		stats: st,
		pages: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "pages_total"),
			"Pages fetched, by result.",
			[]string{"result"}, nil,
		),
		bytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "bytes_downloaded_total"),
			"Body bytes of successfully fetched pages.",
			nil, nil,
		),
		changed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "changed_pages_total"),
			"Pages whose content changed since the previous visit.",
			nil, nil,
		),
		skipped: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "urls_skipped_total"),
			"URLs not fetched, by reason.",
			[]string{"reason"}, nil,
		),
		retries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "fetch_retries_total"),
			"Fetch attempts beyond the first.",
			nil, nil,
		),
		successRate: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "success_rate"),
			"Share of fetched pages that succeeded.",
			nil, nil,
		),
		avgBytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "average_page_bytes"),
			"Mean body size of successful pages.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pages
	ch <- c.bytes
	ch <- c.changed
	ch <- c.skipped
	ch <- c.retries
	ch <- c.successRate
	ch <- c.avgBytes
}

// Collect implements prometheus.Collector.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.pages, prometheus.CounterValue, float64(s.PagesCrawled), "success")
	ch <- prometheus.MustNewConstMetric(c.pages, prometheus.CounterValue, float64(s.PagesFailed), "failure")
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(s.BytesDownloaded))
	ch <- prometheus.MustNewConstMetric(c.changed, prometheus.CounterValue, float64(s.ChangedPages))
	ch <- prometheus.MustNewConstMetric(c.skipped, prometheus.CounterValue, float64(s.RobotsBlocked), "robots")
	ch <- prometheus.MustNewConstMetric(c.skipped, prometheus.CounterValue, float64(s.InvalidURLs), "invalid")
	ch <- prometheus.MustNewConstMetric(c.skipped, prometheus.CounterValue, float64(s.Duplicates), "duplicate")
	ch <- prometheus.MustNewConstMetric(c.skipped, prometheus.CounterValue, float64(s.CappedURLs), "capped")
	ch <- prometheus.MustNewConstMetric(c.retries, prometheus.CounterValue, float64(s.Retries))
	ch <- prometheus.MustNewConstMetric(c.successRate, prometheus.GaugeValue, s.SuccessRate())
	ch <- prometheus.MustNewConstMetric(c.avgBytes, prometheus.GaugeValue, s.AverageBytesPerPage())
}
