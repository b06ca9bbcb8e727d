// Package metrics exposes Prometheus instrumentation for mirror jobs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sitemirror"

// Download results used as label values.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Collector holds every mirror metric. One Collector is shared by all jobs
// of a process; its methods are safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	PagesVisited        prometheus.Counter
	NavigationFailures  prometheus.Counter
	ResourcesDiscovered prometheus.Counter
	Downloads           *prometheus.CounterVec
	DownloadBytes       prometheus.Counter
	DownloadDuration    prometheus.Histogram
	RewrittenFiles      prometheus.Counter
	Snapshots           prometheus.Counter
	FrontierPendingURLs prometheus.Gauge
}

// New creates a Collector registered on a fresh registry together with
// the Go runtime and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		PagesVisited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_visited_total",
			Help:      "Total number of pages loaded by the crawl driver.",
		}),
		NavigationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigation_failures_total",
			Help:      "Total number of pages skipped after failed navigation.",
		}),
		ResourcesDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resources_discovered_total",
			Help:      "Total number of same-origin resources added to a ledger.",
		}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Total number of download attempts, labeled by result.",
		}, []string{"result"}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Total number of bytes written by successful downloads.",
		}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Duration of download attempts in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		RewrittenFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewritten_files_total",
			Help:      "Total number of text assets rewritten.",
		}),
		Snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Total number of DOM snapshots saved.",
		}),
		FrontierPendingURLs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frontier_pending",
			Help:      "Links waiting to be visited in the running job.",
		}),
	}

	c.registry.MustRegister(
		c.PagesVisited,
		c.NavigationFailures,
		c.ResourcesDiscovered,
		c.Downloads,
		c.DownloadBytes,
		c.DownloadDuration,
		c.RewrittenFiles,
		c.Snapshots,
		c.FrontierPendingURLs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// PageVisited counts a loaded page.
func (c *Collector) PageVisited() {
	c.PagesVisited.Inc()
}

// NavigationFailed counts a skipped page.
func (c *Collector) NavigationFailed() {
	c.NavigationFailures.Inc()
}

// SnapshotSaved counts a saved snapshot.
func (c *Collector) SnapshotSaved() {
	c.Snapshots.Inc()
}

// FrontierPending sets the pending link gauge.
func (c *Collector) FrontierPending(n int) {
	c.FrontierPendingURLs.Set(float64(n))
}

// ResourceDiscovered counts a new ledger entry.
func (c *Collector) ResourceDiscovered() {
	c.ResourcesDiscovered.Inc()
}

// ObserveDownload records one download attempt.
func (c *Collector) ObserveDownload(ok bool, bytes int64, elapsed time.Duration) {
	result := ResultFailed
	if ok {
		result = ResultOK
		c.DownloadBytes.Add(float64(bytes))
	}
	c.Downloads.WithLabelValues(result).Inc()
	c.DownloadDuration.Observe(elapsed.Seconds())
}

// FileRewritten counts a rewritten asset.
func (c *Collector) FileRewritten() {
	c.RewrittenFiles.Inc()
}
