// Package metrics exposes batch queue statistics as Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/tourneyq/internal/batch"
)

const namespace = "tourneyq"

// StatsSource is anything that reports queue statistics, such as *batch.Queue
// or *batch.Default.
type StatsSource interface {
	Stats() batch.Snapshot
}

// QueueCollector reads a fresh Snapshot on every scrape. The queue is not
// safe for concurrent use, so only scrape while nothing is enqueuing.
type QueueCollector struct {
	source StatsSource

	pages         *prometheus.Desc
	succeeded     *prometheus.Desc
	failed        *prometheus.Desc
	seconds       *prometheus.Desc
	successRate   *prometheus.Desc
	avgPage       *prometheus.Desc
	pageSize      *prometheus.Desc
	errorsPending *prometheus.Desc
}

// NewQueueCollector returns a collector over source. constLabels are attached
// to every metric, e.g. {"batch": "weekly.yaml"}.
func NewQueueCollector(source StatsSource, constLabels prometheus.Labels) *QueueCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "queue", name), help, nil, constLabels)
	}
	return &QueueCollector{
		source:        source,
		pages:         desc("pages_processed_total", "Pages flushed, including failed pages."),
		succeeded:     desc("operations_successful_total", "Operations applied successfully."),
		failed:        desc("operations_failed_total", "Operations that failed, counted once per attempt."),
		seconds:       desc("processing_seconds_total", "Wall time spent flushing pages."),
		successRate:   desc("success_rate_percent", "Successful operations as a percentage of all attempts."),
		avgPage:       desc("avg_page_seconds", "Mean time to flush one page."),
		pageSize:      desc("current_page_operations", "Operations buffered and not yet flushed."),
		errorsPending: desc("errors_pending", "Failed operations waiting in the error queue."),
	}
}

// Describe implements prometheus.Collector.
func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pages
	ch <- c.succeeded
	ch <- c.failed
	ch <- c.seconds
	ch <- c.successRate
	ch <- c.avgPage
	ch <- c.pageSize
	ch <- c.errorsPending
}

// Collect implements prometheus.Collector.
func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()

	ch <- prometheus.MustNewConstMetric(c.pages, prometheus.CounterValue, float64(s.PagesProcessed))
	ch <- prometheus.MustNewConstMetric(c.succeeded, prometheus.CounterValue, float64(s.OperationsSuccessful))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(s.OperationsFailed))
	ch <- prometheus.MustNewConstMetric(c.seconds, prometheus.CounterValue, s.TotalProcessingTime)
	ch <- prometheus.MustNewConstMetric(c.successRate, prometheus.GaugeValue, s.SuccessRate)
	ch <- prometheus.MustNewConstMetric(c.avgPage, prometheus.GaugeValue, s.AvgPageTime)
	ch <- prometheus.MustNewConstMetric(c.pageSize, prometheus.GaugeValue, float64(s.CurrentPageSize))
	ch <- prometheus.MustNewConstMetric(c.errorsPending, prometheus.GaugeValue, float64(s.ErrorsPending))
}

// WriteTextfile writes source's metrics to path in the Prometheus text
// format. The file is replaced atomically.
func WriteTextfile(path string, source StatsSource, constLabels prometheus.Labels) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewQueueCollector(source, constLabels)); err != nil {
		return fmt.Errorf("register queue collector: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
