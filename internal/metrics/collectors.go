package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SummarySource exposes point-in-time dispatch counters
type SummarySource interface {
	Totals() (total, successful, failed, voice int64)
}

// QueueSource exposes the voice pipeline queue depth
type QueueSource interface {
	QueueSize() int
}

// BusCollector exports aggregator counters as gauges on every scrape
type BusCollector struct {
	stats SummarySource
	voice QueueSource

	dispatchTotal *prometheus.Desc
	voiceSent     *prometheus.Desc
	queueSize     *prometheus.Desc
}

// NewBusCollector creates a collector over the stats aggregator and voice pipeline.
// Either source may be nil.
func NewBusCollector(stats SummarySource, voice QueueSource) *BusCollector {
	return &BusCollector{
		stats: stats,
		voice: voice,

		dispatchTotal: prometheus.NewDesc(
			"alertbus_session_dispatches",
			"Dispatch attempts recorded since the last stats reset",
			[]string{"status"}, nil,
		),
		voiceSent: prometheus.NewDesc(
			"alertbus_session_voice_alerts",
			"Voice alerts sent since the last stats reset",
			nil, nil,
		),
		queueSize: prometheus.NewDesc(
			"alertbus_voice_queue_size",
			"Voice alerts currently queued",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *BusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.dispatchTotal
	ch <- c.voiceSent
	ch <- c.queueSize
}

// Collect implements prometheus.Collector
func (c *BusCollector) Collect(ch chan<- prometheus.Metric) {
	if c.stats != nil {
		total, successful, failed, voice := c.stats.Totals()
		ch <- prometheus.MustNewConstMetric(c.dispatchTotal, prometheus.GaugeValue, float64(total), "total")
		ch <- prometheus.MustNewConstMetric(c.dispatchTotal, prometheus.GaugeValue, float64(successful), "success")
		ch <- prometheus.MustNewConstMetric(c.dispatchTotal, prometheus.GaugeValue, float64(failed), "failed")
		ch <- prometheus.MustNewConstMetric(c.voiceSent, prometheus.GaugeValue, float64(voice))
	}
	if c.voice != nil {
		ch <- prometheus.MustNewConstMetric(c.queueSize, prometheus.GaugeValue, float64(c.voice.QueueSize()))
	}
}
