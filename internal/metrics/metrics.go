// Package metrics exposes amlboard's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/amlboard/internal/domain"
)

var casesDesc = prometheus.NewDesc(
	"amlboard_cases",
	"Cases in the loaded dataset by typology and SAR status",
	[]string{"typology", "sar"},
	nil,
)

// Snapshotter returns the dataset currently being served.
type Snapshotter interface {
	Snapshot() *domain.Dataset
}

// DatasetCollector is a custom collector that reads case counts from the
// current dataset on each scrape.
type DatasetCollector struct {
	source Snapshotter
}

// Describe sends the metric descriptor to the channel.
func (c *DatasetCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- casesDesc
}

// Collect groups the current cases and emits them as gauges.
func (c *DatasetCollector) Collect(ch chan<- prometheus.Metric) {
	ds := c.source.Snapshot()
	if ds == nil {
		return
	}

	type key struct {
		typology domain.Typology
		sar      bool
	}
	counts := make(map[key]int)
	for _, cs := range ds.Cases {
		counts[key{cs.Typology, cs.SAR}]++
	}
	for k, n := range counts {
		ch <- prometheus.MustNewConstMetric(
			casesDesc,
			prometheus.GaugeValue,
			float64(n),
			string(k.typology),
			strconv.FormatBool(k.sar),
		)
	}
}

// Metrics holds amlboard's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	classifications *prometheus.CounterVec
	reportBuilds    prometheus.Counter
	cacheLookups    *prometheus.CounterVec
	datasetLoads    *prometheus.CounterVec
}

// New creates and registers the amlboard collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "amlboard_classifications_total",
			Help: "Scenarios classified, by resulting typology",
		}, []string{"typology"}),
		reportBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amlboard_report_builds_total",
			Help: "Reports computed from case data (cache misses included)",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "amlboard_report_cache_lookups_total",
			Help: "Report cache lookups by outcome",
		}, []string{"outcome"}),
		datasetLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "amlboard_dataset_loads_total",
			Help: "Dataset loads by outcome",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.classifications,
		m.reportBuilds,
		m.cacheLookups,
		m.datasetLoads,
		prometheus.NewGoCollector(),
	)
	return m
}

// WatchDataset registers a collector reporting the cases held by source.
// Must be called at most once.
func (m *Metrics) WatchDataset(source Snapshotter) {
	if m == nil {
		return
	}
	m.registry.MustRegister(&DatasetCollector{source: source})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordClassification counts one classified scenario.
func (m *Metrics) RecordClassification(t domain.Typology) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(string(t)).Inc()
}

// RecordReportBuild counts one computed report.
func (m *Metrics) RecordReportBuild() {
	if m == nil {
		return
	}
	m.reportBuilds.Inc()
}

// RecordCacheLookup counts a report cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

// RecordDatasetLoad counts a dataset load attempt.
func (m *Metrics) RecordDatasetLoad(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.datasetLoads.WithLabelValues(outcome).Inc()
}
