package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "climate_pipeline"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// climate pipeline.
type Metrics struct {
	FilesRead        prometheus.Counter
	RowsRead         prometheus.Counter
	RowsRejected     *prometheus.CounterVec // labels: reason
	ArtifactsWritten *prometheus.CounterVec // labels: artifact
	RecordsPublished prometheus.Counter

	Observations prometheus.Gauge
	Years        prometheus.Gauge
	Countries    prometheus.Gauge
	LastSuccess  prometheus.Gauge

	StageDuration *prometheus.HistogramVec // labels: stage

	// Geocoding metrics.
	CountriesLocated   *prometheus.CounterVec // labels: outcome={found,empty,failed}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram

	gatherer prometheus.Gatherer
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_read_total",
			Help:      "Total CSV files read from the data directory.",
		}),
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Total CSV data rows read, valid or not.",
		}),
		RowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_rejected_total",
			Help:      "CSV rows rejected during validation, by reason.",
		}, []string{"reason"}),
		ArtifactsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_written_total",
			Help:      "Artifacts committed to disk, by file name.",
		}, []string{"artifact"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Trend records written to Kafka.",
		}),
		Observations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observations",
			Help:      "Valid observations in the last aggregation.",
		}),
		Years: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "years",
			Help:      "Distinct years in the last global trend series.",
		}),
		Countries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "countries",
			Help:      "Distinct countries in the last country trend set.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful stage.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of a pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		CountriesLocated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "countries_located_total",
			Help:      "Country geocoding lookups by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FilesRead,
		m.RowsRead,
		m.RowsRejected,
		m.ArtifactsWritten,
		m.RecordsPublished,
		m.Observations,
		m.Years,
		m.Countries,
		m.LastSuccess,
		m.StageDuration,
		m.CountriesLocated,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	m.gatherer = prometheus.DefaultGatherer
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.collectors()...)
	m.gatherer = reg
	return m
}

// WriteTextfile dumps the registry in the Prometheus text format, for the
// node_exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
