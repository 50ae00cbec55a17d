package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sguter90/weatherlog/pkg/version"
)

const namespace = "weatherlog"

var (
	// IngestCounter counts accepted station uploads by protocol
	IngestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_total",
			Help:      "Count of accepted station uploads",
		},
		[]string{"station_type"},
	)

	// IngestRejectedCounter counts uploads refused before storage
	IngestRejectedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rejected_total",
			Help:      "Count of rejected station uploads",
		},
		[]string{"station_type", "reason"},
	)

	// StorageErrorCounter counts failed reading log operations
	StorageErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Count of failed reading log operations",
		},
		[]string{"op"},
	)

	// ArchiveRunCounter counts archive runs by outcome
	ArchiveRunCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_runs_total",
			Help:      "Count of archive runs",
		},
		[]string{"outcome"},
	)

	// ArchivedRowsCounter counts rows written to the remote store
	ArchivedRowsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archived_rows_total",
			Help:      "Count of rows written to the archive",
		},
	)

	// LastReadingGauge holds the epoch seconds of the newest stored reading
	LastReadingGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_reading_timestamp_seconds",
			Help:      "Timestamp of the most recently stored reading",
		},
	)

	// RequestDuration observes HTTP handler latency
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "code"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Information about the current build of the service",
		},
		[]string{"name", "version", "build_date"},
	)
)

// Register registers all service collectors with the default registry. It may
// be called more than once.
func Register() {
	MustRegister(IngestCounter)
	MustRegister(IngestRejectedCounter)
	MustRegister(StorageErrorCounter)
	MustRegister(ArchiveRunCounter)
	MustRegister(ArchivedRowsCounter)
	MustRegister(LastReadingGauge)
	MustRegister(RequestDuration)
	MustRegister(buildInfo)

	buildInfo.WithLabelValues(version.BinaryName, version.Version, version.BuildDate).Set(1)
}

// MustRegister wraps prometheus.MustRegister, replacing a collector that was
// already registered instead of panicking.
func MustRegister(c prometheus.Collector) {
	err := prometheus.Register(c)
	if err != nil {
		if prometheus.Unregister(c) {
			prometheus.MustRegister(c)
		} else {
			panic(err)
		}
	}
}
