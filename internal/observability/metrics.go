// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Analysis metrics
	AnalysesTotal    *prometheus.CounterVec
	PeaksDetected    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram

	// Calibration metrics
	CalibrationRequests *prometheus.CounterVec
	CalibrationErrors   *prometheus.CounterVec
	ConditionsTrained   *prometheus.CounterVec
	TrainingRuns        *prometheus.CounterVec
	TrainingDuration    prometheus.Histogram
	RegistryVersion     prometheus.Gauge
	CalibrationModels   prometheus.Gauge

	// Ingestion metrics
	FramesReceived  prometheus.Counter
	FramesStored    prometheus.Counter
	IngestionErrors *prometheus.CounterVec
	WSReconnects    prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "cvlab"
	}

	return &Metrics{
		// Analysis metrics
		AnalysesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "waveforms_total",
			Help:      "Total number of waveforms analyzed by outcome",
		}, []string{"outcome"}),
		PeaksDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "peaks_total",
			Help:      "Total number of peaks reported by type and enabled flag",
		}, []string{"type", "enabled"}),
		AnalysisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Single waveform analysis duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),

		// Calibration metrics
		CalibrationRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calibration",
			Name:      "requests_total",
			Help:      "Total number of calibration requests by method",
		}, []string{"method"}),
		CalibrationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calibration",
			Name:      "errors_total",
			Help:      "Total number of calibration errors by code",
		}, []string{"code"}),
		ConditionsTrained: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calibration",
			Name:      "conditions_trained_total",
			Help:      "Total number of condition fits by outcome",
		}, []string{"outcome"}),
		TrainingRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calibration",
			Name:      "training_runs_total",
			Help:      "Total number of training runs by status",
		}, []string{"status"}),
		TrainingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "calibration",
			Name:      "training_duration_seconds",
			Help:      "Training run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		RegistryVersion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "calibration",
			Name:      "registry_version",
			Help:      "Version of the published calibration snapshot",
		}),
		CalibrationModels: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "calibration",
			Name:      "models",
			Help:      "Number of condition-specific models being served",
		}),

		// Ingestion metrics
		FramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "frames_received_total",
			Help:      "Total number of waveform frames received",
		}),
		FramesStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "frames_stored_total",
			Help:      "Total number of waveform frames persisted",
		}),
		IngestionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by stage",
		}, []string{"stage"}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ws_reconnects_total",
			Help:      "Total number of websocket reconnect attempts",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "status"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordAnalysis records one analyzed waveform and its peaks.
func RecordAnalysis(empty bool, seconds float64) {
	outcome := "peaks"
	if empty {
		outcome = "empty"
	}
	DefaultMetrics.AnalysesTotal.WithLabelValues(outcome).Inc()
	DefaultMetrics.AnalysisDuration.Observe(seconds)
}

// RecordPeak records a reported peak.
func RecordPeak(peakType string, enabled bool) {
	e := "false"
	if enabled {
		e = "true"
	}
	DefaultMetrics.PeaksDetected.WithLabelValues(peakType, e).Inc()
}

// RecordCalibration records a served calibration by method.
func RecordCalibration(method string) {
	DefaultMetrics.CalibrationRequests.WithLabelValues(method).Inc()
}

// RecordCalibrationError records a failed calibration request.
func RecordCalibrationError(code string) {
	DefaultMetrics.CalibrationErrors.WithLabelValues(code).Inc()
}

// RecordConditionFit records an accepted or rejected condition fit.
func RecordConditionFit(accepted bool) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	DefaultMetrics.ConditionsTrained.WithLabelValues(outcome).Inc()
}

// RecordTrainingRun records a finished training run.
func RecordTrainingRun(status string, seconds float64) {
	DefaultMetrics.TrainingRuns.WithLabelValues(status).Inc()
	DefaultMetrics.TrainingDuration.Observe(seconds)
}

// UpdateRegistry updates the registry gauges after a publish.
func UpdateRegistry(version int64, models int) {
	DefaultMetrics.RegistryVersion.Set(float64(version))
	DefaultMetrics.CalibrationModels.Set(float64(models))
}

// RecordFrame records a received frame and whether it was stored.
func RecordFrame(stored bool) {
	DefaultMetrics.FramesReceived.Inc()
	if stored {
		DefaultMetrics.FramesStored.Inc()
	}
}

// RecordIngestionError records an ingestion failure at a stage.
func RecordIngestionError(stage string) {
	DefaultMetrics.IngestionErrors.WithLabelValues(stage).Inc()
}

// RecordReconnect records a websocket reconnect attempt.
func RecordReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTPRequest records a handled HTTP request.
func RecordHTTPRequest(route string, status int) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, httpStatusClass(status)).Inc()
}

func httpStatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
