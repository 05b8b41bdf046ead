package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects per-run stage timings and outcome. Each run gets its own
// registry so the textfile holds exactly one run.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	runSuccess    prometheus.Gauge
	runDuration   prometheus.Gauge
	lastRun       prometheus.Gauge
	artifactBytes prometheus.Gauge
}

// NewMetrics creates metrics registered on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "winona",
				Subsystem: "workflow",
				Name:      "stage_duration_seconds",
				Help:      "Duration spent in each workflow stage.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"stage", "status"},
		),
		stageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "winona",
				Subsystem: "workflow",
				Name:      "stage_failures_total",
				Help:      "Stage executions that failed, by reason.",
			},
			[]string{"stage", "reason"},
		),
		runSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "winona",
			Name:      "run_success",
			Help:      "1 if the last run captured an artifact, 0 otherwise.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "winona",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "winona",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		artifactBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "winona",
			Name:      "artifact_size_bytes",
			Help:      "Size of the captured report file.",
		}),
	}

	m.registry.MustRegister(m.stageDuration, m.stageFailures, m.runSuccess, m.runDuration, m.lastRun, m.artifactBytes)
	return m
}

// ObserveStage records the time spent in a stage with its status label.
func (m *Metrics) ObserveStage(stage Stage, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(string(stage), status).Observe(duration.Seconds())
}

// IncStageFailure counts a failed stage.
func (m *Metrics) IncStageFailure(stage Stage, reason string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(string(stage), reason).Inc()
}

// ObserveRun records the outcome of a finished run.
func (m *Metrics) ObserveRun(result *Result) {
	if m == nil || result == nil {
		return
	}
	if result.Success {
		m.runSuccess.Set(1)
	} else {
		m.runSuccess.Set(0)
	}
	m.runDuration.Set(result.Duration.Seconds())
	m.lastRun.Set(float64(result.EndTime.Unix()))

	if result.ArtifactPath != "" {
		if info, err := os.Stat(result.ArtifactPath); err == nil {
			m.artifactBytes.Set(float64(info.Size()))
		}
	}
}

// WriteTextfile writes the metrics in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
