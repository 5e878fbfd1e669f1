package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vxextract/internal/ledger"
)

// runMetrics holds the Prometheus collectors of one session. Each session
// uses its own registry so the textfile reflects only that run.
type runMetrics struct {
	registry    *prometheus.Registry
	jobs        *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	lastRun     prometheus.Gauge
	runDuration prometheus.Gauge
	runSuccess  prometheus.Gauge
}

func newRunMetrics() *runMetrics {
	m := &runMetrics{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vxextract",
			Name:      "jobs_total",
			Help:      "Jobs finished in the last run, by stage and outcome.",
		}, []string{"stage", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vxextract",
			Name:      "job_duration_seconds",
			Help:      "Job duration in the last run, by stage.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"stage"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vxextract",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run started.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vxextract",
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		runSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vxextract",
			Name:      "last_run_success",
			Help:      "1 if the last run finished without failures, else 0.",
		}),
	}
	m.registry.MustRegister(m.jobs, m.jobDuration, m.lastRun, m.runDuration, m.runSuccess)
	return m
}

func (m *runMetrics) observe(stage string, outcome ledger.Outcome, elapsed time.Duration) {
	m.jobs.WithLabelValues(stage, string(outcome)).Inc()
	m.jobDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *runMetrics) finish(started time.Time, elapsed time.Duration, success bool) {
	m.lastRun.Set(float64(started.Unix()))
	m.runDuration.Set(elapsed.Seconds())
	if success {
		m.runSuccess.Set(1)
	} else {
		m.runSuccess.Set(0)
	}
}

// writeTextfile writes the registry in the text exposition format for the
// node_exporter textfile collector.
func (m *runMetrics) writeTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics textfile directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
