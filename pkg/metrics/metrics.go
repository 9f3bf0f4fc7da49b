// Package metrics exposes prometheus collectors for ingestion and reconciliation.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "delivery_ledger"

// Metrics groups the collectors used across the ingestion path.
type Metrics struct {
	FilesProcessed *prometheus.CounterVec
	ExtractedRows  *prometheus.CounterVec
	LedgerWrites   *prometheus.CounterVec
	BucketChanges  *prometheus.CounterVec
	BatchDuration  *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Files previewed, by file type and outcome.",
		}, []string{"file_type", "outcome"}),
		ExtractedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extracted_rows_total",
			Help:      "Rows extracted from documents, by winning strategy.",
		}, []string{"strategy"}),
		LedgerWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_writes_total",
			Help:      "Rows inserted into the delivery ledger, by status.",
		}, []string{"status"}),
		BucketChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bucket_changes_total",
			Help:      "In-transit bucket mutations, by action.",
		}, []string{"action"}),
		BatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_apply_seconds",
			Help:      "Time spent applying one batch to the store.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode", "outcome"}),
	}

	if reg != nil {
		reg.MustRegister(m.FilesProcessed, m.ExtractedRows, m.LedgerWrites, m.BucketChanges, m.BatchDuration)
	}
	return m
}

func (m *Metrics) ObserveFile(fileType, outcome string) {
	if m == nil {
		return
	}
	m.FilesProcessed.WithLabelValues(fileType, outcome).Inc()
}

func (m *Metrics) ObserveExtraction(strategy string, rows int) {
	if m == nil {
		return
	}
	if strategy == "" {
		strategy = "none"
	}
	m.ExtractedRows.WithLabelValues(strategy).Add(float64(rows))
}

func (m *Metrics) ObserveLedgerWrites(status string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.LedgerWrites.WithLabelValues(status).Add(float64(n))
}

func (m *Metrics) ObserveBuckets(action string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.BucketChanges.WithLabelValues(action).Add(float64(n))
}

func (m *Metrics) ObserveBatch(mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.WithLabelValues(mode, outcome).Observe(d.Seconds())
}
