// Package metrics holds the Prometheus instruments shared by writers and
// readers. Instruments live on a caller-owned registry, never the global one.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the storage counters, labelled by backend kind.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RecordsAccepted  *prometheus.CounterVec
	RecordsCommitted *prometheus.CounterVec
	BatchesCommitted *prometheus.CounterVec
	CommitFailures   *prometheus.CounterVec
	CommitDuration   *prometheus.HistogramVec
	ScansOpened      *prometheus.CounterVec
	ScanFaults       *prometheus.CounterVec
	ScansTruncated   *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RecordsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fsindex",
			Name:      "records_accepted_total",
			Help:      "Records accepted into writer buffers.",
		}, []string{"backend"}),
		RecordsCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fsindex",
			Name:      "records_committed_total",
			Help:      "Records durably committed.",
		}, []string{"backend"}),
		BatchesCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fsindex",
			Name:      "batches_committed_total",
			Help:      "Atomic batch commits that succeeded.",
		}, []string{"backend"}),
		CommitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fsindex",
			Name:      "commit_failures_total",
			Help:      "Batch commit attempts that failed.",
		}, []string{"backend"}),
		CommitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fsindex",
			Name:      "commit_duration_seconds",
			Help:      "Wall time of successful batch commits.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
		ScansOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fsindex",
			Name:      "scans_opened_total",
			Help:      "Ordered scans opened by readers.",
		}, []string{"backend"}),
		ScanFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fsindex",
			Name:      "scan_faults_total",
			Help:      "Malformed rows skipped during scans.",
		}, []string{"backend"}),
		ScansTruncated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fsindex",
			Name:      "scans_truncated_total",
			Help:      "Scans ended early by the malformed row cap.",
		}, []string{"backend"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fsindex",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route pattern and status code.",
		}, []string{"route", "code"}),
	}

	for _, c := range []prometheus.Collector{
		m.RecordsAccepted, m.RecordsCommitted, m.BatchesCommitted, m.CommitFailures,
		m.CommitDuration, m.ScansOpened, m.ScanFaults, m.ScansTruncated, m.HTTPRequests,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// Accepted counts one accepted record.
func (m *Metrics) Accepted(backend string) {
	if m == nil {
		return
	}
	m.RecordsAccepted.WithLabelValues(backend).Inc()
}

// Committed records a successful batch of n records.
func (m *Metrics) Committed(backend string, n int, seconds float64) {
	if m == nil {
		return
	}
	m.BatchesCommitted.WithLabelValues(backend).Inc()
	m.RecordsCommitted.WithLabelValues(backend).Add(float64(n))
	m.CommitDuration.WithLabelValues(backend).Observe(seconds)
}

// CommitFailed counts one failed commit attempt.
func (m *Metrics) CommitFailed(backend string) {
	if m == nil {
		return
	}
	m.CommitFailures.WithLabelValues(backend).Inc()
}

// ScanOpened counts one Load.
func (m *Metrics) ScanOpened(backend string) {
	if m == nil {
		return
	}
	m.ScansOpened.WithLabelValues(backend).Inc()
}

// ScanFault counts one skipped row.
func (m *Metrics) ScanFault(backend string) {
	if m == nil {
		return
	}
	m.ScanFaults.WithLabelValues(backend).Inc()
}

// ScanTruncated counts one scan ended by the fault cap.
func (m *Metrics) ScanTruncated(backend string) {
	if m == nil {
		return
	}
	m.ScansTruncated.WithLabelValues(backend).Inc()
}

// HTTPRequest counts one served request.
func (m *Metrics) HTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
