package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersOnCallerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Accepted("sqlite")
	m.Accepted("sqlite")
	m.Committed("sqlite", 2, 0.01)
	m.CommitFailed("lake")
	m.ScanOpened("lake")
	m.ScanFault("lake")
	m.ScanTruncated("lake")
	m.HTTPRequest("/healthz", 200)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsAccepted.WithLabelValues("sqlite")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsCommitted.WithLabelValues("sqlite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesCommitted.WithLabelValues("sqlite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommitFailures.WithLabelValues("lake")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScanFaults.WithLabelValues("lake")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScansTruncated.WithLabelValues("lake")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/healthz", "200")))
}

func TestNew_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilMetrics_NoPanic(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Accepted("sqlite")
		m.Committed("sqlite", 1, 0)
		m.CommitFailed("sqlite")
		m.ScanOpened("sqlite")
		m.ScanFault("sqlite")
		m.ScanTruncated("sqlite")
		m.HTTPRequest("/", 500)
	})
}
