package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := New()

	m.RecordBuilt("DATA")
	m.RecordBuilt("DATA")
	m.RecordBuilt("HELLO")
	m.RecordRouted("DELIVER", "")
	m.RecordRouted("DROP", "INVALID")
	m.RecordRouted("DROP", "INVALID")
	m.SetPending(3)
	m.RecordResend()
	m.RecordAcked()
	m.RecordFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesBuilt.WithLabelValues("DATA")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesBuilt.WithLabelValues("HELLO")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesRouted.WithLabelValues("DELIVER", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesRouted.WithLabelValues("DROP", "INVALID")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PendingSends))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resends))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SendsAcked))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SendsFailed))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordBuilt("DATA")
		m.RecordRouted("DROP", "INVALID")
		m.SetPending(1)
		m.RecordResend()
		m.RecordAcked()
		m.RecordFailed()
	})
}

func TestMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()

	require.NoError(t, m.Register(reg))
	require.NoError(t, m.Register(reg), "re-registering the same collectors is accepted")

	m.RecordResend()
	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["masaar_reliability_resends_total"])
	assert.True(t, names["masaar_reliability_pending_sends"])
}
