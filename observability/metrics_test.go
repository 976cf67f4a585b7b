package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	req := require.New(t)
	m := NewMetrics()

	m.Request("sendMessage", "OK")
	m.Request("sendMessage", "OK")
	m.Request("sendMessage", "EMPTY_MESSAGE")
	m.DeliveryFailed("message")
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.SetOnline(3)

	req.Equal(2.0, testutil.ToFloat64(m.requests.WithLabelValues("sendMessage", "OK")))
	req.Equal(1.0, testutil.ToFloat64(m.requests.WithLabelValues("sendMessage", "EMPTY_MESSAGE")))
	req.Equal(1.0, testutil.ToFloat64(m.failedDelivery.WithLabelValues("message")))
	req.Equal(1.0, testutil.ToFloat64(m.connections))
	req.Equal(3.0, testutil.ToFloat64(m.online))

	families, err := m.Gatherer().Gather()
	req.NoError(err)
	req.NotEmpty(families)
}

func TestMetrics_Nil_Is_Noop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.Request("register", "OK")
		m.ConnectionOpened()
		m.ProcessSampled(1, 2, 3)
		m.WorkerRestarted("PresenceBroadcaster")
	})
}
