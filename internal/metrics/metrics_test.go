package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RoomOpened()
	m.RoomOpened()
	m.RoomClosed()
	m.EndpointCreated(RolePublish)
	m.EndpointCreated(RoleSubscribe)
	m.EndpointCreated(RoleSubscribe)
	m.CandidatesFlushedN(0)
	m.CandidatesFlushedN(3)

	require.Equal(t, 1.0, testutil.ToFloat64(m.RoomsActive))
	require.Equal(t, 2.0, testutil.ToFloat64(m.PipelinesCreated))
	require.Equal(t, 2.0, testutil.ToFloat64(m.EndpointsCreated.WithLabelValues(RoleSubscribe)))
	require.Equal(t, 3.0, testutil.ToFloat64(m.CandidatesFlushed))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RoomOpened()
	m.SessionJoined()
	m.SignalError("protocol")
}
