package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	require.NoError(t, err)

	r.ObserveSegmentation(OutcomeOK, 10, 3)
	r.ObserveSegmentation(OutcomeDegenerate, 0, 0)
	r.ObserveRoute(4, 100, 80)
	r.ObserveRouteError()
	r.ObserveTruncation("route")
	r.ObserveTruncation("route")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.segmentCalls.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.segmentCalls.WithLabelValues(OutcomeDegenerate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.routeCalls.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.routeCalls.WithLabelValues(OutcomeError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.truncations.WithLabelValues("route")))

	count, err := testutil.GatherAndCount(reg, "verdant_routing_two_opt_passes")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "collectors are registered with the given registry")
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilRecorderDiscards(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveSegmentation(OutcomeOK, 1, 1)
		r.ObserveRoute(1, 1, 1)
		r.ObserveRouteError()
		r.ObserveTruncation("segmentation")
	})

	unregistered, err := New(nil)
	require.NoError(t, err)
	assert.NotNil(t, unregistered)
}
