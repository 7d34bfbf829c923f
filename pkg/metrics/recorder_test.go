package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.ObserveReconcile("toyyibpay", "completed")
	r.ObserveReconcile("toyyibpay", "completed")
	r.ObserveReconcile("hitpay", "retryable")
	r.ObserveFetch("toyyibpay", "ok", time.Now().Add(-20*time.Millisecond))
	r.ObserveSweep("pending")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.reconcile.WithLabelValues("toyyibpay", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.reconcile.WithLabelValues("hitpay", "retryable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sweep.WithLabelValues("pending")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.fetch))

	// a second recorder on the same registry reuses the collectors
	again, err := NewRecorder(reg)
	require.NoError(t, err)
	again.ObserveReconcile("toyyibpay", "completed")
	assert.Equal(t, 3.0, testutil.ToFloat64(r.reconcile.WithLabelValues("toyyibpay", "completed")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveReconcile("chip", "failed")
		r.ObserveFetch("chip", "ok", time.Now())
		r.ObserveSweep("error")
	})
}
