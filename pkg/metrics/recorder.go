package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

const Subsystem = "paysync"

var reconcileTotal = &Metric{
	ID:          "reconcileTotal",
	Name:        "reconcile_total",
	Description: "Reconciliation attempts partitioned by provider and outcome.",
	Type:        "counter_vec",
	Args:        []string{"provider", "outcome"},
}

var providerFetchDur = &Metric{
	ID:          "providerFetchDur",
	Name:        "provider_fetch_dur_ms",
	Description: "Provider status query latency in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"provider", "result"},
}

var sweepTotal = &Metric{
	ID:          "sweepTotal",
	Name:        "sweep_bills_total",
	Description: "Stale pending bills visited by the recovery sweep, by result.",
	Type:        "counter_vec",
	Args:        []string{"result"},
}

// Recorder records domain metrics. A nil *Recorder is a no-op.
type Recorder struct {
	reconcile *prometheus.CounterVec
	fetch     *prometheus.HistogramVec
	sweep     *prometheus.CounterVec
}

func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{}
	for _, m := range []*Metric{reconcileTotal, providerFetchDur, sweepTotal} {
		c, err := register(reg, NewMetric(m, Subsystem))
		if err != nil {
			return nil, fmt.Errorf("failed to register metric %s: %w", m.Name, err)
		}
		switch m {
		case reconcileTotal:
			r.reconcile = c.(*prometheus.CounterVec)
		case providerFetchDur:
			r.fetch = c.(*prometheus.HistogramVec)
		case sweepTotal:
			r.sweep = c.(*prometheus.CounterVec)
		}
	}
	return r, nil
}

func (r *Recorder) ObserveReconcile(provider, outcome string) {
	if r == nil {
		return
	}
	r.reconcile.WithLabelValues(provider, outcome).Inc()
}

func (r *Recorder) ObserveFetch(provider, result string, start time.Time) {
	if r == nil {
		return
	}
	r.fetch.WithLabelValues(provider, result).Observe(MillisecondsSince(start))
}

func (r *Recorder) ObserveSweep(result string) {
	if r == nil {
		return
	}
	r.sweep.WithLabelValues(result).Inc()
}

func newDefaultRecorder() (*Recorder, error) {
	return NewRecorder(prometheus.DefaultRegisterer)
}

var Module = fx.Options(
	fx.Provide(newDefaultRecorder),
)
