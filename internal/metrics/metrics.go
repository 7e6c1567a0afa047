// Package metrics exposes prometheus collectors for the segmentation and
// routing engines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "verdant"

// Outcome labels.
const (
	OutcomeOK         = "ok"
	OutcomeDegenerate = "degenerate"
	OutcomeError      = "error"
)

// Recorder holds the engine collectors. The zero value is not usable; create
// one with New. A nil *Recorder discards every observation.
type Recorder struct {
	segmentCalls  *prometheus.CounterVec
	segmentRounds prometheus.Histogram
	segmentSize   prometheus.Histogram
	routeCalls    *prometheus.CounterVec
	routePasses   prometheus.Histogram
	routeGain     prometheus.Histogram
	truncations   *prometheus.CounterVec
}

// New creates a Recorder and registers its collectors with reg. A nil reg
// leaves the collectors unregistered.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		segmentCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "segmentation",
				Name:      "calls_total",
				Help:      "Segmentation calls by outcome.",
			},
			[]string{"outcome"},
		),
		segmentRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "segmentation",
			Name:      "rounds",
			Help:      "Assignment/update rounds executed per segmentation call.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 50},
		}),
		segmentSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "segmentation",
			Name:      "observations",
			Help:      "Observations per segmentation call.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		routeCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "routing",
				Name:      "calls_total",
				Help:      "Route optimization calls by outcome.",
			},
			[]string{"outcome"},
		),
		routePasses: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "two_opt_passes",
			Help:      "2-opt passes executed per route optimization.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 50, 100, 200},
		}),
		routeGain: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "distance_gain_ratio",
			Help:      "Fraction of the nearest neighbour tour length removed by 2-opt.",
			Buckets:   prometheus.LinearBuckets(0, 0.05, 10),
		}),
		truncations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payload_truncations_total",
				Help:      "Payloads cut short to fit the output buffer, by operation.",
			},
			[]string{"operation"},
		),
	}

	if reg != nil {
		for _, c := range r.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *Recorder) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.segmentCalls, r.segmentRounds, r.segmentSize,
		r.routeCalls, r.routePasses, r.routeGain,
		r.truncations,
	}
}

// ObserveSegmentation records a finished segmentation call.
func (r *Recorder) ObserveSegmentation(outcome string, observations, rounds int) {
	if r == nil {
		return
	}
	r.segmentCalls.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		r.segmentSize.Observe(float64(observations))
		r.segmentRounds.Observe(float64(rounds))
	}
}

// ObserveRoute records a successful route optimization.
func (r *Recorder) ObserveRoute(passes int, initial, total float64) {
	if r == nil {
		return
	}
	r.routeCalls.WithLabelValues(OutcomeOK).Inc()
	r.routePasses.Observe(float64(passes))
	if initial > 0 {
		r.routeGain.Observe((initial - total) / initial)
	}
}

// ObserveRouteError records a failed route optimization.
func (r *Recorder) ObserveRouteError() {
	if r == nil {
		return
	}
	r.routeCalls.WithLabelValues(OutcomeError).Inc()
}

// ObserveTruncation records a payload that did not fit its buffer.
func (r *Recorder) ObserveTruncation(operation string) {
	if r == nil {
		return
	}
	r.truncations.WithLabelValues(operation).Inc()
}
