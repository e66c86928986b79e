package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	MatchRuns         *prometheus.CounterVec
	MatchDuration     prometheus.Histogram
	CandidatesSkipped *prometheus.CounterVec
	GeocodeRequests   *prometheus.CounterVec
	GeocodeLatency    prometheus.Histogram
	BookingAttempts   *prometheus.CounterVec
	SlotsPurged       prometheus.Counter
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MatchRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "runs_total",
			Help:      "Total number of slot matching runs by outcome",
		}, []string{"outcome"}),
		MatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "run_duration_seconds",
			Help:      "Time spent ranking candidate slots",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		CandidatesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "candidates_skipped_total",
			Help:      "Candidate slots dropped from a matching run by reason",
		}, []string{"reason"}),
		GeocodeRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "geocoder",
			Name:      "requests_total",
			Help:      "Geocode lookups by source and status",
		}, []string{"source", "status"}),
		GeocodeLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "geocoder",
			Name:      "remote_duration_seconds",
			Help:      "Duration of remote geocoding calls",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		BookingAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Slot booking transitions by outcome",
		}, []string{"outcome"}),
		SlotsPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "slots_purged_total",
			Help:      "Stale unbooked slots removed by the sweeper",
		}),
	}
}

func (m *Metrics) MatchRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.MatchRuns.WithLabelValues(outcome).Inc()
	m.MatchDuration.Observe(seconds)
}

func (m *Metrics) CandidateSkipped(reason string) {
	if m == nil {
		return
	}
	m.CandidatesSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Geocode(source, status string) {
	if m == nil {
		return
	}
	m.GeocodeRequests.WithLabelValues(source, status).Inc()
}

func (m *Metrics) GeocodeRemote(seconds float64) {
	if m == nil {
		return
	}
	m.GeocodeLatency.Observe(seconds)
}

func (m *Metrics) Booking(outcome string) {
	if m == nil {
		return
	}
	m.BookingAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Purged(n int64) {
	if m == nil {
		return
	}
	m.SlotsPurged.Add(float64(n))
}
