package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sagaSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_saga_steps_total",
			Help: "Purchase saga steps by outcome",
		},
		[]string{"step", "result"},
	)

	sagaStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticket_saga_step_duration_seconds",
			Help:    "Duration of purchase saga steps",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	eventMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_event_matches_total",
			Help: "Event match attempts by result",
		},
		[]string{"result"},
	)

	reservationsReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticket_reservations_expired_total",
			Help: "Pending reservations released after expiry",
		},
	)

	auditEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_saga_audit_events_total",
			Help: "Saga audit events handled by the audit worker",
		},
		[]string{"result"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ticket_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)

// TrackSagaStep 記錄一個 saga 步驟的結果與耗時
func TrackSagaStep(step, result string, started time.Time) {
	sagaSteps.WithLabelValues(step, result).Inc()
	sagaStepDuration.WithLabelValues(step).Observe(time.Since(started).Seconds())
}

func TrackEventMatch(result string) {
	eventMatches.WithLabelValues(result).Inc()
}

func TrackReservationReleased() {
	reservationsReleased.Inc()
}

func TrackAuditEvent(result string) {
	auditEvents.WithLabelValues(result).Inc()
}

func SetBreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}
