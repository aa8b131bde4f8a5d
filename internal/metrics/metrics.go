package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rentalhub"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	checkouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rental_checkouts_total",
			Help:      "Checkout attempts by outcome.",
		},
		[]string{"outcome"},
	)

	releasedUnits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rental_units_released_total",
			Help:      "Equipment units returned to stock by reason.",
		},
		[]string{"reason"},
	)

	overdueRentals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rentals_overdue",
			Help:      "Active rentals past their end date at the last sweep.",
		},
	)

	deliveryTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_transitions_total",
			Help:      "Delivery status transitions.",
		},
		[]string{"status"},
	)

	payments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Recorded payments by method and initial status.",
		},
		[]string{"method", "status"},
	)

	auditDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_entries_dropped_total",
			Help:      "Audit log entries moved to the dead letter queue or dropped.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			checkouts,
			releasedUnits,
			overdueRentals,
			deliveryTransitions,
			payments,
			auditDropped,
		)
	})
}

// ObserveHTTP records a finished request.
func ObserveHTTP(route string, code int, seconds float64) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(route).Observe(seconds)
}

// IncCheckout counts a checkout with outcome "ok", "unavailable" or "error".
func IncCheckout(outcome string) {
	checkouts.WithLabelValues(outcome).Inc()
}

func AddReleased(reason string, units int64) {
	releasedUnits.WithLabelValues(reason).Add(float64(units))
}

func SetOverdue(n int) {
	overdueRentals.Set(float64(n))
}

func IncDelivery(status string) {
	deliveryTransitions.WithLabelValues(status).Inc()
}

func IncPayment(method, status string) {
	payments.WithLabelValues(method, status).Inc()
}

func IncAuditDropped() {
	auditDropped.Inc()
}
