package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// OrderEvents counts lifecycle transitions by event type.
	OrderEvents   *prometheus.CounterVec
	ExpiredOrders prometheus.Counter
	SweepFailures prometheus.Counter

	OutboxPublished prometheus.Counter
	OutboxFailed    prometheus.Counter
	// BreakerState is 0 closed, 1 open, 2 half-open.
	BreakerState *prometheus.GaugeVec

	CartCache *prometheus.CounterVec
}

// New registers every collector on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		OrderEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_lifecycle_events_total",
				Help: "Order lifecycle transitions by event",
			},
			[]string{"event"},
		),
		ExpiredOrders: factory.NewCounter(prometheus.CounterOpts{
			Name: "orders_expired_total",
			Help: "Pending orders deleted by the expiry sweep",
		}),
		SweepFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "order_sweep_failures_total",
			Help: "Expiry sweep iterations that failed",
		}),
		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Outbox events delivered to the broker",
		}),
		OutboxFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "outbox_events_failed_total",
			Help: "Outbox publish attempts that failed",
		}),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"circuit_name"},
		),
		CartCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_cache_requests_total",
				Help: "Cart cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
