package events

import (
	"context"
	"time"

	"github.com/safar/go-order-engine/internal/metrics"
	"github.com/safar/go-order-engine/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerPublisher stops calling the broker after repeated failures and lets
// a few probes through once the open timeout has passed.
type BreakerPublisher struct {
	next Publisher
	cb   *gobreaker.CircuitBreaker
}

type BreakerSettings struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:        "kafka",
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
	}
}

func NewBreakerPublisher(next Publisher, s BreakerSettings, log logrus.FieldLogger, m *metrics.Metrics) *BreakerPublisher {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			m.BreakerState.WithLabelValues(name).Set(stateValue(to))

			log.WithFields(logrus.Fields{
				"circuit": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})

	m.BreakerState.WithLabelValues(s.Name).Set(stateValue(gobreaker.StateClosed))

	return &BreakerPublisher{next: next, cb: cb}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

func (b *BreakerPublisher) Publish(ctx context.Context, event models.OutboxEvent) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Publish(ctx, event)
	})
	return err
}

func (b *BreakerPublisher) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerPublisher) Close() error {
	return b.next.Close()
}
