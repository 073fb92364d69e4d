// Package lifecycle removes Pending orders whose placement window has lapsed.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/safar/go-order-engine/internal/database"
	"github.com/safar/go-order-engine/internal/metrics"
	"github.com/safar/go-order-engine/internal/models"
	"github.com/sirupsen/logrus"
)

type ExpiryStore interface {
	DeleteNextExpiredOrder(ctx context.Context) (*models.Order, error)
}

type Sweeper struct {
	store    ExpiryStore
	interval time.Duration
	batch    int
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
}

func NewSweeper(store ExpiryStore, interval time.Duration, batch int, log logrus.FieldLogger, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		batch:    batch,
		log:      log.WithField("component", "order_sweeper"),
		metrics:  m,
	}
}

// Run sweeps once at start and then every interval until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.WithFields(logrus.Fields{
		"interval": s.interval.String(),
		"batch":    s.batch,
	}).Info("order sweeper started")

	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-ctx.Done():
			s.log.Info("order sweeper stopped")
			return
		}
	}
}

// SweepOnce deletes expired orders one at a time until none are due or the batch
// cap is reached. Each deletion commits on its own, so a failure part way keeps
// the earlier ones. It returns how many orders were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	removed := 0

	for removed < s.batch {
		if ctx.Err() != nil {
			return removed
		}

		order, err := s.store.DeleteNextExpiredOrder(ctx)
		if errors.Is(err, database.ErrOrderNotFound) {
			break
		}
		if err != nil {
			if ctx.Err() == nil {
				s.metrics.SweepFailures.Inc()
				s.log.WithError(err).Error("expired order sweep failed")
			}
			return removed
		}

		removed++
		s.metrics.ExpiredOrders.Inc()
		s.metrics.OrderEvents.WithLabelValues(models.EventOrderExpired).Inc()
		s.log.WithFields(logrus.Fields{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
			"customer_id":  order.CustomerID,
		}).Info("deleted expired pending order")
	}

	if removed == s.batch {
		s.log.WithField("batch", s.batch).Warn("sweep batch cap reached, remaining orders wait for the next tick")
	}

	return removed
}
