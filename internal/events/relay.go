package events

import (
	"context"
	"fmt"
	"time"

	"github.com/safar/go-order-engine/internal/metrics"
	"github.com/safar/go-order-engine/internal/models"
	"github.com/sirupsen/logrus"
)

type OutboxStore interface {
	FetchPendingEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkEventSent(ctx context.Context, id int64) error
}

// Relay drains the outbox into a Publisher. Delivery is at least once: an event
// published but not yet marked sent is published again on the next pass.
type Relay struct {
	store    OutboxStore
	pub      Publisher
	interval time.Duration
	batch    int
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
}

func NewRelay(store OutboxStore, pub Publisher, interval time.Duration, batch int, log logrus.FieldLogger, m *metrics.Metrics) *Relay {
	return &Relay{
		store:    store,
		pub:      pub,
		interval: interval,
		batch:    batch,
		log:      log.WithField("component", "outbox_relay"),
		metrics:  m,
	}
}

func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				r.log.WithError(err).Warn("outbox relay pass failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// RelayOnce publishes up to one batch of pending events in id order. It stops at
// the first publish failure so later events of the same order never overtake it.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	events, err := r.store.FetchPendingEvents(ctx, r.batch)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, event := range events {
		if err := r.pub.Publish(ctx, event); err != nil {
			r.metrics.OutboxFailed.Inc()
			return sent, fmt.Errorf("publish event %d: %w", event.ID, err)
		}
		r.metrics.OutboxPublished.Inc()

		if err := r.store.MarkEventSent(ctx, event.ID); err != nil {
			return sent, err
		}
		sent++
	}

	if sent > 0 {
		r.log.WithField("count", sent).Debug("outbox events relayed")
	}

	return sent, nil
}
