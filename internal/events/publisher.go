// Package events publishes order lifecycle events recorded in the outbox.
package events

import (
	"context"

	"github.com/safar/go-order-engine/internal/models"
	"github.com/sirupsen/logrus"
)

type Publisher interface {
	Publish(ctx context.Context, event models.OutboxEvent) error
	Close() error
}

// LogPublisher writes events to the log. It stands in for the broker when
// no Kafka brokers are configured so the outbox still drains.
type LogPublisher struct {
	log logrus.FieldLogger
}

func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, event models.OutboxEvent) error {
	p.log.WithFields(logrus.Fields{
		"event_id": event.EventID,
		"event":    event.Topic,
		"order_id": event.Key,
	}).Info("order event")
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
