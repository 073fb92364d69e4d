package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-order-engine/internal/database"
	"github.com/safar/go-order-engine/internal/models"
	"github.com/shopspring/decimal"
)

// OrderEvent is the payload written to the outbox for every order lifecycle transition.
type OrderEvent struct {
	EventID     string             `json:"event_id"`
	Type        string             `json:"type"`
	OrderID     int64              `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	CustomerID  int64              `json:"customer_id"`
	Status      models.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	CanceledBy  models.CanceledBy  `json:"canceled_by,omitempty"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

// enqueueOrderEvent records the event in the same transaction as the state change
// it describes; the relay publishes it later.
func enqueueOrderEvent(ctx context.Context, q database.Querier, eventType string, order *models.Order) error {
	event := OrderEvent{
		EventID:     uuid.NewString(),
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		CanceledBy:  order.CanceledBy,
		OccurredAt:  time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO outbox (event_id, topic, key, payload, created_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		event.EventID, eventType, strconv.FormatInt(order.ID, 10), string(payload))
	if err != nil {
		return fmt.Errorf("insert %s event: %w", eventType, err)
	}

	return nil
}

func FetchPendingEvents(ctx context.Context, q database.Querier, limit int) ([]models.OutboxEvent, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, event_id, topic, key, payload, created_at, sent_at
		 FROM outbox
		 WHERE sent_at IS NULL
		 ORDER BY id
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending events: %w", err)
	}
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		var ev models.OutboxEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.Topic, &ev.Key, &payload, &ev.CreatedAt, &ev.SentAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Payload = payload
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return events, nil
}

func MarkEventSent(ctx context.Context, q database.Querier, id int64) error {
	_, err := q.ExecContext(ctx, `UPDATE outbox SET sent_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event %d sent: %w", id, err)
	}
	return nil
}
