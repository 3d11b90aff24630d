package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventOrderCancelled     EventType = "order.cancelled"
)

// OutboxEvent is written in the same transaction as the state change it describes
// and published later by the outbox poller.
type OutboxEvent struct {
	ID          string     `bson:"_id" json:"id"`
	AggregateID string     `bson:"aggregate_id" json:"aggregate_id"`
	EventType   EventType  `bson:"event_type" json:"event_type"`
	Payload     []byte     `bson:"payload" json:"payload"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	ProcessedAt *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// OrderEvent is the payload shared by every order event on the wire.
type OrderEvent struct {
	EventID     string          `json:"event_id"`
	EventType   EventType       `json:"event_type"`
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      string          `json:"user_id"`
	StoreID     string          `json:"store_id"`
	Status      OrderStatus     `json:"status"`
	Previous    OrderStatus     `json:"previous_status,omitempty"`
	Total       decimal.Decimal `json:"total"`
	Reason      string          `json:"reason,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// NewOrderEvent snapshots the order into an outbox record.
func NewOrderEvent(eventType EventType, o *Order, previous OrderStatus, now time.Time) (*OutboxEvent, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(OrderEvent{
		EventID:     id,
		EventType:   eventType,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		StoreID:     o.StoreID,
		Status:      o.Status,
		Previous:    previous,
		Total:       o.Total,
		Reason:      o.CancellationReason,
		OccurredAt:  now,
	})
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		ID:          id,
		AggregateID: o.ID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   now,
	}, nil
}
