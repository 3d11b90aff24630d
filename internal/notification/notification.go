package notification

import (
	"fmt"
	"time"

	"github.com/fjod/go_food/internal/domain"
)

// DefaultListLimit caps how many notifications one listing returns.
const DefaultListLimit = 50

// Notification is one message shown to a customer about their order.
type Notification struct {
	ID        int64            `json:"id"`
	EventID   string           `json:"event_id"`
	EventType domain.EventType `json:"event_type"`
	UserID    string           `json:"user_id"`
	OrderID   string           `json:"order_id"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"created_at"`
}

// FromEvent renders the customer-facing text for an order event.
func FromEvent(e domain.OrderEvent) Notification {
	title, body := render(e)
	return Notification{
		EventID:   e.EventID,
		EventType: e.EventType,
		UserID:    e.UserID,
		OrderID:   e.OrderID,
		Title:     title,
		Body:      body,
		CreatedAt: e.OccurredAt,
	}
}

func render(e domain.OrderEvent) (string, string) {
	number := e.OrderNumber
	if number == "" {
		number = e.OrderID
	}
	switch e.EventType {
	case domain.EventOrderCreated:
		return "Order placed", fmt.Sprintf("Your order %s has been placed. Total: %s.", number, e.Total.StringFixed(2))
	case domain.EventOrderCancelled:
		body := fmt.Sprintf("Your order %s has been cancelled.", number)
		if e.Reason != "" {
			body += " Reason: " + e.Reason + "."
		}
		return "Order cancelled", body
	}

	switch e.Status {
	case domain.OrderStatusConfirmed:
		return "Order confirmed", fmt.Sprintf("The store has confirmed your order %s.", number)
	case domain.OrderStatusPreparing:
		return "Order in the kitchen", fmt.Sprintf("Your order %s is being prepared.", number)
	case domain.OrderStatusReady:
		return "Order ready", fmt.Sprintf("Your order %s is ready for pickup.", number)
	case domain.OrderStatusPickedUp:
		return "Order picked up", fmt.Sprintf("Your order %s has been picked up.", number)
	case domain.OrderStatusCompleted:
		return "Order completed", fmt.Sprintf("Your order %s is complete. Enjoy your meal!", number)
	default:
		return "Order updated", fmt.Sprintf("Your order %s is now %s.", number, e.Status)
	}
}
