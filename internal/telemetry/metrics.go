package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/fjod/go_food"

// Metrics holds the business counters. A nil *Metrics records nothing.
type Metrics struct {
	ordersPlaced     metric.Int64Counter
	statusChanges    metric.Int64Counter
	cartConflicts    metric.Int64Counter
	outboxPublished  metric.Int64Counter
	outboxFailures   metric.Int64Counter
	notificationsNew metric.Int64Counter
}

// NewMetrics creates the counters on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	var (
		m   Metrics
		err error
	)
	if m.ordersPlaced, err = meter.Int64Counter("orders_placed_total",
		metric.WithDescription("Orders created from a confirmed checkout")); err != nil {
		return nil, err
	}
	if m.statusChanges, err = meter.Int64Counter("order_status_changes_total",
		metric.WithDescription("Order status transitions by target status")); err != nil {
		return nil, err
	}
	if m.cartConflicts, err = meter.Int64Counter("cart_write_conflicts_total",
		metric.WithDescription("Cart writes that lost an optimistic version check")); err != nil {
		return nil, err
	}
	if m.outboxPublished, err = meter.Int64Counter("outbox_events_published_total",
		metric.WithDescription("Outbox events delivered to Kafka")); err != nil {
		return nil, err
	}
	if m.outboxFailures, err = meter.Int64Counter("outbox_publish_failures_total",
		metric.WithDescription("Outbox publish attempts that failed")); err != nil {
		return nil, err
	}
	if m.notificationsNew, err = meter.Int64Counter("notifications_recorded_total",
		metric.WithDescription("Notifications written by the notifier")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Metrics) OrderPlaced(ctx context.Context, storeID string) {
	if m == nil {
		return
	}
	m.ordersPlaced.Add(ctx, 1, metric.WithAttributes(attribute.String("store_id", storeID)))
}

func (m *Metrics) StatusChanged(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.statusChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (m *Metrics) CartConflict(ctx context.Context) {
	if m == nil {
		return
	}
	m.cartConflicts.Add(ctx, 1)
}

func (m *Metrics) OutboxPublished(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.outboxPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (m *Metrics) OutboxFailed(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.outboxFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (m *Metrics) NotificationRecorded(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.notificationsNew.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}
