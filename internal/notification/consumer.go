package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/fjod/go_food/internal/domain"
	"github.com/fjod/go_food/internal/telemetry"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/fjod/go_food/internal/notification")

// errMalformed marks messages that can never be processed and are skipped.
var errMalformed = errors.New("malformed order event")

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader  MessageReader
	store   Store
	topic   string
	groupID string
	logger  *slog.Logger
	metrics *telemetry.Metrics

	retryMin time.Duration
	retryMax time.Duration
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewConsumer(reader MessageReader, store Store, topic, groupID string, logger *slog.Logger, metrics *telemetry.Metrics) *Consumer {
	return &Consumer{
		reader:   reader,
		store:    store,
		topic:    topic,
		groupID:  groupID,
		logger:   logger,
		metrics:  metrics,
		retryMin: 500 * time.Millisecond,
		retryMax: 30 * time.Second,
	}
}

// Run consumes until ctx is cancelled. A message is committed only after it was
// stored or found to be malformed; storage failures are retried with backoff.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("notification consumer started", "topic", c.topic, "group", c.groupID)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("notification consumer stopped")
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		if err := c.processWithRetry(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

func (c *Consumer) processWithRetry(ctx context.Context, msg kafka.Message) error {
	wait := c.retryMin
	for {
		err := c.process(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, errMalformed) {
			c.logger.WarnContext(ctx, "skipping malformed message",
				"partition", msg.Partition, "offset", msg.Offset, "error", err)
			return nil
		}
		c.logger.ErrorContext(ctx, "failed to record notification, retrying",
			"offset", msg.Offset, "retry_in", wait, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, c.retryMax)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, telemetry.NewMessageCarrier(&msg))
	ctx, span := tracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
		),
	)
	defer span.End()

	if err := c.Handle(ctx, msg.Value); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Handle decodes one order event and records its notification.
func (c *Consumer) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if _, err := uuid.Parse(event.EventID); err != nil {
		return fmt.Errorf("%w: invalid event_id %q", errMalformed, event.EventID)
	}
	if event.UserID == "" || event.OrderID == "" {
		return fmt.Errorf("%w: missing user_id or order_id", errMalformed)
	}

	n := FromEvent(event)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	inserted, err := c.store.Insert(ctx, &n)
	if err != nil {
		return err
	}
	if !inserted {
		c.logger.DebugContext(ctx, "notification already recorded", "event_id", event.EventID)
		return nil
	}
	c.metrics.NotificationRecorded(ctx, string(event.EventType))
	c.logger.InfoContext(ctx, "notification recorded",
		"event_id", event.EventID, "order_id", event.OrderID, "user_id", event.UserID)
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
