package publisher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/go_food/internal/domain"
	"github.com/fjod/go_food/internal/repository"
	"github.com/fjod/go_food/internal/telemetry"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTick      = time.Second
	DefaultBatchSize = 100
)

var tracer = otel.Tracer("github.com/fjod/go_food/internal/publisher")

// MessageWriter is the part of *kafka.Writer the poller needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPoller moves committed outbox events to Kafka. An event is marked
// processed only after the broker accepted it, so delivery is at least once.
type OutboxPoller struct {
	repo      repository.OutboxRepository
	writer    MessageWriter
	topic     string
	breaker   *gobreaker.CircuitBreaker[struct{}]
	tick      time.Duration
	batchSize int64
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	now       func() time.Time
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           100 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
	}
}

func NewOutboxPoller(repo repository.OutboxRepository, writer MessageWriter, topic string, logger *slog.Logger, metrics *telemetry.Metrics) *OutboxPoller {
	p := &OutboxPoller{
		repo:      repo,
		writer:    writer,
		topic:     topic,
		tick:      DefaultTick,
		batchSize: DefaultBatchSize,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "kafka-" + topic,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return p
}

// Run polls until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	p.logger.Info("outbox poller started", "topic", p.topic, "tick", p.tick)
	for {
		select {
		case <-ticker.C:
			p.processBatch(ctx)
		case <-ctx.Done():
			p.logger.Info("outbox poller stopped")
			return nil
		}
	}
}

// processBatch publishes one batch in order and reports how many events were
// marked processed. It stops at the first event the breaker refuses. Once an
// event of an aggregate fails, the rest of that aggregate's events wait for the
// next tick so they never overtake it.
func (p *OutboxPoller) processBatch(ctx context.Context) int {
	events, err := p.repo.FetchUnprocessed(ctx, p.batchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to fetch outbox events", "error", err)
		return 0
	}

	published := 0
	blocked := make(map[string]struct{})
	for i := range events {
		event := &events[i]
		if _, ok := blocked[event.AggregateID]; ok {
			continue
		}
		_, err := p.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, p.publish(ctx, event)
		})
		if err != nil {
			p.metrics.OutboxFailed(ctx, string(event.EventType))
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				p.logger.WarnContext(ctx, "kafka circuit open, postponing batch", "remaining", len(events)-i)
				return published
			}
			p.logger.ErrorContext(ctx, "failed to publish outbox event",
				"event_id", event.ID, "aggregate_id", event.AggregateID, "error", err)
			blocked[event.AggregateID] = struct{}{}
			continue
		}

		if err := p.repo.MarkProcessed(ctx, event.ID, p.now()); err != nil {
			p.logger.ErrorContext(ctx, "failed to mark outbox event processed", "event_id", event.ID, "error", err)
			blocked[event.AggregateID] = struct{}{}
			continue
		}
		p.metrics.OutboxPublished(ctx, string(event.EventType))
		published++
	}
	return published
}

func (p *OutboxPoller) publish(ctx context.Context, event *domain.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	ctx, span := tracer.Start(ctx, "send "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingKafkaMessageKey(event.AggregateID),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, telemetry.NewMessageCarrier(&msg))

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
