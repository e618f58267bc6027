package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"linkage/internal/contact/models"
)

// producer is the subset of *kgo.Client the publisher needs.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Kafka publishes link events to a single topic, keyed by primary contact id
// so every event for a chain lands on the same partition in commit order.
type Kafka struct {
	client producer
	topic  string
	logger *slog.Logger
	tracer trace.Tracer
}

// Config holds Kafka publisher settings.
type Config struct {
	Brokers []string
	Topic   string
}

// NewKafka connects a franz-go producer client.
func NewKafka(cfg Config, logger *slog.Logger) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return newKafka(client, cfg.Topic, logger), nil
}

func newKafka(client producer, topic string, logger *slog.Logger) *Kafka {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kafka{
		client: client,
		topic:  topic,
		logger: logger,
		tracer: otel.Tracer("linkage/contact/publisher"),
	}
}

// Publish writes events synchronously and returns the first delivery error.
func (k *Kafka) Publish(ctx context.Context, events []models.LinkEvent) error {
	if len(events) == 0 {
		return nil
	}
	ctx, span := k.tracer.Start(ctx, "kafka.Publish", trace.WithAttributes(
		attribute.String("messaging.destination", k.topic),
		attribute.Int("messaging.batch.message_count", len(events)),
	))
	defer span.End()

	records := make([]*kgo.Record, 0, len(events))
	for _, event := range events {
		record, err := k.record(event)
		if err != nil {
			span.RecordError(err)
			return err
		}
		records = append(records, record)
	}

	if err := k.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("produce link events: %w", err)
	}

	k.logger.DebugContext(ctx, "published link events",
		"topic", k.topic,
		"events", len(events),
	)
	return nil
}

func (k *Kafka) record(event models.LinkEvent) (*kgo.Record, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal link event: %w", err)
	}
	return &kgo.Record{
		Topic: k.topic,
		Key:   []byte(strconv.FormatInt(event.PrimaryContactID, 10)),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID.String())},
		},
		Timestamp: event.OccurredAt,
	}, nil
}

// Close flushes and closes the underlying client.
func (k *Kafka) Close() {
	k.client.Close()
}

// EnsureTopic creates the topic if it does not exist.
func EnsureTopic(ctx context.Context, brokers []string, topic string, partitions int32, replicationFactor int16) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return fmt.Errorf("create kafka admin client: %w", err)
	}
	defer client.Close()

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopic(ctx, partitions, replicationFactor, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}
