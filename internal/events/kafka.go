package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// MessageProducer defines the interface for publishing messages to Kafka.
type MessageProducer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// NewKafkaWriter creates a traced Kafka writer for the order topic
func NewKafkaWriter(brokers []string, topic, clientID string, tp trace.TracerProvider) (MessageProducer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	baseWriter := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	writer, err := otelkafka.NewWriter(baseWriter,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(
			[]attribute.KeyValue{
				semconv.MessagingDestinationNameKey.String(topic),
				attribute.String("messaging.kafka.client_id", clientID),
			},
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka writer: %w", err)
	}
	return writer, nil
}

// KafkaPublisher writes order events keyed by order reference, so every
// event of one order lands on the same partition.
type KafkaPublisher struct {
	producer MessageProducer
}

// NewKafkaPublisher wraps a producer
func NewKafkaPublisher(producer MessageProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

// Publish writes one event
func (p *KafkaPublisher) Publish(ctx context.Context, event OrderEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(event.Reference),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
		Time: event.PlacedAt,
	}
	if err := p.producer.WriteMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish order %s: %w", event.Reference, err)
	}
	return nil
}

// Close closes the underlying producer
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
