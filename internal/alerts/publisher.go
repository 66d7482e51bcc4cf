// Package alerts publishes anti-cheat findings to downstream consumers
// (moderation tooling, notification bots) over a message broker.
package alerts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	v1 "github.com/convoylab/roadguard/internal/api/v1"
)

// Alert is the outbound wire shape for a detection or confirmation.
type Alert struct {
	Kind      string        `json:"kind"` // "detection" or "confirmation"
	Detection *v1.Detection `json:"detection"`
	Action    string        `json:"action,omitempty"`
	EmittedAt time.Time     `json:"emitted_at"`
}

// Publisher delivers alerts. Delivery failures are logged by callers and
// never fail the operation that produced the alert.
type Publisher interface {
	Publish(ctx context.Context, alert Alert) error
}

// KafkaPublisher writes alerts to a Kafka topic, keyed by driver so one
// driver's alerts stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 250 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(alert.Detection.DriverID),
		Value: body,
		Time:  time.Now().UTC(),
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops alerts. Used when alert publishing is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, alert Alert) error { return nil }
