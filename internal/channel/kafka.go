package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/brandwacht/warnmelder/internal/domain"
)

// Kafka publishes notifications to an alert topic, so downstream consumers
// (dashboards, archives) see the same stream the human channels receive.
type Kafka struct {
	writer *kafkago.Writer
}

// NewKafka creates a Kafka channel producing to the given topic.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireAll,
		},
	}
}

func (k *Kafka) Name() string { return "kafka" }

// Send serializes and publishes the notification, keyed by identity so a
// compacted topic keeps one message per alert.
func (k *Kafka) Send(ctx context.Context, n domain.Notification) error {
	msg, err := serializeToMessage(n)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, msg)
}

// Close flushes and closes the underlying producer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

// serializeToMessage marshals a notification into a Kafka message.
func serializeToMessage(n domain.Notification) (kafkago.Message, error) {
	data, err := json.Marshal(kafkaAlert{
		Identity: n.Identity,
		Title:    n.Title,
		Text:     n.Text,
		Groups:   n.Groups,
		Private:  n.Private,
		SentAt:   domain.Now().UTC(),
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(n.Identity),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "sent_at", Value: []byte(domain.Now().UTC().Format(time.RFC3339))},
		},
	}, nil
}

type kafkaAlert struct {
	Identity string    `json:"identity"`
	Title    string    `json:"title"`
	Text     string    `json:"text"`
	Groups   []string  `json:"groups,omitempty"`
	Private  bool      `json:"private"`
	SentAt   time.Time `json:"sent_at"`
}
