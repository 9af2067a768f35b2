package alerts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NotificationKind tags the category of an outbound alert.
type NotificationKind string

const (
	KindLowStock   NotificationKind = "low_stock"
	KindOutOfStock NotificationKind = "out_of_stock"
	KindRestock    NotificationKind = "restock_recommendation"
)

// Notification is one composed alert handed to the external notifier.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	StoreID   string           `json:"store_id"`
	From      string           `json:"from"`
	Recipient string           `json:"recipient"`
	Subject   string           `json:"subject"`
	Body      string           `json:"body"`
	SentAt    time.Time        `json:"sent_at"`
}

// Notifier hands a composed notification to an external delivery channel.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// KafkaNotifier publishes notifications as JSON messages keyed by store, for
// a downstream mailer to consume.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier builds a notifier writing to the given brokers and topic.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (k *KafkaNotifier) Send(ctx context.Context, n Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.StoreID),
		Value: b,
	})
}

// Close flushes and closes the underlying writer.
func (k *KafkaNotifier) Close() error { return k.writer.Close() }

// LogNotifier writes notifications to the service log. Used for local runs
// when no broker is configured.
type LogNotifier struct {
	Log *zap.Logger
}

func (l *LogNotifier) Send(_ context.Context, n Notification) error {
	l.Log.Info("notification",
		zap.String("kind", string(n.Kind)),
		zap.String("store_id", n.StoreID),
		zap.String("recipient", n.Recipient),
		zap.String("subject", n.Subject),
	)
	return nil
}
