// Package notify delivers buyer and seller notifications. Delivery is best
// effort: a failed notification never rolls back an order transition.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type Kind string

const (
	KindOrderPlaced     Kind = "order_placed"
	KindPaymentReceived Kind = "payment_received"
	KindUnderReview     Kind = "order_under_review"
	KindDelivered       Kind = "order_delivered"
	KindRejected        Kind = "order_rejected"
	KindExpired         Kind = "payment_expired"
)

type Notification struct {
	UserID    string    `json:"user_id"`
	Kind      Kind      `json:"kind"`
	OrderID   string    `json:"order_id"`
	Reference string    `json:"reference"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// KafkaNotifier publishes notifications keyed by user so one user's messages
// stay ordered on a single partition.
type KafkaNotifier struct {
	writer *kafka.Writer
	log    *slog.Logger
}

func NewKafkaNotifier(brokers, topic string, log *slog.Logger) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaNotifier{writer: w, log: log}
}

func (k *KafkaNotifier) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(n.UserID), Value: body}); err != nil {
		k.log.Error("publish notification failed",
			slog.String("user_id", n.UserID),
			slog.String("kind", string(n.Kind)),
			slog.Any("err", err),
		)
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

// LogNotifier writes notifications to the log. Used when no broker is
// configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.log.Info("notification",
		slog.String("user_id", n.UserID),
		slog.String("kind", string(n.Kind)),
		slog.String("order_id", n.OrderID),
		slog.String("message", n.Message),
	)
	return nil
}
