package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/stokd/supply-ingest/internal/core/domain"
)

// KafkaNotifier publishes terminal-state notifications to the notification
// topic, keyed by product id so one product's notifications stay ordered.
type KafkaNotifier struct {
	writer Publisher
}

func NewKafkaNotifier(writer Publisher) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

func (n *KafkaNotifier) Notify(ctx context.Context, note domain.Notification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(note.ProductID, 10)),
		Value: payload,
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
