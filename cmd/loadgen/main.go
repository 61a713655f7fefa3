package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/stokd/supply-ingest/internal/config"
	"github.com/stokd/supply-ingest/internal/core/domain"
)

// Publishes a batch of synthetic supply events against the inbound topic,
// including invalid and duplicate ones, to exercise the whole ack policy
// end to end.
const (
	totalEvents    = 50
	productID      = 1
	invalidEvery   = 10 // every n-th event gets quantity 0
	duplicateEvery = 7  // every n-th event reuses the previous event id
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBroker),
		Topic:    config.SupplyTopic,
		Balancer: &kafka.LeastBytes{},
	}
	defer writer.Close()

	var sent, invalid, duplicates int
	var lastEventID string
	start := time.Now()

	for i := 0; i < totalEvents; i++ {
		ev := domain.SupplyAddedEvent{
			EventID:   uuid.New().String(),
			ProductID: productID,
			Quantity:  1 + i%5,
			Date:      time.Now().UTC(),
		}

		switch {
		case i > 0 && i%invalidEvery == 0:
			ev.Quantity = 0
			invalid++
		case i > 0 && i%duplicateEvery == 0 && lastEventID != "":
			ev.EventID = lastEventID
			duplicates++
		}

		payload, err := json.Marshal(ev)
		if err != nil {
			log.Fatalf("marshal event: %v", err)
		}

		msg := kafka.Message{
			Key:   []byte(strconv.FormatInt(ev.ProductID, 10)),
			Value: payload,
		}
		if err := writer.WriteMessages(ctx, msg); err != nil {
			log.Fatalf("publish event %d: %v", i, err)
		}

		lastEventID = ev.EventID
		sent++
	}

	elapsed := time.Since(start)

	fmt.Println("========== LOADGEN RESULTS ==========")
	fmt.Printf("Topic:            %s\n", config.SupplyTopic)
	fmt.Printf("Events Sent:      %d\n", sent)
	fmt.Printf("Invalid Events:   %d\n", invalid)
	fmt.Printf("Duplicate Events: %d\n", duplicates)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("=====================================")
}
