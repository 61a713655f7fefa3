package bus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/stokd/supply-ingest/internal/core/domain"
)

// ErrRedeliveryRequired is returned by Run when a message was left
// uncommitted. The caller must close the reader and start a fresh consumer
// so the group redelivers from the last committed offset.
var ErrRedeliveryRequired = errors.New("uncommitted messages require redelivery")

const fetchErrorBackoff = 500 * time.Millisecond

// Fetcher is the consumer-group surface of kafka.Reader used here. Fetch and
// commit are split so the acknowledgment decision stays with the consumer.
type Fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher is the writer surface of kafka.Writer.
type Publisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Processor runs one event through the ingestion pipeline.
type Processor interface {
	Process(ctx context.Context, ev domain.SupplyAddedEvent) domain.Result
}

// Consumer pulls supply events off the inbound topic and maps each terminal
// outcome to an acknowledgment decision:
//
//   - persisted, duplicate: commit.
//   - validation_failed, product_not_found: final for this event; commit and
//     publish the raw payload to the dead-letter topic for operator replay.
//   - lock_failed, faulted: transient; retried in place a bounded number of
//     times, then left uncommitted so the group redelivers.
//
// Group commits are cumulative per partition, so committing any later offset
// would implicitly acknowledge an uncommitted one. When a message is left
// uncommitted its partition is therefore parked: no further message on that
// partition is processed or committed, and Run winds down with
// ErrRedeliveryRequired so the caller can rebuild the reader and have the
// group redeliver from the last committed offset.
//
/// Undecodable payloads go straight to the dead-letter topic: redelivery
// cannot fix malformed bytes.
type Consumer struct {
	fetcher      Fetcher
	processor    Processor
	deadLetter   Publisher
	logger       *zap.Logger
	workers      int
	maxAttempts  int
	retryBackoff time.Duration

	mu     sync.Mutex
	parked map[int]bool
	stop   context.CancelFunc
}

func NewConsumer(
	fetcher Fetcher,
	processor Processor,
	deadLetter Publisher,
	logger *zap.Logger,
	workers int,
	maxAttempts int,
	retryBackoff time.Duration,
) *Consumer {
	if workers < 1 {
		workers = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Consumer{
		fetcher:      fetcher,
		processor:    processor,
		deadLetter:   deadLetter,
		logger:       logger,
		workers:      workers,
		maxAttempts:  maxAttempts,
		retryBackoff: retryBackoff,
		parked:       make(map[int]bool),
	}
}

// Run fetches until ctx is canceled or a partition is parked, feeding a
// bounded worker pool. Messages are routed to workers by partition so each
// partition is handled by exactly one worker, in order.
func (c *Consumer) Run(ctx context.Context) error {
	fetchCtx, stop := context.WithCancel(ctx)
	defer stop()

	c.mu.Lock()
	c.parked = make(map[int]bool)
	c.stop = stop
	c.mu.Unlock()

	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message)
		wg.Add(1)
		go func(queue <-chan kafka.Message) {
			defer wg.Done()
			for msg := range queue {
				c.handleMessage(ctx, msg)
			}
		}(queues[i])
	}

	c.logger.Info("consumer started, waiting for messages", zap.Int("workers", c.workers))

fetch:
	for {
		msg, err := c.fetcher.FetchMessage(fetchCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				c.logger.Info("context done, exiting fetch loop")
				break fetch
			}
			c.logger.Error("error fetching message", zap.Error(err))
			select {
			case <-fetchCtx.Done():
				break fetch
			case <-time.After(fetchErrorBackoff):
			}
			continue
		}

		select {
		case queues[msg.Partition%c.workers] <- msg:
		case <-fetchCtx.Done():
			break fetch
		}
	}

	for _, queue := range queues {
		close(queue)
	}
	wg.Wait()
	c.logger.Info("consumer stopped")

	c.mu.Lock()
	parked := len(c.parked) > 0
	c.mu.Unlock()
	if parked && ctx.Err() == nil {
		return ErrRedeliveryRequired
	}
	return nil
}

func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) {
	logger := c.logger.With(
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)

	if c.isParked(msg.Partition) {
		logger.Debug("partition parked pending redelivery, skipping message")
		return
	}

	var ev domain.SupplyAddedEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		logger.Error("undecodable supply event, dead-lettering",
			zap.Error(err),
			zap.ByteString("raw_value", msg.Value),
		)
		c.deadLetterAndCommit(ctx, logger, msg, "decode_failed", err.Error())
		return
	}
	logger = logger.With(zap.Int64("product_id", ev.ProductID))

	var res domain.Result
	for attempt := 1; ; attempt++ {
		res = c.processor.Process(ctx, ev)
		if !res.Outcome.Retriable() || attempt >= c.maxAttempts || ctx.Err() != nil {
			break
		}
		logger.Warn("transient outcome, retrying in place",
			zap.String("outcome", string(res.Outcome)),
			zap.Int("attempt", attempt),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retryBackoff):
		}
	}

	switch res.Outcome {
	case domain.OutcomePersisted, domain.OutcomeDuplicate:
		c.commit(ctx, logger, msg)
	case domain.OutcomeValidationFailed, domain.OutcomeProductNotFound:
		c.deadLetterAndCommit(ctx, logger, msg, string(res.Outcome), res.Detail)
	default:
		logger.Warn("leaving message uncommitted, parking partition for redelivery",
			zap.String("outcome", string(res.Outcome)),
			zap.Error(res.Err),
		)
		c.park(msg.Partition)
	}
}

func (c *Consumer) commit(ctx context.Context, logger *zap.Logger, msg kafka.Message) {
	if err := c.fetcher.CommitMessages(ctx, msg); err != nil {
		logger.Error("commit failed, message may be redelivered", zap.Error(err))
	}
}

func (c *Consumer) deadLetterAndCommit(ctx context.Context, logger *zap.Logger, msg kafka.Message, reason, detail string) {
	dead := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "x-dead-letter-reason", Value: []byte(reason)},
			kafka.Header{Key: "x-dead-letter-detail", Value: []byte(detail)},
		),
	}
	if err := c.deadLetter.WriteMessages(ctx, dead); err != nil {
		// Keep the message on the inbound topic rather than lose it.
		logger.Error("dead-letter publish failed, parking partition", zap.Error(err))
		c.park(msg.Partition)
		return
	}
	logger.Warn("message dead-lettered", zap.String("reason", reason), zap.String("detail", detail))
	c.commit(ctx, logger, msg)
}

// park marks a partition as blocked on an uncommitted offset and begins
// consumer wind-down. A parked partition accepts no further commits, so the
// blocked offset can never be implicitly acknowledged by a later one.
func (c *Consumer) park(partition int) {
	c.mu.Lock()
	c.parked[partition] = true
	stop := c.stop
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (c *Consumer) isParked(partition int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parked[partition]
}
