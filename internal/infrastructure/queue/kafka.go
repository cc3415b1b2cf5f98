package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"curveStatApp/internal/app/dto"
	"curveStatApp/internal/domain/model"
	"curveStatApp/internal/lib/logger/sl"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	BatchSize     int
	BatchTimeout  int // milliseconds
}

// EventProducer publishes decoded curve events to the queue.
type EventProducer interface {
	PublishEvents(ctx context.Context, events []*dto.CurveEventDTO) error
	Close() error
}

// EventConsumer delivers queued curve events and acknowledges them once applied.
type EventConsumer interface {
	Subscribe(ctx context.Context) (<-chan *model.CurveEvent, error)
	Commit(ctx context.Context, event *model.CurveEvent) error
	Close() error
}

// KafkaProducer implements EventProducer using Kafka
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer creates a new Kafka producer
func NewKafkaProducer(config KafkaConfig) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{}, // one curve, one partition: keeps chain order
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &KafkaProducer{writer: writer}
}

// PublishEvents sends a batch of curve events, keyed by curve address.
func (p *KafkaProducer) PublishEvents(ctx context.Context, events []*dto.CurveEventDTO) error {
	const op = "queue.KafkaProducer.PublishEvents"

	msgs := make([]kafka.Message, len(events))
	for i, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		msgs[i] = kafka.Message{
			Key:   []byte(ev.Curve),
			Value: data,
			Time:  time.Now(),
		}
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close closes the producer
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer implements EventConsumer using Kafka. A message is committed only after
// Commit reports its event applied, so a crash redelivers unapplied events.
type KafkaConsumer struct {
	reader        messageReader
	log           *slog.Logger
	inflight      map[string]kafka.Message // event key -> fetched, not yet applied
	pendingMsgs   []kafka.Message          // applied, awaiting commit
	pendingMsgsMu sync.Mutex
	batchSize     int
	batchTimeout  time.Duration
}

// NewKafkaConsumer creates a new Kafka consumer
func NewKafkaConsumer(log *slog.Logger, config KafkaConfig) *KafkaConsumer {
	return newKafkaConsumer(log, config, kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		Topic:          config.Topic,
		GroupID:        config.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0, // explicit commits only
		StartOffset:    kafka.LastOffset,
	}))
}

func newKafkaConsumer(log *slog.Logger, config KafkaConfig, reader messageReader) *KafkaConsumer {
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	batchTimeout := time.Duration(config.BatchTimeout) * time.Millisecond
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}

	return &KafkaConsumer{
		reader:       reader,
		log:          log.With(slog.String("component", "kafka_consumer"), slog.String("topic", config.Topic)),
		inflight:     make(map[string]kafka.Message),
		batchSize:    batchSize,
		batchTimeout: batchTimeout,
	}
}

// Subscribe returns a channel of curve events from Kafka
func (c *KafkaConsumer) Subscribe(ctx context.Context) (<-chan *model.CurveEvent, error) {
	eventCh := make(chan *model.CurveEvent, 1000)

	go c.startBatchCommitter(ctx)

	go func() {
		defer close(eventCh)

		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					c.log.Error("failed to fetch message", sl.Err(err))
				}
				return
			}

			var wire dto.CurveEventDTO
			if err := json.Unmarshal(msg.Value, &wire); err != nil {
				c.log.Warn("dropping malformed message", sl.Err(err), slog.Int64("offset", msg.Offset))
				// Commit bad messages to avoid getting stuck
				_ = c.reader.CommitMessages(ctx, msg)
				continue
			}
			event, err := wire.ToModel()
			if err != nil {
				c.log.Warn("dropping invalid event", sl.Err(err), slog.Int64("offset", msg.Offset))
				_ = c.reader.CommitMessages(ctx, msg)
				continue
			}

			c.pendingMsgsMu.Lock()
			c.inflight[event.Key()] = msg
			inflightCount := len(c.inflight)
			c.pendingMsgsMu.Unlock()

			if inflightCount > c.batchSize*10 {
				c.log.Warn("large number of unapplied messages", slog.Int("inflight", inflightCount), slog.Int("batch_size", c.batchSize))
			}

			select {
			case <-ctx.Done():
				return
			case eventCh <- event:
			}
		}
	}()

	return eventCh, nil
}

// startBatchCommitter periodically commits messages in batches
func (c *KafkaConsumer) startBatchCommitter(ctx context.Context) {
	ticker := time.NewTicker(c.batchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// The original context is gone; flush with a fresh one.
			c.commitAllPending(context.Background())
			return
		case <-ticker.C:
			c.commitAllPending(ctx)
		}
	}
}

func (c *KafkaConsumer) commitAllPending(ctx context.Context) {
	c.pendingMsgsMu.Lock()
	defer c.pendingMsgsMu.Unlock()
	c.commitLocked(ctx)
}

func (c *KafkaConsumer) commitLocked(ctx context.Context) {
	if len(c.pendingMsgs) == 0 {
		return
	}

	if err := c.reader.CommitMessages(ctx, c.pendingMsgs...); err != nil {
		c.log.Error("failed to commit batch", sl.Err(err), slog.Int("messages", len(c.pendingMsgs)))
		return
	}

	c.log.Debug("committed batch", slog.Int("messages", len(c.pendingMsgs)))
	c.pendingMsgs = c.pendingMsgs[:0]
}

// Commit acknowledges that an event has been applied. Offsets are written in batches.
func (c *KafkaConsumer) Commit(ctx context.Context, event *model.CurveEvent) error {
	if event == nil {
		return fmt.Errorf("queue: cannot commit nil event")
	}
	key := event.Key()

	c.pendingMsgsMu.Lock()
	defer c.pendingMsgsMu.Unlock()

	msg, exists := c.inflight[key]
	if !exists {
		return fmt.Errorf("queue: message for event %s not pending", key)
	}
	delete(c.inflight, key)
	c.pendingMsgs = append(c.pendingMsgs, msg)

	if len(c.pendingMsgs) >= c.batchSize {
		c.commitLocked(ctx)
	}
	return nil
}

// Close closes the consumer
func (c *KafkaConsumer) Close() error {
	c.commitAllPending(context.Background())
	return c.reader.Close()
}
