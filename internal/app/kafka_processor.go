package app

import (
	"context"
	"errors"
	"log/slog"

	"curveStatApp/internal/infrastructure/queue"
	"curveStatApp/internal/lib/logger/sl"
)

var errConsumerStopped = errors.New("kafka consumer stopped")

// KafkaEventProcessor applies curve events consumed from Kafka and commits each one once handled.
type KafkaEventProcessor struct {
	Consumer queue.EventConsumer
	handler  *eventHandler
	log      *slog.Logger
}

func NewKafkaEventProcessor(log *slog.Logger, consumer queue.EventConsumer, deps Dependencies) *KafkaEventProcessor {
	log = log.With(slog.String("component", "kafka_event_processor"))
	return &KafkaEventProcessor{
		Consumer: consumer,
		handler:  newEventHandler(log, deps),
		log:      log,
	}
}

// Run starts the Kafka event processor
func (p *KafkaEventProcessor) Run(ctx context.Context) error {
	eventCh, err := p.Consumer.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-eventCh:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errConsumerStopped
			}
			if ev == nil {
				continue
			}

			if err := p.handler.handle(ctx, ev); err != nil {
				if errors.Is(err, ErrContextCancelled) {
					return ctx.Err()
				}
				p.log.Warn("failed to process event", sl.Err(err))
			}

			// Handled, skipped and failed events are all committed; none can succeed on retry.
			if err := p.Consumer.Commit(ctx, ev); err != nil && ctx.Err() == nil {
				p.log.Error("failed to commit event", sl.Err(err), slog.String("key", ev.Key()))
			}
		}
	}
}
