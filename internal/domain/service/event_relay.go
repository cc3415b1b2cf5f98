package service

import (
	"context"
	"log/slog"
	"time"

	"curveStatApp/internal/app/dto"
	"curveStatApp/internal/domain/model"
	"curveStatApp/internal/infrastructure/queue"
	"curveStatApp/internal/lib/logger/sl"
)

const (
	defaultRelayBatch = 50
	relayFlushEvery   = 200 * time.Millisecond
	// batches kept for retry before the oldest events are dropped
	relayMaxPending = 20
)

// EventRelay runs on the ingest replica and forwards chain events to the queue. Trades are
// stamped with their receipt time here, so consumers that read the topic late still window
// them by when they were observed.
type EventRelay struct {
	producer  queue.EventProducer
	curve     string
	batchSize int
	now       func() time.Time
	log       *slog.Logger
}

// NewEventRelay creates a relay publishing events of one curve.
func NewEventRelay(log *slog.Logger, producer queue.EventProducer, curve string, batchSize int) *EventRelay {
	if batchSize <= 0 {
		batchSize = defaultRelayBatch
	}
	return &EventRelay{
		producer:  producer,
		curve:     curve,
		batchSize: batchSize,
		now:       time.Now,
		log:       log.With(slog.String("component", "event_relay")),
	}
}

// Run publishes events from in until ctx is cancelled or in is closed. Failed batches are
// retried on the next flush.
func (r *EventRelay) Run(ctx context.Context, in <-chan *model.CurveEvent) error {
	ticker := time.NewTicker(relayFlushEvery)
	defer ticker.Stop()

	pending := make([]*dto.CurveEventDTO, 0, r.batchSize)

	flush := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		if err := r.producer.PublishEvents(ctx, pending); err != nil {
			r.log.Error("failed to publish events", sl.Err(err), slog.Int("pending", len(pending)))
			if limit := r.batchSize * relayMaxPending; len(pending) > limit {
				dropped := len(pending) - limit
				pending = append(pending[:0], pending[dropped:]...)
				r.log.Error("relay backlog full, dropped oldest events", slog.Int("dropped", dropped))
			}
			return
		}
		pending = pending[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(flushCtx)
			cancel()
			return ctx.Err()
		case ev, ok := <-in:
			if !ok {
				flush(ctx)
				return nil
			}
			if ev == nil {
				continue
			}
			wire := dto.FromCurveEvent(r.curve, ev)
			if wire.Trade != nil && wire.Trade.ObservedAt.IsZero() {
				wire.Trade.ObservedAt = r.now().UTC()
			}
			pending = append(pending, wire)
			if len(pending) >= r.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}
