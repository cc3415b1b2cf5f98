package app

import (
	"context"
	"errors"
	"log/slog"

	"curveStatApp/internal/domain/model"
	"curveStatApp/internal/lib/logger/sl"
)

// EventProcessor applies curve events from a channel in arrival order, one at a time.
type EventProcessor struct {
	EventCh <-chan *model.CurveEvent
	handler *eventHandler
	log     *slog.Logger
}

func NewEventProcessor(log *slog.Logger, eventCh <-chan *model.CurveEvent, deps Dependencies) *EventProcessor {
	log = log.With(slog.String("component", "event_processor"))
	return &EventProcessor{
		EventCh: eventCh,
		handler: newEventHandler(log, deps),
		log:     log,
	}
}

// Run blocks until ctx is cancelled or the channel is closed.
func (p *EventProcessor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-p.EventCh:
			if !ok {
				p.log.Info("event channel closed, stopping event processor")
				return nil
			}
			if err := p.handler.handle(ctx, ev); err != nil {
				if errors.Is(err, ErrContextCancelled) {
					p.log.Info("context cancelled, stopping event processor")
					return ctx.Err()
				}
				// Other errors are just logged but processing continues
				p.log.Warn("failed to process event", sl.Err(err))
			}
		}
	}
}
