package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"curveStatApp/internal/domain/model"
	"curveStatApp/internal/domain/repository"
	"curveStatApp/internal/domain/useCases"
	"curveStatApp/internal/infrastructure/metrics"
	"curveStatApp/internal/lib/logger/sl"
)

// ErrContextCancelled is returned when the context is cancelled during processing
var ErrContextCancelled = errors.New("context cancelled during processing")

const archiveTimeout = 5 * time.Second

// Dependencies are the collaborators an event processor applies events to.
// Broadcaster and Archive are optional.
type Dependencies struct {
	Trends      useCases.TrendService
	Broadcaster useCases.Broadcaster
	Archive     repository.TradeArchive
	Now         func() time.Time
}

// eventHandler applies one curve event at a time. Callers must not invoke it concurrently.
type eventHandler struct {
	deps  Dependencies
	dedup *dedupWindow
	log   *slog.Logger
}

func newEventHandler(log *slog.Logger, deps Dependencies) *eventHandler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &eventHandler{
		deps:  deps,
		dedup: newDedupWindow(DefaultDedupWindow),
		log:   log,
	}
}

// handle applies ev. A panic in any step is logged and counted; it never escapes.
func (h *eventHandler) handle(ctx context.Context, ev *model.CurveEvent) (err error) {
	if ctx.Err() != nil {
		return ErrContextCancelled
	}
	if ev == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.RecordHandlerPanic()
			err = fmt.Errorf("handler panic: %v", r)
			h.log.Error("event handler panicked",
				sl.Err(err),
				slog.String("kind", string(ev.Kind)),
				slog.String("tx", ev.TransactionHash),
			)
		}
	}()

	if h.dedup.seenBefore(ev.Key()) {
		metrics.RecordDuplicate()
		h.log.Debug("dropping redelivered event", slog.String("key", ev.Key()))
		return nil
	}

	switch ev.Kind {
	case model.EventTrade:
		if ev.Trade == nil {
			return fmt.Errorf("trade event %s without payload", ev.Key())
		}
		trade := *ev.Trade
		if trade.ObservedAt.IsZero() {
			trade.ObservedAt = h.deps.Now()
		}
		trade.Trader = strings.ToLower(trade.Trader)
		h.deps.Trends.RecordTrade(trade)
		h.archive(ctx, "trade", func(ctx context.Context) error {
			return h.deps.Archive.SaveTrade(ctx, &trade)
		})

	case model.EventStepAdvanced:
		if ev.Step == nil {
			return fmt.Errorf("step event %s without payload", ev.Key())
		}
		h.deps.Trends.AdvanceStep(ev.Step.Step, ev.Step.Price)
		metrics.SetCurrentStep(ev.Step.Step)

	case model.EventGraduated:
		if ev.Graduation == nil {
			return fmt.Errorf("graduation event %s without payload", ev.Key())
		}
		if !h.deps.Trends.Graduate(*ev.Graduation) {
			metrics.RecordAnomaly(metrics.AnomalyDuplicateGraduation)
			break
		}
		grad := *ev.Graduation
		h.archive(ctx, "graduation", func(ctx context.Context) error {
			return h.deps.Archive.SaveGraduation(ctx, &grad)
		})

	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	metrics.RecordEvent(string(ev.Kind))
	metrics.SetLedgerSize(h.deps.Trends.TradeCount())

	if h.deps.Broadcaster != nil {
		h.deps.Broadcaster.BroadcastTrending(h.deps.Trends.GetTrendingSnapshot(h.deps.Now()))
	}

	return nil
}

func (h *eventHandler) archive(ctx context.Context, what string, save func(ctx context.Context) error) {
	if h.deps.Archive == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	if err := save(ctx); err != nil {
		metrics.RecordAnomaly(metrics.AnomalyArchiveFailure)
		h.log.Warn("failed to archive "+what, sl.Err(err))
	}
}
