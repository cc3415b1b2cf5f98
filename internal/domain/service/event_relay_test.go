package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"curveStatApp/internal/app/dto"
	"curveStatApp/internal/domain/model"
	"curveStatApp/internal/domain/service"
)

type fakeProducer struct {
	mu      sync.Mutex
	fail    int
	batches [][]*dto.CurveEventDTO
}

func (p *fakeProducer) PublishEvents(ctx context.Context, events []*dto.CurveEventDTO) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail > 0 {
		p.fail--
		return errors.New("broker unavailable")
	}
	batch := make([]*dto.CurveEventDTO, len(events))
	copy(batch, events)
	p.batches = append(p.batches, batch)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) published() []*dto.CurveEventDTO {
	p.mu.Lock()
	defer p.mu.Unlock()
	var all []*dto.CurveEventDTO
	for _, b := range p.batches {
		all = append(all, b...)
	}
	return all
}

func stepEvent(i uint) *model.CurveEvent {
	return &model.CurveEvent{
		Kind:            model.EventStepAdvanced,
		TransactionHash: "0xrelay",
		LogIndex:        i,
		Step:            &model.StepAdvance{Step: uint64(i)},
	}
}

func TestEventRelayBatchesByCurve(t *testing.T) {
	producer := &fakeProducer{}
	relay := service.NewEventRelay(newTestLogger(), producer, "0xcurve", 2)

	in := make(chan *model.CurveEvent, 5)
	for i := uint(0); i < 5; i++ {
		in <- stepEvent(i)
	}
	close(in)

	if err := relay.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := producer.published()
	if len(got) != 5 {
		t.Fatalf("expected 5 published events, got %d", len(got))
	}
	for i, ev := range got {
		if ev.Curve != "0xcurve" {
			t.Errorf("event %d: expected curve key 0xcurve, got %s", i, ev.Curve)
		}
		if ev.LogIndex != uint(i) {
			t.Errorf("event %d: out of order, log index %d", i, ev.LogIndex)
		}
	}
}

func TestEventRelayRetriesFailedBatch(t *testing.T) {
	producer := &fakeProducer{fail: 1}
	relay := service.NewEventRelay(newTestLogger(), producer, "0xcurve", 1)

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan *model.CurveEvent, 1)
	in <- stepEvent(7)

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx, in) }()

	deadline := time.After(2 * time.Second)
	for len(producer.published()) == 0 {
		select {
		case <-deadline:
			t.Fatal("event was never republished")
		case <-time.After(20 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if got := producer.published(); len(got) != 1 || got[0].LogIndex != 7 {
		t.Errorf("expected the failed event to be retried once, got %+v", got)
	}
}

func TestEventRelayStampsTradesOnReceipt(t *testing.T) {
	producer := &fakeProducer{}
	relay := service.NewEventRelay(newTestLogger(), producer, "0xcurve", 10)

	stamped := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := make(chan *model.CurveEvent, 2)
	in <- &model.CurveEvent{
		Kind: model.EventTrade, TransactionHash: "0xa",
		Trade: &model.TradeRecord{TransactionHash: "0xa", IsBuy: true},
	}
	in <- &model.CurveEvent{
		Kind: model.EventTrade, TransactionHash: "0xb", LogIndex: 1,
		Trade: &model.TradeRecord{TransactionHash: "0xb", ObservedAt: stamped},
	}
	close(in)

	before := time.Now()
	if err := relay.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	after := time.Now()

	got := producer.published()
	if len(got) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(got))
	}
	if at := got[0].Trade.ObservedAt; at.Before(before) || at.After(after) {
		t.Errorf("expected receipt time between %s and %s, got %s", before, after, at)
	}
	if !got[1].Trade.ObservedAt.Equal(stamped) {
		t.Errorf("expected existing stamp to be kept, got %s", got[1].Trade.ObservedAt)
	}
}
