package chain_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"curveStatApp/internal/app"
	"curveStatApp/internal/domain/model"
	"curveStatApp/internal/domain/service"
	"curveStatApp/internal/infrastructure/chain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeBackend serves a fixed set of logs and a movable chain head.
type fakeBackend struct {
	mu    sync.Mutex
	head  uint64
	logs  []types.Log
	calls map[string][]byte
	err   error
	// FromBlock of every FilterLogs call
	filteredFrom []uint64
}

func (f *fakeBackend) filterStarts() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.filteredFrom...)
}

func (f *fakeBackend) setHead(h uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = h
}

func (f *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, f.err
}

func (f *fakeBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if q.FromBlock != nil {
		f.filteredFrom = append(f.filteredFrom, q.FromBlock.Uint64())
	}
	var out []types.Log
	for _, l := range f.logs {
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeBackend) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	for selector, out := range f.calls {
		if bytes.HasPrefix(msg.Data, []byte(selector)) {
			return out, nil
		}
	}
	return nil, errors.New("unexpected call")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReadCurveState(t *testing.T) {
	parsed, err := chain.ParsedABI()
	if err != nil {
		t.Fatal(err)
	}
	stepOut, _ := parsed.Methods["currentStep"].Outputs.Pack(big.NewInt(4))
	priceOut, _ := parsed.Methods["currentPrice"].Outputs.Pack(wei(t, "1500000000000000"))

	backend := &fakeBackend{calls: map[string][]byte{
		string(parsed.Methods["currentStep"].ID):  stepOut,
		string(parsed.Methods["currentPrice"].ID): priceOut,
	}}
	c, err := chain.NewClientWithBackend(discardLogger(), backend, chain.Options{CurveAddress: curveAddr.Hex()})
	if err != nil {
		t.Fatal(err)
	}

	step, price, err := c.ReadCurveState(context.Background())
	if err != nil {
		t.Fatalf("ReadCurveState: %v", err)
	}
	if step != 4 {
		t.Errorf("expected step 4, got %d", step)
	}
	if price.String() != "0.0015" {
		t.Errorf("expected price 0.0015, got %s", price)
	}
}

func TestReadCurveStateCallError(t *testing.T) {
	backend := &fakeBackend{calls: map[string][]byte{}}
	c, err := chain.NewClientWithBackend(discardLogger(), backend, chain.Options{CurveAddress: curveAddr.Hex()})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.ReadCurveState(context.Background()); err == nil {
		t.Error("expected an error when the contract call fails")
	}
}

func TestSubscribePollDeliversNewLogsOnly(t *testing.T) {
	removed := tradeLog(t, 12, 1, true)
	removed.Removed = true
	garbage := tradeLog(t, 12, 2, true)
	garbage.Data = nil

	backend := &fakeBackend{
		head: 10,
		logs: []types.Log{
			tradeLog(t, 9, 0, true), // before startup, never replayed
			tradeLog(t, 11, 0, true),
			removed,
			garbage,
			packLog(t, "StepAdvanced", 12, 3, nil, big.NewInt(2), big.NewInt(1)),
		},
	}
	c, err := chain.NewClientWithBackend(discardLogger(), backend, chain.Options{
		CurveAddress: curveAddr.Hex(),
		PollInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan *model.CurveEvent, 10)
	done := make(chan error, 1)
	go func() { done <- c.Subscribe(ctx, out) }()

	// Let the first poll pin the start block before the head moves.
	time.Sleep(30 * time.Millisecond)
	backend.setHead(12)

	var got []*model.CurveEvent
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-out:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("timed out, got %d events", len(got))
		}
	}

	if got[0].Kind != model.EventTrade || got[0].BlockNumber != 11 {
		t.Errorf("expected trade at block 11 first, got %s at %d", got[0].Kind, got[0].BlockNumber)
	}
	if got[1].Kind != model.EventStepAdvanced || got[1].Step.Step != 2 {
		t.Errorf("expected step advance to 2, got %+v", got[1])
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Subscribe did not stop after cancel")
	}

	select {
	case ev := <-out:
		t.Errorf("unexpected extra event %+v", ev)
	default:
	}
}

func TestIsStreamingURL(t *testing.T) {
	tests := map[string]bool{
		"ws://localhost:8546":         true,
		"wss://rpc.example.org":       true,
		"/var/run/geth.ipc":           true,
		"http://localhost:8545":       false,
		"https://rpc.example.org/key": false,
	}
	for url, want := range tests {
		if got := chain.IsStreamingURL(url); got != want {
			t.Errorf("IsStreamingURL(%q) = %v, want %v", url, got, want)
		}
	}
}

type fakeSubscription struct {
	errCh chan error
}

func (s *fakeSubscription) Unsubscribe()      {}
func (s *fakeSubscription) Err() <-chan error { return s.errCh }

// streamBackend adds push subscriptions the test can feed and break.
type streamBackend struct {
	*fakeBackend
	subscribed chan struct{}

	subMu sync.Mutex
	subs  []*fakeSubscription
	sinks []chan<- types.Log
}

func (b *streamBackend) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	b.subMu.Lock()
	sub := &fakeSubscription{errCh: make(chan error, 1)}
	b.subs = append(b.subs, sub)
	b.sinks = append(b.sinks, ch)
	b.subMu.Unlock()

	b.subscribed <- struct{}{}
	return sub, nil
}

func (b *streamBackend) subscription(i int) (*fakeSubscription, chan<- types.Log) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	return b.subs[i], b.sinks[i]
}

func waitFor[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

func TestSubscribeStreamReconnectsAndBackfills(t *testing.T) {
	removed := tradeLog(t, 12, 2, true)
	removed.Removed = true

	backend := &streamBackend{
		fakeBackend: &fakeBackend{
			head: 10,
			logs: []types.Log{tradeLog(t, 12, 0, true), tradeLog(t, 12, 1, false), removed},
		},
		subscribed: make(chan struct{}, 4),
	}
	c, err := chain.NewClientWithBackend(discardLogger(), backend, chain.Options{
		CurveAddress: curveAddr.Hex(),
		Streaming:    true,
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan *model.CurveEvent, 10)
	done := make(chan error, 1)
	go func() { done <- c.Subscribe(ctx, out) }()

	waitFor(t, backend.subscribed, "first subscription")
	sub, sink := backend.subscription(0)
	sink <- tradeLog(t, 12, 0, true)
	first := waitFor(t, out, "streamed log")

	// The connection drops after block 12 was partly seen.
	backend.setHead(12)
	sub.errCh <- errors.New("connection reset")

	waitFor(t, backend.subscribed, "reconnect")
	redelivered := waitFor(t, out, "backfilled log")
	missed := waitFor(t, out, "log missed while disconnected")

	if starts := backend.filterStarts(); len(starts) != 1 || starts[0] != 12 {
		t.Errorf("expected backfill to start at block 12, got %v", starts)
	}
	if redelivered.Key() != first.Key() {
		t.Errorf("expected %s to be redelivered, got %s", first.Key(), redelivered.Key())
	}
	if missed.LogIndex != 1 {
		t.Errorf("expected log index 1 from backfill, got %d", missed.LogIndex)
	}

	cancel()
	if err := waitFor(t, done, "Subscribe to stop"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	select {
	case ev := <-out:
		t.Errorf("removed log must not be delivered, got %s", ev.Key())
	default:
	}

	// The processor applies the redelivered trade once.
	trends := service.NewTrendAggregator(discardLogger(), 10)
	events := make(chan *model.CurveEvent, 3)
	events <- first
	events <- redelivered
	events <- missed
	close(events)
	if err := app.NewEventProcessor(discardLogger(), events, app.Dependencies{Trends: trends}).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := trends.TradeCount(); got != 2 {
		t.Errorf("expected 2 trades after dedup, got %d", got)
	}
}
