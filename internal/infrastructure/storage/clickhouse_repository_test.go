package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"curveStatApp/internal/domain/model"
	"curveStatApp/internal/infrastructure/storage"

	"github.com/shopspring/decimal"
)

// Runs only against a live server: CLICKHOUSE_TEST_ADDR=localhost:9000 go test ./...
func TestClickHouseRepository(t *testing.T) {
	addr := os.Getenv("CLICKHOUSE_TEST_ADDR")
	if addr == "" {
		t.Skip("Skipping ClickHouse test - requires live ClickHouse instance")
	}

	ctx := context.Background()
	curve := "0xtest" + time.Now().Format("150405.000000")
	repo, err := storage.NewClickHouseRepository(ctx, storage.ClickHouseConfig{
		Addr:     addr,
		Username: "default",
		Timeout:  5,
		Curve:    curve,
	})
	if err != nil {
		t.Fatalf("Failed to connect to ClickHouse: %v", err)
	}
	defer repo.Close()

	observed := time.Now().UTC().Truncate(time.Millisecond)
	trade := &model.TradeRecord{
		TransactionHash: "0xabc",
		Trader:          "0xdef",
		IsBuy:           true,
		Quantity:        decimal.RequireFromString("2.5"),
		CostOrProceeds:  decimal.RequireFromString("0.000000000000000001"),
		StepIndex:       4,
		ObservedAt:      observed,
		BlockNumber:     100,
	}

	if err := repo.SaveTrade(ctx, trade); err != nil {
		t.Fatalf("Failed to save trade: %v", err)
	}

	var trades []*model.TradeRecord
	deadline := time.Now().Add(5 * time.Second)
	for len(trades) == 0 && time.Now().Before(deadline) {
		trades, err = repo.GetTradesSince(ctx, observed.Add(-time.Minute), 10)
		if err != nil {
			t.Fatalf("Failed to get trades: %v", err)
		}
		time.Sleep(100 * time.Millisecond)
	}

	if len(trades) != 1 {
		t.Fatalf("Expected 1 trade, got %d", len(trades))
	}
	if !trades[0].CostOrProceeds.Equal(trade.CostOrProceeds) {
		t.Errorf("Expected cost %s, got %s", trade.CostOrProceeds, trades[0].CostOrProceeds)
	}
	if !trades[0].ObservedAt.Equal(observed) {
		t.Errorf("Expected observed_at %s, got %s", observed, trades[0].ObservedAt)
	}
}
