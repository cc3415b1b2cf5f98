package utils_test

import (
	"testing"

	"curveStatApp/internal/domain/model"
	"curveStatApp/pkg/utils"
)

func TestTradeGeneratorProducesValidEvents(t *testing.T) {
	g := utils.NewTradeGenerator(42)

	seen := make(map[string]struct{})
	var trades, steps int
	var lastStep uint64

	for round := 0; round < 50; round++ {
		for _, ev := range g.Generate(20) {
			if _, dup := seen[ev.Key()]; dup {
				t.Fatalf("duplicate event key %s", ev.Key())
			}
			seen[ev.Key()] = struct{}{}

			switch ev.Kind {
			case model.EventTrade:
				trades++
				tr := ev.Trade
				if len(tr.TransactionHash) != 66 || len(tr.Trader) != 42 {
					t.Fatalf("malformed hash or trader: %s %s", tr.TransactionHash, tr.Trader)
				}
				if !tr.Quantity.IsPositive() || !tr.CostOrProceeds.IsPositive() {
					t.Fatalf("expected positive amounts, got %s / %s", tr.Quantity, tr.CostOrProceeds)
				}
			case model.EventStepAdvanced:
				steps++
				if ev.Step.Step != lastStep+1 {
					t.Fatalf("expected step %d, got %d", lastStep+1, ev.Step.Step)
				}
				lastStep = ev.Step.Step
			default:
				t.Fatalf("unexpected kind %s", ev.Kind)
			}
		}
	}

	if trades != 1000 {
		t.Errorf("expected 1000 trades, got %d", trades)
	}
	if steps == 0 {
		t.Error("expected the simulated curve to advance at least one step")
	}
}
