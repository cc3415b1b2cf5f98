package utils

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"curveStatApp/internal/domain/model"
)

var (
	demoStepSize  = decimal.NewFromInt(5000)
	demoStepRaise = decimal.RequireFromString("1.05")
)

// TradeGenerator simulates activity on a bonding curve: trades, and a step advance each time
// enough tokens have been bought. For demos and load tests only.
type TradeGenerator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	traders []string
	block   uint64
	step    uint64
	price   decimal.Decimal
	filled  decimal.Decimal
}

// NewTradeGenerator creates a new generator; equal seeds give equal amounts and sides.
func NewTradeGenerator(seed int64) *TradeGenerator {
	traders := make([]string, 8)
	for i := range traders {
		traders[i] = randomAddress()
	}
	return &TradeGenerator{
		rng:     rand.New(rand.NewSource(seed)),
		traders: traders,
		block:   1,
		price:   decimal.RequireFromString("0.0001"),
		filled:  decimal.Zero,
	}
}

// Generate produces count trades in one block, plus any step advances they trigger.
func (g *TradeGenerator) Generate(count int) []*model.CurveEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.block++
	txHash := randomHash()
	events := make([]*model.CurveEvent, 0, count)
	var logIndex uint

	for i := 0; i < count; i++ {
		isBuy := g.rng.Intn(10) < 6
		qty := decimal.NewFromInt(int64(1 + g.rng.Intn(1000)))
		cost := qty.Mul(g.price).Round(model.TokenDecimals)

		events = append(events, &model.CurveEvent{
			Kind:            model.EventTrade,
			TransactionHash: txHash,
			BlockNumber:     g.block,
			LogIndex:        logIndex,
			Trade: &model.TradeRecord{
				TransactionHash: txHash,
				Trader:          g.traders[g.rng.Intn(len(g.traders))],
				IsBuy:           isBuy,
				Quantity:        qty,
				CostOrProceeds:  cost,
				StepIndex:       g.step,
				BlockNumber:     g.block,
			},
		})
		logIndex++

		if !isBuy {
			continue
		}
		g.filled = g.filled.Add(qty)
		if g.filled.LessThan(demoStepSize) {
			continue
		}

		g.filled = g.filled.Sub(demoStepSize)
		g.step++
		g.price = g.price.Mul(demoStepRaise).Round(model.TokenDecimals)
		events = append(events, &model.CurveEvent{
			Kind:            model.EventStepAdvanced,
			TransactionHash: txHash,
			BlockNumber:     g.block,
			LogIndex:        logIndex,
			Step:            &model.StepAdvance{Step: g.step, Price: g.price},
		})
		logIndex++
	}

	return events
}

func randomHash() string {
	id := uuid.New()
	return crypto.Keccak256Hash(id[:]).Hex()
}

func randomAddress() string {
	id := uuid.New()
	return strings.ToLower(common.BytesToAddress(crypto.Keccak256(id[:])[12:]).Hex())
}
