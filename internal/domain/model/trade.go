package model

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// TokenDecimals is the fixed-point scale of every on-chain amount emitted by the curve.
const TokenDecimals = 18

// FromWei converts a raw 18-decimal chain integer into an exact token-denominated decimal.
func FromWei(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -TokenDecimals)
}

// TradeRecord is one observed Trade event on the bonding curve.
type TradeRecord struct {
	TransactionHash string
	Trader          string // lower-cased hex address
	IsBuy           bool
	Quantity        decimal.Decimal // tokens bought or sold
	CostOrProceeds  decimal.Decimal // native cost for buys, native proceeds for sells
	StepIndex       uint64
	ObservedAt      time.Time // receipt time, not block time
	BlockNumber     uint64
}

// CurveSnapshot is the latest known price tier of the curve.
type CurveSnapshot struct {
	CurrentStep  uint64
	CurrentPrice decimal.Decimal
	CapturedAt   time.Time
}

// GraduationRecord is set once, when the curve migrates to a DEX pool.
type GraduationRecord struct {
	TokensSoldOnCurve decimal.Decimal
	NativeReserve     decimal.Decimal
	GraduatedAt       time.Time
	TransactionHash   string
	BlockNumber       uint64
}

// StepAdvance carries the payload of a StepAdvanced event.
type StepAdvance struct {
	Step  uint64
	Price decimal.Decimal
}

// EventKind names the curve events the indexer understands.
type EventKind string

const (
	EventTrade        EventKind = "trade"
	EventStepAdvanced EventKind = "step_advanced"
	EventGraduated    EventKind = "graduated"
)

// CurveEvent is a decoded chain log. Exactly one of Trade, Step or Graduation is set,
// matching Kind.
type CurveEvent struct {
	Kind            EventKind
	TransactionHash string
	BlockNumber     uint64
	LogIndex        uint

	Trade      *TradeRecord
	Step       *StepAdvance
	Graduation *GraduationRecord
}

// Key identifies the log that produced the event; redelivered logs share it.
func (e *CurveEvent) Key() string {
	return fmt.Sprintf("%s:%d", e.TransactionHash, e.LogIndex)
}
