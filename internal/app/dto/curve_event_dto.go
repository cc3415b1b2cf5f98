package dto

import (
	"fmt"

	"curveStatApp/internal/domain/model"

	"github.com/shopspring/decimal"
)

// CurveEventDTO is the queue wire form of a decoded chain log.
type CurveEventDTO struct {
	Kind            string `json:"kind"`
	Curve           string `json:"curve"`
	TransactionHash string `json:"transactionHash"`
	BlockNumber     uint64 `json:"blockNumber"`
	LogIndex        uint   `json:"logIndex"`

	Trade      *TradeDTO      `json:"trade,omitempty"`
	Step       *StepDTO       `json:"step,omitempty"`
	Graduation *GraduationDTO `json:"graduation,omitempty"`
}

type StepDTO struct {
	Step  uint64 `json:"step"`
	Price string `json:"price"`
}

// FromCurveEvent creates a CurveEventDTO from a domain event
func FromCurveEvent(curve string, e *model.CurveEvent) *CurveEventDTO {
	d := &CurveEventDTO{
		Kind:            string(e.Kind),
		Curve:           curve,
		TransactionHash: e.TransactionHash,
		BlockNumber:     e.BlockNumber,
		LogIndex:        e.LogIndex,
		Graduation:      FromGraduation(e.Graduation),
	}
	if e.Trade != nil {
		t := FromTrade(e.Trade)
		d.Trade = &t
	}
	if e.Step != nil {
		d.Step = &StepDTO{Step: e.Step.Step, Price: e.Step.Price.String()}
	}
	return d
}

// ToModel converts the DTO back to a domain event, rejecting payloads that do not match the kind.
func (d *CurveEventDTO) ToModel() (*model.CurveEvent, error) {
	e := &model.CurveEvent{
		Kind:            model.EventKind(d.Kind),
		TransactionHash: d.TransactionHash,
		BlockNumber:     d.BlockNumber,
		LogIndex:        d.LogIndex,
	}

	var err error
	switch e.Kind {
	case model.EventTrade:
		if d.Trade == nil {
			return nil, fmt.Errorf("dto: %s event without trade payload", d.Kind)
		}
		e.Trade, err = d.Trade.ToModel()
	case model.EventStepAdvanced:
		if d.Step == nil {
			return nil, fmt.Errorf("dto: %s event without step payload", d.Kind)
		}
		var price decimal.Decimal
		price, err = decimal.NewFromString(d.Step.Price)
		e.Step = &model.StepAdvance{Step: d.Step.Step, Price: price}
	case model.EventGraduated:
		if d.Graduation == nil {
			return nil, fmt.Errorf("dto: %s event without graduation payload", d.Kind)
		}
		e.Graduation, err = d.Graduation.ToModel()
	default:
		return nil, fmt.Errorf("dto: unknown event kind %q", d.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("dto: %s event: %w", d.Kind, err)
	}
	return e, nil
}

// ToModel converts the DTO to a domain model
func (t *TradeDTO) ToModel() (*model.TradeRecord, error) {
	qty, err := decimal.NewFromString(t.Quantity)
	if err != nil {
		return nil, fmt.Errorf("quantity: %w", err)
	}
	cost, err := decimal.NewFromString(t.CostOrProceeds)
	if err != nil {
		return nil, fmt.Errorf("costOrProceeds: %w", err)
	}
	return &model.TradeRecord{
		TransactionHash: t.TransactionHash,
		Trader:          t.Trader,
		IsBuy:           t.IsBuy,
		Quantity:        qty,
		CostOrProceeds:  cost,
		StepIndex:       t.StepIndex,
		ObservedAt:      t.ObservedAt,
		BlockNumber:     t.BlockNumber,
	}, nil
}

func (g *GraduationDTO) ToModel() (*model.GraduationRecord, error) {
	sold, err := decimal.NewFromString(g.TokensSoldOnCurve)
	if err != nil {
		return nil, fmt.Errorf("tokensSoldOnCurve: %w", err)
	}
	reserve, err := decimal.NewFromString(g.NativeReserve)
	if err != nil {
		return nil, fmt.Errorf("nativeReserve: %w", err)
	}
	return &model.GraduationRecord{
		TokensSoldOnCurve: sold,
		NativeReserve:     reserve,
		GraduatedAt:       g.GraduatedAt,
		TransactionHash:   g.TransactionHash,
		BlockNumber:       g.BlockNumber,
	}, nil
}
