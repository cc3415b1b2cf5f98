package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"curveStatApp/internal/domain/model"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrUnknownEvent is returned for logs whose topic is not one of the curve events.
	ErrUnknownEvent = errors.New("unknown curve event")
	// ErrValueOverflow is returned when a step or timestamp exceeds 64 bits.
	ErrValueOverflow = errors.New("value does not fit in 64 bits")
)

type tradeLog struct {
	Trader       common.Address
	IsBuy        bool
	TokenAmount  *big.Int
	NativeAmount *big.Int
	Step         *big.Int
}

type stepAdvancedLog struct {
	NewStep  *big.Int
	NewPrice *big.Int
}

type graduatedLog struct {
	TokensSold    *big.Int
	NativeReserve *big.Int
	Timestamp     *big.Int
}

// Decoder maps raw curve logs to CurveEvents.
type Decoder struct {
	abi abi.ABI
}

func NewDecoder() (*Decoder, error) {
	parsed, err := ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("chain.NewDecoder: %w", err)
	}
	return &Decoder{abi: parsed}, nil
}

// Topics lists the event signatures the decoder understands, for log filters.
func (d *Decoder) Topics() []common.Hash {
	return []common.Hash{
		d.abi.Events[eventTrade].ID,
		d.abi.Events[eventStepAdvanced].ID,
		d.abi.Events[eventGraduated].ID,
	}
}

// Decode converts one log. The trade's ObservedAt is left zero for the aggregator to stamp.
func (d *Decoder) Decode(l types.Log) (*model.CurveEvent, error) {
	const op = "chain.Decoder.Decode"

	if len(l.Topics) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrUnknownEvent)
	}
	ev, err := d.abi.EventByID(l.Topics[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrUnknownEvent, l.Topics[0].Hex())
	}

	event := &model.CurveEvent{
		TransactionHash: l.TxHash.Hex(),
		BlockNumber:     l.BlockNumber,
		LogIndex:        l.Index,
	}

	switch ev.Name {
	case eventTrade:
		var out tradeLog
		if err := d.unpack(&out, ev, l); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !out.Step.IsUint64() {
			return nil, fmt.Errorf("%s: %w: trade step %s", op, ErrValueOverflow, out.Step)
		}
		event.Kind = model.EventTrade
		event.Trade = &model.TradeRecord{
			TransactionHash: event.TransactionHash,
			Trader:          strings.ToLower(out.Trader.Hex()),
			IsBuy:           out.IsBuy,
			Quantity:        model.FromWei(out.TokenAmount),
			CostOrProceeds:  model.FromWei(out.NativeAmount),
			StepIndex:       out.Step.Uint64(),
			BlockNumber:     l.BlockNumber,
		}
	case eventStepAdvanced:
		var out stepAdvancedLog
		if err := d.unpack(&out, ev, l); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !out.NewStep.IsUint64() {
			return nil, fmt.Errorf("%s: %w: step %s", op, ErrValueOverflow, out.NewStep)
		}
		event.Kind = model.EventStepAdvanced
		event.Step = &model.StepAdvance{
			Step:  out.NewStep.Uint64(),
			Price: model.FromWei(out.NewPrice),
		}
	case eventGraduated:
		var out graduatedLog
		if err := d.unpack(&out, ev, l); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !out.Timestamp.IsInt64() {
			return nil, fmt.Errorf("%s: %w: timestamp %s", op, ErrValueOverflow, out.Timestamp)
		}
		event.Kind = model.EventGraduated
		event.Graduation = &model.GraduationRecord{
			TokensSoldOnCurve: model.FromWei(out.TokensSold),
			NativeReserve:     model.FromWei(out.NativeReserve),
			GraduatedAt:       time.Unix(out.Timestamp.Int64(), 0).UTC(),
			TransactionHash:   event.TransactionHash,
			BlockNumber:       l.BlockNumber,
		}
	default:
		return nil, fmt.Errorf("%s: %w: %s", op, ErrUnknownEvent, ev.Name)
	}

	return event, nil
}

func (d *Decoder) unpack(out interface{}, ev *abi.Event, l types.Log) error {
	if err := d.abi.UnpackIntoInterface(out, ev.Name, l.Data); err != nil {
		return fmt.Errorf("unpack %s data: %w", ev.Name, err)
	}

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(indexed) == 0 {
		return nil
	}
	if len(l.Topics) < len(indexed)+1 {
		return fmt.Errorf("unpack %s topics: want %d, got %d", ev.Name, len(indexed)+1, len(l.Topics))
	}
	if err := abi.ParseTopics(out, indexed, l.Topics[1:]); err != nil {
		return fmt.Errorf("unpack %s topics: %w", ev.Name, err)
	}
	return nil
}
