package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"curveStatApp/internal/domain/model"
	"curveStatApp/internal/infrastructure/metrics"
	"curveStatApp/internal/lib/logger/sl"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
)

var errSubscriptionClosed = errors.New("log subscription closed")

// Backend is the subset of an RPC client the curve reader needs. *ethclient.Client satisfies it.
type Backend interface {
	ethereum.LogFilterer
	ethereum.ContractCaller
	BlockNumber(ctx context.Context) (uint64, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Options configure a Client.
type Options struct {
	RPCURL       string
	CurveAddress string
	PollInterval time.Duration
	ReadTimeout  time.Duration
	// Streaming selects push subscriptions instead of polling. NewClient derives it from RPCURL.
	Streaming bool
}

// Client reads curve state and streams curve events from an Ethereum RPC endpoint.
type Client struct {
	backend  Backend
	address  common.Address
	abi      abi.ABI
	decoder  *Decoder
	opts     Options
	log      *slog.Logger
	backoff  *backoff.Backoff
	closer   func()
	nextFrom uint64
}

// NewClient dials the RPC endpoint. Websocket and IPC endpoints get push subscriptions,
// HTTP endpoints are polled.
func NewClient(ctx context.Context, log *slog.Logger, opts Options) (*Client, error) {
	const op = "chain.NewClient"

	if !common.IsHexAddress(opts.CurveAddress) {
		return nil, fmt.Errorf("%s: invalid curve address %q", op, opts.CurveAddress)
	}

	dialCtx, cancel := context.WithTimeout(ctx, readTimeout(opts))
	defer cancel()

	rpc, err := ethclient.DialContext(dialCtx, opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	opts.Streaming = IsStreamingURL(opts.RPCURL)
	c, err := NewClientWithBackend(log, rpc, opts)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	c.closer = rpc.Close
	return c, nil
}

// NewClientWithBackend builds a Client around an existing backend.
func NewClientWithBackend(log *slog.Logger, backend Backend, opts Options) (*Client, error) {
	const op = "chain.NewClientWithBackend"

	parsed, err := ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}

	return &Client{
		backend: backend,
		address: common.HexToAddress(opts.CurveAddress),
		abi:     parsed,
		decoder: decoder,
		opts:    opts,
		log:     log.With(slog.String("component", "chain"), slog.String("curve", opts.CurveAddress)),
		backoff: &backoff.Backoff{
			Min:    500 * time.Millisecond,
			Max:    30 * time.Second,
			Factor: 2,
			Jitter: true,
		},
	}, nil
}

// IsStreamingURL reports whether the endpoint supports eth_subscribe.
func IsStreamingURL(url string) bool {
	u := strings.ToLower(url)
	return strings.HasPrefix(u, "ws://") || strings.HasPrefix(u, "wss://") || strings.HasSuffix(u, ".ipc")
}

func readTimeout(opts Options) time.Duration {
	if opts.ReadTimeout <= 0 {
		return 10 * time.Second
	}
	return opts.ReadTimeout
}

// ReadCurveState performs the startup read of the current step and price.
func (c *Client) ReadCurveState(ctx context.Context) (uint64, decimal.Decimal, error) {
	const op = "chain.Client.ReadCurveState"

	ctx, cancel := context.WithTimeout(ctx, readTimeout(c.opts))
	defer cancel()

	step, err := c.callUint(ctx, methodCurrentStep)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	price, err := c.callUint(ctx, methodCurrentPrice)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	if !step.IsUint64() {
		return 0, decimal.Zero, fmt.Errorf("%s: %w: step %s", op, ErrValueOverflow, step)
	}
	return step.Uint64(), model.FromWei(price), nil
}

func (c *Client) callUint(ctx context.Context, method string) (*big.Int, error) {
	data, err := c.abi.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unpack %s: expected 1 value, got %d", method, len(values))
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected type %T", method, values[0])
	}
	return v, nil
}

// Subscribe streams decoded events into out until ctx is cancelled. Dropped subscriptions are
// re-established with exponential backoff, backfilling from the last seen block, so a log may be
// delivered more than once.
func (c *Client) Subscribe(ctx context.Context, out chan<- *model.CurveEvent) error {
	for {
		var err error
		if c.opts.Streaming {
			err = c.stream(ctx, out)
		} else {
			err = c.poll(ctx, out)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := c.backoff.Duration()
		c.log.Warn("log subscription dropped, reconnecting",
			sl.Err(err),
			slog.Duration("retry_in", wait),
			slog.Uint64("from_block", c.nextFrom),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) stream(ctx context.Context, out chan<- *model.CurveEvent) error {
	logs := make(chan types.Log, 128)
	sub, err := c.backend.SubscribeFilterLogs(ctx, c.query(nil, nil), logs)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	// Blocks produced while disconnected.
	if err := c.catchUp(ctx, out); err != nil {
		return err
	}
	c.backoff.Reset()
	c.log.Info("log subscription established", slog.String("mode", "stream"))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				return errSubscriptionClosed
			}
			return err
		case l := <-logs:
			c.deliver(ctx, l, out)
			// Later logs of the same block may still arrive, so backfill restarts at this block.
			if l.BlockNumber > c.nextFrom {
				c.nextFrom = l.BlockNumber
			}
		}
	}
}

func (c *Client) poll(ctx context.Context, out chan<- *model.CurveEvent) error {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	established := false
	for {
		if err := c.catchUp(ctx, out); err != nil {
			return err
		}
		if !established {
			established = true
			c.backoff.Reset()
			c.log.Info("log subscription established", slog.String("mode", "poll"), slog.Duration("interval", c.opts.PollInterval))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// catchUp delivers every curve log from nextFrom to the current head. The first call only
// records the head: history before startup is not replayed.
func (c *Client) catchUp(ctx context.Context, out chan<- *model.CurveEvent) error {
	head, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("block number: %w", err)
	}
	if c.nextFrom == 0 {
		c.nextFrom = head + 1
		return nil
	}
	if head < c.nextFrom {
		return nil
	}

	logs, err := c.backend.FilterLogs(ctx, c.query(new(big.Int).SetUint64(c.nextFrom), new(big.Int).SetUint64(head)))
	if err != nil {
		return fmt.Errorf("filter logs %d..%d: %w", c.nextFrom, head, err)
	}
	for _, l := range logs {
		c.deliver(ctx, l, out)
	}
	c.nextFrom = head + 1
	return nil
}

func (c *Client) query(from, to *big.Int) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: from,
		ToBlock:   to,
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{c.decoder.Topics()},
	}
}

func (c *Client) deliver(ctx context.Context, l types.Log, out chan<- *model.CurveEvent) {
	if l.Removed {
		c.log.Debug("skipping log removed by reorg", slog.String("tx", l.TxHash.Hex()), slog.Uint64("block", l.BlockNumber))
		return
	}

	event, err := c.decoder.Decode(l)
	if err != nil {
		metrics.RecordAnomaly(metrics.AnomalyDecodeFailure)
		c.log.Warn("failed to decode curve log",
			sl.Err(err),
			slog.String("tx", l.TxHash.Hex()),
			slog.Uint64("block", l.BlockNumber),
		)
		return
	}

	select {
	case <-ctx.Done():
	case out <- event:
	}
}

// Close releases the underlying RPC connection, if the client owns it.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}
