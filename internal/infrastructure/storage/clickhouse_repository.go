package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"curveStatApp/internal/domain/model"
	"curveStatApp/internal/domain/repository"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseRepository implements TradeArchive on ClickHouse. Rows carry the curve
// address so several indexers can share the tables.
type ClickHouseRepository struct {
	conn  driver.Conn
	curve string
}

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Timeout  int
	Curve    string
}

func NewClickHouseRepository(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseRepository, error) {
	const op = "storage.NewClickHouseRepository"

	database := cfg.Database
	if database == "" {
		database = "default"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: time.Duration(cfg.Timeout) * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: failed to ping ClickHouse: %w", op, err)
	}

	if err := createTablesIfNotExist(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: failed to create tables: %w", op, err)
	}

	return &ClickHouseRepository{conn: conn, curve: strings.ToLower(cfg.Curve)}, nil
}

var _ repository.TradeArchive = (*ClickHouseRepository)(nil)

func createTablesIfNotExist(ctx context.Context, conn driver.Conn) error {
	err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS curve_trades (
			curve String,
			tx_hash String,
			block_number UInt64,
			trader String,
			is_buy Bool,
			quantity Decimal(76, 18),
			cost_or_proceeds Decimal(76, 18),
			step_index UInt64,
			observed_at DateTime64(3, 'UTC'),
			archived_at DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY (curve, observed_at, tx_hash)
	`)
	if err != nil {
		return err
	}

	return conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS curve_graduations (
			curve String,
			tx_hash String,
			block_number UInt64,
			tokens_sold Decimal(76, 18),
			native_reserve Decimal(76, 18),
			graduated_at DateTime64(3, 'UTC'),
			archived_at DateTime DEFAULT now()
		) ENGINE = ReplacingMergeTree(archived_at)
		ORDER BY (curve)
	`)
}

// SaveTrade archives one trade. The insert is asynchronous on the server side.
func (r *ClickHouseRepository) SaveTrade(ctx context.Context, trade *model.TradeRecord) error {
	query := `
		INSERT INTO curve_trades (
			curve, tx_hash, block_number, trader, is_buy,
			quantity, cost_or_proceeds, step_index, observed_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?, ?
		)
	`

	return r.conn.AsyncInsert(ctx, query, false,
		r.curve,
		trade.TransactionHash,
		trade.BlockNumber,
		trade.Trader,
		trade.IsBuy,
		trade.Quantity,
		trade.CostOrProceeds,
		trade.StepIndex,
		trade.ObservedAt,
	)
}

// SaveGraduation archives the graduation; the table keeps one row per curve.
func (r *ClickHouseRepository) SaveGraduation(ctx context.Context, graduation *model.GraduationRecord) error {
	query := `
		INSERT INTO curve_graduations (
			curve, tx_hash, block_number, tokens_sold, native_reserve, graduated_at
		) VALUES (
			?, ?, ?, ?, ?, ?
		)
	`

	return r.conn.AsyncInsert(ctx, query, true,
		r.curve,
		graduation.TransactionHash,
		graduation.BlockNumber,
		graduation.TokensSoldOnCurve,
		graduation.NativeReserve,
		graduation.GraduatedAt,
	)
}

// GetTradesSince returns the newest limit trades observed at or after since, oldest first.
func (r *ClickHouseRepository) GetTradesSince(ctx context.Context, since time.Time, limit int) ([]*model.TradeRecord, error) {
	query := `
		SELECT tx_hash, block_number, trader, is_buy, quantity, cost_or_proceeds, step_index, observed_at
		FROM curve_trades
		WHERE curve = ? AND observed_at >= ?
		ORDER BY observed_at DESC
		LIMIT ?
	`

	rows, err := r.conn.Query(ctx, query, r.curve, since, uint64(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.TradeRecord
	for rows.Next() {
		trade := new(model.TradeRecord)
		if err := rows.Scan(
			&trade.TransactionHash,
			&trade.BlockNumber,
			&trade.Trader,
			&trade.IsBuy,
			&trade.Quantity,
			&trade.CostOrProceeds,
			&trade.StepIndex,
			&trade.ObservedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}

	return results, nil
}

func (r *ClickHouseRepository) Close() error {
	return r.conn.Close()
}
