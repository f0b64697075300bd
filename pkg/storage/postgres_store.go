package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/sigbook/pkg/order"
)

// postgresSchema has no unique constraint on signature: duplicates are separate rows
const postgresSchema = `
CREATE TABLE IF NOT EXISTS orders (
	id            BIGSERIAL PRIMARY KEY,
	signature     TEXT    NOT NULL,
	sender_pk     TEXT    NOT NULL,
	receiver_pk   TEXT    NOT NULL,
	buy_currency  TEXT    NOT NULL,
	sell_currency TEXT    NOT NULL,
	buy_amount    NUMERIC NOT NULL,
	sell_amount   NUMERIC NOT NULL
);

CREATE TABLE IF NOT EXISTS logs (
	id      BIGSERIAL PRIMARY KEY,
	message TEXT NOT NULL
);
`

// PostgresStore implements Store using a pgx connection pool
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and applies the schema
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateOrder inserts o and sets o.ID. A single INSERT is its own transaction.
func (s *PostgresStore) CreateOrder(ctx context.Context, o *order.Order) (uint64, error) {
	query := `
		INSERT INTO orders (
			signature, sender_pk, receiver_pk, buy_currency, sell_currency, buy_amount, sell_amount
		) VALUES (
			$1, $2, $3, $4, $5, $6::numeric, $7::numeric
		)
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		o.Signature, o.SenderPK, o.ReceiverPK, o.BuyCurrency, o.SellCurrency,
		o.BuyAmount.String(), o.SellAmount.String(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}

	o.ID = uint64(id)
	return o.ID, nil
}

func (s *PostgresStore) CreateLog(ctx context.Context, message string) (uint64, error) {
	var id int64
	if err := s.pool.QueryRow(ctx, `INSERT INTO logs (message) VALUES ($1) RETURNING id`, message).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert log: %w", err)
	}
	return uint64(id), nil
}

func (s *PostgresStore) ListOrders(ctx context.Context) ([]order.Order, error) {
	query := `
		SELECT id, signature, sender_pk, receiver_pk, buy_currency, sell_currency,
		       buy_amount::text, sell_amount::text
		FROM orders
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (order.Order, error) {
	var (
		o         order.Order
		id        int64
		buy, sell string
	)
	if err := row.Scan(&id, &o.Signature, &o.SenderPK, &o.ReceiverPK, &o.BuyCurrency, &o.SellCurrency, &buy, &sell); err != nil {
		return order.Order{}, fmt.Errorf("scan order: %w", err)
	}

	var err error
	if o.BuyAmount, err = decimal.NewFromString(buy); err != nil {
		return order.Order{}, fmt.Errorf("parse buy_amount: %w", err)
	}
	if o.SellAmount, err = decimal.NewFromString(sell); err != nil {
		return order.Order{}, fmt.Errorf("parse sell_amount: %w", err)
	}
	o.ID = uint64(id)
	return o, nil
}

func (s *PostgresStore) ListLogs(ctx context.Context) ([]order.LogEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, message FROM logs ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var entries []order.LogEntry
	for rows.Next() {
		var (
			id int64
			e  order.LogEntry
		)
		if err := rows.Scan(&id, &e.Message); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		e.ID = uint64(id)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logs: %w", err)
	}
	return entries, nil
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)
