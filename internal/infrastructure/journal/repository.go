package journal

import (
	"context"
	"fmt"
	"math/big"

	domain "autotrader/internal/domain/entity/trading"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository stores the order journal in the order_journal table.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

var journalColumns = []string{
	"entry_id", "client_order_id", "exchange_order_id", "symbol", "action", "side", "order_type",
	"status", "price", "requested_qty", "executed_qty", "quote_qty", "created_at",
}

// AddEntries appends entries with a single COPY.
func (r *Repository) AddEntries(ctx context.Context, entries []domain.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, entryRow(e))
	}
	_, err := r.pool.CopyFrom(ctx, pgx.Identifier{"order_journal"}, journalColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy %d journal entries: %w", len(entries), err)
	}
	return nil
}

const openQuantityQuery = `
	SELECT COALESCE(SUM(CASE WHEN side = 'BUY' THEN executed_qty ELSE -executed_qty END), 0)
	FROM order_journal
	WHERE symbol = $1`

// OpenQuantity is the bought quantity of symbol not yet sold, never negative.
func (r *Repository) OpenQuantity(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var n pgtype.Numeric
	if err := r.pool.QueryRow(ctx, openQuantityQuery, symbol).Scan(&n); err != nil {
		return decimal.Zero, fmt.Errorf("query open quantity of %s: %w", symbol, err)
	}
	qty := fromNumeric(n)
	if qty.IsNegative() {
		return decimal.Zero, nil
	}
	return qty, nil
}

func entryRow(e domain.JournalEntry) []interface{} {
	return []interface{}{
		e.ID,
		e.ClientOrderID,
		e.ExchangeID,
		e.Symbol,
		e.Action.String(),
		string(e.Side),
		string(e.Type),
		e.Status,
		toNumeric(e.Price),
		toNumeric(e.RequestedQty),
		toNumeric(e.ExecutedQty),
		toNumeric(e.QuoteQty),
		e.CreatedAt.UTC(),
	}
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).Set(d.Coefficient()), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
