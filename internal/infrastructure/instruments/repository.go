package instruments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "autotrader/internal/domain/entity/instruments"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInstrumentNotFound = domain.ErrNotFound

// Repository is the Postgres-backed instrument registry.
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

const selectInstrumentColumns = `symbol, base_asset, quote_asset, trading_active, updated_at`

func (r *Repository) ListInstruments(ctx context.Context) ([]domain.Instrument, error) {
	query := `SELECT ` + selectInstrumentColumns + ` FROM instruments ORDER BY symbol`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var out []domain.Instrument
	for rows.Next() {
		var instrument domain.Instrument
		if err := scanInstrumentInto(rows, &instrument); err != nil {
			return nil, err
		}
		out = append(out, instrument)
	}
	return out, rows.Err()
}

func (r *Repository) ActiveSymbols(ctx context.Context) ([]string, error) {
	const query = `SELECT symbol FROM instruments WHERE trading_active ORDER BY symbol`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active symbols: %w", err)
	}
	defer rows.Close()

	symbols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan active symbols: %w", err)
	}
	return symbols, nil
}

func (r *Repository) GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error) {
	query := `SELECT ` + selectInstrumentColumns + ` FROM instruments WHERE symbol = $1`

	row := r.pool.QueryRow(ctx, query, normalizeSymbol(symbol))
	instrument := &domain.Instrument{}
	if err := scanInstrumentInto(row, instrument); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstrumentNotFound
		}
		return nil, err
	}
	return instrument, nil
}

// SetTradingActive toggles whether the engine may trade symbol.
func (r *Repository) SetTradingActive(ctx context.Context, symbol string, active bool) error {
	const query = `UPDATE instruments SET trading_active = $2, updated_at = $3 WHERE symbol = $1`
	cmdTag, err := r.pool.Exec(ctx, query, normalizeSymbol(symbol), active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update instrument %s: %w", symbol, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrInstrumentNotFound
	}
	return nil
}

func scanInstrumentInto(row pgx.Row, instrument *domain.Instrument) error {
	return row.Scan(
		&instrument.Symbol,
		&instrument.BaseAsset,
		&instrument.QuoteAsset,
		&instrument.TradingActive,
		&instrument.UpdatedAt,
	)
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
