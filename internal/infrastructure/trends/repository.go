// Package trends reads the precomputed trend statistics and moving-average
// crossings maintained by the analytics jobs in Postgres.
package trends

import (
	"context"
	"fmt"
	"strings"

	domain "autotrader/internal/domain/entity/marketdata"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool         *pgxpool.Pool
	trendQueries map[domain.TrendFamily]string
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
	queries := make(map[domain.TrendFamily]string, len(domain.TrendFamilies))
	for _, family := range domain.TrendFamilies {
		queries[family] = trendQuery(family)
	}
	return &Repository{pool: pool, trendQueries: queries}, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// TrendRows returns the statistics of every trading-active instrument.
func (r *Repository) TrendRows(ctx context.Context, family domain.TrendFamily) ([]domain.TrendRow, error) {
	query, ok := r.trendQueries[family]
	if !ok {
		return nil, fmt.Errorf("unknown trend family %s", family)
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s trends: %w", family, err)
	}
	defer rows.Close()

	width := len(family.SubHorizons())
	var out []domain.TrendRow
	for rows.Next() {
		row, err := scanTrendRow(rows, width)
		if err != nil {
			return nil, fmt.Errorf("scan %s trend: %w", family, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

const crossingsQuery = `
	SELECT DISTINCT ON (c.symbol) c.symbol, c.crossed_at, c.short_slope, c.long_slope
	FROM ma_crossings c
	JOIN instruments i ON i.symbol = c.symbol
	WHERE i.trading_active AND c.pair = $1
	ORDER BY c.symbol, c.crossed_at DESC`

// Crossings returns the latest crossing of pair per trading-active instrument.
func (r *Repository) Crossings(ctx context.Context, pair domain.CrossingPair) ([]domain.Crossing, error) {
	rows, err := r.pool.Query(ctx, crossingsQuery, pair.String())
	if err != nil {
		return nil, fmt.Errorf("query %s crossings: %w", pair, err)
	}
	defer rows.Close()

	var out []domain.Crossing
	for rows.Next() {
		crossing := domain.Crossing{Pair: pair}
		if err := rows.Scan(&crossing.Symbol, &crossing.CrossedAt, &crossing.ShortSlope, &crossing.LongSlope); err != nil {
			return nil, fmt.Errorf("scan %s crossing: %w", pair, err)
		}
		crossing.CrossedAt = crossing.CrossedAt.UTC()
		out = append(out, crossing)
	}
	return out, rows.Err()
}

func scanTrendRow(row pgx.Row, width int) (domain.TrendRow, error) {
	out := domain.TrendRow{
		Slopes:         make([]float64, width),
		MovingAverages: make([]float64, width),
	}
	dest := make([]any, 0, 2+2*width)
	dest = append(dest, &out.Symbol, &out.DataBasis)
	for i := range out.Slopes {
		dest = append(dest, &out.Slopes[i])
	}
	for i := range out.MovingAverages {
		dest = append(dest, &out.MovingAverages[i])
	}
	if err := row.Scan(dest...); err != nil {
		return domain.TrendRow{}, err
	}
	return out, nil
}

// trendQuery selects from the trend_stats_<family> view; one slope and one
// moving-average column per sub-horizon, shortest first.
func trendQuery(family domain.TrendFamily) string {
	horizons := family.SubHorizons()
	columns := make([]string, 0, 2+2*len(horizons))
	columns = append(columns, "t.symbol", "t.data_basis")
	for _, h := range horizons {
		columns = append(columns, fmt.Sprintf("COALESCE(t.slope_%s, 0)", h))
	}
	for _, h := range horizons {
		columns = append(columns, fmt.Sprintf("COALESCE(t.ma_%s, 0)", h))
	}
	return fmt.Sprintf(`
	SELECT %s
	FROM trend_stats_%s t
	JOIN instruments i ON i.symbol = t.symbol
	WHERE i.trading_active`, strings.Join(columns, ", "), family)
}
