package marketdata

import (
	"fmt"
	"time"
)

// TrendFamily groups trend statistics sharing one refresh cadence.
type TrendFamily int

const (
	Trend3s TrendFamily = iota
	Trend15s
	Trend2m
	Trend10m
	Trend2h

	// TrendFamilyCount is the size of a per-family table.
	TrendFamilyCount = 5
)

// TrendFamilies lists every family in refresh-interval order.
var TrendFamilies = []TrendFamily{Trend3s, Trend15s, Trend2m, Trend10m, Trend2h}

func (f TrendFamily) String() string {
	switch f {
	case Trend3s:
		return "3s"
	case Trend15s:
		return "15s"
	case Trend2m:
		return "2m"
	case Trend10m:
		return "10m"
	case Trend2h:
		return "2h"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// RefreshInterval is how often the cached table of the family is replaced.
func (f TrendFamily) RefreshInterval() time.Duration {
	switch f {
	case Trend3s:
		return 100 * time.Millisecond
	case Trend15s:
		return 250 * time.Millisecond
	case Trend2m:
		return 500 * time.Millisecond
	case Trend10m:
		return time.Second
	case Trend2h:
		return 3 * time.Second
	default:
		return 0
	}
}

// SubHorizons names the slope/moving-average columns of the family,
// shortest first. TrendRow.Slopes and TrendRow.MovingAverages follow this order.
func (f TrendFamily) SubHorizons() []string {
	switch f {
	case Trend3s:
		return []string{"1s", "2s", "3s"}
	case Trend15s:
		return []string{"5s", "10s", "15s"}
	case Trend2m:
		return []string{"30s", "1m", "2m"}
	case Trend10m:
		return []string{"5m", "7m", "10m"}
	case Trend2h:
		return []string{"30m", "1h", "2h"}
	default:
		return nil
	}
}

// TrendRow holds the statistics of one symbol within a family.
// DataBasis is the number of samples behind the row and gates its validity.
type TrendRow struct {
	Symbol         string    `json:"symbol"`
	DataBasis      int64     `json:"data_basis"`
	Slopes         []float64 `json:"slopes"`
	MovingAverages []float64 `json:"moving_averages"`
}

// Ready reports whether the row is backed by at least minBasis samples.
func (r TrendRow) Ready(minBasis int64) bool {
	return r.DataBasis >= minBasis && len(r.Slopes) > 0
}

// TrendTable is an immutable snapshot of one family keyed by symbol.
type TrendTable map[string]TrendRow

// NewTrendTable indexes rows by symbol. Later rows win on duplicates.
func NewTrendTable(rows []TrendRow) TrendTable {
	table := make(TrendTable, len(rows))
	for _, row := range rows {
		table[row.Symbol] = row
	}
	return table
}
