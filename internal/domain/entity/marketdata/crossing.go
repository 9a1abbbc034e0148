package marketdata

import (
	"fmt"
	"time"
)

// CrossingPair identifies the two moving-average horizons being compared.
type CrossingPair int

const (
	Cross1m5m CrossingPair = iota
	Cross5m30m
	Cross30m2h

	// CrossingPairCount is the size of a per-pair table.
	CrossingPairCount = 3
)

// CrossingPairs lists every tracked pair.
var CrossingPairs = []CrossingPair{Cross1m5m, Cross5m30m, Cross30m2h}

func (p CrossingPair) String() string {
	switch p {
	case Cross1m5m:
		return "ma1m_ma5m"
	case Cross5m30m:
		return "ma5m_ma30m"
	case Cross30m2h:
		return "ma30m_ma2h"
	default:
		return fmt.Sprintf("pair(%d)", int(p))
	}
}

// Crossing is the latest time two moving averages of a symbol crossed.
type Crossing struct {
	Symbol     string       `json:"symbol"`
	Pair       CrossingPair `json:"pair"`
	CrossedAt  time.Time    `json:"crossed_at"`
	ShortSlope float64      `json:"short_slope"`
	LongSlope  float64      `json:"long_slope"`
}

// CrossingTable is an immutable snapshot of one pair keyed by symbol.
type CrossingTable map[string]Crossing

// NewCrossingTable indexes crossings by symbol.
func NewCrossingTable(rows []Crossing) CrossingTable {
	table := make(CrossingTable, len(rows))
	for _, row := range rows {
		table[row.Symbol] = row
	}
	return table
}
