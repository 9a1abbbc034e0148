package recommender

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Thresholds follows the peak ask price of an open position and derives the
// price below which the position should be closed.
type Thresholds struct {
	dropPercent decimal.Decimal
	peak        decimal.Decimal
	threshold   decimal.Decimal
	armed       bool
}

// NewThresholds creates a tracker closing the position after a dropPercent
// fall from the peak, e.g. 1.5 for 1.5%.
func NewThresholds(dropPercent decimal.Decimal) Thresholds {
	return Thresholds{dropPercent: dropPercent}
}

// Observe records an ask price. It reports whether the price is a new peak.
func (t *Thresholds) Observe(ask decimal.Decimal) bool {
	if !ask.IsPositive() {
		return false
	}
	if t.armed && !ask.GreaterThan(t.peak) {
		return false
	}
	t.peak = ask
	t.threshold = ask.Mul(hundred.Sub(t.dropPercent)).Div(hundred)
	t.armed = true
	return true
}

// Breached reports whether bid has fallen to or through the threshold.
func (t *Thresholds) Breached(bid decimal.Decimal) bool {
	return t.armed && bid.IsPositive() && bid.LessThanOrEqual(t.threshold)
}

// Reset forgets the peak.
func (t *Thresholds) Reset() {
	t.peak = decimal.Zero
	t.threshold = decimal.Zero
	t.armed = false
}

func (t *Thresholds) Peak() decimal.Decimal      { return t.peak }
func (t *Thresholds) Threshold() decimal.Decimal { return t.threshold }
func (t *Thresholds) Armed() bool                { return t.armed }
