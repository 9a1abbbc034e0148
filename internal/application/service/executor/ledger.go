package executor

import (
	"sync"

	"github.com/shopspring/decimal"
)

type lot struct {
	qty   decimal.Decimal
	price decimal.Decimal
}

// Ledger keeps the unconsumed buy fills of every symbol in FIFO order. Sells
// consume the oldest lots first.
type Ledger struct {
	mu   sync.Mutex
	lots map[string][]lot
}

func NewLedger() *Ledger {
	return &Ledger{lots: make(map[string][]lot)}
}

// Seed records an opening position if the symbol is not known yet.
func (l *Ledger) Seed(symbol string, qty, price decimal.Decimal) bool {
	if !qty.IsPositive() {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.lots[symbol]; ok {
		return false
	}
	l.lots[symbol] = []lot{{qty: qty, price: price}}
	return true
}

// RecordBuy appends a filled buy.
func (l *Ledger) RecordBuy(symbol string, qty, price decimal.Decimal) {
	if !qty.IsPositive() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lots[symbol] = append(l.lots[symbol], lot{qty: qty, price: price})
}

// Consume removes qty from the oldest lots and returns how much was covered.
func (l *Ledger) Consume(symbol string, qty decimal.Decimal) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	lots, known := l.lots[symbol]
	if !known {
		return decimal.Zero
	}
	covered := decimal.Zero
	remaining := qty
	i := 0
	for ; i < len(lots) && remaining.IsPositive(); i++ {
		if lots[i].qty.GreaterThan(remaining) {
			lots[i].qty = lots[i].qty.Sub(remaining)
			covered = covered.Add(remaining)
			remaining = decimal.Zero
			break
		}
		covered = covered.Add(lots[i].qty)
		remaining = remaining.Sub(lots[i].qty)
	}
	// A drained symbol stays known with zero available.
	l.lots[symbol] = lots[i:]
	return covered
}

// Available is the unconsumed quantity of symbol. ok is false when the symbol
// was never seeded or bought.
func (l *Ledger) Available(symbol string) (qty decimal.Decimal, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lots, ok := l.lots[symbol]
	qty = decimal.Zero
	for _, lt := range lots {
		qty = qty.Add(lt.qty)
	}
	return qty, ok
}

// CostBasis is the quantity-weighted price of the unconsumed lots.
func (l *Ledger) CostBasis(symbol string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	qty, quote := decimal.Zero, decimal.Zero
	for _, lt := range l.lots[symbol] {
		qty = qty.Add(lt.qty)
		quote = quote.Add(lt.qty.Mul(lt.price))
	}
	if !qty.IsPositive() {
		return decimal.Zero
	}
	return quote.Div(qty)
}
