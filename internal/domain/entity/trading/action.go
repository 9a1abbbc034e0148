package trading

import "fmt"

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Action is what a recommendation asks the executor to do.
type Action int

const (
	Hold Action = iota
	Buy
	StrongBuy
	JumpBuy
	Sell
	StrongSell
	PanicSell
	TakeProfitsSell

	actionCount
)

// Actions lists every action, Hold first.
var Actions = []Action{Hold, Buy, StrongBuy, JumpBuy, Sell, StrongSell, PanicSell, TakeProfitsSell}

func (a Action) String() string {
	switch a {
	case Hold:
		return "HOLD"
	case Buy:
		return "BUY"
	case StrongBuy:
		return "STRONG_BUY"
	case JumpBuy:
		return "JUMP_BUY"
	case Sell:
		return "SELL"
	case StrongSell:
		return "STRONG_SELL"
	case PanicSell:
		return "PANIC_SELL"
	case TakeProfitsSell:
		return "TAKE_PROFITS_SELL"
	default:
		return fmt.Sprintf("ACTION(%d)", int(a))
	}
}

// MarshalText renders the action name in JSON payloads.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses an action name.
func (a *Action) UnmarshalText(text []byte) error {
	for _, candidate := range Actions {
		if candidate.String() == string(text) {
			*a = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown action %q", string(text))
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a >= Hold && a < actionCount
}

// Index is a dense position usable for fixed-size per-action tables.
func (a Action) Index() int {
	return int(a)
}

// ActionCount is the size of a per-action table.
const ActionCount = int(actionCount)

// Side maps the action to an order side. Hold has no side.
func (a Action) Side() (Side, bool) {
	switch a {
	case Buy, StrongBuy, JumpBuy:
		return SideBuy, true
	case Sell, StrongSell, PanicSell, TakeProfitsSell:
		return SideSell, true
	default:
		return "", false
	}
}

// IsImmediate marks actions that must be filled at market.
func (a Action) IsImmediate() bool {
	switch a {
	case JumpBuy, PanicSell, TakeProfitsSell:
		return true
	default:
		return false
	}
}

// IsStrong marks actions allowed to bypass the same-side chatter rules
// once their own cooldown has elapsed.
func (a Action) IsStrong() bool {
	switch a {
	case StrongBuy, JumpBuy, StrongSell, PanicSell, TakeProfitsSell:
		return true
	default:
		return false
	}
}
