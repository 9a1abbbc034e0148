package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	trading "autotrader/internal/domain/entity/trading"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Tunables are the numeric trading thresholds. Fractions and Cooldowns are
// keyed by action name (BUY, STRONG_SELL, ...).
type Tunables struct {
	DropPercent          decimal.Decimal
	Fractions            map[string]decimal.Decimal
	Cooldowns            map[string]time.Duration
	MinPriceMovePercent  decimal.Decimal
	MinSameSideInterval  time.Duration
	MarketOrderThreshold decimal.Decimal
	RecommendInterval    time.Duration
	TradeInterval        time.Duration
	LifecycleInterval    time.Duration
	BalanceInterval      time.Duration
}

type tunablesFile struct {
	DropPercent          string            `yaml:"drop_percent"`
	Fractions            map[string]string `yaml:"fractions"`
	Cooldowns            map[string]string `yaml:"cooldowns"`
	MinPriceMovePercent  string            `yaml:"min_price_move_percent"`
	MinSameSideInterval  string            `yaml:"min_same_side_interval"`
	MarketOrderThreshold string            `yaml:"market_order_threshold"`
	RecommendInterval    string            `yaml:"recommend_interval"`
	TradeInterval        string            `yaml:"trade_interval"`
	LifecycleInterval    string            `yaml:"lifecycle_interval"`
	BalanceInterval      string            `yaml:"balance_interval"`
}

// DefaultTunables returns the built-in thresholds.
func DefaultTunables() Tunables {
	return Tunables{
		DropPercent: decimal.NewFromInt(1),
		Fractions: map[string]decimal.Decimal{
			"BUY":               decimal.RequireFromString("0.2"),
			"STRONG_BUY":        decimal.RequireFromString("0.3"),
			"JUMP_BUY":          decimal.RequireFromString("0.4"),
			"SELL":              decimal.RequireFromString("0.5"),
			"STRONG_SELL":       decimal.RequireFromString("0.75"),
			"TAKE_PROFITS_SELL": decimal.RequireFromString("0.9"),
			"PANIC_SELL":        decimal.NewFromInt(1),
		},
		Cooldowns: map[string]time.Duration{
			"STRONG_BUY":        30 * time.Second,
			"JUMP_BUY":          15 * time.Second,
			"STRONG_SELL":       30 * time.Second,
			"TAKE_PROFITS_SELL": 15 * time.Second,
			"PANIC_SELL":        5 * time.Second,
		},
		MinPriceMovePercent:  decimal.RequireFromString("0.5"),
		MinSameSideInterval:  5 * time.Minute,
		MarketOrderThreshold: decimal.RequireFromString("0.0001"),
		RecommendInterval:    100 * time.Millisecond,
		TradeInterval:        100 * time.Millisecond,
		LifecycleInterval:    5 * time.Second,
		BalanceInterval:      time.Second,
	}
}

// LoadTunables reads a YAML file over the defaults. Keys missing from the file
// keep their default value.
func LoadTunables(path string) (Tunables, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Tunables{}, fmt.Errorf("read tunables file: %w", err)
	}
	var file tunablesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Tunables{}, fmt.Errorf("parse tunables file: %w", err)
	}

	t := DefaultTunables()
	var errs []error
	setDecimal := func(name, raw string, dst *decimal.Decimal) {
		if raw == "" {
			return
		}
		v, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		if v.IsNegative() {
			errs = append(errs, fmt.Errorf("%s: must not be negative", name))
			return
		}
		*dst = v
	}
	setDuration := func(name, raw string, dst *time.Duration) {
		if raw == "" {
			return
		}
		v, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s: must not be negative", name))
			return
		}
		*dst = v
	}

	setDecimal("drop_percent", file.DropPercent, &t.DropPercent)
	setDecimal("min_price_move_percent", file.MinPriceMovePercent, &t.MinPriceMovePercent)
	setDecimal("market_order_threshold", file.MarketOrderThreshold, &t.MarketOrderThreshold)
	setDuration("min_same_side_interval", file.MinSameSideInterval, &t.MinSameSideInterval)
	setDuration("recommend_interval", file.RecommendInterval, &t.RecommendInterval)
	setDuration("trade_interval", file.TradeInterval, &t.TradeInterval)
	setDuration("lifecycle_interval", file.LifecycleInterval, &t.LifecycleInterval)
	setDuration("balance_interval", file.BalanceInterval, &t.BalanceInterval)

	for action, raw := range file.Fractions {
		key := strings.ToUpper(strings.TrimSpace(action))
		if !knownAction(key) {
			errs = append(errs, fmt.Errorf("fractions: unknown action %q", action))
			continue
		}
		v := t.Fractions[key]
		setDecimal("fractions."+key, raw, &v)
		if v.GreaterThan(decimal.NewFromInt(1)) {
			errs = append(errs, fmt.Errorf("fractions.%s: must not exceed 1", key))
			continue
		}
		t.Fractions[key] = v
	}
	for action, raw := range file.Cooldowns {
		key := strings.ToUpper(strings.TrimSpace(action))
		if !knownAction(key) {
			errs = append(errs, fmt.Errorf("cooldowns: unknown action %q", action))
			continue
		}
		v := t.Cooldowns[key]
		setDuration("cooldowns."+key, raw, &v)
		t.Cooldowns[key] = v
	}

	if t.DropPercent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		errs = append(errs, errors.New("drop_percent: must be below 100"))
	}
	if err := errors.Join(errs...); err != nil {
		return Tunables{}, fmt.Errorf("invalid tunables file %s: %w", path, err)
	}
	return t, nil
}

func knownAction(name string) bool {
	var a trading.Action
	return a.UnmarshalText([]byte(name)) == nil && a != trading.Hold
}
