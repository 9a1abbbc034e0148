package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DSN", "postgres://trader@localhost/trader")
	t.Setenv("EXCHANGE_API_KEY", "key")
	t.Setenv("EXCHANGE_API_SECRET", "secret")
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.RabbitMQ.URL)
	assert.Equal(t, defaultRecommendationsExchange, cfg.RabbitMQ.RecommendationsExchange)
	assert.Equal(t, defaultExchangeRESTURL, cfg.Exchange.RESTURL)
	assert.Equal(t, 5*time.Second, cfg.Exchange.RecvWindow)
	assert.Equal(t, 50, cfg.Journal.BatchSize)
	assert.True(t, cfg.Trading.DropPercent.Equal(decimal.NewFromInt(1)))
}

func TestLoad_RequiredVariables(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{name: "database", unset: "DATABASE_DSN"},
		{name: "api key", unset: "EXCHANGE_API_KEY"},
		{name: "api secret", unset: "EXCHANGE_API_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.unset, "")
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{key: "HTTP_PORT", value: "http"},
		{key: "REDIS_DB", value: "zero"},
		{key: "EXCHANGE_RECV_WINDOW", value: "5"},
		{key: "JOURNAL_BATCH_TIMEOUT", value: "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestLoad_TunablesFile(t *testing.T) {
	setRequired(t)
	t.Setenv("TRADING_PARAMS_FILE", writeFile(t, `
drop_percent: "2.5"
trade_interval: 250ms
fractions:
  buy: "0.1"
cooldowns:
  PANIC_SELL: 1s
`))

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Trading.DropPercent.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, 250*time.Millisecond, cfg.Trading.TradeInterval)
	assert.True(t, cfg.Trading.Fractions["BUY"].Equal(decimal.RequireFromString("0.1")))
	assert.True(t, cfg.Trading.Fractions["SELL"].Equal(decimal.RequireFromString("0.5")), "unset keys keep defaults")
	assert.Equal(t, time.Second, cfg.Trading.Cooldowns["PANIC_SELL"])
	assert.Equal(t, 100*time.Millisecond, cfg.Trading.RecommendInterval)
}

func TestLoadTunables_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad decimal", body: `drop_percent: "lots"`},
		{name: "negative", body: `min_price_move_percent: "-1"`},
		{name: "drop of everything", body: `drop_percent: "100"`},
		{name: "fraction above one", body: "fractions:\n  BUY: \"1.5\"\n"},
		{name: "unknown action", body: "fractions:\n  YOLO: \"0.1\"\n"},
		{name: "hold cooldown", body: "cooldowns:\n  HOLD: 1s\n"},
		{name: "bad duration", body: `trade_interval: fast`},
		{name: "not yaml", body: "drop_percent: [1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTunables(writeFile(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadTunables_MissingFile(t *testing.T) {
	_, err := LoadTunables(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
