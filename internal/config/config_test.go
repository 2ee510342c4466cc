package config

import (
	"os"
	"path/filepath"
	"testing"

	"bollinger-optimizer-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigKeepsDefaultsForMissingFields(t *testing.T) {
	path := writeConfig(t, `{
		"strategy": "daytrading",
		"daytrading": {"rsi_period": 21, "period": 30},
		"filters": {"minimum_trades": 5},
		"dataset": {"symbol": "ETHUSDT", "interval": "5m", "start": "2024-01-01", "end": "2024-01-03"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, models.StrategyDayTrading, cfg.Strategy)
	assert.Equal(t, 21, cfg.DayTrading.RSIPeriod)
	assert.Equal(t, 30, cfg.DayTrading.Period)
	// 未出现在文件中的字段保持默认值
	assert.Equal(t, 26, cfg.DayTrading.MACDSlow)
	assert.Equal(t, 10000.0, cfg.DayTrading.InitialCapital)
	assert.True(t, cfg.DayTrading.EnableShortPositions)
	assert.Equal(t, 5, *cfg.Filters.MinimumTrades)
	assert.Nil(t, cfg.Filters.MinimumWinRate)
	assert.Equal(t, 500, cfg.Optimizer.ResultCap)
	assert.Equal(t, "ETHUSDT", cfg.Dataset.Symbol)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv(EnvDBPath, "/tmp/other.db")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogConfig.Level)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `{"strategy": `))
	assert.Error(t, err)

	cases := map[string]string{
		"unknown strategy":  `{"strategy": "martingale"}`,
		"zero capital":      `{"baseline": {"initial_capital": 0}}`,
		"short period":      `{"baseline": {"period": 1}}`,
		"no sides":          `{"baseline": {"enable_long_positions": false, "enable_short_positions": false}}`,
		"win rate percent":  `{"filters": {"minimum_win_rate": 55}}`,
		"reversed range":    `{"dataset": {"symbol": "BTCUSDT", "interval": "1m", "start": "2024-02-01", "end": "2024-01-01"}}`,
		"bad interval":      `{"datasets": [{"symbol": "BTCUSDT", "interval": "7x", "start": "2024-01-01", "end": "2024-01-02"}]}`,
		"dataset no symbol": `{"datasets": [{"interval": "1m", "start": "2024-01-01", "end": "2024-01-02"}]}`,
	}
	for name, body := range cases {
		_, err := LoadConfig(writeConfig(t, body))
		assert.ErrorIs(t, err, ErrInvalidConfig, name)
	}
}

func TestTradingSection(t *testing.T) {
	cfg := Default()
	cfg.Hybrid.Period = 42
	assert.Equal(t, 42, Trading(cfg, models.StrategyHybrid).Period)
	assert.Equal(t, 20, Trading(cfg, models.StrategyBaseline).Period)
}
