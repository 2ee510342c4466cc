package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"bollinger-optimizer-go/internal/models"
	"bollinger-optimizer-go/internal/optimizer"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

const (
	EnvDBPath   = "OPTIMIZER_DB_PATH"
	EnvLogLevel = "OPTIMIZER_LOG_LEVEL"

	dateLayout = "2006-01-02"
)

// Default 返回一份完整的默认配置, JSON 中缺失的字段保留这里的值
func Default() *models.Config {
	return &models.Config{
		DBPath:   "data/optimizer.db",
		Strategy: models.StrategyBaseline,
		Dataset: models.DatasetConfig{
			Symbol:   "BTCUSDT",
			Interval: "1m",
		},
		Optimizer: models.OptimizerSettings{
			ResultCap:       optimizer.DefaultResultCap,
			GlobalResultCap: optimizer.DefaultGlobalResultCap,
			ProgressEvery:   optimizer.DefaultProgressEvery,
			YieldEvery:      optimizer.DefaultYieldEvery,
			TopN:            10,
		},
		LogConfig: models.LogConfig{
			Level:      "info",
			Output:     "console",
			File:       "logs/optimizer.log",
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
		},
		Baseline:   models.DefaultTradingConfig(),
		DayTrading: models.DefaultDayTradingConfig(),
		Fibonacci:  models.DefaultFibonacciConfig(),
		Scalping:   models.DefaultScalpingConfig(),
		Enhanced:   models.DefaultEnhancedConfig(),
		Hybrid:     models.DefaultHybridConfig(),
	}
}

// LoadConfig 从指定路径加载JSON配置文件并解析到Config结构体中
// 空路径表示只使用默认值和环境变量
func LoadConfig(path string) (*models.Config, error) {
	config := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		decoder := json.NewDecoder(file)
		if err := decoder.Decode(config); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	ApplyEnv(config)
	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv 使用环境变量覆盖配置
func ApplyEnv(config *models.Config) {
	if v := os.Getenv(EnvDBPath); v != "" {
		config.DBPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		config.LogConfig.Level = v
	}
}

// Validate checks the fields the selected strategy and datasets depend on.
func Validate(config *models.Config) error {
	if !slices.Contains(models.Strategies, config.Strategy) {
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, config.Strategy)
	}

	tc := Trading(config, config.Strategy)
	switch {
	case tc.InitialCapital <= 0:
		return fmt.Errorf("%w: initial_capital must be positive", ErrInvalidConfig)
	case tc.Period < 2:
		return fmt.Errorf("%w: period must be at least 2", ErrInvalidConfig)
	case tc.StdDevMultiplier <= 0:
		return fmt.Errorf("%w: std_dev_multiplier must be positive", ErrInvalidConfig)
	case !tc.EnableLongPositions && !tc.EnableShortPositions:
		return fmt.Errorf("%w: both long and short positions are disabled", ErrInvalidConfig)
	}

	for _, f := range []*float64{config.Filters.MinimumWinRate, config.Filters.MaximumDrawdown} {
		if f != nil && (*f < 0 || *f > 1) {
			return fmt.Errorf("%w: win rate and drawdown filters are ratios in [0, 1]", ErrInvalidConfig)
		}
	}

	for _, ds := range append([]models.DatasetConfig{config.Dataset}, config.Datasets...) {
		if err := validateDataset(ds); err != nil {
			return err
		}
	}
	return nil
}

func validateDataset(ds models.DatasetConfig) error {
	if ds.Start == "" && ds.End == "" {
		return nil
	}
	if strings.TrimSpace(ds.Symbol) == "" {
		return fmt.Errorf("%w: dataset without symbol", ErrInvalidConfig)
	}
	if _, err := optimizer.ParseTimeframe(ds.Interval); err != nil {
		return fmt.Errorf("%w: dataset %s: %v", ErrInvalidConfig, ds.Symbol, err)
	}
	start, end, err := DatasetRange(ds)
	if err != nil {
		return fmt.Errorf("%w: dataset %s: %v", ErrInvalidConfig, ds.Symbol, err)
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: dataset %s: start must be before end", ErrInvalidConfig, ds.Symbol)
	}
	return nil
}

// DatasetRange parses the UTC start and end dates of a dataset.
func DatasetRange(ds models.DatasetConfig) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, ds.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
	}
	end, err := time.Parse(dateLayout, ds.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
	}
	return start, end, nil
}

// Trading returns the shared trading parameters of the named strategy's section.
func Trading(config *models.Config, s models.Strategy) models.TradingConfig {
	switch s {
	case models.StrategyDayTrading:
		return config.DayTrading.TradingConfig
	case models.StrategyFibonacci:
		return config.Fibonacci.TradingConfig
	case models.StrategyScalping:
		return config.Scalping.TradingConfig
	case models.StrategyEnhanced:
		return config.Enhanced.TradingConfig
	case models.StrategyHybrid:
		return config.Hybrid.TradingConfig
	default:
		return config.Baseline
	}
}
