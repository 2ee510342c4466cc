package optimizer

import (
	"bollinger-optimizer-go/internal/backtest"
	"bollinger-optimizer-go/internal/models"
)

var leverages = []float64{2, 5, 10, 20, 50, 75, 100, 125}

// BaselineSpec optimizes the band breakout over period, width, offset and leverage.
func BaselineSpec() Spec[models.TradingConfig] {
	return Spec[models.TradingConfig]{
		Strategy: models.StrategyBaseline,
		Ranges: func(tf backtest.Timeframe) Grid {
			if tf.SecondsRegime() {
				return Grid{
					{"period", steps(2, 20, 2)},
					{"std_dev_multiplier", []float64{1, 1.5, 2, 2.5, 3}},
					{"offset", []float64{0, 1, 2, 5}},
					{"max_leverage", leverages},
				}
			}
			return Grid{
				{"period", steps(5, 50, 5)},
				{"std_dev_multiplier", []float64{1, 1.5, 2, 2.5, 3}},
				{"offset", []float64{0, 5, 10, 15, 20}},
				{"max_leverage", leverages},
			}
		},
		Setters: tradingSetters(func(c *models.TradingConfig) *models.TradingConfig { return c }),
		Valid: func(c models.TradingConfig) bool {
			return c.Period >= 2 && c.StdDevMultiplier > 0
		},
		New:                backtest.NewBaseline,
		Weights:            Weights{Return: 0.35, WinRate: 0.15, Sharpe: 0.2, Drawdown: 0.15, Frequency: 0.05, Bonus: 0.1},
		TargetTradesPerDay: 2,
		Bonus: func(c models.TradingConfig, _ *models.BacktestResult) float64 {
			return leveragePenalty(c.MaxLeverage)
		},
	}
}

// DayTradingSpec optimizes the RSI/MACD voting strategy.
func DayTradingSpec() Spec[models.DayTradingConfig] {
	set := tradingSetters(func(c *models.DayTradingConfig) *models.TradingConfig { return &c.TradingConfig })
	set["rsi_period"] = func(c *models.DayTradingConfig, v float64) { c.RSIPeriod = int(v) }
	set["rsi_overbought"] = func(c *models.DayTradingConfig, v float64) { c.RSIOverbought = v }
	set["rsi_oversold"] = func(c *models.DayTradingConfig, v float64) { c.RSIOversold = v }
	set["macd_fast"] = func(c *models.DayTradingConfig, v float64) { c.MACDFast = int(v) }
	set["macd_slow"] = func(c *models.DayTradingConfig, v float64) { c.MACDSlow = int(v) }
	set["macd_signal"] = func(c *models.DayTradingConfig, v float64) { c.MACDSignal = int(v) }
	set["volume_multiplier"] = func(c *models.DayTradingConfig, v float64) { c.VolumeMultiplier = v }
	set["stop_loss_percent"] = func(c *models.DayTradingConfig, v float64) { c.StopLossPercent = v }
	set["take_profit_percent"] = func(c *models.DayTradingConfig, v float64) { c.TakeProfitPercent = v }
	set["max_holding_minutes"] = func(c *models.DayTradingConfig, v float64) { c.MaxHoldingMinutes = v }
	set["min_confirmations"] = func(c *models.DayTradingConfig, v float64) { c.MinConfirmations = int(v) }

	return Spec[models.DayTradingConfig]{
		Strategy: models.StrategyDayTrading,
		Ranges: func(tf backtest.Timeframe) Grid {
			if tf.SecondsRegime() {
				return Grid{
					{"period", []float64{5, 10, 14}},
					{"std_dev_multiplier", []float64{1.5, 2, 2.5}},
					{"rsi_period", []float64{5, 7, 9}},
					{"rsi_overbought", []float64{65, 70, 75, 80}},
					{"rsi_oversold", []float64{20, 25, 30, 35}},
					{"macd_fast", []float64{5, 8}},
					{"macd_slow", []float64{13, 21}},
					{"stop_loss_percent", []float64{0.2, 0.3, 0.5}},
					{"take_profit_percent", []float64{0.3, 0.5, 1}},
					{"max_holding_minutes", []float64{5, 15, 30}},
					{"max_leverage", []float64{10, 20, 50}},
					{"min_confirmations", []float64{3, 4, 5}},
				}
			}
			return Grid{
				{"period", []float64{14, 20, 26}},
				{"std_dev_multiplier", []float64{1.5, 2, 2.5}},
				{"rsi_period", []float64{7, 14}},
				{"rsi_overbought", []float64{65, 70, 75, 80}},
				{"rsi_oversold", []float64{20, 25, 30, 35}},
				{"macd_fast", []float64{8, 12}},
				{"macd_slow", []float64{21, 26}},
				{"stop_loss_percent", []float64{0.5, 1, 1.5, 2}},
				{"take_profit_percent", []float64{1, 2, 3, 4}},
				{"max_holding_minutes", []float64{60, 240, 480}},
				{"max_leverage", []float64{5, 10, 20}},
				{"min_confirmations", []float64{3, 4, 5}},
			}
		},
		Setters: set,
		Valid: func(c models.DayTradingConfig) bool {
			switch {
			case c.RSIOverbought <= c.RSIOversold+10:
				return false
			case c.MACDFast >= c.MACDSlow:
				return false
			case c.StopLossPercent <= 0 || c.TakeProfitPercent/c.StopLossPercent < 1.2:
				return false
			}
			return c.Period >= 2
		},
		New:                backtest.NewDayTrading,
		Weights:            Weights{Return: 0.25, WinRate: 0.25, Sharpe: 0.2, Drawdown: 0.15, Frequency: 0.05, Bonus: 0.1},
		TargetTradesPerDay: 5,
		Bonus: func(c models.DayTradingConfig, _ *models.BacktestResult) float64 {
			return riskReward(c.TakeProfitPercent, c.StopLossPercent, 4)
		},
	}
}

// FibonacciSpec optimizes swing detection, the golden zone and exits.
func FibonacciSpec() Spec[models.FibonacciConfig] {
	set := tradingSetters(func(c *models.FibonacciConfig) *models.TradingConfig { return &c.TradingConfig })
	fibonacciSetters(set, func(c *models.FibonacciConfig) *models.FibonacciParams { return &c.FibonacciParams })
	set["volume_multiplier"] = func(c *models.FibonacciConfig, v float64) { c.VolumeMultiplier = v }
	set["stop_loss_percent"] = func(c *models.FibonacciConfig, v float64) { c.StopLossPercent = v }
	set["take_profit_percent"] = func(c *models.FibonacciConfig, v float64) { c.TakeProfitPercent = v }
	set["max_holding_minutes"] = func(c *models.FibonacciConfig, v float64) { c.MaxHoldingMinutes = v }
	set["min_confirmations"] = func(c *models.FibonacciConfig, v float64) { c.MinConfirmations = int(v) }

	return Spec[models.FibonacciConfig]{
		Strategy: models.StrategyFibonacci,
		Ranges: func(tf backtest.Timeframe) Grid {
			holding := []float64{30, 60, 120}
			lookbacks := []float64{2, 3, 5}
			if tf.SecondsRegime() {
				holding = []float64{2, 5, 10}
				lookbacks = []float64{2, 3}
			}
			return Grid{
				{"swing_lookback", lookbacks},
				{"min_swing_size_percent", []float64{0.2, 0.5, 1}},
				{"golden_zone_low", []float64{0.382, 0.5}},
				{"golden_zone_high", []float64{0.5, 0.618, 0.786}},
				{"stop_loss_percent", []float64{0.3, 0.5, 1}},
				{"take_profit_percent", []float64{0.5, 1, 2}},
				{"max_holding_minutes", holding},
				{"max_leverage", []float64{5, 10, 20}},
			}
		},
		Setters: set,
		Valid: func(c models.FibonacciConfig) bool {
			switch {
			case c.GoldenZoneLow >= c.GoldenZoneHigh:
				return false
			case c.StopLossPercent <= 0 || c.TakeProfitPercent/c.StopLossPercent < 1:
				return false
			}
			return c.SwingLookback >= 1
		},
		New:                backtest.NewFibonacci,
		Weights:            Weights{Return: 0.25, WinRate: 0.25, Sharpe: 0.15, Drawdown: 0.15, Frequency: 0.1, Bonus: 0.1},
		TargetTradesPerDay: 10,
		Bonus: func(c models.FibonacciConfig, _ *models.BacktestResult) float64 {
			return riskReward(c.TakeProfitPercent, c.StopLossPercent, 3)
		},
	}
}

// ScalpingSpec optimizes the fast voting scalper.
func ScalpingSpec() Spec[models.ScalpingConfig] {
	set := tradingSetters(func(c *models.ScalpingConfig) *models.TradingConfig { return &c.TradingConfig })
	set["velocity_lookback"] = func(c *models.ScalpingConfig, v float64) { c.VelocityLookback = int(v) }
	set["velocity_threshold"] = func(c *models.ScalpingConfig, v float64) { c.VelocityThreshold = v }
	set["micro_trend_periods"] = func(c *models.ScalpingConfig, v float64) { c.MicroTrendPeriods = int(v) }
	set["micro_trend_length"] = func(c *models.ScalpingConfig, v float64) { c.MicroTrendLength = int(v) }
	set["min_price_movement_percent"] = func(c *models.ScalpingConfig, v float64) { c.MinPriceMovementPercent = v }
	set["tick_strength_threshold"] = func(c *models.ScalpingConfig, v float64) { c.TickStrengthThreshold = v }
	set["stop_loss_percent"] = func(c *models.ScalpingConfig, v float64) { c.StopLossPercent = v }
	set["take_profit_percent"] = func(c *models.ScalpingConfig, v float64) { c.TakeProfitPercent = v }
	set["max_holding_seconds"] = func(c *models.ScalpingConfig, v float64) { c.MaxHoldingSeconds = v }
	set["min_confirmations"] = func(c *models.ScalpingConfig, v float64) { c.MinConfirmations = int(v) }

	return Spec[models.ScalpingConfig]{
		Strategy: models.StrategyScalping,
		Ranges: func(tf backtest.Timeframe) Grid {
			periods := []float64{10, 20}
			holding := []float64{60, 300, 900}
			if tf.SecondsRegime() {
				periods = []float64{5, 10}
				holding = []float64{30, 60, 120}
			}
			return Grid{
				{"period", periods},
				{"velocity_lookback", []float64{2, 3, 5}},
				{"velocity_threshold", []float64{0.001, 0.005, 0.01}},
				{"min_price_movement_percent", []float64{0.02, 0.05, 0.1}},
				{"tick_strength_threshold", []float64{0.6, 0.7, 0.8}},
				{"stop_loss_percent", []float64{0.2, 0.3, 0.5}},
				{"take_profit_percent", []float64{0.3, 0.5, 1}},
				{"max_holding_seconds", holding},
				{"max_leverage", []float64{10, 20, 50}},
				{"min_confirmations", []float64{2, 3}},
			}
		},
		Setters: set,
		Valid: func(c models.ScalpingConfig) bool {
			if c.StopLossPercent <= 0 || c.TakeProfitPercent/c.StopLossPercent < 1 {
				return false
			}
			return c.Period >= 2
		},
		New:                backtest.NewScalping,
		Weights:            Weights{Return: 0.2, WinRate: 0.3, Sharpe: 0.15, Drawdown: 0.1, Frequency: 0.15, Bonus: 0.1},
		TargetTradesPerDay: 50,
		Bonus: func(c models.ScalpingConfig, _ *models.BacktestResult) float64 {
			return riskReward(c.TakeProfitPercent, c.StopLossPercent, 3)
		},
	}
}

// EnhancedSpec optimizes the breakout together with its filter toggles.
func EnhancedSpec() Spec[models.EnhancedConfig] {
	set := tradingSetters(func(c *models.EnhancedConfig) *models.TradingConfig { return &c.TradingConfig })
	set["use_volume_filter"] = func(c *models.EnhancedConfig, v float64) { c.UseVolumeFilter = flag(v) }
	set["use_trend_filter"] = func(c *models.EnhancedConfig, v float64) { c.UseTrendFilter = flag(v) }
	set["use_squeeze_filter"] = func(c *models.EnhancedConfig, v float64) { c.UseSqueezeFilter = flag(v) }
	set["use_time_filter"] = func(c *models.EnhancedConfig, v float64) { c.UseTimeFilter = flag(v) }
	set["use_daily_loss_limit"] = func(c *models.EnhancedConfig, v float64) { c.UseDailyLossLimit = flag(v) }
	set["use_consecutive_loss_limit"] = func(c *models.EnhancedConfig, v float64) { c.UseConsecutiveLossLimit = flag(v) }
	set["use_trailing_stop"] = func(c *models.EnhancedConfig, v float64) { c.UseTrailingStop = flag(v) }
	set["trailing_stop_percent"] = func(c *models.EnhancedConfig, v float64) { c.TrailingStopPercent = v }
	set["use_partial_take_profit"] = func(c *models.EnhancedConfig, v float64) { c.UsePartialTakeProfit = flag(v) }

	return Spec[models.EnhancedConfig]{
		Strategy: models.StrategyEnhanced,
		Ranges: func(tf backtest.Timeframe) Grid {
			periods := steps(10, 40, 10)
			if tf.SecondsRegime() {
				periods = steps(4, 16, 4)
			}
			return Grid{
				{"period", periods},
				{"std_dev_multiplier", []float64{1.5, 2, 2.5}},
				{"max_leverage", []float64{5, 10, 20, 50}},
				{"use_volume_filter", []float64{0, 1}},
				{"use_trend_filter", []float64{0, 1}},
				{"use_squeeze_filter", []float64{0, 1}},
				{"use_consecutive_loss_limit", []float64{0, 1}},
				{"use_trailing_stop", []float64{0, 1}},
				{"use_partial_take_profit", []float64{0, 1}},
			}
		},
		Setters: set,
		Valid: func(c models.EnhancedConfig) bool {
			return c.Period >= 2 && c.StdDevMultiplier > 0
		},
		New:                backtest.NewEnhanced,
		Weights:            Weights{Return: 0.3, WinRate: 0.2, Sharpe: 0.2, Drawdown: 0.15, Frequency: 0.05, Bonus: 0.1},
		TargetTradesPerDay: 2,
		Bonus: func(c models.EnhancedConfig, _ *models.BacktestResult) float64 {
			return leveragePenalty(c.MaxLeverage)
		},
	}
}

// HybridSpec optimizes the breakout plus golden-zone strategy.
func HybridSpec() Spec[models.HybridConfig] {
	set := tradingSetters(func(c *models.HybridConfig) *models.TradingConfig { return &c.TradingConfig })
	fibonacciSetters(set, func(c *models.HybridConfig) *models.FibonacciParams { return &c.FibonacciParams })
	set["require_confluence"] = func(c *models.HybridConfig, v float64) { c.RequireConfluence = flag(v) }
	set["zone_entries"] = func(c *models.HybridConfig, v float64) { c.ZoneEntries = flag(v) }
	set["zone_stop_buffer_percent"] = func(c *models.HybridConfig, v float64) { c.ZoneStopBufferPercent = v }

	return Spec[models.HybridConfig]{
		Strategy: models.StrategyHybrid,
		Ranges: func(tf backtest.Timeframe) Grid {
			periods := steps(10, 40, 10)
			if tf.SecondsRegime() {
				periods = steps(4, 16, 4)
			}
			return Grid{
				{"period", periods},
				{"std_dev_multiplier", []float64{1.5, 2, 2.5}},
				{"max_leverage", []float64{5, 10, 20}},
				{"swing_lookback", []float64{2, 3, 5}},
				{"min_swing_size_percent", []float64{0.2, 0.5, 1}},
				{"require_confluence", []float64{0, 1}},
				{"zone_entries", []float64{0, 1}},
				{"zone_stop_buffer_percent", []float64{0.1, 0.2, 0.5}},
			}
		},
		Setters: set,
		Valid: func(c models.HybridConfig) bool {
			return c.Period >= 2 && c.SwingLookback >= 1 && c.ZoneStopBufferPercent >= 0
		},
		Inert: func(c models.HybridConfig) []string {
			var inert []string
			if !c.ZoneEntries {
				inert = append(inert, "zone_stop_buffer_percent", "golden_zone_low", "golden_zone_high", "retracement_expiry_bars")
				if !c.RequireConfluence {
					// 不使用结构, 摆动参数不影响结果
					inert = append(inert, "swing_lookback", "min_swing_size_percent")
				}
			}
			return inert
		},
		New:                backtest.NewHybrid,
		Weights:            Weights{Return: 0.3, WinRate: 0.2, Sharpe: 0.2, Drawdown: 0.15, Frequency: 0.05, Bonus: 0.1},
		TargetTradesPerDay: 3,
		Bonus: func(_ models.HybridConfig, r *models.BacktestResult) float64 {
			return clamp01(r.ProfitFactor / 3)
		},
	}
}
