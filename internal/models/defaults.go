package models

// DefaultTradingConfig returns the classic 20-period, 2-sigma band with
// longs and shorts enabled.
func DefaultTradingConfig() TradingConfig {
	return TradingConfig{
		Period:               20,
		StdDevMultiplier:     2,
		Offset:               0,
		MaxLeverage:          10,
		InitialCapital:       10000,
		EnableLongPositions:  true,
		EnableShortPositions: true,
	}
}

// DefaultFibonacciParams returns the nominal 50%-61.8% golden zone.
func DefaultFibonacciParams() FibonacciParams {
	return FibonacciParams{
		SwingLookback:         3,
		MinSwingSizePercent:   0.5,
		GoldenZoneLow:         0.5,
		GoldenZoneHigh:        0.618,
		RetracementExpiryBars: 50,
	}
}

func DefaultDayTradingConfig() DayTradingConfig {
	return DayTradingConfig{
		TradingConfig:     DefaultTradingConfig(),
		RSIPeriod:         14,
		RSIOverbought:     70,
		RSIOversold:       30,
		MACDFast:          12,
		MACDSlow:          26,
		MACDSignal:        9,
		VolumePeriod:      20,
		VolumeMultiplier:  1.2,
		StopLossPercent:   1,
		TakeProfitPercent: 2,
		MaxHoldingMinutes: 240,
		MinConfirmations:  4,
	}
}

func DefaultFibonacciConfig() FibonacciConfig {
	return FibonacciConfig{
		TradingConfig:     DefaultTradingConfig(),
		FibonacciParams:   DefaultFibonacciParams(),
		VolumePeriod:      20,
		VolumeMultiplier:  1.1,
		StopLossPercent:   0.5,
		TakeProfitPercent: 1,
		MaxHoldingMinutes: 60,
		MinConfirmations:  3,
	}
}

func DefaultScalpingConfig() ScalpingConfig {
	return ScalpingConfig{
		TradingConfig:           DefaultTradingConfig(),
		VelocityLookback:        3,
		VelocityThreshold:       0.005,
		MicroTrendPeriods:       3,
		MicroTrendLength:        2,
		MinPriceMovementPercent: 0.05,
		TickStrengthThreshold:   0.7,
		StopLossPercent:         0.3,
		TakeProfitPercent:       0.5,
		MaxHoldingSeconds:       300,
		MinConfirmations:        2,
	}
}

// DefaultEnhancedConfig has every filter disabled so it trades exactly like
// the baseline; the filter parameters are pre-filled for when they get enabled.
func DefaultEnhancedConfig() EnhancedConfig {
	return EnhancedConfig{
		TradingConfig:             DefaultTradingConfig(),
		VolumePeriod:              20,
		VolumeMultiplier:          1.5,
		TrendLookback:             10,
		TrendThresholdPercent:     0.5,
		SqueezeLookback:           20,
		SqueezeThreshold:          0.04,
		TradingStartHour:          8,
		TradingEndHour:            20,
		DailyLossLimitPercent:     5,
		MaxConsecutiveLosses:      3,
		LossCooldownBars:          10,
		TrailingStopPercent:       2,
		PartialTakeProfitPercent:  2,
		PartialTakeProfitFraction: 0.5,
	}
}

func DefaultHybridConfig() HybridConfig {
	return HybridConfig{
		TradingConfig:         DefaultTradingConfig(),
		FibonacciParams:       DefaultFibonacciParams(),
		RequireConfluence:     false,
		ZoneEntries:           true,
		ZoneStopBufferPercent: 0.2,
	}
}
