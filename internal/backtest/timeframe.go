package backtest

import (
	"sort"

	"bollinger-optimizer-go/internal/models"
)

// Timeframe is the bar granularity detected from the candle spacing.
type Timeframe int

const (
	TimeframeSeconds Timeframe = iota
	TimeframeMinutes
	TimeframeHours
	TimeframeDaily
)

const (
	msPerSecond = 1000
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour

	// 用于检测时间粒度的间隔数量
	detectionSample = 20
)

// DetectTimeframe classifies the median spacing of the first candles.
// Fewer than two candles is treated as minute data.
func DetectTimeframe(candles []models.Candle) Timeframe {
	n := len(candles) - 1
	if n > detectionSample {
		n = detectionSample
	}
	if n <= 0 {
		return TimeframeMinutes
	}
	gaps := make([]int64, 0, n)
	for i := 1; i <= n; i++ {
		gaps = append(gaps, candles[i].Timestamp-candles[i-1].Timestamp)
	}
	sort.Slice(gaps, func(a, b int) bool { return gaps[a] < gaps[b] })
	median := gaps[len(gaps)/2]
	if len(gaps)%2 == 0 {
		median = (gaps[len(gaps)/2-1] + gaps[len(gaps)/2]) / 2
	}

	switch {
	case median < msPerMinute:
		return TimeframeSeconds
	case median < msPerHour:
		return TimeframeMinutes
	case median < msPerDay:
		return TimeframeHours
	default:
		return TimeframeDaily
	}
}

// SecondsRegime reports whether bars are spaced under a minute apart.
func (t Timeframe) SecondsRegime() bool { return t == TimeframeSeconds }

// AnnualizationFactor scales the per-trade Sharpe ratio.
func (t Timeframe) AnnualizationFactor() float64 {
	switch t {
	case TimeframeSeconds:
		return 252 * 24 * 60 * 60
	case TimeframeMinutes:
		return 252 * 24 * 60
	case TimeframeHours:
		return 252 * 24
	default:
		return 252
	}
}

// EntryCooldownMs is the minimum spacing between scalping entries.
func (t Timeframe) EntryCooldownMs() int64 {
	if t.SecondsRegime() {
		return 1 * msPerSecond
	}
	return 5 * msPerSecond
}

func (t Timeframe) String() string {
	switch t {
	case TimeframeSeconds:
		return "seconds"
	case TimeframeMinutes:
		return "minutes"
	case TimeframeHours:
		return "hours"
	default:
		return "daily"
	}
}
