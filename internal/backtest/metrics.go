package backtest

import (
	"math"

	"bollinger-optimizer-go/internal/models"
)

const (
	msPerDayF = float64(msPerDay)

	// 没有亏损交易时的盈亏比上限
	maxProfitFactor = 999.0
)

// ComputeMetrics aggregates closed trades into a BacktestResult. Ratios that
// would divide by zero are reported as 0.
//
// The Sharpe ratio is a per-trade approximation: returns are pnl/initialCapital
// for each trade and the annualization factor comes from the bar timeframe,
// not from elapsed time.
func ComputeMetrics(strategy models.Strategy, trades []models.Trade, initialCapital float64, tf Timeframe) *models.BacktestResult {
	if trades == nil {
		trades = make([]models.Trade, 0)
	}
	r := &models.BacktestResult{
		Strategy:       strategy,
		Timeframe:      tf.String(),
		Trades:         trades,
		TotalTrades:    len(trades),
		InitialCapital: initialCapital,
		FinalCapital:   initialCapital,
		ExitReasons:    make(map[models.ExitReason]int),
	}
	if len(trades) == 0 {
		return r
	}

	var grossWin, grossLoss float64
	for _, t := range trades {
		r.TotalPnL += t.PnL
		r.ExitReasons[t.Reason]++
		if t.Position == models.Long {
			r.LongTrades++
		} else {
			r.ShortTrades++
		}
		switch {
		case t.PnL > 0:
			r.WinningTrades++
			grossWin += t.PnL
			if t.PnL > r.LargestWin {
				r.LargestWin = t.PnL
			}
		case t.PnL < 0:
			r.LosingTrades++
			grossLoss -= t.PnL
			if t.PnL < r.LargestLoss {
				r.LargestLoss = t.PnL
			}
		}
	}

	r.WinRate = float64(r.WinningTrades) / float64(r.TotalTrades)
	r.FinalCapital = initialCapital + r.TotalPnL
	r.TotalReturn = safeDiv(r.TotalPnL, initialCapital)
	if r.WinningTrades > 0 {
		r.AverageWin = grossWin / float64(r.WinningTrades)
	}
	if r.LosingTrades > 0 {
		r.AverageLoss = -grossLoss / float64(r.LosingTrades)
	}
	switch {
	case grossLoss > 0:
		r.ProfitFactor = math.Min(grossWin/grossLoss, maxProfitFactor)
	case grossWin > 0:
		r.ProfitFactor = maxProfitFactor
	}

	r.MaxDrawdown = maxDrawdown(trades, initialCapital)
	r.SharpeRatio = sharpeRatio(trades, initialCapital, tf.AnnualizationFactor())

	first, last := trades[0].EntryTime, trades[len(trades)-1].ExitTime
	r.TradingPeriodDays = sanitize(float64(last-first) / msPerDayF)
	if r.TradingPeriodDays > 0 {
		r.AverageTradesPerDay = sanitize(float64(r.TotalTrades) / r.TradingPeriodDays)
	} else {
		r.TradingPeriodDays = 0
	}

	r.WinRate = sanitize(r.WinRate)
	r.TotalPnL = sanitize(r.TotalPnL)
	r.TotalReturn = sanitize(r.TotalReturn)
	r.FinalCapital = sanitize(r.FinalCapital)
	r.ProfitFactor = sanitize(r.ProfitFactor)
	return r
}

// maxDrawdown walks equity in close order; the peak starts at the initial capital.
func maxDrawdown(trades []models.Trade, initialCapital float64) float64 {
	running := initialCapital
	peak := initialCapital
	var maxDD float64
	for _, t := range trades {
		running += t.PnL
		if running > peak {
			peak = running
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - running) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return sanitize(maxDD)
}

func sharpeRatio(trades []models.Trade, initialCapital, annualization float64) float64 {
	if len(trades) < 2 || initialCapital == 0 {
		return 0
	}
	n := float64(len(trades))
	var mean float64
	for _, t := range trades {
		mean += t.PnL / initialCapital
	}
	mean /= n

	var variance float64
	for _, t := range trades {
		d := t.PnL/initialCapital - mean
		variance += d * d
	}
	std := math.Sqrt(variance / n)
	if std == 0 {
		return 0
	}
	return sanitize(mean / std * math.Sqrt(annualization))
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// sanitize maps NaN and ±Inf to 0 so that results stay sortable.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
