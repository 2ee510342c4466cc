package optimizer

import (
	"math"

	"bollinger-optimizer-go/internal/models"
)

// Weights combine the normalized sub-scores. They are fixed for one run, so
// scores compare within a run but not across strategies.
type Weights struct {
	Return    float64 `json:"return"`
	WinRate   float64 `json:"win_rate"`
	Sharpe    float64 `json:"sharpe"`
	Drawdown  float64 `json:"drawdown"`
	Frequency float64 `json:"frequency"`
	Bonus     float64 `json:"bonus"`
}

func (w Weights) Sum() float64 {
	return w.Return + w.WinRate + w.Sharpe + w.Drawdown + w.Frequency + w.Bonus
}

// Normalize rescales the weights to sum to 1.
func (w Weights) Normalize() Weights {
	sum := w.Sum()
	if sum <= 0 {
		return w
	}
	return Weights{
		Return:    w.Return / sum,
		WinRate:   w.WinRate / sum,
		Sharpe:    w.Sharpe / sum,
		Drawdown:  w.Drawdown / sum,
		Frequency: w.Frequency / sum,
		Bonus:     w.Bonus / sum,
	}
}

// SubScores are the per-metric components of a score, each in [0,1].
type SubScores struct {
	Return    float64
	WinRate   float64
	Sharpe    float64
	Drawdown  float64
	Frequency float64
	Bonus     float64
}

// subScores normalizes a result. targetPerDay is the trade frequency that
// earns the full frequency score.
func subScores(r *models.BacktestResult, targetPerDay, bonus float64) SubScores {
	freq := 0.0
	if targetPerDay > 0 {
		freq = clamp01(r.AverageTradesPerDay / targetPerDay)
	}
	return SubScores{
		Return:    clamp01(0.5 + 0.5*math.Tanh(r.TotalReturn)),
		WinRate:   clamp01(r.WinRate),
		Sharpe:    clamp01(0.5 + 0.5*math.Tanh(r.SharpeRatio/3)),
		Drawdown:  1 - clamp01(r.MaxDrawdown),
		Frequency: freq,
		Bonus:     clamp01(bonus),
	}
}

// Score is the weighted sum of the sub-scores scaled to 0-100. NaN maps to 0.
func Score(w Weights, s SubScores) float64 {
	v := 100 * (w.Return*s.Return +
		w.WinRate*s.WinRate +
		w.Sharpe*s.Sharpe +
		w.Drawdown*s.Drawdown +
		w.Frequency*s.Frequency +
		w.Bonus*s.Bonus)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// leveragePenalty favors lower leverage: 1 at 1x, 0 at 125x.
func leveragePenalty(leverage float64) float64 {
	return clamp01(1 - (leverage-1)/124)
}

// riskReward scores take-profit over stop-loss distance against a target ratio.
func riskReward(takeProfit, stopLoss, target float64) float64 {
	if stopLoss <= 0 || target <= 0 {
		return 0
	}
	return clamp01(takeProfit / stopLoss / target)
}
