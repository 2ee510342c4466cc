package backtest

import (
	"bollinger-optimizer-go/internal/models"
)

// baselineRules is the plain band breakout: enter on the first close beyond
// a band, stop at the last bar inside it, exit back at the middle band.
type baselineRules struct {
	period int
	side   bandTracker
}

// NewBaseline creates the band breakout backtester.
func NewBaseline(cfg models.TradingConfig, opts ...Option) *Backtester {
	return New(cfg, &baselineRules{period: cfg.Period}, opts...)
}

func (r *baselineRules) Strategy() models.Strategy { return models.StrategyBaseline }

func (r *baselineRules) Reset(*State) { r.side.reset() }

func (r *baselineRules) Warmup() int { return r.period + 1 }

// Update only looks at the previous bar so the anchor is always before i.
func (r *baselineRules) Update(st *State, i int) { r.side.observe(st, i-1) }

func (r *baselineRules) Exit(st *State, i int) (Exit, bool) {
	if stopHit(st.Open, st.Candles[i]) {
		return Exit{Price: st.Open.StopLoss, Reason: models.ExitStopLoss}, true
	}
	return middleExit(st, i)
}

func (r *baselineRules) EnterLong(st *State, i int) (Entry, bool) {
	return r.enter(st, i, models.Long)
}

func (r *baselineRules) EnterShort(st *State, i int) (Entry, bool) {
	return r.enter(st, i, models.Short)
}

func (r *baselineRules) enter(st *State, i int, side models.Side) (Entry, bool) {
	anchor := r.side.anchor(side)
	if anchor < 0 || !breakout(st, i, side) {
		return Entry{}, false
	}
	return Entry{StopLoss: structuralStop(st, anchor, side, st.Candles[i].Close)}, true
}

func (r *baselineRules) Closed(*State, int, models.Trade) {}

func (r *baselineRules) DanglingReason() models.ExitReason { return models.ExitStrategy }
