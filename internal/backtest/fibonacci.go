package backtest

import (
	"bollinger-optimizer-go/internal/indicators"
	"bollinger-optimizer-go/internal/models"
)

const defaultFibonacciConfirmations = 3

// fibonacciRules trades pullbacks into the golden zone after a structure break.
type fibonacciRules struct {
	cfg       models.FibonacciConfig
	structure *structureTracker
	volMA     []float64
}

// NewFibonacci creates the Fibonacci structure-break scalping backtester.
func NewFibonacci(cfg models.FibonacciConfig, opts ...Option) *Backtester {
	rules := &fibonacciRules{cfg: cfg, structure: newStructureTracker(cfg.FibonacciParams)}
	return New(cfg.TradingConfig, rules, opts...)
}

func (r *fibonacciRules) Strategy() models.Strategy { return models.StrategyFibonacci }

func (r *fibonacciRules) Reset(st *State) {
	r.structure.reset()
	r.volMA = indicators.VolumeMA(st.Candles, r.cfg.VolumePeriod)
}

func (r *fibonacciRules) Warmup() int {
	return maxInt(r.cfg.Period, r.cfg.VolumePeriod, r.structure.warmup()) + 1
}

func (r *fibonacciRules) Update(st *State, i int) { r.structure.update(st.Candles, i) }

func (r *fibonacciRules) Exit(st *State, i int) (Exit, bool) {
	t, c := st.Open, st.Candles[i]
	if ex, ok := protectiveExit(t, c); ok {
		return ex, true
	}
	if timeLimitHit(t, c, int64(r.cfg.MaxHoldingMinutes*msPerMinute)) {
		return Exit{Price: c.Close, Reason: models.ExitTimeLimit}, true
	}
	return Exit{}, false
}

func (r *fibonacciRules) EnterLong(st *State, i int) (Entry, bool) {
	return r.enter(st, i, models.Long)
}

func (r *fibonacciRules) EnterShort(st *State, i int) (Entry, bool) {
	return r.enter(st, i, models.Short)
}

func (r *fibonacciRules) enter(st *State, i int, side models.Side) (Entry, bool) {
	ret := r.structure.active(side)
	if ret == nil {
		return Entry{}, false
	}
	c, prev := st.Candles[i], st.Candles[i-1]
	if !ret.Touches(c) {
		return Entry{}, false
	}

	var checks [4]bool
	volume := c.Volume > r.volMA[i]*r.cfg.VolumeMultiplier
	if side == models.Long {
		checks = [4]bool{
			c.Low <= ret.ZoneTop && c.Close > prev.Close, // 回踩反弹
			volume,
			c.Close > c.Open,
			c.Close > ret.ZoneBottom,
		}
	} else {
		checks = [4]bool{
			c.High >= ret.ZoneBottom && c.Close < prev.Close,
			volume,
			c.Close < c.Open,
			c.Close < ret.ZoneTop,
		}
	}
	n := 0
	for _, ok := range checks {
		if ok {
			n++
		}
	}
	if n < defaultInt(r.cfg.MinConfirmations, defaultFibonacciConfirmations) {
		return Entry{}, false
	}

	r.structure.consume()
	stop, target := percentLevels(side, c.Close, r.cfg.StopLossPercent, r.cfg.TakeProfitPercent)
	return Entry{StopLoss: stop, TakeProfit: target}, true
}

func (r *fibonacciRules) Closed(*State, int, models.Trade) {}

func (r *fibonacciRules) DanglingReason() models.ExitReason { return models.ExitTimeLimit }
