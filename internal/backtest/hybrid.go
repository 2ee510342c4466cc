package backtest

import (
	"bollinger-optimizer-go/internal/models"
)

// hybridRules trades band breakouts, optionally only in the direction of the
// last structure break, and golden-zone pullbacks on the right side of the middle band.
type hybridRules struct {
	cfg       models.HybridConfig
	base      baselineRules
	structure *structureTracker
}

// NewHybrid creates the Bollinger plus Fibonacci backtester.
func NewHybrid(cfg models.HybridConfig, opts ...Option) *Backtester {
	rules := &hybridRules{
		cfg:       cfg,
		base:      baselineRules{period: cfg.Period},
		structure: newStructureTracker(cfg.FibonacciParams),
	}
	return New(cfg.TradingConfig, rules, opts...)
}

func (r *hybridRules) Strategy() models.Strategy { return models.StrategyHybrid }

func (r *hybridRules) Reset(st *State) {
	r.base.Reset(st)
	r.structure.reset()
}

func (r *hybridRules) Warmup() int {
	return maxInt(r.base.Warmup(), r.structure.warmup()+1)
}

func (r *hybridRules) Update(st *State, i int) {
	r.base.Update(st, i)
	r.structure.update(st.Candles, i)
}

func (r *hybridRules) Exit(st *State, i int) (Exit, bool) {
	if ex, ok := protectiveExit(st.Open, st.Candles[i]); ok {
		return ex, true
	}
	return middleExit(st, i)
}

func (r *hybridRules) EnterLong(st *State, i int) (Entry, bool) {
	return r.enter(st, i, models.Long)
}

func (r *hybridRules) EnterShort(st *State, i int) (Entry, bool) {
	return r.enter(st, i, models.Short)
}

func (r *hybridRules) enter(st *State, i int, side models.Side) (Entry, bool) {
	if !r.cfg.RequireConfluence || r.structure.lastBreak == side {
		if e, ok := r.base.enter(st, i, side); ok {
			return e, true
		}
	}
	if r.cfg.ZoneEntries {
		return r.zoneEntry(st, i, side)
	}
	return Entry{}, false
}

func (r *hybridRules) zoneEntry(st *State, i int, side models.Side) (Entry, bool) {
	ret := r.structure.active(side)
	band := st.Bands[i]
	c := st.Candles[i]
	if ret == nil || !band.Valid() || !ret.Touches(c) {
		return Entry{}, false
	}
	buffer := r.cfg.ZoneStopBufferPercent / 100
	var e Entry
	if side == models.Long {
		if c.Close <= band.Middle || c.Close <= c.Open {
			return Entry{}, false
		}
		e = Entry{StopLoss: ret.SwingLow * (1 - buffer), TakeProfit: ret.SwingHigh}
		if e.StopLoss >= c.Close || e.TakeProfit <= c.Close {
			return Entry{}, false
		}
	} else {
		if c.Close >= band.Middle || c.Close >= c.Open {
			return Entry{}, false
		}
		e = Entry{StopLoss: ret.SwingHigh * (1 + buffer), TakeProfit: ret.SwingLow}
		if e.StopLoss <= c.Close || e.TakeProfit >= c.Close {
			return Entry{}, false
		}
	}
	r.structure.consume()
	return e, true
}

func (r *hybridRules) Closed(*State, int, models.Trade) {}

func (r *hybridRules) DanglingReason() models.ExitReason { return models.ExitStrategy }
