package backtest

import (
	"math"

	"bollinger-optimizer-go/internal/models"
)

const defaultScalpingConfirmations = 2

// scalpingRules votes over five fast signals and enforces a cooldown between entries.
type scalpingRules struct {
	cfg       models.ScalpingConfig
	cooldown  int64
	lastEntry int64
	entered   bool
}

// NewScalping creates the ultra-fast scalping backtester.
func NewScalping(cfg models.ScalpingConfig, opts ...Option) *Backtester {
	return New(cfg.TradingConfig, &scalpingRules{cfg: cfg}, opts...)
}

func (r *scalpingRules) Strategy() models.Strategy { return models.StrategyScalping }

func (r *scalpingRules) Reset(st *State) {
	r.entered = false
	r.lastEntry = 0
	r.cooldown = r.cfg.CooldownMs
	if r.cooldown <= 0 {
		r.cooldown = st.Timeframe.EntryCooldownMs()
	}
}

func (r *scalpingRules) Warmup() int {
	return maxInt(r.cfg.Period, r.cfg.VelocityLookback, r.cfg.MicroTrendPeriods*r.cfg.MicroTrendLength) + 1
}

func (r *scalpingRules) Update(*State, int) {}

func (r *scalpingRules) Exit(st *State, i int) (Exit, bool) {
	t, c := st.Open, st.Candles[i]
	if ex, ok := protectiveExit(t, c); ok {
		return ex, true
	}
	if timeLimitHit(t, c, int64(r.cfg.MaxHoldingSeconds*msPerSecond)) {
		return Exit{Price: c.Close, Reason: models.ExitTimeLimit}, true
	}
	return Exit{}, false
}

func (r *scalpingRules) EnterLong(st *State, i int) (Entry, bool) {
	return r.enter(st, i, models.Long)
}

func (r *scalpingRules) EnterShort(st *State, i int) (Entry, bool) {
	return r.enter(st, i, models.Short)
}

func (r *scalpingRules) enter(st *State, i int, side models.Side) (Entry, bool) {
	c := st.Candles[i]
	if r.entered && c.Timestamp-r.lastEntry < r.cooldown {
		return Entry{}, false
	}

	dir := 1.0
	if side == models.Short {
		dir = -1
	}
	checks := [5]bool{
		breakout(st, i, side),
		dir*r.velocity(st.Candles, i) > r.cfg.VelocityThreshold,
		r.microTrend(st.Candles, i) == dir,
		dir*(c.Close-c.Open) > 0 && movePercent(c) >= r.cfg.MinPriceMovementPercent,
		tickStrength(c, side) >= r.cfg.TickStrengthThreshold,
	}
	n := 0
	for _, ok := range checks {
		if ok {
			n++
		}
	}
	if n < defaultInt(r.cfg.MinConfirmations, defaultScalpingConfirmations) {
		return Entry{}, false
	}

	r.entered = true
	r.lastEntry = c.Timestamp
	stop, target := percentLevels(side, c.Close, r.cfg.StopLossPercent, r.cfg.TakeProfitPercent)
	return Entry{StopLoss: stop, TakeProfit: target}, true
}

// velocity is the percent change per second over the lookback window.
func (r *scalpingRules) velocity(candles []models.Candle, i int) float64 {
	lb := r.cfg.VelocityLookback
	if lb <= 0 || i-lb < 0 {
		return 0
	}
	from, to := candles[i-lb], candles[i]
	seconds := float64(to.Timestamp-from.Timestamp) / msPerSecond
	if from.Close == 0 || seconds <= 0 {
		return 0
	}
	return (to.Close - from.Close) / from.Close * 100 / seconds
}

// microTrend splits the most recent bars into sub-periods and returns 1 when
// their mean closes strictly rise, -1 when they strictly fall, 0 otherwise.
func (r *scalpingRules) microTrend(candles []models.Candle, i int) float64 {
	periods, length := r.cfg.MicroTrendPeriods, r.cfg.MicroTrendLength
	if periods < 2 || length <= 0 || i+1 < periods*length {
		return 0
	}
	means := make([]float64, periods)
	start := i + 1 - periods*length
	for p := 0; p < periods; p++ {
		var sum float64
		for _, c := range candles[start+p*length : start+(p+1)*length] {
			sum += c.Close
		}
		means[p] = sum / float64(length)
	}
	up, down := true, true
	for p := 1; p < periods; p++ {
		up = up && means[p] > means[p-1]
		down = down && means[p] < means[p-1]
	}
	switch {
	case up:
		return 1
	case down:
		return -1
	}
	return 0
}

func movePercent(c models.Candle) float64 {
	if c.Open == 0 {
		return 0
	}
	return math.Abs(c.Close-c.Open) / c.Open * 100
}

// tickStrength approximates order-flow pressure from where the close sits in
// the bar's range. A zero-range bar is neutral.
func tickStrength(c models.Candle, side models.Side) float64 {
	rng := c.High - c.Low
	if rng <= 0 {
		return 0.5
	}
	if side == models.Long {
		return (c.Close - c.Low) / rng
	}
	return (c.High - c.Close) / rng
}

func (r *scalpingRules) Closed(*State, int, models.Trade) {}

func (r *scalpingRules) DanglingReason() models.ExitReason { return models.ExitTimeLimit }
