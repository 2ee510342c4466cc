package backtest

import (
	"math"
	"time"

	"bollinger-optimizer-go/internal/indicators"
	"bollinger-optimizer-go/internal/models"
)

// enhancedRules gates the baseline breakout with optional filters and adds
// trailing stops and partial take-profit. With every toggle off it behaves
// exactly like baselineRules.
type enhancedRules struct {
	cfg  models.EnhancedConfig
	base baselineRules

	volMA []float64

	day             int64
	dayStartCapital float64
	dayPnL          float64

	lossStreak  int
	pausedUntil int

	trailed bool
}

// NewEnhanced creates the filtered breakout backtester.
func NewEnhanced(cfg models.EnhancedConfig, opts ...Option) *Backtester {
	rules := &enhancedRules{cfg: cfg, base: baselineRules{period: cfg.Period}}
	return New(cfg.TradingConfig, rules, opts...)
}

func (r *enhancedRules) Strategy() models.Strategy { return models.StrategyEnhanced }

func (r *enhancedRules) Reset(st *State) {
	r.base.Reset(st)
	r.volMA = nil
	if r.cfg.UseVolumeFilter {
		r.volMA = indicators.VolumeMA(st.Candles, r.cfg.VolumePeriod)
	}
	r.day = -1
	r.dayStartCapital = st.Capital
	r.dayPnL = 0
	r.lossStreak = 0
	r.pausedUntil = -1
	r.trailed = false
}

func (r *enhancedRules) Warmup() int {
	w := r.base.Warmup()
	if r.cfg.UseVolumeFilter {
		w = maxInt(w, r.cfg.VolumePeriod+1)
	}
	if r.cfg.UseTrendFilter {
		w = maxInt(w, r.cfg.Period+r.cfg.TrendLookback)
	}
	if r.cfg.UseSqueezeFilter {
		w = maxInt(w, r.cfg.Period+r.cfg.SqueezeLookback)
	}
	return w
}

func (r *enhancedRules) Update(st *State, i int) {
	r.base.Update(st, i)
	if r.cfg.UseDailyLossLimit {
		if day := st.Candles[i].Timestamp / msPerDay; day != r.day {
			r.day = day
			r.dayStartCapital = st.Capital
			r.dayPnL = 0
		}
	}
}

func (r *enhancedRules) Exit(st *State, i int) (Exit, bool) {
	t, c := st.Open, st.Candles[i]
	if stopHit(t, c) {
		reason := models.ExitStopLoss
		if r.trailed {
			reason = models.ExitTrailingStop
		}
		return Exit{Price: t.StopLoss, Reason: reason}, true
	}
	if r.cfg.UsePartialTakeProfit {
		r.partialTakeProfit(t, c)
	}
	if ex, ok := middleExit(st, i); ok {
		return ex, true
	}
	if r.cfg.UseTrailingStop {
		r.trail(t, c)
	}
	return Exit{}, false
}

// partialTakeProfit books a fraction of the position once and moves the stop to break-even.
func (r *enhancedRules) partialTakeProfit(t *models.Trade, c models.Candle) {
	if t.ClosedFraction > 0 || r.cfg.PartialTakeProfitFraction <= 0 || r.cfg.PartialTakeProfitFraction >= 1 {
		return
	}
	_, target := percentLevels(t.Position, t.EntryPrice, 0, r.cfg.PartialTakeProfitPercent)
	if target <= 0 {
		return
	}
	hit := (t.Position == models.Long && c.High >= target) || (t.Position == models.Short && c.Low <= target)
	if !hit {
		return
	}
	t.PartialPnL = t.ReturnAt(target) * r.cfg.PartialTakeProfitFraction
	t.ClosedFraction = r.cfg.PartialTakeProfitFraction
	if (t.Position == models.Long && t.StopLoss < t.EntryPrice) ||
		(t.Position == models.Short && t.StopLoss > t.EntryPrice) {
		t.StopLoss = t.EntryPrice
	}
}

// trail ratchets the stop behind the bar extreme; it never loosens.
func (r *enhancedRules) trail(t *models.Trade, c models.Candle) {
	pct := r.cfg.TrailingStopPercent / 100
	if pct <= 0 {
		return
	}
	if t.Position == models.Long {
		if stop := c.High * (1 - pct); stop > t.StopLoss {
			t.StopLoss = stop
			r.trailed = true
		}
		return
	}
	if stop := c.Low * (1 + pct); stop < t.StopLoss {
		t.StopLoss = stop
		r.trailed = true
	}
}

func (r *enhancedRules) EnterLong(st *State, i int) (Entry, bool) {
	return r.enter(st, i, models.Long)
}

func (r *enhancedRules) EnterShort(st *State, i int) (Entry, bool) {
	return r.enter(st, i, models.Short)
}

func (r *enhancedRules) enter(st *State, i int, side models.Side) (Entry, bool) {
	if !r.allowed(st, i, side) {
		return Entry{}, false
	}
	e, ok := r.base.enter(st, i, side)
	if ok {
		r.trailed = false
	}
	return e, ok
}

// allowed applies every enabled gate.
func (r *enhancedRules) allowed(st *State, i int, side models.Side) bool {
	c := st.Candles[i]
	if r.cfg.UseConsecutiveLossLimit && i <= r.pausedUntil {
		return false
	}
	if r.cfg.UseDailyLossLimit && r.dayStartCapital > 0 &&
		-r.dayPnL >= r.dayStartCapital*r.cfg.DailyLossLimitPercent/100 {
		return false
	}
	if r.cfg.UseTimeFilter && !inTradingHours(c.Timestamp, r.cfg.TradingStartHour, r.cfg.TradingEndHour) {
		return false
	}
	if r.cfg.UseVolumeFilter && c.Volume <= r.volMA[i]*r.cfg.VolumeMultiplier {
		return false
	}
	if r.cfg.UseTrendFilter {
		switch trend := r.trend(st, i); {
		case trend > 0 && side == models.Short, trend < 0 && side == models.Long:
			return false
		}
	}
	if r.cfg.UseSqueezeFilter && !r.squeezed(st, i) {
		return false
	}
	return true
}

// trend classifies the middle-band slope over the lookback: 1 up, -1 down, 0 ranging.
func (r *enhancedRules) trend(st *State, i int) int {
	j := i - r.cfg.TrendLookback
	if r.cfg.TrendLookback <= 0 || j < 0 || !st.Bands[j].Valid() || st.Bands[j].Middle == 0 {
		return 0
	}
	slope := (st.Bands[i].Middle - st.Bands[j].Middle) / st.Bands[j].Middle * 100
	switch {
	case slope > r.cfg.TrendThresholdPercent:
		return 1
	case slope < -r.cfg.TrendThresholdPercent:
		return -1
	}
	return 0
}

// squeezed reports whether the band width compressed under the threshold
// at some bar in the lookback before i.
func (r *enhancedRules) squeezed(st *State, i int) bool {
	minWidth := math.Inf(1)
	for j := i - r.cfg.SqueezeLookback; j < i; j++ {
		if j < 0 || !st.Bands[j].Valid() {
			continue
		}
		minWidth = math.Min(minWidth, st.Bands[j].Width())
	}
	return minWidth <= r.cfg.SqueezeThreshold
}

func inTradingHours(ts int64, start, end int) bool {
	h := time.UnixMilli(ts).UTC().Hour()
	if start <= end {
		return h >= start && h < end
	}
	return h >= start || h < end
}

func (r *enhancedRules) Closed(_ *State, i int, t models.Trade) {
	r.dayPnL += t.PnL
	if t.PnL < 0 {
		r.lossStreak++
	} else {
		r.lossStreak = 0
	}
	if r.cfg.UseConsecutiveLossLimit && r.cfg.MaxConsecutiveLosses > 0 && r.lossStreak >= r.cfg.MaxConsecutiveLosses {
		r.pausedUntil = i + r.cfg.LossCooldownBars
		r.lossStreak = 0
	}
}

func (r *enhancedRules) DanglingReason() models.ExitReason { return models.ExitStrategy }
