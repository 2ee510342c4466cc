package backtest

import (
	"bollinger-optimizer-go/internal/models"
)

// bandTracker remembers the last bar whose close sat on the inside of each
// band. It is the structural stop anchor of the breakout strategies.
type bandTracker struct {
	underUpper int // 最近一根收盘价 <= 上轨的K线
	aboveLower int // 最近一根收盘价 >= 下轨的K线
}

func (b *bandTracker) reset() {
	b.underUpper = -1
	b.aboveLower = -1
}

// observe records bar j. Bars with warm-up bands are ignored.
func (b *bandTracker) observe(st *State, j int) {
	if j < 0 || j >= len(st.Candles) || !st.Bands[j].Valid() {
		return
	}
	c := st.Candles[j].Close
	if c <= st.Bands[j].Upper {
		b.underUpper = j
	}
	if c >= st.Bands[j].Lower {
		b.aboveLower = j
	}
}

func (b *bandTracker) anchor(side models.Side) int {
	if side == models.Long {
		return b.underUpper
	}
	return b.aboveLower
}

// breakout reports the first bar closing beyond the band on side.
func breakout(st *State, i int, side models.Side) bool {
	if i < 1 {
		return false
	}
	prev, cur := st.Bands[i-1], st.Bands[i]
	if !prev.Valid() || !cur.Valid() {
		return false
	}
	pc, c := st.Candles[i-1].Close, st.Candles[i].Close
	if side == models.Long {
		return pc <= prev.Upper && c > cur.Upper
	}
	return pc >= prev.Lower && c < cur.Lower
}

// structuralStop places the stop at the extreme of the anchor bar, falling
// back to a fixed percentage when there is no usable anchor.
func structuralStop(st *State, anchor int, side models.Side, entry float64) float64 {
	if side == models.Long {
		if anchor >= 0 {
			if low := st.Candles[anchor].Low; low > 0 && low < entry {
				return low
			}
		}
		return entry * (1 - defaultStopPercent/100)
	}
	if anchor >= 0 {
		if high := st.Candles[anchor].High; high > entry {
			return high
		}
	}
	return entry * (1 + defaultStopPercent/100)
}

// percentLevels returns stop and target prices at fixed distances from entry.
// A non-positive percentage disables that level.
func percentLevels(side models.Side, entry, stopPct, targetPct float64) (stop, target float64) {
	dir := 1.0
	if side == models.Short {
		dir = -1
	}
	if stopPct > 0 {
		stop = entry * (1 - dir*stopPct/100)
	}
	if targetPct > 0 {
		target = entry * (1 + dir*targetPct/100)
	}
	return stop, target
}

// stopHit uses the intrabar extreme; the stop must be strictly breached.
func stopHit(t *models.Trade, c models.Candle) bool {
	if t.StopLoss <= 0 {
		return false
	}
	if t.Position == models.Long {
		return c.Low < t.StopLoss
	}
	return c.High > t.StopLoss
}

// targetHit fires when the bar touches the take-profit level.
func targetHit(t *models.Trade, c models.Candle) bool {
	if t.TakeProfit <= 0 {
		return false
	}
	if t.Position == models.Long {
		return c.High >= t.TakeProfit
	}
	return c.Low <= t.TakeProfit
}

// protectiveExit checks stop-loss before take-profit. Both fill at their level.
func protectiveExit(t *models.Trade, c models.Candle) (Exit, bool) {
	if stopHit(t, c) {
		return Exit{Price: t.StopLoss, Reason: models.ExitStopLoss}, true
	}
	if targetHit(t, c) {
		return Exit{Price: t.TakeProfit, Reason: models.ExitTakeProfit}, true
	}
	return Exit{}, false
}

func timeLimitHit(t *models.Trade, c models.Candle, maxMs int64) bool {
	return maxMs > 0 && c.Timestamp-t.EntryTime >= maxMs
}

// middleExit closes a long at or under the middle band, a short at or over it.
func middleExit(st *State, i int) (Exit, bool) {
	band := st.Bands[i]
	if !band.Valid() {
		return Exit{}, false
	}
	c := st.Candles[i].Close
	if (st.Open.Position == models.Long && c <= band.Middle) ||
		(st.Open.Position == models.Short && c >= band.Middle) {
		return Exit{Price: c, Reason: models.ExitStrategy}, true
	}
	return Exit{}, false
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func maxInt(values ...int) int {
	m := 0
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}
