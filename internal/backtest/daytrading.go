package backtest

import (
	"bollinger-optimizer-go/internal/indicators"
	"bollinger-optimizer-go/internal/models"
)

const defaultDayTradingConfirmations = 4

// dayTradingRules votes over six signals: band breakout, RSI momentum,
// MACD histogram direction, volume surge, candle color, side of the middle band.
type dayTradingRules struct {
	cfg   models.DayTradingConfig
	rsi   []float64
	hist  []float64
	volMA []float64
}

// NewDayTrading creates the multi-signal day-trading backtester.
func NewDayTrading(cfg models.DayTradingConfig, opts ...Option) *Backtester {
	return New(cfg.TradingConfig, &dayTradingRules{cfg: cfg}, opts...)
}

func (r *dayTradingRules) Strategy() models.Strategy { return models.StrategyDayTrading }

func (r *dayTradingRules) Reset(st *State) {
	r.rsi = indicators.RSI(st.Candles, r.cfg.RSIPeriod)
	r.hist = indicators.MACD(st.Candles, r.cfg.MACDFast, r.cfg.MACDSlow, r.cfg.MACDSignal).Histogram
	r.volMA = indicators.VolumeMA(st.Candles, r.cfg.VolumePeriod)
}

func (r *dayTradingRules) Warmup() int {
	return maxInt(r.cfg.Period, r.cfg.RSIPeriod, r.cfg.MACDSlow+r.cfg.MACDSignal, r.cfg.VolumePeriod) + 1
}

func (r *dayTradingRules) Update(*State, int) {}

// votes counts the sub-conditions that agree with side at bar i.
func (r *dayTradingRules) votes(st *State, i int, side models.Side) int {
	band := st.Bands[i]
	if !band.Valid() {
		return 0
	}
	c := st.Candles[i]
	volume := c.Volume > r.volMA[i]*r.cfg.VolumeMultiplier

	var checks [6]bool
	if side == models.Long {
		checks = [6]bool{
			c.Close > band.Upper,
			r.rsi[i] > 50 && r.rsi[i] < r.cfg.RSIOverbought,
			r.hist[i] > r.hist[i-1],
			volume,
			c.Close > c.Open,
			c.Close > band.Middle,
		}
	} else {
		checks = [6]bool{
			c.Close < band.Lower,
			r.rsi[i] < 50 && r.rsi[i] > r.cfg.RSIOversold,
			r.hist[i] < r.hist[i-1],
			volume,
			c.Close < c.Open,
			c.Close < band.Middle,
		}
	}
	n := 0
	for _, ok := range checks {
		if ok {
			n++
		}
	}
	return n
}

func (r *dayTradingRules) confirmations() int {
	return defaultInt(r.cfg.MinConfirmations, defaultDayTradingConfirmations)
}

// Exit order: stop-loss, take-profit, time limit, then a confirmed opposite signal.
func (r *dayTradingRules) Exit(st *State, i int) (Exit, bool) {
	t, c := st.Open, st.Candles[i]
	if ex, ok := protectiveExit(t, c); ok {
		return ex, true
	}
	if timeLimitHit(t, c, int64(r.cfg.MaxHoldingMinutes*msPerMinute)) {
		return Exit{Price: c.Close, Reason: models.ExitTimeLimit}, true
	}
	opposite := models.Short
	if t.Position == models.Short {
		opposite = models.Long
	}
	if r.votes(st, i, opposite) >= r.confirmations() {
		return Exit{Price: c.Close, Reason: models.ExitSignalReversal}, true
	}
	return Exit{}, false
}

func (r *dayTradingRules) EnterLong(st *State, i int) (Entry, bool) {
	return r.enter(st, i, models.Long)
}

func (r *dayTradingRules) EnterShort(st *State, i int) (Entry, bool) {
	return r.enter(st, i, models.Short)
}

func (r *dayTradingRules) enter(st *State, i int, side models.Side) (Entry, bool) {
	if r.votes(st, i, side) < r.confirmations() {
		return Entry{}, false
	}
	stop, target := percentLevels(side, st.Candles[i].Close, r.cfg.StopLossPercent, r.cfg.TakeProfitPercent)
	return Entry{StopLoss: stop, TakeProfit: target}, true
}

func (r *dayTradingRules) Closed(*State, int, models.Trade) {}

func (r *dayTradingRules) DanglingReason() models.ExitReason { return models.ExitStrategy }
