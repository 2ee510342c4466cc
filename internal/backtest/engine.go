// Package backtest walks a candle series once per run, holding at most one
// open position, and turns the closed trades into a BacktestResult.
//
// Every strategy shares the same life-cycle (reset, iterate, close the
// dangling trade, aggregate); what differs is injected as a Rules value.
package backtest

import (
	"errors"
	"fmt"

	"bollinger-optimizer-go/internal/indicators"
	"bollinger-optimizer-go/internal/models"

	"go.uber.org/zap"
)

// 默认结构止损比例: 找不到结构锚点时使用
const defaultStopPercent = 5.0

// ErrInvalidCapital is returned for configs whose initial capital is not positive.
var ErrInvalidCapital = errors.New("initial capital must be positive")

// Entry describes a position the rules want to open at the current close.
type Entry struct {
	StopLoss   float64
	TakeProfit float64
	Leverage   float64 // 0 表示使用配置中的 MaxLeverage
}

// Exit describes how the open position is closed on the current bar.
type Exit struct {
	Price  float64
	Reason models.ExitReason
}

// Rules are the strategy-specific decisions of a backtest. A Rules value
// keeps its own trackers and is reset at the start of every run.
type Rules interface {
	Strategy() models.Strategy
	// Reset clears trackers and precomputes indicators for st.Candles.
	Reset(st *State)
	// Warmup is the first bar index the engine evaluates.
	Warmup() int
	// Update advances auxiliary trackers; it runs before exits and entries.
	Update(st *State, i int)
	Exit(st *State, i int) (Exit, bool)
	EnterLong(st *State, i int) (Entry, bool)
	EnterShort(st *State, i int) (Entry, bool)
	// Closed is called once for every closed trade.
	Closed(st *State, i int, t models.Trade)
	// DanglingReason labels the trade force-closed after the last bar.
	DanglingReason() models.ExitReason
}

// State is the mutable simulation state of one run.
type State struct {
	Candles   []models.Candle
	Bands     []models.BollingerBand
	Timeframe Timeframe
	Config    models.TradingConfig
	Open      *models.Trade
	Closed    []models.Trade
	Capital   float64
	nextID    int
}

func newState(cfg models.TradingConfig, candles []models.Candle, bands []models.BollingerBand) *State {
	return &State{
		Candles:   candles,
		Bands:     bands,
		Timeframe: DetectTimeframe(candles),
		Config:    cfg,
		Closed:    make([]models.Trade, 0),
		Capital:   cfg.InitialCapital,
		nextID:    1,
	}
}

func (s *State) openTrade(i int, side models.Side, e Entry) *models.Trade {
	leverage := e.Leverage
	if leverage <= 0 {
		leverage = s.Config.MaxLeverage
	}
	if leverage <= 0 {
		leverage = 1
	}
	c := s.Candles[i]
	s.Open = &models.Trade{
		ID:             s.nextID,
		EntryTime:      c.Timestamp,
		EntryPrice:     c.Close,
		StopLoss:       e.StopLoss,
		TakeProfit:     e.TakeProfit,
		Position:       side,
		Leverage:       leverage,
		CapitalAtEntry: s.Capital,
		IsOpen:         true,
	}
	s.nextID++
	return s.Open
}

func (s *State) closeTrade(i int, price float64, reason models.ExitReason) models.Trade {
	t := *s.Open
	remaining := 1 - t.ClosedFraction
	pnl := t.PartialPnL + t.ReturnAt(price)*remaining
	if s.Config.ClampLossAtCapital && pnl < -t.CapitalAtEntry {
		pnl = -t.CapitalAtEntry
	}
	t.ExitTime = s.Candles[i].Timestamp
	t.ExitPrice = price
	t.PnL = pnl
	t.IsOpen = false
	t.Reason = reason

	s.Capital += pnl
	s.Closed = append(s.Closed, t)
	s.Open = nil
	return t
}

// Backtester runs one strategy over candle series. It may be reused; every
// Run starts from a fresh State.
type Backtester struct {
	cfg    models.TradingConfig
	rules  Rules
	logger *zap.Logger
}

// Option 用于配置 Backtester
type Option func(*Backtester)

// WithLogger sets the logger used for per-trade debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Backtester) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a Backtester from shared trading parameters and a rule set.
// It panics on nil rules or a non-positive initial capital; use ForConfig
// to get an error instead.
func New(cfg models.TradingConfig, rules Rules, opts ...Option) *Backtester {
	if rules == nil {
		panic("backtest: nil rules")
	}
	if !(cfg.InitialCapital > 0) {
		panic(fmt.Sprintf("backtest: %v, got %v", ErrInvalidCapital, cfg.InitialCapital))
	}
	b := &Backtester{cfg: cfg, rules: rules, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Strategy returns the strategy the rule set implements.
func (b *Backtester) Strategy() models.Strategy { return b.rules.Strategy() }

// Config returns the shared trading parameters.
func (b *Backtester) Config() models.TradingConfig { return b.cfg }

// Bands computes the Bollinger bands for candles with this backtester's parameters.
func (b *Backtester) Bands(candles []models.Candle) []models.BollingerBand {
	return indicators.BollingerBands(candles, b.cfg.Period, b.cfg.StdDevMultiplier, b.cfg.Offset)
}

// Run simulates the strategy over candles. bands may be nil, in which case
// they are computed from the config. Sparse or empty data yields a zero-trade result.
func (b *Backtester) Run(candles []models.Candle, bands []models.BollingerBand) *models.BacktestResult {
	if bands == nil {
		bands = b.Bands(candles)
	}
	st := newState(b.cfg, candles, bands)
	if len(bands) != len(candles) {
		b.logger.Warn("band series does not match candles, skipping run",
			zap.Int("candles", len(candles)), zap.Int("bands", len(bands)))
		return ComputeMetrics(b.Strategy(), nil, b.cfg.InitialCapital, st.Timeframe)
	}

	b.rules.Reset(st)
	start := b.rules.Warmup()
	if start < 1 {
		start = 1
	}

	for i := start; i < len(candles); i++ {
		b.rules.Update(st, i)

		if st.Open != nil {
			if ex, ok := b.rules.Exit(st, i); ok {
				b.close(st, i, ex)
			}
			continue
		}

		if st.Capital <= 0 {
			continue
		}
		if b.cfg.EnableLongPositions {
			if e, ok := b.rules.EnterLong(st, i); ok {
				b.open(st, i, models.Long, e)
				continue
			}
		}
		if b.cfg.EnableShortPositions {
			if e, ok := b.rules.EnterShort(st, i); ok {
				b.open(st, i, models.Short, e)
			}
		}
	}

	if st.Open != nil {
		last := len(candles) - 1
		b.close(st, last, Exit{Price: candles[last].Close, Reason: b.rules.DanglingReason()})
	}

	return ComputeMetrics(b.Strategy(), st.Closed, b.cfg.InitialCapital, st.Timeframe)
}

func (b *Backtester) open(st *State, i int, side models.Side, e Entry) {
	t := st.openTrade(i, side, e)
	if ce := b.logger.Check(zap.DebugLevel, "open position"); ce != nil {
		ce.Write(
			zap.Int("id", t.ID),
			zap.String("side", string(side)),
			zap.Float64("price", t.EntryPrice),
			zap.Float64("stop", t.StopLoss),
			zap.Float64("leverage", t.Leverage),
		)
	}
}

func (b *Backtester) close(st *State, i int, ex Exit) {
	t := st.closeTrade(i, ex.Price, ex.Reason)
	b.rules.Closed(st, i, t)
	if ce := b.logger.Check(zap.DebugLevel, "close position"); ce != nil {
		ce.Write(
			zap.Int("id", t.ID),
			zap.String("reason", string(t.Reason)),
			zap.Float64("price", t.ExitPrice),
			zap.Float64("pnl", t.PnL),
		)
	}
}

// ForConfig builds the backtester matching the concrete config type.
func ForConfig(cfg models.StrategyConfig, opts ...Option) (*Backtester, error) {
	if cfg == nil {
		return nil, errors.New("nil strategy config")
	}
	if c := cfg.Trading().InitialCapital; !(c > 0) {
		return nil, fmt.Errorf("%w, got %v", ErrInvalidCapital, c)
	}
	switch c := cfg.(type) {
	case models.TradingConfig:
		return NewBaseline(c, opts...), nil
	case models.DayTradingConfig:
		return NewDayTrading(c, opts...), nil
	case models.FibonacciConfig:
		return NewFibonacci(c, opts...), nil
	case models.ScalpingConfig:
		return NewScalping(c, opts...), nil
	case models.EnhancedConfig:
		return NewEnhanced(c, opts...), nil
	case models.HybridConfig:
		return NewHybrid(c, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported strategy config %T", cfg)
	}
}
