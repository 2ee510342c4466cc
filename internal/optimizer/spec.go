package optimizer

import (
	"fmt"

	"bollinger-optimizer-go/internal/backtest"
	"bollinger-optimizer-go/internal/models"
)

// Setter writes one parameter value into a config.
type Setter[C models.StrategyConfig] func(cfg *C, v float64)

// Spec describes how to optimize one strategy: its parameter grid, how a
// grid point maps onto a config, which configs are structurally invalid,
// and how results are scored.
type Spec[C models.StrategyConfig] struct {
	Strategy models.Strategy
	// Ranges returns the default grid; seconds data gets narrower ranges.
	Ranges  func(tf backtest.Timeframe) Grid
	Setters map[string]Setter[C]
	// Valid prunes combinations before any backtest runs. nil accepts all.
	Valid func(cfg C) bool
	// Inert names the dimensions that have no effect on cfg. Combinations
	// that differ only in those are run once, at the dimension's first value.
	Inert              func(cfg C) []string
	New                func(cfg C, opts ...backtest.Option) *backtest.Backtester
	Weights            Weights
	TargetTradesPerDay float64
	// Bonus is the strategy-specific sub-score in [0,1].
	Bonus func(cfg C, r *models.BacktestResult) float64
}

// Apply builds the config for one grid point. ok is false when the
// combination is structurally invalid and must be skipped.
func (s Spec[C]) Apply(base C, p Params) (cfg C, ok bool) {
	cfg = base
	for name, v := range p {
		if set, found := s.Setters[name]; found {
			set(&cfg, v)
		}
	}
	if s.Valid != nil && !s.Valid(cfg) {
		return cfg, false
	}
	return cfg, true
}

// Grid returns the grid for tf with overrides applied.
func (s Spec[C]) Grid(tf backtest.Timeframe, overrides map[string][]float64) (Grid, error) {
	return s.Ranges(tf).Override(overrides)
}

// canonical reports whether every inert dimension of cfg sits at its first grid value.
func (s Spec[C]) canonical(cfg C, p Params, g Grid) bool {
	if s.Inert == nil {
		return true
	}
	for _, name := range s.Inert(cfg) {
		if first, ok := g.First(name); ok && p[name] != first {
			return false
		}
	}
	return true
}

// validate rejects a spec that would fail every combination.
func (s Spec[C]) validate(base C) error {
	switch {
	case s.New == nil:
		return fmt.Errorf("%w: %s has no backtester constructor", ErrInvalidSpec, s.Strategy)
	case s.Ranges == nil:
		return fmt.Errorf("%w: %s has no parameter ranges", ErrInvalidSpec, s.Strategy)
	}
	if c := base.Trading().InitialCapital; !(c > 0) {
		return fmt.Errorf("%w: initial capital must be positive, got %v", ErrInvalidSpec, c)
	}
	return nil
}

func (s Spec[C]) bonus(cfg C, r *models.BacktestResult) float64 {
	if s.Bonus == nil {
		return 0.5
	}
	return s.Bonus(cfg, r)
}

// tradingSetters exposes the shared band and leverage parameters of any config.
func tradingSetters[C models.StrategyConfig](get func(*C) *models.TradingConfig) map[string]Setter[C] {
	return map[string]Setter[C]{
		"period":             func(c *C, v float64) { get(c).Period = int(v) },
		"std_dev_multiplier": func(c *C, v float64) { get(c).StdDevMultiplier = v },
		"offset":             func(c *C, v float64) { get(c).Offset = v },
		"max_leverage":       func(c *C, v float64) { get(c).MaxLeverage = v },
	}
}

func fibonacciSetters[C models.StrategyConfig](set map[string]Setter[C], get func(*C) *models.FibonacciParams) {
	set["swing_lookback"] = func(c *C, v float64) { get(c).SwingLookback = int(v) }
	set["min_swing_size_percent"] = func(c *C, v float64) { get(c).MinSwingSizePercent = v }
	set["golden_zone_low"] = func(c *C, v float64) { get(c).GoldenZoneLow = v }
	set["golden_zone_high"] = func(c *C, v float64) { get(c).GoldenZoneHigh = v }
	set["retracement_expiry_bars"] = func(c *C, v float64) { get(c).RetracementExpiryBars = int(v) }
}

func flag(v float64) bool { return v != 0 }
