package optimizer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"bollinger-optimizer-go/internal/backtest"
	"bollinger-optimizer-go/internal/indicators"
	"bollinger-optimizer-go/internal/models"

	"go.uber.org/zap"
)

const (
	DefaultResultCap       = 500
	DefaultGlobalResultCap = 1000
	DefaultProgressEvery   = 100
	DefaultYieldEvery      = 50
)

var (
	// ErrUnknownParameter is returned when a range override names no dimension of the grid.
	ErrUnknownParameter = errors.New("unknown optimization parameter")
	// ErrNoDatasets is returned by the multi-dataset optimizer when it has nothing to run.
	ErrNoDatasets = errors.New("no datasets to optimize")
	// ErrInvalidSpec is returned before any combination runs when the spec or
	// the base config cannot produce a meaningful backtest.
	ErrInvalidSpec = errors.New("invalid optimization spec")
)

// Observer receives progress snapshots. Calls happen on the optimizing goroutine.
type Observer interface {
	OnProgress(p models.Progress)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(p models.Progress)

func (f ObserverFunc) OnProgress(p models.Progress) { f(p) }

// Options tune one optimization run.
type Options struct {
	ResultCap     int
	ProgressEvery int
	YieldEvery    int
	// Ranges replaces the values of the named grid dimensions.
	Ranges map[string][]float64
	// Weights replaces the strategy weights; they are normalized before use.
	Weights  *Weights
	Observer Observer
	Logger   *zap.Logger

	RunID     string
	Dataset   string
	Timeframe string
}

func (o Options) withDefaults() Options {
	if o.ResultCap <= 0 {
		o.ResultCap = DefaultResultCap
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = DefaultProgressEvery
	}
	if o.YieldEvery <= 0 {
		o.YieldEvery = DefaultYieldEvery
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Optimizer runs a grid search for one strategy. It is single-threaded: the
// loop yields the processor periodically and checks ctx before every combination.
type Optimizer[C models.StrategyConfig] struct {
	spec Spec[C]
	opts Options
}

// New creates an optimizer for spec.
func New[C models.StrategyConfig](spec Spec[C], opts Options) *Optimizer[C] {
	return &Optimizer[C]{spec: spec, opts: opts.withDefaults()}
}

// Grid returns the parameter grid used for candles.
func (o *Optimizer[C]) Grid(candles []models.Candle) (Grid, error) {
	return o.spec.Grid(backtest.DetectTimeframe(candles), o.opts.Ranges)
}

func (o *Optimizer[C]) weights() Weights {
	if o.opts.Weights != nil {
		return o.opts.Weights.Normalize()
	}
	return o.spec.Weights.Normalize()
}

// Optimize backtests every valid combination of the grid over candles and
// returns the ranked results. On cancellation it returns the results ranked
// so far together with ctx.Err().
func (o *Optimizer[C]) Optimize(ctx context.Context, candles []models.Candle, base C, filters models.Filters) ([]models.OptimizationResult, error) {
	res, _, err := o.Run(ctx, candles, base, filters)
	return res, err
}

// Run is Optimize that also reports the final counters.
func (o *Optimizer[C]) Run(ctx context.Context, candles []models.Candle, base C, filters models.Filters) ([]models.OptimizationResult, models.OptimizationStats, error) {
	log := o.opts.Logger.With(zap.String("strategy", string(o.spec.Strategy)))
	if o.opts.Dataset != "" {
		log = log.With(zap.String("dataset", o.opts.Dataset))
	}

	if err := o.spec.validate(base); err != nil {
		return nil, models.OptimizationStats{}, err
	}
	grid, err := o.Grid(candles)
	if err != nil {
		return nil, models.OptimizationStats{}, err
	}

	var (
		board   = NewLeaderboard(o.opts.ResultCap)
		weights = o.weights()
		stats   = models.OptimizationStats{Total: grid.Size()}
		cache   bandCache
		started = time.Now()
		desc    string
	)
	log.Info("optimization started", zap.Int64("combinations", stats.Total), zap.Int("candles", len(candles)))

	report := func(running bool) {
		if o.opts.Observer == nil {
			return
		}
		elapsed := time.Since(started)
		o.opts.Observer.OnProgress(models.Progress{
			RunID:                  o.opts.RunID,
			Dataset:                o.opts.Dataset,
			Current:                stats.Current,
			Total:                  stats.Total,
			CurrentConfig:          desc,
			IsRunning:              running,
			Results:                board.Results(),
			BestResult:             board.Best(),
			EstimatedTimeRemaining: eta(stats.Current, stats.Total, elapsed, running),
			Elapsed:                elapsed,
			Stats:                  stats,
		})
	}

	for params := range grid.All() {
		if err := ctx.Err(); err != nil {
			break
		}
		stats.Current++
		desc = grid.Describe(params)

		cfg, ok := o.spec.Apply(base, params)
		if !ok || !o.spec.canonical(cfg, params, grid) {
			stats.Pruned++
		} else {
			stats.Tested++
			res, err := o.evaluate(cfg, candles, &cache)
			switch {
			case err != nil:
				stats.Failed++
				log.Warn("combination failed", zap.String("params", desc), zap.Error(err))
			case !filters.Pass(res):
				stats.Filtered++
			default:
				stats.Accepted++
				board.Insert(o.result(cfg, params, desc, res, weights))
			}
		}

		if stats.Current%int64(o.opts.ProgressEvery) == 0 {
			report(true)
		}
		if stats.Current%int64(o.opts.YieldEvery) == 0 {
			runtime.Gosched()
		}
	}

	desc = ""
	report(false)

	results := board.Results()
	if err := ctx.Err(); err != nil {
		log.Warn("optimization cancelled", zap.Int64("current", stats.Current), zap.Int64("total", stats.Total))
		return results, stats, err
	}
	log.Info("optimization finished",
		zap.Int64("tested", stats.Tested),
		zap.Int64("pruned", stats.Pruned),
		zap.Int64("filtered", stats.Filtered),
		zap.Int64("failed", stats.Failed),
		zap.Int("kept", len(results)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return results, stats, nil
}

// evaluate runs one backtest. A panic inside the strategy only fails this combination.
func (o *Optimizer[C]) evaluate(cfg C, candles []models.Candle, cache *bandCache) (res *models.BacktestResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backtest panicked: %v", r)
		}
	}()
	bt := o.spec.New(cfg, backtest.WithLogger(o.opts.Logger))
	return bt.Run(candles, cache.get(candles, cfg.Trading())), nil
}

func (o *Optimizer[C]) result(cfg C, params Params, desc string, r *models.BacktestResult, w Weights) models.OptimizationResult {
	score := Score(w, subScores(r, o.spec.TargetTradesPerDay, o.spec.bonus(cfg, r)))
	tf := o.opts.Timeframe
	if tf == "" {
		tf = r.Timeframe
	}
	return models.OptimizationResult{
		Strategy:            o.spec.Strategy,
		Dataset:             o.opts.Dataset,
		Timeframe:           tf,
		Parameters:          params,
		Description:         desc,
		TotalTrades:         r.TotalTrades,
		WinningTrades:       r.WinningTrades,
		WinRate:             r.WinRate,
		TotalPnL:            r.TotalPnL,
		TotalReturn:         r.TotalReturn,
		MaxDrawdown:         r.MaxDrawdown,
		SharpeRatio:         r.SharpeRatio,
		ProfitFactor:        r.ProfitFactor,
		TradingPeriodDays:   r.TradingPeriodDays,
		AverageTradesPerDay: r.AverageTradesPerDay,
		Score:               score,
	}
}

// eta extrapolates the elapsed time per combination over what is left.
func eta(current, total int64, elapsed time.Duration, running bool) string {
	if !running {
		return "0s"
	}
	if current <= 0 {
		return "calculating..."
	}
	remaining := time.Duration(float64(total-current) * float64(elapsed) / float64(current))
	return remaining.Round(time.Second).String()
}

type bandKey struct {
	period int
	std    float64
	offset float64
}

// bandCache keeps the bands of the last parameter set. Band parameters sit in
// the outer grid dimensions, so consecutive combinations mostly share them.
type bandCache struct {
	key   bandKey
	bands []models.BollingerBand
}

func (c *bandCache) get(candles []models.Candle, cfg models.TradingConfig) []models.BollingerBand {
	key := bandKey{period: cfg.Period, std: cfg.StdDevMultiplier, offset: cfg.Offset}
	if c.bands == nil || c.key != key {
		c.key = key
		c.bands = indicators.BollingerBands(candles, cfg.Period, cfg.StdDevMultiplier, cfg.Offset)
	}
	return c.bands
}
