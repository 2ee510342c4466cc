package optimizer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bollinger-optimizer-go/internal/backtest"
	"bollinger-optimizer-go/internal/models"

	"go.uber.org/zap"
)

// MultiResult holds the per-dataset leaderboards and the merged global one.
type MultiResult struct {
	PerDataset map[string][]models.OptimizationResult
	Global     []models.OptimizationResult
	Stats      map[string]models.OptimizationStats
}

// MultiOptimizer runs the same strategy grid over several datasets one after
// another and merges the results into a global leaderboard.
type MultiOptimizer[C models.StrategyConfig] struct {
	spec      Spec[C]
	opts      Options
	globalCap int
}

// NewMulti creates a multi-dataset optimizer. globalCap bounds the merged leaderboard.
func NewMulti[C models.StrategyConfig](spec Spec[C], opts Options, globalCap int) *MultiOptimizer[C] {
	if globalCap <= 0 {
		globalCap = DefaultGlobalResultCap
	}
	return &MultiOptimizer[C]{spec: spec, opts: opts.withDefaults(), globalCap: globalCap}
}

// Optimize processes datasets sequentially. Progress counts are reported
// against the combined size of all grids. On cancellation the results of the
// datasets finished so far are returned with ctx.Err().
func (m *MultiOptimizer[C]) Optimize(ctx context.Context, datasets []models.Dataset, base C, filters models.Filters) (*MultiResult, error) {
	if len(datasets) == 0 {
		return nil, ErrNoDatasets
	}
	if err := m.spec.validate(base); err != nil {
		return nil, err
	}

	sizes := make([]int64, len(datasets))
	var total int64
	for i, ds := range datasets {
		grid, err := m.spec.Grid(backtest.DetectTimeframe(ds.Candles), m.opts.Ranges)
		if err != nil {
			return nil, err
		}
		sizes[i] = grid.Size()
		total += sizes[i]
	}

	out := &MultiResult{
		PerDataset: make(map[string][]models.OptimizationResult, len(datasets)),
		Stats:      make(map[string]models.OptimizationStats, len(datasets)),
	}
	global := NewLeaderboard(m.globalCap)
	var offset int64

	for i, ds := range datasets {
		name := datasetName(ds)
		log := m.opts.Logger.With(zap.String("dataset", name), zap.String("timeframe", ds.Timeframe))
		if len(ds.Candles) == 0 {
			log.Warn("dataset has no candles, skipping")
			offset += sizes[i]
			continue
		}

		opts := m.opts
		opts.Dataset = name
		opts.Timeframe = ds.Timeframe
		w := m.spec.Weights
		if m.opts.Weights != nil {
			w = *m.opts.Weights
		}
		adjusted := AdjustWeights(w, ds.Timeframe)
		opts.Weights = &adjusted
		opts.Observer = m.offsetObserver(offset, total, global)

		results, stats, err := New(m.spec, opts).Run(ctx, ds.Candles, base, filters)
		out.PerDataset[name] = results
		out.Stats[name] = stats
		for _, r := range results {
			global.Insert(r)
		}
		if err != nil {
			offset += stats.Current
			out.Global = global.Results()
			m.finish(out, global, offset, total)
			return out, err
		}
		offset += sizes[i]
	}

	out.Global = global.Results()
	m.finish(out, global, offset, total)
	return out, nil
}

// finish sends the closing progress record with IsRunning=false.
func (m *MultiOptimizer[C]) finish(out *MultiResult, global *Leaderboard, current, total int64) {
	if m.opts.Observer == nil {
		return
	}
	m.opts.Observer.OnProgress(models.Progress{
		RunID:                  m.opts.RunID,
		Current:                current,
		Total:                  total,
		Results:                out.Global,
		BestResult:             global.Best(),
		EstimatedTimeRemaining: "0s",
		Stats:                  models.OptimizationStats{Total: total, Current: current},
	})
}

// offsetObserver shifts per-dataset progress into the combined range. The
// per-dataset closing records stay marked as running; finish ends the run.
func (m *MultiOptimizer[C]) offsetObserver(offset, total int64, global *Leaderboard) Observer {
	if m.opts.Observer == nil {
		return nil
	}
	return ObserverFunc(func(p models.Progress) {
		p.Current += offset
		p.Total = total
		p.IsRunning = true
		if best := global.Best(); best != nil && (p.BestResult == nil || best.Score > p.BestResult.Score) {
			p.BestResult = best
		}
		m.opts.Observer.OnProgress(p)
	})
}

func datasetName(ds models.Dataset) string {
	if ds.Name != "" {
		return ds.Name
	}
	return ds.Symbol + "_" + ds.Timeframe
}

const (
	shortTimeframe = 5 * time.Minute
	longTimeframe  = 4 * time.Hour
)

// AdjustWeights shifts the weights by timeframe: short bars favor win rate and
// trade frequency, long bars favor return and Sharpe. Unparseable or medium
// timeframes keep the weights. The result is normalized.
func AdjustWeights(w Weights, timeframe string) Weights {
	d, err := ParseTimeframe(timeframe)
	if err != nil {
		return w.Normalize()
	}
	switch {
	case d <= shortTimeframe:
		w.WinRate *= 1.3
		w.Frequency *= 1.5
		w.Return *= 0.8
		w.Sharpe *= 0.9
	case d >= longTimeframe:
		w.Return *= 1.3
		w.Sharpe *= 1.3
		w.WinRate *= 0.9
		w.Frequency *= 0.6
	}
	return w.Normalize()
}

// ParseTimeframe parses exchange-style intervals such as "1s", "15m", "4h", "1d", "1w" and "1M".
func ParseTimeframe(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid timeframe %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", s)
	}
	var unit time.Duration
	switch s[len(s)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	case 'M':
		unit = 30 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid timeframe %q", s)
	}
	return time.Duration(n) * unit, nil
}
