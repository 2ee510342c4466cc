package optimizer

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"bollinger-optimizer-go/internal/backtest"
	"bollinger-optimizer-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testCandles(n int, stepMs int64, seed int64) []models.Candle {
	rng := rand.New(rand.NewSource(seed))
	out := make([]models.Candle, n)
	price := 100.0
	for i := range out {
		open := price
		price = 100 + 8*math.Sin(float64(i)/15) + 3*math.Sin(float64(i)/4) + rng.NormFloat64()*0.8
		out[i] = models.Candle{
			Timestamp: int64(i) * stepMs,
			Open:      open,
			High:      math.Max(open, price) + rng.Float64()*0.5,
			Low:       math.Min(open, price) - rng.Float64()*0.5,
			Close:     price,
			Volume:    100 + rng.Float64()*200,
		}
	}
	return out
}

// pinned fixes every dimension of g to its first value except the ones in keep.
func pinned(g Grid, keep map[string][]float64) map[string][]float64 {
	out := make(map[string][]float64, len(g))
	for _, d := range g {
		out[d.Name] = d.Values[:1]
	}
	for k, v := range keep {
		out[k] = v
	}
	return out
}

// recorder collects progress records.
type recorder struct {
	sync.Mutex
	records []models.Progress
}

func (r *recorder) OnProgress(p models.Progress) {
	r.Lock()
	defer r.Unlock()
	r.records = append(r.records, p)
}

func (r *recorder) last() models.Progress {
	r.Lock()
	defer r.Unlock()
	return r.records[len(r.records)-1]
}

func assertSorted(t *testing.T, results []models.OptimizationResult) {
	t.Helper()
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score, "results out of order at %d", i)
	}
}

func TestGridEnumeratesOdometerOrder(t *testing.T) {
	g := Grid{{"a", []float64{1, 2}}, {"b", []float64{10, 20, 30}}}
	require.Equal(t, int64(6), g.Size())

	var got []string
	for p := range g.All() {
		got = append(got, g.Describe(p))
	}
	assert.Equal(t, []string{
		"a=1 b=10", "a=1 b=20", "a=1 b=30",
		"a=2 b=10", "a=2 b=20", "a=2 b=30",
	}, got)
}

func TestGridStopsEarlyAndHandlesEmptyDimension(t *testing.T) {
	g := Grid{{"a", steps(1, 100, 1)}}
	n := 0
	for range g.All() {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)

	empty := Grid{{"a", []float64{1}}, {"b", nil}}
	assert.Zero(t, empty.Size())
	for range empty.All() {
		t.Fatal("empty grid must not yield")
	}
}

func TestGridOverride(t *testing.T) {
	g := Grid{{"period", []float64{10, 20}}}
	out, err := g.Override(map[string][]float64{"period": {5}})
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, out[0].Values)
	assert.Equal(t, []float64{10, 20}, g[0].Values, "original grid must not change")

	_, err = g.Override(map[string][]float64{"nope": {1}})
	assert.True(t, errors.Is(err, ErrUnknownParameter))
}

func TestSteps(t *testing.T) {
	assert.Equal(t, []float64{5, 10, 15, 20}, steps(5, 20, 5))
	assert.Len(t, steps(2, 50, 1), 49)
}

func TestLeaderboardStaysSortedAndBounded(t *testing.T) {
	board := NewLeaderboard(10)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		board.Insert(models.OptimizationResult{Score: math.Round(rng.Float64() * 20)})
		results := board.Results()
		assert.LessOrEqual(t, len(results), 10)
		assertSorted(t, results)
	}
	assert.Equal(t, 10, board.Len())
	assert.Equal(t, board.Results()[0].Score, board.Best().Score)
}

func TestLeaderboardTiesKeepInsertionOrder(t *testing.T) {
	board := NewLeaderboard(3)
	board.Insert(models.OptimizationResult{Score: 5, Description: "first"})
	board.Insert(models.OptimizationResult{Score: 5, Description: "second"})
	board.Insert(models.OptimizationResult{Score: 7, Description: "top"})
	assert.False(t, board.Insert(models.OptimizationResult{Score: 5, Description: "third"}))

	var order []string
	for _, r := range board.Results() {
		order = append(order, r.Description)
	}
	assert.Equal(t, []string{"top", "first", "second"}, order)
	assert.Nil(t, NewLeaderboard(1).Best())
}

func TestSpecWeightsSumToOne(t *testing.T) {
	for name, w := range map[string]Weights{
		"baseline":   BaselineSpec().Weights,
		"daytrading": DayTradingSpec().Weights,
		"fibonacci":  FibonacciSpec().Weights,
		"scalping":   ScalpingSpec().Weights,
		"enhanced":   EnhancedSpec().Weights,
		"hybrid":     HybridSpec().Weights,
	} {
		assert.InDelta(t, 1.0, w.Sum(), 1e-9, name)
	}
}

func TestEveryDimensionHasASetter(t *testing.T) {
	check := func(name string, g Grid, has func(string) bool) {
		for _, d := range g {
			assert.True(t, has(d.Name), "%s: no setter for %s", name, d.Name)
			assert.NotEmpty(t, d.Values, "%s: %s", name, d.Name)
		}
	}
	for _, tf := range []backtest.Timeframe{backtest.TimeframeSeconds, backtest.TimeframeMinutes} {
		b, dt, f := BaselineSpec(), DayTradingSpec(), FibonacciSpec()
		s, e, h := ScalpingSpec(), EnhancedSpec(), HybridSpec()
		check("baseline", b.Ranges(tf), func(n string) bool { _, ok := b.Setters[n]; return ok })
		check("daytrading", dt.Ranges(tf), func(n string) bool { _, ok := dt.Setters[n]; return ok })
		check("fibonacci", f.Ranges(tf), func(n string) bool { _, ok := f.Setters[n]; return ok })
		check("scalping", s.Ranges(tf), func(n string) bool { _, ok := s.Setters[n]; return ok })
		check("enhanced", e.Ranges(tf), func(n string) bool { _, ok := e.Setters[n]; return ok })
		check("hybrid", h.Ranges(tf), func(n string) bool { _, ok := h.Setters[n]; return ok })
	}
}

func TestSecondsRegimeNarrowsRanges(t *testing.T) {
	spec := BaselineSpec()
	seconds := spec.Ranges(backtest.TimeframeSeconds)
	minutes := spec.Ranges(backtest.TimeframeMinutes)
	assert.Less(t, seconds[0].Values[len(seconds[0].Values)-1], minutes[0].Values[len(minutes[0].Values)-1])
}

func TestScoreBounds(t *testing.T) {
	w := BaselineSpec().Weights
	best := Score(w, SubScores{1, 1, 1, 1, 1, 1})
	worst := Score(w, SubScores{})
	assert.InDelta(t, 100, best, 1e-9)
	assert.Zero(t, worst)

	s := subScores(&models.BacktestResult{TotalReturn: math.NaN(), WinRate: 2, MaxDrawdown: 3}, 0, 0.5)
	assert.Zero(t, s.Drawdown)
	assert.Zero(t, s.Return)
	assert.Equal(t, 1.0, s.WinRate)
	assert.False(t, math.IsNaN(Score(w, s)))
}

func TestDayTradingPruning(t *testing.T) {
	spec := DayTradingSpec()
	base := models.DefaultDayTradingConfig()

	_, ok := spec.Apply(base, Params{"rsi_overbought": 60, "rsi_oversold": 55})
	assert.False(t, ok)
	_, ok = spec.Apply(base, Params{"macd_fast": 26, "macd_slow": 12})
	assert.False(t, ok)
	_, ok = spec.Apply(base, Params{"stop_loss_percent": 2, "take_profit_percent": 2})
	assert.False(t, ok)
	cfg, ok := spec.Apply(base, Params{"rsi_overbought": 75, "period": 14})
	assert.True(t, ok)
	assert.Equal(t, 14, cfg.Period)
	assert.Equal(t, 75.0, cfg.RSIOverbought)
	assert.Equal(t, 20, base.Period, "base config must not change")
}

func TestOptimizeCountsPrunedCombinations(t *testing.T) {
	spec := DayTradingSpec()
	candles := testCandles(600, 60_000, 3)
	ranges := pinned(spec.Ranges(backtest.TimeframeMinutes), map[string][]float64{
		"rsi_overbought": {60, 70},
		"rsi_oversold":   {55, 30},
	})

	opt := New(spec, Options{Ranges: ranges})
	_, stats, err := opt.Run(context.Background(), candles, models.DefaultDayTradingConfig(), models.Filters{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(4), stats.Current)
	assert.Equal(t, int64(1), stats.Pruned)
	assert.Equal(t, int64(3), stats.Tested)
}

func TestHybridSkipsInertDimensions(t *testing.T) {
	spec := HybridSpec()
	grid, err := spec.Grid(backtest.TimeframeMinutes, nil)
	require.NoError(t, err)
	buffers, ok := grid.First("zone_stop_buffer_percent")
	require.True(t, ok)

	base := models.DefaultHybridConfig()
	p := Params{"zone_entries": 0, "require_confluence": 1, "zone_stop_buffer_percent": 0.5}
	cfg, ok := spec.Apply(base, p)
	require.True(t, ok)
	assert.False(t, spec.canonical(cfg, p, grid), "buffer has no effect without zone entries")
	p["zone_stop_buffer_percent"] = buffers
	assert.True(t, spec.canonical(cfg, p, grid))

	ranges := pinned(spec.Ranges(backtest.TimeframeMinutes), map[string][]float64{
		"zone_entries":             {0, 1},
		"require_confluence":       {0, 1},
		"zone_stop_buffer_percent": {0.1, 0.2, 0.5},
	})
	_, stats, err := New(spec, Options{Ranges: ranges}).Run(context.Background(), testCandles(300, 60_000, 4), base, models.Filters{})
	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.Total)
	// zone_entries=1 跑全部 6 组, zone_entries=0 每种 confluence 只跑一组
	assert.Equal(t, int64(8), stats.Tested)
	assert.Equal(t, int64(4), stats.Pruned)
}

func TestOptimizeBaselineRanksAndFilters(t *testing.T) {
	spec := BaselineSpec()
	candles := testCandles(1500, 60_000, 5)
	ranges := map[string][]float64{
		"period":             {10, 20},
		"std_dev_multiplier": {1.5, 2},
		"offset":             {0, 0.5},
		"max_leverage":       {2, 10},
	}
	filters := models.Filters{
		MinimumTrades:   models.Ptr(1),
		MinimumWinRate:  models.Ptr(0.2),
		MaximumDrawdown: models.Ptr(5.0),
	}
	rec := &recorder{}
	opt := New(spec, Options{Ranges: ranges, ProgressEvery: 3, ResultCap: 5, Observer: rec, Logger: zap.NewNop()})

	results, stats, err := opt.Run(context.Background(), candles, models.DefaultTradingConfig(), filters)
	require.NoError(t, err)

	assert.Equal(t, int64(16), stats.Total)
	assert.Equal(t, stats.Total, stats.Current)
	assert.Equal(t, stats.Current, stats.Tested+stats.Pruned)
	assert.Equal(t, stats.Tested, stats.Accepted+stats.Filtered+stats.Failed)
	assert.LessOrEqual(t, len(results), 5)
	assertSorted(t, results)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.TotalTrades, 1)
		assert.GreaterOrEqual(t, r.WinRate, 0.2)
		assert.LessOrEqual(t, r.MaxDrawdown, 5.0)
		assert.Equal(t, models.StrategyBaseline, r.Strategy)
		assert.Len(t, r.Parameters, 4)
		assert.False(t, math.IsNaN(r.Score))
	}

	final := rec.last()
	assert.False(t, final.IsRunning)
	assert.Equal(t, final.Total, final.Current)
	assert.Equal(t, results, final.Results)
	require.Greater(t, len(rec.records), 1)
	assert.True(t, rec.records[0].IsRunning)
	assert.Equal(t, int64(3), rec.records[0].Current)
}

func TestOptimizeRecoversFromPanickingCombination(t *testing.T) {
	spec := BaselineSpec()
	spec.New = func(cfg models.TradingConfig, opts ...backtest.Option) *backtest.Backtester {
		if cfg.Period == 10 {
			panic("degenerate config")
		}
		return backtest.NewBaseline(cfg, opts...)
	}
	ranges := pinned(spec.Ranges(backtest.TimeframeMinutes), map[string][]float64{"period": {10, 20}})

	_, stats, err := New(spec, Options{Ranges: ranges}).Run(context.Background(), testCandles(300, 60_000, 9), models.DefaultTradingConfig(), models.Filters{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(2), stats.Tested)
}

func TestOptimizeCancellation(t *testing.T) {
	spec := BaselineSpec()
	candles := testCandles(300, 60_000, 11)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := New(spec, Options{}).Optimize(ctx, candles, models.DefaultTradingConfig(), models.Filters{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	rec := &recorder{}
	stop := ObserverFunc(func(p models.Progress) {
		rec.OnProgress(p)
		cancel()
	})
	_, stats, err := New(spec, Options{ProgressEvery: 1, Observer: stop}).Run(ctx, candles, models.DefaultTradingConfig(), models.Filters{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(1), stats.Current)
	assert.Less(t, stats.Current, stats.Total)
	assert.False(t, rec.last().IsRunning)
}

func TestOptimizeUnknownRange(t *testing.T) {
	_, err := New(BaselineSpec(), Options{Ranges: map[string][]float64{"rsi_period": {14}}}).
		Optimize(context.Background(), testCandles(50, 60_000, 1), models.DefaultTradingConfig(), models.Filters{})
	assert.ErrorIs(t, err, ErrUnknownParameter)
}

func TestOptimizeRejectsInvalidSpec(t *testing.T) {
	noCapital := models.DefaultTradingConfig()
	noCapital.InitialCapital = 0

	noNew := BaselineSpec()
	noNew.New = nil
	noRanges := BaselineSpec()
	noRanges.Ranges = nil

	tests := []struct {
		name string
		spec Spec[models.TradingConfig]
		base models.TradingConfig
	}{
		{"nil constructor", noNew, models.DefaultTradingConfig()},
		{"nil ranges", noRanges, models.DefaultTradingConfig()},
		{"zero capital", BaselineSpec(), noCapital},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			_, stats, err := New(tt.spec, Options{Observer: rec}).
				Run(context.Background(), testCandles(100, 60_000, 1), tt.base, models.Filters{})
			assert.ErrorIs(t, err, ErrInvalidSpec)
			assert.Zero(t, stats.Tested)
			assert.Empty(t, rec.records, "no progress before validation passes")
		})
	}
}

func TestEta(t *testing.T) {
	assert.Equal(t, "calculating...", eta(0, 10, 0, true))
	assert.Equal(t, "9s", eta(1, 10, 1e9, true))
	assert.Equal(t, "0s", eta(10, 10, 1e9, false))
}
