package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"bollinger-optimizer-go/internal/backtest"
	"bollinger-optimizer-go/internal/config"
	"bollinger-optimizer-go/internal/downloader"
	"bollinger-optimizer-go/internal/models"
	"bollinger-optimizer-go/internal/optimizer"
	"bollinger-optimizer-go/internal/persistence"
	"bollinger-optimizer-go/internal/progress"
	"bollinger-optimizer-go/internal/reporter"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	modeBacktest = "backtest"
	modeOptimize = "optimize"
	modeMulti    = "multi"
	modeRuns     = "runs"

	progressLogInterval = 2 * time.Second
)

var errRunNotFound = errors.New("run not found")

type candleLoader interface {
	Download(ctx context.Context, symbol, interval string, start, end time.Time) ([]models.Candle, error)
}

type app struct {
	cfg        *models.Config
	repo       persistence.Repository
	downloader candleLoader
	log        *zap.Logger
	out        io.Writer

	mode     string
	runID    string
	dataPath string
	trades   int
}

func (a *app) run(ctx context.Context) error {
	switch a.mode {
	case modeRuns:
		return a.showRuns()
	case modeBacktest, modeOptimize, modeMulti:
		return dispatch(ctx, a)
	default:
		return fmt.Errorf("未知的运行模式: %s。请选择 backtest, optimize, multi 或 runs。", a.mode)
	}
}

// dispatch binds the configured strategy to its concrete config type.
func dispatch(ctx context.Context, a *app) error {
	switch a.cfg.Strategy {
	case models.StrategyBaseline:
		return execute(ctx, a, optimizer.BaselineSpec(), a.cfg.Baseline)
	case models.StrategyDayTrading:
		return execute(ctx, a, optimizer.DayTradingSpec(), a.cfg.DayTrading)
	case models.StrategyFibonacci:
		return execute(ctx, a, optimizer.FibonacciSpec(), a.cfg.Fibonacci)
	case models.StrategyScalping:
		return execute(ctx, a, optimizer.ScalpingSpec(), a.cfg.Scalping)
	case models.StrategyEnhanced:
		return execute(ctx, a, optimizer.EnhancedSpec(), a.cfg.Enhanced)
	case models.StrategyHybrid:
		return execute(ctx, a, optimizer.HybridSpec(), a.cfg.Hybrid)
	default:
		return fmt.Errorf("%w: unknown strategy %q", config.ErrInvalidConfig, a.cfg.Strategy)
	}
}

func execute[C models.StrategyConfig](ctx context.Context, a *app, spec optimizer.Spec[C], base C) error {
	switch a.mode {
	case modeBacktest:
		ds, err := a.loadDataset(ctx, a.cfg.Dataset)
		if err != nil {
			return err
		}
		result := spec.New(base, backtest.WithLogger(a.log)).Run(ds.Candles, nil)
		reporter.BacktestReport(a.out, ds.Name, result)
		if a.trades > 0 {
			reporter.Trades(a.out, result.Trades, a.trades)
		}
		return nil

	case modeOptimize:
		ds, err := a.loadDataset(ctx, a.cfg.Dataset)
		if err != nil {
			return err
		}
		mgr := a.startRun(spec.Strategy, []string{ds.Name})
		opts := a.options(mgr)
		opts.Dataset, opts.Timeframe = ds.Name, ds.Timeframe

		started := time.Now()
		results, stats, err := optimizer.New(spec, opts).Run(ctx, ds.Candles, base, a.cfg.Filters)
		mgr.Finish(runStatus(err), results, stats)

		reporter.Leaderboard(a.out, fmt.Sprintf("%s · %s · run %s", spec.Strategy, ds.Name, mgr.Run().ID), results, a.cfg.Optimizer.TopN)
		reporter.Stats(a.out, stats, time.Since(started))
		return err

	case modeMulti:
		datasets, err := a.loadDatasets(ctx)
		if err != nil {
			return err
		}
		names := make([]string, len(datasets))
		for i, ds := range datasets {
			names[i] = ds.Name
		}
		mgr := a.startRun(spec.Strategy, names)

		started := time.Now()
		out, err := optimizer.NewMulti(spec, a.options(mgr), a.cfg.Optimizer.GlobalResultCap).
			Optimize(ctx, datasets, base, a.cfg.Filters)
		if out == nil {
			mgr.Finish(models.RunFailed, nil, models.OptimizationStats{})
			return err
		}
		stats := sumStats(out.Stats)
		mgr.Finish(runStatus(err), out.Global, stats)

		for _, name := range names {
			if results, ok := out.PerDataset[name]; ok {
				reporter.Leaderboard(a.out, fmt.Sprintf("%s · %s", spec.Strategy, name), results, a.cfg.Optimizer.TopN)
			}
		}
		reporter.Leaderboard(a.out, fmt.Sprintf("%s · 全局排名 · run %s", spec.Strategy, mgr.Run().ID), out.Global, a.cfg.Optimizer.TopN)
		reporter.Stats(a.out, stats, time.Since(started))
		return err
	}
	return nil
}

func (a *app) startRun(strategy models.Strategy, datasets []string) *progress.Manager {
	run := &models.OptimizationRun{
		ID:       persistence.NewRunID(),
		Strategy: strategy,
		Datasets: datasets,
		Filters:  a.cfg.Filters,
	}
	mgr := progress.NewManager(run, a.repo, a.log)
	mgr.Start()
	a.log.Info("optimization run created", zap.String("run_id", run.ID), zap.Strings("datasets", datasets))
	return mgr
}

func (a *app) options(mgr *progress.Manager) optimizer.Options {
	s := a.cfg.Optimizer
	return optimizer.Options{
		ResultCap:     s.ResultCap,
		ProgressEvery: s.ProgressEvery,
		YieldEvery:    s.YieldEvery,
		Ranges:        s.Ranges,
		Observer:      progressObserver(mgr, a.log),
		Logger:        a.log,
		RunID:         mgr.Run().ID,
	}
}

// progressObserver forwards every record to the manager and logs a progress line at most every few seconds.
func progressObserver(mgr *progress.Manager, log *zap.Logger) optimizer.Observer {
	var last time.Time
	return optimizer.ObserverFunc(func(p models.Progress) {
		mgr.OnProgress(p)
		if p.IsRunning && time.Since(last) < progressLogInterval {
			return
		}
		last = time.Now()
		log.Info(reporter.ProgressLine(p))
	})
}

func runStatus(err error) models.RunStatus {
	switch {
	case err == nil:
		return models.RunCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return models.RunCancelled
	default:
		return models.RunFailed
	}
}

func sumStats(per map[string]models.OptimizationStats) models.OptimizationStats {
	var total models.OptimizationStats
	for _, s := range per {
		total.Total += s.Total
		total.Current += s.Current
		total.Tested += s.Tested
		total.Pruned += s.Pruned
		total.Filtered += s.Filtered
		total.Failed += s.Failed
		total.Accepted += s.Accepted
	}
	return total
}

// loadDataset reads the local CSV when -data is given, otherwise downloads (or loads from cache).
func (a *app) loadDataset(ctx context.Context, dc models.DatasetConfig) (models.Dataset, error) {
	if a.dataPath != "" {
		candles, err := downloader.LoadCSV(a.dataPath)
		if err != nil {
			return models.Dataset{}, err
		}
		name := strings.TrimSuffix(filepath.Base(a.dataPath), filepath.Ext(a.dataPath))
		tf := dc.Interval
		if tf == "" {
			tf = backtest.DetectTimeframe(candles).String()
		}
		return models.Dataset{Name: name, Symbol: dc.Symbol, Timeframe: tf, Candles: candles}, nil
	}

	if dc.Start == "" || dc.End == "" {
		return models.Dataset{}, fmt.Errorf("%w: dataset %s needs -start and -end, or -data", config.ErrInvalidConfig, dc.Symbol)
	}
	start, end, err := config.DatasetRange(dc)
	if err != nil {
		return models.Dataset{}, err
	}
	candles, err := a.downloader.Download(ctx, dc.Symbol, dc.Interval, start, end)
	if err != nil {
		return models.Dataset{}, err
	}
	return models.Dataset{
		Name:      dc.Symbol + "_" + dc.Interval,
		Symbol:    dc.Symbol,
		Timeframe: dc.Interval,
		Candles:   candles,
	}, nil
}

// loadDatasets downloads every configured dataset concurrently.
func (a *app) loadDatasets(ctx context.Context) ([]models.Dataset, error) {
	configs := a.cfg.Datasets
	if len(configs) == 0 {
		configs = []models.DatasetConfig{a.cfg.Dataset}
	}
	if a.dataPath != "" {
		configs = configs[:1]
	}

	datasets := make([]models.Dataset, len(configs))
	g, ctx := errgroup.WithContext(ctx)
	for i, dc := range configs {
		g.Go(func() error {
			ds, err := a.loadDataset(ctx, dc)
			if err != nil {
				return fmt.Errorf("dataset %s_%s: %w", dc.Symbol, dc.Interval, err)
			}
			datasets[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return datasets, nil
}

func (a *app) showRuns() error {
	if a.runID == "" {
		runs, err := a.repo.ListRuns()
		if err != nil {
			return err
		}
		reporter.Runs(a.out, runs)
		return nil
	}

	run, err := a.repo.LoadRun(a.runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: %s", errRunNotFound, a.runID)
	}
	reporter.Runs(a.out, []*models.OptimizationRun{run})
	reporter.Leaderboard(a.out, fmt.Sprintf("%s · run %s", run.Strategy, run.ID), run.Results, a.cfg.Optimizer.TopN)
	reporter.Stats(a.out, run.Stats, run.FinishedAt.Sub(run.StartedAt))
	return nil
}
