package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"bollinger-optimizer-go/internal/config"
	"bollinger-optimizer-go/internal/downloader"
	"bollinger-optimizer-go/internal/logger"
	"bollinger-optimizer-go/internal/models"
	"bollinger-optimizer-go/internal/persistence"

	"github.com/joho/godotenv"
)

func main() {
	// --- 命令行参数定义 ---
	configPath := flag.String("config", "config.json", "path to the config file")
	mode := flag.String("mode", modeBacktest, "running mode: backtest, optimize, multi or runs")
	strategy := flag.String("strategy", "", "strategy to run, overrides the config file")
	dataPath := flag.String("data", "", "local kline CSV file, skips downloading")
	symbol := flag.String("symbol", "", "symbol to download (e.g., BTCUSDT)")
	interval := flag.String("interval", "", "kline interval (e.g., 1s, 1m, 1h)")
	startDate := flag.String("start", "", "start date (YYYY-MM-DD)")
	endDate := flag.String("end", "", "end date (YYYY-MM-DD)")
	runID := flag.String("run", "", "with -mode runs, show the leaderboard of this run")
	trades := flag.Int("trades", 0, "with -mode backtest, print the first N trades")
	flag.Parse()

	// 为了在加载.env或配置时就能记录日志, 先使用默认配置初始化
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	// --- 加载 .env 文件 ---
	if err := godotenv.Load(); err != nil {
		logger.S().Info("未找到 .env 文件，将从系统环境变量中读取。")
	} else {
		logger.S().Info("成功从 .env 文件加载配置。")
	}

	// --- 加载 JSON 配置 ---
	cfg, err := config.LoadConfig(*configPath)
	if errors.Is(err, os.ErrNotExist) && !isFlagSet("config") {
		logger.S().Infof("配置文件 %s 不存在, 使用默认配置。", *configPath)
		cfg, err = config.LoadConfig("")
	}
	if err != nil {
		logger.S().Fatalf("无法加载配置文件: %v", err)
	}

	// --- 命令行参数覆盖配置 ---
	if *strategy != "" {
		cfg.Strategy = models.Strategy(*strategy)
	}
	overrideString(&cfg.Dataset.Symbol, *symbol)
	overrideString(&cfg.Dataset.Interval, *interval)
	overrideString(&cfg.Dataset.Start, *startDate)
	overrideString(&cfg.Dataset.End, *endDate)
	if err := config.Validate(cfg); err != nil {
		logger.S().Fatal(err)
	}

	// --- 使用文件中的配置重新初始化日志 ---
	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync() // 确保在main函数退出时刷新所有缓冲的日志

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.S().Fatalf("创建数据目录失败: %v", err)
		}
	}
	repo, err := persistence.NewBadgerRepository(cfg.DBPath)
	if err != nil {
		logger.S().Fatalf("无法打开数据库 %s: %v", cfg.DBPath, err)
	}
	defer repo.Close()

	// Ctrl+C 取消优化, 已得到的结果仍会输出并保存
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		cfg:      cfg,
		repo:     repo,
		log:      logger.L(),
		out:      os.Stdout,
		mode:     *mode,
		runID:    *runID,
		dataPath: *dataPath,
		trades:   *trades,
		downloader: downloader.NewKlineDownloader(
			downloader.WithCache(repo),
			downloader.WithLogger(logger.L()),
		),
	}
	if err := a.run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.S().Warn("任务已取消, 已输出部分结果。")
			return
		}
		logger.S().Errorf("运行失败: %v", err)
		stop()
		repo.Close()
		logger.S().Sync()
		os.Exit(1)
	}
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
