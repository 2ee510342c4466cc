package models

import "time"

// BacktestResult is derived once from the closed trade list of a run.
type BacktestResult struct {
	Strategy            Strategy           `json:"strategy"`
	Timeframe           string             `json:"timeframe"`
	Trades              []Trade            `json:"trades"`
	TotalTrades         int                `json:"total_trades"`
	WinningTrades       int                `json:"winning_trades"`
	LosingTrades        int                `json:"losing_trades"`
	LongTrades          int                `json:"long_trades"`
	ShortTrades         int                `json:"short_trades"`
	WinRate             float64            `json:"win_rate"` // 0-1
	TotalPnL            float64            `json:"total_pnl"`
	TotalReturn         float64            `json:"total_return"` // TotalPnL / InitialCapital
	InitialCapital      float64            `json:"initial_capital"`
	FinalCapital        float64            `json:"final_capital"`
	MaxDrawdown         float64            `json:"max_drawdown"` // 0-1 (可超过1, 不模拟爆仓)
	SharpeRatio         float64            `json:"sharpe_ratio"`
	ProfitFactor        float64            `json:"profit_factor"`
	AverageWin          float64            `json:"average_win"`
	AverageLoss         float64            `json:"average_loss"`
	LargestWin          float64            `json:"largest_win"`
	LargestLoss         float64            `json:"largest_loss"`
	TradingPeriodDays   float64            `json:"trading_period_days"`
	AverageTradesPerDay float64            `json:"average_trades_per_day"` // 0 表示周期为0, 未定义
	ExitReasons         map[ExitReason]int `json:"exit_reasons"`
}

// OptimizationResult is one scored parameter combination that passed the filters.
type OptimizationResult struct {
	Strategy            Strategy           `json:"strategy"`
	Dataset             string             `json:"dataset,omitempty"`
	Timeframe           string             `json:"timeframe,omitempty"`
	Parameters          map[string]float64 `json:"parameters"`
	Description         string             `json:"description"`
	TotalTrades         int                `json:"total_trades"`
	WinningTrades       int                `json:"winning_trades"`
	WinRate             float64            `json:"win_rate"`
	TotalPnL            float64            `json:"total_pnl"`
	TotalReturn         float64            `json:"total_return"`
	MaxDrawdown         float64            `json:"max_drawdown"`
	SharpeRatio         float64            `json:"sharpe_ratio"`
	ProfitFactor        float64            `json:"profit_factor"`
	TradingPeriodDays   float64            `json:"trading_period_days"`
	AverageTradesPerDay float64            `json:"average_trades_per_day"`
	Score               float64            `json:"score"`
}

// Filters are post-hoc constraints on a backtest result. A nil field is inactive.
type Filters struct {
	MinimumTradingPeriodDays *float64 `json:"minimum_trading_period_days,omitempty"`
	MinimumTrades            *int     `json:"minimum_trades,omitempty"`
	MinimumWinRate           *float64 `json:"minimum_win_rate,omitempty"` // 0-1
	MaximumDrawdown          *float64 `json:"maximum_drawdown,omitempty"` // 0-1
	MinimumReturn            *float64 `json:"minimum_return,omitempty"`   // TotalReturn 比例
}

// Pass reports whether r satisfies every active filter.
func (f Filters) Pass(r *BacktestResult) bool {
	if f.MinimumTradingPeriodDays != nil && r.TradingPeriodDays < *f.MinimumTradingPeriodDays {
		return false
	}
	if f.MinimumTrades != nil && r.TotalTrades < *f.MinimumTrades {
		return false
	}
	if f.MinimumWinRate != nil && r.WinRate < *f.MinimumWinRate {
		return false
	}
	if f.MaximumDrawdown != nil && r.MaxDrawdown > *f.MaximumDrawdown {
		return false
	}
	if f.MinimumReturn != nil && r.TotalReturn < *f.MinimumReturn {
		return false
	}
	return true
}

// OptimizationStats counts what happened to every enumerated combination.
type OptimizationStats struct {
	Total    int64 `json:"total"`    // 参数空间大小
	Current  int64 `json:"current"`  // 已枚举数量 (含剪枝)
	Tested   int64 `json:"tested"`   // 实际运行回测的数量
	Pruned   int64 `json:"pruned"`   // 结构性无效, 未运行
	Filtered int64 `json:"filtered"` // 被过滤条件淘汰
	Failed   int64 `json:"failed"`   // 运行出错
	Accepted int64 `json:"accepted"` // 通过过滤并计分
}

// Progress is the record handed to a progress sink during optimization.
type Progress struct {
	RunID                  string               `json:"run_id,omitempty"`
	Dataset                string               `json:"dataset,omitempty"`
	Current                int64                `json:"current"`
	Total                  int64                `json:"total"`
	CurrentConfig          string               `json:"current_config"`
	IsRunning              bool                 `json:"is_running"`
	Results                []OptimizationResult `json:"results"`
	BestResult             *OptimizationResult  `json:"best_result,omitempty"`
	EstimatedTimeRemaining string               `json:"estimated_time_remaining"`
	Elapsed                time.Duration        `json:"elapsed"`
	Stats                  OptimizationStats    `json:"stats"`
}

// RunStatus 定义了优化任务的状态
type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunCancelled RunStatus = "CANCELLED"
	RunFailed    RunStatus = "FAILED"
)

// OptimizationRun is the persisted record of one optimization.
type OptimizationRun struct {
	ID         string               `json:"id"`
	Strategy   Strategy             `json:"strategy"`
	Datasets   []string             `json:"datasets"`
	Status     RunStatus            `json:"status"`
	Filters    Filters              `json:"filters"`
	Stats      OptimizationStats    `json:"stats"`
	StartedAt  time.Time            `json:"started_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
	FinishedAt time.Time            `json:"finished_at,omitempty"`
	Results    []OptimizationResult `json:"results"`
}

// Ptr returns a pointer to v, for building Filters literals.
func Ptr[T any](v T) *T { return &v }
