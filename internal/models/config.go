package models

// Strategy 标识一种回测策略
type Strategy string

const (
	StrategyBaseline   Strategy = "baseline"
	StrategyDayTrading Strategy = "daytrading"
	StrategyFibonacci  Strategy = "fibonacci"
	StrategyScalping   Strategy = "scalping"
	StrategyEnhanced   Strategy = "enhanced"
	StrategyHybrid     Strategy = "hybrid"
)

// Strategies lists every supported strategy in a stable order.
var Strategies = []Strategy{
	StrategyBaseline,
	StrategyDayTrading,
	StrategyFibonacci,
	StrategyScalping,
	StrategyEnhanced,
	StrategyHybrid,
}

// StrategyConfig is implemented by every strategy config through the embedded TradingConfig.
type StrategyConfig interface {
	Trading() TradingConfig
}

// TradingConfig 定义了所有策略共享的基础参数
type TradingConfig struct {
	Period               int     `json:"period"`                 // 布林带SMA周期
	StdDevMultiplier     float64 `json:"std_dev_multiplier"`     // 标准差倍数
	Offset               float64 `json:"offset"`                 // 布林带绝对偏移 (价格单位, 非百分比)
	MaxLeverage          float64 `json:"max_leverage"`           // 杠杆倍数
	InitialCapital       float64 `json:"initial_capital"`        // 初始资金
	EnableLongPositions  bool    `json:"enable_long_positions"`  // 允许做多
	EnableShortPositions bool    `json:"enable_short_positions"` // 允许做空
	ClampLossAtCapital   bool    `json:"clamp_loss_at_capital"`  // 单笔亏损是否以入场资金为下限 (默认关闭, 不模拟爆仓)
}

// Trading returns the shared trading parameters.
func (c TradingConfig) Trading() TradingConfig { return c }

// FibonacciParams are the swing and retracement settings shared by the
// Fibonacci scalping and hybrid strategies.
type FibonacciParams struct {
	SwingLookback         int     `json:"swing_lookback"`          // 摆动点对称窗口
	MinSwingSizePercent   float64 `json:"min_swing_size_percent"`  // 结构突破最小幅度 (%)
	GoldenZoneLow         float64 `json:"golden_zone_low"`         // 黄金区间下沿回撤比例, 如 0.5
	GoldenZoneHigh        float64 `json:"golden_zone_high"`        // 黄金区间上沿回撤比例, 如 0.618
	RetracementExpiryBars int     `json:"retracement_expiry_bars"` // 回撤失效的K线数量
}

// DayTradingConfig configures the multi-signal day-trading strategy.
type DayTradingConfig struct {
	TradingConfig
	RSIPeriod         int     `json:"rsi_period"`
	RSIOverbought     float64 `json:"rsi_overbought"`
	RSIOversold       float64 `json:"rsi_oversold"`
	MACDFast          int     `json:"macd_fast"`
	MACDSlow          int     `json:"macd_slow"`
	MACDSignal        int     `json:"macd_signal"`
	VolumePeriod      int     `json:"volume_period"`
	VolumeMultiplier  float64 `json:"volume_multiplier"`
	StopLossPercent   float64 `json:"stop_loss_percent"`
	TakeProfitPercent float64 `json:"take_profit_percent"`
	MaxHoldingMinutes float64 `json:"max_holding_minutes"` // 最长持仓时间, 单位始终为分钟 (秒级数据也一样)
	MinConfirmations  int     `json:"min_confirmations"`   // 6个子条件中至少满足的数量
}

// FibonacciConfig configures the Fibonacci structure-break scalping strategy.
type FibonacciConfig struct {
	TradingConfig
	FibonacciParams
	VolumePeriod      int     `json:"volume_period"`
	VolumeMultiplier  float64 `json:"volume_multiplier"`
	StopLossPercent   float64 `json:"stop_loss_percent"`
	TakeProfitPercent float64 `json:"take_profit_percent"`
	MaxHoldingMinutes float64 `json:"max_holding_minutes"` // 最长持仓时间, 单位始终为分钟 (秒级数据也一样)
	MinConfirmations  int     `json:"min_confirmations"`   // 4个确认条件中至少满足的数量
}

// ScalpingConfig configures the ultra-fast scalping strategy.
type ScalpingConfig struct {
	TradingConfig
	VelocityLookback        int     `json:"velocity_lookback"`          // 速度计算回看K线数
	VelocityThreshold       float64 `json:"velocity_threshold"`         // 速度阈值 (%/秒)
	MicroTrendPeriods       int     `json:"micro_trend_periods"`        // 微趋势子周期数量
	MicroTrendLength        int     `json:"micro_trend_length"`         // 每个子周期的K线数
	MinPriceMovementPercent float64 `json:"min_price_movement_percent"` // 当前K线最小波动 (%)
	TickStrengthThreshold   float64 `json:"tick_strength_threshold"`    // 模拟逐笔强度阈值 (0-1)
	StopLossPercent         float64 `json:"stop_loss_percent"`
	TakeProfitPercent       float64 `json:"take_profit_percent"`
	MaxHoldingSeconds       float64 `json:"max_holding_seconds"` // 最长持仓时间 (秒)
	CooldownMs              int64   `json:"cooldown_ms"`         // 0 表示按时间粒度自动选择 (秒级1s, 其他5s)
	MinConfirmations        int     `json:"min_confirmations"`
}

// EnhancedConfig layers optional risk filters over the baseline breakout.
// Every filter defaults to off.
type EnhancedConfig struct {
	TradingConfig
	UseVolumeFilter           bool    `json:"use_volume_filter"`
	VolumePeriod              int     `json:"volume_period"`
	VolumeMultiplier          float64 `json:"volume_multiplier"`
	UseTrendFilter            bool    `json:"use_trend_filter"`
	TrendLookback             int     `json:"trend_lookback"`
	TrendThresholdPercent     float64 `json:"trend_threshold_percent"`
	UseSqueezeFilter          bool    `json:"use_squeeze_filter"`
	SqueezeLookback           int     `json:"squeeze_lookback"`
	SqueezeThreshold          float64 `json:"squeeze_threshold"` // 相对带宽阈值
	UseTimeFilter             bool    `json:"use_time_filter"`
	TradingStartHour          int     `json:"trading_start_hour"` // UTC
	TradingEndHour            int     `json:"trading_end_hour"`   // UTC, 不含
	UseDailyLossLimit         bool    `json:"use_daily_loss_limit"`
	DailyLossLimitPercent     float64 `json:"daily_loss_limit_percent"`
	UseConsecutiveLossLimit   bool    `json:"use_consecutive_loss_limit"`
	MaxConsecutiveLosses      int     `json:"max_consecutive_losses"`
	LossCooldownBars          int     `json:"loss_cooldown_bars"`
	UseTrailingStop           bool    `json:"use_trailing_stop"`
	TrailingStopPercent       float64 `json:"trailing_stop_percent"`
	UsePartialTakeProfit      bool    `json:"use_partial_take_profit"`
	PartialTakeProfitPercent  float64 `json:"partial_take_profit_percent"`
	PartialTakeProfitFraction float64 `json:"partial_take_profit_fraction"`
}

// HybridConfig combines the baseline breakout with Fibonacci structure.
type HybridConfig struct {
	TradingConfig
	FibonacciParams
	RequireConfluence     bool    `json:"require_confluence"` // 突破入场需要结构方向一致
	ZoneEntries           bool    `json:"zone_entries"`       // 允许黄金区间回撤入场
	ZoneStopBufferPercent float64 `json:"zone_stop_buffer_percent"`
}

// LogConfig 定义了日志相关的配置
type LogConfig struct {
	Level      string `json:"level"`       // 日志级别, e.g., "debug", "info", "warn", "error"
	Output     string `json:"output"`      // 输出模式: "console", "file", "both"
	File       string `json:"file"`        // 日志文件路径
	MaxSize    int    `json:"max_size"`    // 单个日志文件的最大大小 (MB)
	MaxBackups int    `json:"max_backups"` // 保留的旧日志文件最大数量
	MaxAge     int    `json:"max_age"`     // 旧日志文件的最大保留天数
	Compress   bool   `json:"compress"`    // 是否压缩旧日志文件
}

// DatasetConfig describes one dataset to download for a multi-dataset run.
type DatasetConfig struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"` // 币安K线周期, e.g. "1s", "1m", "1h"
	Start    string `json:"start"`    // YYYY-MM-DD
	End      string `json:"end"`      // YYYY-MM-DD
}

// OptimizerSettings holds the tuning knobs of an optimization run.
type OptimizerSettings struct {
	ResultCap       int                  `json:"result_cap"`
	GlobalResultCap int                  `json:"global_result_cap"`
	ProgressEvery   int                  `json:"progress_every"`
	YieldEvery      int                  `json:"yield_every"`
	Ranges          map[string][]float64 `json:"ranges,omitempty"` // 覆盖默认参数范围
	TopN            int                  `json:"top_n"`            // 报告中展示的结果数量
}

// Config 结构体定义了程序的所有配置参数
type Config struct {
	DBPath     string            `json:"db_path"`
	Strategy   Strategy          `json:"strategy"`
	Dataset    DatasetConfig     `json:"dataset"`
	Datasets   []DatasetConfig   `json:"datasets"`
	Filters    Filters           `json:"filters"`
	Optimizer  OptimizerSettings `json:"optimizer"`
	LogConfig  LogConfig         `json:"log"`
	Baseline   TradingConfig     `json:"baseline"`
	DayTrading DayTradingConfig  `json:"daytrading"`
	Fibonacci  FibonacciConfig   `json:"fibonacci"`
	Scalping   ScalpingConfig    `json:"scalping"`
	Enhanced   EnhancedConfig    `json:"enhanced"`
	Hybrid     HybridConfig      `json:"hybrid"`
}
