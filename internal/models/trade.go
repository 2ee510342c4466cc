package models

// Side 定义了持仓方向
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// ExitReason 记录一笔交易的平仓原因
type ExitReason string

const (
	ExitStopLoss       ExitReason = "stop-loss"
	ExitTakeProfit     ExitReason = "profit-target"
	ExitStrategy       ExitReason = "strategy-exit"
	ExitTimeLimit      ExitReason = "time-limit"
	ExitTrailingStop   ExitReason = "trailing-stop"
	ExitSignalReversal ExitReason = "signal-reversal"
)

// Trade is a single simulated position. It is created open and closed exactly
// once; ExitTime, ExitPrice, PnL and Reason are only meaningful once IsOpen is false.
type Trade struct {
	ID             int        `json:"id"`
	EntryTime      int64      `json:"entry_time"`
	EntryPrice     float64    `json:"entry_price"`
	StopLoss       float64    `json:"stop_loss"`
	TakeProfit     float64    `json:"take_profit,omitempty"`
	Position       Side       `json:"position"`
	Leverage       float64    `json:"leverage"`
	CapitalAtEntry float64    `json:"capital_at_entry"`
	ExitTime       int64      `json:"exit_time,omitempty"`
	ExitPrice      float64    `json:"exit_price,omitempty"`
	PnL            float64    `json:"pnl"`
	PartialPnL     float64    `json:"partial_pnl,omitempty"`     // 已实现的部分止盈收益 (已计入PnL)
	ClosedFraction float64    `json:"closed_fraction,omitempty"` // 部分止盈已平掉的仓位比例
	IsOpen         bool       `json:"is_open"`
	Reason         ExitReason `json:"reason,omitempty"`
}

// HoldingMs returns the time the trade was held, or 0 while it is open.
func (t Trade) HoldingMs() int64 {
	if t.IsOpen {
		return 0
	}
	return t.ExitTime - t.EntryTime
}

// ReturnAt computes the leveraged P&L of the full position if closed at price.
func (t Trade) ReturnAt(price float64) float64 {
	if t.EntryPrice == 0 {
		return 0
	}
	move := (price - t.EntryPrice) / t.EntryPrice
	if t.Position == Short {
		move = -move
	}
	return move * t.Leverage * t.CapitalAtEntry
}
