package reporter

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"time"

	"bollinger-optimizer-go/internal/models"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"
)

const timeLayout = "2006-01-02 15:04"

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

// money 以两位小数输出金额, 避免浮点打印误差
func money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// percent 把 0-1 的比例输出为百分数
func percent(ratio float64) string {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return "-"
	}
	return decimal.NewFromFloat(ratio).Shift(2).StringFixed(2) + "%"
}

func ratio(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

func count[T int | int64](n T) string {
	return humanize.Comma(int64(n))
}

func formatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(timeLayout)
}

// BacktestReport 输出单次回测的性能报告
func BacktestReport(w io.Writer, label string, r *models.BacktestResult) {
	title := fmt.Sprintf("回测结果报告 · %s", r.Strategy)
	if label != "" {
		title += " · " + label
	}
	t := newTable(w, title)
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})

	t.AppendRows([]table.Row{
		{"时间粒度", r.Timeframe},
		{"回测周期 (天)", ratio(r.TradingPeriodDays)},
		{"初始资金", money(r.InitialCapital)},
		{"最终资金", money(r.FinalCapital)},
		{"总盈亏", money(r.TotalPnL)},
		{"收益率", percent(r.TotalReturn)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"总交易次数", count(r.TotalTrades)},
		{"盈利 / 亏损", fmt.Sprintf("%s / %s", count(r.WinningTrades), count(r.LosingTrades))},
		{"做多 / 做空", fmt.Sprintf("%s / %s", count(r.LongTrades), count(r.ShortTrades))},
		{"胜率", percent(r.WinRate)},
		{"日均交易", ratio(r.AverageTradesPerDay)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"平均盈利", money(r.AverageWin)},
		{"平均亏损", money(r.AverageLoss)},
		{"最大单笔盈利", money(r.LargestWin)},
		{"最大单笔亏损", money(r.LargestLoss)},
		{"盈亏因子", ratio(r.ProfitFactor)},
		{"最大回撤", percent(r.MaxDrawdown)},
		{"夏普比率", ratio(r.SharpeRatio)},
	})

	if len(r.ExitReasons) > 0 {
		reasons := make([]string, 0, len(r.ExitReasons))
		for reason := range r.ExitReasons {
			reasons = append(reasons, string(reason))
		}
		slices.Sort(reasons)
		t.AppendSeparator()
		for _, reason := range reasons {
			t.AppendRow(table.Row{"平仓: " + reason, count(r.ExitReasons[models.ExitReason(reason)])})
		}
	}
	t.Render()
}

// Trades 输出交易明细, limit <= 0 表示全部
func Trades(w io.Writer, trades []models.Trade, limit int) {
	if limit > 0 && len(trades) > limit {
		trades = trades[:limit]
	}
	t := newTable(w, "交易明细")
	t.AppendHeader(table.Row{"#", "方向", "入场时间", "入场价", "出场时间", "出场价", "杠杆", "盈亏", "原因"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	for _, tr := range trades {
		t.AppendRow(table.Row{
			tr.ID,
			tr.Position,
			formatTime(tr.EntryTime),
			tr.EntryPrice,
			formatTime(tr.ExitTime),
			tr.ExitPrice,
			fmt.Sprintf("%gx", tr.Leverage),
			money(tr.PnL),
			tr.Reason,
		})
	}
	t.Render()
}

// Leaderboard 输出前 topN 个优化结果, topN <= 0 表示全部
func Leaderboard(w io.Writer, title string, results []models.OptimizationResult, topN int) {
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	multi := slices.ContainsFunc(results, func(r models.OptimizationResult) bool { return r.Dataset != "" })

	t := newTable(w, title)
	header := table.Row{"排名", "得分"}
	if multi {
		header = append(header, "数据集")
	}
	header = append(header, "参数", "交易", "胜率", "收益率", "最大回撤", "夏普", "盈亏因子")
	t.AppendHeader(header)

	for i, r := range results {
		row := table.Row{i + 1, ratio(r.Score)}
		if multi {
			row = append(row, r.Dataset)
		}
		row = append(row,
			r.Description,
			count(r.TotalTrades),
			percent(r.WinRate),
			percent(r.TotalReturn),
			percent(r.MaxDrawdown),
			ratio(r.SharpeRatio),
			ratio(r.ProfitFactor),
		)
		t.AppendRow(row)
	}
	if len(results) == 0 {
		t.AppendFooter(table.Row{"", "没有满足过滤条件的结果"})
	}
	t.Render()
}

// Stats 输出优化计数
func Stats(w io.Writer, s models.OptimizationStats, elapsed time.Duration) {
	t := newTable(w, "")
	t.AppendHeader(table.Row{"组合总数", "已枚举", "已回测", "剪枝", "过滤", "失败", "入选", "耗时"})
	t.AppendRow(table.Row{
		count(s.Total), count(s.Current), count(s.Tested), count(s.Pruned),
		count(s.Filtered), count(s.Failed), count(s.Accepted), elapsed.Round(time.Millisecond),
	})
	t.Render()
}

// Runs 输出历史优化任务列表
func Runs(w io.Writer, runs []*models.OptimizationRun) {
	t := newTable(w, "优化任务")
	t.AppendHeader(table.Row{"ID", "策略", "数据集", "状态", "开始", "已回测", "结果"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			r.Strategy,
			strings.Join(r.Datasets, ","),
			r.Status,
			humanize.Time(r.StartedAt),
			count(r.Stats.Tested),
			count(len(r.Results)),
		})
	}
	t.Render()
}

// ProgressLine 生成单行进度描述
func ProgressLine(p models.Progress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s", count(p.Current), count(p.Total))
	if p.Total > 0 {
		fmt.Fprintf(&b, " (%s)", percent(float64(p.Current)/float64(p.Total)))
	}
	if p.Dataset != "" {
		fmt.Fprintf(&b, " [%s]", p.Dataset)
	}
	fmt.Fprintf(&b, " ETA %s", p.EstimatedTimeRemaining)
	if p.BestResult != nil {
		fmt.Fprintf(&b, " best %s", ratio(p.BestResult.Score))
	}
	return b.String()
}
