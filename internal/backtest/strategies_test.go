package backtest

import (
	"testing"

	"bollinger-optimizer-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedBands returns n identical bands so entries depend only on the candles.
func fixedBands(n int, lower, middle, upper float64) []models.BollingerBand {
	out := make([]models.BollingerBand, n)
	for i := range out {
		out[i] = models.BollingerBand{Lower: lower, Middle: middle, Upper: upper}
	}
	return out
}

// breakoutLosses appends cycles of a long breakout at 110 followed by a close
// back on the middle band at 100, each a losing trade.
func breakoutLosses(candles []models.Candle, from, cycles int) []models.Candle {
	for k := 0; k < cycles; k++ {
		i := from + 2*k
		candles = append(candles,
			bar(i, 100, 110, 100, 110),
			bar(i+1, 110, 110, 100, 100),
		)
	}
	return candles
}

// structureSeries has a swing high at 110 (bar 7) and a swing low at 98
// (bar 8), a close above the high on bar 10 and a pullback into the golden
// zone [102.584, 104] on bar 12.
func structureSeries() []models.Candle {
	candles := flat(6, 100)
	return append(candles,
		bar(6, 100, 105, 100, 104),
		bar(7, 104, 110, 104, 109),
		bar(8, 109, 106, 98, 99.6),
		bar(9, 99.6, 108, 101, 107),
		bar(10, 107, 113, 108, 112),
		bar(11, 112, 112, 105, 105.5),
		bar(12, 105.5, 106, 103, 105.8),
		bar(13, 105.8, 107, 105.5, 106.9),
		bar(14, 106.9, 110.5, 106.5, 110.2),
	)
}

func TestEnhancedPositionManagement(t *testing.T) {
	tests := []struct {
		name       string
		configure  func(c *models.EnhancedConfig)
		bars       []models.Candle
		wantReason models.ExitReason
		wantExit   float64
		wantPnL    float64
	}{
		{
			name:      "partial take-profit then break-even stop",
			configure: func(c *models.EnhancedConfig) { c.UsePartialTakeProfit = true },
			bars: []models.Candle{
				bar(22, 110, 115, 109, 112),   // 触及 112.2, 平掉一半
				bar(23, 112, 112, 109.5, 110), // 回到入场价
			},
			wantReason: models.ExitStopLoss,
			wantExit:   110,
			wantPnL:    1000,
		},
		{
			name:      "trailing stop ratchets and never loosens",
			configure: func(c *models.EnhancedConfig) { c.UseTrailingStop = true },
			bars: []models.Candle{
				bar(22, 110, 120, 111, 119),   // stop -> 117.6
				bar(23, 119, 119.5, 118, 119), // 117.11 would loosen it
				bar(24, 119, 119, 117.5, 118),
			},
			wantReason: models.ExitTrailingStop,
			wantExit:   117.6,
			wantPnL:    (117.6 - 110) / 110 * 10 * 10000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles := append(flat(21, 100), bar(21, 100, 110, 100, 110))
			candles = append(candles, tt.bars...)
			cfg := models.DefaultEnhancedConfig()
			tt.configure(&cfg)

			res := NewEnhanced(cfg).Run(candles, fixedBands(len(candles), 95, 100, 105))

			require.Equal(t, 1, res.TotalTrades)
			trade := res.Trades[0]
			assert.Equal(t, 110.0, trade.EntryPrice)
			assert.Equal(t, tt.wantReason, trade.Reason)
			assert.InDelta(t, tt.wantExit, trade.ExitPrice, 1e-9)
			assert.InDelta(t, tt.wantPnL, trade.PnL, 1e-6)
		})
	}
}

func TestEnhancedCircuitBreakers(t *testing.T) {
	const day = 86_400_000 / 60_000

	candles := breakoutLosses(flat(21, 100), 21, 10)
	candles = append(candles, bar(day, 100, 100, 100, 100))
	candles = breakoutLosses(candles, day+1, 2)
	bands := fixedBands(len(candles), 95, 100, 105)

	tests := []struct {
		name       string
		configure  func(c *models.EnhancedConfig)
		wantTrades int
		// 第 nth 笔交易的入场K线
		nth      int
		entryBar int
	}{
		{
			name:       "no breaker",
			configure:  func(*models.EnhancedConfig) {},
			wantTrades: 12,
			nth:        3,
			entryBar:   27,
		},
		{
			name:       "three losses pause entries for ten bars",
			configure:  func(c *models.EnhancedConfig) { c.UseConsecutiveLossLimit = true },
			wantTrades: 6,
			nth:        3,
			entryBar:   37,
		},
		{
			name:       "daily loss limit holds until the next day",
			configure:  func(c *models.EnhancedConfig) { c.UseDailyLossLimit = true },
			wantTrades: 2,
			nth:        1,
			entryBar:   day + 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := models.DefaultEnhancedConfig()
			tt.configure(&cfg)

			res := NewEnhanced(cfg).Run(candles, bands)

			require.Equal(t, tt.wantTrades, res.TotalTrades)
			assert.Equal(t, int64(tt.entryBar)*60_000, res.Trades[tt.nth].EntryTime)
			for _, tr := range res.Trades {
				assert.Equal(t, models.ExitStrategy, tr.Reason)
				assert.Less(t, tr.PnL, 0.0)
			}
		})
	}
}

func TestScalpingEntryCooldown(t *testing.T) {
	// 每秒上涨 0.1%, 所有信号一致; 止盈 0.5% 在入场后第5根K线触发
	candles := make([]models.Candle, 120)
	price := 100.0
	for i := range candles {
		open := price
		if i > 0 {
			price *= 1.001
		}
		candles[i] = models.Candle{Timestamp: int64(i) * 1000, Open: open, High: price, Low: open, Close: price, Volume: 1}
	}
	bands := fixedBands(len(candles), 90, 100, 200)

	tests := []struct {
		name       string
		cooldownMs int64
		wantGap    int64
	}{
		{"timeframe default", 0, 6_000},
		{"explicit cooldown", 20_000, 20_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := models.DefaultScalpingConfig()
			cfg.CooldownMs = tt.cooldownMs

			res := NewScalping(cfg).Run(candles, bands)

			require.Greater(t, res.TotalTrades, 2)
			assert.Equal(t, candles[21].Timestamp, res.Trades[0].EntryTime)
			for i, tr := range res.Trades {
				assert.Equal(t, models.Long, tr.Position)
				if i == 0 {
					continue
				}
				assert.Equal(t, tt.wantGap, tr.EntryTime-res.Trades[i-1].EntryTime, "trade %d", i)
				assert.Equal(t, models.ExitTakeProfit, res.Trades[i-1].Reason, "trade %d", i-1)
			}
		})
	}
}

func TestDayTradingVotes(t *testing.T) {
	band := models.BollingerBand{Lower: 95, Middle: 100, Upper: 105}
	prev := bar(0, 100, 100, 100, 100)

	tests := []struct {
		name          string
		candle        models.Candle
		rsi           float64
		confirmations int
		wantVotes     int
		wantEntry     bool
	}{
		{"all six agree", models.Candle{Open: 100, High: 107, Low: 100, Close: 106, Volume: 2}, 60, 0, 6, true},
		{"overbought rsi", models.Candle{Open: 100, High: 107, Low: 100, Close: 106, Volume: 2}, 75, 0, 5, true},
		{"three votes below default", models.Candle{Open: 100, High: 105, Low: 100, Close: 104, Volume: 1}, 45, 0, 3, false},
		{"three votes with lowered threshold", models.Candle{Open: 100, High: 105, Low: 100, Close: 104, Volume: 1}, 45, 3, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := models.DefaultDayTradingConfig()
			cfg.MinConfirmations = tt.confirmations
			r := &dayTradingRules{
				cfg:   cfg,
				rsi:   []float64{50, tt.rsi},
				hist:  []float64{0, 1},
				volMA: []float64{1, 1},
			}
			tt.candle.Timestamp = 60_000
			st := &State{Candles: []models.Candle{prev, tt.candle}, Bands: []models.BollingerBand{band, band}}

			assert.Equal(t, tt.wantVotes, r.votes(st, 1, models.Long))
			e, ok := r.enter(st, 1, models.Long)
			assert.Equal(t, tt.wantEntry, ok)
			if ok {
				assert.InDelta(t, tt.candle.Close*0.99, e.StopLoss, 1e-9)
				assert.InDelta(t, tt.candle.Close*1.02, e.TakeProfit, 1e-9)
			}
		})
	}
}

func TestDayTradingSignalReversalExit(t *testing.T) {
	band := models.BollingerBand{Lower: 95, Middle: 100, Upper: 105}
	tests := []struct {
		name     string
		candle   models.Candle
		rsi      float64
		wantExit bool
	}{
		{"confirmed short signal", models.Candle{Open: 100, High: 101, Low: 92, Close: 94, Volume: 2}, 40, true},
		{"three short votes", models.Candle{Open: 100, High: 101, Low: 96, Close: 97, Volume: 1}, 55, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &dayTradingRules{
				cfg:   models.DefaultDayTradingConfig(),
				rsi:   []float64{50, tt.rsi},
				hist:  []float64{1, 0},
				volMA: []float64{1, 1},
			}
			tt.candle.Timestamp = 60_000
			st := &State{
				Candles: []models.Candle{bar(0, 106, 106, 106, 106), tt.candle},
				Bands:   []models.BollingerBand{band, band},
				Open:    &models.Trade{Position: models.Long, EntryPrice: 106, StopLoss: 90, TakeProfit: 130},
			}

			ex, ok := r.Exit(st, 1)
			assert.Equal(t, tt.wantExit, ok)
			if ok {
				assert.Equal(t, models.ExitSignalReversal, ex.Reason)
				assert.Equal(t, tt.candle.Close, ex.Price)
			}
		})
	}
}

func TestMaxHoldingMinutesOnSecondData(t *testing.T) {
	fib := models.DefaultFibonacciConfig()
	fib.MaxHoldingMinutes = 1
	day := models.DefaultDayTradingConfig()
	day.MaxHoldingMinutes = 1

	rules := map[string]Rules{
		"fibonacci":   &fibonacciRules{cfg: fib},
		"day-trading": &dayTradingRules{cfg: day},
	}
	for name, r := range rules {
		t.Run(name, func(t *testing.T) {
			st := &State{
				Candles: []models.Candle{{Timestamp: 59_000, Open: 100, High: 101, Low: 99, Close: 101}},
				Bands:   make([]models.BollingerBand, 1),
				Open:    &models.Trade{Position: models.Long, EntryPrice: 100},
			}
			_, ok := r.Exit(st, 0)
			assert.False(t, ok, "59 seconds is under one minute")

			st.Candles[0].Timestamp = 60_000
			ex, ok := r.Exit(st, 0)
			require.True(t, ok)
			assert.Equal(t, models.ExitTimeLimit, ex.Reason)
			assert.Equal(t, 101.0, ex.Price)
		})
	}
}

func TestFibonacciGoldenZoneEntry(t *testing.T) {
	tests := []struct {
		name          string
		confirmations int
		wantTrades    int
	}{
		{"rebound confirms", 3, 1},
		{"volume required", 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := models.DefaultFibonacciConfig()
			cfg.Period = 5
			cfg.VolumePeriod = 3
			cfg.SwingLookback = 1
			cfg.MinConfirmations = tt.confirmations
			candles := structureSeries()

			res := NewFibonacci(cfg).Run(candles, nil)

			require.Equal(t, tt.wantTrades, res.TotalTrades)
			if tt.wantTrades == 0 {
				return
			}
			trade := res.Trades[0]
			assert.Equal(t, models.Long, trade.Position)
			assert.Equal(t, candles[12].Timestamp, trade.EntryTime)
			assert.Equal(t, 105.8, trade.EntryPrice)
			assert.InDelta(t, 105.8*0.995, trade.StopLoss, 1e-9)
			assert.Equal(t, models.ExitTakeProfit, trade.Reason)
			assert.InDelta(t, 105.8*1.01, trade.ExitPrice, 1e-9)
			assert.Equal(t, candles[13].Timestamp, trade.ExitTime)
		})
	}
}

func TestHybridEntries(t *testing.T) {
	breakoutOnly := append(flat(8, 100),
		bar(8, 100, 112, 100, 112),
		bar(9, 112, 112, 100, 100),
	)

	tests := []struct {
		name       string
		candles    []models.Candle
		upper      float64
		confluence bool
		zone       bool
		wantTrades int
		wantEntry  int
		wantPrice  float64
	}{
		{"zone entry after a long structure break", structureSeries(), 120, false, true, 1, 12, 105.8},
		{"zone entries off", structureSeries(), 120, false, false, 0, 0, 0},
		{"breakout without confluence", breakoutOnly, 111, false, false, 1, 8, 112},
		{"confluence blocks a breakout with no structure break", breakoutOnly, 111, true, false, 0, 0, 0},
		{"confluence allows a breakout on the break bar", structureSeries(), 111, true, false, 1, 10, 112},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := models.DefaultHybridConfig()
			cfg.Period = 5
			cfg.SwingLookback = 1
			cfg.RequireConfluence = tt.confluence
			cfg.ZoneEntries = tt.zone

			res := NewHybrid(cfg).Run(tt.candles, fixedBands(len(tt.candles), 90, 100, tt.upper))

			require.Equal(t, tt.wantTrades, res.TotalTrades)
			if tt.wantTrades == 0 {
				return
			}
			trade := res.Trades[0]
			assert.Equal(t, models.Long, trade.Position)
			assert.Equal(t, tt.candles[tt.wantEntry].Timestamp, trade.EntryTime)
			assert.Equal(t, tt.wantPrice, trade.EntryPrice)
		})
	}
}

func TestHybridZoneEntryLevels(t *testing.T) {
	cfg := models.DefaultHybridConfig()
	cfg.Period = 5
	cfg.SwingLookback = 1
	candles := structureSeries()

	res := NewHybrid(cfg).Run(candles, fixedBands(len(candles), 90, 100, 120))

	require.Equal(t, 1, res.TotalTrades)
	trade := res.Trades[0]
	assert.InDelta(t, 98*(1-0.002), trade.StopLoss, 1e-9)
	assert.Equal(t, 110.0, trade.TakeProfit)
	assert.Equal(t, models.ExitTakeProfit, trade.Reason)
	assert.Equal(t, 110.0, trade.ExitPrice)
	assert.Equal(t, candles[14].Timestamp, trade.ExitTime)
}
