package backtest

import (
	"testing"

	"bollinger-optimizer-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructureTrackerBreaksAndRetraces(t *testing.T) {
	candles := []models.Candle{
		{High: 105, Low: 100, Close: 104},
		{High: 110, Low: 104, Close: 109}, // swing high
		{High: 106, Low: 98, Close: 99},   // swing low
		{High: 108, Low: 101, Close: 107},
		{High: 113, Low: 108, Close: 112}, // closes above the swing high
		{High: 109, Low: 96, Close: 97},   // closes below the swing low
	}
	params := models.DefaultFibonacciParams()
	params.SwingLookback = 1
	tracker := newStructureTracker(params)
	tracker.reset()

	for i := 0; i <= 3; i++ {
		tracker.update(candles, i)
	}
	require.NotNil(t, tracker.high)
	require.NotNil(t, tracker.low)
	assert.Equal(t, 110.0, tracker.high.price)
	assert.Equal(t, 98.0, tracker.low.price)
	assert.Nil(t, tracker.current)

	tracker.update(candles, 4)
	ret := tracker.active(models.Long)
	require.NotNil(t, ret)
	assert.Equal(t, models.Long, tracker.lastBreak)
	assert.InDelta(t, 104.0, ret.ZoneTop, 1e-9)
	assert.InDelta(t, 110-12*0.618, ret.ZoneBottom, 1e-9)
	assert.True(t, ret.Touches(models.Candle{High: 105, Low: 103}))
	assert.False(t, ret.Touches(models.Candle{High: 110, Low: 105}))

	tracker.update(candles, 5)
	assert.Nil(t, tracker.active(models.Long))
	short := tracker.active(models.Short)
	require.NotNil(t, short)
	assert.Equal(t, 113.0, short.SwingHigh)
	assert.Equal(t, models.Short, tracker.lastBreak)
}

func TestStructureTrackerExpiry(t *testing.T) {
	params := models.DefaultFibonacciParams()
	params.RetracementExpiryBars = 2
	tracker := newStructureTracker(params)
	tracker.current = &Retracement{Side: models.Long, SwingHigh: 120, SwingLow: 100, CreatedAt: 0}

	candles := flat(10, 110)
	tracker.update(candles, 2)
	assert.NotNil(t, tracker.current)
	tracker.update(candles, 3)
	assert.Nil(t, tracker.current)
}
