// Package indicators implements the technical indicators used by the
// backtesters. Every function is pure and returns a slice index-aligned with
// its input; warm-up positions hold a documented sentinel instead of NaN.
package indicators

import (
	"math"

	"bollinger-optimizer-go/internal/models"
)

// Closes extracts the close prices of candles.
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts the volumes of candles.
func Volumes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// SMA returns the simple moving average. Indices before period-1 are 0.
func SMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		var sum float64
		for _, v := range values[i-period+1 : i+1] {
			sum += v
		}
		out[i] = sum / float64(period)
	}
	return out
}

// StdDev returns the population standard deviation of the trailing window,
// measured around the already computed sma[i]. Indices before period-1 are 0.
func StdDev(values, sma []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(sma) < len(values) {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		var sq float64
		for _, v := range values[i-period+1 : i+1] {
			d := v - sma[i]
			sq += d * d
		}
		out[i] = math.Sqrt(sq / float64(period))
	}
	return out
}

// BollingerBands computes middle = SMA(close), upper/lower = middle ± std*mult ± offset.
// The offset is an absolute price shift, not a percentage.
func BollingerBands(candles []models.Candle, period int, stdDevMultiplier, offset float64) []models.BollingerBand {
	closes := Closes(candles)
	sma := SMA(closes, period)
	std := StdDev(closes, sma, period)

	bands := make([]models.BollingerBand, len(candles))
	if period <= 0 {
		return bands
	}
	for i := period - 1; i < len(candles); i++ {
		width := std[i]*stdDevMultiplier + offset
		bands[i] = models.BollingerBand{
			Middle: sma[i],
			Upper:  sma[i] + width,
			Lower:  sma[i] - width,
		}
	}
	return bands
}

// EMA seeds with the first value and applies k = 2/(period+1) from there on.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	if period <= 0 {
		period = 1
	}
	k := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSI uses simple averages of gains and losses over the trailing period.
// Indices before period are 50; a window without losses is 100.
func RSI(candles []models.Candle, period int) []float64 {
	out := make([]float64, len(candles))
	for i := range out {
		out[i] = 50
	}
	if period <= 0 {
		return out
	}
	for i := period; i < len(candles); i++ {
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			change := candles[j].Close - candles[j-1].Close
			if change > 0 {
				gain += change
			} else {
				loss -= change
			}
		}
		avgGain := gain / float64(period)
		avgLoss := loss / float64(period)
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACDSeries holds the three MACD lines.
type MACDSeries struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes EMA(fast)-EMA(slow), its signal EMA and the histogram.
func MACD(candles []models.Candle, fast, slow, signal int) MACDSeries {
	closes := Closes(candles)
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)

	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := EMA(line, signal)
	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - signalLine[i]
	}
	return MACDSeries{MACD: line, Signal: signalLine, Histogram: hist}
}

// VolumeMA is the trailing mean of volume; before the window fills it echoes the raw volume.
func VolumeMA(candles []models.Candle, period int) []float64 {
	out := Volumes(candles)
	if period <= 0 {
		return out
	}
	ma := SMA(out, period)
	for i := period - 1; i < len(out); i++ {
		out[i] = ma[i]
	}
	return out
}
