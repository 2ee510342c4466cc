package models

// Candle is one OHLCV bar. Timestamp is the bar open time in Unix milliseconds.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// BollingerBand holds the band values for a single candle, index-aligned with
// the candle slice. Entries before period-1 are zero and must not be used.
type BollingerBand struct {
	Middle float64 `json:"middle"`
	Upper  float64 `json:"upper"`
	Lower  float64 `json:"lower"`
}

// Valid reports whether the band carries computed values.
func (b BollingerBand) Valid() bool {
	return b.Middle != 0 || b.Upper != 0 || b.Lower != 0
}

// Width is the relative band width, (upper-lower)/middle.
func (b BollingerBand) Width() float64 {
	if b.Middle == 0 {
		return 0
	}
	return (b.Upper - b.Lower) / b.Middle
}

// Dataset is a named candle series, e.g. BTCUSDT on the 1m timeframe.
type Dataset struct {
	Name      string   `json:"name"`
	Symbol    string   `json:"symbol"`
	Timeframe string   `json:"timeframe"`
	Candles   []Candle `json:"-"`
}
