package backtest

import (
	"bollinger-optimizer-go/internal/models"
)

type swingPoint struct {
	index int
	price float64
	used  bool // 该摆动点已经触发过一次结构突破
}

// Retracement is the golden-zone band derived from the two swing points
// around a structure break. Side is the direction of the break.
type Retracement struct {
	Side       models.Side
	SwingHigh  float64
	SwingLow   float64
	ZoneTop    float64
	ZoneBottom float64
	CreatedAt  int
}

// Touches reports whether the bar trades inside the zone.
func (r *Retracement) Touches(c models.Candle) bool {
	return c.Low <= r.ZoneTop && c.High >= r.ZoneBottom
}

// structureTracker follows swing highs/lows and the retracement created by
// the latest structure break. A swing at k is only known at k+lookback.
type structureTracker struct {
	p         models.FibonacciParams
	high      *swingPoint
	low       *swingPoint
	current   *Retracement
	lastBreak models.Side
}

func newStructureTracker(p models.FibonacciParams) *structureTracker {
	if p.SwingLookback <= 0 {
		p.SwingLookback = 1
	}
	return &structureTracker{p: p}
}

func (s *structureTracker) reset() {
	s.high, s.low, s.current = nil, nil, nil
	s.lastBreak = ""
}

// warmup is the first bar at which a swing can be confirmed.
func (s *structureTracker) warmup() int {
	return 2*s.p.SwingLookback + 1
}

func (s *structureTracker) update(candles []models.Candle, i int) {
	lb := s.p.SwingLookback
	if k := i - lb; k-lb >= 0 {
		if isSwingHigh(candles, k, lb) {
			s.high = &swingPoint{index: k, price: candles[k].High}
		}
		if isSwingLow(candles, k, lb) {
			s.low = &swingPoint{index: k, price: candles[k].Low}
		}
	}

	c := candles[i]
	if r := s.current; r != nil {
		expired := s.p.RetracementExpiryBars > 0 && i-r.CreatedAt > s.p.RetracementExpiryBars
		broken := (r.Side == models.Long && c.Close < r.SwingLow) ||
			(r.Side == models.Short && c.Close > r.SwingHigh)
		if expired || broken {
			s.current = nil
		}
	}

	if s.high == nil || s.low == nil || s.high.price <= s.low.price {
		return
	}
	minMove := s.p.MinSwingSizePercent / 100
	switch {
	case !s.high.used && c.Close > s.high.price*(1+minMove):
		s.high.used = true
		s.lastBreak = models.Long
		s.current = s.retracement(models.Long, i)
	case !s.low.used && c.Close < s.low.price*(1-minMove):
		s.low.used = true
		s.lastBreak = models.Short
		s.current = s.retracement(models.Short, i)
	}
}

func (s *structureTracker) retracement(side models.Side, i int) *Retracement {
	hi, lo := s.high.price, s.low.price
	rng := hi - lo
	r := &Retracement{Side: side, SwingHigh: hi, SwingLow: lo, CreatedAt: i}
	if side == models.Long {
		r.ZoneTop = hi - rng*s.p.GoldenZoneLow
		r.ZoneBottom = hi - rng*s.p.GoldenZoneHigh
	} else {
		r.ZoneBottom = lo + rng*s.p.GoldenZoneLow
		r.ZoneTop = lo + rng*s.p.GoldenZoneHigh
	}
	if r.ZoneBottom > r.ZoneTop {
		r.ZoneBottom, r.ZoneTop = r.ZoneTop, r.ZoneBottom
	}
	return r
}

// active returns the retracement for side, if any.
func (s *structureTracker) active(side models.Side) *Retracement {
	if s.current == nil || s.current.Side != side {
		return nil
	}
	return s.current
}

func (s *structureTracker) consume() { s.current = nil }

func isSwingHigh(c []models.Candle, k, lb int) bool {
	for j := k - lb; j <= k+lb; j++ {
		if c[j].High > c[k].High {
			return false
		}
	}
	return true
}

func isSwingLow(c []models.Candle, k, lb int) bool {
	for j := k - lb; j <= k+lb; j++ {
		if c[j].Low < c[k].Low {
			return false
		}
	}
	return true
}
