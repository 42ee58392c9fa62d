package features

import (
	"math"

	"VendorLink/internal/domain/models"
)

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(bars)-1, or nil if insufficient data.
func ComputeLogReturns(bars []models.Bar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close()
		cur := bars[i].Close()
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over a rolling window
// using the provided number of bars per year. Returns the latest window sigma.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	// annualize
	return math.Sqrt(variance * barsPerYear)
}

// BarsPerYear returns the approximate number of bars per year for a timeframe.
func BarsPerYear(tf models.Timeframe) float64 {
	d := tf.Duration()
	if d <= 0 {
		return 365 * 24 * 60
	}
	return float64(365*24*60*60) / d.Seconds()
}

// BodyRatio is |close-open| over the full bar range of one candle, in [0,1].
// A bar with no range has ratio 0.
func BodyRatio(b models.Bar) float64 {
	body := math.Abs(b.Close() - b.Open())
	wick := (b.High() - math.Max(b.Open(), b.Close())) + (math.Min(b.Open(), b.Close()) - b.Low())
	if wick < 0 {
		wick = 0
	}
	total := body + wick
	if total <= 0 {
		return 0
	}
	return body / total
}

// Summary is the per-request feature view handed to the placeholder models.
type Summary struct {
	Bars       int
	LastReturn float64
	Volatility float64
	BodyRatio  float64
	Direction  int // +1 bullish last bar, -1 bearish, 0 flat or no bars
}

// Summarize derives a Summary from the request bars.
func Summarize(bars []models.Bar, tf models.Timeframe) Summary {
	s := Summary{Bars: len(bars)}
	if len(bars) == 0 {
		return s
	}
	last := bars[len(bars)-1]
	s.BodyRatio = BodyRatio(last)
	switch {
	case last.Close() > last.Open():
		s.Direction = 1
	case last.Close() < last.Open():
		s.Direction = -1
	}

	rets := ComputeLogReturns(bars)
	if len(rets) > 0 {
		s.LastReturn = rets[len(rets)-1]
	}
	window := 20
	if len(rets) < window {
		window = len(rets)
	}
	s.Volatility = RealizedVolatility(rets, window, BarsPerYear(tf))
	return s
}
