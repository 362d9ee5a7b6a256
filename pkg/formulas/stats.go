// Package formulas provides the scalar statistics shared by the risk
// estimation and aggregation modules. All functions are pure and operate on
// plain float64 slices.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization base for daily return series.
const TradingDaysPerYear = 252.0

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the unbiased sample variance (n-1 denominator)
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// AnnualizedVolatility calculates annualized volatility from daily returns.
// Formula: StdDev of daily returns × sqrt(252 trading days)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	return StdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// AnnualizedReturn calculates the compound annual growth rate from a series
// of periodic returns: ((1+r1)*(1+r2)*...*(1+rN))^(252/N) - 1.
// Series shorter than 3 observations return the simple cumulative return to
// avoid extreme annualization.
func AnnualizedReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	cumulative := 1.0
	for _, r := range returns {
		cumulative *= 1 + r
	}

	numPeriods := float64(len(returns))
	if numPeriods < 3 {
		return cumulative - 1
	}

	years := numPeriods / TradingDaysPerYear
	return math.Pow(cumulative, 1.0/years) - 1
}

// SharpeRatio calculates the annualized Sharpe ratio of daily returns with a
// zero risk-free rate. Returns 0 when volatility is zero.
func SharpeRatio(dailyReturns []float64) float64 {
	sd := StdDev(dailyReturns)
	if sd == 0 {
		return 0
	}
	return Mean(dailyReturns) / sd * math.Sqrt(TradingDaysPerYear)
}

// PctChangeReturns converts a price series to simple percentage returns.
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]. A non-positive previous
// price yields a zero return for that observation.
func PctChangeReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] > 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}
	return returns
}

// Correlation calculates the Pearson correlation coefficient between two
// equal-length series. Mismatched or empty inputs return 0.
func Correlation(x, y []float64) float64 {
	if len(x) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Correlation(x, y, nil)
}

// Covariance calculates the sample covariance between two equal-length
// series. Mismatched or empty inputs return 0.
func Covariance(x, y []float64) float64 {
	if len(x) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// AllFinite reports whether every value in the slice is neither NaN nor Inf.
func AllFinite(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Clamp restricts a value to the [min, max] range.
func Clamp(value, min, max float64) float64 {
	return math.Max(min, math.Min(max, value))
}
