package aggregation

import (
	"math"

	"github.com/quantfold/riskdecomp/pkg/formulas"
)

// DefaultRollingWindow is one trading year of observations.
const DefaultRollingWindow = 252

// rollingConfidence is the confidence level for rolling VaR/CVaR.
const rollingConfidence = 0.95

// RollingMetrics holds per-observation trailing-window statistics. Entries
// before the minimum-period threshold are NaN.
type RollingMetrics struct {
	Window     int
	MinPeriods int
	Mean       []float64
	StdDev     []float64
	Sharpe     []float64
	VaR95      []float64
	CVaR95     []float64
}

// RollingMetrics recomputes trailing-window mean, volatility, Sharpe and
// 95% VaR/CVaR for every observation. window defaults to 252 and minPeriods
// to window/2. Each point is recomputed from its trailing slice rather than
// updated incrementally.
func (a *Aggregator) RollingMetrics(returns []float64, window, minPeriods int) *RollingMetrics {
	if window <= 0 {
		window = DefaultRollingWindow
	}
	if minPeriods <= 0 {
		minPeriods = window / 2
	}
	if minPeriods < 1 {
		minPeriods = 1
	}

	n := len(returns)
	rm := &RollingMetrics{
		Window:     window,
		MinPeriods: minPeriods,
		Mean:       make([]float64, n),
		StdDev:     make([]float64, n),
		Sharpe:     make([]float64, n),
		VaR95:      make([]float64, n),
		CVaR95:     make([]float64, n),
	}

	for i := 0; i < n; i++ {
		start := i + 1 - window
		if start < 0 {
			start = 0
		}
		slice := returns[start : i+1]

		if len(slice) < minPeriods {
			rm.Mean[i] = math.NaN()
			rm.StdDev[i] = math.NaN()
			rm.Sharpe[i] = math.NaN()
			rm.VaR95[i] = math.NaN()
			rm.CVaR95[i] = math.NaN()
			continue
		}

		rm.Mean[i] = formulas.Mean(slice)
		rm.StdDev[i] = formulas.StdDev(slice)
		rm.Sharpe[i] = formulas.SharpeRatio(slice)
		rm.VaR95[i] = formulas.VaR(slice, rollingConfidence)
		rm.CVaR95[i] = formulas.CVaR(slice, rollingConfidence)
	}

	return rm
}
