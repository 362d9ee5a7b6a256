package aggregation

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/quantfold/riskdecomp/internal/modules/alignment"
)

func alignedMatrix(t *testing.T, names []string, columns [][]float64) *alignment.AlignedReturnMatrix {
	t.Helper()
	rows := len(columns[0])
	data := mat.NewDense(rows, len(columns), nil)
	for j, col := range columns {
		require.Len(t, col, rows)
		for i, v := range col {
			data.Set(i, j, v)
		}
	}

	dates := make([]time.Time, rows)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return &alignment.AlignedReturnMatrix{Dates: dates, StrategyNames: names, Returns: data}
}

func constColumn(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestPortfolioReturns_WeightedAverage(t *testing.T) {
	a := NewAggregator(zerolog.Nop())

	m := alignedMatrix(t, []string{"a", "b"}, [][]float64{
		constColumn(50, 0.01),
		constColumn(50, 0.03),
	})

	metrics, err := a.PortfolioReturns(m, []float64{0.75, 0.25}, nil)
	require.NoError(t, err)

	// 0.75*0.01 + 0.25*0.03 = 0.015 on every observation.
	for _, r := range metrics.Returns {
		assert.InDelta(t, 0.015, r, 1e-12)
	}
	assert.InDelta(t, 0.015, metrics.MeanReturn, 1e-12)
	assert.Equal(t, 50, metrics.Observations)
	assert.InDelta(t, 0.75, metrics.Concentration, 1e-12)
	assert.InDelta(t, 1/(0.75*0.75+0.25*0.25), metrics.EffectiveN, 1e-9)
}

func TestPortfolioReturns_AllocationsNormalized(t *testing.T) {
	a := NewAggregator(zerolog.Nop())
	m := alignedMatrix(t, []string{"a", "b"}, [][]float64{
		constColumn(40, 0.01),
		constColumn(40, 0.03),
	})

	// Raw allocation units (e.g. EUR amounts) rather than weights.
	metrics, err := a.PortfolioReturns(m, []float64{7500, 2500}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.015, metrics.MeanReturn, 1e-12)
}

func TestPortfolioReturns_ZeroAllocationTotal(t *testing.T) {
	a := NewAggregator(zerolog.Nop())
	m := alignedMatrix(t, []string{"a", "b"}, [][]float64{
		constColumn(40, 0.01),
		constColumn(40, 0.03),
	})

	metrics, err := a.PortfolioReturns(m, []float64{0, 0}, nil)
	require.NoError(t, err)

	require.NotEmpty(t, metrics.Warnings)
	assert.Contains(t, metrics.Warnings[0], "equal weights")
	assert.InDelta(t, 0.02, metrics.MeanReturn, 1e-12)
}

func TestPortfolioReturns_PositionAwareReweighting(t *testing.T) {
	a := NewAggregator(zerolog.Nop())
	m := alignedMatrix(t, []string{"a", "b"}, [][]float64{
		constColumn(4, 0.01),
		constColumn(4, 0.03),
	})

	// Strategy b is flat on observations 1 and 3; observation 2 has nobody
	// in the market.
	positions := [][]float64{
		{1, 1, 0, 1},
		{1, 0, 0, 0},
	}

	metrics, err := a.PortfolioReturns(m, []float64{0.5, 0.5}, positions)
	require.NoError(t, err)

	assert.InDelta(t, 0.02, metrics.Returns[0], 1e-12, "both active: plain weighted average")
	assert.InDelta(t, 0.01, metrics.Returns[1], 1e-12, "only a active: full weight on a")
	assert.InDelta(t, 0.0, metrics.Returns[2], 1e-12, "no strategy active")
	assert.InDelta(t, 0.01, metrics.Returns[3], 1e-12)
}

func TestPortfolioReturns_DiversificationRatio(t *testing.T) {
	a := NewAggregator(zerolog.Nop())
	rng := rand.New(rand.NewSource(5))

	// Two independent series: diversification ratio above 1.
	colA := make([]float64, 300)
	colB := make([]float64, 300)
	for i := range colA {
		colA[i] = rng.NormFloat64() * 0.01
		colB[i] = rng.NormFloat64() * 0.01
	}
	m := alignedMatrix(t, []string{"a", "b"}, [][]float64{colA, colB})

	metrics, err := a.PortfolioReturns(m, []float64{0.5, 0.5}, nil)
	require.NoError(t, err)
	assert.Greater(t, metrics.DiversificationRatio, 1.0)

	// A single perfectly self-correlated book has ratio 1.
	solo := alignedMatrix(t, []string{"a"}, [][]float64{colA})
	soloMetrics, err := a.PortfolioReturns(solo, []float64{1}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, soloMetrics.DiversificationRatio, 1e-9)
}

func TestPortfolioReturns_InputValidation(t *testing.T) {
	a := NewAggregator(zerolog.Nop())
	m := alignedMatrix(t, []string{"a", "b"}, [][]float64{
		constColumn(10, 0.01),
		constColumn(10, 0.02),
	})

	_, err := a.PortfolioReturns(m, []float64{1.0}, nil)
	assert.Error(t, err, "allocation count mismatch")

	_, err = a.PortfolioReturns(m, []float64{0.5, 0.5}, [][]float64{constColumn(10, 1)})
	assert.Error(t, err, "position array count mismatch")

	_, err = a.PortfolioReturns(m, []float64{0.5, 0.5}, [][]float64{constColumn(10, 1), constColumn(9, 1)})
	assert.Error(t, err, "position array length mismatch")
}

func TestRollingMetrics_WindowAndMinPeriods(t *testing.T) {
	a := NewAggregator(zerolog.Nop())
	rng := rand.New(rand.NewSource(9))

	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = rng.NormFloat64() * 0.01
	}

	rm := a.RollingMetrics(returns, 20, 0)
	assert.Equal(t, 20, rm.Window)
	assert.Equal(t, 10, rm.MinPeriods)

	// Before min periods: NaN. After: finite.
	assert.True(t, math.IsNaN(rm.Mean[8]))
	assert.False(t, math.IsNaN(rm.Mean[9]))
	assert.False(t, math.IsNaN(rm.StdDev[50]))
	assert.False(t, math.IsNaN(rm.VaR95[50]))

	// CVaR is at least as severe as VaR on the same window.
	for i := 20; i < 100; i++ {
		assert.LessOrEqual(t, rm.CVaR95[i], rm.VaR95[i]+1e-12)
	}
}

func TestRollingMetrics_TrailingSlice(t *testing.T) {
	a := NewAggregator(zerolog.Nop())

	// Step change in level: the rolling mean converges to the new level
	// once the window has fully rolled past the step.
	returns := append(constColumn(30, 0.0), constColumn(30, 0.02)...)
	rm := a.RollingMetrics(returns, 10, 5)

	assert.InDelta(t, 0.0, rm.Mean[29], 1e-12)
	assert.InDelta(t, 0.02, rm.Mean[59], 1e-12)
}
