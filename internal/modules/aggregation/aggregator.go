// Package aggregation computes portfolio-level weighted returns and their
// diagnostics from an aligned return matrix. Weighting is position-aware:
// for each observation only strategies with a live position contribute, and
// their weights are renormalized within that active subset.
package aggregation

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/quantfold/riskdecomp/internal/modules/alignment"
	"github.com/quantfold/riskdecomp/pkg/formulas"
)

// Metrics holds portfolio-level diagnostics plus the underlying return
// series. Read-only output.
type Metrics struct {
	MeanReturn           float64
	AnnualizedReturn     float64
	Volatility           float64
	AnnualizedVolatility float64
	SharpeRatio          float64
	DiversificationRatio float64
	EffectiveN           float64
	Concentration        float64
	Skewness             float64
	ExcessKurtosis       float64
	Percentile5          float64
	Percentile95         float64
	Observations         int
	Returns              []float64
	Warnings             []string
}

// Aggregator computes weighted portfolio returns. Stateless; safe for
// concurrent use.
type Aggregator struct {
	log zerolog.Logger
}

// NewAggregator creates a portfolio returns aggregator.
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{log: log.With().Str("component", "aggregation").Logger()}
}

// PortfolioReturns computes the weighted portfolio return series and its
// diagnostics. Allocations are normalized to sum to 1; a zero allocation
// total substitutes equal weights with a warning. positions is optional:
// when supplied it must hold one array per strategy, aligned to the matrix
// rows, and an observation's weights are renormalized over the strategies
// whose position entry is non-zero.
func (a *Aggregator) PortfolioReturns(
	m *alignment.AlignedReturnMatrix,
	allocations []float64,
	positions [][]float64,
) (*Metrics, error) {
	if m == nil || m.Returns == nil {
		return nil, fmt.Errorf("no aligned return matrix provided")
	}

	rows, cols := m.Returns.Dims()
	if len(allocations) != cols {
		return nil, fmt.Errorf("got %d allocations for %d strategies", len(allocations), cols)
	}
	if positions != nil {
		if len(positions) != cols {
			return nil, fmt.Errorf("got %d position arrays for %d strategies", len(positions), cols)
		}
		for j, p := range positions {
			if len(p) != rows {
				return nil, fmt.Errorf("position array for %s has %d entries, expected %d",
					m.StrategyNames[j], len(p), rows)
			}
		}
	}

	var warnings []string
	weights := make([]float64, cols)
	total := 0.0
	for _, alloc := range allocations {
		total += alloc
	}
	if total == 0 {
		warnings = append(warnings, "allocation total is zero, substituting equal weights")
		a.log.Warn().Msg("Allocation total is zero, substituting equal weights")
		for i := range weights {
			weights[i] = 1 / float64(cols)
		}
	} else {
		for i, alloc := range allocations {
			weights[i] = alloc / total
		}
	}

	portfolio := make([]float64, rows)
	for i := 0; i < rows; i++ {
		activeWeight := 0.0
		for j := 0; j < cols; j++ {
			if positions == nil || positions[j][i] != 0 {
				activeWeight += weights[j]
			}
		}
		if activeWeight == 0 {
			// No strategy is live on this observation.
			portfolio[i] = 0
			continue
		}

		r := 0.0
		for j := 0; j < cols; j++ {
			if positions == nil || positions[j][i] != 0 {
				r += weights[j] / activeWeight * m.Returns.At(i, j)
			}
		}
		portfolio[i] = r
	}

	metrics := a.buildMetrics(m, portfolio, weights)
	metrics.Warnings = warnings
	return metrics, nil
}

func (a *Aggregator) buildMetrics(
	m *alignment.AlignedReturnMatrix,
	portfolio []float64,
	weights []float64,
) *Metrics {
	rows, cols := m.Returns.Dims()

	portfolioVol := formulas.StdDev(portfolio)

	// Diversification ratio: weighted average of individual volatilities
	// over the portfolio volatility.
	weightedVol := 0.0
	for j := 0; j < cols; j++ {
		weightedVol += weights[j] * formulas.StdDev(m.Column(j))
	}
	diversification := 0.0
	if portfolioVol > 0 {
		diversification = weightedVol / portfolioVol
	}

	sumSq := 0.0
	maxWeight := 0.0
	for _, w := range weights {
		sumSq += w * w
		if w > maxWeight {
			maxWeight = w
		}
	}
	effectiveN := 0.0
	if sumSq > 0 {
		effectiveN = 1 / sumSq
	}

	metrics := &Metrics{
		MeanReturn:           formulas.Mean(portfolio),
		AnnualizedReturn:     formulas.AnnualizedReturn(portfolio),
		Volatility:           portfolioVol,
		AnnualizedVolatility: formulas.AnnualizedVolatility(portfolio),
		SharpeRatio:          formulas.SharpeRatio(portfolio),
		DiversificationRatio: diversification,
		EffectiveN:           effectiveN,
		Concentration:        maxWeight,
		Skewness:             formulas.Skewness(portfolio),
		ExcessKurtosis:       formulas.ExcessKurtosis(portfolio),
		Percentile5:          formulas.Percentile(portfolio, 5),
		Percentile95:         formulas.Percentile(portfolio, 95),
		Observations:         rows,
		Returns:              portfolio,
	}

	a.log.Debug().
		Int("observations", rows).
		Float64("annualized_vol", metrics.AnnualizedVolatility).
		Float64("sharpe", metrics.SharpeRatio).
		Float64("diversification_ratio", metrics.DiversificationRatio).
		Msg("Computed portfolio metrics")

	return metrics
}
