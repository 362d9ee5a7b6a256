// Package alignment converts per-strategy price and position series into
// return series and aligns them onto a common observation grid. It is the
// entry point of the risk pipeline: everything downstream (estimation,
// validation, decomposition) operates on the AlignedReturnMatrix produced
// here and never mutates it.
package alignment

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// StrategySeries is the raw input for one strategy: a price series and the
// position held during each observation. Prices and Dates must have equal
// length and Dates must be strictly increasing. A nil Positions slice means
// fully invested throughout; otherwise it must match Prices in length.
type StrategySeries struct {
	ID        string
	Dates     []time.Time
	Prices    []float64
	Positions []float64
}

// ReturnSeries is one strategy's position-weighted return series. Immutable
// once produced.
type ReturnSeries struct {
	StrategyID string
	Dates      []time.Time
	Returns    []float64
}

// AlignedReturnMatrix holds the return series of all strategies joined onto
// their common dates. Rows are observations (oldest first), columns are
// strategies in the caller-supplied order. Produced once per request and
// never mutated.
type AlignedReturnMatrix struct {
	Dates         []time.Time
	StrategyNames []string
	Returns       *mat.Dense
}

// Observations returns the number of aligned observations (matrix rows).
func (m *AlignedReturnMatrix) Observations() int {
	return len(m.Dates)
}

// Strategies returns the number of strategies (matrix columns).
func (m *AlignedReturnMatrix) Strategies() int {
	return len(m.StrategyNames)
}

// Column returns a copy of the return series for strategy column i.
func (m *AlignedReturnMatrix) Column(i int) []float64 {
	col := make([]float64, m.Observations())
	mat.Col(col, i, m.Returns)
	return col
}
