package alignment

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDates(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func flatSeries(id string, start time.Time, n int, dailyGrowth float64) StrategySeries {
	prices := make([]float64, n)
	positions := make([]float64, n)
	price := 100.0
	for i := 0; i < n; i++ {
		prices[i] = price
		positions[i] = 1
		price *= 1 + dailyGrowth
	}
	return StrategySeries{
		ID:        id,
		Dates:     testDates(start, n),
		Prices:    prices,
		Positions: positions,
	}
}

func TestComputeReturns_PctChangeTimesPosition(t *testing.T) {
	a := NewAligner(2, zerolog.Nop())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s := StrategySeries{
		ID:        "momentum",
		Dates:     testDates(start, 3),
		Prices:    []float64{100, 110, 121},
		Positions: []float64{1, 0, 2},
	}

	rs, err := a.ComputeReturns(s)
	require.NoError(t, err)
	require.Len(t, rs.Returns, 2, "first observation should be dropped")

	// Day 1: 10% price move, flat position -> 0. Day 2: 10% move, 2x position.
	assert.InDelta(t, 0.0, rs.Returns[0], 1e-12)
	assert.InDelta(t, 0.2, rs.Returns[1], 1e-12)
	assert.Equal(t, s.Dates[1:], rs.Dates)
}

func TestComputeReturns_NilPositionsFullyInvested(t *testing.T) {
	a := NewAligner(2, zerolog.Nop())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s := StrategySeries{
		ID:     "buyhold",
		Dates:  testDates(start, 3),
		Prices: []float64{100, 110, 121},
	}

	rs, err := a.ComputeReturns(s)
	require.NoError(t, err)
	require.Len(t, rs.Returns, 2)
	assert.InDelta(t, 0.1, rs.Returns[0], 1e-12)
	assert.InDelta(t, 0.1, rs.Returns[1], 1e-12)
}

func TestComputeReturns_InputValidation(t *testing.T) {
	a := NewAligner(2, zerolog.Nop())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		s    StrategySeries
		kind ErrorKind
	}{
		{
			name: "empty series",
			s:    StrategySeries{ID: "x"},
			kind: ErrMissingData,
		},
		{
			name: "length mismatch",
			s: StrategySeries{
				ID:        "x",
				Dates:     testDates(start, 3),
				Prices:    []float64{1, 2},
				Positions: []float64{1, 1},
			},
			kind: ErrMissingData,
		},
		{
			name: "duplicate dates",
			s: StrategySeries{
				ID:        "x",
				Dates:     []time.Time{start, start, start.AddDate(0, 0, 1)},
				Prices:    []float64{1, 2, 3},
				Positions: []float64{1, 1, 1},
			},
			kind: ErrMisalignedDates,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.ComputeReturns(tt.s)
			require.Error(t, err)

			var alignErr *Error
			require.True(t, errors.As(err, &alignErr))
			assert.Equal(t, tt.kind, alignErr.Kind)
		})
	}
}

func TestAlign_CommonDateIntersection(t *testing.T) {
	a := NewAligner(5, zerolog.Nop())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Second strategy starts 3 days later: intersection of return dates is
	// the later window.
	s1 := flatSeries("alpha", start, 20, 0.01)
	s2 := flatSeries("beta", start.AddDate(0, 0, 3), 17, 0.02)

	m, err := a.Align([]StrategySeries{s1, s2})
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "beta"}, m.StrategyNames)
	// s1 return dates: days 1..19. s2 return dates: days 4..19. Common: 16.
	assert.Equal(t, 16, m.Observations())
	assert.Equal(t, 2, m.Strategies())

	rows, cols := m.Returns.Dims()
	assert.Equal(t, m.Observations(), rows)
	assert.Equal(t, m.Strategies(), cols)

	// Exact-match join: every alpha entry in the window is its 1% return.
	for _, v := range m.Column(0) {
		assert.InDelta(t, 0.01, v, 1e-12)
	}
	for _, v := range m.Column(1) {
		assert.InDelta(t, 0.02, v, 1e-12)
	}
}

func TestAlign_InsufficientCommonObservations(t *testing.T) {
	a := NewAligner(30, zerolog.Nop())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Overlap is well below the floor of 30.
	s1 := flatSeries("alpha", start, 40, 0.01)
	s2 := flatSeries("beta", start.AddDate(0, 0, 30), 40, 0.01)

	_, err := a.Align([]StrategySeries{s1, s2})
	require.Error(t, err)

	var alignErr *Error
	require.True(t, errors.As(err, &alignErr))
	assert.Equal(t, ErrInsufficientObservations, alignErr.Kind)
}

func TestAlign_DuplicateStrategyID(t *testing.T) {
	a := NewAligner(5, zerolog.Nop())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s1 := flatSeries("alpha", start, 20, 0.01)
	s2 := flatSeries("alpha", start, 20, 0.02)

	_, err := a.Align([]StrategySeries{s1, s2})
	require.Error(t, err)

	var alignErr *Error
	require.True(t, errors.As(err, &alignErr))
	assert.Equal(t, ErrDuplicateStrategy, alignErr.Kind)
}

func TestNewAligner_DefaultFloor(t *testing.T) {
	a := NewAligner(0, zerolog.Nop())
	assert.Equal(t, DefaultMinObservations, a.minObservations)
}
