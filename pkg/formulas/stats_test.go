package formulas

import (
	"math"
	"testing"
)

func makeReturns(value float64, count int) []float64 {
	returns := make([]float64, count)
	for i := range returns {
		returns[i] = value
	}
	return returns
}

func TestAnnualizedReturn(t *testing.T) {
	tests := []struct {
		name      string
		returns   []float64
		expected  float64
		tolerance float64
	}{
		{
			name:      "empty returns",
			returns:   []float64{},
			expected:  0.0,
			tolerance: 0.0,
		},
		{
			name:      "one year of small positive returns",
			returns:   makeReturns(0.001, 252),
			expected:  0.286,
			tolerance: 0.01,
		},
		{
			name:      "half year of returns",
			returns:   makeReturns(0.002, 126),
			expected:  0.654, // (1.002^126)^(252/126) - 1
			tolerance: 0.01,
		},
		{
			name:      "one year of negative returns",
			returns:   makeReturns(-0.001, 252),
			expected:  -0.221,
			tolerance: 0.01,
		},
		{
			name:      "very short period uses simple cumulative",
			returns:   []float64{0.01, 0.02},
			expected:  0.0302,
			tolerance: 0.001,
		},
		{
			name:      "zero returns",
			returns:   makeReturns(0.0, 252),
			expected:  0.0,
			tolerance: 0.001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AnnualizedReturn(tt.returns)
			if math.Abs(result-tt.expected) > tt.tolerance {
				t.Errorf("AnnualizedReturn() = %v, want %v (±%v)", result, tt.expected, tt.tolerance)
			}
		})
	}
}

func TestAnnualizedVolatility(t *testing.T) {
	if got := AnnualizedVolatility([]float64{}); got != 0 {
		t.Errorf("AnnualizedVolatility(empty) = %v, want 0", got)
	}
	if got := AnnualizedVolatility(makeReturns(0.01, 100)); got != 0 {
		t.Errorf("AnnualizedVolatility(constant) = %v, want 0", got)
	}

	// Alternating ±1%: daily stddev known in closed form.
	alternating := make([]float64, 100)
	for i := range alternating {
		if i%2 == 0 {
			alternating[i] = 0.01
		} else {
			alternating[i] = -0.01
		}
	}
	daily := StdDev(alternating)
	want := daily * math.Sqrt(252)
	if got := AnnualizedVolatility(alternating); math.Abs(got-want) > 1e-12 {
		t.Errorf("AnnualizedVolatility() = %v, want %v", got, want)
	}
}

func TestSharpeRatio(t *testing.T) {
	if got := SharpeRatio(makeReturns(0.01, 50)); got != 0 {
		t.Errorf("SharpeRatio(zero volatility) = %v, want 0", got)
	}

	returns := []float64{0.01, -0.005, 0.02, -0.01, 0.015}
	want := Mean(returns) / StdDev(returns) * math.Sqrt(252)
	if got := SharpeRatio(returns); math.Abs(got-want) > 1e-12 {
		t.Errorf("SharpeRatio() = %v, want %v", got, want)
	}
}

func TestPctChangeReturns(t *testing.T) {
	prices := []float64{100, 110, 99}
	returns := PctChangeReturns(prices)
	if len(returns) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(returns))
	}
	if math.Abs(returns[0]-0.10) > 1e-12 {
		t.Errorf("returns[0] = %v, want 0.10", returns[0])
	}
	if math.Abs(returns[1]-(-0.10)) > 1e-12 {
		t.Errorf("returns[1] = %v, want -0.10", returns[1])
	}

	if got := PctChangeReturns([]float64{100}); len(got) != 0 {
		t.Errorf("single price should yield no returns, got %v", got)
	}

	// Non-positive previous price yields a zero return, not a panic.
	withZero := PctChangeReturns([]float64{0, 100})
	if withZero[0] != 0 {
		t.Errorf("return after zero price = %v, want 0", withZero[0])
	}
}

func TestSkewnessAndKurtosis(t *testing.T) {
	symmetric := []float64{-0.02, -0.01, 0, 0.01, 0.02}
	if got := Skewness(symmetric); math.Abs(got) > 1e-12 {
		t.Errorf("Skewness(symmetric) = %v, want 0", got)
	}

	rightSkewed := []float64{-0.01, -0.01, -0.01, -0.01, 0.10}
	if got := Skewness(rightSkewed); got <= 0 {
		t.Errorf("Skewness(right-skewed) = %v, want positive", got)
	}

	if got := Skewness([]float64{0.01, 0.02}); got != 0 {
		t.Errorf("Skewness needs 3 observations, got %v for 2", got)
	}
	if got := ExcessKurtosis([]float64{0.01, 0.02, 0.03}); got != 0 {
		t.Errorf("ExcessKurtosis needs 4 observations, got %v for 3", got)
	}

	// A fat-tailed sample has higher excess kurtosis than a uniform one.
	fatTail := []float64{0, 0, 0, 0, 0, 0, 0, 0, -0.10, 0.10}
	uniform := []float64{-0.05, -0.04, -0.03, -0.02, -0.01, 0.01, 0.02, 0.03, 0.04, 0.05}
	if ExcessKurtosis(fatTail) <= ExcessKurtosis(uniform) {
		t.Errorf("ExcessKurtosis(fat tail) = %v should exceed uniform = %v",
			ExcessKurtosis(fatTail), ExcessKurtosis(uniform))
	}
}

func TestPercentile(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}

	tests := []struct {
		pct  float64
		want float64
	}{
		{0, 1},
		{25, 2},
		{50, 3},
		{75, 4},
		{100, 5},
		{12.5, 1.5}, // interpolated
	}

	for _, tt := range tests {
		if got := Percentile(data, tt.pct); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Percentile(%v) = %v, want %v", tt.pct, got, tt.want)
		}
	}
}
