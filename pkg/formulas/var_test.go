package formulas

import (
	"math"
	"math/rand"
	"testing"
)

func TestVaR(t *testing.T) {
	if got := VaR([]float64{}, 0.95); got != 0 {
		t.Errorf("VaR(empty) = %v, want 0", got)
	}

	// 100 returns from -0.50 to 0.49: the 5th percentile lands near -0.455.
	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = float64(i-50) / 100
	}
	got := VaR(returns, 0.95)
	if math.Abs(got-(-0.4505)) > 0.001 {
		t.Errorf("VaR(0.95) = %v, want about -0.4505", got)
	}

	// Higher confidence digs deeper into the tail.
	if VaR(returns, 0.99) >= VaR(returns, 0.95) {
		t.Errorf("VaR(0.99) = %v should be below VaR(0.95) = %v",
			VaR(returns, 0.99), VaR(returns, 0.95))
	}
}

func TestCVaR(t *testing.T) {
	if got := CVaR([]float64{}, 0.95); got != 0 {
		t.Errorf("CVaR(empty) = %v, want 0", got)
	}
	if got := CVaR([]float64{-0.02}, 0.95); got != -0.02 {
		t.Errorf("CVaR(single) = %v, want -0.02", got)
	}

	// 20 returns, 5% tail = 1 worst return.
	returns := make([]float64, 20)
	for i := range returns {
		returns[i] = float64(i-10) / 100
	}
	if got := CVaR(returns, 0.95); got != -0.10 {
		t.Errorf("CVaR(0.95) = %v, want -0.10 (single worst return)", got)
	}

	// 10% tail = 2 worst returns averaged.
	want := (-0.10 + -0.09) / 2
	if got := CVaR(returns, 0.90); math.Abs(got-want) > 1e-12 {
		t.Errorf("CVaR(0.90) = %v, want %v", got, want)
	}
}

func TestCVaRExactTailBoundaries(t *testing.T) {
	// Sample sizes where n*(1-confidence) lands exactly on an integer: float
	// drift in 1-confidence must not pull an extra observation into the tail.
	returns := make([]float64, 40)
	for i := range returns {
		returns[i] = float64(i-20) / 100
	}

	// 40 * 0.05 = 2: average of the two worst returns.
	want := (-0.20 + -0.19) / 2
	if got := CVaR(returns, 0.95); math.Abs(got-want) > 1e-12 {
		t.Errorf("CVaR(0.95) over 40 obs = %v, want %v (two worst)", got, want)
	}

	// 40 * 0.10 = 4.
	want = (-0.20 + -0.19 + -0.18 + -0.17) / 4
	if got := CVaR(returns, 0.90); math.Abs(got-want) > 1e-12 {
		t.Errorf("CVaR(0.90) over 40 obs = %v, want %v (four worst)", got, want)
	}
}

func TestCVaRNotAboveVaR(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	returns := make([]float64, 500)
	for i := range returns {
		returns[i] = rng.NormFloat64() * 0.02
	}

	for _, confidence := range []float64{0.90, 0.95, 0.99} {
		v := VaR(returns, confidence)
		cv := CVaR(returns, confidence)
		if cv > v+1e-12 {
			t.Errorf("CVaR(%v) = %v exceeds VaR = %v", confidence, cv, v)
		}
	}
}
