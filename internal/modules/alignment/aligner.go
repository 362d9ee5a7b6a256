package alignment

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// DefaultMinObservations is the alignment floor for production paths.
// Callers may lower it for tests or exploratory runs.
const DefaultMinObservations = 30

// Aligner builds aligned return matrices from raw strategy series. It holds
// no state beyond configuration and is safe for concurrent use.
type Aligner struct {
	minObservations int
	log             zerolog.Logger
}

// NewAligner creates an aligner with the given observation floor. A
// non-positive floor falls back to DefaultMinObservations.
func NewAligner(minObservations int, log zerolog.Logger) *Aligner {
	if minObservations <= 0 {
		minObservations = DefaultMinObservations
	}
	return &Aligner{
		minObservations: minObservations,
		log:             log.With().Str("component", "alignment").Logger(),
	}
}

// ComputeReturns converts one strategy's price and position series into a
// position-weighted return series: pct_change(price) * position, with the
// first (undefined) observation dropped.
func (a *Aligner) ComputeReturns(s StrategySeries) (ReturnSeries, error) {
	if len(s.Prices) == 0 || len(s.Dates) == 0 {
		return ReturnSeries{}, newError(ErrMissingData, "strategy %s has no price data", s.ID)
	}
	if len(s.Prices) != len(s.Dates) {
		return ReturnSeries{}, newError(ErrMissingData,
			"strategy %s has %d prices but %d dates", s.ID, len(s.Prices), len(s.Dates))
	}
	// A nil position series means fully invested throughout.
	if s.Positions != nil && len(s.Positions) != len(s.Prices) {
		return ReturnSeries{}, newError(ErrMissingData,
			"strategy %s has %d positions but %d prices", s.ID, len(s.Positions), len(s.Prices))
	}
	if len(s.Prices) < 2 {
		return ReturnSeries{}, newError(ErrMissingData,
			"strategy %s needs at least 2 observations to compute returns", s.ID)
	}

	for i := 1; i < len(s.Dates); i++ {
		if !s.Dates[i].After(s.Dates[i-1]) {
			return ReturnSeries{}, newError(ErrMisalignedDates,
				"strategy %s has duplicate or non-increasing dates at index %d", s.ID, i)
		}
	}

	returns := make([]float64, len(s.Prices)-1)
	for i := 1; i < len(s.Prices); i++ {
		var r float64
		if s.Prices[i-1] > 0 {
			r = (s.Prices[i] - s.Prices[i-1]) / s.Prices[i-1]
		}
		if s.Positions != nil {
			r *= s.Positions[i]
		}
		returns[i-1] = r
	}

	return ReturnSeries{
		StrategyID: s.ID,
		Dates:      append([]time.Time(nil), s.Dates[1:]...),
		Returns:    returns,
	}, nil
}

// Align converts each strategy series to returns and joins them onto the
// intersection of their dates. The join is an exact-date inner join: no
// forward-fill, back-fill or interpolation. Column order follows the
// caller-supplied order of portfolios.
func (a *Aligner) Align(portfolios []StrategySeries) (*AlignedReturnMatrix, error) {
	if len(portfolios) == 0 {
		return nil, newError(ErrMissingData, "no strategy series provided")
	}

	series := make([]ReturnSeries, 0, len(portfolios))
	for _, p := range portfolios {
		rs, err := a.ComputeReturns(p)
		if err != nil {
			return nil, err
		}
		series = append(series, rs)
	}

	return a.AlignReturnSeries(series)
}

// AlignReturnSeries joins pre-computed return series onto their common-date
// index. Exposed separately so callers that already hold returns (e.g. the
// HTTP surface) can skip the price conversion.
func (a *Aligner) AlignReturnSeries(series []ReturnSeries) (*AlignedReturnMatrix, error) {
	if len(series) == 0 {
		return nil, newError(ErrMissingData, "no return series provided")
	}

	seen := make(map[string]bool, len(series))
	for _, s := range series {
		if s.StrategyID == "" {
			return nil, newError(ErrDuplicateStrategy, "strategy with empty ID")
		}
		if seen[s.StrategyID] {
			return nil, newError(ErrDuplicateStrategy, "duplicate strategy ID %q", s.StrategyID)
		}
		seen[s.StrategyID] = true
	}

	// Intersect date sets across all series.
	common := make(map[time.Time]int, len(series[0].Dates))
	for _, d := range series[0].Dates {
		common[d]++
	}
	for _, s := range series[1:] {
		for _, d := range s.Dates {
			if _, ok := common[d]; ok {
				common[d]++
			}
		}
	}

	dates := make([]time.Time, 0, len(common))
	for d, count := range common {
		if count == len(series) {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	if len(dates) < a.minObservations {
		return nil, newError(ErrInsufficientObservations,
			"only %d common observations across %d strategies (need at least %d)",
			len(dates), len(series), a.minObservations)
	}

	names := make([]string, len(series))
	matrix := mat.NewDense(len(dates), len(series), nil)

	for col, s := range series {
		names[col] = s.StrategyID

		byDate := make(map[time.Time]float64, len(s.Dates))
		for i, d := range s.Dates {
			byDate[d] = s.Returns[i]
		}

		// A joined length mismatch indicates a duplicate-date bug upstream.
		if len(byDate) != len(s.Dates) {
			return nil, newError(ErrMisalignedDates,
				"strategy %s has duplicate dates in its return series", s.StrategyID)
		}

		joined := 0
		for row, d := range dates {
			r, ok := byDate[d]
			if !ok {
				return nil, newError(ErrMisalignedDates,
					"strategy %s is missing common date %s", s.StrategyID, d.Format("2006-01-02"))
			}
			matrix.Set(row, col, r)
			joined++
		}
		if joined != len(dates) {
			return nil, newError(ErrMisalignedDates,
				"strategy %s joined %d observations, expected %d", s.StrategyID, joined, len(dates))
		}
	}

	a.log.Debug().
		Int("num_strategies", len(series)).
		Int("common_observations", len(dates)).
		Msg("Aligned return series")

	return &AlignedReturnMatrix{
		Dates:         dates,
		StrategyNames: names,
		Returns:       matrix,
	}, nil
}
