// Package handlers exposes the risk decomposition pipeline over HTTP. Each
// request is tagged with a UUID so multi-strategy pipelines can be traced
// through the logs.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantfold/riskdecomp/internal/modules/aggregation"
	"github.com/quantfold/riskdecomp/internal/modules/alignment"
	"github.com/quantfold/riskdecomp/internal/modules/batch"
	"github.com/quantfold/riskdecomp/internal/modules/riskcontrib"
	"github.com/quantfold/riskdecomp/internal/modules/validation"
	"github.com/quantfold/riskdecomp/internal/modules/variance"
)

const dateLayout = "2006-01-02"

// RiskHandlers handles the risk decomposition endpoints.
type RiskHandlers struct {
	log        zerolog.Logger
	aligner    *alignment.Aligner
	pool       *batch.Pool
	calculator *riskcontrib.Calculator
	aggregator *aggregation.Aggregator
	level      validation.Level
}

// NewRiskHandlers creates a risk handlers instance. level is the default
// validation strictness; requests may override it.
func NewRiskHandlers(
	log zerolog.Logger,
	aligner *alignment.Aligner,
	pool *batch.Pool,
	calculator *riskcontrib.Calculator,
	aggregator *aggregation.Aggregator,
	level validation.Level,
) *RiskHandlers {
	return &RiskHandlers{
		log:        log.With().Str("component", "risk_handlers").Logger(),
		aligner:    aligner,
		pool:       pool,
		calculator: calculator,
		aggregator: aggregator,
		level:      level,
	}
}

// StrategyInput is one strategy's price history. Dates are ISO "2006-01-02".
type StrategyInput struct {
	ID        string    `json:"id"`
	Dates     []string  `json:"dates"`
	Prices    []float64 `json:"prices"`
	Positions []float64 `json:"positions,omitempty"`
}

// ContributionsRequest asks for a full risk decomposition of a strategy set.
type ContributionsRequest struct {
	Strategies       []StrategyInput `json:"strategies"`
	Allocations      []float64       `json:"allocations"`
	DegeneratePolicy string          `json:"degenerate_policy,omitempty"` // "fail" (default) or "equal_weight"
	ValidationLevel  string          `json:"validation_level,omitempty"`
	IncludeMetrics   bool            `json:"include_metrics,omitempty"`
}

// StrategyContributionResponse is one strategy's slice of portfolio risk.
type StrategyContributionResponse struct {
	Strategy             string  `json:"strategy"`
	Weight               float64 `json:"weight"`
	MarginalContribution float64 `json:"marginal_contribution"`
	RiskContribution     float64 `json:"risk_contribution"`
	RiskContributionPct  float64 `json:"risk_contribution_pct"`
}

// ContributionsResponse is the full decomposition result.
type ContributionsResponse struct {
	RequestID           string                         `json:"request_id"`
	PortfolioVolatility float64                        `json:"portfolio_volatility"`
	PortfolioVariance   float64                        `json:"portfolio_variance"`
	Observations        int                            `json:"observations"`
	Contributions       []StrategyContributionResponse `json:"contributions"`
	Validation          *ValidationResponse            `json:"validation,omitempty"`
	Metrics             *MetricsResponse               `json:"metrics,omitempty"`
}

// MetricsResponse carries the portfolio-level diagnostics.
type MetricsResponse struct {
	MeanReturn           float64  `json:"mean_return"`
	AnnualizedReturn     float64  `json:"annualized_return"`
	AnnualizedVolatility float64  `json:"annualized_volatility"`
	SharpeRatio          float64  `json:"sharpe_ratio"`
	DiversificationRatio float64  `json:"diversification_ratio"`
	EffectiveN           float64  `json:"effective_n"`
	Concentration        float64  `json:"concentration"`
	Skewness             float64  `json:"skewness"`
	ExcessKurtosis       float64  `json:"excess_kurtosis"`
	Percentile5          float64  `json:"percentile_5"`
	Percentile95         float64  `json:"percentile_95"`
	Warnings             []string `json:"warnings,omitempty"`
}

// HandleContributions runs the full pipeline: align, validate, decompose.
// POST /api/risk/contributions
func (h *RiskHandlers) HandleContributions(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	log := h.log.With().Str("request_id", requestID).Logger()

	var req ContributionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, requestID, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if len(req.Strategies) == 0 {
		h.writeError(w, http.StatusBadRequest, requestID, errors.New("no strategies provided"))
		return
	}
	if len(req.Allocations) != len(req.Strategies) {
		h.writeError(w, http.StatusBadRequest, requestID, fmt.Errorf(
			"got %d allocations for %d strategies", len(req.Allocations), len(req.Strategies)))
		return
	}

	policy := riskcontrib.DegenerateFail
	switch req.DegeneratePolicy {
	case "", "fail":
	case "equal_weight":
		policy = riskcontrib.DegenerateEqualWeight
	default:
		h.writeError(w, http.StatusBadRequest, requestID, fmt.Errorf(
			"unknown degenerate_policy %q", req.DegeneratePolicy))
		return
	}

	series, err := h.parseStrategies(req.Strategies)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, requestID, err)
		return
	}

	log.Info().Int("strategies", len(series)).Msg("Running risk decomposition")

	matrix, err := h.aligner.Align(series)
	if err != nil {
		h.writeError(w, statusForError(err), requestID, err)
		return
	}

	var validationResp *ValidationResponse
	if req.ValidationLevel != "" {
		validator := validation.NewValidator(validation.Level(req.ValidationLevel), log)
		result := validator.ValidateRiskCalculationInputs(matrix, req.Allocations, nil)
		validationResp = toValidationResponse(result)
		if !result.IsValid {
			h.writeJSON(w, http.StatusUnprocessableEntity, ContributionsResponse{
				RequestID:  requestID,
				Validation: validationResp,
			})
			return
		}
	}

	result, err := h.calculator.Decompose(matrix, req.Allocations, policy)
	if err != nil {
		h.writeError(w, statusForError(err), requestID, err)
		return
	}

	resp := ContributionsResponse{
		RequestID:           requestID,
		PortfolioVolatility: result.PortfolioVolatility,
		PortfolioVariance:   result.PortfolioVariance,
		Observations:        matrix.Observations(),
		Validation:          validationResp,
	}
	for _, name := range result.StrategyOrder {
		c := result.Contributions[name]
		resp.Contributions = append(resp.Contributions, StrategyContributionResponse{
			Strategy:             name,
			Weight:               c.Weight,
			MarginalContribution: c.MarginalContribution,
			RiskContribution:     c.RiskContribution,
			RiskContributionPct:  c.RiskContributionPct,
		})
	}

	if req.IncludeMetrics {
		// Position scaling is already baked into the aligned returns by the
		// aligner, so the metrics surface uses plain allocation weighting.
		metrics, err := h.aggregator.PortfolioReturns(matrix, req.Allocations, nil)
		if err != nil {
			h.writeError(w, statusForError(err), requestID, err)
			return
		}
		resp.Metrics = &MetricsResponse{
			MeanReturn:           metrics.MeanReturn,
			AnnualizedReturn:     metrics.AnnualizedReturn,
			AnnualizedVolatility: metrics.AnnualizedVolatility,
			SharpeRatio:          metrics.SharpeRatio,
			DiversificationRatio: metrics.DiversificationRatio,
			EffectiveN:           metrics.EffectiveN,
			Concentration:        metrics.Concentration,
			Skewness:             metrics.Skewness,
			ExcessKurtosis:       metrics.ExcessKurtosis,
			Percentile5:          metrics.Percentile5,
			Percentile95:         metrics.Percentile95,
			Warnings:             metrics.Warnings,
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// parseStrategies converts wire-format strategies to alignment inputs.
func (h *RiskHandlers) parseStrategies(inputs []StrategyInput) ([]alignment.StrategySeries, error) {
	series := make([]alignment.StrategySeries, 0, len(inputs))
	for _, in := range inputs {
		if in.ID == "" {
			return nil, errors.New("strategy with empty id")
		}
		dates := make([]time.Time, len(in.Dates))
		for i, d := range in.Dates {
			t, err := time.Parse(dateLayout, d)
			if err != nil {
				return nil, fmt.Errorf("strategy %s: invalid date %q: %w", in.ID, d, err)
			}
			dates[i] = t
		}
		series = append(series, alignment.StrategySeries{
			ID:        in.ID,
			Dates:     dates,
			Prices:    in.Prices,
			Positions: in.Positions,
		})
	}
	return series, nil
}

// statusForError maps pipeline errors to HTTP statuses: malformed weights
// are the caller's fault, unusable data is unprocessable, and a degenerate
// portfolio under the fail policy is a conflict with the requested policy.
func statusForError(err error) int {
	var alignErr *alignment.Error
	var weightErr *riskcontrib.WeightError
	var estErr *variance.EstimationError
	var degErr *riskcontrib.DegenerateVarianceError

	switch {
	case errors.As(err, &weightErr):
		return http.StatusBadRequest
	case errors.As(err, &degErr):
		return http.StatusConflict
	case errors.As(err, &alignErr), errors.As(err, &estErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

type errorResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

func (h *RiskHandlers) writeError(w http.ResponseWriter, status int, requestID string, err error) {
	h.log.Warn().Str("request_id", requestID).Int("status", status).Err(err).Msg("Request failed")
	h.writeJSON(w, status, errorResponse{RequestID: requestID, Error: err.Error()})
}

func (h *RiskHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
