package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/quantfold/riskdecomp/internal/modules/batch"
	"github.com/quantfold/riskdecomp/internal/modules/variance"
)

// VarianceRequest asks for variance estimates over a set of return series.
// An empty method selects the best estimator per series.
type VarianceRequest struct {
	Strategies []VarianceStrategyInput `json:"strategies"`
}

// VarianceStrategyInput is one series to estimate.
type VarianceStrategyInput struct {
	ID      string    `json:"id"`
	Returns []float64 `json:"returns"`
	Method  string    `json:"method,omitempty"`
}

// VarianceEstimateResponse is one strategy's estimate or failure. Exactly one
// of Estimate and Error is set.
type VarianceEstimateResponse struct {
	Strategy string            `json:"strategy"`
	Estimate *EstimateResponse `json:"estimate,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// EstimateResponse is the wire form of a variance estimate.
type EstimateResponse struct {
	Variance              float64  `json:"variance"`
	CILow                 float64  `json:"ci_low"`
	CIHigh                float64  `json:"ci_high"`
	Method                string   `json:"method"`
	QualityScore          float64  `json:"quality_score"`
	ObservationsUsed      int      `json:"observations_used"`
	EffectiveObservations float64  `json:"effective_observations,omitempty"`
	Warnings              []string `json:"warnings,omitempty"`
}

// VarianceResponse is the batch estimation result, in request order.
type VarianceResponse struct {
	RequestID string                     `json:"request_id"`
	Results   []VarianceEstimateResponse `json:"results"`
}

// HandleVariance estimates variances for a batch of strategies in parallel.
// Per-strategy failures are reported inline, not as a request failure.
// POST /api/risk/variance
func (h *RiskHandlers) HandleVariance(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	var req VarianceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, requestID, err)
		return
	}
	if len(req.Strategies) == 0 {
		h.writeError(w, http.StatusBadRequest, requestID, errors.New("no strategies provided"))
		return
	}

	jobs := make([]batch.EstimateJob, len(req.Strategies))
	for i, s := range req.Strategies {
		jobs[i] = batch.EstimateJob{
			StrategyID: s.ID,
			Returns:    s.Returns,
			Method:     variance.Method(s.Method),
		}
	}

	h.log.Info().
		Str("request_id", requestID).
		Int("strategies", len(jobs)).
		Msg("Running batch variance estimation")

	results := h.pool.EstimateAll(r.Context(), jobs, nil)

	resp := VarianceResponse{RequestID: requestID}
	for _, result := range results {
		item := VarianceEstimateResponse{Strategy: result.StrategyID}
		if result.Err != nil {
			item.Error = result.Err.Error()
		} else {
			est := result.Estimate
			item.Estimate = &EstimateResponse{
				Variance:              est.Value,
				CILow:                 est.CILow,
				CIHigh:                est.CIHigh,
				Method:                string(est.Method),
				QualityScore:          est.QualityScore,
				ObservationsUsed:      est.ObservationsUsed,
				EffectiveObservations: est.EffectiveObservations,
				Warnings:              est.Warnings,
			}
		}
		resp.Results = append(resp.Results, item)
	}

	h.writeJSON(w, http.StatusOK, resp)
}
