package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/quantfold/riskdecomp/internal/modules/alignment"
	"github.com/quantfold/riskdecomp/internal/modules/validation"
)

// ValidateRequest asks for a pre-flight validation of risk inputs. Weights
// and covariance are optional; returns are required. All return series must
// already be aligned to the same length.
type ValidateRequest struct {
	Strategies []VarianceStrategyInput `json:"strategies"`
	Weights    []float64               `json:"weights,omitempty"`
	Covariance [][]float64             `json:"covariance,omitempty"`
	Level      string                  `json:"level,omitempty"`
}

// ValidationResponse is the wire form of a validation result.
type ValidationResponse struct {
	IsValid           bool     `json:"is_valid"`
	Level             string   `json:"level"`
	QualityScore      float64  `json:"quality_score"`
	Messages          []string `json:"messages,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
	CorrectiveActions []string `json:"corrective_actions,omitempty"`
}

// ValidateResult wraps the validation response with its request ID.
type ValidateResult struct {
	RequestID  string              `json:"request_id"`
	Validation *ValidationResponse `json:"validation"`
}

// HandleValidate runs input validation without performing the decomposition.
// Validation findings are reported in the body; the request itself succeeds.
// POST /api/risk/validate
func (h *RiskHandlers) HandleValidate(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, requestID, err)
		return
	}
	if len(req.Strategies) == 0 {
		h.writeError(w, http.StatusBadRequest, requestID, errors.New("no strategies provided"))
		return
	}

	matrix, err := matrixFromStrategies(req.Strategies)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, requestID, err)
		return
	}

	var cov *mat.SymDense
	if req.Covariance != nil {
		cov, err = symFromRows(req.Covariance)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, requestID, err)
			return
		}
	}

	level := h.level
	if req.Level != "" {
		level = validation.Level(req.Level)
	}

	validator := validation.NewValidator(level, h.log)

	var result validation.Result
	if req.Weights != nil || cov != nil {
		result = validator.ValidateRiskCalculationInputs(matrix, req.Weights, cov)
	} else {
		result = validator.ValidateReturnData(matrix)
	}

	h.writeJSON(w, http.StatusOK, ValidateResult{
		RequestID:  requestID,
		Validation: toValidationResponse(result),
	})
}

// matrixFromStrategies builds an aligned return matrix from pre-aligned
// per-strategy return series. Wire input carries no dates, so a synthetic
// daily index is attached to satisfy the matrix shape contract.
func matrixFromStrategies(strategies []VarianceStrategyInput) (*alignment.AlignedReturnMatrix, error) {
	rows := len(strategies[0].Returns)
	if rows == 0 {
		return nil, errors.New("strategies have no observations")
	}

	names := make([]string, len(strategies))
	data := mat.NewDense(rows, len(strategies), nil)
	for j, s := range strategies {
		if s.ID == "" {
			return nil, errors.New("strategy with empty id")
		}
		if len(s.Returns) != rows {
			return nil, fmt.Errorf("strategy %s has %d observations, expected %d",
				s.ID, len(s.Returns), rows)
		}
		names[j] = s.ID
		for i, v := range s.Returns {
			data.Set(i, j, v)
		}
	}

	dates := make([]time.Time, rows)
	epoch := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = epoch.AddDate(0, 0, i)
	}

	return &alignment.AlignedReturnMatrix{Dates: dates, StrategyNames: names, Returns: data}, nil
}

// symFromRows converts a square row-major matrix to SymDense, averaging any
// asymmetric pairs so the validator's symmetry check sees the raw skew.
func symFromRows(rows [][]float64) (*mat.SymDense, error) {
	n := len(rows)
	data := make([]float64, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("covariance row %d has %d entries, expected %d", i, len(row), n)
		}
		copy(data[i*n:], row)
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, (data[i*n+j]+data[j*n+i])/2)
		}
	}
	return sym, nil
}

func toValidationResponse(result validation.Result) *ValidationResponse {
	return &ValidationResponse{
		IsValid:           result.IsValid,
		Level:             string(result.Level),
		QualityScore:      result.QualityScore,
		Messages:          result.Messages,
		Warnings:          result.Warnings,
		CorrectiveActions: result.CorrectiveActions,
	}
}
