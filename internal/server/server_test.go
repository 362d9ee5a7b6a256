package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/riskdecomp/internal/config"
	"github.com/quantfold/riskdecomp/internal/modules/aggregation"
	"github.com/quantfold/riskdecomp/internal/modules/alignment"
	"github.com/quantfold/riskdecomp/internal/modules/batch"
	"github.com/quantfold/riskdecomp/internal/modules/risk/handlers"
	"github.com/quantfold/riskdecomp/internal/modules/riskcontrib"
	"github.com/quantfold/riskdecomp/internal/modules/validation"
	"github.com/quantfold/riskdecomp/internal/modules/variance"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := zerolog.Nop()
	cfg := &config.Config{
		Port:           8010,
		AllowedOrigins: []string{"*"},
	}

	estimator := variance.NewEstimator(variance.DefaultConfig(), log)
	risk := handlers.NewRiskHandlers(
		log,
		alignment.NewAligner(10, log),
		batch.NewPool(2, estimator, log),
		riskcontrib.NewCalculator(log),
		aggregation.NewAggregator(log),
		validation.LevelModerate,
	)
	return New(cfg, log, risk)
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		method string
		path   string
		code   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodPost, "/api/risk/contributions", http.StatusBadRequest}, // empty body
		{http.MethodPost, "/api/risk/variance", http.StatusBadRequest},
		{http.MethodPost, "/api/risk/validate", http.StatusBadRequest},
		{http.MethodGet, "/api/risk/contributions", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestHealthReturnsJSON(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
