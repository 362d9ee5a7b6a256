package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantfold/riskdecomp/internal/config"
	"github.com/quantfold/riskdecomp/internal/modules/aggregation"
	"github.com/quantfold/riskdecomp/internal/modules/alignment"
	"github.com/quantfold/riskdecomp/internal/modules/batch"
	"github.com/quantfold/riskdecomp/internal/modules/risk/handlers"
	"github.com/quantfold/riskdecomp/internal/modules/riskcontrib"
	"github.com/quantfold/riskdecomp/internal/modules/validation"
	"github.com/quantfold/riskdecomp/internal/modules/variance"
	"github.com/quantfold/riskdecomp/internal/server"
	"github.com/quantfold/riskdecomp/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet; write to stderr and bail.
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.Pretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting risk decomposition service")

	aligner := alignment.NewAligner(cfg.MinObservations, log)
	estimator := variance.NewEstimator(variance.Config{
		BootstrapResamples: cfg.BootstrapResamples,
		BootstrapSeed:      cfg.BootstrapSeed,
	}, log)
	pool := batch.NewPool(cfg.WorkerPoolSize, estimator, log)
	calculator := riskcontrib.NewCalculator(log)
	aggregator := aggregation.NewAggregator(log)

	risk := handlers.NewRiskHandlers(
		log,
		aligner,
		pool,
		calculator,
		aggregator,
		validation.Level(cfg.ValidationLevel),
	)

	srv := server.New(cfg, log, risk)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
