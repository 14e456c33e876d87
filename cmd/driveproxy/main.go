package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/andresuchdata/fleetdocs/internal/config"
	"github.com/andresuchdata/fleetdocs/internal/drive"
	"github.com/andresuchdata/fleetdocs/internal/metrics"
	"github.com/andresuchdata/fleetdocs/internal/repository"
	"github.com/andresuchdata/fleetdocs/internal/repository/postgres"
	"github.com/andresuchdata/fleetdocs/internal/service"
	"github.com/andresuchdata/fleetdocs/internal/survey"
	"github.com/andresuchdata/fleetdocs/pkg/logger"
)

// driveproxy serves the Google Drive browse and register ingest routes on
// their own, for deployments that keep Drive credentials away from the main
// API.
func main() {
	cfg := config.Load()
	logger.Setup(cfg.Log.Level, cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Google Drive service
	driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize Google Drive service")
	}

	// Initialize Database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	settings, err := cfg.SurveySettings()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid survey settings")
	}
	calc, err := survey.NewCalculator(settings)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to build survey calculator")
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Initialize Services
	fleet := service.NewShipService(postgres.NewShipRepository(db), postgres.NewCertificateRepository(db), calc, nil, m)
	ingestService := drive.NewIngestService(driveService, repository.NewIngestRepository(db.DB.DB), fleet)

	// Register routes
	r := mux.NewRouter()
	drive.NewHandler(driveService, ingestService).RegisterRoutes(r)
	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Drive proxy starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Drive proxy failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Drive proxy forced to shutdown")
	}
}
