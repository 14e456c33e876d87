package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"

	"github.com/andresuchdata/fleetdocs/internal/api"
	"github.com/andresuchdata/fleetdocs/internal/cache"
	"github.com/andresuchdata/fleetdocs/internal/config"
	"github.com/andresuchdata/fleetdocs/internal/drive"
	"github.com/andresuchdata/fleetdocs/internal/extraction"
	"github.com/andresuchdata/fleetdocs/internal/metrics"
	"github.com/andresuchdata/fleetdocs/internal/repository"
	"github.com/andresuchdata/fleetdocs/internal/repository/postgres"
	"github.com/andresuchdata/fleetdocs/internal/scheduler"
	"github.com/andresuchdata/fleetdocs/internal/service"
	"github.com/andresuchdata/fleetdocs/internal/storage"
	"github.com/andresuchdata/fleetdocs/internal/survey"
	"github.com/andresuchdata/fleetdocs/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.Setup(cfg.Log.Level, cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings, err := cfg.SurveySettings()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid survey settings")
	}
	calc, err := survey.NewCalculator(settings)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to build survey calculator")
	}

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to apply database schema")
	}

	ships := postgres.NewShipRepository(db)
	certs := postgres.NewCertificateRepository(db)

	upcomingCache, err := cache.NewUpcomingSurveyCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Redis unavailable, upcoming survey cache disabled")
		upcomingCache = cache.NewNoopUpcomingSurveyCache()
	}
	// Cached worklists may have been computed under other survey settings.
	if err := upcomingCache.InvalidateAll(ctx); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to clear cached worklists")
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	archive, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		if !errors.Is(err, storage.ErrDisabled) {
			logger.Log.Warn().Err(err).Msg("Object storage unavailable, archiving disabled")
		}
		archive = nil
	}

	extractor, err := extraction.New(ctx, cfg)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("GenAI client unavailable, certificate extraction disabled")
		extractor = extraction.NewNoopExtractor()
	}

	// Initialize services
	fleet := service.NewShipService(ships, certs, calc, upcomingCache, m)
	surveys := service.NewSurveyService(certs, calc, upcomingCache, archive, m, cfg.Location())
	certOpts := service.CertificateServiceOptions{
		DriveRoot: cfg.Drive.RootFolder,
		Archive:   archive,
		Extractor: extractor,
		Cache:     upcomingCache,
		Metrics:   m,
	}

	services := &api.Services{
		ShipService:   fleet,
		SurveyService: surveys,
		HealthCheck:   db.PingContext,
	}

	if cfg.Drive.CredentialsJSON != "" {
		driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Google Drive unavailable, uploads go to the archive only")
		} else {
			certOpts.Drive = driveService

			ingestRepo := repository.NewIngestRepository(db.DB.DB)
			ingestService := drive.NewIngestService(driveService, ingestRepo, fleet)
			driveRouter := mux.NewRouter()
			drive.NewHandler(driveService, ingestService).RegisterRoutes(driveRouter)
			services.Drive = driveRouter
		}
	}
	services.CertificateService = service.NewCertificateService(ships, certs, fleet, calc, certOpts)

	// Initialize HTTP server
	router := api.NewRouter(services, cfg.Server.AllowedOrigins, m)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(cfg.Scheduler.DigestSpec, cfg.Location(), ships, fleet, surveys, m)
		go func() {
			if err := sched.Start(ctx); err != nil {
				logger.Log.Error().Err(err).Msg("Failed to start scheduler")
			}
		}()
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if sched != nil {
		sched.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
