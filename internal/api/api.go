package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/fleetdocs/internal/api/handlers"
	"github.com/andresuchdata/fleetdocs/internal/api/middleware"
	"github.com/andresuchdata/fleetdocs/internal/metrics"
	"github.com/andresuchdata/fleetdocs/internal/service"
)

type Services struct {
	ShipService        *service.ShipService
	CertificateService *service.CertificateService
	SurveyService      *service.SurveyService

	// Drive serves the /api/drive routes when Google Drive is configured.
	Drive http.Handler

	// HealthCheck reports backing store health; nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

func NewRouter(services *Services, allowedOrigins []string, m *metrics.Metrics) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	if m != nil {
		router.Use(middleware.Metrics(m))
	}
	router.Use(cors.New(corsConfig(allowedOrigins)))

	router.GET("/health", healthHandler(services))
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	apiGroup := router.Group("/api/v1", middleware.Company())

	if services == nil {
		return router
	}

	if services.ShipService != nil {
		shipHandler := handlers.NewShipHandler(services.ShipService)
		shipGroup := apiGroup.Group("/ships")
		{
			shipGroup.GET("", shipHandler.List)
			shipGroup.POST("", shipHandler.Create)
			shipGroup.GET("/:id", shipHandler.Get)
			shipGroup.PUT("/:id", shipHandler.Update)
			shipGroup.DELETE("/:id", shipHandler.Delete)
			shipGroup.POST("/:id/anniversary/recalculate", shipHandler.RecalculateAnniversary)
			shipGroup.PUT("/:id/anniversary", shipHandler.SetAnniversary)
			shipGroup.DELETE("/:id/anniversary/override", shipHandler.ClearAnniversaryOverride)
			shipGroup.PUT("/:id/special-survey-cycle", shipHandler.SetSpecialSurveyCycle)
			shipGroup.POST("/:id/docking/recalculate", shipHandler.RecalculateDocking)
		}
	}

	if services.CertificateService != nil {
		var today func() civil.Date
		if services.SurveyService != nil {
			today = services.SurveyService.Today
		}
		certHandler := handlers.NewCertificateHandler(services.CertificateService, today)

		apiGroup.GET("/ships/:id/certificates", certHandler.ListByShip)
		apiGroup.POST("/ships/:id/certificates", certHandler.Create)

		certGroup := apiGroup.Group("/certificates")
		{
			certGroup.POST("/extract", certHandler.Extract)
			certGroup.GET("/:id", certHandler.Get)
			certGroup.PUT("/:id", certHandler.Update)
			certGroup.DELETE("/:id", certHandler.Delete)
			certGroup.GET("/:id/survey-status", certHandler.SurveyStatus)
			certGroup.POST("/:id/file", certHandler.UploadFile)
		}
	}

	if services.SurveyService != nil {
		surveyHandler := handlers.NewSurveyHandler(services.SurveyService)
		surveyGroup := apiGroup.Group("/surveys")
		{
			surveyGroup.GET("/upcoming", surveyHandler.Upcoming)
			surveyGroup.GET("/upcoming/export", surveyHandler.Export)
		}
	}

	if services.Drive != nil {
		router.Any("/api/drive/*path", gin.WrapH(services.Drive))
	}

	return router
}

func healthHandler(services *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if services != nil && services.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := services.HealthCheck(ctx); err != nil {
				log.Error().Err(err).Msg("health check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func corsConfig(allowedOrigins []string) cors.Config {
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Company-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	return corsConfig
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
