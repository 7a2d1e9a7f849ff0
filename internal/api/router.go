package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/legalbridge/legalbridge/internal/app"
	iauth "github.com/legalbridge/legalbridge/internal/auth"
	"github.com/legalbridge/legalbridge/internal/handlers"
	"github.com/legalbridge/legalbridge/internal/middleware"
	"github.com/legalbridge/legalbridge/internal/monitoring"
	"github.com/legalbridge/legalbridge/internal/notifications"
	"github.com/legalbridge/legalbridge/internal/realtime"
	"github.com/legalbridge/legalbridge/internal/services"
)

// NewRouter builds the Gin engine, wires the consultation services together
// and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, mon *monitoring.Module) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	hub := realtime.NewHub()

	notifier, err := notifications.NewService(db, hub)
	if err != nil {
		return nil, err
	}

	threads, err := services.NewMessageThreadService(db, services.WithThreadBridge(notifier))
	if err != nil {
		return nil, err
	}
	analytics, err := services.NewAnalyticsService(db, threads)
	if err != nil {
		return nil, err
	}
	lifecycle, err := services.NewSessionLifecycleService(db, threads, analytics,
		services.WithNotificationBridge(notifier))
	if err != nil {
		return nil, err
	}

	consultationHandler, err := handlers.NewConsultationHandler(db, lifecycle, analytics)
	if err != nil {
		return nil, err
	}
	messageHandler, err := handlers.NewMessageHandler(lifecycle, threads)
	if err != nil {
		return nil, err
	}
	notificationHandler, err := handlers.NewNotificationHandler(notifier)
	if err != nil {
		return nil, err
	}
	realtimeHandler, err := handlers.NewRealtimeHandler(hub, jwt, lifecycle)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Health endpoint (public)
	r.GET("/health", handlers.Health())

	// Websocket endpoint authenticates via its own token query parameter.
	r.GET("/api/realtime", realtimeHandler.Stream)

	requireAuth := middleware.Auth(jwt)
	api := r.Group("/api")
	api.Use(requireAuth)

	registerConsultationRoutes(api, consultationHandler, messageHandler)
	registerNotificationRoutes(api, notificationHandler)

	// Metrics endpoint
	if cfg.Monitoring.Prometheus.Enabled && mon != nil {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(mon.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
