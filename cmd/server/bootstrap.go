package main

import (
	"github.com/arenaworks/peerview/internal/clients"
	"github.com/arenaworks/peerview/internal/config"
	"github.com/arenaworks/peerview/internal/handlers"
	"github.com/arenaworks/peerview/internal/models"
	"github.com/arenaworks/peerview/internal/services"
	"github.com/arenaworks/peerview/internal/utils"
	"github.com/arenaworks/peerview/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	auditService      *services.AuditService
	eventBus          services.EventBus
	authHandler       *handlers.AuthHandler
	reviewHandler     *handlers.ReviewHandler
	reviewItemHandler *handlers.ReviewItemHandler
	scorecardHandler  *handlers.ScorecardHandler
	auditHandler      *handlers.AuditHandler
	healthHandler     *handlers.HealthHandler
}

// bootstrap initializes all application dependencies: database, directory
// clients, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	db := models.GetDB()

	// Directory clients for challenge, resource and member lookups
	challengeClient := clients.NewChallengeClient(&cfg.Directory)
	resourceClient := clients.NewResourceClient(&cfg.Directory)
	memberClient := clients.NewMemberClient(&cfg.Directory)

	resolver := services.NewResolver(challengeClient, resourceClient)

	// Audit trail with retention scheduler
	auditService := services.NewAuditService(db, cfg.Audit.RetentionDays)
	auditService.StartRetentionScheduler()

	// Completion event bus (asynq-backed when Redis is enabled)
	eventBus := services.InitEventBus(cfg)

	scorecardService := services.NewScorecardService(db)
	reviewService := services.NewReviewService(db, scorecardService, resolver, memberClient, challengeClient, auditService, eventBus)

	// Create default admin user
	authHandler := handlers.NewAuthHandler(db, cfg)
	if err := authHandler.CreateAdminIfNotExists(); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return &appServices{
		auditService:      auditService,
		eventBus:          eventBus,
		authHandler:       authHandler,
		reviewHandler:     handlers.NewReviewHandler(reviewService),
		reviewItemHandler: handlers.NewReviewItemHandler(reviewService),
		scorecardHandler:  handlers.NewScorecardHandler(scorecardService),
		auditHandler:      handlers.NewAuditHandler(auditService),
		healthHandler:     handlers.NewHealthHandler(),
	}
}

// shutdown gracefully stops all background services.
func (s *appServices) shutdown() {
	s.auditService.StopRetentionScheduler()
	if s.eventBus != nil {
		if err := s.eventBus.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close event bus")
		}
	}
	logger.Info().Msg("Background services stopped")
}
