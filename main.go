package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/epeers/datamart/config"
	"github.com/epeers/datamart/internal/cache"
	"github.com/epeers/datamart/internal/database"
	"github.com/epeers/datamart/internal/handlers"
	"github.com/epeers/datamart/internal/middleware"
	"github.com/epeers/datamart/internal/migrate"
	"github.com/epeers/datamart/internal/repository"
	"github.com/epeers/datamart/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Root context for everything outliving a single request
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection
	db, err := database.New(ctx, cfg.PGURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Apply pending migrations before anything touches the schema
	if err := migrate.Migrate(ctx, db.Pool); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize caches
	resCache := cache.NewResolutionCache(15 * time.Minute)

	// Initialize repositories
	dimRepo := repository.NewDimensionRepository(db.Pool)
	sectorRepo := repository.NewSectorRepository(db.Pool)
	priceRepo := repository.NewPriceRepository(db.Pool)
	newsRepo := repository.NewNewsRepository(db.Pool)
	indRepo := repository.NewIndicatorRepository(db.Pool)
	macroRepo := repository.NewMacroRepository(db.Pool)
	fundRepo := repository.NewFundamentalsRepository(db.Pool)
	partRepo := repository.NewPartitionRepository(db.Pool)
	featureRepo := repository.NewFeatureRepository(db.Pool)

	// Initialize services
	resolver := services.NewResolver(dimRepo, resCache)
	partitionMgr := services.NewPartitionManager(partRepo, cfg.PartitionLeadDays, cfg.PartitionRetentionDays, cfg.PartitionGraceDays)
	factWriter := services.NewFactWriter(resolver, partitionMgr, priceRepo, newsRepo, indRepo, macroRepo, fundRepo, sectorRepo)
	refresher := services.NewFeatureRefresher(featureRepo, cfg.NewsAggWindow)
	backfiller := services.NewImpactBackfiller(newsRepo, priceRepo)
	schemaValidator := services.NewSchemaValidator(db.Pool, resolver, dimRepo, partRepo)

	// Partitions must cover the write horizon before validation and ingest
	if err := partitionMgr.EnsureAhead(ctx); err != nil {
		log.Fatalf("Failed to create partitions: %v", err)
	}

	// Refuse to start serving on a schema that fails its invariants
	report := schemaValidator.Validate(ctx)
	for _, check := range report.Checks {
		if !check.Pass {
			log.WithFields(log.Fields{
				"check":  check.Name,
				"detail": check.Detail,
			}).Error("schema check failed")
		}
	}
	if !report.Pass {
		log.Fatal("Schema validation failed, refusing to start")
	}

	// Initialize handlers
	factHandler := handlers.NewFactHandler(factWriter)
	resolveHandler := handlers.NewResolveHandler(resolver)
	featureHandler := handlers.NewFeatureHandler(featureRepo, refresher)
	healthHandler := handlers.NewHealthHandler(db.Pool, schemaValidator)
	adminHandler := handlers.NewAdminHandler(partitionMgr, dimRepo, sectorRepo)

	// Background jobs
	scheduler := cron.New()
	mustSchedule(scheduler, cfg.PartitionCron, "partition maintenance", func() { partitionMgr.Run(ctx) })
	mustSchedule(scheduler, cfg.RefreshCron, "feature refresh", func() { refresher.Run(ctx) })
	mustSchedule(scheduler, cfg.ImpactCron, "news impact backfill", func() { backfiller.Run(ctx) })
	scheduler.Start()
	defer scheduler.Stop()

	// Setup Gin router
	router := gin.Default()

	// Apply global middleware
	router.Use(middleware.TagProducer())

	// Health endpoints
	router.GET("/health", healthHandler.Health)
	router.GET("/health/schema", healthHandler.Schema)

	// Fact ingestion routes
	router.POST("/facts/price-bars", factHandler.PriceBar)
	router.POST("/facts/price-bars/batch", factHandler.PriceBarBatch)
	router.POST("/facts/news", factHandler.News)
	router.POST("/facts/indicators", factHandler.Indicator)
	router.POST("/facts/indicators/batch", factHandler.IndicatorBatch)
	router.POST("/facts/sector-correlations", factHandler.SectorCorrelation)
	router.POST("/facts/macro", factHandler.Macro)
	router.POST("/facts/fundamentals", factHandler.Fundamentals)
	router.POST("/facts/analyst-estimates", factHandler.AnalystEstimate)
	router.GET("/facts/price-bars/:symbol", factHandler.GetPriceBar)
	router.GET("/facts/indicators/:symbol", factHandler.GetIndicators)
	router.GET("/facts/macro/:indicator", factHandler.GetMacroSeries)
	router.GET("/facts/fundamentals/:symbol", factHandler.GetFundamentals)

	// Resolution routes
	router.POST("/resolve/security", resolveHandler.Security)
	router.POST("/resolve/time", resolveHandler.Time)

	// Feature matrix routes
	router.GET("/features/:symbol", featureHandler.Get)
	router.POST("/features/refresh", featureHandler.Refresh)

	// Admin routes
	router.GET("/admin/partitions", adminHandler.ListPartitions)
	router.GET("/admin/sectors", adminHandler.ListSectors)
	router.POST("/admin/partitions/run", adminHandler.RunPartitionCycle)
	router.GET("/admin/securities/:symbol", adminHandler.GetSecurity)
	router.PUT("/admin/securities/:symbol", adminHandler.UpdateSecurity)
	router.POST("/admin/calendar", adminHandler.MarkCalendar)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Stop background jobs and let in-flight runs notice cancellation
	cancel()

	// Give outstanding requests 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func mustSchedule(scheduler *cron.Cron, spec, name string, job func()) {
	if _, err := scheduler.AddFunc(spec, job); err != nil {
		log.Fatalf("Failed to schedule %s (%q): %v", name, spec, err)
	}
}
