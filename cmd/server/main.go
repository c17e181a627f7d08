// backend/cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fikse/fikse-agent/backend/internal/agent"
	"github.com/fikse/fikse-agent/backend/internal/api/handlers"
	"github.com/fikse/fikse-agent/backend/internal/catalog"
	"github.com/fikse/fikse-agent/backend/internal/config"
	"github.com/fikse/fikse-agent/backend/internal/database"
	"github.com/fikse/fikse-agent/backend/internal/embedding"
	"github.com/fikse/fikse-agent/backend/internal/health"
	"github.com/fikse/fikse-agent/backend/internal/intent"
	"github.com/fikse/fikse-agent/backend/internal/llm"
	"github.com/fikse/fikse-agent/backend/internal/middleware"
	"github.com/fikse/fikse-agent/backend/internal/models"
	"github.com/fikse/fikse-agent/backend/internal/nlp"
	"github.com/fikse/fikse-agent/backend/internal/repository"
	"github.com/fikse/fikse-agent/backend/internal/search"
	"github.com/fikse/fikse-agent/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	utils.InitLogger()
	logger := utils.GetLogger()

	logger.Info("Starting repair agent backend...")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if err := cfg.ValidateOllama(); err != nil {
		logger.WithError(err).Fatal("Ollama configuration validation failed")
	}
	if err := cfg.ValidateDataset(); err != nil {
		logger.WithError(err).Fatal("Dataset configuration validation failed")
	}

	// Data stores
	dbConfig := &database.Config{
		DatabaseURL: cfg.Database.URL,
		RedisURL:    cfg.Redis.URL,
		LogLevel:    os.Getenv("LOG_LEVEL"),
	}

	dbManager, err := database.NewManager(dbConfig, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database manager")
	}
	defer dbManager.Close()

	if err := dbManager.Migrate(); err != nil {
		logger.WithError(err).Fatal("Database migration failed")
	}

	var repoManager *repository.RepositoryManager
	if dbManager.HasDatabase() {
		repoManager = repository.NewRepositoryManager(dbManager.DB)
	}

	cache := database.NewCache(dbManager.Redis, logger)

	// Catalog and language resources
	cat, err := catalog.Load(cfg.Dataset.CatalogPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load service catalog")
	}
	logger.WithField("services", cat.Len()).Info("Service catalog loaded")

	dict, err := nlp.LoadFrequencyDictionary(cfg.Dataset.DictionaryPath)
	if err != nil {
		logger.WithError(err).Warn("Frequency dictionary unavailable, spell correction disabled")
		dict = nil
	}
	normalizer := nlp.NewNormalizer(dict, logger)

	index := embedding.NewIndex()
	if err := index.LoadBundle(cfg.Dataset.EmbeddingsPath); err != nil {
		// The server still starts; search reports not-ready until a bundle exists
		logger.WithError(err).Warn("Embedding bundle unavailable, run cmd/precompute first")
	} else if index.Len() != cat.Len() {
		logger.WithFields(logrus.Fields{
			"vectors":  index.Len(),
			"services": cat.Len(),
		}).Fatal("Embedding bundle does not match the catalog, run cmd/precompute again")
	} else if index.SourceHash() == "" {
		logger.Warn("Embedding bundle carries no source hash, cannot verify it matches the catalog")
	} else if index.SourceHash() != cat.Checksum() {
		// Same row count but different text: serving these vectors would
		// silently return stale results
		logger.WithFields(logrus.Fields{
			"bundle_hash":  index.SourceHash(),
			"catalog_hash": cat.Checksum(),
		}).Fatal("Embedding bundle was built from a different catalog, run cmd/precompute again")
	}

	// Engines
	embedClient := embedding.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.EmbedModel, logger)
	chatClient := llm.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.ChatModel, logger)

	searchEngine := search.NewEngine(cat, index, normalizer, embedClient, logger)
	classifier := intent.NewClassifier(chatClient, logger)

	sessionTTL := time.Duration(cfg.Session.TTLMinutes) * time.Minute
	sessionStore := agent.NewStore(sessionTTL, logger)
	agentEngine := agent.NewEngine(sessionStore, searchEngine, classifier, chatClient, logger)

	// Health checker
	var healthRepo models.SystemHealthRepository
	if repoManager != nil {
		healthRepo = repoManager.SystemHealth
	}
	healthChecker := health.NewHealthChecker(dbManager, healthRepo, index, logger, cfg.Ollama.BaseURL)

	healthCtx, cancelHealth := context.WithCancel(context.Background())
	defer cancelHealth()
	go healthChecker.PeriodicHealthCheck(healthCtx, time.Minute)

	// HTTP server
	searchHandler := handlers.NewSearchHandler(searchEngine, repoManager, cache, logger)
	agentHandler := handlers.NewAgentHandler(agentEngine, repoManager, logger)

	router := setupRouter(searchHandler, agentHandler, healthChecker)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Forced shutdown")
	}

	logger.Info("Server stopped")
}

func setupRouter(
	searchHandler *handlers.SearchHandler,
	agentHandler *handlers.AgentHandler,
	healthChecker *health.HealthChecker,
) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders())

	rateLimiter := middleware.NewRateLimiter(120)
	router.Use(rateLimiter.RateLimit())

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		overall, err := healthChecker.CheckCached(ctx)
		if err != nil {
			fresh := healthChecker.CheckAll()
			overall = &fresh
		}

		code := http.StatusOK
		if overall.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, overall)
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/search", searchHandler.HandleSearch)
		v1.GET("/search/debug", searchHandler.HandleDebug)
		v1.GET("/search/strategy", searchHandler.HandleStrategy)
		v1.GET("/search/popular", searchHandler.HandlePopular)

		v1.POST("/agent", agentHandler.HandleTurn)
		v1.GET("/agent/session/:id", agentHandler.HandleGetSession)
		v1.DELETE("/agent/session/:id", agentHandler.HandleResetSession)
	}

	return router
}
