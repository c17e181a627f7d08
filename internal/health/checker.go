package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fikse/fikse-agent/backend/internal/database"
	"github.com/fikse/fikse-agent/backend/internal/embedding"
	"github.com/fikse/fikse-agent/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// HealthChecker probes every dependency the chatbot needs: the analytics
// store, the cache, the Ollama API and the in-process search index.
type HealthChecker struct {
	dbManager  *database.Manager
	cache      *database.Cache
	healthRepo models.SystemHealthRepository
	index      *embedding.Index
	logger     *logrus.Logger
	ollamaURL  string
}

func NewHealthChecker(
	dbManager *database.Manager,
	healthRepo models.SystemHealthRepository,
	index *embedding.Index,
	logger *logrus.Logger,
	ollamaURL string,
) *HealthChecker {
	return &HealthChecker{
		dbManager:  dbManager,
		cache:      database.NewCache(dbManager.Redis, logger),
		healthRepo: healthRepo,
		index:      index,
		logger:     logger,
		ollamaURL:  ollamaURL,
	}
}

// ServiceHealth represents the health status of a service
type ServiceHealth struct {
	Name         string                 `json:"name"`
	Status       string                 `json:"status"`
	ResponseTime int                    `json:"response_time_ms"`
	Error        string                 `json:"error,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	LastChecked  string                 `json:"last_checked"`
}

// OverallHealth represents the overall system health
type OverallHealth struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
	Uptime   string          `json:"uptime"`
}

// CheckPostgreSQL checks analytics store health. A deployment without a
// database reports degraded, not unhealthy: the conversation flow never
// reads from it.
func (h *HealthChecker) CheckPostgreSQL() ServiceHealth {
	if !h.dbManager.HasDatabase() {
		return ServiceHealth{
			Name:        "postgresql",
			Status:      "degraded",
			Error:       "not configured",
			LastChecked: time.Now().Format(time.RFC3339),
		}
	}

	start := time.Now()
	err := h.dbManager.PingDatabase()
	responseTime := int(time.Since(start).Milliseconds())

	status := "healthy"
	errorMsg := ""
	if err != nil {
		status = "unhealthy"
		errorMsg = err.Error()
		h.logger.WithError(err).Error("PostgreSQL health check failed")
	}

	h.recordHealth("postgresql", status, responseTime, errorMsg)

	return ServiceHealth{
		Name:         "postgresql",
		Status:       status,
		ResponseTime: responseTime,
		Error:        errorMsg,
		LastChecked:  time.Now().Format(time.RFC3339),
	}
}

// CheckRedis checks Redis cache health
func (h *HealthChecker) CheckRedis() ServiceHealth {
	start := time.Now()
	err := h.dbManager.PingRedis()
	responseTime := int(time.Since(start).Milliseconds())

	status := "healthy"
	errorMsg := ""
	if err != nil {
		status = "unhealthy"
		errorMsg = err.Error()
		h.logger.WithError(err).Error("Redis health check failed")
	}

	h.recordHealth("redis", status, responseTime, errorMsg)

	var details map[string]interface{}
	if status == "healthy" {
		statsCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if stats, err := h.cache.GetCacheStats(statsCtx); err == nil {
			details = stats
		}
	}

	return ServiceHealth{
		Name:         "redis",
		Status:       status,
		ResponseTime: responseTime,
		Error:        errorMsg,
		Details:      details,
		LastChecked:  time.Now().Format(time.RFC3339),
	}
}

// CheckOllama checks the embedding and generation API
func (h *HealthChecker) CheckOllama() ServiceHealth {
	start := time.Now()

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(h.ollamaURL + "/api/tags")

	responseTime := int(time.Since(start).Milliseconds())
	status := "healthy"
	errorMsg := ""

	if err != nil {
		status = "unhealthy"
		errorMsg = err.Error()
	} else {
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			status = "unhealthy"
			errorMsg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
	}

	if status != "healthy" {
		h.logger.WithError(err).Error("Ollama health check failed")
	}

	h.recordHealth("ollama", status, responseTime, errorMsg)

	return ServiceHealth{
		Name:         "ollama",
		Status:       status,
		ResponseTime: responseTime,
		Error:        errorMsg,
		LastChecked:  time.Now().Format(time.RFC3339),
	}
}

// CheckSearchIndex checks the in-process vector index
func (h *HealthChecker) CheckSearchIndex() ServiceHealth {
	status := "healthy"
	errorMsg := ""
	if !h.index.Ready() {
		status = "unhealthy"
		errorMsg = "index not loaded"
	}

	h.recordHealth("search_index", status, 0, errorMsg)

	return ServiceHealth{
		Name:        "search_index",
		Status:      status,
		Error:       errorMsg,
		LastChecked: time.Now().Format(time.RFC3339),
	}
}

// CheckAll performs health checks on all services
func (h *HealthChecker) CheckAll() OverallHealth {
	services := []ServiceHealth{
		h.CheckPostgreSQL(),
		h.CheckRedis(),
		h.CheckOllama(),
		h.CheckSearchIndex(),
	}

	overallStatus := "healthy"
	for _, service := range services {
		if service.Status == "unhealthy" {
			overallStatus = "unhealthy"
			break
		}
		if service.Status == "degraded" && overallStatus == "healthy" {
			overallStatus = "degraded"
		}
	}

	return OverallHealth{
		Status:   overallStatus,
		Services: services,
		Uptime:   h.getUptime(),
	}
}

// CheckCached returns cached health status if available
func (h *HealthChecker) CheckCached(ctx context.Context) (*OverallHealth, error) {
	cachedHealth, err := h.cache.GetCachedSystemHealth(ctx)
	if err != nil {
		return nil, err
	}

	services := make([]ServiceHealth, len(cachedHealth))
	overallStatus := "healthy"

	for i, health := range cachedHealth {
		services[i] = ServiceHealth{
			Name:         health.ServiceName,
			Status:       health.Status,
			ResponseTime: health.ResponseTimeMs,
			Error:        health.ErrorMessage,
			LastChecked:  health.CheckedAt.Format(time.RFC3339),
		}

		if health.Status == "unhealthy" {
			overallStatus = "unhealthy"
		} else if health.Status == "degraded" && overallStatus == "healthy" {
			overallStatus = "degraded"
		}
	}

	return &OverallHealth{
		Status:   overallStatus,
		Services: services,
		Uptime:   h.getUptime(),
	}, nil
}

var startTime = time.Now()

func (h *HealthChecker) getUptime() string {
	return time.Since(startTime).String()
}

func (h *HealthChecker) recordHealth(serviceName, status string, responseTimeMs int, errorMsg string) {
	if h.healthRepo == nil {
		return
	}
	if err := h.healthRepo.UpdateServiceHealth(serviceName, status, responseTimeMs, errorMsg); err != nil {
		h.logger.WithError(err).Debug("Failed to persist health status")
	}
}

// PeriodicHealthCheck runs health checks periodically and caches the result
func (h *HealthChecker) PeriodicHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			health := h.CheckAll()

			cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			healthModels := make([]models.SystemHealth, len(health.Services))
			for i, service := range health.Services {
				checkedAt, _ := time.Parse(time.RFC3339, service.LastChecked)
				healthModels[i] = models.SystemHealth{
					ServiceName:    service.Name,
					Status:         service.Status,
					ResponseTimeMs: service.ResponseTime,
					ErrorMessage:   service.Error,
					CheckedAt:      checkedAt,
				}
			}

			if err := h.cache.CacheSystemHealth(cacheCtx, healthModels, 2*interval); err != nil {
				h.logger.WithError(err).Error("Failed to cache health status")
			}
			cancel()

			h.logger.WithField("status", health.Status).Debug("Periodic health check completed")
		}
	}
}
