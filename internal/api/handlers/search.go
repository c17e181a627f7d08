package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fikse/fikse-agent/backend/internal/database"
	"github.com/fikse/fikse-agent/backend/internal/models"
	"github.com/fikse/fikse-agent/backend/internal/repository"
	"github.com/fikse/fikse-agent/backend/internal/search"
	"github.com/fikse/fikse-agent/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type SearchHandler struct {
	engine      *search.Engine
	repoManager *repository.RepositoryManager
	cache       *database.Cache
	logger      *logrus.Logger
}

func NewSearchHandler(
	engine *search.Engine,
	repoManager *repository.RepositoryManager,
	cache *database.Cache,
	logger *logrus.Logger,
) *SearchHandler {
	return &SearchHandler{
		engine:      engine,
		repoManager: repoManager,
		cache:       cache,
		logger:      logger,
	}
}

// HandleSearch processes direct search requests
func (h *SearchHandler) HandleSearch(c *gin.Context) {
	startTime := time.Now()

	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Invalid search request")
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query cannot be empty", nil)
		return
	}

	if len(query) > 500 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query too long (max 500 characters)", nil)
		return
	}

	userSession := h.getUserSession(c)

	h.logger.WithFields(logrus.Fields{
		"query":        query,
		"user_session": userSession,
		"ip_address":   c.ClientIP(),
	}).Info("Processing search request")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	var results []models.ServiceItem

	cacheKey := h.generateCacheKey(query)
	cached := &models.SearchResponse{}

	if h.cache != nil && h.cache.GetCachedSearchResults(ctx, cacheKey, cached) == nil {
		h.logger.Debug("Search results served from cache")
		results = cached.Results
	} else {
		var err error
		results, err = h.engine.Search(ctx, query)
		if err != nil {
			if errors.Is(err, search.ErrIndexNotReady) {
				utils.ErrorResponse(c, http.StatusServiceUnavailable, "Search index is not ready yet", err)
				return
			}
			h.logger.WithError(err).Error("Search failed")
			utils.ErrorResponse(c, http.StatusInternalServerError, "Search failed", err)
			return
		}

		searchResp := &models.SearchResponse{
			Results:      results,
			Total:        len(results),
			ResponseTime: int(time.Since(startTime).Milliseconds()),
		}

		if h.cache != nil {
			if err := h.cache.CacheSearchResults(ctx, cacheKey, searchResp, 5*time.Minute); err != nil {
				h.logger.WithError(err).Warn("Failed to cache search results")
			}
		}
	}

	// The limit is a presentation hint applied after the full pipeline
	if req.Limit > 0 && req.Limit < len(results) {
		results = results[:req.Limit]
	}

	responseTime := time.Since(startTime)

	if h.repoManager != nil {
		go h.trackSearchQuery(userSession, query, results, responseTime, c.GetHeader("User-Agent"), c.ClientIP())
		go h.updatePopularQueries(query, len(results), responseTime)
	}

	response := models.SearchResponse{
		Results:      results,
		Total:        len(results),
		ResponseTime: int(responseTime.Milliseconds()),
	}

	h.logger.WithFields(logrus.Fields{
		"results_count": len(results),
		"response_time": responseTime.Milliseconds(),
	}).Info("Search completed successfully")

	utils.SuccessResponse(c, http.StatusOK, "Search completed", response)
}

// HandleDebug explains how a query moves through the pipeline
func (h *SearchHandler) HandleDebug(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query parameter 'q' is required", nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	result, err := h.engine.Debug(ctx, query)
	if err != nil {
		if errors.Is(err, search.ErrIndexNotReady) {
			utils.ErrorResponse(c, http.StatusServiceUnavailable, "Search index is not ready yet", err)
			return
		}
		h.logger.WithError(err).Error("Debug search failed")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Debug search failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Debug information", result)
}

// HandleStrategy describes the search pipeline design
func (h *SearchHandler) HandleStrategy(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Search strategy", h.engine.Strategy())
}

// HandlePopular returns the most searched queries, cache-aside over the
// analytics store. Unavailable when analytics is disabled.
func (h *SearchHandler) HandlePopular(c *gin.Context) {
	if h.repoManager == nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Analytics store not configured", nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if h.cache != nil {
		if queries, err := h.cache.GetCachedPopularQueries(ctx); err == nil {
			h.logger.Debug("Popular queries served from cache")
			utils.SuccessResponse(c, http.StatusOK, "Popular queries", queries)
			return
		}
	}

	queries, err := h.repoManager.PopularQuery.GetTop(10)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load popular queries")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load popular queries", err)
		return
	}

	if h.cache != nil {
		if err := h.cache.CachePopularQueries(ctx, queries, 5*time.Minute); err != nil {
			h.logger.WithError(err).Warn("Failed to cache popular queries")
		}
	}

	utils.SuccessResponse(c, http.StatusOK, "Popular queries", queries)
}

// Helper methods

func (h *SearchHandler) getUserSession(c *gin.Context) string {
	if session := c.GetHeader("X-Session-ID"); session != "" {
		return session
	}
	return utils.GenerateSessionID()
}

func (h *SearchHandler) generateCacheKey(query string) string {
	return utils.MD5Hash(strings.ToLower(strings.TrimSpace(query)))
}

func (h *SearchHandler) trackSearchQuery(userSession, query string, results []models.ServiceItem, responseTime time.Duration, userAgent, ipAddress string) {
	topMatchType := ""
	if len(results) > 0 {
		topMatchType = results[0].MatchType
	}

	searchQuery := &models.SearchQuery{
		QueryText:       query,
		UserSession:     userSession,
		ResultsCount:    len(results),
		TopMatchType:    topMatchType,
		SearchTimestamp: time.Now(),
		ResponseTimeMs:  int(responseTime.Milliseconds()),
		UserAgent:       userAgent,
		IPAddress:       ipAddress,
	}

	if err := h.repoManager.SearchQuery.Create(searchQuery); err != nil {
		h.logger.WithError(err).Error("Failed to track search query")
	}
}

func (h *SearchHandler) updatePopularQueries(query string, resultsCount int, responseTime time.Duration) {
	if err := h.repoManager.PopularQuery.IncrementCount(query); err != nil {
		h.logger.WithError(err).Error("Failed to update popular queries")
		return
	}

	if err := h.repoManager.PopularQuery.UpdateStats(query, float64(resultsCount), int(responseTime.Milliseconds())); err != nil {
		h.logger.WithError(err).Error("Failed to update query stats")
	}
}
