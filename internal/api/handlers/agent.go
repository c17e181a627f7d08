package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/fikse/fikse-agent/backend/internal/agent"
	"github.com/fikse/fikse-agent/backend/internal/models"
	"github.com/fikse/fikse-agent/backend/internal/repository"
	"github.com/fikse/fikse-agent/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AgentHandler struct {
	engine      *agent.Engine
	repoManager *repository.RepositoryManager
	logger      *logrus.Logger
}

func NewAgentHandler(
	engine *agent.Engine,
	repoManager *repository.RepositoryManager,
	logger *logrus.Logger,
) *AgentHandler {
	return &AgentHandler{
		engine:      engine,
		repoManager: repoManager,
		logger:      logger,
	}
}

// HandleTurn processes one conversational turn for a session
func (h *AgentHandler) HandleTurn(c *gin.Context) {
	startTime := time.Now()

	var req models.AgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Invalid agent request")
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if !utils.ValidateSessionID(req.SessionID) {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid session id", nil)
		return
	}

	userInput := strings.TrimSpace(req.UserInput)
	if userInput == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "User input cannot be empty", nil)
		return
	}

	if len(userInput) > 500 {
		utils.ErrorResponse(c, http.StatusBadRequest, "User input too long (max 500 characters)", nil)
		return
	}

	response := h.engine.HandleTurn(c.Request.Context(), req.SessionID, userInput)

	if response.OrderCreated != nil && h.repoManager != nil {
		go h.trackOrder(req.SessionID, response.OrderCreated)
	}

	h.logger.WithFields(logrus.Fields{
		"session_id":    req.SessionID,
		"intent":        response.Intent,
		"state":         response.ConversationState,
		"response_time": time.Since(startTime).Milliseconds(),
	}).Info("Conversation turn completed")

	utils.SuccessResponse(c, http.StatusOK, "Turn processed", response)
}

// HandleGetSession returns a read-only view of a session's state
func (h *AgentHandler) HandleGetSession(c *gin.Context) {
	sessionID := c.Param("id")

	session, ok := h.engine.Store().Peek(sessionID)
	if !ok {
		utils.ErrorResponse(c, http.StatusNotFound, "Session not found", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Session state", session.View())
}

// HandleResetSession discards a session so the id starts fresh
func (h *AgentHandler) HandleResetSession(c *gin.Context) {
	sessionID := c.Param("id")

	h.engine.Store().Delete(sessionID)

	h.logger.WithField("session_id", sessionID).Info("Session reset")
	utils.SuccessResponse(c, http.StatusOK, "Session reset", nil)
}

func (h *AgentHandler) trackOrder(sessionID string, order *models.OrderSummary) {
	names := make([]string, 0, len(order.Services))
	for _, service := range order.Services {
		names = append(names, service.Service)
	}

	record := &models.OrderRecord{
		OrderID:        order.OrderID,
		UserSession:    sessionID,
		ServiceCount:   len(order.Services),
		TotalPrice:     order.TotalPrice,
		EstimatedHours: order.EstimatedTotalHours,
		Services:       strings.Join(names, ", "),
	}

	if err := h.repoManager.OrderRecord.Create(record); err != nil {
		h.logger.WithError(err).Error("Failed to track order")
	}
}
