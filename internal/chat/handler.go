package chat

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/galoberlyn/beezbuddy-be/internal/strategy"
	"github.com/galoberlyn/beezbuddy-be/pkg/ctxkeys"
	"github.com/galoberlyn/beezbuddy-be/pkg/logging"
)

const maxQuestionRunes = 4000

// Handler exposes the authenticated and public chat endpoints over the
// answer pipeline.
type Handler struct {
	pipeline *Pipeline
	logger   logging.Logger
}

func NewHandler(pipeline *Pipeline, logger logging.Logger) *Handler {
	return &Handler{pipeline: pipeline, logger: logger}
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
	AgentID  string `json:"agentId" binding:"required"`
}

// Ask handles POST /api/chat/ask for authenticated dashboard users. The
// organization scope comes from the JWT claims, never from the body.
func (h *Handler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question and agentId are required"})
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" || len([]rune(question)) > maxQuestionRunes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question"})
		return
	}

	organizationID := c.GetString(string(ctxkeys.KeyOrganizationID))
	userID := c.GetString(string(ctxkeys.KeyUserID))
	if organizationID == "" || userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	result, err := h.pipeline.Answer(c.Request.Context(), AnswerRequest{
		Question:       question,
		OrganizationID: organizationID,
		AgentID:        req.AgentID,
		Identity:       Identity{UserID: userID},
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Query successful",
		"answer":  result.Answer,
	})
}

type publicAskRequest struct {
	Question       string `json:"question" binding:"required"`
	AgentID        string `json:"agentId" binding:"required"`
	OrganizationID string `json:"organizationId" binding:"required"`
	SessionID      string `json:"sessionId" binding:"required"`
}

// PublicAsk handles POST /api/public/chat/ask for embedded widgets. The
// inbound host is checked against the agent's authorized domains.
func (h *Handler) PublicAsk(c *gin.Context) {
	var req publicAskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question, agentId, organizationId and sessionId are required"})
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" || len([]rune(question)) > maxQuestionRunes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question"})
		return
	}

	result, err := h.pipeline.Answer(c.Request.Context(), AnswerRequest{
		Question:       question,
		OrganizationID: req.OrganizationID,
		AgentID:        req.AgentID,
		Identity:       Identity{SessionID: req.SessionID},
		Host:           c.Request.Host,
		Public:         true,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Query successful",
		"answer":  result.Answer,
	})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrAgentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
	case errors.Is(err, ErrMissingHost):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Host not found"})
	case errors.Is(err, ErrUnauthorizedDomain):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized domain"})
	case errors.Is(err, strategy.ErrInitializationTimeout):
		h.logger.WithError(err).Error("Model strategy not ready")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service is warming up, try again shortly"})
	case errors.Is(err, ErrModelFailure), errors.Is(err, ErrRetrievalFailure):
		h.logger.WithError(err).Error("Answer pipeline upstream failure")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to answer the question"})
	default:
		h.logger.WithError(err).Error("Answer pipeline failure")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to answer the question"})
	}
}

// RegisterRoutes wires the authenticated chat endpoint onto the group.
func RegisterRoutes(group *gin.RouterGroup, handler *Handler) {
	group.POST("/ask", handler.Ask)
}

// RegisterPublicRoutes wires the public widget endpoint onto the group.
func RegisterPublicRoutes(group *gin.RouterGroup, handler *Handler) {
	group.POST("/ask", handler.PublicAsk)
}
