package knowledge

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/galoberlyn/beezbuddy-be/pkg/logging"
)

// Handler exposes the service-to-service embedding deletion endpoint. The
// workflow engine calls it after re-indexing a source, and internal flows
// use it when replacing a knowledge base.
type Handler struct {
	store  *Store
	logger logging.Logger
}

func NewHandler(store *Store, logger logging.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

type deleteEmbeddingsRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// DeleteEmbeddings handles DELETE /api/s2s/embeddings.
func (h *Handler) DeleteEmbeddings(c *gin.Context) {
	var req deleteEmbeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids are required"})
		return
	}
	if len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids are required"})
		return
	}

	deleted, err := h.store.DeleteByIDs(c.Request.Context(), req.IDs)
	if err != nil {
		h.logger.WithError(err).WithField("requested", len(req.IDs)).Error("Failed to delete embeddings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete embeddings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// RegisterRoutes wires the s2s endpoints onto the given group.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.DELETE("/embeddings", h.DeleteEmbeddings)
}
