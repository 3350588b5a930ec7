package org

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/galoberlyn/beezbuddy-be/pkg/auth"
	"github.com/galoberlyn/beezbuddy-be/pkg/ctxkeys"
	"github.com/galoberlyn/beezbuddy-be/pkg/logging"
)

// sessionCookieMaxAge matches the JWT expiry in pkg/auth.
const sessionCookieMaxAge = 15 * 60

type Handler struct {
	store     *Store
	jwtSecret []byte
	logger    logging.Logger
}

func NewHandler(store *Store, jwtSecret []byte, logger logging.Logger) *Handler {
	return &Handler{store: store, jwtSecret: jwtSecret, logger: logger}
}

type createRequest struct {
	Name       string `json:"name" binding:"required"`
	OwnerEmail string `json:"ownerEmail"`
}

// Create registers an organization and bootstraps a dashboard session
// scoped to it, so the caller can hit authenticated endpoints right away.
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	org, err := h.store.Create(c.Request.Context(), req.Name)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create organization")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create organization"})
		return
	}

	token, err := auth.GenerateJWT(uuid.New().String(), org.ID, req.OwnerEmail, "owner", h.jwtSecret)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue session token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create organization"})
		return
	}
	c.SetCookie("access_token", token, sessionCookieMaxAge, "/", "", false, true)
	c.JSON(http.StatusCreated, gin.H{"organization": org, "token": token})
}

// Get returns the caller's own organization, resolved from the JWT claims.
func (h *Handler) Get(c *gin.Context) {
	orgID := c.GetString(string(ctxkeys.KeyOrganizationID))
	if orgID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing organization context"})
		return
	}

	org, err := h.store.Get(c.Request.Context(), orgID)
	if err == ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get organization")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get organization"})
		return
	}
	c.JSON(http.StatusOK, org)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.Get)
}

// RegisterPublicRoutes mounts signup, which issues the session the
// authenticated routes require.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("", h.Create)
}
