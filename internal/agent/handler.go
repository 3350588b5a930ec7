package agent

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/galoberlyn/beezbuddy-be/internal/ingest"
	"github.com/galoberlyn/beezbuddy-be/internal/knowledge"
	"github.com/galoberlyn/beezbuddy-be/internal/storage"
	"github.com/galoberlyn/beezbuddy-be/internal/workflow"
	"github.com/galoberlyn/beezbuddy-be/pkg/ctxkeys"
	"github.com/galoberlyn/beezbuddy-be/pkg/logging"
)

// Handler exposes agent CRUD. Create and update accept multipart forms
// because the dashboard sends files (documents, avatar) alongside the
// agent fields.
type Handler struct {
	store      *Store
	deleter    *Deleter
	dispatcher *ingest.Dispatcher
	objects    *storage.S3Client
	vectors    *knowledge.Store
	logger     logging.Logger
}

type HandlerConfig struct {
	Store      *Store
	Deleter    *Deleter
	Dispatcher *ingest.Dispatcher
	Objects    *storage.S3Client
	Vectors    *knowledge.Store
	Logger     logging.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		store:      cfg.Store,
		deleter:    cfg.Deleter,
		dispatcher: cfg.Dispatcher,
		objects:    cfg.Objects,
		vectors:    cfg.Vectors,
		logger:     cfg.Logger,
	}
}

func (h *Handler) Create(c *gin.Context) {
	orgID := c.GetString(string(ctxkeys.KeyOrganizationID))
	if orgID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing organization context"})
		return
	}

	mf, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	form, err := DecodeForm(mf)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a := &Agent{
		OrganizationID:    orgID,
		Name:              form.Name,
		Persona:           form.Persona,
		KnowledgeBaseType: form.Type,
		AuthorizedDomains: form.AuthorizedDomains,
		WebLinks:          form.Links,
	}

	if form.Avatar != nil {
		key, err := h.uploadAvatar(c.Request.Context(), orgID, form)
		if err != nil {
			h.logger.WithError(err).Error("Failed to store avatar")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store avatar"})
			return
		}
		a.AvatarKey = key
	}

	if err := h.store.Create(c.Request.Context(), a); err != nil {
		h.logger.WithError(err).Error("Failed to create agent")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create agent"})
		return
	}

	job := workflow.Job{AgentID: a.ID, OrganizationID: orgID}
	if err := h.ingestKnowledgeBase(c.Request.Context(), job, form); err != nil {
		h.respondIngestError(c, a.ID, err)
		return
	}

	h.presignAvatar(c.Request.Context(), a)
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) Update(c *gin.Context) {
	orgID := c.GetString(string(ctxkeys.KeyOrganizationID))
	if orgID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing organization context"})
		return
	}
	agentID := c.Param("id")

	mf, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	form, err := DecodeForm(mf)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a := &Agent{
		ID:                agentID,
		OrganizationID:    orgID,
		Name:              form.Name,
		Persona:           form.Persona,
		KnowledgeBaseType: form.Type,
		AuthorizedDomains: form.AuthorizedDomains,
		WebLinks:          form.Links,
	}

	if form.Avatar != nil {
		key, err := h.uploadAvatar(c.Request.Context(), orgID, form)
		if err != nil {
			h.logger.WithError(err).Error("Failed to store avatar")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store avatar"})
			return
		}
		a.AvatarKey = key
	}

	// Existing embedding rows are replaced, not appended: the workflow
	// engine deletes them once the new content is indexed.
	scope := knowledge.Scope{OrganizationID: orgID, AgentID: agentID}
	replaceIDs, err := h.vectors.IDsByAgent(c.Request.Context(), scope)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list embeddings for replacement")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update agent"})
		return
	}

	if err := h.store.Update(c.Request.Context(), a); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to update agent")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update agent"})
		return
	}

	job := workflow.Job{AgentID: agentID, OrganizationID: orgID, ReplaceIDs: replaceIDs}
	if err := h.ingestKnowledgeBase(c.Request.Context(), job, form); err != nil {
		h.respondIngestError(c, agentID, err)
		return
	}

	h.presignAvatar(c.Request.Context(), a)
	c.JSON(http.StatusOK, a)
}

func (h *Handler) ingestKnowledgeBase(ctx context.Context, job workflow.Job, form *Form) error {
	switch form.Type {
	case KnowledgeBaseDocuments:
		stored, err := h.dispatcher.DispatchDocuments(ctx, job, form.Documents)
		if err != nil {
			return err
		}
		docs := make([]Document, 0, len(stored))
		for _, s := range stored {
			docs = append(docs, Document{AgentID: job.AgentID, ObjectKey: s.ObjectKey, Filename: s.Filename})
		}
		return h.store.AddDocuments(ctx, job.AgentID, docs)
	case KnowledgeBasePlainText:
		return h.dispatcher.DispatchPlainText(ctx, job, form.FreeText)
	case KnowledgeBaseLinks:
		links := make([]ingest.Link, 0, len(form.Links))
		for _, l := range form.Links {
			links = append(links, ingest.Link{URL: l.URL, IsSPA: l.IsSPA})
		}
		return h.dispatcher.DispatchLinks(ctx, job, links)
	}
	return nil
}

func (h *Handler) respondIngestError(c *gin.Context, agentID string, err error) {
	h.logger.WithError(err).WithFields(logging.Fields{
		"agent_id": agentID,
	}).Error("Knowledge base ingestion failed")

	var apiErr *workflow.APIError
	if errors.As(err, &apiErr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "knowledge base ingestion failed"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "knowledge base ingestion failed"})
}

func (h *Handler) uploadAvatar(ctx context.Context, orgID string, form *Form) (string, error) {
	file, err := form.Avatar.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	key := storage.AvatarKey(orgID, form.Avatar.Filename)
	if err := h.objects.Upload(ctx, key, file, form.Avatar.Header.Get("Content-Type")); err != nil {
		return "", err
	}
	return key, nil
}

// presignAvatar fills AvatarURL from the stored key; failures only cost
// the URL, never the response.
func (h *Handler) presignAvatar(ctx context.Context, a *Agent) {
	if a.AvatarKey == "" {
		return
	}
	url, err := h.objects.GeneratePresignedGET(ctx, a.AvatarKey, storage.AvatarURLExpiry)
	if err != nil {
		h.logger.WithError(err).WithFields(logging.Fields{
			"agent_id": a.ID,
		}).Warn("Failed to presign avatar URL")
		return
	}
	a.AvatarURL = url
}

func (h *Handler) List(c *gin.Context) {
	orgID := c.GetString(string(ctxkeys.KeyOrganizationID))
	if orgID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing organization context"})
		return
	}

	agents, err := h.store.List(c.Request.Context(), orgID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list agents")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list agents"})
		return
	}
	for i := range agents {
		h.presignAvatar(c.Request.Context(), &agents[i])
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

func (h *Handler) Get(c *gin.Context) {
	orgID := c.GetString(string(ctxkeys.KeyOrganizationID))
	if orgID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing organization context"})
		return
	}

	a, err := h.store.Get(c.Request.Context(), c.Param("id"), orgID)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get agent")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get agent"})
		return
	}
	if a.KnowledgeBaseType == KnowledgeBaseDocuments {
		docs, err := h.store.DocumentsByAgent(c.Request.Context(), a.ID)
		if err != nil {
			h.logger.WithError(err).Error("Failed to list agent documents")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get agent"})
			return
		}
		a.Documents = docs
	}
	h.presignAvatar(c.Request.Context(), a)
	c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c *gin.Context) {
	orgID := c.GetString(string(ctxkeys.KeyOrganizationID))
	if orgID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing organization context"})
		return
	}

	err := h.deleter.Delete(c.Request.Context(), c.Param("id"), orgID)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to delete agent")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete agent"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.Create)
	r.GET("", h.List)
	r.GET("/:id", h.Get)
	r.PUT("/:id", h.Update)
	r.DELETE("/:id", h.Delete)
}
