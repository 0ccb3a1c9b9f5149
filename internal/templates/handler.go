package templates

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/middleware"
	"github.com/ratepro/backend/pkg/response"
)

// Handler serves the tenant email template CRUD.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a template handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// TemplateRequest creates or updates a template.
type TemplateRequest struct {
	Name     string `json:"name" binding:"required,max=120"`
	Subject  string `json:"subject" binding:"required,max=255"`
	BodyHTML string `json:"body_html" binding:"required"`
}

// Create stores a new template.
func (h *Handler) Create(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p := middleware.Principal(c)
	t := &EmailTemplate{
		TenantID: *p.TenantID,
		Name:     req.Name,
		Subject:  req.Subject,
		BodyHTML: req.BodyHTML,
	}
	if err := h.repo.Create(c.Request.Context(), t); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			response.Conflict(c, "a template with this name already exists")
			return
		}
		h.logger.Error("create template", zap.Error(err))
		response.Internal(c, "failed to create template")
		return
	}
	response.Created(c, t)
}

// List returns the tenant's templates.
func (h *Handler) List(c *gin.Context) {
	p := middleware.Principal(c)
	list, err := h.repo.List(c.Request.Context(), *p.TenantID)
	if err != nil {
		h.logger.Error("list templates", zap.Error(err))
		response.Internal(c, "failed to list templates")
		return
	}
	if list == nil {
		list = []EmailTemplate{}
	}
	response.OK(c, list)
}

// Get returns one template.
func (h *Handler) Get(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid template id")
		return
	}
	t, err := h.repo.GetInTenant(c.Request.Context(), *p.TenantID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "template not found")
			return
		}
		h.logger.Error("get template", zap.Error(err))
		response.Internal(c, "failed to load template")
		return
	}
	response.OK(c, t)
}

// Update replaces a template's content.
func (h *Handler) Update(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid template id")
		return
	}
	t := &EmailTemplate{
		ID:       id,
		TenantID: *p.TenantID,
		Name:     req.Name,
		Subject:  req.Subject,
		BodyHTML: req.BodyHTML,
	}
	if err := h.repo.Update(c.Request.Context(), t); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			response.NotFound(c, "template not found")
		case errors.Is(err, ErrDuplicateName):
			response.Conflict(c, "a template with this name already exists")
		default:
			h.logger.Error("update template", zap.Error(err))
			response.Internal(c, "failed to update template")
		}
		return
	}
	response.OK(c, gin.H{"updated": true})
}

// Delete removes a template.
func (h *Handler) Delete(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid template id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), *p.TenantID, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "template not found")
			return
		}
		h.logger.Error("delete template", zap.Error(err))
		response.Internal(c, "failed to delete template")
		return
	}
	response.NoContent(c)
}
