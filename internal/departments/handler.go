package departments

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/middleware"
	"github.com/ratepro/backend/internal/models"
	"github.com/ratepro/backend/pkg/response"
)

// Handler handles tenant department endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a departments handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

type departmentRequest struct {
	Name string `json:"name" binding:"required"`
}

// Create adds a department to the caller's tenant.
func (h *Handler) Create(c *gin.Context) {
	p := middleware.Principal(c)
	var req departmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	d := &models.Department{TenantID: *p.TenantID, Name: req.Name}
	if err := h.repo.Create(c.Request.Context(), d); err != nil {
		response.Conflict(c, "department name already in use")
		return
	}
	response.Created(c, d)
}

// List returns the tenant's departments.
func (h *Handler) List(c *gin.Context) {
	p := middleware.Principal(c)
	list, err := h.repo.List(c.Request.Context(), *p.TenantID)
	if err != nil {
		response.Internal(c, "failed to list departments")
		return
	}
	response.OK(c, list)
}

// Rename updates a department name.
func (h *Handler) Rename(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid department id")
		return
	}
	var req departmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ok, err := h.repo.Rename(c.Request.Context(), *p.TenantID, id, req.Name)
	if err != nil {
		response.Internal(c, "failed to rename department")
		return
	}
	if !ok {
		response.NotFound(c, "department not found")
		return
	}
	response.OK(c, gin.H{"renamed": true})
}

// Delete removes a department.
func (h *Handler) Delete(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid department id")
		return
	}
	ok, err := h.repo.Delete(c.Request.Context(), *p.TenantID, id)
	if err != nil {
		response.Internal(c, "failed to delete department")
		return
	}
	if !ok {
		response.NotFound(c, "department not found")
		return
	}
	response.NoContent(c)
}
