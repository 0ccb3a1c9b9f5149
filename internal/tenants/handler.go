package tenants

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/models"
	"github.com/ratepro/backend/pkg/response"
)

// Handler handles the platform-scoped tenant endpoints. Routing attaches the
// platform scope gate; by the time these run the caller is a platform admin.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a tenants handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// CreateRequest is the body for POST /platform/tenants.
type CreateRequest struct {
	Name         string          `json:"name" binding:"required"`
	Plan         string          `json:"plan"`
	FeatureFlags map[string]bool `json:"feature_flags"`
}

// Create provisions a tenant.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Plan == "" {
		req.Plan = "free"
	}
	t := &models.Tenant{
		Name:         req.Name,
		Plan:         req.Plan,
		FeatureFlags: req.FeatureFlags,
		IsActive:     true,
	}
	if err := h.repo.Create(c.Request.Context(), t); err != nil {
		h.logger.Error("create tenant", zap.Error(err))
		response.Internal(c, "failed to create tenant")
		return
	}
	response.Created(c, t)
}

// List returns tenants with limit/offset paging.
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	list, err := h.repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		response.Internal(c, "failed to list tenants")
		return
	}
	response.OK(c, list)
}

// Get returns one tenant.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tenant id")
		return
	}
	t, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "tenant not found")
			return
		}
		response.Internal(c, "failed to load tenant")
		return
	}
	response.OK(c, t)
}

// UpdateRequest is the body for PUT /platform/tenants/:id.
type UpdateRequest struct {
	Name         string          `json:"name" binding:"required"`
	Plan         string          `json:"plan" binding:"required"`
	FeatureFlags map[string]bool `json:"feature_flags"`
	IsActive     *bool           `json:"is_active"`
}

// Update replaces the mutable tenant fields.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tenant id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	t := &models.Tenant{
		ID:           id,
		Name:         req.Name,
		Plan:         req.Plan,
		FeatureFlags: req.FeatureFlags,
		IsActive:     active,
	}
	ok, err := h.repo.Update(c.Request.Context(), t)
	if err != nil {
		response.Internal(c, "failed to update tenant")
		return
	}
	if !ok {
		response.NotFound(c, "tenant not found")
		return
	}
	response.OK(c, gin.H{"updated": true})
}

// Suspend deactivates a tenant; its users fail login until reactivated.
func (h *Handler) Suspend(c *gin.Context) {
	h.setActive(c, false)
}

// Activate reactivates a suspended tenant.
func (h *Handler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

func (h *Handler) setActive(c *gin.Context, active bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tenant id")
		return
	}
	ok, err := h.repo.SetActive(c.Request.Context(), id, active)
	if err != nil {
		response.Internal(c, "failed to update tenant")
		return
	}
	if !ok {
		response.NotFound(c, "tenant not found")
		return
	}
	response.OK(c, gin.H{"is_active": active})
}

// Stats returns a tenant usage summary.
func (h *Handler) Stats(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tenant id")
		return
	}
	s, err := h.repo.GetStats(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load tenant stats")
		return
	}
	response.OK(c, s)
}
