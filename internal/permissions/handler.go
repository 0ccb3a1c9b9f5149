package permissions

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/middleware"
	"github.com/ratepro/backend/internal/models"
	"github.com/ratepro/backend/pkg/response"
)

// Handler handles the permission catalog, custom roles and assignments.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a permissions handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// ListPermissions returns the platform permission catalog.
func (h *Handler) ListPermissions(c *gin.Context) {
	list, err := h.repo.ListPermissions(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list permissions")
		return
	}
	response.OK(c, list)
}

// MyPermissions returns the caller's effective permission names.
func (h *Handler) MyPermissions(c *gin.Context) {
	p := middleware.Principal(c)
	if p == nil || p.TenantID == nil {
		response.OK(c, []string{})
		return
	}
	names, err := h.repo.EffectivePermissions(c.Request.Context(), p.UserID, *p.TenantID)
	if err != nil {
		response.Internal(c, "failed to resolve permissions")
		return
	}
	if names == nil {
		names = []string{}
	}
	response.OK(c, names)
}

// CustomRoleRequest is the body for role create/update.
type CustomRoleRequest struct {
	Name          string      `json:"name" binding:"required"`
	PermissionIDs []uuid.UUID `json:"permission_ids"`
	IsActive      *bool       `json:"is_active"`
}

// CreateCustomRole creates a tenant custom role.
func (h *Handler) CreateCustomRole(c *gin.Context) {
	p := middleware.Principal(c)
	var req CustomRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	role := &models.CustomRole{
		TenantID:      *p.TenantID,
		Name:          req.Name,
		PermissionIDs: req.PermissionIDs,
		IsActive:      true,
	}
	if err := h.repo.CreateCustomRole(c.Request.Context(), role); err != nil {
		response.Conflict(c, "role name already in use")
		return
	}
	response.Created(c, role)
}

// UpdateCustomRole replaces a role's name, permission set and active flag.
func (h *Handler) UpdateCustomRole(c *gin.Context) {
	p := middleware.Principal(c)
	roleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid role id")
		return
	}
	var req CustomRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	ok, err := h.repo.UpdateCustomRole(c.Request.Context(), *p.TenantID, roleID, req.Name, req.PermissionIDs, active)
	if err != nil {
		response.Internal(c, "failed to update role")
		return
	}
	if !ok {
		response.NotFound(c, "role not found")
		return
	}
	response.OK(c, gin.H{"updated": true})
}

// DeleteCustomRole removes a tenant role.
func (h *Handler) DeleteCustomRole(c *gin.Context) {
	p := middleware.Principal(c)
	roleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid role id")
		return
	}
	ok, err := h.repo.DeleteCustomRole(c.Request.Context(), *p.TenantID, roleID)
	if err != nil {
		response.Internal(c, "failed to delete role")
		return
	}
	if !ok {
		response.NotFound(c, "role not found")
		return
	}
	response.NoContent(c)
}

// ListCustomRoles returns the tenant's custom roles.
func (h *Handler) ListCustomRoles(c *gin.Context) {
	p := middleware.Principal(c)
	list, err := h.repo.ListCustomRoles(c.Request.Context(), *p.TenantID)
	if err != nil {
		response.Internal(c, "failed to list roles")
		return
	}
	response.OK(c, list)
}

// AssignmentRequest is the body for a direct permission grant.
type AssignmentRequest struct {
	UserID       uuid.UUID `json:"user_id" binding:"required"`
	PermissionID uuid.UUID `json:"permission_id" binding:"required"`
}

// CreateAssignment grants a permission directly to a user.
func (h *Handler) CreateAssignment(c *gin.Context) {
	p := middleware.Principal(c)
	var req AssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	a := &models.PermissionAssignment{
		UserID:       req.UserID,
		PermissionID: req.PermissionID,
		TenantID:     *p.TenantID,
	}
	if err := h.repo.CreateAssignment(c.Request.Context(), a); err != nil {
		response.Conflict(c, "assignment already exists")
		return
	}
	response.Created(c, a)
}

// DeleteAssignment revokes a direct grant.
func (h *Handler) DeleteAssignment(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid assignment id")
		return
	}
	ok, err := h.repo.DeleteAssignment(c.Request.Context(), *p.TenantID, id)
	if err != nil {
		response.Internal(c, "failed to revoke assignment")
		return
	}
	if !ok {
		response.NotFound(c, "assignment not found")
		return
	}
	response.NoContent(c)
}
