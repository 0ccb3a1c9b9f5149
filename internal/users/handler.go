package users

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/middleware"
	"github.com/ratepro/backend/internal/models"
	"github.com/ratepro/backend/pkg/response"
	"github.com/ratepro/backend/pkg/utils"
)

// Handler handles tenant user administration.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// CreateRequest is the body for POST /users.
type CreateRequest struct {
	Email                       string      `json:"email" binding:"required,email"`
	Password                    string      `json:"password" binding:"required,min=8"`
	FullName                    string      `json:"full_name" binding:"required"`
	Role                        string      `json:"role" binding:"required,oneof=companyAdmin member"`
	DepartmentID                *uuid.UUID  `json:"department_id"`
	CrossDepartmentSurveyAccess bool        `json:"cross_department_survey_access"`
	CustomRoleIDs               []uuid.UUID `json:"custom_role_ids"`
}

// Create adds a user to the caller's tenant. Platform admin accounts can
// never be created through this endpoint.
func (h *Handler) Create(c *gin.Context) {
	p := middleware.Principal(c)
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	u := &models.User{
		TenantID:                    p.TenantID,
		Email:                       req.Email,
		Password:                    hash,
		FullName:                    req.FullName,
		Role:                        models.Role(req.Role),
		DepartmentID:                req.DepartmentID,
		CrossDepartmentSurveyAccess: req.CrossDepartmentSurveyAccess,
		CustomRoleIDs:               req.CustomRoleIDs,
		IsActive:                    true,
		IsVerified:                  true, // admin-created accounts skip email verification
	}
	if err := h.repo.Create(c.Request.Context(), u); err != nil {
		response.Conflict(c, "email already registered")
		return
	}
	response.Created(c, u.ToPublic())
}

// List returns the tenant's users with optional role/department filters.
func (h *Handler) List(c *gin.Context) {
	p := middleware.Principal(c)
	var deptID *uuid.UUID
	if raw := c.Query("department_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid department_id")
			return
		}
		deptID = &id
	}
	list, err := h.repo.List(c.Request.Context(), *p.TenantID, c.Query("role"), deptID)
	if err != nil {
		response.Internal(c, "failed to list users")
		return
	}
	out := make([]models.UserPublic, 0, len(list))
	for i := range list {
		out = append(out, list[i].ToPublic())
	}
	response.OK(c, out)
}

// Get returns one tenant user.
func (h *Handler) Get(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	u, err := h.repo.GetInTenant(c.Request.Context(), *p.TenantID, id)
	if err != nil {
		response.NotFound(c, "user not found")
		return
	}
	response.OK(c, u.ToPublic())
}

// UpdateRequest is the body for PUT /users/:id. All fields are optional.
type UpdateRequest struct {
	FullName                    *string      `json:"full_name"`
	Role                        *string      `json:"role"`
	DepartmentID                *uuid.UUID   `json:"department_id"`
	CrossDepartmentSurveyAccess *bool        `json:"cross_department_survey_access"`
	CustomRoleIDs               *[]uuid.UUID `json:"custom_role_ids"`
	IsActive                    *bool        `json:"is_active"`
}

// memberEditable lists the columns a member-level caller may change. Fields
// outside the projection are dropped silently, not rejected, so shared
// client forms keep working across roles.
var memberEditable = map[string]bool{
	"full_name": true,
	"is_active": true,
}

// Update edits a tenant user. The writable field set is keyed by the
// caller's role: companyAdmin edits everything, members only name and
// active flag.
func (h *Handler) Update(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	fields := map[string]interface{}{}
	if req.FullName != nil {
		fields["full_name"] = *req.FullName
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if req.Role != nil {
		if *req.Role != string(models.RoleCompanyAdmin) && *req.Role != string(models.RoleMember) {
			response.BadRequest(c, "invalid role")
			return
		}
		fields["role"] = *req.Role
	}
	if req.DepartmentID != nil {
		fields["department_id"] = *req.DepartmentID
	}
	if req.CrossDepartmentSurveyAccess != nil {
		fields["cross_department_survey_access"] = *req.CrossDepartmentSurveyAccess
	}
	if req.CustomRoleIDs != nil {
		ids, _ := json.Marshal(*req.CustomRoleIDs)
		fields["custom_role_ids"] = ids
	}

	if p.Role != models.RoleCompanyAdmin {
		for col := range fields {
			if !memberEditable[col] {
				delete(fields, col)
			}
		}
	}

	ok, err := h.repo.Update(c.Request.Context(), *p.TenantID, id, fields)
	if err != nil {
		response.Internal(c, "failed to update user")
		return
	}
	if !ok {
		response.NotFound(c, "user not found")
		return
	}
	u, err := h.repo.GetInTenant(c.Request.Context(), *p.TenantID, id)
	if err != nil {
		response.NotFound(c, "user not found")
		return
	}
	response.OK(c, u.ToPublic())
}

// Delete removes a tenant user. Self-deletion is rejected.
func (h *Handler) Delete(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	if id == p.UserID {
		response.BadRequest(c, "cannot delete your own account")
		return
	}
	ok, err := h.repo.Delete(c.Request.Context(), *p.TenantID, id)
	if err != nil {
		response.Internal(c, "failed to delete user")
		return
	}
	if !ok {
		response.NotFound(c, "user not found")
		return
	}
	response.NoContent(c)
}
