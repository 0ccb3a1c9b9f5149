package actions

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/authz"
	"github.com/ratepro/backend/internal/middleware"
	"github.com/ratepro/backend/internal/models"
	"github.com/ratepro/backend/internal/surveys"
	"github.com/ratepro/backend/pkg/response"
)

// Handler handles follow-up action endpoints.
type Handler struct {
	repo    *Repository
	surveys *surveys.Repository
	engine  *authz.Engine
	logger  *zap.Logger
}

// NewHandler creates an actions handler.
func NewHandler(repo *Repository, surveyRepo *surveys.Repository, engine *authz.Engine, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, surveys: surveyRepo, engine: engine, logger: logger}
}

// ActionRequest is the body for action create/update.
type ActionRequest struct {
	Title       string                `json:"title" binding:"required"`
	Description string                `json:"description"`
	Priority    string                `json:"priority" binding:"omitempty,oneof=high medium low long-term"`
	Status      string                `json:"status" binding:"omitempty,oneof=pending open in-progress resolved"`
	Category    string                `json:"category"`
	DueDate     *time.Time            `json:"due_date"`
	AssignedTo  *uuid.UUID            `json:"assigned_to"`
	Metadata    models.ActionMetadata `json:"metadata"`
}

// Create adds a manual action.
func (h *Handler) Create(c *gin.Context) {
	p := middleware.Principal(c)
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if req.Status == "" {
		req.Status = models.ActionPending
	}
	a := &models.Action{
		TenantID:    *p.TenantID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
		Category:    req.Category,
		DueDate:     req.DueDate,
		AssignedTo:  req.AssignedTo,
		Metadata:    req.Metadata,
	}
	if err := h.repo.Create(c.Request.Context(), a); err != nil {
		h.logger.Error("create action", zap.Error(err))
		response.Internal(c, "failed to create action")
		return
	}
	response.Created(c, a)
}

// List returns the actions visible to the caller.
func (h *Handler) List(c *gin.Context) {
	p := middleware.Principal(c)
	var assignedTo *uuid.UUID
	if raw := c.Query("assigned_to"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid assigned_to")
			return
		}
		assignedTo = &id
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	f := h.engine.ActionFilter(p, "", 1)
	list, err := h.repo.List(c.Request.Context(), f, ListOptions{
		Status:     c.Query("status"),
		Priority:   c.Query("priority"),
		AssignedTo: assignedTo,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		response.Internal(c, "failed to list actions")
		return
	}
	response.OK(c, list)
}

// Get returns one action.
func (h *Handler) Get(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid action id")
		return
	}
	a, err := h.repo.GetInTenant(c.Request.Context(), *p.TenantID, id)
	if err != nil {
		response.NotFound(c, "action not found")
		return
	}
	response.OK(c, a)
}

// Update replaces the mutable action fields.
func (h *Handler) Update(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid action id")
		return
	}
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	existing, err := h.repo.GetInTenant(c.Request.Context(), *p.TenantID, id)
	if err != nil {
		response.NotFound(c, "action not found")
		return
	}
	a := &models.Action{
		ID:          existing.ID,
		TenantID:    *p.TenantID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    orDefault(req.Priority, existing.Priority),
		Status:      orDefault(req.Status, existing.Status),
		Category:    req.Category,
		DueDate:     req.DueDate,
		AssignedTo:  req.AssignedTo,
	}
	if _, err := h.repo.Update(c.Request.Context(), a); err != nil {
		response.Internal(c, "failed to update action")
		return
	}
	response.OK(c, gin.H{"updated": true})
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// Assign sets the action's assignee behind the survey assignment gate:
// the originating survey's action manager, cross-department principals and
// explicitly allowed assigners only.
func (h *Handler) Assign(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid action id")
		return
	}
	var req struct {
		AssigneeID uuid.UUID `json:"assignee_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	a, err := h.repo.GetInTenant(c.Request.Context(), *p.TenantID, id)
	if err != nil {
		response.NotFound(c, "action not found")
		return
	}

	target := &authz.Target{TenantID: &a.TenantID}
	if a.Metadata.SurveyID != nil {
		s, err := h.surveys.GetByID(c.Request.Context(), *a.Metadata.SurveyID)
		if err != nil {
			response.NotFound(c, "action not found")
			return
		}
		target.TenantID = &s.TenantID
		target.DepartmentID = s.DepartmentID
		target.ActionManagerID = s.ActionManagerID
		target.ActionPermissions = &s.ActionPermissions
	}
	route := authz.Route{Action: "surveyAction:assign", Scope: authz.ScopeTenant, SurveyScoped: a.Metadata.SurveyID != nil}
	if err := h.engine.AuthorizeAssign(c.Request.Context(), p, route, target); err != nil {
		middleware.AbortAuthz(c, err)
		return
	}

	if _, err := h.repo.Assign(c.Request.Context(), *p.TenantID, id, req.AssigneeID); err != nil {
		response.Internal(c, "failed to assign action")
		return
	}
	response.OK(c, gin.H{"assigned_to": req.AssigneeID})
}

// Delete removes an action.
func (h *Handler) Delete(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid action id")
		return
	}
	ok, err := h.repo.Delete(c.Request.Context(), *p.TenantID, id)
	if err != nil {
		response.Internal(c, "failed to delete action")
		return
	}
	if !ok {
		response.NotFound(c, "action not found")
		return
	}
	response.NoContent(c)
}
