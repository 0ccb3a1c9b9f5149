package surveys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/authz"
	"github.com/ratepro/backend/internal/invites"
	"github.com/ratepro/backend/internal/middleware"
	"github.com/ratepro/backend/internal/models"
	"github.com/ratepro/backend/pkg/queue"
	"github.com/ratepro/backend/pkg/response"
	"github.com/ratepro/backend/pkg/utils"
)

// InviteStats records invite deliveries on contact stats. Implemented by
// the contacts stats syncer.
type InviteStats interface {
	RecordInvite(ctx context.Context, tenantID, contactID uuid.UUID, at time.Time) error
}

// Handler handles survey lifecycle endpoints.
type Handler struct {
	repo     *Repository
	engine   *authz.Engine
	resolver *AudienceResolver
	registry *invites.Registry
	stats    InviteStats
	jobs     queue.Queue
	proofs   *ProofSigner
	baseURL  string
	logger   *zap.Logger
}

// NewHandler creates a surveys handler.
func NewHandler(repo *Repository, engine *authz.Engine, resolver *AudienceResolver,
	registry *invites.Registry, stats InviteStats, jobs queue.Queue,
	proofs *ProofSigner, baseURL string, logger *zap.Logger) *Handler {
	return &Handler{
		repo:     repo,
		engine:   engine,
		resolver: resolver,
		registry: registry,
		stats:    stats,
		jobs:     jobs,
		proofs:   proofs,
		baseURL:  baseURL,
		logger:   logger,
	}
}

// SurveyRequest is the body for survey create/update.
type SurveyRequest struct {
	Title             string                   `json:"title" binding:"required"`
	Description       string                   `json:"description"`
	DepartmentID      *uuid.UUID               `json:"department_id"`
	Questions         []models.Question        `json:"questions"`
	TargetAudience    models.TargetAudience    `json:"target_audience"`
	ActionManagerID   *uuid.UUID               `json:"action_manager_id"`
	ResponsibleUserID *uuid.UUID               `json:"responsible_user_id"`
	ActionPermissions models.ActionPermissions `json:"action_permissions"`
	Password          string                   `json:"password"`
	ScheduledStartAt  *time.Time               `json:"scheduled_start_at"`
	ScheduledEndAt    *time.Time               `json:"scheduled_end_at"`
}

func (req *SurveyRequest) toModel(tenantID uuid.UUID) (*models.Survey, error) {
	s := &models.Survey{
		TenantID:          tenantID,
		DepartmentID:      req.DepartmentID,
		Title:             req.Title,
		Description:       req.Description,
		Questions:         req.Questions,
		TargetAudience:    req.TargetAudience,
		ActionManagerID:   req.ActionManagerID,
		ResponsibleUserID: req.ResponsibleUserID,
		ActionPermissions: req.ActionPermissions,
		ScheduledStartAt:  req.ScheduledStartAt,
		ScheduledEndAt:    req.ScheduledEndAt,
	}
	if req.Password != "" {
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		s.PasswordHash = hash
	}
	return s, nil
}

// Create adds a draft survey. Members without a department cannot create
// surveys; the department defaults to the creator's.
func (h *Handler) Create(c *gin.Context) {
	p := middleware.Principal(c)
	var req SurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	s, err := req.toModel(*p.TenantID)
	if err != nil {
		response.Internal(c, "failed to create survey")
		return
	}
	if p.Role == models.RoleMember {
		if p.DepartmentID == nil {
			response.Forbidden(c, response.CodeSurveyActionDenied, "members need a department to create surveys")
			return
		}
		if s.DepartmentID == nil {
			s.DepartmentID = p.DepartmentID
		}
	}
	if err := h.repo.Create(c.Request.Context(), s); err != nil {
		h.logger.Error("create survey", zap.Error(err))
		response.Internal(c, "failed to create survey")
		return
	}
	response.Created(c, s)
}

// List returns the surveys visible to the caller.
func (h *Handler) List(c *gin.Context) {
	p := middleware.Principal(c)
	f := h.engine.SurveyFilter(p, "", 1)
	list, err := h.repo.List(c.Request.Context(), f, c.Query("status"))
	if err != nil {
		response.Internal(c, "failed to list surveys")
		return
	}
	response.OK(c, list)
}

// loadVisible fetches a survey under the caller's filter, answering 404
// for anything out of scope.
func (h *Handler) loadVisible(c *gin.Context) (*models.Survey, bool) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid survey id")
		return nil, false
	}
	f := h.engine.SurveyFilter(p, "", 2)
	s, err := h.repo.GetVisible(c.Request.Context(), id, f)
	if err != nil {
		response.NotFound(c, "survey not found")
		return nil, false
	}
	return s, true
}

// Get returns one visible survey.
func (h *Handler) Get(c *gin.Context) {
	s, ok := h.loadVisible(c)
	if !ok {
		return
	}
	response.OK(c, s)
}

// Update edits a draft. Editing past draft is rejected; clients republish
// to change live questions.
func (h *Handler) Update(c *gin.Context) {
	s, ok := h.loadVisible(c)
	if !ok {
		return
	}
	var req SurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	upd, err := req.toModel(s.TenantID)
	if err != nil {
		response.Internal(c, "failed to update survey")
		return
	}
	upd.ID = s.ID
	if upd.PasswordHash == "" {
		upd.PasswordHash = s.PasswordHash
	}
	if err := h.repo.UpdateDraft(c.Request.Context(), upd); err != nil {
		if errors.Is(err, ErrNotDraft) {
			response.Conflict(c, "only draft surveys can be edited")
			return
		}
		response.Internal(c, "failed to update survey")
		return
	}
	response.OK(c, gin.H{"updated": true})
}

// Delete removes a survey with its invites and responses.
func (h *Handler) Delete(c *gin.Context) {
	s, ok := h.loadVisible(c)
	if !ok {
		return
	}
	if _, err := h.repo.Delete(c.Request.Context(), s.TenantID, s.ID); err != nil {
		response.Internal(c, "failed to delete survey")
		return
	}
	response.NoContent(c)
}

// Activate re-opens a previously published survey for submissions.
func (h *Handler) Activate(c *gin.Context) {
	s, ok := h.loadVisible(c)
	if !ok {
		return
	}
	if s.Snapshot == nil {
		response.Conflict(c, "survey has never been published")
		return
	}
	if _, err := h.repo.SetStatus(c.Request.Context(), s.TenantID, s.ID, models.SurveyActive); err != nil {
		response.Internal(c, "failed to activate survey")
		return
	}
	response.OK(c, gin.H{"status": models.SurveyActive})
}

// Deactivate stops accepting submissions.
func (h *Handler) Deactivate(c *gin.Context) {
	s, ok := h.loadVisible(c)
	if !ok {
		return
	}
	if _, err := h.repo.SetStatus(c.Request.Context(), s.TenantID, s.ID, models.SurveyInactive); err != nil {
		response.Internal(c, "failed to deactivate survey")
		return
	}
	response.OK(c, gin.H{"status": models.SurveyInactive})
}

// Publish locks the questions into an immutable snapshot, bumps the
// version, activates the survey and fans out invites to the resolved
// audience. Individual invite failures are logged and skipped; the publish
// itself never rolls back on them.
func (h *Handler) Publish(c *gin.Context) {
	s, ok := h.loadVisible(c)
	if !ok {
		return
	}
	if len(s.Questions) == 0 {
		response.BadRequest(c, "cannot publish a survey without questions")
		return
	}
	ctx := c.Request.Context()
	now := time.Now().UTC()

	snap := &models.PublishedSnapshot{
		Questions: s.Questions,
		Version:   s.Version + 1,
		LockedAt:  now,
	}
	if err := h.repo.Publish(ctx, s.TenantID, s.ID, snap); err != nil {
		response.Internal(c, "failed to publish survey")
		return
	}

	recipients, err := h.resolver.Resolve(ctx, s.TenantID, s.TargetAudience)
	if err != nil {
		h.logger.Error("resolve audience", zap.Error(err), zap.String("survey_id", s.ID.String()))
		response.OK(c, gin.H{"version": snap.Version, "invites_sent": 0})
		return
	}

	sent := 0
	for _, rcpt := range recipients {
		inv, err := h.registry.Mint(ctx, s.ID, s.TenantID, rcpt.ContactID, rcpt.Ref)
		if err != nil {
			h.logger.Error("mint invite", zap.Error(err), zap.String("survey_id", s.ID.String()))
			continue
		}
		if rcpt.ContactID != nil {
			if err := h.stats.RecordInvite(ctx, s.TenantID, *rcpt.ContactID, now); err != nil {
				h.logger.Warn("record invite stats", zap.Error(err))
			}
		}
		link := fmt.Sprintf("%s/s/%s", h.baseURL, inv.Token)
		err = h.jobs.Enqueue(ctx, queue.JobTypeEmail, s.TenantID, queue.EmailPayload{
			TenantID:       &s.TenantID,
			RecipientEmail: rcpt.Ref.Email,
			Subject:        s.Title,
			BodyHTML:       fmt.Sprintf("<p>You are invited to share your feedback: <a href=%q>%s</a></p>", link, s.Title),
			EmailType:      "survey_invite",
		})
		if err != nil {
			h.logger.Error("enqueue invite email", zap.Error(err))
			continue
		}
		sent++
	}
	response.OK(c, gin.H{"version": snap.Version, "invites_sent": sent})
}

// ListInvites returns a survey's invites.
func (h *Handler) ListInvites(c *gin.Context) {
	s, ok := h.loadVisible(c)
	if !ok {
		return
	}
	list, err := h.registry.ListBySurvey(c.Request.Context(), s.TenantID, s.ID)
	if err != nil {
		response.Internal(c, "failed to list invites")
		return
	}
	response.OK(c, list)
}

// VerifyPassword exchanges a survey password for a submission proof. The
// endpoint is public; responses reveal nothing beyond match/no-match.
func (h *Handler) VerifyPassword(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid survey id")
		return
	}
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	s, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil || s.PasswordHash == "" || !utils.CheckPassword(req.Password, s.PasswordHash) {
		response.Unauthorized(c, "invalid password")
		return
	}
	response.OK(c, gin.H{"proof": h.proofs.Sign(s.ID)})
}
