package responses

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/authz"
	"github.com/ratepro/backend/internal/invites"
	"github.com/ratepro/backend/internal/middleware"
	"github.com/ratepro/backend/internal/models"
	"github.com/ratepro/backend/internal/surveys"
	"github.com/ratepro/backend/pkg/response"
)

// Handler handles the public submission endpoints and the tenant-scoped
// response views.
type Handler struct {
	ingestor *Ingestor
	repo     *Repository
	surveys  *surveys.Repository
	registry *invites.Registry
	engine   *authz.Engine
	logger   *zap.Logger
}

// NewHandler creates a responses handler.
func NewHandler(ingestor *Ingestor, repo *Repository, surveyRepo *surveys.Repository,
	registry *invites.Registry, engine *authz.Engine, logger *zap.Logger) *Handler {
	return &Handler{
		ingestor: ingestor,
		repo:     repo,
		surveys:  surveyRepo,
		registry: registry,
		engine:   engine,
		logger:   logger,
	}
}

// SubmitRequest is the body for public submissions and partial saves.
type SubmitRequest struct {
	SurveyID       *uuid.UUID      `json:"survey_id"`
	InviteToken    string          `json:"invite_token"`
	ResumeToken    string          `json:"resume_token"`
	PasswordProof  string          `json:"password_proof"`
	Answers        []models.Answer `json:"answers"`
	Rating         *int            `json:"rating"`
	Score          *int            `json:"score"`
	Review         string          `json:"review"`
	CompletionTime *int            `json:"completion_time"`
	IsAnonymous    bool            `json:"is_anonymous"`
	Partial        bool            `json:"partial"`
}

func (req *SubmitRequest) toInput() (SubmitInput, error) {
	in := SubmitInput{
		InviteToken:    req.InviteToken,
		ResumeToken:    req.ResumeToken,
		PasswordProof:  req.PasswordProof,
		Answers:        req.Answers,
		Rating:         req.Rating,
		Score:          req.Score,
		Review:         req.Review,
		CompletionTime: req.CompletionTime,
		IsAnonymous:    req.IsAnonymous,
		Partial:        req.Partial,
	}
	if req.SurveyID != nil {
		in.SurveyID = *req.SurveyID
	}
	if in.InviteToken == "" && in.SurveyID == uuid.Nil {
		return in, errors.New("survey_id or invite_token is required")
	}
	return in, nil
}

// Submit accepts a public submission or partial save.
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	in, err := req.toInput()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	// Authenticated users submitting to their own tenant's surveys are
	// recorded as such; the endpoint itself stays public.
	if p := middleware.Principal(c); p != nil {
		in.UserID = &p.UserID
	}
	resp, err := h.ingestor.Submit(c.Request.Context(), in)
	if err != nil {
		h.abortSubmit(c, err)
		return
	}
	out := gin.H{"id": resp.ID, "status": resp.Status}
	if resp.Status == models.ResponsePartial {
		out["resume_token"] = resp.ResumeToken
	}
	response.Created(c, out)
}

func (h *Handler) abortSubmit(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.ValidationFailed(c, verr.Fields)
	case errors.Is(err, invites.ErrInvalidToken), errors.Is(err, ErrInvalidResumeToken):
		response.NotFound(c, "not found")
	case errors.Is(err, invites.ErrAlreadyResponded):
		response.Conflict(c, "this invite has already been used")
	case errors.Is(err, ErrSurveyClosed), errors.Is(err, ErrNotPublished):
		response.Conflict(c, "survey is not accepting responses")
	case errors.Is(err, ErrPasswordRequired):
		response.Unauthorized(c, "survey password verification required")
	default:
		h.logger.Error("submit response", zap.Error(err))
		response.Internal(c, "failed to submit response")
	}
}

// ValidateInvite resolves an invite token into the survey snapshot so the
// client can render the form. The recipient identity is not exposed.
func (h *Handler) ValidateInvite(c *gin.Context) {
	inv, err := h.registry.Validate(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, invites.ErrAlreadyResponded) {
			response.Conflict(c, "this invite has already been used")
			return
		}
		response.NotFound(c, "not found")
		return
	}
	survey, err := h.surveys.GetByID(c.Request.Context(), inv.SurveyID)
	if err != nil || survey.Snapshot == nil {
		response.NotFound(c, "not found")
		return
	}
	response.OK(c, gin.H{
		"survey_id":         survey.ID,
		"title":             survey.Title,
		"description":       survey.Description,
		"questions":         survey.Snapshot.Questions,
		"version":           survey.Snapshot.Version,
		"password_required": survey.PasswordHash != "",
		"accepting":         survey.AcceptsSubmissions(time.Now().UTC()),
	})
}

// Resume returns the saved partial answers for a resume token.
func (h *Handler) Resume(c *gin.Context) {
	resp, err := h.ingestor.Resume(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.NotFound(c, "not found")
		return
	}
	response.OK(c, gin.H{
		"survey_id": resp.SurveyID,
		"answers":   resp.Answers,
		"status":    resp.Status,
	})
}

// listOptions parses the shared query filters.
func listOptions(c *gin.Context) (ListOptions, error) {
	var opts ListOptions
	if raw := c.Query("survey_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return opts, errors.New("invalid survey_id")
		}
		opts.SurveyID = &id
	}
	opts.Status = c.Query("status")
	opts.Sentiment = c.Query("sentiment")
	opts.NPSCategory = c.Query("nps_category")
	if raw := c.Query("flagged"); raw != "" {
		flagged := raw == "true"
		opts.Flagged = &flagged
	}
	if raw := c.Query("has_contact"); raw != "" {
		hasContact := raw == "true"
		opts.HasContact = &hasContact
	}
	if raw := c.Query("anonymous"); raw != "" {
		anonymous := raw == "true"
		opts.IsAnonymous = &anonymous
	}
	if raw := c.Query("rating_min"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return opts, errors.New("invalid rating_min")
		}
		opts.RatingMin = &v
	}
	if raw := c.Query("rating_max"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return opts, errors.New("invalid rating_max")
		}
		opts.RatingMax = &v
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, errors.New("invalid from timestamp")
		}
		opts.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, errors.New("invalid to timestamp")
		}
		opts.To = &t
	}
	opts.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	opts.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return opts, nil
}

// respondentView augments a response with its derived respondent type.
type respondentView struct {
	models.SurveyResponse
	RespondentType string `json:"respondent_type"`
}

func viewList(list []models.SurveyResponse) []respondentView {
	out := make([]respondentView, 0, len(list))
	for i := range list {
		out = append(out, respondentView{list[i], list[i].RespondentType()})
	}
	return out
}

// List returns the tenant's responses with filters. When a survey filter
// is given, visibility of that survey is checked first so cross-scope
// probes read as absence.
func (h *Handler) List(c *gin.Context) {
	p := middleware.Principal(c)
	opts, err := listOptions(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if opts.SurveyID != nil {
		f := h.engine.SurveyFilter(p, "", 2)
		if _, err := h.surveys.GetVisible(c.Request.Context(), *opts.SurveyID, f); err != nil {
			response.NotFound(c, "not found")
			return
		}
	}
	list, total, err := h.repo.List(c.Request.Context(), *p.TenantID, opts)
	if err != nil {
		response.Internal(c, "failed to list responses")
		return
	}
	response.OK(c, gin.H{"responses": viewList(list), "total": total})
}

// Flagged returns responses flagged for review.
func (h *Handler) Flagged(c *gin.Context) {
	p := middleware.Principal(c)
	opts, err := listOptions(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	flagged := true
	opts.Flagged = &flagged
	list, total, err := h.repo.List(c.Request.Context(), *p.TenantID, opts)
	if err != nil {
		response.Internal(c, "failed to list flagged responses")
		return
	}
	response.OK(c, gin.H{"responses": viewList(list), "total": total})
}

// Get returns one response with its analysis.
func (h *Handler) Get(c *gin.Context) {
	p := middleware.Principal(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid response id")
		return
	}
	resp, err := h.repo.GetInTenant(c.Request.Context(), *p.TenantID, id)
	if err != nil {
		response.NotFound(c, "response not found")
		return
	}
	response.OK(c, respondentView{*resp, resp.RespondentType()})
}
