package responses

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/models"
	"github.com/ratepro/backend/internal/surveys"
	"github.com/ratepro/backend/pkg/queue"
	"github.com/ratepro/backend/pkg/utils"
)

// Ingestion errors surfaced to the public endpoints.
var (
	ErrSurveyClosed       = errors.New("survey is not accepting submissions")
	ErrPasswordRequired   = errors.New("survey password verification required")
	ErrNotPublished       = errors.New("survey has no published snapshot")
	ErrInvalidResumeToken = errors.New("invalid resume token")
)

// SurveySource loads the survey a submission targets.
type SurveySource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Survey, error)
}

// InviteSource resolves invite tokens into their invites.
type InviteSource interface {
	Validate(ctx context.Context, token string) (*models.SurveyInvite, error)
}

// Store persists submissions. CreateWithInvite must consume the invite and
// insert the response atomically, failing with invites.ErrAlreadyResponded
// when the invite was already consumed; the production implementation is
// SubmissionStore.
type Store interface {
	Create(ctx context.Context, resp *models.SurveyResponse) error
	CreateWithInvite(ctx context.Context, resp *models.SurveyResponse, inviteID uuid.UUID, at time.Time) error
	GetByResumeToken(ctx context.Context, token string) (*models.SurveyResponse, error)
	UpdateDraftAnswers(ctx context.Context, resp *models.SurveyResponse, finalize bool) error
}

// Ingestor is the single entry point for survey submissions, identified or
// anonymous. It owns validation, persistence, invite consumption and the
// post-commit enrichment hand-off. Contact stats and survey aggregates are
// downstream of enrichment, never of the request.
type Ingestor struct {
	surveys SurveySource
	invites InviteSource
	store   Store
	proofs  *surveys.ProofSigner
	jobs    queue.Queue
	logger  *zap.Logger
}

// NewIngestor creates a response ingestor.
func NewIngestor(surveySource SurveySource, inviteSource InviteSource, store Store,
	proofs *surveys.ProofSigner, jobs queue.Queue, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		surveys: surveySource,
		invites: inviteSource,
		store:   store,
		proofs:  proofs,
		jobs:    jobs,
		logger:  logger,
	}
}

// SubmitInput carries one submission or partial save.
type SubmitInput struct {
	SurveyID       uuid.UUID
	InviteToken    string
	ResumeToken    string
	PasswordProof  string
	Answers        []models.Answer
	Rating         *int
	Score          *int
	Review         string
	CompletionTime *int
	IsAnonymous    bool
	UserID         *uuid.UUID
	Partial        bool
}

// Submit validates and persists a submission. Identified submissions
// consume their invite and insert the response in one transaction; under
// concurrent use of the same token exactly one submission persists a row,
// the rest fail before writing anything. Enrichment is enqueued after the
// response is durable and its failure never fails the submission.
func (ing *Ingestor) Submit(ctx context.Context, in SubmitInput) (*models.SurveyResponse, error) {
	now := time.Now().UTC()

	var invite *models.SurveyInvite
	if in.InviteToken != "" {
		inv, err := ing.invites.Validate(ctx, in.InviteToken)
		if err != nil {
			return nil, err
		}
		invite = inv
		in.SurveyID = inv.SurveyID
	}

	survey, err := ing.surveys.GetByID(ctx, in.SurveyID)
	if err != nil {
		return nil, ErrSurveyClosed
	}
	if !survey.AcceptsSubmissions(now) {
		return nil, ErrSurveyClosed
	}
	if survey.Snapshot == nil {
		return nil, ErrNotPublished
	}
	if survey.PasswordHash != "" && !ing.proofs.Verify(survey.ID, in.PasswordProof) {
		return nil, ErrPasswordRequired
	}
	if err := ValidateAnswers(survey.Snapshot, in.Answers, in.Partial); err != nil {
		return nil, err
	}

	resp := &models.SurveyResponse{
		SurveyID:       survey.ID,
		TenantID:       survey.TenantID,
		UserID:         in.UserID,
		Answers:        in.Answers,
		Rating:         in.Rating,
		Score:          in.Score,
		Review:         in.Review,
		CompletionTime: in.CompletionTime,
		IsAnonymous:    in.IsAnonymous,
		Status:         models.ResponseSubmitted,
		SubmittedAt:    now,
	}
	if invite != nil {
		resp.InviteID = &invite.ID
		resp.ContactID = invite.ContactID
	}
	if in.Partial {
		resp.Status = models.ResponsePartial
		token, err := utils.NewOpaqueToken(32)
		if err != nil {
			return nil, err
		}
		resp.ResumeToken = token
	}

	switch {
	case in.ResumeToken != "":
		if err := ing.resume(ctx, in, resp); err != nil {
			return nil, err
		}
	case invite != nil && resp.Status == models.ResponseSubmitted:
		if err := ing.store.CreateWithInvite(ctx, resp, invite.ID, now); err != nil {
			return nil, err
		}
	default:
		if err := ing.store.Create(ctx, resp); err != nil {
			return nil, err
		}
	}

	if resp.Status != models.ResponseSubmitted {
		return resp, nil
	}
	ing.afterSubmit(ctx, resp, now)
	return resp, nil
}

// resume folds the input into an existing partial response.
func (ing *Ingestor) resume(ctx context.Context, in SubmitInput, resp *models.SurveyResponse) error {
	prev, err := ing.store.GetByResumeToken(ctx, in.ResumeToken)
	if err != nil || prev.SurveyID != resp.SurveyID {
		return ErrInvalidResumeToken
	}
	resp.ID = prev.ID
	resp.ContactID = prev.ContactID
	resp.InviteID = prev.InviteID
	if in.Partial {
		resp.ResumeToken = in.ResumeToken
	}
	return ing.store.UpdateDraftAnswers(ctx, resp, !in.Partial)
}

// afterSubmit hands the durable response off to enrichment. Contact stats
// and survey aggregates follow from the enrichment step, so the only
// post-commit work here is the enqueue; its failure is logged, never
// surfaced.
func (ing *Ingestor) afterSubmit(ctx context.Context, resp *models.SurveyResponse, now time.Time) {
	err := ing.jobs.Enqueue(ctx, queue.JobTypeEnrichment, resp.TenantID, queue.EnrichmentPayload{
		ResponseID:   resp.ID,
		TenantID:     resp.TenantID,
		DispatchedAt: now,
	})
	if err != nil {
		ing.logger.Error("enqueue enrichment", zap.Error(err), zap.String("response_id", resp.ID.String()))
	}
}

// Resume returns the saved partial state for a resume token.
func (ing *Ingestor) Resume(ctx context.Context, token string) (*models.SurveyResponse, error) {
	resp, err := ing.store.GetByResumeToken(ctx, token)
	if err != nil {
		return nil, ErrInvalidResumeToken
	}
	return resp, nil
}
