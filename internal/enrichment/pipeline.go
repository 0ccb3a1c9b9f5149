package enrichment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/actions"
	"github.com/ratepro/backend/internal/models"
	"github.com/ratepro/backend/internal/notifications"
	"github.com/ratepro/backend/internal/surveys"
	"github.com/ratepro/backend/pkg/queue"
)

// ResponseSource loads and enriches responses. Implemented by the
// responses repository.
type ResponseSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.SurveyResponse, error)
	WriteAnalysis(ctx context.Context, id uuid.UUID, analysis *models.Analysis, dispatchedAt time.Time) (bool, error)
}

// ContactStats folds an enriched response into the contact's stats.
// Implemented by the contacts stats syncer.
type ContactStats interface {
	RecordResponse(ctx context.Context, tenantID, contactID uuid.UUID, score, rating *int, at time.Time) error
}

// SurveyAggregates folds an enriched response into the survey's rolling
// aggregates. Implemented by the survey aggregate updater.
type SurveyAggregates interface {
	RecordResponse(ctx context.Context, surveyID uuid.UUID, at time.Time) error
}

// Pipeline runs the asynchronous response enrichment: AI analysis,
// derivations, the conditional analysis write, the contact stats and
// survey aggregate updates, and the follow-up action plus notification
// fan-out for flagged responses. Stats and aggregates run here rather
// than on the request path, so the submitter's acknowledgement waits on
// nothing but the response write.
type Pipeline struct {
	responses     ResponseSource
	surveys       *surveys.Repository
	actions       *actions.Repository
	notifications *notifications.Repository
	hub           *notifications.Hub
	stats         ContactStats
	aggregates    SurveyAggregates
	ai            AIClient
	jobs          queue.Queue
	logger        *zap.Logger
}

// NewPipeline creates an enrichment pipeline.
func NewPipeline(responseSource ResponseSource, surveyRepo *surveys.Repository,
	actionRepo *actions.Repository, notificationRepo *notifications.Repository,
	hub *notifications.Hub, stats ContactStats, aggregates SurveyAggregates,
	ai AIClient, jobs queue.Queue, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		responses:     responseSource,
		surveys:       surveyRepo,
		actions:       actionRepo,
		notifications: notificationRepo,
		hub:           hub,
		stats:         stats,
		aggregates:    aggregates,
		ai:            ai,
		jobs:          jobs,
		logger:        logger,
	}
}

// ProcessEnrichment analyzes one response. Transient AI failures return an
// error so the worker retries with backoff, except on the final attempt,
// where the neutral analysis is written so the response never stays
// unanalyzed; unusable output falls back to neutral the same way.
func (p *Pipeline) ProcessEnrichment(ctx context.Context, payload queue.EnrichmentPayload, attempt int) error {
	resp, err := p.responses.GetByID(ctx, payload.ResponseID)
	if err != nil {
		return fmt.Errorf("load response: %w", err)
	}
	if resp.TenantID != payload.TenantID {
		p.logger.Warn("enrichment job tenant mismatch, dropping",
			zap.String("response_id", payload.ResponseID.String()))
		return nil
	}

	now := time.Now().UTC()
	result := NeutralResult()
	text := BuildText(resp)
	if len(text) >= minAnalyzableLen {
		raw, err := p.ai.Complete(ctx, Prompt(text))
		switch {
		case err != nil && attempt < queue.MaxRetries-1:
			return fmt.Errorf("ai completion: %w", err)
		case err != nil:
			// Final attempt: the job would go to the DLQ either way, so
			// settle the response on the neutral analysis.
			p.logger.Warn("ai unavailable on final attempt, using neutral analysis",
				zap.Error(err), zap.String("response_id", resp.ID.String()))
		default:
			if parsed, ok := ParseAIResult(raw); ok {
				result = parsed
			} else {
				p.logger.Warn("unparseable ai output, using neutral analysis",
					zap.String("response_id", resp.ID.String()))
			}
		}
	}

	analysis := Derive(result, resp, now)
	written, err := p.responses.WriteAnalysis(ctx, resp.ID, analysis, payload.DispatchedAt)
	if err != nil {
		return fmt.Errorf("write analysis: %w", err)
	}
	if !written {
		// A newer analysis is already in place; this was a redelivery and
		// the counters have already moved.
		return nil
	}

	p.recordSubmission(ctx, resp)

	if analysis.FlaggedForReview {
		err := p.jobs.Enqueue(ctx, queue.JobTypeActionGeneration, resp.TenantID, queue.ActionGenerationPayload{
			ResponseID: resp.ID,
			SurveyID:   resp.SurveyID,
			TenantID:   resp.TenantID,
		})
		if err != nil {
			p.logger.Error("enqueue action generation", zap.Error(err),
				zap.String("response_id", resp.ID.String()))
		}
	}
	return nil
}

// recordSubmission updates the contact stats and survey aggregates for a
// freshly enriched response. Both are denormalized caches repaired by
// cmd/reconcile, so failures are logged rather than failing the job; a
// retry would re-run the analysis write and double-count.
func (p *Pipeline) recordSubmission(ctx context.Context, resp *models.SurveyResponse) {
	if resp.ContactID != nil {
		err := p.stats.RecordResponse(ctx, resp.TenantID, *resp.ContactID, resp.Score, resp.Rating, resp.SubmittedAt)
		if err != nil {
			p.logger.Warn("sync contact stats", zap.Error(err),
				zap.String("response_id", resp.ID.String()))
		}
	}
	if err := p.aggregates.RecordResponse(ctx, resp.SurveyID, resp.SubmittedAt); err != nil {
		p.logger.Warn("update survey aggregates", zap.Error(err),
			zap.String("response_id", resp.ID.String()))
	}
}

// ProcessActionGeneration creates the follow-up action for a flagged
// response and notifies the survey's action owner(s).
func (p *Pipeline) ProcessActionGeneration(ctx context.Context, payload queue.ActionGenerationPayload) error {
	resp, err := p.responses.GetByID(ctx, payload.ResponseID)
	if err != nil {
		return fmt.Errorf("load response: %w", err)
	}
	if resp.Analysis == nil || !resp.Analysis.FlaggedForReview {
		return nil
	}
	survey, err := p.surveys.GetByID(ctx, payload.SurveyID)
	if err != nil {
		return fmt.Errorf("load survey: %w", err)
	}

	priority := models.PriorityMedium
	if resp.Analysis.Classification.IsComplaint {
		priority = models.PriorityHigh
	}

	assignee := survey.ActionManagerID
	if assignee == nil {
		assignee = survey.ResponsibleUserID
	}

	title := "Follow up on flagged response"
	if resp.Analysis.Classification.IsComplaint {
		title = "Resolve customer complaint"
	}
	action := &models.Action{
		TenantID:    resp.TenantID,
		Title:       fmt.Sprintf("%s: %s", title, survey.Title),
		Description: resp.Analysis.Summary,
		Priority:    priority,
		Status:      models.ActionPending,
		Category:    "customer-feedback",
		AssignedTo:  assignee,
		Metadata: models.ActionMetadata{
			SurveyID:   &survey.ID,
			ResponseID: &resp.ID,
		},
		AutoAssigned: assignee != nil,
	}
	if err := p.actions.Create(ctx, action); err != nil {
		return fmt.Errorf("create action: %w", err)
	}

	p.notify(ctx, survey, action)
	return nil
}

// notify fans the new-action notification out to the action manager and
// the assignee, once each.
func (p *Pipeline) notify(ctx context.Context, survey *models.Survey, action *models.Action) {
	targets := map[uuid.UUID]bool{}
	if survey.ActionManagerID != nil {
		targets[*survey.ActionManagerID] = true
	}
	if action.AssignedTo != nil {
		targets[*action.AssignedTo] = true
	}
	for userID := range targets {
		n := &models.Notification{
			UserID:   userID,
			TenantID: &action.TenantID,
			Type:     "action_created",
			Priority: notifyPriority(action.Priority),
			Title:    action.Title,
			Message:  "A response was flagged for review and a follow-up action was created.",
			Reference: &models.NotificationRef{
				Type: "action",
				ID:   action.ID,
			},
		}
		if err := p.notifications.Create(ctx, n); err != nil {
			p.logger.Warn("create notification", zap.Error(err), zap.String("user_id", userID.String()))
			continue
		}
		p.hub.Publish(n)
	}
}

func notifyPriority(actionPriority string) string {
	switch actionPriority {
	case models.PriorityHigh:
		return "critical"
	case models.PriorityMedium:
		return "warning"
	default:
		return "info"
	}
}
