package surveys

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/models"
)

// AggregateUpdater maintains the rolling per-survey aggregates on submit
// and recomputes them wholesale during reconciliation.
type AggregateUpdater struct {
	repo   *Repository
	logger *zap.Logger
}

// NewAggregateUpdater creates an aggregate updater.
func NewAggregateUpdater(repo *Repository, logger *zap.Logger) *AggregateUpdater {
	return &AggregateUpdater{repo: repo, logger: logger}
}

// RecordResponse folds one submitted response into the survey's counters
// and recomputes the derived analytics from the full response set. The
// recompute keeps the aggregates self-correcting under races; losing one
// bump costs accuracy, not correctness.
func (u *AggregateUpdater) RecordResponse(ctx context.Context, surveyID uuid.UUID, at time.Time) error {
	facts, err := u.repo.SubmittedFacts(ctx, surveyID)
	if err != nil {
		return err
	}
	analytics := computeAnalytics(facts)
	return u.repo.BumpAggregates(ctx, surveyID, at, &analytics)
}

// Reconcile recounts every survey's aggregates from its responses. Run as
// a batch (cmd/reconcile) to repair drift from lost bumps.
func (u *AggregateUpdater) Reconcile(ctx context.Context) error {
	ids, err := u.repo.AllIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		facts, err := u.repo.SubmittedFacts(ctx, id)
		if err != nil {
			return err
		}
		analytics := computeAnalytics(facts)
		var last *time.Time
		if len(facts) > 0 {
			t := facts[len(facts)-1].SubmittedAt
			last = &t
		}
		if err := u.repo.WriteAggregates(ctx, id, len(facts), last, &analytics); err != nil {
			return err
		}
		u.logger.Info("reconciled survey aggregates",
			zap.String("survey_id", id.String()), zap.Int("responses", len(facts)))
	}
	return nil
}

// computeAnalytics derives npsScore and avgCompletionTime from the
// submitted response facts. Empty inputs leave both nil.
func computeAnalytics(facts []ResponseFacts) models.SurveyAnalytics {
	var analytics models.SurveyAnalytics

	promoters, detractors, valid := 0, 0, 0
	timeSum, timeCount := 0, 0
	for _, f := range facts {
		if f.Score != nil && *f.Score >= 0 && *f.Score <= 10 {
			valid++
			switch models.NPSCategoryForScore(*f.Score) {
			case models.NPSPromoter:
				promoters++
			case models.NPSDetractor:
				detractors++
			}
		}
		if f.CompletionTime != nil && *f.CompletionTime > 0 {
			timeSum += *f.CompletionTime
			timeCount++
		}
	}
	if valid > 0 {
		nps := round2(100 * float64(promoters-detractors) / float64(valid))
		analytics.NPSScore = &nps
	}
	if timeCount > 0 {
		avg := round2(float64(timeSum) / float64(timeCount))
		analytics.AvgCompletionTime = &avg
	}
	return analytics
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
