package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ratepro/backend/internal/models"
)

// Repository reads the response and action facts the engine aggregates.
// Every query is tenant-scoped by construction.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates an analytics repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// FactQuery scopes a fact fetch.
type FactQuery struct {
	TenantID uuid.UUID
	SurveyID *uuid.UUID
	From     time.Time
	To       time.Time
}

// Facts loads the submitted responses matching the query, flattened for
// aggregation. Partial drafts are excluded.
func (r *Repository) Facts(ctx context.Context, q FactQuery) ([]Fact, error) {
	sql := `SELECT survey_id, submitted_at, score, rating, completion_time, analysis
		FROM survey_responses
		WHERE tenant_id = $1 AND status = 'submitted'
		  AND submitted_at >= $2 AND submitted_at < $3`
	args := []interface{}{q.TenantID, q.From, q.To}
	if q.SurveyID != nil {
		sql += " AND survey_id = $4"
		args = append(args, *q.SurveyID)
	}
	sql += " ORDER BY submitted_at"

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query response facts: %w", err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		var analysisRaw []byte
		if err := rows.Scan(&f.SurveyID, &f.SubmittedAt, &f.Score, &f.Rating,
			&f.CompletionTime, &analysisRaw); err != nil {
			return nil, fmt.Errorf("scan response fact: %w", err)
		}
		if len(analysisRaw) > 0 {
			var a models.Analysis
			if err := json.Unmarshal(analysisRaw, &a); err == nil {
				f.Sentiment = a.Sentiment
				f.Keywords = a.Keywords
				f.Themes = a.Themes
				f.Emotions = a.Emotions
				f.IsComplaint = a.Classification.IsComplaint
				f.IsPraise = a.Classification.IsPraise
				f.IsSuggestion = a.Classification.IsSuggestion
				f.Flagged = a.FlaggedForReview
			}
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// ActionCountsByCategory counts actions created in the window, grouped by
// category.
func (r *Repository) ActionCountsByCategory(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `SELECT category, COUNT(*)
		FROM actions
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY category`, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query action categories: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scan action category: %w", err)
		}
		counts[category] = n
	}
	return counts, rows.Err()
}

// SurveyRef names a survey in heatmap and breakdown payloads.
type SurveyRef struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

// SurveysWithResponses lists the tenant's surveys that have submitted
// responses in the window.
func (r *Repository) SurveysWithResponses(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]SurveyRef, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT s.id, s.title
		FROM surveys s
		JOIN survey_responses sr ON sr.survey_id = s.id
		WHERE s.tenant_id = $1 AND sr.status = 'submitted'
		  AND sr.submitted_at >= $2 AND sr.submitted_at < $3
		ORDER BY s.title`, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query surveys with responses: %w", err)
	}
	defer rows.Close()

	var refs []SurveyRef
	for rows.Next() {
		var ref SurveyRef
		if err := rows.Scan(&ref.ID, &ref.Title); err != nil {
			return nil, fmt.Errorf("scan survey ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
