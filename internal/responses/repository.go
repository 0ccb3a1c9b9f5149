package responses

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ratepro/backend/internal/models"
)

// Repository handles response persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a responses repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const responseColumns = `id, survey_id, tenant_id, contact_id, user_id, invite_id, answers,
	rating, score, review, completion_time, is_anonymous, status, resume_token, analysis,
	submitted_at, created_at`

func scanResponse(row pgx.Row) (*models.SurveyResponse, error) {
	var resp models.SurveyResponse
	var answers, analysis []byte
	var resumeToken *string
	err := row.Scan(&resp.ID, &resp.SurveyID, &resp.TenantID, &resp.ContactID, &resp.UserID,
		&resp.InviteID, &answers, &resp.Rating, &resp.Score, &resp.Review, &resp.CompletionTime,
		&resp.IsAnonymous, &resp.Status, &resumeToken, &analysis, &resp.SubmittedAt, &resp.CreatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(answers, &resp.Answers)
	if len(analysis) > 0 && string(analysis) != "null" {
		_ = json.Unmarshal(analysis, &resp.Analysis)
	}
	if resumeToken != nil {
		resp.ResumeToken = *resumeToken
	}
	return &resp, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Create inserts a response row (partial or submitted).
func (r *Repository) Create(ctx context.Context, resp *models.SurveyResponse) error {
	return insertResponse(ctx, r.pool, resp)
}

func insertResponse(ctx context.Context, db rowQuerier, resp *models.SurveyResponse) error {
	answers, _ := json.Marshal(resp.Answers)
	var resumeToken *string
	if resp.ResumeToken != "" {
		resumeToken = &resp.ResumeToken
	}
	const q = `INSERT INTO survey_responses (survey_id, tenant_id, contact_id, user_id, invite_id,
		answers, rating, score, review, completion_time, is_anonymous, status, resume_token, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at`
	return db.QueryRow(ctx, q, resp.SurveyID, resp.TenantID, resp.ContactID, resp.UserID,
		resp.InviteID, answers, resp.Rating, resp.Score, resp.Review, resp.CompletionTime,
		resp.IsAnonymous, resp.Status, resumeToken, resp.SubmittedAt).
		Scan(&resp.ID, &resp.CreatedAt)
}

// GetByResumeToken loads a partial response by its resume token.
func (r *Repository) GetByResumeToken(ctx context.Context, token string) (*models.SurveyResponse, error) {
	return scanResponse(r.pool.QueryRow(ctx,
		`SELECT `+responseColumns+` FROM survey_responses WHERE resume_token = $1`, token))
}

// UpdateDraftAnswers replaces a partial response's answers, optionally
// finalizing it. Finalizing clears the resume token; the sparse unique
// index then stops guarding it.
func (r *Repository) UpdateDraftAnswers(ctx context.Context, resp *models.SurveyResponse, finalize bool) error {
	answers, _ := json.Marshal(resp.Answers)
	status := models.ResponsePartial
	var resumeToken *string
	if resp.ResumeToken != "" {
		resumeToken = &resp.ResumeToken
	}
	if finalize {
		status = models.ResponseSubmitted
		resumeToken = nil
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE survey_responses SET answers = $2, rating = $3, score = $4, review = $5,
		 completion_time = $6, status = $7, resume_token = $8, submitted_at = $9
		 WHERE id = $1 AND status = 'partial'`,
		resp.ID, answers, resp.Rating, resp.Score, resp.Review, resp.CompletionTime,
		status, resumeToken, resp.SubmittedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	resp.Status = status
	return nil
}

// GetInTenant returns a response only if it belongs to the tenant.
func (r *Repository) GetInTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.SurveyResponse, error) {
	return scanResponse(r.pool.QueryRow(ctx,
		`SELECT `+responseColumns+` FROM survey_responses WHERE id = $1 AND tenant_id = $2`,
		id, tenantID))
}

// GetByID returns a response without scoping; for pipeline use.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.SurveyResponse, error) {
	return scanResponse(r.pool.QueryRow(ctx,
		`SELECT `+responseColumns+` FROM survey_responses WHERE id = $1`, id))
}

// ListOptions filter the response listing.
type ListOptions struct {
	SurveyID    *uuid.UUID
	Status      string
	Sentiment   string
	NPSCategory string
	Flagged     *bool
	HasContact  *bool
	IsAnonymous *bool
	RatingMin   *int
	RatingMax   *int
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// filter renders the WHERE clause and its arguments for the options.
func (opts ListOptions) filter(tenantID uuid.UUID) (string, []interface{}) {
	clauses := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	add := func(clause string, v interface{}) {
		args = append(args, v)
		clauses = append(clauses, strings.Replace(clause, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if opts.SurveyID != nil {
		add("survey_id = ?", *opts.SurveyID)
	}
	if opts.Status != "" {
		add("status = ?", opts.Status)
	}
	if opts.Sentiment != "" {
		add("analysis->>'sentiment' = ?", opts.Sentiment)
	}
	if opts.NPSCategory != "" {
		add("analysis->>'nps_category' = ?", opts.NPSCategory)
	}
	if opts.Flagged != nil {
		add("COALESCE((analysis->>'flagged_for_review')::boolean, FALSE) = ?", *opts.Flagged)
	}
	if opts.HasContact != nil {
		if *opts.HasContact {
			clauses = append(clauses, "contact_id IS NOT NULL")
		} else {
			clauses = append(clauses, "contact_id IS NULL")
		}
	}
	if opts.IsAnonymous != nil {
		add("is_anonymous = ?", *opts.IsAnonymous)
	}
	if opts.RatingMin != nil {
		add("rating >= ?", *opts.RatingMin)
	}
	if opts.RatingMax != nil {
		add("rating <= ?", *opts.RatingMax)
	}
	if opts.From != nil {
		add("submitted_at >= ?", *opts.From)
	}
	if opts.To != nil {
		add("submitted_at < ?", *opts.To)
	}
	return strings.Join(clauses, " AND "), args
}

// List returns tenant responses, newest first, with filters and paging.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, opts ListOptions) ([]models.SurveyResponse, int, error) {
	where, args := opts.filter(tenantID)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM survey_responses WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	args = append(args, opts.Limit, opts.Offset)
	n := len(args)
	q := `SELECT ` + responseColumns + ` FROM survey_responses WHERE ` + where +
		` ORDER BY submitted_at DESC LIMIT $` + strconv.Itoa(n-1) + ` OFFSET $` + strconv.Itoa(n)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []models.SurveyResponse
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *resp)
	}
	return list, total, rows.Err()
}

// WriteAnalysis stores the enrichment result. The write is conditional on
// the stored analysis being absent or older than the dispatch time, which
// makes redelivered jobs idempotent.
func (r *Repository) WriteAnalysis(ctx context.Context, id uuid.UUID, analysis *models.Analysis, dispatchedAt time.Time) (bool, error) {
	doc, _ := json.Marshal(analysis)
	tag, err := r.pool.Exec(ctx,
		`UPDATE survey_responses SET analysis = $2, analysis_analyzed_at = $3
		 WHERE id = $1 AND (analysis_analyzed_at IS NULL OR analysis_analyzed_at < $4)`,
		id, doc, analysis.AnalyzedAt, dispatchedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
