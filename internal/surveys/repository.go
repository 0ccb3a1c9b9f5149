package surveys

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ratepro/backend/internal/authz"
	"github.com/ratepro/backend/internal/models"
)

// ErrNotDraft is returned when editing a survey past the draft state.
var ErrNotDraft = errors.New("survey is not a draft")

// Repository handles survey persistence. List and visible-get queries take
// an authorization filter so out-of-scope rows are never fetched.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a survey repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const surveyColumns = `id, tenant_id, department_id, title, description, status, version,
	questions, published_snapshot, target_audience, action_manager_id, responsible_user_id,
	action_permissions, password_hash, scheduled_start_at, scheduled_end_at,
	total_responses, last_response_at, analytics, created_at, updated_at`

func scanSurvey(row pgx.Row) (*models.Survey, error) {
	var s models.Survey
	var questions, snapshot, audience, actionPerms, analytics []byte
	err := row.Scan(&s.ID, &s.TenantID, &s.DepartmentID, &s.Title, &s.Description, &s.Status,
		&s.Version, &questions, &snapshot, &audience, &s.ActionManagerID, &s.ResponsibleUserID,
		&actionPerms, &s.PasswordHash, &s.ScheduledStartAt, &s.ScheduledEndAt,
		&s.TotalResponses, &s.LastResponseAt, &analytics, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(questions, &s.Questions)
	if len(snapshot) > 0 && string(snapshot) != "null" {
		_ = json.Unmarshal(snapshot, &s.Snapshot)
	}
	_ = json.Unmarshal(audience, &s.TargetAudience)
	_ = json.Unmarshal(actionPerms, &s.ActionPermissions)
	_ = json.Unmarshal(analytics, &s.Analytics)
	return &s, nil
}

// Create inserts a draft survey.
func (r *Repository) Create(ctx context.Context, s *models.Survey) error {
	questions, _ := json.Marshal(s.Questions)
	audience, _ := json.Marshal(s.TargetAudience)
	actionPerms, _ := json.Marshal(s.ActionPermissions)
	const q = `INSERT INTO surveys (tenant_id, department_id, title, description, status, questions,
		target_audience, action_manager_id, responsible_user_id, action_permissions, password_hash,
		scheduled_start_at, scheduled_end_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.TenantID, s.DepartmentID, s.Title, s.Description,
		string(models.SurveyDraft), questions, audience, s.ActionManagerID, s.ResponsibleUserID,
		actionPerms, s.PasswordHash, s.ScheduledStartAt, s.ScheduledEndAt).
		Scan(&s.ID, &s.Version, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns a survey without scoping; for internal pipeline use only.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Survey, error) {
	return scanSurvey(r.pool.QueryRow(ctx,
		`SELECT `+surveyColumns+` FROM surveys WHERE id = $1`, id))
}

// GetVisible returns a survey only when it matches the caller's filter.
// Absence and invisibility are indistinguishable.
func (r *Repository) GetVisible(ctx context.Context, id uuid.UUID, f authz.Filter) (*models.Survey, error) {
	args := append([]interface{}{id}, f.Args...)
	return scanSurvey(r.pool.QueryRow(ctx,
		`SELECT `+surveyColumns+` FROM surveys WHERE id = $1 AND `+f.SQL, args...))
}

// List returns the surveys visible under the filter, optionally narrowed
// by status.
func (r *Repository) List(ctx context.Context, f authz.Filter, status string) ([]models.Survey, error) {
	q := `SELECT ` + surveyColumns + ` FROM surveys WHERE ` + f.SQL
	args := append([]interface{}{}, f.Args...)
	if status != "" {
		args = append(args, status)
		q += ` AND status = $` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Survey
	for rows.Next() {
		s, err := scanSurvey(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// UpdateDraft replaces the editable fields. Only drafts may be edited; the
// status predicate enforces that atomically.
func (r *Repository) UpdateDraft(ctx context.Context, s *models.Survey) error {
	questions, _ := json.Marshal(s.Questions)
	audience, _ := json.Marshal(s.TargetAudience)
	actionPerms, _ := json.Marshal(s.ActionPermissions)
	tag, err := r.pool.Exec(ctx,
		`UPDATE surveys SET title = $3, description = $4, department_id = $5, questions = $6,
		 target_audience = $7, action_manager_id = $8, responsible_user_id = $9,
		 action_permissions = $10, password_hash = $11, scheduled_start_at = $12,
		 scheduled_end_at = $13, updated_at = NOW()
		 WHERE id = $2 AND tenant_id = $1 AND status = 'draft'`,
		s.TenantID, s.ID, s.Title, s.Description, s.DepartmentID, questions, audience,
		s.ActionManagerID, s.ResponsibleUserID, actionPerms, s.PasswordHash,
		s.ScheduledStartAt, s.ScheduledEndAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotDraft
	}
	return nil
}

// SetStatus transitions the lifecycle state.
func (r *Repository) SetStatus(ctx context.Context, tenantID, id uuid.UUID, status models.SurveyStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE surveys SET status = $3, updated_at = NOW() WHERE id = $2 AND tenant_id = $1`,
		tenantID, id, string(status))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Publish locks the current questions into the snapshot, bumps the version
// and activates the survey.
func (r *Repository) Publish(ctx context.Context, tenantID, id uuid.UUID, snap *models.PublishedSnapshot) error {
	doc, _ := json.Marshal(snap)
	tag, err := r.pool.Exec(ctx,
		`UPDATE surveys SET published_snapshot = $3, version = $4, status = 'active', updated_at = NOW()
		 WHERE id = $2 AND tenant_id = $1`,
		tenantID, id, doc, snap.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes a survey and, by cascade, its invites and responses.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM surveys WHERE id = $2 AND tenant_id = $1`, tenantID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// BumpAggregates applies one submitted response to the rolling aggregates.
func (r *Repository) BumpAggregates(ctx context.Context, id uuid.UUID, at time.Time, analytics *models.SurveyAnalytics) error {
	doc, _ := json.Marshal(analytics)
	_, err := r.pool.Exec(ctx,
		`UPDATE surveys SET total_responses = total_responses + 1, last_response_at = $2,
		 analytics = $3, updated_at = NOW() WHERE id = $1`,
		id, at, doc)
	return err
}

// WriteAggregates overwrites the aggregates from a full recount.
func (r *Repository) WriteAggregates(ctx context.Context, id uuid.UUID, total int, last *time.Time, analytics *models.SurveyAnalytics) error {
	doc, _ := json.Marshal(analytics)
	_, err := r.pool.Exec(ctx,
		`UPDATE surveys SET total_responses = $2, last_response_at = $3, analytics = $4,
		 updated_at = NOW() WHERE id = $1`,
		id, total, last, doc)
	return err
}

// AllIDs returns every survey id, for reconciliation.
func (r *Repository) AllIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM surveys ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ResponseFacts are the per-response numbers aggregates derive from.
type ResponseFacts struct {
	Score          *int
	CompletionTime *int
	SubmittedAt    time.Time
}

// SubmittedFacts returns the facts for every submitted response of a survey.
func (r *Repository) SubmittedFacts(ctx context.Context, surveyID uuid.UUID) ([]ResponseFacts, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT score, completion_time, submitted_at FROM survey_responses
		 WHERE survey_id = $1 AND status = 'submitted' ORDER BY submitted_at`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var facts []ResponseFacts
	for rows.Next() {
		var f ResponseFacts
		if err := rows.Scan(&f.Score, &f.CompletionTime, &f.SubmittedAt); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
