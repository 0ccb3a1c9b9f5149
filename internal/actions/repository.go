package actions

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ratepro/backend/internal/authz"
	"github.com/ratepro/backend/internal/models"
)

// Repository handles action persistence. List queries take the caller's
// action filter so actions tied to invisible surveys are never fetched.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an actions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const actionColumns = `id, tenant_id, title, description, priority, status, category, due_date,
	assigned_to, metadata, auto_assigned, completed_at, created_at, updated_at`

func scanAction(row pgx.Row) (*models.Action, error) {
	var a models.Action
	var metadata []byte
	err := row.Scan(&a.ID, &a.TenantID, &a.Title, &a.Description, &a.Priority, &a.Status,
		&a.Category, &a.DueDate, &a.AssignedTo, &metadata, &a.AutoAssigned, &a.CompletedAt,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(metadata, &a.Metadata)
	return &a, nil
}

// Create inserts an action.
func (r *Repository) Create(ctx context.Context, a *models.Action) error {
	metadata, _ := json.Marshal(a.Metadata)
	const q = `INSERT INTO actions (tenant_id, title, description, priority, status, category,
		due_date, assigned_to, metadata, auto_assigned)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, a.TenantID, a.Title, a.Description, a.Priority, a.Status,
		a.Category, a.DueDate, a.AssignedTo, metadata, a.AutoAssigned).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// GetInTenant returns one action scoped to the tenant.
func (r *Repository) GetInTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Action, error) {
	return scanAction(r.pool.QueryRow(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE id = $1 AND tenant_id = $2`, id, tenantID))
}

// ListOptions filter the action listing.
type ListOptions struct {
	Status     string
	Priority   string
	AssignedTo *uuid.UUID
	Limit      int
	Offset     int
}

// List returns the actions visible under the caller's filter.
func (r *Repository) List(ctx context.Context, f authz.Filter, opts ListOptions) ([]models.Action, error) {
	clauses := []string{"(" + f.SQL + ")"}
	args := append([]interface{}{}, f.Args...)
	add := func(clause string, v interface{}) {
		args = append(args, v)
		clauses = append(clauses, strings.Replace(clause, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if opts.Status != "" {
		add("status = ?", opts.Status)
	}
	if opts.Priority != "" {
		add("priority = ?", opts.Priority)
	}
	if opts.AssignedTo != nil {
		add("assigned_to = ?", *opts.AssignedTo)
	}
	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	args = append(args, opts.Limit, opts.Offset)
	n := len(args)
	q := `SELECT ` + actionColumns + ` FROM actions WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(n-1) + ` OFFSET $` + strconv.Itoa(n)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// Update replaces the mutable fields. Resolving stamps completedAt once;
// reopening clears it.
func (r *Repository) Update(ctx context.Context, a *models.Action) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE actions SET title = $3, description = $4, priority = $5, status = $6,
		 category = $7, due_date = $8, assigned_to = $9,
		 completed_at = CASE
			WHEN $6 = 'resolved' THEN COALESCE(completed_at, NOW())
			ELSE NULL
		 END,
		 updated_at = NOW()
		 WHERE id = $2 AND tenant_id = $1`,
		a.TenantID, a.ID, a.Title, a.Description, a.Priority, a.Status,
		a.Category, a.DueDate, a.AssignedTo)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Assign sets the assignee.
func (r *Repository) Assign(ctx context.Context, tenantID, id uuid.UUID, assigneeID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE actions SET assigned_to = $3, status = CASE WHEN status = 'pending' THEN 'open' ELSE status END,
		 updated_at = NOW() WHERE id = $2 AND tenant_id = $1`,
		tenantID, id, assigneeID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes an action.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM actions WHERE id = $2 AND tenant_id = $1`, tenantID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DashboardFacts are the raw numbers the analytics dashboard derives its
// action widgets from.
type DashboardFacts struct {
	OpenByPriority  map[string]int
	Overdue         int
	Resolved        int
	ResolvedOnTime  int
	AvgResolveHours *float64
}

// Dashboard aggregates the tenant's actions for the dashboard view.
func (r *Repository) Dashboard(ctx context.Context, tenantID uuid.UUID) (*DashboardFacts, error) {
	facts := &DashboardFacts{OpenByPriority: map[string]int{}}

	rows, err := r.pool.Query(ctx,
		`SELECT priority, COUNT(*) FROM actions
		 WHERE tenant_id = $1 AND status != 'resolved' GROUP BY priority`, tenantID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var priority string
		var count int
		if err := rows.Scan(&priority, &count); err != nil {
			rows.Close()
			return nil, err
		}
		facts.OpenByPriority[priority] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE status != 'resolved' AND due_date IS NOT NULL AND due_date < NOW()),
			COUNT(*) FILTER (WHERE status = 'resolved'),
			COUNT(*) FILTER (WHERE status = 'resolved' AND (due_date IS NULL OR completed_at <= due_date)),
			AVG(EXTRACT(EPOCH FROM (completed_at - created_at)) / 3600) FILTER (WHERE completed_at IS NOT NULL)
		 FROM actions WHERE tenant_id = $1`, tenantID).
		Scan(&facts.Overdue, &facts.Resolved, &facts.ResolvedOnTime, &facts.AvgResolveHours)
	if err != nil {
		return nil, err
	}
	return facts, nil
}

// OverdueBefore lists unresolved actions whose due date passed, for alerting.
func (r *Repository) OverdueBefore(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]models.Action, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+actionColumns+` FROM actions
		 WHERE tenant_id = $1 AND status != 'resolved' AND due_date IS NOT NULL AND due_date < $2
		 ORDER BY due_date`, tenantID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}
