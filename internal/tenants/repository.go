package tenants

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ratepro/backend/internal/models"
)

// Repository handles tenant persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tenant repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const tenantColumns = `id, name, plan, feature_flags, is_active, created_at, updated_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	var flags []byte
	err := row.Scan(&t.ID, &t.Name, &t.Plan, &flags, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(flags) > 0 {
		_ = json.Unmarshal(flags, &t.FeatureFlags)
	}
	return &t, nil
}

// Create inserts a tenant.
func (r *Repository) Create(ctx context.Context, t *models.Tenant) error {
	flags, _ := json.Marshal(t.FeatureFlags)
	const q = `INSERT INTO tenants (name, plan, feature_flags, is_active)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, t.Name, t.Plan, flags, t.IsActive).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// GetByID returns one tenant.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
}

// List returns all tenants, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]models.Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// Update replaces the mutable tenant fields.
func (r *Repository) Update(ctx context.Context, t *models.Tenant) (bool, error) {
	flags, _ := json.Marshal(t.FeatureFlags)
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET name = $2, plan = $3, feature_flags = $4, is_active = $5, updated_at = NOW()
		 WHERE id = $1`,
		t.ID, t.Name, t.Plan, flags, t.IsActive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetActive flips the suspension flag.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Stats is a per-tenant usage summary for the platform overview.
type Stats struct {
	TenantID      uuid.UUID `json:"tenant_id"`
	UserCount     int       `json:"user_count"`
	SurveyCount   int       `json:"survey_count"`
	ResponseCount int       `json:"response_count"`
	ContactCount  int       `json:"contact_count"`
}

// GetStats counts a tenant's users, surveys, responses and contacts.
func (r *Repository) GetStats(ctx context.Context, id uuid.UUID) (*Stats, error) {
	const q = `SELECT
		(SELECT COUNT(*) FROM users WHERE tenant_id = $1),
		(SELECT COUNT(*) FROM surveys WHERE tenant_id = $1),
		(SELECT COUNT(*) FROM survey_responses WHERE tenant_id = $1),
		(SELECT COUNT(*) FROM contacts WHERE tenant_id = $1)`
	s := &Stats{TenantID: id}
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&s.UserCount, &s.SurveyCount, &s.ResponseCount, &s.ContactCount)
	if err != nil {
		return nil, err
	}
	return s, nil
}
