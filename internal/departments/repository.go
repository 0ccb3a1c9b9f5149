package departments

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ratepro/backend/internal/models"
)

// Repository handles department persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a department repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a department; (tenant, name) is unique.
func (r *Repository) Create(ctx context.Context, d *models.Department) error {
	const q = `INSERT INTO departments (tenant_id, name)
		VALUES ($1, $2) RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, d.TenantID, d.Name).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

// List returns the tenant's departments.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID) ([]models.Department, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, name, created_at, updated_at
		 FROM departments WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Department
	for rows.Next() {
		var d models.Department
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Name, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// Rename updates a department name.
func (r *Repository) Rename(ctx context.Context, tenantID, id uuid.UUID, name string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE departments SET name = $3, updated_at = NOW() WHERE id = $2 AND tenant_id = $1`,
		tenantID, id, name)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes a department. Users and surveys referencing it keep a NULL
// department afterwards (FK is ON DELETE SET NULL).
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM departments WHERE id = $2 AND tenant_id = $1`, tenantID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
