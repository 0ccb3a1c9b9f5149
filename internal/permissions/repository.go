package permissions

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ratepro/backend/internal/models"
)

// Repository handles permissions, custom roles and direct assignments. It
// implements authz.PermissionSource.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a permissions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// HasPermission reports whether the user holds the named permission in the
// tenant, either through an active custom role or a direct assignment.
func (r *Repository) HasPermission(ctx context.Context, userID, tenantID uuid.UUID, permission string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM permission_assignments pa
			JOIN permissions p ON p.id = pa.permission_id
			WHERE pa.user_id = $1 AND pa.tenant_id = $2 AND p.name = $3
		) OR EXISTS (
			SELECT 1 FROM custom_roles cr
			JOIN users u ON u.id = $1
			JOIN permissions p ON p.name = $3
			WHERE cr.tenant_id = $2
			AND cr.is_active
			AND cr.permission_ids @> to_jsonb(p.id::text)
			AND u.custom_role_ids @> to_jsonb(cr.id::text)
		)`
	var ok bool
	err := r.pool.QueryRow(ctx, q, userID, tenantID, permission).Scan(&ok)
	return ok, err
}

// EffectivePermissions returns the distinct permission names the user holds
// in the tenant (custom roles plus direct assignments).
func (r *Repository) EffectivePermissions(ctx context.Context, userID, tenantID uuid.UUID) ([]string, error) {
	const q = `
		SELECT DISTINCT p.name FROM permissions p
		WHERE EXISTS (
			SELECT 1 FROM permission_assignments pa
			WHERE pa.permission_id = p.id AND pa.user_id = $1 AND pa.tenant_id = $2
		) OR EXISTS (
			SELECT 1 FROM custom_roles cr
			JOIN users u ON u.id = $1
			WHERE cr.tenant_id = $2
			AND cr.is_active
			AND cr.permission_ids @> to_jsonb(p.id::text)
			AND u.custom_role_ids @> to_jsonb(cr.id::text)
		)
		ORDER BY p.name`
	rows, err := r.pool.Query(ctx, q, userID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// ListPermissions returns the platform permission catalog.
func (r *Repository) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// CreateCustomRole inserts a tenant role; (tenant, name) is unique.
func (r *Repository) CreateCustomRole(ctx context.Context, role *models.CustomRole) error {
	ids, _ := json.Marshal(uuidsToStrings(role.PermissionIDs))
	const q = `INSERT INTO custom_roles (tenant_id, name, permission_ids, is_active)
		VALUES ($1, $2, $3, TRUE) RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, role.TenantID, role.Name, ids).
		Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
}

// UpdateCustomRole replaces name, permission set and active flag.
func (r *Repository) UpdateCustomRole(ctx context.Context, tenantID, roleID uuid.UUID, name string, permissionIDs []uuid.UUID, isActive bool) (bool, error) {
	ids, _ := json.Marshal(uuidsToStrings(permissionIDs))
	tag, err := r.pool.Exec(ctx,
		`UPDATE custom_roles SET name = $3, permission_ids = $4, is_active = $5, updated_at = NOW()
		 WHERE id = $2 AND tenant_id = $1`,
		tenantID, roleID, name, ids, isActive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteCustomRole removes a tenant role.
func (r *Repository) DeleteCustomRole(ctx context.Context, tenantID, roleID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM custom_roles WHERE id = $2 AND tenant_id = $1`, tenantID, roleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListCustomRoles returns the tenant's roles.
func (r *Repository) ListCustomRoles(ctx context.Context, tenantID uuid.UUID) ([]models.CustomRole, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, name, permission_ids, is_active, created_at, updated_at
		 FROM custom_roles WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.CustomRole
	for rows.Next() {
		var role models.CustomRole
		var raw []byte
		if err := rows.Scan(&role.ID, &role.TenantID, &role.Name, &raw, &role.IsActive,
			&role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		var ids []string
		_ = json.Unmarshal(raw, &ids)
		for _, s := range ids {
			if id, err := uuid.Parse(s); err == nil {
				role.PermissionIDs = append(role.PermissionIDs, id)
			}
		}
		list = append(list, role)
	}
	return list, rows.Err()
}

// CreateAssignment inserts a direct user-permission grant.
func (r *Repository) CreateAssignment(ctx context.Context, a *models.PermissionAssignment) error {
	const q = `INSERT INTO permission_assignments (user_id, permission_id, tenant_id)
		VALUES ($1, $2, $3) RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, a.UserID, a.PermissionID, a.TenantID).
		Scan(&a.ID, &a.CreatedAt)
}

// DeleteAssignment removes a direct grant.
func (r *Repository) DeleteAssignment(ctx context.Context, tenantID, assignmentID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM permission_assignments WHERE id = $2 AND tenant_id = $1`, tenantID, assignmentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func uuidsToStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
