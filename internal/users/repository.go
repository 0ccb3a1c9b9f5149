package users

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ratepro/backend/internal/models"
)

// Repository handles tenant user administration queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a users repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, tenant_id, email, password_hash, full_name, role, department_id,
	cross_department_survey_access, custom_role_ids, is_active, is_verified, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var roleIDs []byte
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Password, &u.FullName, &u.Role,
		&u.DepartmentID, &u.CrossDepartmentSurveyAccess, &roleIDs, &u.IsActive, &u.IsVerified,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(roleIDs) > 0 {
		_ = json.Unmarshal(roleIDs, &u.CustomRoleIDs)
	}
	return &u, nil
}

// Create inserts a tenant user.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	roleIDs, _ := json.Marshal(u.CustomRoleIDs)
	const q = `INSERT INTO users (tenant_id, email, password_hash, full_name, role, department_id,
		cross_department_survey_access, custom_role_ids, is_active, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, u.TenantID, u.Email, u.Password, u.FullName, string(u.Role),
		u.DepartmentID, u.CrossDepartmentSurveyAccess, roleIDs, u.IsActive, u.IsVerified).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

// GetInTenant returns a user only if it belongs to the tenant.
func (r *Repository) GetInTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND tenant_id = $2`, id, tenantID))
}

// List returns the tenant's users, optionally filtered by role or department.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, role string, departmentID *uuid.UUID) ([]models.User, error) {
	clauses := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	if role != "" {
		args = append(args, role)
		clauses = append(clauses, "role = $2")
	}
	if departmentID != nil {
		args = append(args, *departmentID)
		clauses = append(clauses, "department_id = $"+strconv.Itoa(len(args)))
	}
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *u)
	}
	return list, rows.Err()
}

// Update applies a prepared field map. Keys are column names; jsonb values
// are pre-marshalled. Returns false when the user is outside the tenant.
func (r *Repository) Update(ctx context.Context, tenantID, id uuid.UUID, fields map[string]interface{}) (bool, error) {
	if len(fields) == 0 {
		return true, nil
	}
	set := make([]string, 0, len(fields)+1)
	args := []interface{}{tenantID, id}
	for col, v := range fields {
		args = append(args, v)
		set = append(set, col+" = $"+strconv.Itoa(len(args)))
	}
	set = append(set, "updated_at = NOW()")
	q := `UPDATE users SET ` + strings.Join(set, ", ") + ` WHERE tenant_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes a tenant user.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM users WHERE id = $2 AND tenant_id = $1`, tenantID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
