package templates

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateName means the tenant already has a template by that name.
var ErrDuplicateName = errors.New("template name already in use")

// EmailTemplate is a tenant-owned reusable email body. Rendering happens
// at send time; this package only stores them.
type EmailTemplate struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	BodyHTML  string    `json:"body_html"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository persists email templates.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a template repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create stores a new template.
func (r *Repository) Create(ctx context.Context, t *EmailTemplate) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO email_templates (tenant_id, name, subject, body_html)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		t.TenantID, t.Name, t.Subject, t.BodyHTML).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	return err
}

// GetInTenant loads one template scoped to its tenant.
func (r *Repository) GetInTenant(ctx context.Context, tenantID, id uuid.UUID) (*EmailTemplate, error) {
	t := &EmailTemplate{}
	err := r.db.QueryRow(ctx,
		`SELECT id, tenant_id, name, subject, body_html, created_at, updated_at
		 FROM email_templates WHERE tenant_id = $1 AND id = $2`, tenantID, id).
		Scan(&t.ID, &t.TenantID, &t.Name, &t.Subject, &t.BodyHTML, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List returns the tenant's templates, newest first.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID) ([]EmailTemplate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, tenant_id, name, subject, body_html, created_at, updated_at
		 FROM email_templates WHERE tenant_id = $1 ORDER BY updated_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []EmailTemplate
	for rows.Next() {
		var t EmailTemplate
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Name, &t.Subject, &t.BodyHTML,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// Update replaces a template's content.
func (r *Repository) Update(ctx context.Context, t *EmailTemplate) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE email_templates SET name = $3, subject = $4, body_html = $5, updated_at = NOW()
		 WHERE tenant_id = $1 AND id = $2`,
		t.TenantID, t.ID, t.Name, t.Subject, t.BodyHTML)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes a template.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM email_templates WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
