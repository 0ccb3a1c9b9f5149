package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ratepro/backend/internal/models"
)

// ErrDuplicateEmail is returned when a contact with the email already
// exists in the tenant.
var ErrDuplicateEmail = errors.New("contact email already exists")

// Repository handles contact and category persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a contacts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const contactColumns = `id, tenant_id, email, full_name, phone, categories, tags, auto_tags,
	enrichment, survey_stats, stats_version, created_at, updated_at`

func scanContact(row pgx.Row) (*models.Contact, error) {
	var ct models.Contact
	var categories, tags, autoTags, enrichment, stats []byte
	err := row.Scan(&ct.ID, &ct.TenantID, &ct.Email, &ct.FullName, &ct.Phone,
		&categories, &tags, &autoTags, &enrichment, &stats, &ct.StatsVersion,
		&ct.CreatedAt, &ct.UpdatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(categories, &ct.Categories)
	_ = json.Unmarshal(tags, &ct.Tags)
	_ = json.Unmarshal(autoTags, &ct.AutoTags)
	if len(enrichment) > 0 && string(enrichment) != "null" {
		_ = json.Unmarshal(enrichment, &ct.Enrichment)
	}
	_ = json.Unmarshal(stats, &ct.Stats)
	return &ct, nil
}

// Create inserts a contact; (tenant, email) is unique.
func (r *Repository) Create(ctx context.Context, ct *models.Contact) error {
	categories, _ := json.Marshal(ct.Categories)
	tags, _ := json.Marshal(ct.Tags)
	autoTags, _ := json.Marshal(ct.AutoTags)
	enrichment, _ := json.Marshal(ct.Enrichment)
	stats, _ := json.Marshal(ct.Stats)
	const q = `INSERT INTO contacts (tenant_id, email, full_name, phone, categories, tags, auto_tags, enrichment, survey_stats)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, email) DO NOTHING
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, ct.TenantID, strings.ToLower(ct.Email), ct.FullName, ct.Phone,
		categories, tags, autoTags, enrichment, stats).
		Scan(&ct.ID, &ct.CreatedAt, &ct.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicateEmail
	}
	return err
}

// GetInTenant returns a contact only if it belongs to the tenant.
func (r *Repository) GetInTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Contact, error) {
	return scanContact(r.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1 AND tenant_id = $2`, id, tenantID))
}

// GetByEmail looks a contact up by normalized email within the tenant.
func (r *Repository) GetByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*models.Contact, error) {
	return scanContact(r.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE tenant_id = $1 AND email = $2`,
		tenantID, strings.ToLower(email)))
}

// GetByIDs returns the tenant contacts matching the given IDs.
func (r *Repository) GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]models.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE tenant_id = $1 AND id = ANY($2)`,
		tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// ListByCategories returns tenant contacts tagged with any of the category
// names.
func (r *Repository) ListByCategories(ctx context.Context, tenantID uuid.UUID, names []string) ([]models.Contact, error) {
	if len(names) == 0 {
		return nil, nil
	}
	arr, _ := json.Marshal(names)
	rows, err := r.pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE tenant_id = $1 AND categories ?| ARRAY(SELECT jsonb_array_elements_text($2::jsonb))`,
		tenantID, arr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// ListOptions filter the contact listing.
type ListOptions struct {
	Search   string
	Category string
	Limit    int
	Offset   int
}

// List returns tenant contacts with search and paging.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, opts ListOptions) ([]models.Contact, int, error) {
	clauses := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	if opts.Search != "" {
		args = append(args, "%"+strings.ToLower(opts.Search)+"%")
		n := strconv.Itoa(len(args))
		clauses = append(clauses, "(email ILIKE $"+n+" OR full_name ILIKE $"+n+")")
	}
	if opts.Category != "" {
		args = append(args, opts.Category)
		clauses = append(clauses, "categories ? $"+strconv.Itoa(len(args)))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contacts WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if opts.Limit <= 0 || opts.Limit > 500 {
		opts.Limit = 50
	}
	args = append(args, opts.Limit, opts.Offset)
	n := len(args)
	q := `SELECT ` + contactColumns + ` FROM contacts WHERE ` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(n-1) + ` OFFSET $` + strconv.Itoa(n)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list, err := collect(rows)
	return list, total, err
}

// ListAll streams every tenant contact, for CSV export.
func (r *Repository) ListAll(ctx context.Context, tenantID uuid.UUID) ([]models.Contact, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE tenant_id = $1 ORDER BY email`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows pgx.Rows) ([]models.Contact, error) {
	var list []models.Contact
	for rows.Next() {
		ct, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *ct)
	}
	return list, rows.Err()
}

// Update replaces the mutable contact fields. Survey stats are excluded;
// only the stats syncer writes those.
func (r *Repository) Update(ctx context.Context, ct *models.Contact) (bool, error) {
	categories, _ := json.Marshal(ct.Categories)
	tags, _ := json.Marshal(ct.Tags)
	enrichment, _ := json.Marshal(ct.Enrichment)
	tag, err := r.pool.Exec(ctx,
		`UPDATE contacts SET full_name = $3, phone = $4, categories = $5, tags = $6,
		 enrichment = $7, updated_at = NOW()
		 WHERE id = $2 AND tenant_id = $1`,
		ct.TenantID, ct.ID, ct.FullName, ct.Phone, categories, tags, enrichment)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes a contact.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM contacts WHERE id = $2 AND tenant_id = $1`, tenantID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CompareAndSetStats writes the survey stats document only when the row
// still carries the version the caller read. A false return means another
// writer interleaved; the caller re-reads and retries. Lost updates under
// concurrent responses would corrupt the counters and running means.
func (r *Repository) CompareAndSetStats(ctx context.Context, tenantID, id uuid.UUID, stats *models.SurveyStats, version int64) (bool, error) {
	doc, _ := json.Marshal(stats)
	tag, err := r.pool.Exec(ctx,
		`UPDATE contacts SET survey_stats = $3, stats_version = stats_version + 1, updated_at = NOW()
		 WHERE id = $2 AND tenant_id = $1 AND stats_version = $4`,
		tenantID, id, doc, version)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// StatsEvent is one invite or submitted response attributed to a contact,
// used to rebuild stats during reconciliation.
type StatsEvent struct {
	TenantID  uuid.UUID
	ContactID uuid.UUID
	Score     *int
	Rating    *int
	At        time.Time
}

// InviteEvents streams every contact-attributed invite in creation order.
func (r *Repository) InviteEvents(ctx context.Context) ([]StatsEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT tenant_id, contact_id, created_at FROM survey_invites
		 WHERE contact_id IS NOT NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []StatsEvent
	for rows.Next() {
		var ev StatsEvent
		if err := rows.Scan(&ev.TenantID, &ev.ContactID, &ev.At); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ResponseEvents streams every contact-attributed submitted response in
// submission order.
func (r *Repository) ResponseEvents(ctx context.Context) ([]StatsEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT tenant_id, contact_id, score, rating, submitted_at FROM survey_responses
		 WHERE contact_id IS NOT NULL AND status = 'submitted' ORDER BY submitted_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []StatsEvent
	for rows.Next() {
		var ev StatsEvent
		if err := rows.Scan(&ev.TenantID, &ev.ContactID, &ev.Score, &ev.Rating, &ev.At); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CreateCategory inserts a category; (tenant, name) is unique.
func (r *Repository) CreateCategory(ctx context.Context, cat *models.Category) error {
	const q = `INSERT INTO categories (tenant_id, name) VALUES ($1, $2) RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, cat.TenantID, cat.Name).Scan(&cat.ID, &cat.CreatedAt)
}

// ListCategories returns the tenant's categories.
func (r *Repository) ListCategories(ctx context.Context, tenantID uuid.UUID) ([]models.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, name, created_at FROM categories WHERE tenant_id = $1 ORDER BY name`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Category
	for rows.Next() {
		var cat models.Category
		if err := rows.Scan(&cat.ID, &cat.TenantID, &cat.Name, &cat.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, cat)
	}
	return list, rows.Err()
}

// DeleteCategory removes a category.
func (r *Repository) DeleteCategory(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM categories WHERE id = $2 AND tenant_id = $1`, tenantID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CategoryNamesByIDs resolves category IDs to names within the tenant.
func (r *Repository) CategoryNamesByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT name FROM categories WHERE tenant_id = $1 AND id = ANY($2)`, tenantID, ids)
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
