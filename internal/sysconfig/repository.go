package sysconfig

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is one stored config value. Value holds ciphertext when
// Encrypted is true.
type Record struct {
	Key       string
	Value     string
	Encrypted bool
	Sensitive bool
	Category  string
	UpdatedAt time.Time
}

// Repository persists system config records.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a system config repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get loads one record. Returns pgx.ErrNoRows when the key has no stored
// override.
func (r *Repository) Get(ctx context.Context, key string) (*Record, error) {
	rec := &Record{}
	err := r.db.QueryRow(ctx,
		`SELECT key, value, encrypted, sensitive, category, updated_at
		 FROM system_config WHERE key = $1`, key).
		Scan(&rec.Key, &rec.Value, &rec.Encrypted, &rec.Sensitive, &rec.Category, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List loads every stored record.
func (r *Repository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.Query(ctx,
		`SELECT key, value, encrypted, sensitive, category, updated_at
		 FROM system_config ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Key, &rec.Value, &rec.Encrypted, &rec.Sensitive,
			&rec.Category, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Upsert stores or replaces a record.
func (r *Repository) Upsert(ctx context.Context, rec *Record) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO system_config (key, value, encrypted, sensitive, category, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (key) DO UPDATE SET
		   value = EXCLUDED.value, encrypted = EXCLUDED.encrypted,
		   sensitive = EXCLUDED.sensitive, category = EXCLUDED.category,
		   updated_at = NOW()`,
		rec.Key, rec.Value, rec.Encrypted, rec.Sensitive, rec.Category)
	return err
}

// Delete removes a stored override so the key resolves from env/default
// again. Deleting an absent key is a no-op.
func (r *Repository) Delete(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM system_config WHERE key = $1`, key)
	return err
}
