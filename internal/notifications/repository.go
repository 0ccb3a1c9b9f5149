package notifications

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ratepro/backend/internal/models"
)

// Repository handles notification persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const notificationColumns = `id, user_id, tenant_id, type, priority, title, message, status,
	reference, expires_at, created_at`

func scan(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	var reference []byte
	err := row.Scan(&n.ID, &n.UserID, &n.TenantID, &n.Type, &n.Priority, &n.Title, &n.Message,
		&n.Status, &reference, &n.ExpiresAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(reference) > 0 && string(reference) != "null" {
		_ = json.Unmarshal(reference, &n.Reference)
	}
	return &n, nil
}

// Create inserts a notification.
func (r *Repository) Create(ctx context.Context, n *models.Notification) error {
	reference, _ := json.Marshal(n.Reference)
	if n.Status == "" {
		n.Status = models.NotificationUnread
	}
	const q = `INSERT INTO notifications (user_id, tenant_id, type, priority, title, message, status, reference, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, n.UserID, n.TenantID, n.Type, n.Priority, n.Title, n.Message,
		n.Status, reference, n.ExpiresAt).Scan(&n.ID, &n.CreatedAt)
}

// List returns a user's notifications, unexpired, newest first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > NOW())`
	args := []interface{}{userID}
	if status != "" {
		args = append(args, status)
		q += ` AND status = $2`
	}
	args = append(args, limit, offset)
	if status != "" {
		q += ` ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	} else {
		q += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Notification
	for rows.Next() {
		n, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *n)
	}
	return list, rows.Err()
}

// UnreadCount counts a user's unread, unexpired notifications.
func (r *Repository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications
		 WHERE user_id = $1 AND status = 'unread' AND (expires_at IS NULL OR expires_at > NOW())`,
		userID).Scan(&count)
	return count, err
}

// SetStatus moves one notification to read or archived.
func (r *Repository) SetStatus(ctx context.Context, userID, id uuid.UUID, status string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET status = $3 WHERE id = $2 AND user_id = $1`, userID, id, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkAllRead marks every unread notification of the user read.
func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET status = 'read' WHERE user_id = $1 AND status = 'unread'`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes one notification.
func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM notifications WHERE id = $2 AND user_id = $1`, userID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
