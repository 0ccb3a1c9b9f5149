package invites

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ratepro/backend/internal/models"
	"github.com/ratepro/backend/pkg/utils"
)

// Invite validation errors.
var (
	ErrInvalidToken     = errors.New("invalid invite token")
	ErrAlreadyResponded = errors.New("invite already responded")
)

// Registry mints, validates and consumes survey invites. Tokens are
// single-use capabilities; MarkResponded is a compare-and-set so exactly
// one concurrent submission wins.
type Registry struct {
	pool *pgxpool.Pool
}

// NewRegistry creates an invite registry.
func NewRegistry(pool *pgxpool.Pool) *Registry {
	return &Registry{pool: pool}
}

const inviteColumns = `id, survey_id, tenant_id, contact_id, contact_ref, token, status, submitted_at, created_at`

func scanInvite(row pgx.Row) (*models.SurveyInvite, error) {
	var inv models.SurveyInvite
	var contact []byte
	err := row.Scan(&inv.ID, &inv.SurveyID, &inv.TenantID, &inv.ContactID, &contact,
		&inv.Token, &inv.Status, &inv.SubmittedAt, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(contact, &inv.Contact)
	return &inv, nil
}

// Mint creates one pending invite with a fresh 32-byte token.
func (r *Registry) Mint(ctx context.Context, surveyID, tenantID uuid.UUID, contactID *uuid.UUID, ref models.ContactRef) (*models.SurveyInvite, error) {
	token, err := utils.NewOpaqueToken(32)
	if err != nil {
		return nil, err
	}
	contact, _ := json.Marshal(ref)
	inv := &models.SurveyInvite{
		SurveyID:  surveyID,
		TenantID:  tenantID,
		ContactID: contactID,
		Contact:   ref,
		Token:     token,
		Status:    models.InvitePending,
	}
	const q = `INSERT INTO survey_invites (survey_id, tenant_id, contact_id, contact_ref, token, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`
	err = r.pool.QueryRow(ctx, q, surveyID, tenantID, contactID, contact, token, models.InvitePending).
		Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Validate resolves a token into its invite. Unknown tokens yield
// ErrInvalidToken; consumed ones ErrAlreadyResponded.
func (r *Registry) Validate(ctx context.Context, token string) (*models.SurveyInvite, error) {
	inv, err := scanInvite(r.pool.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM survey_invites WHERE token = $1`, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if inv.Status != models.InvitePending {
		return nil, ErrAlreadyResponded
	}
	return inv, nil
}

// MarkResponded flips a pending invite to responded. The WHERE clause on
// status makes this a compare-and-set: under concurrent submissions only
// one caller sees a row update, the rest get ErrAlreadyResponded.
func (r *Registry) MarkResponded(ctx context.Context, inviteID uuid.UUID, at time.Time) error {
	return markResponded(ctx, r.pool, inviteID, at)
}

// MarkRespondedInTx runs the same compare-and-set inside the caller's
// transaction, so the invite flip and the response insert commit together.
func (r *Registry) MarkRespondedInTx(ctx context.Context, tx pgx.Tx, inviteID uuid.UUID, at time.Time) error {
	return markResponded(ctx, tx, inviteID, at)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func markResponded(ctx context.Context, db execer, inviteID uuid.UUID, at time.Time) error {
	tag, err := db.Exec(ctx,
		`UPDATE survey_invites SET status = $2, submitted_at = $3
		 WHERE id = $1 AND status = $4`,
		inviteID, models.InviteResponded, at, models.InvitePending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyResponded
	}
	return nil
}

// ListBySurvey returns a survey's invites within the tenant.
func (r *Registry) ListBySurvey(ctx context.Context, tenantID, surveyID uuid.UUID) ([]models.SurveyInvite, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+inviteColumns+` FROM survey_invites
		 WHERE tenant_id = $1 AND survey_id = $2 ORDER BY created_at`, tenantID, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.SurveyInvite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *inv)
	}
	return list, rows.Err()
}
