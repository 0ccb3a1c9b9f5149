package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ratepro/backend/internal/authz"
	"github.com/ratepro/backend/internal/models"
)

var ErrUserInactive = errors.New("user inactive")

const userColumns = `id, tenant_id, email, password_hash, full_name, role, department_id,
	cross_department_survey_access, custom_role_ids, is_active, is_verified, created_at, updated_at`

// Repository handles user and OTP persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

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

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// LoadPrincipal resolves token claims into an authorization principal from
// the live user record, so role or tenant changes and deactivation take
// effect immediately.
func (r *Repository) LoadPrincipal(ctx context.Context, claims *Claims) (*authz.Principal, error) {
	u, err := r.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrUserInactive
	}
	return &authz.Principal{
		UserID:                      u.ID,
		TenantID:                    u.TenantID,
		Role:                        u.Role,
		DepartmentID:                u.DepartmentID,
		CrossDepartmentSurveyAccess: u.CrossDepartmentSurveyAccess,
		Email:                       u.Email,
	}, nil
}

// CreateTenant creates the tenant record for a fresh registration.
func (r *Repository) CreateTenant(ctx context.Context, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tenants (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	return id, err
}

// Create inserts a new user.
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

// UpdatePassword replaces the password hash.
func (r *Repository) UpdatePassword(ctx context.Context, userID uuid.UUID, hash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, userID, hash)
	return err
}

// MarkVerified flips is_verified.
func (r *Repository) MarkVerified(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`, userID)
	return err
}

// OTP purposes.
const (
	OTPPurposeVerify = "verify"
	OTPPurposeReset  = "reset"
)

// OTPCode is a one-time verification code paired with a magic-link token.
type OTPCode struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Code       string
	MagicToken string
	Purpose    string
	ExpiresAt  time.Time
	UsedAt     *time.Time
}

// CreateOTP stores a fresh OTP, invalidating earlier ones for the purpose.
func (r *Repository) CreateOTP(ctx context.Context, otp *OTPCode) error {
	if _, err := r.pool.Exec(ctx,
		`UPDATE otp_codes SET used_at = NOW() WHERE user_id = $1 AND purpose = $2 AND used_at IS NULL`,
		otp.UserID, otp.Purpose); err != nil {
		return err
	}
	const q = `INSERT INTO otp_codes (user_id, code, magic_token, purpose, expires_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	return r.pool.QueryRow(ctx, q, otp.UserID, otp.Code, otp.MagicToken, otp.Purpose, otp.ExpiresAt).
		Scan(&otp.ID)
}

// ConsumeOTP atomically marks a matching, unexpired OTP used. Either the
// numeric code or the magic-link token may be presented.
func (r *Repository) ConsumeOTP(ctx context.Context, userID uuid.UUID, purpose, codeOrToken string) (bool, error) {
	const q = `UPDATE otp_codes SET used_at = NOW()
		WHERE user_id = $1 AND purpose = $2 AND used_at IS NULL AND expires_at > NOW()
		AND (code = $3 OR magic_token = $3)`
	tag, err := r.pool.Exec(ctx, q, userID, purpose, codeOrToken)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
