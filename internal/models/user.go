package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user role in the platform.
type Role string

const (
	// RoleAdmin is platform scope: operates across tenants, never inside one.
	RoleAdmin Role = "admin"
	// RoleCompanyAdmin administers a single tenant.
	RoleCompanyAdmin Role = "companyAdmin"
	// RoleMember is a regular tenant user.
	RoleMember Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCompanyAdmin, RoleMember:
		return true
	}
	return false
}

// User represents a platform or tenant user. Admin users have a nil
// TenantID; every other role has a non-nil one.
type User struct {
	ID                          uuid.UUID   `json:"id"`
	TenantID                    *uuid.UUID  `json:"tenant_id,omitempty"`
	Email                       string      `json:"email"`
	Password                    string      `json:"-"`
	FullName                    string      `json:"full_name"`
	Role                        Role        `json:"role"`
	DepartmentID                *uuid.UUID  `json:"department_id,omitempty"`
	CrossDepartmentSurveyAccess bool        `json:"cross_department_survey_access"`
	CustomRoleIDs               []uuid.UUID `json:"custom_role_ids,omitempty"`
	IsActive                    bool        `json:"is_active"`
	IsVerified                  bool        `json:"is_verified"`
	CreatedAt                   time.Time   `json:"created_at"`
	UpdatedAt                   time.Time   `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID                          uuid.UUID  `json:"id"`
	TenantID                    *uuid.UUID `json:"tenant_id,omitempty"`
	Email                       string     `json:"email"`
	FullName                    string     `json:"full_name"`
	Role                        Role       `json:"role"`
	DepartmentID                *uuid.UUID `json:"department_id,omitempty"`
	CrossDepartmentSurveyAccess bool       `json:"cross_department_survey_access"`
	IsActive                    bool       `json:"is_active"`
	IsVerified                  bool       `json:"is_verified"`
	CreatedAt                   time.Time  `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:                          u.ID,
		TenantID:                    u.TenantID,
		Email:                       u.Email,
		FullName:                    u.FullName,
		Role:                        u.Role,
		DepartmentID:                u.DepartmentID,
		CrossDepartmentSurveyAccess: u.CrossDepartmentSurveyAccess,
		IsActive:                    u.IsActive,
		IsVerified:                  u.IsVerified,
		CreatedAt:                   u.CreatedAt,
	}
}
