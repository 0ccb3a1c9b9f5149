package models

import (
	"time"

	"github.com/google/uuid"
)

// Permission is a named fine-grained capability, unique by name
// (e.g. "survey:activate", "user:create", "template:read").
type Permission struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomRole is a tenant-defined bundle of permissions, unique (tenant, name).
type CustomRole struct {
	ID            uuid.UUID   `json:"id"`
	TenantID      uuid.UUID   `json:"tenant_id"`
	Name          string      `json:"name"`
	PermissionIDs []uuid.UUID `json:"permission_ids"`
	IsActive      bool        `json:"is_active"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// PermissionAssignment is a direct user-permission grant not mediated by a role.
type PermissionAssignment struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	PermissionID uuid.UUID `json:"permission_id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	CreatedAt    time.Time `json:"created_at"`
}
