package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is a customer organisation, the unit of isolation.
// Every tenant-scoped entity carries the tenant ID.
type Tenant struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Plan         string          `json:"plan"`
	FeatureFlags map[string]bool `json:"feature_flags,omitempty"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Department is a sub-division of a tenant used for survey scoping.
type Department struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
