package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification statuses.
const (
	NotificationUnread   = "unread"
	NotificationRead     = "read"
	NotificationArchived = "archived"
)

// NotificationRef points at the entity a notification is about.
type NotificationRef struct {
	Type string    `json:"type"` // "survey", "response", "action"
	ID   uuid.UUID `json:"id"`
}

// Notification is an in-app message for one user.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	TenantID  *uuid.UUID       `json:"tenant_id,omitempty"`
	Type      string           `json:"type"`
	Priority  string           `json:"priority"`
	Title     string           `json:"title"`
	Message   string           `json:"message,omitempty"`
	Status    string           `json:"status"`
	Reference *NotificationRef `json:"reference,omitempty"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// EmailTemplate is a tenant-owned email body with placeholder substitution
// done by the sender collaborator.
type EmailTemplate struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	BodyHTML  string    `json:"body_html"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
