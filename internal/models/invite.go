package models

import (
	"time"

	"github.com/google/uuid"
)

// Invite status values. A pending invite flips to responded exactly once.
const (
	InvitePending   = "pending"
	InviteResponded = "responded"
)

// ContactRef is the recipient snapshot stored on an invite.
type ContactRef struct {
	Email    string `json:"email"`
	FullName string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// SurveyInvite is a single-use capability allowing one recipient to submit
// one response to one survey. The token is opaque and carries no identity;
// all scope derives from the stored record.
type SurveyInvite struct {
	ID          uuid.UUID  `json:"id"`
	SurveyID    uuid.UUID  `json:"survey_id"`
	TenantID    uuid.UUID  `json:"tenant_id"`
	ContactID   *uuid.UUID `json:"contact_id,omitempty"`
	Contact     ContactRef `json:"contact"`
	Token       string     `json:"-"`
	Status      string     `json:"status"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
