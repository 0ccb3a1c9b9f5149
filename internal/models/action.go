package models

import (
	"time"

	"github.com/google/uuid"
)

// Action priorities.
const (
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
	PriorityLongTerm = "long-term"
)

// Action statuses.
const (
	ActionPending    = "pending"
	ActionOpen       = "open"
	ActionInProgress = "in-progress"
	ActionResolved   = "resolved"
)

// ActionMetadata links an action back to the survey/response that spawned it.
type ActionMetadata struct {
	SurveyID            *uuid.UUID `json:"survey_id,omitempty"`
	ResponseID          *uuid.UUID `json:"response_id,omitempty"`
	CreatedFromTemplate string     `json:"created_from_template,omitempty"`
}

// Action is a follow-up task generated from a flagged response or created
// manually.
type Action struct {
	ID           uuid.UUID      `json:"id"`
	TenantID     uuid.UUID      `json:"tenant_id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Priority     string         `json:"priority"`
	Status       string         `json:"status"`
	Category     string         `json:"category,omitempty"`
	DueDate      *time.Time     `json:"due_date,omitempty"`
	AssignedTo   *uuid.UUID     `json:"assigned_to,omitempty"`
	Metadata     ActionMetadata `json:"metadata"`
	AutoAssigned bool           `json:"auto_assigned"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
