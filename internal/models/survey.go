package models

import (
	"time"

	"github.com/google/uuid"
)

// SurveyStatus is the survey lifecycle state.
type SurveyStatus string

const (
	SurveyDraft     SurveyStatus = "draft"
	SurveyActive    SurveyStatus = "active"
	SurveyScheduled SurveyStatus = "scheduled"
	SurveyInactive  SurveyStatus = "inactive"
	SurveyClosed    SurveyStatus = "closed"
)

// Question types understood by the response validator.
const (
	QuestionText   = "text"
	QuestionNumber = "number"
	QuestionNPS    = "nps"
	QuestionRating = "rating"
	QuestionChoice = "choice"
)

// Question is a single survey question.
type Question struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Label    string   `json:"label"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"` // choice questions
	Max      int      `json:"max,omitempty"`     // rating questions, default 5
}

// PublishedSnapshot is the immutable question set locked at publish time.
// Responses are validated against this, never against the current draft.
type PublishedSnapshot struct {
	Questions []Question `json:"questions"`
	Version   int        `json:"version"`
	LockedAt  time.Time  `json:"locked_at"`
}

// EmbeddedContact is a recipient given inline in the target audience.
type EmbeddedContact struct {
	Email    string `json:"email"`
	FullName string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// TargetAudience describes who receives invites at publish time. Segment
// and category references plus embedded contacts are all supported; the
// audience resolver dedupes by email.
type TargetAudience struct {
	SegmentIDs  []uuid.UUID       `json:"segments,omitempty"`
	CategoryIDs []uuid.UUID       `json:"categories,omitempty"`
	ContactIDs  []uuid.UUID       `json:"contacts,omitempty"`
	Embedded    []EmbeddedContact `json:"embedded_contacts,omitempty"`
}

// ActionPermissions configures who may assign follow-up actions on a survey.
type ActionPermissions struct {
	Enabled              bool        `json:"enabled"`
	AllowedAssigners     []uuid.UUID `json:"allowed_assigners,omitempty"`
	AllowedViewers       []uuid.UUID `json:"allowed_viewers,omitempty"`
	RestrictToDepartment *uuid.UUID  `json:"restrict_to_department,omitempty"`
}

// SurveyAnalytics holds rolling analytic aggregates maintained on submit.
type SurveyAnalytics struct {
	NPSScore          *float64 `json:"nps_score,omitempty"`
	AvgCompletionTime *float64 `json:"avg_completion_time,omitempty"` // seconds
}

// Survey is a feedback form owned by a tenant, optionally scoped to a
// department. Once active, the published snapshot is authoritative and
// draft edits are rejected except republish.
type Survey struct {
	ID                uuid.UUID          `json:"id"`
	TenantID          uuid.UUID          `json:"tenant_id"`
	DepartmentID      *uuid.UUID         `json:"department_id,omitempty"`
	Title             string             `json:"title"`
	Description       string             `json:"description,omitempty"`
	Status            SurveyStatus       `json:"status"`
	Version           int                `json:"version"`
	Questions         []Question         `json:"questions"`
	Snapshot          *PublishedSnapshot `json:"published_snapshot,omitempty"`
	TargetAudience    TargetAudience     `json:"target_audience"`
	ActionManagerID   *uuid.UUID         `json:"action_manager_id,omitempty"`
	ResponsibleUserID *uuid.UUID         `json:"responsible_user_id,omitempty"`
	ActionPermissions ActionPermissions  `json:"action_permissions"`
	PasswordHash      string             `json:"-"`
	ScheduledStartAt  *time.Time         `json:"scheduled_start_at,omitempty"`
	ScheduledEndAt    *time.Time         `json:"scheduled_end_at,omitempty"`
	TotalResponses    int                `json:"total_responses"`
	LastResponseAt    *time.Time         `json:"last_response_at,omitempty"`
	Analytics         SurveyAnalytics    `json:"analytics"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// AcceptsSubmissions reports whether the survey currently accepts
// responses: active, or scheduled with an open window.
func (s *Survey) AcceptsSubmissions(now time.Time) bool {
	switch s.Status {
	case SurveyActive:
		return true
	case SurveyScheduled:
		if s.ScheduledStartAt != nil && now.Before(*s.ScheduledStartAt) {
			return false
		}
		if s.ScheduledEndAt != nil && now.After(*s.ScheduledEndAt) {
			return false
		}
		return s.ScheduledStartAt != nil
	}
	return false
}
