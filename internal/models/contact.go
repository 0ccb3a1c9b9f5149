package models

import (
	"time"

	"github.com/google/uuid"
)

// NPS categories derived from the 0-10 score.
const (
	NPSPromoter  = "promoter"
	NPSPassive   = "passive"
	NPSDetractor = "detractor"
)

// NPSCategoryForScore maps a 0-10 score onto its category.
func NPSCategoryForScore(score int) string {
	switch {
	case score >= 9:
		return NPSPromoter
	case score <= 6:
		return NPSDetractor
	default:
		return NPSPassive
	}
}

// SurveyStats is the denormalized per-contact response summary. It is
// exclusively mutated by the contact stats syncer; treat as cached.
type SurveyStats struct {
	InvitedCount    int        `json:"invited_count"`
	RespondedCount  int        `json:"responded_count"`
	LastInvitedDate *time.Time `json:"last_invited_date,omitempty"`
	LastResponseAt  *time.Time `json:"last_response_date,omitempty"`
	LatestNPSScore  *int       `json:"latest_nps_score,omitempty"`
	AvgNPSScore     *float64   `json:"avg_nps_score,omitempty"`
	LatestRating    *int       `json:"latest_rating,omitempty"`
	AvgRating       *float64   `json:"avg_rating,omitempty"`
	NPSCategory     string     `json:"nps_category,omitempty"`
}

// ContactEnrichment holds third-party profile data attached to a contact.
type ContactEnrichment struct {
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
	Company string `json:"company,omitempty"`
	Title   string `json:"title,omitempty"`
}

// Contact is a survey recipient, unique (tenant, email).
type Contact struct {
	ID         uuid.UUID          `json:"id"`
	TenantID   uuid.UUID          `json:"tenant_id"`
	Email      string             `json:"email"`
	FullName   string             `json:"full_name"`
	Phone      string             `json:"phone,omitempty"`
	Categories []string           `json:"categories,omitempty"`
	Tags       []string           `json:"tags,omitempty"`
	AutoTags   []string           `json:"auto_tags,omitempty"`
	Enrichment *ContactEnrichment `json:"enrichment,omitempty"`
	Stats      SurveyStats        `json:"survey_stats"`
	// StatsVersion guards conditional stats writes; bumped on every
	// successful CompareAndSetStats.
	StatsVersion int64     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Category groups contacts within a tenant, unique (tenant, name).
type Category struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
