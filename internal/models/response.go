package models

import (
	"time"

	"github.com/google/uuid"
)

// Response status values.
const (
	ResponsePartial   = "partial"
	ResponseSubmitted = "submitted"
)

// Rating categories derived from rating/max bins.
const (
	RatingExcellent = "excellent"
	RatingGood      = "good"
	RatingAverage   = "average"
	RatingPoor      = "poor"
	RatingVeryPoor  = "very_poor"
)

// RatingCategoryFor maps rating/max onto its bin.
func RatingCategoryFor(rating, max int) string {
	if max <= 0 {
		max = 5
	}
	ratio := float64(rating) / float64(max)
	switch {
	case ratio >= 0.8:
		return RatingExcellent
	case ratio >= 0.6:
		return RatingGood
	case ratio >= 0.4:
		return RatingAverage
	case ratio >= 0.2:
		return RatingPoor
	default:
		return RatingVeryPoor
	}
}

// Answer is one question answer in a submission.
type Answer struct {
	QuestionID string      `json:"question_id"`
	Value      interface{} `json:"value"`
	Media      []string    `json:"media,omitempty"` // S3 object keys
}

// Classification flags derived by the analysis provider.
type Classification struct {
	IsComplaint  bool `json:"is_complaint"`
	IsPraise     bool `json:"is_praise"`
	IsSuggestion bool `json:"is_suggestion"`
}

// Analysis is the enrichment result written set-once onto a response
// (re-runs overwrite the whole block atomically).
type Analysis struct {
	Sentiment        string         `json:"sentiment"`
	SentimentScore   float64        `json:"sentiment_score"`
	Confidence       float64        `json:"confidence"`
	Emotions         []string       `json:"emotions,omitempty"`
	Keywords         []string       `json:"keywords,omitempty"`
	Themes           []string       `json:"themes,omitempty"`
	Classification   Classification `json:"classification"`
	Summary          string         `json:"summary,omitempty"`
	NPSCategory      string         `json:"nps_category,omitempty"`
	RatingCategory   string         `json:"rating_category,omitempty"`
	FlaggedForReview bool           `json:"flagged_for_review"`
	TriggeredRules   []string       `json:"triggered_rules,omitempty"`
	AnalyzedAt       time.Time      `json:"analyzed_at"`
}

// SurveyResponse is a submitted (or partial) answer set for a survey.
type SurveyResponse struct {
	ID             uuid.UUID  `json:"id"`
	SurveyID       uuid.UUID  `json:"survey_id"`
	TenantID       uuid.UUID  `json:"tenant_id"`
	ContactID      *uuid.UUID `json:"contact_id,omitempty"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	InviteID       *uuid.UUID `json:"invite_id,omitempty"`
	Answers        []Answer   `json:"answers"`
	Rating         *int       `json:"rating,omitempty"`
	Score          *int       `json:"score,omitempty"` // NPS 0-10
	Review         string     `json:"review,omitempty"`
	CompletionTime *int       `json:"completion_time,omitempty"` // seconds
	IsAnonymous    bool       `json:"is_anonymous"`
	Status         string     `json:"status"`
	ResumeToken    string     `json:"-"`
	Analysis       *Analysis  `json:"analysis,omitempty"`
	SubmittedAt    time.Time  `json:"submitted_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// RespondentType classifies how a response arrived.
func (r *SurveyResponse) RespondentType() string {
	switch {
	case r.UserID != nil:
		return "authenticated"
	case r.InviteID != nil:
		return "invited"
	case r.IsAnonymous:
		return "anonymous"
	default:
		return "public"
	}
}
