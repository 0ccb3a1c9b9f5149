package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxRetries is the number of attempts before a job moves to the DLQ.
	MaxRetries = 3
	// RetryBaseDelay is the initial retry backoff; each attempt doubles it.
	RetryBaseDelay = 5 * time.Second
	// RetryMaxDelay caps the exponential backoff.
	RetryMaxDelay = 2 * time.Minute
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeEnrichment       JobType = "response_enrichment"
	JobTypeActionGeneration JobType = "action_generation"
	JobTypeEmail            JobType = "email"
)

// EnrichmentPayload asks the worker to analyze one response. DispatchedAt
// makes re-runs idempotent: the analysis write is conditional on being
// absent or older than this timestamp.
type EnrichmentPayload struct {
	ResponseID   uuid.UUID `json:"response_id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

// ActionGenerationPayload asks the worker to create a follow-up action for
// a flagged response.
type ActionGenerationPayload struct {
	ResponseID uuid.UUID `json:"response_id"`
	SurveyID   uuid.UUID `json:"survey_id"`
	TenantID   uuid.UUID `json:"tenant_id"`
}

// EmailPayload is an outbound email job for the sender collaborator.
type EmailPayload struct {
	TenantID       *uuid.UUID `json:"tenant_id,omitempty"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject"`
	BodyHTML       string     `json:"body_html"`
	EmailType      string     `json:"email_type"`
}

// Job is the generic envelope. Handlers re-check TenantID before writing;
// the queue itself is shared across tenants.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	TenantID  uuid.UUID       `json:"tenant_id"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// RetryDelay returns the capped exponential backoff for the job's attempt.
func (j *Job) RetryDelay() time.Duration {
	d := RetryBaseDelay << uint(j.Attempt)
	if d > RetryMaxDelay {
		d = RetryMaxDelay
	}
	return d
}

// Queue enqueues background jobs. Two implementations exist: a durable
// Redis-backed queue consumed by cmd/worker, and an inline queue that runs
// the job in a goroutine after the submitter has been acknowledged.
type Queue interface {
	Enqueue(ctx context.Context, jobType JobType, tenantID uuid.UUID, payload interface{}) error
}

func newJob(jobType JobType, tenantID uuid.UUID, payload interface{}) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		TenantID:  tenantID,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}, nil
}
