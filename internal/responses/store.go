package responses

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ratepro/backend/internal/invites"
	"github.com/ratepro/backend/internal/models"
)

// SubmissionStore couples response persistence with invite consumption.
// Identified submissions commit the invite's pending→responded flip and
// the response row in one transaction, so a lost invite race leaves no
// stray response behind.
type SubmissionStore struct {
	*Repository
	registry *invites.Registry
}

// NewSubmissionStore creates the store the ingestor writes through.
func NewSubmissionStore(repo *Repository, registry *invites.Registry) *SubmissionStore {
	return &SubmissionStore{Repository: repo, registry: registry}
}

// CreateWithInvite consumes the invite and inserts the response
// atomically. The invite flip runs first: when its compare-and-set loses,
// the transaction rolls back before any row is written and the caller
// gets invites.ErrAlreadyResponded.
func (s *SubmissionStore) CreateWithInvite(ctx context.Context, resp *models.SurveyResponse, inviteID uuid.UUID, at time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.registry.MarkRespondedInTx(ctx, tx, inviteID, at); err != nil {
		return err
	}
	if err := insertResponse(ctx, tx, resp); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
