package contacts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/models"
)

// statsRetryLimit bounds the CAS retry loop; exceeding it means sustained
// write contention on one contact, which the reconcile job repairs.
const statsRetryLimit = 5

// ErrStatsContention is returned when a stats write keeps losing the
// compare-and-set race.
var ErrStatsContention = errors.New("contact stats write contention")

// StatsStore is the persistence the syncer needs. Implemented by the
// contacts repository.
type StatsStore interface {
	GetInTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Contact, error)
	CompareAndSetStats(ctx context.Context, tenantID, id uuid.UUID, stats *models.SurveyStats, version int64) (bool, error)
	InviteEvents(ctx context.Context) ([]StatsEvent, error)
	ResponseEvents(ctx context.Context) ([]StatsEvent, error)
}

// StatsSyncer maintains the denormalized per-contact survey stats. It is
// the only writer of that document. Counters never decrease; re-running a
// sync for the same event would over-count, so callers invoke it exactly
// once per invite or submitted response.
type StatsSyncer struct {
	store  StatsStore
	logger *zap.Logger
}

// NewStatsSyncer creates a stats syncer.
func NewStatsSyncer(store StatsStore, logger *zap.Logger) *StatsSyncer {
	return &StatsSyncer{store: store, logger: logger}
}

// RecordInvite bumps invitedCount and lastInvitedDate.
func (s *StatsSyncer) RecordInvite(ctx context.Context, tenantID, contactID uuid.UUID, at time.Time) error {
	return s.mutate(ctx, tenantID, contactID, func(stats *models.SurveyStats) {
		applyInvite(stats, at)
	})
}

// RecordResponse folds one submitted response into the contact's stats.
// Responses without a contact (anonymous, public) never reach here.
func (s *StatsSyncer) RecordResponse(ctx context.Context, tenantID, contactID uuid.UUID, score, rating *int, at time.Time) error {
	return s.mutate(ctx, tenantID, contactID, func(stats *models.SurveyStats) {
		applyResponse(stats, score, rating, at)
	})
}

// mutate applies fn to the contact's current stats under a versioned
// compare-and-set. A lost race re-reads the fresh document and re-applies,
// so concurrent writers never clobber each other's increments.
func (s *StatsSyncer) mutate(ctx context.Context, tenantID, contactID uuid.UUID, fn func(*models.SurveyStats)) error {
	for attempt := 0; attempt < statsRetryLimit; attempt++ {
		ct, err := s.store.GetInTenant(ctx, tenantID, contactID)
		if err != nil {
			return err
		}
		stats := ct.Stats
		fn(&stats)
		ok, err := s.store.CompareAndSetStats(ctx, tenantID, contactID, &stats, ct.StatsVersion)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrStatsContention
}

func applyInvite(stats *models.SurveyStats, at time.Time) {
	stats.InvitedCount++
	if stats.LastInvitedDate == nil || at.After(*stats.LastInvitedDate) {
		stats.LastInvitedDate = &at
	}
}

// applyResponse updates counters and running means. The average over n
// responses folds in the new value without rescanning history.
func applyResponse(stats *models.SurveyStats, score, rating *int, at time.Time) {
	prev := stats.RespondedCount
	stats.RespondedCount++
	if stats.LastResponseAt == nil || at.After(*stats.LastResponseAt) {
		stats.LastResponseAt = &at
	}
	if score != nil {
		v := *score
		stats.LatestNPSScore = &v
		avg := runningMean(stats.AvgNPSScore, prev, float64(v))
		stats.AvgNPSScore = &avg
		stats.NPSCategory = models.NPSCategoryForScore(v)
	}
	if rating != nil {
		v := *rating
		stats.LatestRating = &v
		avg := runningMean(stats.AvgRating, prev, float64(v))
		stats.AvgRating = &avg
	}
}

func runningMean(current *float64, n int, v float64) float64 {
	if current == nil || n <= 0 {
		return v
	}
	return (*current*float64(n) + v) / float64(n+1)
}

// contactKey identifies a contact within its tenant during reconciliation.
type contactKey struct {
	TenantID  uuid.UUID
	ContactID uuid.UUID
}

// Reconcile rebuilds every contact's stats from the authoritative invite
// and response rows, repairing drift in the cached document. Returns the
// number of contacts rewritten.
func (s *StatsSyncer) Reconcile(ctx context.Context) (int, error) {
	rebuilt := map[contactKey]*models.SurveyStats{}
	at := func(key contactKey) *models.SurveyStats {
		st, ok := rebuilt[key]
		if !ok {
			st = &models.SurveyStats{}
			rebuilt[key] = st
		}
		return st
	}

	invites, err := s.store.InviteEvents(ctx)
	if err != nil {
		return 0, err
	}
	for _, ev := range invites {
		applyInvite(at(contactKey{ev.TenantID, ev.ContactID}), ev.At)
	}

	responses, err := s.store.ResponseEvents(ctx)
	if err != nil {
		return 0, err
	}
	for _, ev := range responses {
		applyResponse(at(contactKey{ev.TenantID, ev.ContactID}), ev.Score, ev.Rating, ev.At)
	}

	written := 0
	for key, stats := range rebuilt {
		replacement := *stats
		err := s.mutate(ctx, key.TenantID, key.ContactID, func(current *models.SurveyStats) {
			*current = replacement
		})
		if err != nil {
			s.logger.Warn("reconcile contact stats",
				zap.Error(err), zap.String("contact_id", key.ContactID.String()))
			continue
		}
		written++
	}
	return written, nil
}
