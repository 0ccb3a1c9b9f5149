package contacts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/models"
)

func intPtr(v int) *int { return &v }

func TestApplyInvite(t *testing.T) {
	var stats models.SurveyStats
	first := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	later := first.Add(48 * time.Hour)

	applyInvite(&stats, first)
	if stats.InvitedCount != 1 {
		t.Fatalf("InvitedCount = %d, want 1", stats.InvitedCount)
	}
	if stats.LastInvitedDate == nil || !stats.LastInvitedDate.Equal(first) {
		t.Fatalf("LastInvitedDate = %v, want %v", stats.LastInvitedDate, first)
	}

	applyInvite(&stats, later)
	if stats.InvitedCount != 2 {
		t.Fatalf("InvitedCount = %d, want 2", stats.InvitedCount)
	}
	if !stats.LastInvitedDate.Equal(later) {
		t.Fatalf("LastInvitedDate = %v, want %v", stats.LastInvitedDate, later)
	}

	// An out-of-order invite bumps the count but not the date.
	applyInvite(&stats, first)
	if stats.InvitedCount != 3 {
		t.Fatalf("InvitedCount = %d, want 3", stats.InvitedCount)
	}
	if !stats.LastInvitedDate.Equal(later) {
		t.Fatalf("LastInvitedDate moved backwards to %v", stats.LastInvitedDate)
	}
}

func TestApplyResponse(t *testing.T) {
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

	t.Run("first response sets latest and average", func(t *testing.T) {
		var stats models.SurveyStats
		applyResponse(&stats, intPtr(9), intPtr(4), now)
		if stats.RespondedCount != 1 {
			t.Fatalf("RespondedCount = %d, want 1", stats.RespondedCount)
		}
		if *stats.LatestNPSScore != 9 || *stats.AvgNPSScore != 9 {
			t.Fatalf("nps latest/avg = %d/%v, want 9/9", *stats.LatestNPSScore, *stats.AvgNPSScore)
		}
		if *stats.LatestRating != 4 || *stats.AvgRating != 4 {
			t.Fatalf("rating latest/avg = %d/%v, want 4/4", *stats.LatestRating, *stats.AvgRating)
		}
		if stats.NPSCategory != models.NPSPromoter {
			t.Fatalf("NPSCategory = %q, want promoter", stats.NPSCategory)
		}
	})

	t.Run("running mean folds in new values", func(t *testing.T) {
		var stats models.SurveyStats
		applyResponse(&stats, intPtr(10), nil, now)
		applyResponse(&stats, intPtr(4), nil, now.Add(time.Hour))
		if stats.RespondedCount != 2 {
			t.Fatalf("RespondedCount = %d, want 2", stats.RespondedCount)
		}
		if *stats.AvgNPSScore != 7 {
			t.Fatalf("AvgNPSScore = %v, want 7", *stats.AvgNPSScore)
		}
		if *stats.LatestNPSScore != 4 {
			t.Fatalf("LatestNPSScore = %d, want 4", *stats.LatestNPSScore)
		}
		if stats.NPSCategory != models.NPSDetractor {
			t.Fatalf("NPSCategory = %q, want detractor", stats.NPSCategory)
		}
	})

	t.Run("response without score keeps nps fields", func(t *testing.T) {
		var stats models.SurveyStats
		applyResponse(&stats, intPtr(8), nil, now)
		applyResponse(&stats, nil, intPtr(5), now.Add(time.Hour))
		if *stats.LatestNPSScore != 8 {
			t.Fatalf("LatestNPSScore = %d, want 8", *stats.LatestNPSScore)
		}
		if stats.NPSCategory != models.NPSPassive {
			t.Fatalf("NPSCategory = %q, want passive", stats.NPSCategory)
		}
		if stats.RespondedCount != 2 {
			t.Fatalf("RespondedCount = %d, want 2", stats.RespondedCount)
		}
	})
}

// fakeStatsStore simulates the versioned stats document, including a
// configurable number of lost compare-and-set races.
type fakeStatsStore struct {
	contact   models.Contact
	conflicts int

	getCalls int
	casCalls int
}

func (f *fakeStatsStore) GetInTenant(_ context.Context, _, _ uuid.UUID) (*models.Contact, error) {
	f.getCalls++
	ct := f.contact
	return &ct, nil
}

func (f *fakeStatsStore) CompareAndSetStats(_ context.Context, _, _ uuid.UUID, stats *models.SurveyStats, version int64) (bool, error) {
	f.casCalls++
	if f.conflicts > 0 {
		// Another writer got in first: bump the version and fold its
		// response in, exactly what the loser must pick up on re-read.
		f.conflicts--
		f.contact.StatsVersion++
		applyResponse(&f.contact.Stats, intPtr(2), nil, time.Date(2025, 3, 5, 11, 0, 0, 0, time.UTC))
		return false, nil
	}
	if version != f.contact.StatsVersion {
		return false, nil
	}
	f.contact.Stats = *stats
	f.contact.StatsVersion++
	return true, nil
}

func (f *fakeStatsStore) InviteEvents(context.Context) ([]StatsEvent, error)   { return nil, nil }
func (f *fakeStatsStore) ResponseEvents(context.Context) ([]StatsEvent, error) { return nil, nil }

func TestRecordResponseRetriesLostRace(t *testing.T) {
	store := &fakeStatsStore{conflicts: 1}
	syncer := NewStatsSyncer(store, zap.NewNop())
	ctx := context.Background()
	tenant, contact := uuid.New(), uuid.New()
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

	if err := syncer.RecordResponse(ctx, tenant, contact, intPtr(8), nil, now); err != nil {
		t.Fatalf("RecordResponse: %v", err)
	}

	// Both the interleaved write and ours must land: no lost update.
	if store.contact.Stats.RespondedCount != 2 {
		t.Fatalf("RespondedCount = %d, want 2", store.contact.Stats.RespondedCount)
	}
	if *store.contact.Stats.AvgNPSScore != 5 {
		t.Fatalf("AvgNPSScore = %v, want 5", *store.contact.Stats.AvgNPSScore)
	}
	if store.getCalls != 2 || store.casCalls != 2 {
		t.Fatalf("get/cas calls = %d/%d, want 2/2", store.getCalls, store.casCalls)
	}
}

func TestRecordResponseGivesUpUnderContention(t *testing.T) {
	store := &fakeStatsStore{conflicts: statsRetryLimit}
	syncer := NewStatsSyncer(store, zap.NewNop())

	err := syncer.RecordResponse(context.Background(), uuid.New(), uuid.New(), intPtr(8), nil, time.Now())
	if !errors.Is(err, ErrStatsContention) {
		t.Fatalf("err = %v, want ErrStatsContention", err)
	}
}

func TestStatsCountersStayConsistent(t *testing.T) {
	store := &fakeStatsStore{}
	syncer := NewStatsSyncer(store, zap.NewNop())
	ctx := context.Background()
	tenant, contact := uuid.New(), uuid.New()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	check := func(step string) {
		st := store.contact.Stats
		if st.RespondedCount > st.InvitedCount {
			t.Fatalf("%s: responded %d > invited %d", step, st.RespondedCount, st.InvitedCount)
		}
	}

	for i := 0; i < 3; i++ {
		if err := syncer.RecordInvite(ctx, tenant, contact, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("RecordInvite: %v", err)
		}
		check("invite")
	}
	for i := 0; i < 2; i++ {
		if err := syncer.RecordResponse(ctx, tenant, contact, intPtr(9), nil, base.Add(time.Duration(i+3)*time.Hour)); err != nil {
			t.Fatalf("RecordResponse: %v", err)
		}
		check("response")
	}

	st := store.contact.Stats
	if st.InvitedCount != 3 || st.RespondedCount != 2 {
		t.Fatalf("invited/responded = %d/%d, want 3/2", st.InvitedCount, st.RespondedCount)
	}
	if store.contact.StatsVersion != 5 {
		t.Fatalf("StatsVersion = %d, want 5", store.contact.StatsVersion)
	}
}
