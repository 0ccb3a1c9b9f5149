package surveys

import (
	"testing"

	"github.com/google/uuid"

	"github.com/ratepro/backend/internal/models"
)

func TestDedupeByEmail(t *testing.T) {
	id := uuid.New()
	pool := []Recipient{
		{ContactID: &id, Ref: models.ContactRef{Email: "Alice@Example.com", FullName: "Alice"}},
		{Ref: models.ContactRef{Email: "alice@example.com", FullName: "Alice Embedded"}},
		{Ref: models.ContactRef{Email: "bob@example.com", FullName: "Bob"}},
		{Ref: models.ContactRef{Email: "  bob@example.com  "}},
		{Ref: models.ContactRef{Email: "", FullName: "No Email"}},
	}

	out := dedupeByEmail(pool)
	if len(out) != 2 {
		t.Fatalf("got %d recipients, want 2", len(out))
	}
	if out[0].Ref.Email != "alice@example.com" {
		t.Errorf("first email = %q, want normalized alice@example.com", out[0].Ref.Email)
	}
	if out[0].ContactID == nil {
		t.Error("first occurrence should win: expected the contact-backed recipient")
	}
	if out[1].Ref.Email != "bob@example.com" {
		t.Errorf("second email = %q, want bob@example.com", out[1].Ref.Email)
	}
}

func TestComputeAnalytics(t *testing.T) {
	intp := func(v int) *int { return &v }

	t.Run("empty set leaves aggregates nil", func(t *testing.T) {
		a := computeAnalytics(nil)
		if a.NPSScore != nil || a.AvgCompletionTime != nil {
			t.Fatalf("expected nil aggregates, got %+v", a)
		}
	})

	t.Run("mixed score distribution", func(t *testing.T) {
		// 3 promoters, 3 passives, 4 detractors over 10 valid responses.
		scores := []int{10, 9, 9, 8, 7, 7, 6, 5, 3, 0}
		var facts []ResponseFacts
		for _, s := range scores {
			facts = append(facts, ResponseFacts{Score: intp(s)})
		}
		a := computeAnalytics(facts)
		if a.NPSScore == nil || *a.NPSScore != -10 {
			t.Fatalf("NPSScore = %v, want -10", a.NPSScore)
		}
	})

	t.Run("out of range scores are ignored", func(t *testing.T) {
		facts := []ResponseFacts{
			{Score: intp(10)},
			{Score: intp(11)},
			{Score: intp(-1)},
		}
		a := computeAnalytics(facts)
		if a.NPSScore == nil || *a.NPSScore != 100 {
			t.Fatalf("NPSScore = %v, want 100 from the single valid score", a.NPSScore)
		}
	})

	t.Run("completion time averages valid values", func(t *testing.T) {
		facts := []ResponseFacts{
			{CompletionTime: intp(30)},
			{CompletionTime: intp(60)},
			{CompletionTime: intp(0)},
			{},
		}
		a := computeAnalytics(facts)
		if a.AvgCompletionTime == nil || *a.AvgCompletionTime != 45 {
			t.Fatalf("AvgCompletionTime = %v, want 45", a.AvgCompletionTime)
		}
	})
}
