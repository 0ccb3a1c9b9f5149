package responses

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func boolPtr(v bool) *bool { return &v }
func intPtr(v int) *int    { return &v }

func TestListOptionsFilter(t *testing.T) {
	tenant := uuid.New()

	t.Run("no options scopes to the tenant only", func(t *testing.T) {
		where, args := ListOptions{}.filter(tenant)
		if where != "tenant_id = $1" {
			t.Fatalf("where = %q", where)
		}
		if len(args) != 1 {
			t.Fatalf("len(args) = %d, want 1", len(args))
		}
	})

	t.Run("rating range and nps category", func(t *testing.T) {
		where, args := ListOptions{
			RatingMin:   intPtr(1),
			RatingMax:   intPtr(3),
			NPSCategory: "detractor",
		}.filter(tenant)
		for _, fragment := range []string{
			"analysis->>'nps_category' = $2",
			"rating >= $3",
			"rating <= $4",
		} {
			if !strings.Contains(where, fragment) {
				t.Errorf("where missing %q:\n%s", fragment, where)
			}
		}
		if len(args) != 4 {
			t.Fatalf("len(args) = %d, want 4", len(args))
		}
	})

	t.Run("contact presence adds no placeholder", func(t *testing.T) {
		where, args := ListOptions{HasContact: boolPtr(true)}.filter(tenant)
		if !strings.Contains(where, "contact_id IS NOT NULL") {
			t.Fatalf("where = %q", where)
		}
		if len(args) != 1 {
			t.Fatalf("len(args) = %d, want 1", len(args))
		}

		where, _ = ListOptions{HasContact: boolPtr(false)}.filter(tenant)
		if !strings.Contains(where, "contact_id IS NULL") {
			t.Fatalf("where = %q", where)
		}
	})

	t.Run("anonymous flag binds a parameter", func(t *testing.T) {
		where, args := ListOptions{IsAnonymous: boolPtr(true)}.filter(tenant)
		if !strings.Contains(where, "is_anonymous = $2") {
			t.Fatalf("where = %q", where)
		}
		if len(args) != 2 || args[1] != true {
			t.Fatalf("args = %v", args)
		}
	})
}
