package surveys

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ratepro/backend/internal/models"
)

// Recipient is one resolved invite target. ContactID is nil for embedded
// contacts that do not exist in the contact book.
type Recipient struct {
	ContactID *uuid.UUID
	Ref       models.ContactRef
}

// ContactSource provides the contact lookups the resolver needs.
// Implemented by the contacts repository.
type ContactSource interface {
	GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]models.Contact, error)
	ListByCategories(ctx context.Context, tenantID uuid.UUID, names []string) ([]models.Contact, error)
	CategoryNamesByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]string, error)
}

// AudienceResolver expands a target audience into a deduplicated recipient
// list. Segment IDs are treated as category references (the legacy field
// name); both resolve through the category table.
type AudienceResolver struct {
	contacts ContactSource
}

// NewAudienceResolver creates an audience resolver.
func NewAudienceResolver(contacts ContactSource) *AudienceResolver {
	return &AudienceResolver{contacts: contacts}
}

// Resolve expands the audience. Recipients are deduplicated by normalized
// email; the first occurrence wins, so an explicit contact reference beats
// an embedded duplicate.
func (a *AudienceResolver) Resolve(ctx context.Context, tenantID uuid.UUID, audience models.TargetAudience) ([]Recipient, error) {
	var pool []Recipient

	byID, err := a.contacts.GetByIDs(ctx, tenantID, audience.ContactIDs)
	if err != nil {
		return nil, err
	}
	pool = appendContacts(pool, byID)

	catIDs := append(append([]uuid.UUID{}, audience.CategoryIDs...), audience.SegmentIDs...)
	if len(catIDs) > 0 {
		names, err := a.contacts.CategoryNamesByIDs(ctx, tenantID, catIDs)
		if err != nil {
			return nil, err
		}
		byCat, err := a.contacts.ListByCategories(ctx, tenantID, names)
		if err != nil {
			return nil, err
		}
		pool = appendContacts(pool, byCat)
	}

	for _, e := range audience.Embedded {
		pool = append(pool, Recipient{Ref: models.ContactRef{
			Email:    e.Email,
			FullName: e.FullName,
			Phone:    e.Phone,
		}})
	}

	return dedupeByEmail(pool), nil
}

func appendContacts(pool []Recipient, contacts []models.Contact) []Recipient {
	for i := range contacts {
		ct := contacts[i]
		id := ct.ID
		pool = append(pool, Recipient{
			ContactID: &id,
			Ref: models.ContactRef{
				Email:    ct.Email,
				FullName: ct.FullName,
				Phone:    ct.Phone,
			},
		})
	}
	return pool
}

// dedupeByEmail keeps the first recipient per normalized email. Entries
// without an email are dropped; there is nothing to deliver to.
func dedupeByEmail(pool []Recipient) []Recipient {
	seen := make(map[string]bool, len(pool))
	out := make([]Recipient, 0, len(pool))
	for _, rcpt := range pool {
		email := strings.ToLower(strings.TrimSpace(rcpt.Ref.Email))
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		rcpt.Ref.Email = email
		out = append(out, rcpt)
	}
	return out
}
