package responses

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/invites"
	"github.com/ratepro/backend/internal/models"
	"github.com/ratepro/backend/internal/surveys"
	"github.com/ratepro/backend/pkg/queue"
)

type fakeSurveySource struct{ survey *models.Survey }

func (f *fakeSurveySource) GetByID(context.Context, uuid.UUID) (*models.Survey, error) {
	return f.survey, nil
}

type fakeInviteSource struct{ invite *models.SurveyInvite }

func (f *fakeInviteSource) Validate(context.Context, string) (*models.SurveyInvite, error) {
	return f.invite, nil
}

// fakeSubmitStore mimics the transactional invite consumption: the first
// CreateWithInvite for a given invite wins, later ones lose the
// compare-and-set and persist nothing.
type fakeSubmitStore struct {
	created  []*models.SurveyResponse
	consumed map[uuid.UUID]bool
}

func newFakeSubmitStore() *fakeSubmitStore {
	return &fakeSubmitStore{consumed: map[uuid.UUID]bool{}}
}

func (f *fakeSubmitStore) Create(_ context.Context, resp *models.SurveyResponse) error {
	resp.ID = uuid.New()
	f.created = append(f.created, resp)
	return nil
}

func (f *fakeSubmitStore) CreateWithInvite(ctx context.Context, resp *models.SurveyResponse, inviteID uuid.UUID, _ time.Time) error {
	if f.consumed[inviteID] {
		return invites.ErrAlreadyResponded
	}
	f.consumed[inviteID] = true
	return f.Create(ctx, resp)
}

func (f *fakeSubmitStore) GetByResumeToken(context.Context, string) (*models.SurveyResponse, error) {
	return nil, errors.New("no partial")
}

func (f *fakeSubmitStore) UpdateDraftAnswers(context.Context, *models.SurveyResponse, bool) error {
	return nil
}

type fakeJobQueue struct{ types []queue.JobType }

func (f *fakeJobQueue) Enqueue(_ context.Context, jobType queue.JobType, _ uuid.UUID, _ interface{}) error {
	f.types = append(f.types, jobType)
	return nil
}

func activeSurvey(tenantID uuid.UUID) *models.Survey {
	return &models.Survey{
		ID:       uuid.New(),
		TenantID: tenantID,
		Status:   models.SurveyActive,
		Snapshot: &models.PublishedSnapshot{
			Questions: []models.Question{{ID: "q1", Type: models.QuestionText, Label: "Feedback"}},
			Version:   1,
		},
	}
}

func TestSubmitConsumesInviteOnce(t *testing.T) {
	tenant := uuid.New()
	contact := uuid.New()
	survey := activeSurvey(tenant)
	invite := &models.SurveyInvite{
		ID:        uuid.New(),
		SurveyID:  survey.ID,
		TenantID:  tenant,
		ContactID: &contact,
		Status:    models.InvitePending,
	}

	store := newFakeSubmitStore()
	jobs := &fakeJobQueue{}
	ing := NewIngestor(&fakeSurveySource{survey}, &fakeInviteSource{invite}, store,
		surveys.NewProofSigner("secret"), jobs, zap.NewNop())

	score := 10
	in := SubmitInput{
		InviteToken: "tok",
		Answers:     []models.Answer{{QuestionID: "q1", Value: "excellent service"}},
		Score:       &score,
	}

	first, err := ing.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if first.InviteID == nil || *first.InviteID != invite.ID {
		t.Fatalf("InviteID = %v, want %v", first.InviteID, invite.ID)
	}

	// A second submission on the same token validates against the still
	// pending invite it saw, then loses the consumption race.
	if _, err := ing.Submit(context.Background(), in); !errors.Is(err, invites.ErrAlreadyResponded) {
		t.Fatalf("second submit: err = %v, want ErrAlreadyResponded", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("persisted responses = %d, want 1", len(store.created))
	}
	if len(jobs.types) != 1 || jobs.types[0] != queue.JobTypeEnrichment {
		t.Fatalf("enqueued jobs = %v, want one enrichment job", jobs.types)
	}
}

func TestSubmitAcknowledgementEnqueuesOnly(t *testing.T) {
	tenant := uuid.New()
	survey := activeSurvey(tenant)
	store := newFakeSubmitStore()
	jobs := &fakeJobQueue{}
	ing := NewIngestor(&fakeSurveySource{survey}, &fakeInviteSource{nil}, store,
		surveys.NewProofSigner("secret"), jobs, zap.NewNop())

	resp, err := ing.Submit(context.Background(), SubmitInput{
		SurveyID:    survey.ID,
		Answers:     []models.Answer{{QuestionID: "q1", Value: "fine"}},
		IsAnonymous: true,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.Status != models.ResponseSubmitted {
		t.Fatalf("Status = %q, want submitted", resp.Status)
	}
	// The request path writes the row and hands off to enrichment; stats
	// and aggregates run downstream of the enrichment job.
	if len(jobs.types) != 1 || jobs.types[0] != queue.JobTypeEnrichment {
		t.Fatalf("enqueued jobs = %v, want one enrichment job", jobs.types)
	}
}

func TestSubmitPartialSkipsEnrichment(t *testing.T) {
	tenant := uuid.New()
	survey := activeSurvey(tenant)
	store := newFakeSubmitStore()
	jobs := &fakeJobQueue{}
	ing := NewIngestor(&fakeSurveySource{survey}, &fakeInviteSource{nil}, store,
		surveys.NewProofSigner("secret"), jobs, zap.NewNop())

	resp, err := ing.Submit(context.Background(), SubmitInput{
		SurveyID: survey.ID,
		Answers:  []models.Answer{{QuestionID: "q1", Value: "so far"}},
		Partial:  true,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.Status != models.ResponsePartial || resp.ResumeToken == "" {
		t.Fatalf("Status/ResumeToken = %q/%q, want partial with token", resp.Status, resp.ResumeToken)
	}
	if len(jobs.types) != 0 {
		t.Fatalf("enqueued jobs = %v, want none for a partial save", jobs.types)
	}
}
