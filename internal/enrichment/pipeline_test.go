package enrichment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/models"
	"github.com/ratepro/backend/pkg/queue"
)

type fakeResponseSource struct {
	resp    *models.SurveyResponse
	written *models.Analysis
	stale   bool
}

func (f *fakeResponseSource) GetByID(context.Context, uuid.UUID) (*models.SurveyResponse, error) {
	return f.resp, nil
}

func (f *fakeResponseSource) WriteAnalysis(_ context.Context, _ uuid.UUID, analysis *models.Analysis, _ time.Time) (bool, error) {
	if f.stale {
		return false, nil
	}
	f.written = analysis
	return true, nil
}

type fakeContactStats struct{ calls int }

func (f *fakeContactStats) RecordResponse(context.Context, uuid.UUID, uuid.UUID, *int, *int, time.Time) error {
	f.calls++
	return nil
}

type fakeSurveyAggregates struct{ calls int }

func (f *fakeSurveyAggregates) RecordResponse(context.Context, uuid.UUID, time.Time) error {
	f.calls++
	return nil
}

type fakeAI struct {
	raw string
	err error
}

func (f *fakeAI) Complete(context.Context, string) (string, error) { return f.raw, f.err }

type fakeEnqueuer struct{ types []queue.JobType }

func (f *fakeEnqueuer) Enqueue(_ context.Context, jobType queue.JobType, _ uuid.UUID, _ interface{}) error {
	f.types = append(f.types, jobType)
	return nil
}

func enrichableResponse(tenantID uuid.UUID) *models.SurveyResponse {
	contact := uuid.New()
	return &models.SurveyResponse{
		ID:          uuid.New(),
		SurveyID:    uuid.New(),
		TenantID:    tenantID,
		ContactID:   &contact,
		Review:      "really helpful support team",
		Status:      models.ResponseSubmitted,
		SubmittedAt: time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC),
	}
}

func newTestPipeline(src *fakeResponseSource, stats *fakeContactStats, aggs *fakeSurveyAggregates, ai AIClient, jobs queue.Queue) *Pipeline {
	return NewPipeline(src, nil, nil, nil, nil, stats, aggs, ai, jobs, zap.NewNop())
}

func TestProcessEnrichmentRunsCountersAfterWrite(t *testing.T) {
	tenant := uuid.New()
	src := &fakeResponseSource{resp: enrichableResponse(tenant)}
	stats := &fakeContactStats{}
	aggs := &fakeSurveyAggregates{}
	ai := &fakeAI{raw: `{"sentiment":"positive","sentiment_score":0.8,"confidence":0.9,"summary":"happy"}`}
	p := newTestPipeline(src, stats, aggs, ai, &fakeEnqueuer{})

	payload := queue.EnrichmentPayload{ResponseID: src.resp.ID, TenantID: tenant, DispatchedAt: time.Now()}
	if err := p.ProcessEnrichment(context.Background(), payload, 0); err != nil {
		t.Fatalf("ProcessEnrichment: %v", err)
	}
	if src.written == nil || src.written.Sentiment != "positive" {
		t.Fatalf("written analysis = %+v", src.written)
	}
	if stats.calls != 1 || aggs.calls != 1 {
		t.Fatalf("stats/aggregates calls = %d/%d, want 1/1", stats.calls, aggs.calls)
	}
}

func TestProcessEnrichmentTransientFailureRetries(t *testing.T) {
	tenant := uuid.New()
	src := &fakeResponseSource{resp: enrichableResponse(tenant)}
	stats := &fakeContactStats{}
	aggs := &fakeSurveyAggregates{}
	ai := &fakeAI{err: errors.New("upstream timeout")}
	p := newTestPipeline(src, stats, aggs, ai, &fakeEnqueuer{})

	payload := queue.EnrichmentPayload{ResponseID: src.resp.ID, TenantID: tenant, DispatchedAt: time.Now()}
	if err := p.ProcessEnrichment(context.Background(), payload, 0); err == nil {
		t.Fatal("want error on a non-final attempt")
	}
	if src.written != nil {
		t.Fatalf("analysis written on transient failure: %+v", src.written)
	}
	if stats.calls != 0 || aggs.calls != 0 {
		t.Fatalf("counters moved on a failed attempt: %d/%d", stats.calls, aggs.calls)
	}
}

func TestProcessEnrichmentFinalAttemptSettlesNeutral(t *testing.T) {
	tenant := uuid.New()
	src := &fakeResponseSource{resp: enrichableResponse(tenant)}
	stats := &fakeContactStats{}
	aggs := &fakeSurveyAggregates{}
	ai := &fakeAI{err: errors.New("upstream down")}
	p := newTestPipeline(src, stats, aggs, ai, &fakeEnqueuer{})

	payload := queue.EnrichmentPayload{ResponseID: src.resp.ID, TenantID: tenant, DispatchedAt: time.Now()}
	if err := p.ProcessEnrichment(context.Background(), payload, queue.MaxRetries-1); err != nil {
		t.Fatalf("final attempt: %v", err)
	}
	if src.written == nil {
		t.Fatal("no analysis written on final attempt")
	}
	if src.written.Sentiment != "neutral" || src.written.Confidence != 0 {
		t.Fatalf("sentiment/confidence = %q/%v, want neutral/0", src.written.Sentiment, src.written.Confidence)
	}
	if stats.calls != 1 || aggs.calls != 1 {
		t.Fatalf("stats/aggregates calls = %d/%d, want 1/1", stats.calls, aggs.calls)
	}
}

func TestProcessEnrichmentRedeliverySkipsCounters(t *testing.T) {
	tenant := uuid.New()
	src := &fakeResponseSource{resp: enrichableResponse(tenant), stale: true}
	stats := &fakeContactStats{}
	aggs := &fakeSurveyAggregates{}
	ai := &fakeAI{raw: `{"sentiment":"neutral","confidence":0.5}`}
	p := newTestPipeline(src, stats, aggs, ai, &fakeEnqueuer{})

	payload := queue.EnrichmentPayload{ResponseID: src.resp.ID, TenantID: tenant, DispatchedAt: time.Now()}
	if err := p.ProcessEnrichment(context.Background(), payload, 0); err != nil {
		t.Fatalf("ProcessEnrichment: %v", err)
	}
	if stats.calls != 0 || aggs.calls != 0 {
		t.Fatalf("counters moved on redelivery: %d/%d", stats.calls, aggs.calls)
	}
}
