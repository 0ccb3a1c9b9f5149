package responses

import (
	"errors"
	"testing"
	"time"

	"github.com/ratepro/backend/internal/models"
)

func snapshot() *models.PublishedSnapshot {
	return &models.PublishedSnapshot{
		Version:  1,
		LockedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Questions: []models.Question{
			{ID: "q1", Type: models.QuestionText, Label: "Comments", Required: true},
			{ID: "q2", Type: models.QuestionNPS, Label: "Recommend us?"},
			{ID: "q3", Type: models.QuestionRating, Label: "Service", Max: 5},
			{ID: "q4", Type: models.QuestionChoice, Label: "Channel", Options: []string{"web", "store"}},
			{ID: "q5", Type: models.QuestionNumber, Label: "Visits"},
		},
	}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	out := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		out[f.QuestionID] = f.Message
	}
	return out
}

func TestValidateAnswers(t *testing.T) {
	tests := []struct {
		name      string
		answers   []models.Answer
		partial   bool
		wantErrOn []string
	}{
		{
			name: "valid full submission",
			answers: []models.Answer{
				{QuestionID: "q1", Value: "great service"},
				{QuestionID: "q2", Value: float64(9)},
				{QuestionID: "q3", Value: float64(4)},
				{QuestionID: "q4", Value: "web"},
				{QuestionID: "q5", Value: float64(3)},
			},
		},
		{
			name:      "required answer missing",
			answers:   []models.Answer{{QuestionID: "q2", Value: float64(7)}},
			wantErrOn: []string{"q1"},
		},
		{
			name: "required missing is fine on partial save",
			answers: []models.Answer{
				{QuestionID: "q2", Value: float64(7)},
			},
			partial: true,
		},
		{
			name: "nps out of range",
			answers: []models.Answer{
				{QuestionID: "q1", Value: "x"},
				{QuestionID: "q2", Value: float64(11)},
			},
			wantErrOn: []string{"q2"},
		},
		{
			name: "nps must be an integer",
			answers: []models.Answer{
				{QuestionID: "q1", Value: "x"},
				{QuestionID: "q2", Value: 7.5},
			},
			wantErrOn: []string{"q2"},
		},
		{
			name: "rating below one",
			answers: []models.Answer{
				{QuestionID: "q1", Value: "x"},
				{QuestionID: "q3", Value: float64(0)},
			},
			wantErrOn: []string{"q3"},
		},
		{
			name: "rating above max",
			answers: []models.Answer{
				{QuestionID: "q1", Value: "x"},
				{QuestionID: "q3", Value: float64(6)},
			},
			wantErrOn: []string{"q3"},
		},
		{
			name: "choice outside options",
			answers: []models.Answer{
				{QuestionID: "q1", Value: "x"},
				{QuestionID: "q4", Value: "phone"},
			},
			wantErrOn: []string{"q4"},
		},
		{
			name: "number expects numeric",
			answers: []models.Answer{
				{QuestionID: "q1", Value: "x"},
				{QuestionID: "q5", Value: "three"},
			},
			wantErrOn: []string{"q5"},
		},
		{
			name: "unknown question rejected",
			answers: []models.Answer{
				{QuestionID: "q1", Value: "x"},
				{QuestionID: "zz", Value: "y"},
			},
			wantErrOn: []string{"zz"},
		},
		{
			name: "empty required answer rejected",
			answers: []models.Answer{
				{QuestionID: "q1", Value: "   "},
			},
			wantErrOn: []string{"q1"},
		},
		{
			name: "duplicate answers rejected",
			answers: []models.Answer{
				{QuestionID: "q1", Value: "x"},
				{QuestionID: "q1", Value: "y"},
			},
			wantErrOn: []string{"q1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAnswers(snapshot(), tt.answers, tt.partial)
			if len(tt.wantErrOn) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			fields := fieldsOf(t, err)
			for _, q := range tt.wantErrOn {
				if _, ok := fields[q]; !ok {
					t.Errorf("expected a field error on %s, got %v", q, fields)
				}
			}
		})
	}
}

func TestValidateAnswersUsesSnapshotOnly(t *testing.T) {
	// The snapshot has no q9 even if the live draft gained one; answers
	// against unlocked questions must fail.
	err := ValidateAnswers(snapshot(), []models.Answer{
		{QuestionID: "q1", Value: "x"},
		{QuestionID: "q9", Value: "draft question"},
	}, false)
	fields := fieldsOf(t, err)
	if fields["q9"] != "unknown question" {
		t.Fatalf("q9 error = %q, want unknown question", fields["q9"])
	}
}
