package enrichment

import (
	"testing"
	"time"

	"github.com/ratepro/backend/internal/models"
)

func intPtr(v int) *int { return &v }

func TestBuildText(t *testing.T) {
	resp := &models.SurveyResponse{
		Review: "  Solid experience.  ",
		Answers: []models.Answer{
			{QuestionID: "q1", Value: "Staff was friendly"},
			{QuestionID: "q2", Value: float64(9)},
			{QuestionID: "q3", Value: "   "},
			{QuestionID: "q4", Value: "Checkout was slow"},
		},
	}
	got := BuildText(resp)
	want := "Solid experience.\nStaff was friendly\nCheckout was slow"
	if got != want {
		t.Fatalf("BuildText = %q, want %q", got, want)
	}
}

func TestParseAIResult(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantOK        bool
		wantSentiment string
	}{
		{
			name:          "plain json",
			raw:           `{"sentiment":"positive","sentiment_score":0.8,"confidence":0.9}`,
			wantOK:        true,
			wantSentiment: "positive",
		},
		{
			name:          "json fenced in markdown",
			raw:           "```json\n{\"sentiment\":\"negative\",\"sentiment_score\":-0.7,\"confidence\":0.8}\n```",
			wantOK:        true,
			wantSentiment: "negative",
		},
		{
			name:          "json buried in prose",
			raw:           "Here is the analysis you asked for:\n{\"sentiment\":\"neutral\",\"confidence\":0.5} \nHope this helps!",
			wantOK:        true,
			wantSentiment: "neutral",
		},
		{
			name:          "braces inside strings do not confuse the scanner",
			raw:           `{"sentiment":"positive","summary":"loved the {new} layout","confidence":1}`,
			wantOK:        true,
			wantSentiment: "positive",
		},
		{name: "no json at all", raw: "I cannot analyze this.", wantOK: false},
		{name: "truncated json", raw: `{"sentiment":"positive","confi`, wantOK: false},
		{name: "empty", raw: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := ParseAIResult(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (result %+v)", ok, tt.wantOK, res)
			}
			if ok && res.Sentiment != tt.wantSentiment {
				t.Errorf("sentiment = %q, want %q", res.Sentiment, tt.wantSentiment)
			}
		})
	}
}

func TestParseAIResultClampsRanges(t *testing.T) {
	res, ok := ParseAIResult(`{"sentiment":"positive","sentiment_score":3.5,"confidence":1.8}`)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if res.SentimentScore != 1 {
		t.Errorf("SentimentScore = %v, want clamped to 1", res.SentimentScore)
	}
	if res.Confidence != 1 {
		t.Errorf("Confidence = %v, want clamped to 1", res.Confidence)
	}
}

func TestDerive(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("clean positive response is not flagged", func(t *testing.T) {
		res := aiResult{Sentiment: "positive", SentimentScore: 0.9, Confidence: 0.95}
		resp := &models.SurveyResponse{Score: intPtr(10), Rating: intPtr(5)}
		a := Derive(res, resp, now)
		if a.FlaggedForReview {
			t.Fatalf("flagged with rules %v, want unflagged", a.TriggeredRules)
		}
		if a.NPSCategory != models.NPSPromoter {
			t.Errorf("NPSCategory = %q, want promoter", a.NPSCategory)
		}
		if a.RatingCategory != models.RatingExcellent {
			t.Errorf("RatingCategory = %q, want excellent", a.RatingCategory)
		}
	})

	t.Run("low rating flags", func(t *testing.T) {
		a := Derive(NeutralResult(), &models.SurveyResponse{Rating: intPtr(2)}, now)
		if !a.FlaggedForReview {
			t.Fatal("rating 2 should flag for review")
		}
	})

	t.Run("detractor score flags", func(t *testing.T) {
		a := Derive(NeutralResult(), &models.SurveyResponse{Score: intPtr(6)}, now)
		if !a.FlaggedForReview {
			t.Fatal("score 6 should flag for review")
		}
		if a.NPSCategory != models.NPSDetractor {
			t.Errorf("NPSCategory = %q, want detractor", a.NPSCategory)
		}
	})

	t.Run("negative sentiment flags only with confidence", func(t *testing.T) {
		weak := aiResult{Sentiment: "negative", Confidence: 0.5}
		if a := Derive(weak, &models.SurveyResponse{}, now); a.FlaggedForReview {
			t.Fatal("low-confidence negative should not flag")
		}
		strong := aiResult{Sentiment: "negative", Confidence: 0.6}
		if a := Derive(strong, &models.SurveyResponse{}, now); !a.FlaggedForReview {
			t.Fatal("confident negative should flag")
		}
	})

	t.Run("complaint flags and records every fired rule", func(t *testing.T) {
		res := aiResult{Sentiment: "negative", Confidence: 0.9,
			Classification: models.Classification{IsComplaint: true}}
		a := Derive(res, &models.SurveyResponse{Rating: intPtr(1), Score: intPtr(2)}, now)
		if !a.FlaggedForReview {
			t.Fatal("complaint should flag")
		}
		if len(a.TriggeredRules) != 4 {
			t.Errorf("TriggeredRules = %v, want all four rules", a.TriggeredRules)
		}
	})

	t.Run("rating bins", func(t *testing.T) {
		bins := map[int]string{
			5: models.RatingExcellent,
			4: models.RatingExcellent, // 4/5 = 0.8
			3: models.RatingGood,      // 0.6
			2: models.RatingAverage,   // 0.4
			1: models.RatingPoor,      // 0.2
		}
		for rating, want := range bins {
			a := Derive(NeutralResult(), &models.SurveyResponse{Rating: intPtr(rating)}, now)
			if a.RatingCategory != want {
				t.Errorf("rating %d: category = %q, want %q", rating, a.RatingCategory, want)
			}
		}
	})
}
