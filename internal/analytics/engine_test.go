package analytics

import (
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func factsWithScores(scores ...int) []Fact {
	facts := make([]Fact, len(scores))
	for i, s := range scores {
		facts[i] = Fact{Score: intPtr(s)}
	}
	return facts
}

func TestComputeNPS(t *testing.T) {
	t.Run("mixed distribution", func(t *testing.T) {
		// 3 promoters (10, 9, 9), 3 passives (8, 7, 7), 4 detractors
		// (6, 5, 3, 0) over 10 valid responses.
		got := ComputeNPS(factsWithScores(10, 9, 9, 8, 7, 7, 6, 5, 3, 0))
		if got.Valid != 10 {
			t.Fatalf("Valid = %d, want 10", got.Valid)
		}
		if got.Promoters != 3 || got.Passives != 3 || got.Detractors != 4 {
			t.Fatalf("breakdown = %d/%d/%d, want 3/3/4", got.Promoters, got.Passives, got.Detractors)
		}
		if got.Score != -10 {
			t.Errorf("Score = %v, want -10", got.Score)
		}
	})

	t.Run("out of range scores excluded", func(t *testing.T) {
		got := ComputeNPS(factsWithScores(10, 10, 11, -1))
		if got.Valid != 2 {
			t.Fatalf("Valid = %d, want 2", got.Valid)
		}
		if got.Score != 100 {
			t.Errorf("Score = %v, want 100", got.Score)
		}
	})

	t.Run("empty set", func(t *testing.T) {
		got := ComputeNPS(nil)
		if got.Score != 0 || got.Valid != 0 {
			t.Errorf("got %+v, want zeroed summary", got)
		}
	})
}

func TestComputeCSI(t *testing.T) {
	facts := make([]Fact, 0, 10)
	for _, r := range []int{5, 5, 4, 4, 3, 3, 2, 2, 1, 1} {
		facts = append(facts, Fact{Rating: intPtr(r)})
	}
	got := ComputeCSI(facts, 5)
	if got.Rated != 10 {
		t.Fatalf("Rated = %d, want 10", got.Rated)
	}
	if got.AverageRating != 3 {
		t.Errorf("AverageRating = %v, want 3", got.AverageRating)
	}
	if got.CSI != 60 {
		t.Errorf("CSI = %v, want 60", got.CSI)
	}

	if empty := ComputeCSI(nil, 5); empty.CSI != 0 || empty.Rated != 0 {
		t.Errorf("empty CSI = %+v, want zeroed summary", empty)
	}
}

func TestComputeSentiment(t *testing.T) {
	facts := []Fact{
		{Sentiment: "positive", Keywords: []string{"staff", "clean"}, IsPraise: true},
		{Sentiment: "positive", Keywords: []string{"staff"}, Themes: []string{"service"}},
		{Sentiment: "negative", Keywords: []string{"wait"}, Themes: []string{"service"},
			IsComplaint: true, Flagged: true},
		{}, // not yet enriched
	}
	got := ComputeSentiment(facts)
	if got.Total != 4 {
		t.Fatalf("Total = %d, want 4", got.Total)
	}
	if got.Distribution["positive"] != 2 || got.Distribution["negative"] != 1 || got.Distribution["unknown"] != 1 {
		t.Errorf("Distribution = %v", got.Distribution)
	}
	if got.Percentages["positive"] != 50 || got.Percentages["unknown"] != 25 {
		t.Errorf("Percentages = %v", got.Percentages)
	}
	if len(got.TopKeywords) == 0 || got.TopKeywords[0].Term != "staff" || got.TopKeywords[0].Count != 2 {
		t.Errorf("TopKeywords = %v, want staff first with count 2", got.TopKeywords)
	}
	if got.Complaints != 1 || got.Praise != 1 || got.Flagged != 1 {
		t.Errorf("classification counts = %d/%d/%d", got.Complaints, got.Praise, got.Flagged)
	}
}

func TestComputeVolumeTrendFillsGaps(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 3, d, 12, 0, 0, 0, time.UTC) }
	facts := []Fact{
		{SubmittedAt: day(1)},
		{SubmittedAt: day(1)},
		{SubmittedAt: day(3)},
	}
	points := ComputeVolumeTrend(facts, IntervalDay, day(1), day(5))
	if len(points) != 5 {
		t.Fatalf("len(points) = %d, want 5 contiguous days", len(points))
	}
	want := []int{2, 0, 1, 0, 0}
	for i, p := range points {
		if p.Responses != want[i] {
			t.Errorf("day %d: responses = %d, want %d", i+1, p.Responses, want[i])
		}
	}
}

func TestComputeSatisfactionTrend(t *testing.T) {
	day1 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	facts := []Fact{
		{SubmittedAt: day1, Rating: intPtr(4), Score: intPtr(8)},
		{SubmittedAt: day1, Rating: intPtr(2), Score: intPtr(4)},
		{SubmittedAt: day2, Rating: intPtr(5), Score: intPtr(10)},
	}
	points := ComputeSatisfactionTrend(facts, IntervalDay)
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(points))
	}
	if points[0].AverageRating != 3 || points[0].AverageScore != 6 {
		t.Errorf("day 1 averages = %v/%v, want 3/6", points[0].AverageRating, points[0].AverageScore)
	}
	if points[0].RatingChange != nil {
		t.Error("first point should have no change annotation")
	}
	if points[1].RatingChange == nil || *points[1].RatingChange != 2 {
		t.Errorf("day 2 rating change = %v, want 2", points[1].RatingChange)
	}
}

func TestComputeComplaintTrends(t *testing.T) {
	trends := ComputeComplaintTrends(
		map[string]int{"billing": 5, "service": 2, "delivery": 3},
		map[string]int{"billing": 2, "service": 2, "quality": 1},
	)
	byCategory := map[string]CategoryTrend{}
	for _, tr := range trends {
		byCategory[tr.Category] = tr
	}
	if byCategory["billing"].Direction != "up" {
		t.Errorf("billing = %+v, want up", byCategory["billing"])
	}
	if byCategory["service"].Direction != "stable" {
		t.Errorf("service = %+v, want stable", byCategory["service"])
	}
	if byCategory["quality"].Direction != "down" || byCategory["quality"].Current != 0 {
		t.Errorf("quality = %+v, want down to 0", byCategory["quality"])
	}
	if byCategory["delivery"].Previous != 0 {
		t.Errorf("delivery = %+v, want previous 0", byCategory["delivery"])
	}
}

func TestComputeEngagement(t *testing.T) {
	at := func(hour int, day int) time.Time {
		return time.Date(2025, 3, day, hour, 30, 0, 0, time.UTC)
	}
	facts := []Fact{
		{SubmittedAt: at(9, 3), CompletionTime: intPtr(30)}, // Monday
		{SubmittedAt: at(9, 4), CompletionTime: intPtr(60)},
		{SubmittedAt: at(14, 3)},
	}
	got := ComputeEngagement(facts)
	if got.PeakHour != 9 {
		t.Errorf("PeakHour = %d, want 9", got.PeakHour)
	}
	if got.PeakWeekday != 1 { // Monday
		t.Errorf("PeakWeekday = %d, want 1", got.PeakWeekday)
	}
	if got.AvgCompletionTime == nil || *got.AvgCompletionTime != 45 {
		t.Errorf("AvgCompletionTime = %v, want 45", got.AvgCompletionTime)
	}
}

func TestCompare(t *testing.T) {
	current := factsWithScores(10, 10, 9, 8)
	previous := factsWithScores(10, 0)

	got := Compare(current, previous)
	if got.Current.Responses != 4 || got.Previous.Responses != 2 {
		t.Fatalf("responses = %d vs %d", got.Current.Responses, got.Previous.Responses)
	}
	if got.ResponsesChange == nil || *got.ResponsesChange != 100 {
		t.Errorf("ResponsesChange = %v, want 100", got.ResponsesChange)
	}
	// Previous NPS is 0, so percent change is undefined and omitted.
	if got.NPSChange != nil {
		t.Errorf("NPSChange = %v, want nil for zero baseline", got.NPSChange)
	}
}

func TestBucketStart(t *testing.T) {
	// Wednesday 2025-03-05.
	ts := time.Date(2025, 3, 5, 15, 4, 5, 0, time.UTC)
	if got := bucketStart(ts, IntervalDay); !got.Equal(time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("day bucket = %v", got)
	}
	if got := bucketStart(ts, IntervalWeek); !got.Equal(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("week bucket = %v, want Monday 2025-03-03", got)
	}
	if got := bucketStart(ts, IntervalMonth); !got.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("month bucket = %v", got)
	}
}
