package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ratepro/backend/internal/models"
)

// Fact is the flattened view of one submitted response that every
// aggregation computes from. Analysis fields are zero-valued when the
// response has not been enriched yet.
type Fact struct {
	SurveyID       uuid.UUID
	SubmittedAt    time.Time
	Score          *int
	Rating         *int
	CompletionTime *int
	Sentiment      string
	Keywords       []string
	Themes         []string
	Emotions       []string
	IsComplaint    bool
	IsPraise       bool
	IsSuggestion   bool
	Flagged        bool
}

// Trend intervals.
const (
	IntervalDay   = "day"
	IntervalWeek  = "week"
	IntervalMonth = "month"
)

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }

// NPSSummary is the Net Promoter Score breakdown.
type NPSSummary struct {
	Score      float64 `json:"score"`
	Promoters  int     `json:"promoters"`
	Passives   int     `json:"passives"`
	Detractors int     `json:"detractors"`
	Valid      int     `json:"valid_responses"`
}

// ComputeNPS derives the NPS summary. Scores outside 0-10 are excluded
// from the valid set. An empty set yields the zeroed struct.
func ComputeNPS(facts []Fact) NPSSummary {
	var s NPSSummary
	for _, f := range facts {
		if f.Score == nil || *f.Score < 0 || *f.Score > 10 {
			continue
		}
		s.Valid++
		switch models.NPSCategoryForScore(*f.Score) {
		case models.NPSPromoter:
			s.Promoters++
		case models.NPSDetractor:
			s.Detractors++
		default:
			s.Passives++
		}
	}
	if s.Valid > 0 {
		s.Score = round2(100 * float64(s.Promoters-s.Detractors) / float64(s.Valid))
	}
	return s
}

// CSISummary is the Customer Satisfaction Index breakdown.
type CSISummary struct {
	CSI           float64 `json:"csi"`
	AverageRating float64 `json:"average_rating"`
	MaxRating     int     `json:"max_rating"`
	Rated         int     `json:"rated_responses"`
}

// ComputeCSI derives CSI = average/max*100 over rated responses.
func ComputeCSI(facts []Fact, maxRating int) CSISummary {
	if maxRating <= 0 {
		maxRating = 5
	}
	s := CSISummary{MaxRating: maxRating}
	sum := 0
	for _, f := range facts {
		if f.Rating == nil {
			continue
		}
		s.Rated++
		sum += *f.Rating
	}
	if s.Rated > 0 {
		avg := float64(sum) / float64(s.Rated)
		s.AverageRating = round2(avg)
		s.CSI = round2(avg / float64(maxRating) * 100)
	}
	return s
}

// RankedTerm is a term with its occurrence count.
type RankedTerm struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// SentimentOverview aggregates the stored analyses of a response set.
// The AI is never re-consulted; unanalyzed responses count as unknown.
type SentimentOverview struct {
	Total        int                `json:"total"`
	Distribution map[string]int     `json:"distribution"`
	Percentages  map[string]float64 `json:"percentages"`
	TopKeywords  []RankedTerm       `json:"top_keywords"`
	TopThemes    []RankedTerm       `json:"top_themes"`
	Emotions     map[string]int     `json:"emotions"`
	Complaints   int                `json:"complaints"`
	Praise       int                `json:"praise"`
	Suggestions  int                `json:"suggestions"`
	Flagged      int                `json:"flagged"`
}

// ComputeSentiment builds the sentiment overview: distribution with 1dp
// percentages, top-10 keywords, top-5 themes and classification counts.
func ComputeSentiment(facts []Fact) SentimentOverview {
	o := SentimentOverview{
		Distribution: map[string]int{},
		Percentages:  map[string]float64{},
		Emotions:     map[string]int{},
	}
	keywords := map[string]int{}
	themes := map[string]int{}
	for _, f := range facts {
		o.Total++
		sentiment := f.Sentiment
		if sentiment == "" {
			sentiment = "unknown"
		}
		o.Distribution[sentiment]++
		for _, k := range f.Keywords {
			keywords[k]++
		}
		for _, t := range f.Themes {
			themes[t]++
		}
		for _, e := range f.Emotions {
			o.Emotions[e]++
		}
		if f.IsComplaint {
			o.Complaints++
		}
		if f.IsPraise {
			o.Praise++
		}
		if f.IsSuggestion {
			o.Suggestions++
		}
		if f.Flagged {
			o.Flagged++
		}
	}
	if o.Total > 0 {
		for sentiment, count := range o.Distribution {
			o.Percentages[sentiment] = round1(100 * float64(count) / float64(o.Total))
		}
	}
	o.TopKeywords = topTerms(keywords, 10)
	o.TopThemes = topTerms(themes, 5)
	return o
}

func topTerms(counts map[string]int, n int) []RankedTerm {
	terms := make([]RankedTerm, 0, len(counts))
	for term, count := range counts {
		terms = append(terms, RankedTerm{Term: term, Count: count})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

// bucketStart truncates a timestamp to its interval bucket in UTC.
func bucketStart(t time.Time, interval string) time.Time {
	t = t.UTC()
	switch interval {
	case IntervalWeek:
		day := t.Truncate(24 * time.Hour)
		// Weeks start Monday.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case IntervalMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return t.Truncate(24 * time.Hour)
	}
}

func bucketNext(t time.Time, interval string) time.Time {
	switch interval {
	case IntervalWeek:
		return t.AddDate(0, 0, 7)
	case IntervalMonth:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// SatisfactionPoint is one interval of the satisfaction trend.
type SatisfactionPoint struct {
	Period        time.Time `json:"period"`
	AverageRating float64   `json:"average_rating"`
	AverageScore  float64   `json:"average_score"`
	Responses     int       `json:"responses"`
	RatingChange  *float64  `json:"rating_change,omitempty"`
	ScoreChange   *float64  `json:"score_change,omitempty"`
}

// ComputeSatisfactionTrend averages rating and score per interval and
// annotates period-over-period change. Intervals without data are skipped;
// change compares against the previous populated interval.
func ComputeSatisfactionTrend(facts []Fact, interval string) []SatisfactionPoint {
	type bucket struct {
		ratingSum, ratingN int
		scoreSum, scoreN   int
		responses          int
	}
	buckets := map[time.Time]*bucket{}
	for _, f := range facts {
		key := bucketStart(f.SubmittedAt, interval)
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}
		b.responses++
		if f.Rating != nil {
			b.ratingSum += *f.Rating
			b.ratingN++
		}
		if f.Score != nil && *f.Score >= 0 && *f.Score <= 10 {
			b.scoreSum += *f.Score
			b.scoreN++
		}
	}

	keys := make([]time.Time, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	points := make([]SatisfactionPoint, 0, len(keys))
	for i, k := range keys {
		b := buckets[k]
		p := SatisfactionPoint{Period: k, Responses: b.responses}
		if b.ratingN > 0 {
			p.AverageRating = round2(float64(b.ratingSum) / float64(b.ratingN))
		}
		if b.scoreN > 0 {
			p.AverageScore = round2(float64(b.scoreSum) / float64(b.scoreN))
		}
		if i > 0 {
			prev := points[i-1]
			rc := round2(p.AverageRating - prev.AverageRating)
			sc := round2(p.AverageScore - prev.AverageScore)
			p.RatingChange = &rc
			p.ScoreChange = &sc
		}
		points = append(points, p)
	}
	return points
}

// VolumePoint is one interval of the response volume trend.
type VolumePoint struct {
	Period    time.Time `json:"period"`
	Responses int       `json:"responses"`
}

// ComputeVolumeTrend counts responses per interval over [from, to),
// emitting a contiguous series with zero-filled gaps.
func ComputeVolumeTrend(facts []Fact, interval string, from, to time.Time) []VolumePoint {
	counts := map[time.Time]int{}
	for _, f := range facts {
		counts[bucketStart(f.SubmittedAt, interval)]++
	}
	var points []VolumePoint
	for t := bucketStart(from, interval); t.Before(to); t = bucketNext(t, interval) {
		points = append(points, VolumePoint{Period: t, Responses: counts[t]})
	}
	return points
}

// CategoryTrend is one action category's movement between two windows.
type CategoryTrend struct {
	Category  string `json:"category"`
	Current   int    `json:"current"`
	Previous  int    `json:"previous"`
	Direction string `json:"direction"` // up, down, stable
}

// ComputeComplaintTrends compares per-category action counts between the
// current and previous windows.
func ComputeComplaintTrends(current, previous map[string]int) []CategoryTrend {
	seen := map[string]bool{}
	var trends []CategoryTrend
	add := func(category string) {
		if seen[category] {
			return
		}
		seen[category] = true
		cur, prev := current[category], previous[category]
		direction := "stable"
		if cur > prev {
			direction = "up"
		} else if cur < prev {
			direction = "down"
		}
		trends = append(trends, CategoryTrend{
			Category:  category,
			Current:   cur,
			Previous:  prev,
			Direction: direction,
		})
	}
	for c := range current {
		add(c)
	}
	for c := range previous {
		add(c)
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Category < trends[j].Category })
	return trends
}

// EngagementSummary describes when respondents submit.
type EngagementSummary struct {
	ByHour            [24]int  `json:"by_hour"`
	ByWeekday         [7]int   `json:"by_weekday"` // Sunday first
	PeakHour          int      `json:"peak_hour"`
	PeakWeekday       int      `json:"peak_weekday"`
	AvgCompletionTime *float64 `json:"avg_completion_time,omitempty"` // seconds
}

// ComputeEngagement builds submission histograms and the completion-time
// average.
func ComputeEngagement(facts []Fact) EngagementSummary {
	var s EngagementSummary
	timeSum, timeN := 0, 0
	for _, f := range facts {
		t := f.SubmittedAt.UTC()
		s.ByHour[t.Hour()]++
		s.ByWeekday[int(t.Weekday())]++
		if f.CompletionTime != nil && *f.CompletionTime > 0 {
			timeSum += *f.CompletionTime
			timeN++
		}
	}
	for h, n := range s.ByHour {
		if n > s.ByHour[s.PeakHour] {
			s.PeakHour = h
		}
	}
	for d, n := range s.ByWeekday {
		if n > s.ByWeekday[s.PeakWeekday] {
			s.PeakWeekday = d
		}
	}
	if timeN > 0 {
		avg := round2(float64(timeSum) / float64(timeN))
		s.AvgCompletionTime = &avg
	}
	return s
}

// WindowMetrics are the comparable numbers of one time window.
type WindowMetrics struct {
	Responses int     `json:"responses"`
	NPS       float64 `json:"nps"`
	CSI       float64 `json:"csi"`
	Flagged   int     `json:"flagged"`
}

// Comparison holds two aligned windows and their percent changes.
type Comparison struct {
	Current         WindowMetrics `json:"current"`
	Previous        WindowMetrics `json:"previous"`
	ResponsesChange *float64      `json:"responses_change_pct,omitempty"`
	NPSChange       *float64      `json:"nps_change_pct,omitempty"`
	CSIChange       *float64      `json:"csi_change_pct,omitempty"`
}

func windowMetrics(facts []Fact) WindowMetrics {
	m := WindowMetrics{
		Responses: len(facts),
		NPS:       ComputeNPS(facts).Score,
		CSI:       ComputeCSI(facts, 5).CSI,
	}
	for _, f := range facts {
		if f.Flagged {
			m.Flagged++
		}
	}
	return m
}

// Compare computes both windows' metrics and their percent change. Change
// is omitted when the previous value is zero.
func Compare(current, previous []Fact) Comparison {
	c := Comparison{
		Current:  windowMetrics(current),
		Previous: windowMetrics(previous),
	}
	c.ResponsesChange = pctChange(float64(c.Previous.Responses), float64(c.Current.Responses))
	c.NPSChange = pctChange(c.Previous.NPS, c.Current.NPS)
	c.CSIChange = pctChange(c.Previous.CSI, c.Current.CSI)
	return c
}

func pctChange(prev, cur float64) *float64 {
	if prev == 0 {
		return nil
	}
	v := round1(100 * (cur - prev) / prev)
	return &v
}
