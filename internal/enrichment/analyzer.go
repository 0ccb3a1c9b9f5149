package enrichment

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ratepro/backend/internal/models"
)

// minAnalyzableLen is the shortest text worth sending to the provider.
// Anything shorter gets the neutral default straight away.
const minAnalyzableLen = 5

const promptTemplate = `Analyze the following customer feedback and respond with a single JSON object
with exactly these fields:
{"sentiment":"positive|neutral|negative","sentiment_score":<-1..1>,"confidence":<0..1>,
"emotions":[...],"keywords":[...],"themes":[...],
"classification":{"is_complaint":bool,"is_praise":bool,"is_suggestion":bool},"summary":"..."}
Respond with JSON only, no commentary.

Feedback:
`

// aiResult is the provider's JSON payload before derivation.
type aiResult struct {
	Sentiment      string                `json:"sentiment"`
	SentimentScore float64               `json:"sentiment_score"`
	Confidence     float64               `json:"confidence"`
	Emotions       []string              `json:"emotions"`
	Keywords       []string              `json:"keywords"`
	Themes         []string              `json:"themes"`
	Classification models.Classification `json:"classification"`
	Summary        string                `json:"summary"`
}

// BuildText assembles the analyzable text of a response: the free-form
// review plus every string answer, in question order.
func BuildText(resp *models.SurveyResponse) string {
	var parts []string
	if s := strings.TrimSpace(resp.Review); s != "" {
		parts = append(parts, s)
	}
	for _, a := range resp.Answers {
		if s, ok := a.Value.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// Prompt renders the analysis prompt for a text.
func Prompt(text string) string {
	return promptTemplate + text
}

// ParseAIResult extracts the result object from a raw completion. Models
// wrap JSON in markdown fences or prose; the parser strips fences and
// falls back to the first balanced JSON object. A false return means the
// caller should use the neutral default.
func ParseAIResult(raw string) (aiResult, bool) {
	var res aiResult

	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), &res); err == nil && res.Sentiment != "" {
		return clamp(res), true
	}

	obj, ok := firstJSONObject(cleaned)
	if !ok {
		return res, false
	}
	if err := json.Unmarshal([]byte(obj), &res); err != nil || res.Sentiment == "" {
		return aiResult{}, false
	}
	return clamp(res), true
}

// firstJSONObject returns the first balanced {...} in the text, honoring
// strings and escapes.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

func clamp(res aiResult) aiResult {
	if res.SentimentScore > 1 {
		res.SentimentScore = 1
	}
	if res.SentimentScore < -1 {
		res.SentimentScore = -1
	}
	if res.Confidence > 1 {
		res.Confidence = 1
	}
	if res.Confidence < 0 {
		res.Confidence = 0
	}
	switch res.Sentiment {
	case "positive", "neutral", "negative":
	default:
		res.Sentiment = "neutral"
		res.Confidence = 0
	}
	return res
}

// NeutralResult is the fallback when there is nothing to analyze or the
// provider output is unusable.
func NeutralResult() aiResult {
	return aiResult{Sentiment: "neutral", SentimentScore: 0, Confidence: 0}
}

// Derive builds the stored analysis from the AI result and the response's
// own numbers. flaggedForReview is the union of the flag rules; every rule
// that fired is recorded.
func Derive(res aiResult, resp *models.SurveyResponse, now time.Time) *models.Analysis {
	analysis := &models.Analysis{
		Sentiment:      res.Sentiment,
		SentimentScore: res.SentimentScore,
		Confidence:     res.Confidence,
		Emotions:       res.Emotions,
		Keywords:       res.Keywords,
		Themes:         res.Themes,
		Classification: res.Classification,
		Summary:        res.Summary,
		AnalyzedAt:     now,
	}

	if resp.Score != nil && *resp.Score >= 0 && *resp.Score <= 10 {
		analysis.NPSCategory = models.NPSCategoryForScore(*resp.Score)
	}
	if resp.Rating != nil {
		analysis.RatingCategory = models.RatingCategoryFor(*resp.Rating, 5)
	}

	var rules []string
	if resp.Rating != nil && *resp.Rating <= 2 {
		rules = append(rules, "low_rating")
	}
	if resp.Score != nil && *resp.Score <= 6 {
		rules = append(rules, "detractor_score")
	}
	if res.Sentiment == "negative" && res.Confidence >= 0.6 {
		rules = append(rules, "negative_sentiment")
	}
	if res.Classification.IsComplaint {
		rules = append(rules, "complaint")
	}
	if len(rules) > 0 {
		analysis.FlaggedForReview = true
		analysis.TriggeredRules = rules
	}
	return analysis
}
