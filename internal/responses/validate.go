package responses

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ratepro/backend/internal/models"
)

// FieldError is a single validation failure tied to a question.
type FieldError struct {
	QuestionID string `json:"question_id"`
	Message    string `json:"message"`
}

// ValidationError aggregates all field failures of one submission.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// ValidateAnswers checks a submission against the published snapshot. The
// snapshot is the only authority; the current draft never participates.
// Partial saves skip the required check so respondents can resume later.
func ValidateAnswers(snap *models.PublishedSnapshot, answers []models.Answer, partial bool) error {
	byQuestion := make(map[string]models.Question, len(snap.Questions))
	for _, q := range snap.Questions {
		byQuestion[q.ID] = q
	}

	var fields []FieldError
	answered := make(map[string]bool, len(answers))
	for _, a := range answers {
		q, ok := byQuestion[a.QuestionID]
		if !ok {
			fields = append(fields, FieldError{a.QuestionID, "unknown question"})
			continue
		}
		if answered[a.QuestionID] {
			fields = append(fields, FieldError{a.QuestionID, "duplicate answer"})
			continue
		}
		answered[a.QuestionID] = true
		if msg := checkValue(q, a.Value); msg != "" {
			fields = append(fields, FieldError{a.QuestionID, msg})
		}
	}

	if !partial {
		for _, q := range snap.Questions {
			if q.Required && !answered[q.ID] {
				fields = append(fields, FieldError{q.ID, "answer required"})
			}
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func checkValue(q models.Question, v interface{}) string {
	if isEmpty(v) {
		if q.Required {
			return "answer required"
		}
		return ""
	}
	switch q.Type {
	case models.QuestionText:
		if _, ok := v.(string); !ok {
			return "expected text"
		}
	case models.QuestionNumber:
		if _, ok := asNumber(v); !ok {
			return "expected a number"
		}
	case models.QuestionNPS:
		n, ok := asNumber(v)
		if !ok || n != float64(int(n)) || n < 0 || n > 10 {
			return "nps score must be an integer between 0 and 10"
		}
	case models.QuestionRating:
		max := q.Max
		if max <= 0 {
			max = 5
		}
		n, ok := asNumber(v)
		if !ok || n != float64(int(n)) || n < 1 || n > float64(max) {
			return fmt.Sprintf("rating must be an integer between 1 and %d", max)
		}
	case models.QuestionChoice:
		s, ok := v.(string)
		if !ok {
			return "expected one of the listed options"
		}
		for _, opt := range q.Options {
			if opt == s {
				return ""
			}
		}
		return "expected one of the listed options"
	}
	return ""
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []interface{}:
		return len(t) == 0
	}
	return false
}

func asNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}
