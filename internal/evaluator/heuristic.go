package evaluator

import (
	"encoding/json"
	"strings"
	"time"
)

// Heuristic scores a free-text response by length alone, on a 0-10 scale.
func Heuristic(questionID, text string) HeuristicResult {
	words := len(strings.Fields(text))
	res := HeuristicResult{
		QuestionID:         questionID,
		ResponseLength:     words,
		SuggestedFollowUps: []string{},
	}
	switch {
	case words < 10:
		res.Score = 3
		res.Feedback = "Your response is quite brief. Try to provide more specific examples and details."
	case words < 30:
		res.Score = 6
		res.Feedback = "Good start, but consider adding more context or examples to strengthen your response."
	default:
		res.Score = 8
		res.Feedback = "Detailed response. You provided good context and examples."
	}
	return res
}

// AnswerText extracts readable text from a stored answer: a JSON string as
// is, the text, answer or extracted_text field of an object, otherwise the
// raw JSON.
func AnswerText(answer json.RawMessage) string {
	var s string
	if err := json.Unmarshal(answer, &s); err == nil {
		return s
	}
	var obj map[string]any
	if err := json.Unmarshal(answer, &obj); err == nil {
		for _, k := range []string{"text", "answer", "extracted_text"} {
			if v, ok := obj[k].(string); ok && v != "" {
				return v
			}
		}
	}
	if string(answer) == "null" {
		return ""
	}
	return string(answer)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
