package evaluator

// Result is the outcome of evaluating one answer.
type Result struct {
	Score      float64            `json:"score"`
	IsCorrect  bool               `json:"is_correct"`
	Breakdown  map[string]float64 `json:"breakdown"`
	Feedback   string             `json:"feedback"`
	Reasoning  string             `json:"reasoning"`
	Confidence float64            `json:"confidence"`
	Metadata   map[string]any     `json:"metadata"`
}

// IsMock reports whether the result came from the fallback path.
func (r Result) IsMock() bool {
	v, _ := r.Metadata["is_mock"].(bool)
	return v
}

// FollowUpQuestion is a generated question that builds on an answer.
type FollowUpQuestion struct {
	Text    string         `json:"text"`
	Context map[string]any `json:"context"`
}

// HeuristicResult is the word-count evaluation used without a model.
type HeuristicResult struct {
	QuestionID         string   `json:"question_id"`
	ResponseLength     int      `json:"response_length"`
	Feedback           string   `json:"feedback"`
	Score              int      `json:"score"`
	SuggestedFollowUps []string `json:"suggested_follow_ups"`
}

// PlanItem is one step of a generated interview plan.
type PlanItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Type      string `json:"type"`
	TimeLimit int    `json:"time_limit"`
}
