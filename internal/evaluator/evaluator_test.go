package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/intervue/internal/llm"
	"github.com/kalambet/intervue/internal/storage"
)

func testQuestion(qType string) storage.Question {
	return storage.Question{
		ID:            "q-1",
		Category:      "excel",
		Difficulty:    "easy",
		Type:          qType,
		Prompt:        "Which function looks up a value in the first column of a range?",
		Options:       json.RawMessage(`["VLOOKUP","HLOOKUP","INDEX"]`),
		CorrectAnswer: json.RawMessage(`"VLOOKUP"`),
		MaxScore:      100,
	}
}

func newTestEvaluator(p llm.Provider) *Evaluator {
	e := New(p, DefaultConfig())
	e.now = func() time.Time { return time.Unix(1700000000, 0) }
	return e
}

func TestEvaluate_LLM(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{
		"score": 88,
		"is_correct": true,
		"breakdown": {"relevance": 90, "accuracy": 95, "clarity": 80, "completeness": 85},
		"feedback": "Correct choice.",
		"reasoning": "Picked VLOOKUP.",
		"confidence": 0.9
	}`)})
	e := newTestEvaluator(mock)

	res := e.Evaluate(context.Background(), testQuestion(storage.TypeObjective), json.RawMessage(`{"choice":"VLOOKUP"}`), nil)

	assert.Equal(t, 88.0, res.Score)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, "Correct choice.", res.Feedback)
	assert.Equal(t, "Picked VLOOKUP.", res.Reasoning)
	assert.Equal(t, 0.9, res.Confidence)
	assert.False(t, res.IsMock())
	assert.Equal(t, storage.TypeObjective, res.Metadata["question_type"])

	require.Len(t, mock.Calls, 1)
	req := mock.Calls[0]
	assert.Equal(t, evaluationSystemPrompt, req.System)
	assert.Equal(t, 0.1, req.Temperature)
	assert.Equal(t, 1024, req.MaxTokens)
	assert.Same(t, EvaluationSchema, req.Schema)
	assert.Contains(t, req.Messages[0].Content, "Grade a multiple-choice")
	assert.Contains(t, req.Messages[0].Content, `"choice": "VLOOKUP"`)
}

func TestEvaluate_DerivesIsCorrectAndReasoning(t *testing.T) {
	tests := []struct {
		score float64
		want  bool
	}{
		{59.9, false},
		{60, true},
		{92, true},
	}
	for _, tt := range tests {
		mock := llm.NewMockProvider(llm.MockResponse{Content: mustJSON(map[string]any{
			"score":      tt.score,
			"breakdown":  map[string]any{"relevance": 50, "accuracy": 60, "clarity": 70, "completeness": 80},
			"feedback":   "ok",
			"confidence": 0.5,
		})})
		res := newTestEvaluator(mock).Evaluate(context.Background(), testQuestion(storage.TypeMultiTurn), json.RawMessage(`"answer"`), nil)

		assert.Equal(t, tt.want, res.IsCorrect, "score %v", tt.score)
		assert.Equal(t, "Criteria scores: accuracy 60, clarity 70, completeness 80, relevance 50", res.Reasoning)
	}
}

func TestEvaluate_FallsBackToMock(t *testing.T) {
	tests := []struct {
		name     string
		provider llm.Provider
	}{
		{"no provider", nil},
		{"empty mock queue", llm.NewMockProvider()},
		{"provider error", llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrRateLimit{Err: errors.New("429")}})},
		{"schema violation", llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"score": 500}`)})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEvaluator(tt.provider)
			evalCtx := map[string]any{"session_id": "s-1"}
			res := e.Evaluate(context.Background(), testQuestion(storage.TypeAssignment), json.RawMessage(`{}`), evalCtx)

			assert.Equal(t, 75.0, res.Score)
			assert.True(t, res.IsCorrect)
			assert.Equal(t, mockFeedback, res.Feedback)
			assert.Equal(t, 0.7, res.Confidence)
			assert.InDelta(t, 67.5, res.Breakdown["relevance"], 1e-9)
			assert.InDelta(t, 60, res.Breakdown["accuracy"], 1e-9)
			assert.InDelta(t, 71.25, res.Breakdown["clarity"], 1e-9)
			assert.InDelta(t, 63.75, res.Breakdown["completeness"], 1e-9)
			assert.True(t, res.IsMock())
			assert.Equal(t, storage.TypeAssignment, res.Metadata["question_type"])
			assert.Equal(t, evalCtx, res.Metadata["context"])
		})
	}
}

func TestEvaluate_MockUnknownType(t *testing.T) {
	res := newTestEvaluator(nil).Evaluate(context.Background(), storage.Question{ID: "x"}, nil, nil)
	assert.Equal(t, "unknown", res.Metadata["question_type"])
	assert.Equal(t, map[string]any{}, res.Metadata["context"])
}

func TestTemplateFor(t *testing.T) {
	assert.Equal(t, "evaluation_objective.tmpl", templateFor(storage.TypeObjective).Name())
	assert.Equal(t, "evaluation_assignment.tmpl", templateFor(storage.TypeAssignment).Name())
	assert.Equal(t, "evaluation_default.tmpl", templateFor(storage.TypeMultiTurn).Name())
	assert.Equal(t, "evaluation_default.tmpl", templateFor("").Name())
}

func TestFollowUp_LLM(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`"  How would you handle approximate matches?  "`)})
	e := newTestEvaluator(mock)

	fu := e.FollowUp(context.Background(), testQuestion(storage.TypeObjective), json.RawMessage(`{"choice":"VLOOKUP"}`), nil)

	assert.Equal(t, "How would you handle approximate matches?", fu.Text)
	assert.Equal(t, "q-1", fu.Context["original_question_id"])
	assert.Equal(t, false, fu.Context["is_mock"])
	assert.Equal(t, 1700000000.0, fu.Context["generated_at"])

	req := mock.Calls[0]
	assert.Equal(t, followUpSystemPrompt, req.System)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 500, req.MaxTokens)
	assert.Nil(t, req.Schema)
}

func TestFollowUp_Mock(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   string
	}{
		{"object answer uses first sorted key", `{"zeta":"1","alpha":"2"}`, "Can you elaborate more on alpha?"},
		{"empty object", `{}`, "Can you elaborate more on your answer?"},
		{"string answer", `"plain text"`, "Can you elaborate more on your answer?"},
		{"no answer", ``, "Can you elaborate more on your answer?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fu := newTestEvaluator(nil).FollowUp(context.Background(), testQuestion(storage.TypeMultiTurn), json.RawMessage(tt.answer), nil)
			assert.Equal(t, tt.want, fu.Text)
			assert.Equal(t, true, fu.Context["is_mock"])
			assert.Equal(t, "q-1", fu.Context["original_question_id"])
		})
	}
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		words int
		score int
		start string
	}{
		{0, 3, "Your response is quite brief"},
		{9, 3, "Your response is quite brief"},
		{10, 6, "Good start"},
		{29, 6, "Good start"},
		{30, 8, "Detailed response"},
	}
	for _, tt := range tests {
		text := strings.TrimSpace(strings.Repeat("word ", tt.words))
		res := Heuristic("q", text)
		assert.Equal(t, tt.words, res.ResponseLength)
		assert.Equal(t, tt.score, res.Score, "%d words", tt.words)
		assert.True(t, strings.HasPrefix(res.Feedback, tt.start), res.Feedback)
		assert.NotNil(t, res.SuggestedFollowUps)
	}
}

func TestAnswerText(t *testing.T) {
	assert.Equal(t, "hello", AnswerText(json.RawMessage(`"hello"`)))
	assert.Equal(t, "from text", AnswerText(json.RawMessage(`{"text":"from text"}`)))
	assert.Equal(t, "from upload", AnswerText(json.RawMessage(`{"file_name":"a.pdf","extracted_text":"from upload"}`)))
	assert.Equal(t, `{"choice":"B"}`, AnswerText(json.RawMessage(`{"choice":"B"}`)))
	assert.Equal(t, "", AnswerText(json.RawMessage(`null`)))
}

func TestGeneratePlan(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	plan := GeneratePlan(LevelAdvanced, rng)

	require.Len(t, plan, 1+3+3+1)
	assert.Equal(t, "introduction", plan[0].ID)
	assert.Equal(t, 120, plan[0].TimeLimit)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, 180, plan[i].TimeLimit)
		assert.Contains(t, behavioralQuestions, plan[i].Text)
	}
	for i := 4; i <= 6; i++ {
		assert.Equal(t, 240, plan[i].TimeLimit)
		assert.Contains(t, technicalQuestions[LevelAdvanced], plan[i].Text)
	}
	last := plan[len(plan)-1]
	assert.Equal(t, "conclusion", last.ID)
	assert.Equal(t, 180, last.TimeLimit)

	seen := map[string]bool{}
	for _, item := range plan {
		assert.False(t, seen[item.Text], "duplicate %q", item.Text)
		seen[item.Text] = true
	}
}

func TestGeneratePlan_UnknownLevel(t *testing.T) {
	plan := GeneratePlan("guru", rand.New(rand.NewPCG(3, 4)))
	for _, item := range plan[4:7] {
		assert.Contains(t, technicalQuestions[LevelIntermediate], item.Text)
	}
}

func TestGeneratePlan_DoesNotMutateBank(t *testing.T) {
	before := append([]string(nil), behavioralQuestions...)
	GeneratePlan(LevelBeginner, nil)
	assert.Equal(t, before, behavioralQuestions)
}
