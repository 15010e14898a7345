package evaluator

import "github.com/kalambet/intervue/internal/llm"

// EvaluationSchema is the JSON the model must return for an evaluation.
// is_correct and reasoning are optional; the evaluator derives them when missing.
var EvaluationSchema = &llm.Schema{
	Name:        "answer-evaluation",
	Description: "Score and feedback for a candidate's interview answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score": map[string]any{
				"type":        "number",
				"minimum":     0.0,
				"maximum":     100.0,
				"description": "Overall score from 0 to 100",
			},
			"is_correct": map[string]any{
				"type":        "boolean",
				"description": "Whether the answer is acceptable overall",
			},
			"breakdown": map[string]any{
				"type":        "object",
				"description": "Score per criterion, each 0 to 100",
				"properties": map[string]any{
					"relevance":    map[string]any{"type": "number"},
					"accuracy":     map[string]any{"type": "number"},
					"clarity":      map[string]any{"type": "number"},
					"completeness": map[string]any{"type": "number"},
				},
				"required": []any{"relevance", "accuracy", "clarity", "completeness"},
			},
			"feedback": map[string]any{
				"type":        "string",
				"description": "Detailed feedback addressed to the candidate",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "Short justification of the score",
			},
			"confidence": map[string]any{
				"type":        "number",
				"minimum":     0.0,
				"maximum":     1.0,
				"description": "Confidence in this evaluation from 0 to 1",
			},
		},
		"required": []any{"score", "breakdown", "feedback", "confidence"},
	},
}
