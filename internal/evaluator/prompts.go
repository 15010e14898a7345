package evaluator

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/kalambet/intervue/internal/storage"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

const (
	evaluationSystemPrompt = "You are an expert technical interviewer evaluating candidate responses. " +
		"Provide a detailed evaluation with a numerical score and feedback."
	followUpSystemPrompt = "You are an expert technical interviewer. " +
		"Generate a relevant follow-up question based on the candidate's answer."
)

// promptData is what the templates see.
type promptData struct {
	Question      string
	Category      string
	Difficulty    string
	Type          string
	Options       string
	CorrectAnswer string
	Explanation   string
	MaxScore      int
	Answer        string
	Context       string
}

func newPromptData(q storage.Question, answer json.RawMessage, evalCtx map[string]any) promptData {
	if evalCtx == nil {
		evalCtx = map[string]any{}
	}
	return promptData{
		Question:      q.Prompt,
		Category:      q.Category,
		Difficulty:    q.Difficulty,
		Type:          q.Type,
		Options:       indentJSON(q.Options),
		CorrectAnswer: indentJSON(q.CorrectAnswer),
		Explanation:   q.Explanation,
		MaxScore:      q.MaxScore,
		Answer:        indentJSON(answer),
		Context:       indentJSON(mustJSON(evalCtx)),
	}
}

// templateFor picks evaluation_<type>, falling back to evaluation_default.
func templateFor(questionType string) *template.Template {
	if t := prompts.Lookup("evaluation_" + questionType + ".tmpl"); t != nil {
		return t
	}
	return prompts.Lookup("evaluation_default.tmpl")
}

func render(t *template.Template, data promptData) (string, error) {
	if t == nil {
		return "", fmt.Errorf("prompt template not found")
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// indentJSON pretty-prints raw JSON. Empty or null input yields "".
func indentJSON(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return trimmed
	}
	return buf.String()
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}
