package llm

import (
	"context"
	"encoding/json"
)

// Provider is the black-box LLM used for evaluation and follow-up questions.
type Provider interface {
	// Generate sends a prompt and returns the model output. When the request
	// carries a Schema, Content is JSON validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	System   string
	Messages []Message

	// Schema, when set, asks the provider for JSON matching this definition
	// through its native structured-output mechanism.
	Schema *Schema

	MaxTokens   int
	Temperature float64
}

type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the LLM.
type Schema struct {
	// Name identifies the schema, e.g. "answer-evaluation". It doubles as the
	// compiled-schema cache key.
	Name        string
	Description string
	Definition  map[string]any
	// Strict marks a definition usable with strict structured-output modes:
	// every property required and no additional properties.
	Strict bool
}

// Response holds the LLM's output.
type Response struct {
	// Content is the validated JSON object when a Schema was requested,
	// otherwise the raw text encoded as a JSON string.
	Content json.RawMessage
	Usage   Usage
	Model   string
	// StopReason is normalized to "end" or "max_tokens".
	StopReason string
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Text returns Content as plain text, unquoting it when it is a JSON string.
func (r *Response) Text() string {
	var s string
	if err := json.Unmarshal(r.Content, &s); err == nil {
		return s
	}
	return string(r.Content)
}

// textContent wraps free-form model output as a JSON string.
func textContent(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
