package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// MockResponse is one scripted reply. A non-nil Err is returned instead of
// Content.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// MockProvider plays back scripted replies in order and keeps every request
// in Calls. Once the script runs out it answers ErrProviderUnavailable, so
// evaluator tests land on the offline scoring path. Scripted content is
// still checked against the request schema, like a real provider's reply.
type MockProvider struct {
	mu     sync.Mutex
	script []MockResponse
	Calls  []Request
}

func NewMockProvider(script ...MockResponse) *MockProvider {
	return &MockProvider{script: script}
}

func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)

	if len(m.script) == 0 {
		return nil, &ErrProviderUnavailable{}
	}
	next := m.script[0]
	m.script = m.script[1:]

	switch {
	case next.Err != nil:
		return nil, next.Err
	case req.Schema != nil:
		if err := validateResponse(req.Schema, next.Content); err != nil {
			return nil, err
		}
	}
	return &Response{Content: next.Content, Usage: next.Usage, Model: m.ModelID(), StopReason: "end"}, nil
}

func (m *MockProvider) ModelID() string { return "mock" }

// CallCount reports how many requests reached the provider.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
