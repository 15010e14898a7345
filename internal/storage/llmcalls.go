package storage

import (
	"time"

	"github.com/google/uuid"
)

// RecordLLMCall stores one provider call. It satisfies llm.CallRecorder.
func (s *Store) RecordLLMCall(c LLMCall) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO llm_calls (id, purpose, model, latency_ms, input_tokens, output_tokens, success, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Purpose, c.Model, c.LatencyMs, c.InputTokens, c.OutputTokens, boolInt(c.Success), c.Error,
		formatTime(c.CreatedAt),
	)
	return err
}

// RecentLLMCalls returns up to limit calls, newest first.
func (s *Store) RecentLLMCalls(limit int) ([]LLMCall, error) {
	rows, err := s.db.Query(`SELECT id, purpose, model, latency_ms, input_tokens, output_tokens, success, error, created_at
		FROM llm_calls ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LLMCall
	for rows.Next() {
		var c LLMCall
		var success int
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Purpose, &c.Model, &c.LatencyMs, &c.InputTokens, &c.OutputTokens, &success, &c.Error, &createdAt); err != nil {
			return nil, err
		}
		c.Success = success != 0
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
