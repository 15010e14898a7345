// Package questionbank loads interview questions from YAML files and seeds
// them into the store.
package questionbank

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/intervue/internal/storage"
)

//go:embed bank.yaml
var defaultBank []byte

// Bank is the top-level YAML document.
type Bank struct {
	Questions []Entry `yaml:"questions"`
}

// Entry is one question as written in a bank file. Options, CorrectAnswer
// and Metadata accept any YAML value and are stored as JSON.
type Entry struct {
	Category      string         `yaml:"category"`
	Difficulty    string         `yaml:"difficulty"`
	Type          string         `yaml:"type"`
	Prompt        string         `yaml:"prompt"`
	Options       any            `yaml:"options,omitempty"`
	CorrectAnswer any            `yaml:"correct_answer,omitempty"`
	Explanation   string         `yaml:"explanation,omitempty"`
	TimeLimit     int            `yaml:"time_limit,omitempty"`
	MaxScore      int            `yaml:"max_score,omitempty"`
	Metadata      map[string]any `yaml:"metadata,omitempty"`
}

// Parse decodes and validates a bank document.
func Parse(data []byte) (Bank, error) {
	var b Bank
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Bank{}, fmt.Errorf("parsing question bank: %w", err)
	}
	for i, e := range b.Questions {
		q, err := e.Question()
		if err != nil {
			return Bank{}, fmt.Errorf("question %d: %w", i+1, err)
		}
		if err := q.Validate(); err != nil {
			return Bank{}, fmt.Errorf("question %d (%.40q): %w", i+1, e.Prompt, err)
		}
	}
	return b, nil
}

// Load reads a bank file from disk.
func Load(path string) (Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Bank{}, err
	}
	return Parse(data)
}

// Default returns the bank compiled into the binary.
func Default() Bank {
	b, err := Parse(defaultBank)
	if err != nil {
		panic(fmt.Sprintf("embedded question bank: %v", err))
	}
	return b
}

// Question converts the entry to a storage question. A zero MaxScore becomes 100.
func (e Entry) Question() (storage.Question, error) {
	q := storage.Question{
		Category:    e.Category,
		Difficulty:  e.Difficulty,
		Type:        e.Type,
		Prompt:      e.Prompt,
		Explanation: e.Explanation,
		TimeLimit:   e.TimeLimit,
		MaxScore:    e.MaxScore,
	}
	if q.MaxScore == 0 {
		q.MaxScore = 100
	}
	var err error
	if q.Options, err = toJSON(e.Options); err != nil {
		return storage.Question{}, fmt.Errorf("options: %w", err)
	}
	if q.CorrectAnswer, err = toJSON(e.CorrectAnswer); err != nil {
		return storage.Question{}, fmt.Errorf("correct_answer: %w", err)
	}
	if len(e.Metadata) > 0 {
		if q.Metadata, err = toJSON(e.Metadata); err != nil {
			return storage.Question{}, fmt.Errorf("metadata: %w", err)
		}
	}
	return q, nil
}

func toJSON(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
