package questionbank

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/kalambet/intervue/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDefaultBank(t *testing.T) {
	b := Default()
	if len(b.Questions) != 10 {
		t.Fatalf("default bank has %d questions, want 10", len(b.Questions))
	}

	categories := map[string]int{}
	for _, e := range b.Questions {
		categories[e.Category]++
	}
	if categories["Python"] != 2 {
		t.Errorf("Python questions = %d, want 2", categories["Python"])
	}

	q, err := b.Questions[8].Question()
	if err != nil {
		t.Fatalf("Question: %v", err)
	}
	var opts map[string]string
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		t.Fatalf("options JSON: %v", err)
	}
	if opts["A"] != "Lists are mutable, tuples are immutable" {
		t.Errorf("option A = %q", opts["A"])
	}
	if q.MaxScore != 100 {
		t.Errorf("MaxScore = %d, want default 100", q.MaxScore)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "questions: [", "parsing question bank"},
		{"missing prompt", "questions:\n  - category: SQL\n    difficulty: easy\n    type: objective\n", "prompt is required"},
		{"bad type", "questions:\n  - category: SQL\n    difficulty: easy\n    type: essay\n    prompt: p\n", `unknown question type "essay"`},
		{"bad difficulty", "questions:\n  - category: SQL\n    difficulty: extreme\n    type: objective\n    prompt: p\n", `unknown difficulty "extreme"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	res, err := Seed(ctx, store, Default())
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if res.Created != 10 || res.Skipped != 0 {
		t.Errorf("first seed = %+v, want 10 created", res)
	}

	res, err = Seed(ctx, store, Default())
	if err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	if res.Created != 0 || res.Skipped != 10 {
		t.Errorf("second seed = %+v, want 10 skipped", res)
	}

	n, err := store.CountQuestions()
	if err != nil {
		t.Fatalf("CountQuestions: %v", err)
	}
	if n != 10 {
		t.Errorf("stored %d questions, want 10", n)
	}
	counts, err := store.CountJobs()
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if counts["pending"] != 10 {
		t.Errorf("pending jobs = %d, want one embedding job per question", counts["pending"])
	}

	q, err := store.FindQuestionByPrompt("Python", "Explain how Python's garbage collection works.")
	if err != nil {
		t.Fatalf("FindQuestionByPrompt: %v", err)
	}
	if q.Type != storage.TypeMultiTurn {
		t.Errorf("Type = %q, want multi_turn", q.Type)
	}
}

func TestSeedCancelled(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Seed(ctx, store, Default()); err == nil {
		t.Fatal("expected context error")
	}
}

const smallBank = `questions:
  - category: SQL
    difficulty: easy
    type: objective
    prompt: What does SELECT DISTINCT do?
`

func TestWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	if err := os.WriteFile(path, []byte(smallBank), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan Bank, 4)
	w, err := NewWatcher(path, func(_ context.Context, b Bank) error {
		reloaded <- b
		return nil
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	}()

	// Invalid content is reported and skipped.
	if err := os.WriteFile(path, []byte("questions: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case b := <-reloaded:
		t.Fatalf("reload with invalid bank: %+v", b)
	case <-time.After(300 * time.Millisecond):
	}

	updated := smallBank + `  - category: SQL
    difficulty: medium
    type: multi_turn
    prompt: When would you use a window function?
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case b := <-reloaded:
		if len(b.Questions) != 2 {
			t.Errorf("reloaded %d questions, want 2", len(b.Questions))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after the bank changed")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bank.yaml")
	if err := os.WriteFile(path, []byte(smallBank), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan Bank, 1)
	w, err := NewWatcher(path, func(_ context.Context, b Bank) error {
		reloaded <- b
		return nil
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-reloaded:
		t.Error("reload triggered by an unrelated file")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}
