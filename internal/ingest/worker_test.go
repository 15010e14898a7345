package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/kalambet/intervue/internal/evaluator"
	"github.com/kalambet/intervue/internal/interview"
	"github.com/kalambet/intervue/internal/storage"
)

func TestMain(m *testing.M) {
	// genai links opencensus, whose view worker starts in init and never exits.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type mockIndexer struct {
	mu      sync.Mutex
	indexed []string
	indexFn func(ctx context.Context, id string) error
}

func (m *mockIndexer) IndexQuestion(ctx context.Context, id string) error {
	if m.indexFn != nil {
		if err := m.indexFn(ctx, id); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexed = append(m.indexed, id)
	return nil
}

type mockScorer struct {
	evalFn func(ctx context.Context, sessionID, questionID string) (evaluator.Result, error)
}

func (m *mockScorer) EvaluateResponse(ctx context.Context, sessionID, questionID string) (evaluator.Result, error) {
	return m.evalFn(ctx, sessionID, questionID)
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

func enqueueTestJob(t *testing.T, store *storage.Store, id, jobType string, payload map[string]string) {
	t.Helper()
	data, _ := json.Marshal(payload)
	job := storage.Job{
		ID:          id,
		Type:        jobType,
		PayloadJSON: string(data),
	}
	if err := store.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
}

func jobStatus(t *testing.T, store *storage.Store, id string) (string, int) {
	t.Helper()
	var status string
	var attempts int
	if err := store.DB().QueryRow(`SELECT status, attempts FROM jobs WHERE id = ?`, id).Scan(&status, &attempts); err != nil {
		t.Fatalf("query job %s: %v", id, err)
	}
	return status, attempts
}

// resetRunAfter skips the FailJob backoff so the job is claimable again.
func resetRunAfter(t *testing.T, store *storage.Store, jobID string) {
	t.Helper()
	past := time.Now().Add(-time.Minute).UTC().Format("2006-01-02T15:04:05.000000Z07:00")
	_, err := store.DB().Exec(`UPDATE jobs SET run_after = ? WHERE id = ?`, past, jobID)
	if err != nil {
		t.Fatalf("resetRunAfter: %v", err)
	}
}

func TestWorker_ProcessesEmbedJob(t *testing.T) {
	store := openTestStore(t)
	enqueueTestJob(t, store, "job-q1", storage.JobEmbedQuestion, map[string]string{"question_id": "q1"})

	indexer := &mockIndexer{}
	w := NewWorker(store, indexer, nil, 0)

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if !didWork {
		t.Fatal("RunOnce returned false, expected true")
	}

	indexer.mu.Lock()
	defer indexer.mu.Unlock()
	if len(indexer.indexed) != 1 || indexer.indexed[0] != "q1" {
		t.Fatalf("indexed = %v, want [q1]", indexer.indexed)
	}
	if status, _ := jobStatus(t, store, "job-q1"); status != "completed" {
		t.Errorf("status = %q, want completed", status)
	}
}

func TestWorker_SkipsUnhandledTypes(t *testing.T) {
	store := openTestStore(t)
	enqueueTestJob(t, store, "job-e", storage.JobEvaluateResponse, map[string]string{"session_id": "s", "question_id": "q"})

	w := NewWorker(store, &mockIndexer{}, nil, 0)
	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if didWork {
		t.Error("worker without a scorer claimed an evaluation job")
	}
	if status, _ := jobStatus(t, store, "job-e"); status != "pending" {
		t.Errorf("status = %q, want pending", status)
	}
}

func TestWorker_RetryOnFailure(t *testing.T) {
	store := openTestStore(t)
	enqueueTestJob(t, store, "job-r", storage.JobEmbedQuestion, map[string]string{"question_id": "q-r"})

	var calls atomic.Int32
	w := NewWorker(store, &mockIndexer{
		indexFn: func(context.Context, string) error {
			n := calls.Add(1)
			if n <= 2 {
				return fmt.Errorf("transient error %d", n)
			}
			return nil
		},
	}, nil, 0)

	ctx := context.Background()

	// 1st attempt fails and stays retryable.
	if didWork, err := w.RunOnce(ctx); err != nil || !didWork {
		t.Fatalf("RunOnce 1 = %v, %v", didWork, err)
	}
	if status, attempts := jobStatus(t, store, "job-r"); status != "pending" || attempts != 1 {
		t.Errorf("after 1st fail: status=%q attempts=%d, want pending/1", status, attempts)
	}
	resetRunAfter(t, store, "job-r")

	if didWork, err := w.RunOnce(ctx); err != nil || !didWork {
		t.Fatalf("RunOnce 2 = %v, %v", didWork, err)
	}
	if _, attempts := jobStatus(t, store, "job-r"); attempts != 2 {
		t.Errorf("after 2nd fail: attempts=%d, want 2", attempts)
	}
	resetRunAfter(t, store, "job-r")

	if didWork, err := w.RunOnce(ctx); err != nil || !didWork {
		t.Fatalf("RunOnce 3 = %v, %v", didWork, err)
	}
	if status, _ := jobStatus(t, store, "job-r"); status != "completed" {
		t.Errorf("after 3rd attempt: status=%q, want completed", status)
	}
}

func TestWorker_MaxRetriesExceeded(t *testing.T) {
	store := openTestStore(t)
	enqueueTestJob(t, store, "job-m", storage.JobEmbedQuestion, map[string]string{"question_id": "q-m"})

	w := NewWorker(store, &mockIndexer{
		indexFn: func(context.Context, string) error { return fmt.Errorf("embedding backend down") },
	}, nil, 0)

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		didWork, err := w.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce %d error: %v", i, err)
		}
		if !didWork {
			t.Fatalf("RunOnce %d returned false", i)
		}
		if i < 3 {
			resetRunAfter(t, store, "job-m")
		}
	}

	if status, _ := jobStatus(t, store, "job-m"); status != "failed" {
		t.Errorf("final status = %q, want failed", status)
	}
}

func TestWorker_DropsStaleEvaluation(t *testing.T) {
	store := openTestStore(t)
	enqueueTestJob(t, store, "job-gone", storage.JobEvaluateResponse, map[string]string{"session_id": "s", "question_id": "q"})

	w := NewWorker(store, nil, &mockScorer{
		evalFn: func(context.Context, string, string) (evaluator.Result, error) {
			return evaluator.Result{}, fmt.Errorf("lookup: %w", interview.ErrNotFound)
		},
	}, 0)

	if didWork, err := w.RunOnce(context.Background()); err != nil || !didWork {
		t.Fatalf("RunOnce = %v, %v", didWork, err)
	}
	status, attempts := jobStatus(t, store, "job-gone")
	if status != "completed" || attempts != 0 {
		t.Errorf("status=%q attempts=%d, want completed without retries", status, attempts)
	}
}

func TestWorker_EvaluatesThroughService(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	svc := interview.New(store, evaluator.New(nil, evaluator.DefaultConfig()), nil, interview.Config{AutoEvaluate: true})
	t.Cleanup(func() { svc.Close() })

	admin, err := store.CreateUser(storage.User{Email: "admin@example.com", Name: "Admin", IsSuperuser: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	q, err := store.CreateQuestion(storage.Question{
		Category: "Excel", Difficulty: storage.DifficultyEasy, Type: storage.TypeObjective, Prompt: "SUM?",
	})
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	sess, err := svc.CreateSession(ctx, admin, interview.CreateSessionInput{
		Title: "Quick check", CandidateID: admin.ID, InterviewerID: admin.ID, QuestionIDs: []string{q.ID},
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := svc.StartSession(ctx, admin, sess.ID); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := svc.SubmitAnswer(ctx, admin, sess.ID, interview.AnswerInput{
		QuestionID: q.ID, Answer: json.RawMessage(`{"formula":"=SUM(A1:A3)"}`),
	}); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	w := NewWorker(store, svc, svc, 0)
	didWork, err := w.RunOnce(ctx)
	if err != nil || !didWork {
		t.Fatalf("RunOnce = %v, %v", didWork, err)
	}

	resp, err := store.GetResponse(sess.ID, q.ID)
	if err != nil {
		t.Fatalf("GetResponse: %v", err)
	}
	if resp.Score == nil || *resp.Score != 75 {
		t.Errorf("score = %v, want mock score 75", resp.Score)
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	store := openTestStore(t)
	for i := 0; i < 5; i++ {
		enqueueTestJob(t, store, fmt.Sprintf("job-%d", i), storage.JobEmbedQuestion, map[string]string{"question_id": fmt.Sprintf("q-%d", i)})
	}

	indexer := &mockIndexer{}
	w := NewWorker(store, indexer, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		indexer.mu.Lock()
		n := len(indexer.indexed)
		indexer.mu.Unlock()
		if n == 5 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("indexed %d/5 questions before timeout", n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
