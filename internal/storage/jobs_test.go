package storage

import (
	"testing"
	"time"
)

func enqueue(t *testing.T, s *Store, job Job) {
	t.Helper()
	if job.PayloadJSON == "" {
		job.PayloadJSON = `{}`
	}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob %s: %v", job.ID, err)
	}
}

func claim(t *testing.T, s *Store, types ...string) *Job {
	t.Helper()
	j, err := s.ClaimNextJob(types)
	if err != nil {
		t.Fatalf("ClaimNextJob(%v): %v", types, err)
	}
	return j
}

func jobRow(t *testing.T, s *Store, id string) (status string, attempts int, lastError string, runAfter time.Time) {
	t.Helper()
	var raw string
	var lastErr *string
	err := s.db.QueryRow(`SELECT status, attempts, last_error, run_after FROM jobs WHERE id = ?`, id).
		Scan(&status, &attempts, &lastErr, &raw)
	if err != nil {
		t.Fatalf("select job %s: %v", id, err)
	}
	if lastErr != nil {
		lastError = *lastErr
	}
	if runAfter, err = parseTime(raw); err != nil {
		t.Fatalf("parse run_after %q: %v", raw, err)
	}
	return status, attempts, lastError, runAfter
}

func TestJobDefaults(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{Type: JobEvaluateResponse, PayloadJSON: `{"session_id":"s1","question_id":"q1"}`})

	got := claim(t, s, JobEvaluateResponse)
	if got == nil {
		t.Fatal("no job claimed")
	}
	if got.ID == "" {
		t.Error("ID was not generated")
	}
	if got.Status != JobRunning || got.MaxAttempts != 3 || got.Attempts != 0 {
		t.Errorf("claimed = %+v, want running with 0/3 attempts", got)
	}
	if got.PayloadJSON != `{"session_id":"s1","question_id":"q1"}` {
		t.Errorf("payload = %q", got.PayloadJSON)
	}
	if got.RunAfter.IsZero() || got.CreatedAt.IsZero() {
		t.Errorf("timestamps not set: %+v", got)
	}
}

func TestClaimNextJob(t *testing.T) {
	tests := []struct {
		name  string
		jobs  []Job
		types []string
		want  string
	}{
		{name: "empty queue", types: []string{"x"}},
		{name: "no types", jobs: []Job{{ID: "j1", Type: "x"}}},
		{
			name:  "future run_after",
			jobs:  []Job{{ID: "later", Type: "x", RunAfter: time.Now().Add(time.Hour)}},
			types: []string{"x"},
		},
		{
			name:  "type filter",
			jobs:  []Job{{ID: "ja", Type: "a"}, {ID: "jb", Type: "b"}},
			types: []string{"b"},
			want:  "jb",
		},
		{
			name: "oldest due first",
			jobs: []Job{
				{ID: "new", Type: "x", RunAfter: time.Now().Add(-time.Minute)},
				{ID: "old", Type: "x", RunAfter: time.Now().Add(-time.Hour)},
			},
			types: []string{"x", "y"},
			want:  "old",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			for _, j := range tt.jobs {
				enqueue(t, s, j)
			}
			got := claim(t, s, tt.types...)
			switch {
			case tt.want == "" && got != nil:
				t.Errorf("claimed %s, want nothing", got.ID)
			case tt.want != "" && (got == nil || got.ID != tt.want):
				t.Errorf("claimed %+v, want %s", got, tt.want)
			}
		})
	}
}

func TestClaimNextJob_SkipsRunning(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "first", Type: "x"})
	if j := claim(t, s, "x"); j == nil || j.ID != "first" {
		t.Fatalf("first claim = %+v", j)
	}
	if j := claim(t, s, "x"); j != nil {
		t.Fatalf("running job claimed twice: %+v", j)
	}

	enqueue(t, s, Job{ID: "second", Type: "x"})
	if j := claim(t, s, "x"); j == nil || j.ID != "second" {
		t.Fatalf("second claim = %+v", j)
	}
}

func TestCompleteJob(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "done", Type: "x"})
	claim(t, s, "x")

	if err := s.CompleteJob("done"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	if status, _, _, _ := jobRow(t, s, "done"); status != JobCompleted {
		t.Errorf("status = %q, want completed", status)
	}
	if err := s.CompleteJob("missing"); err != ErrNotFound {
		t.Errorf("CompleteJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestFailJob_Backoff(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "flaky", Type: "x"})
	claim(t, s, "x")

	before := time.Now()
	if err := s.FailJob("flaky", "model timeout"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	status, attempts, lastError, runAfter := jobRow(t, s, "flaky")
	if status != JobPending || attempts != 1 || lastError != "model timeout" {
		t.Errorf("got %s/%d/%q, want pending/1/model timeout", status, attempts, lastError)
	}
	if d := runAfter.Sub(before); d < time.Second || d > 3*time.Second {
		t.Errorf("backoff = %v, want about 2s", d)
	}
	if j := claim(t, s, "x"); j != nil {
		t.Errorf("job claimable during backoff: %+v", j)
	}
}

func TestFailJob_GivesUp(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "doomed", Type: "x", MaxAttempts: 1})
	claim(t, s, "x")

	if err := s.FailJob("doomed", "fatal"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if status, attempts, _, _ := jobRow(t, s, "doomed"); status != JobFailed || attempts != 1 {
		t.Errorf("got %s/%d, want failed/1", status, attempts)
	}
	if err := s.FailJob("missing", "x"); err != ErrNotFound {
		t.Errorf("FailJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestCountJobs(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []string{"j1", "j2", "j3"} {
		enqueue(t, s, Job{ID: id, Type: "x"})
	}
	claim(t, s, "x")

	counts, err := s.CountJobs()
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if counts[JobPending] != 2 || counts[JobRunning] != 1 {
		t.Errorf("counts = %v, want pending=2 running=1", counts)
	}
}
