package storage

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func seedUser(t *testing.T, s *Store, email string) User {
	t.Helper()
	u, err := s.CreateUser(User{Email: email, Name: email})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func seedQuestion(t *testing.T, s *Store, category, prompt string) Question {
	t.Helper()
	q, err := s.CreateQuestion(Question{
		Category:      category,
		Difficulty:    DifficultyEasy,
		Type:          TypeObjective,
		Prompt:        prompt,
		CorrectAnswer: json.RawMessage(`{"answer":"42"}`),
	})
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	return q
}

func seedSession(t *testing.T, s *Store, candidate User, qs ...Question) Session {
	t.Helper()
	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	sess, err := s.CreateSession(Session{Title: "Excel screen", CandidateID: candidate.ID, QuestionIDs: ids})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

func TestCreateUser_Duplicate(t *testing.T) {
	s := openTestStore(t)

	seedUser(t, s, "a@example.com")
	_, err := s.CreateUser(User{Email: "A@example.com"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestEnsureUser(t *testing.T) {
	s := openTestStore(t)

	first, err := s.EnsureUser("dev@example.com", "Dev", true)
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	second, err := s.EnsureUser("dev@example.com", "Other", false)
	if err != nil {
		t.Fatalf("EnsureUser again: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("EnsureUser created a second user: %s != %s", first.ID, second.ID)
	}
	if !second.IsSuperuser {
		t.Error("existing superuser flag was lost")
	}
}

func TestGetUser_NotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetUser("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestQuestionRoundTrip(t *testing.T) {
	s := openTestStore(t)

	in := Question{
		Category:      "Excel Functions",
		Difficulty:    DifficultyMedium,
		Type:          TypeObjective,
		Prompt:        "What does VLOOKUP do?",
		Options:       json.RawMessage(`["a","b"]`),
		CorrectAnswer: json.RawMessage(`{"answer":"a"}`),
		Explanation:   "lookup",
		TimeLimit:     120,
		Metadata:      json.RawMessage(`{"source":"bank"}`),
	}
	created, err := s.CreateQuestion(in)
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	if created.MaxScore != 100 {
		t.Errorf("MaxScore = %d, want default 100", created.MaxScore)
	}

	got, err := s.GetQuestion(created.ID)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	ignoreTimes := cmp.FilterPath(func(p cmp.Path) bool {
		name := p.Last().String()
		return name == ".CreatedAt" || name == ".UpdatedAt"
	}, cmp.Ignore())
	if diff := cmp.Diff(created, got, ignoreTimes); diff != "" {
		t.Errorf("question mismatch (-want +got):\n%s", diff)
	}
}

func TestListQuestions_Filters(t *testing.T) {
	s := openTestStore(t)

	seedQuestion(t, s, "Excel Basics", "q1")
	seedQuestion(t, s, "Excel Basics", "q2")
	if _, err := s.CreateQuestion(Question{Category: "Power Query", Difficulty: DifficultyHard, Type: TypeMultiTurn, Prompt: "q3"}); err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}

	tests := []struct {
		name   string
		filter QuestionFilter
		want   int
	}{
		{"all", QuestionFilter{}, 3},
		{"category", QuestionFilter{Category: "Excel Basics"}, 2},
		{"difficulty", QuestionFilter{Difficulty: DifficultyHard}, 1},
		{"type", QuestionFilter{Type: TypeMultiTurn}, 1},
		{"limit", QuestionFilter{Limit: 1}, 1},
		{"skip", QuestionFilter{Skip: 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListQuestions(tt.filter)
			if err != nil {
				t.Fatalf("ListQuestions: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d questions, want %d", len(got), tt.want)
			}
		})
	}
}

func TestGetQuestionsByIDs_PreservesOrderAndReportsMissing(t *testing.T) {
	s := openTestStore(t)

	a := seedQuestion(t, s, "c", "a")
	b := seedQuestion(t, s, "c", "b")

	found, missing, err := s.GetQuestionsByIDs([]string{b.ID, "ghost", a.ID})
	if err != nil {
		t.Fatalf("GetQuestionsByIDs: %v", err)
	}
	if len(found) != 2 || found[0].ID != b.ID || found[1].ID != a.ID {
		t.Errorf("found order wrong: %+v", found)
	}
	if diff := cmp.Diff([]string{"ghost"}, missing); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}
}

func TestFindQuestionByPrompt(t *testing.T) {
	s := openTestStore(t)

	q := seedQuestion(t, s, "Excel Basics", "What is a cell?")
	got, err := s.FindQuestionByPrompt("Excel Basics", "What is a cell?")
	if err != nil {
		t.Fatalf("FindQuestionByPrompt: %v", err)
	}
	if got.ID != q.ID {
		t.Errorf("ID = %q, want %q", got.ID, q.ID)
	}
	if _, err := s.FindQuestionByPrompt("Other", "What is a cell?"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateQuestionVectorID(t *testing.T) {
	s := openTestStore(t)

	q := seedQuestion(t, s, "c", "p")
	if err := s.UpdateQuestionVectorID(q.ID, "vec-1"); err != nil {
		t.Fatalf("UpdateQuestionVectorID: %v", err)
	}
	got, _ := s.GetQuestion(q.ID)
	if got.VectorID != "vec-1" {
		t.Errorf("VectorID = %q, want vec-1", got.VectorID)
	}
	if err := s.UpdateQuestionVectorID("missing", "v"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := openTestStore(t)

	cand := seedUser(t, s, "cand@example.com")
	q1 := seedQuestion(t, s, "c", "one")
	q2 := seedQuestion(t, s, "c", "two")
	sess := seedSession(t, s, cand, q2, q1)

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != StatusDraft {
		t.Errorf("Status = %q, want draft", got.Status)
	}
	if diff := cmp.Diff([]string{q2.ID, q1.ID}, got.QuestionIDs); diff != "" {
		t.Errorf("question order mismatch (-want +got):\n%s", diff)
	}

	now := time.Now().UTC().Truncate(time.Second)
	score := 81.5
	got.Status = StatusInProgress
	got.StartedAt = &now
	got.Score = &score
	got.CurrentQuestion = 1
	if _, err := s.UpdateSession(got); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	updated, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if updated.Status != StatusInProgress || updated.CurrentQuestion != 1 {
		t.Errorf("update not persisted: %+v", updated)
	}
	if updated.StartedAt == nil || !updated.StartedAt.Equal(now) {
		t.Errorf("StartedAt = %v, want %v", updated.StartedAt, now)
	}
	if updated.Score == nil || *updated.Score != score {
		t.Errorf("Score = %v, want %v", updated.Score, score)
	}
	if updated.CompletedAt != nil {
		t.Errorf("CompletedAt = %v, want nil", updated.CompletedAt)
	}
}

func TestUpdateSession_NotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.UpdateSession(Session{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListSessions_Filter(t *testing.T) {
	s := openTestStore(t)

	a := seedUser(t, s, "a@example.com")
	b := seedUser(t, s, "b@example.com")
	q := seedQuestion(t, s, "c", "p")
	seedSession(t, s, a, q)
	seedSession(t, s, a, q)
	done := seedSession(t, s, b, q)
	done.Status = StatusCompleted
	if _, err := s.UpdateSession(done); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	byCandidate, err := s.ListSessions(SessionFilter{CandidateID: a.ID})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(byCandidate) != 2 {
		t.Errorf("candidate a sessions = %d, want 2", len(byCandidate))
	}
	for _, sess := range byCandidate {
		if len(sess.QuestionIDs) != 1 {
			t.Errorf("session %s QuestionIDs = %v", sess.ID, sess.QuestionIDs)
		}
	}

	completed, err := s.ListSessions(SessionFilter{Status: StatusCompleted})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != done.ID {
		t.Errorf("completed sessions = %+v", completed)
	}

	page, err := s.ListSessions(SessionFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("limited page = %d, want 2", len(page))
	}
}

func TestUpsertResponse(t *testing.T) {
	s := openTestStore(t)

	cand := seedUser(t, s, "cand@example.com")
	q := seedQuestion(t, s, "c", "p")
	sess := seedSession(t, s, cand, q)

	first, created, err := s.UpsertResponse(Response{
		SessionID: sess.ID, QuestionID: q.ID, Answer: json.RawMessage(`{"text":"one"}`), TimeTaken: 30,
	})
	if err != nil {
		t.Fatalf("UpsertResponse: %v", err)
	}
	if !created {
		t.Error("first upsert should report created")
	}

	score := 90.0
	correct := true
	first.Score = &score
	first.IsCorrect = &correct
	first.Feedback = json.RawMessage(`{"detail":"good"}`)
	if _, err := s.SaveEvaluation(first); err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}

	second, created, err := s.UpsertResponse(Response{
		SessionID: sess.ID, QuestionID: q.ID, Answer: json.RawMessage(`{"text":"two"}`), TimeTaken: 45,
	})
	if err != nil {
		t.Fatalf("UpsertResponse again: %v", err)
	}
	if created {
		t.Error("second upsert should update, not create")
	}
	if second.ID != first.ID {
		t.Errorf("ID changed on update: %s -> %s", first.ID, second.ID)
	}
	if string(second.Answer) != `{"text":"two"}` || second.TimeTaken != 45 {
		t.Errorf("answer not replaced: %s / %d", second.Answer, second.TimeTaken)
	}
	if second.Score != nil || second.EvaluatedAt != nil {
		t.Error("resubmission should clear the previous evaluation")
	}
}

func TestSaveEvaluationAndListResponses(t *testing.T) {
	s := openTestStore(t)

	cand := seedUser(t, s, "cand@example.com")
	q1 := seedQuestion(t, s, "c", "one")
	q2 := seedQuestion(t, s, "c", "two")
	sess := seedSession(t, s, cand, q1, q2)

	r1, _, err := s.UpsertResponse(Response{SessionID: sess.ID, QuestionID: q1.ID, Answer: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("UpsertResponse: %v", err)
	}
	if _, _, err := s.UpsertResponse(Response{SessionID: sess.ID, QuestionID: q2.ID, Answer: json.RawMessage(`{}`), AutoSubmitted: true}); err != nil {
		t.Fatalf("UpsertResponse: %v", err)
	}

	score := 40.0
	wrong := false
	r1.Score = &score
	r1.IsCorrect = &wrong
	r1.Evaluation = json.RawMessage(`{"score":40}`)
	saved, err := s.SaveEvaluation(r1)
	if err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}
	if saved.EvaluatedAt == nil {
		t.Error("EvaluatedAt not set")
	}
	if saved.IsCorrect == nil || *saved.IsCorrect {
		t.Errorf("IsCorrect = %v, want false", saved.IsCorrect)
	}

	all, err := s.ListResponses(sess.ID, false)
	if err != nil {
		t.Fatalf("ListResponses: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("responses = %d, want 2", len(all))
	}
	if !all[1].AutoSubmitted {
		t.Error("AutoSubmitted flag lost")
	}

	evaluated, err := s.ListResponses(sess.ID, true)
	if err != nil {
		t.Fatalf("ListResponses evaluated: %v", err)
	}
	if len(evaluated) != 1 || evaluated[0].ID != r1.ID {
		t.Errorf("evaluated responses = %+v", evaluated)
	}

	stats, err := s.QuestionStats(q1.ID)
	if err != nil {
		t.Fatalf("QuestionStats: %v", err)
	}
	if stats.Submissions != 1 || stats.Evaluated != 1 || stats.Correct != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.AverageScore == nil || *stats.AverageScore != 40 {
		t.Errorf("AverageScore = %v, want 40", stats.AverageScore)
	}

	empty, err := s.QuestionStats(q2.ID)
	if err != nil {
		t.Fatalf("QuestionStats: %v", err)
	}
	if empty.AverageScore != nil {
		t.Errorf("AverageScore = %v, want nil for unevaluated question", *empty.AverageScore)
	}
}

func TestDrafts(t *testing.T) {
	s := openTestStore(t)

	cand := seedUser(t, s, "cand@example.com")
	q := seedQuestion(t, s, "c", "p")
	sess := seedSession(t, s, cand, q)

	if _, err := s.GetDraft(sess.ID, q.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.SaveDraft(Draft{SessionID: sess.ID, QuestionID: q.ID, Answer: json.RawMessage(`{"text":"wip"}`)}); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if _, err := s.SaveDraft(Draft{SessionID: sess.ID, QuestionID: q.ID, Answer: json.RawMessage(`{"text":"wip2"}`)}); err != nil {
		t.Fatalf("SaveDraft overwrite: %v", err)
	}
	d, err := s.GetDraft(sess.ID, q.ID)
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if string(d.Answer) != `{"text":"wip2"}` {
		t.Errorf("Answer = %s", d.Answer)
	}
	if err := s.DeleteDraft(sess.ID, q.ID); err != nil {
		t.Fatalf("DeleteDraft: %v", err)
	}
	if _, err := s.GetDraft(sess.ID, q.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("draft still present after delete: %v", err)
	}
}

func TestTimerStates(t *testing.T) {
	s := openTestStore(t)

	cand := seedUser(t, s, "cand@example.com")
	q := seedQuestion(t, s, "c", "p")
	sess := seedSession(t, s, cand, q)

	states := []TimerState{
		{SessionID: sess.ID, QuestionID: "a", RemainingMs: 1000, State: "paused"},
		{SessionID: sess.ID, QuestionID: "b", RemainingMs: 5000, State: "running"},
	}
	if err := s.SaveTimerStates(states); err != nil {
		t.Fatalf("SaveTimerStates: %v", err)
	}
	states[0].RemainingMs = 0
	states[0].State = "expired"
	if err := s.SaveTimerStates(states[:1]); err != nil {
		t.Fatalf("SaveTimerStates update: %v", err)
	}

	got, err := s.ListTimerStates(sess.ID)
	if err != nil {
		t.Fatalf("ListTimerStates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("states = %d, want 2", len(got))
	}
	if got[0].State != "expired" || got[0].RemainingMs != 0 {
		t.Errorf("state a = %+v", got[0])
	}
	if got[1].RemainingMs != 5000 {
		t.Errorf("state b = %+v", got[1])
	}
}

func TestUploads(t *testing.T) {
	s := openTestStore(t)

	cand := seedUser(t, s, "cand@example.com")
	q := seedQuestion(t, s, "c", "p")
	sess := seedSession(t, s, cand, q)

	u, err := s.SaveUpload(Upload{SessionID: sess.ID, QuestionID: q.ID, FileName: "dash.pdf", Path: "/tmp/x", ContentType: "application/pdf", Size: 12, Text: "hello"})
	if err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}
	got, err := s.GetUpload(u.ID)
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if got.FileName != "dash.pdf" || got.Text != "hello" || got.Size != 12 {
		t.Errorf("upload = %+v", got)
	}

	if err := s.DeleteUpload(u.ID); err != nil {
		t.Fatalf("DeleteUpload: %v", err)
	}
	if _, err := s.GetUpload(u.ID); err != ErrNotFound {
		t.Errorf("GetUpload after delete: err = %v, want ErrNotFound", err)
	}
}

func TestRecordLLMCall(t *testing.T) {
	s := openTestStore(t)

	if err := s.RecordLLMCall(LLMCall{Purpose: "evaluation", Model: "mock", LatencyMs: 12, Success: true}); err != nil {
		t.Fatalf("RecordLLMCall: %v", err)
	}
	if err := s.RecordLLMCall(LLMCall{Purpose: "follow_up", Model: "mock", Error: "boom"}); err != nil {
		t.Fatalf("RecordLLMCall: %v", err)
	}

	calls, err := s.RecentLLMCalls(10)
	if err != nil {
		t.Fatalf("RecentLLMCalls: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(calls))
	}
	if calls[0].Purpose != "follow_up" || calls[0].Success {
		t.Errorf("newest call = %+v", calls[0])
	}
}
