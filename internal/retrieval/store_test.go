package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kalambet/intervue/internal/storage"
)

// openTestVectorStore returns a store over a migrated in-memory database.
func openTestVectorStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewSQLiteStore(st.DB())
}

func makeTestVector(dim int, seed float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = seed + float32(i)*0.001
	}
	return v
}

// axis returns a unit vector along dimension i.
func axis(dim, i int) []float32 {
	v := make([]float32, dim)
	v[i] = 1
	return v
}

func TestAddAndQuery(t *testing.T) {
	s := openTestVectorStore(t)
	ctx := context.Background()

	vec := makeTestVector(768, 0.1)
	ids, err := s.Add(ctx, "questions", []Document{{
		ID:        "q1",
		Text:      "What does VLOOKUP do?",
		Metadata:  map[string]any{"category": "excel"},
		Embedding: vec,
	}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(ids) != 1 || ids[0] != "q1" {
		t.Fatalf("ids = %v, want [q1]", ids)
	}

	matches, err := s.Query(ctx, "questions", vec, 1, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Distance > 0.01 {
		t.Errorf("distance = %f, want ~0", matches[0].Distance)
	}
	if matches[0].Document != "What does VLOOKUP do?" {
		t.Errorf("document = %q", matches[0].Document)
	}
	if matches[0].Metadata["category"] != "excel" {
		t.Errorf("metadata = %v", matches[0].Metadata)
	}
}

func TestAdd_GeneratesIDs(t *testing.T) {
	s := openTestVectorStore(t)

	ids, err := s.Add(context.Background(), "c", []Document{{Text: "a", Embedding: axis(4, 0)}, {Text: "b", Embedding: axis(4, 1)}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(ids) != 2 || ids[0] == "" || ids[0] == ids[1] {
		t.Errorf("ids = %v, want two distinct generated IDs", ids)
	}
}

func TestAdd_ReplacesExisting(t *testing.T) {
	s := openTestVectorStore(t)
	ctx := context.Background()

	if _, err := s.Add(ctx, "c", []Document{{ID: "x", Text: "old", Embedding: axis(4, 0)}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(ctx, "c", []Document{{ID: "x", Text: "new", Embedding: axis(4, 1)}}); err != nil {
		t.Fatalf("Add again: %v", err)
	}

	st, err := s.Stats(ctx, "c")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Count != 1 {
		t.Errorf("count = %d, want 1", st.Count)
	}
	matches, err := s.Query(ctx, "c", axis(4, 1), 1, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 || matches[0].Document != "new" {
		t.Errorf("matches = %+v, want replaced document", matches)
	}
}

func TestQuery_OrderAndLimit(t *testing.T) {
	s := openTestVectorStore(t)
	ctx := context.Background()

	var docs []Document
	for i := 0; i < 10; i++ {
		docs = append(docs, Document{
			ID:        fmt.Sprintf("d%d", i),
			Text:      "text",
			Embedding: makeTestVector(64, float32(i)*0.5),
		})
	}
	// A vector that points exactly along the query.
	docs = append(docs, Document{ID: "best", Text: "best", Embedding: axis(64, 3)})
	if _, err := s.Add(ctx, "c", docs); err != nil {
		t.Fatalf("Add: %v", err)
	}

	matches, err := s.Query(ctx, "c", axis(64, 3), 3, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	if matches[0].ID != "best" {
		t.Errorf("first match = %q, want best", matches[0].ID)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Distance < matches[i-1].Distance {
			t.Errorf("matches not sorted by distance: %v", matches)
		}
	}
}

func TestQuery_DefaultN(t *testing.T) {
	s := openTestVectorStore(t)
	ctx := context.Background()

	var docs []Document
	for i := 0; i < 8; i++ {
		docs = append(docs, Document{Text: "t", Embedding: makeTestVector(16, float32(i+1))})
	}
	if _, err := s.Add(ctx, "c", docs); err != nil {
		t.Fatalf("Add: %v", err)
	}

	matches, err := s.Query(ctx, "c", makeTestVector(16, 1), 0, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != DefaultQueryResults {
		t.Errorf("got %d matches, want %d", len(matches), DefaultQueryResults)
	}
}

func TestQuery_WhereFilter(t *testing.T) {
	s := openTestVectorStore(t)
	ctx := context.Background()

	docs := []Document{
		{ID: "e1", Text: "excel easy", Metadata: map[string]any{"category": "excel", "difficulty": "easy"}, Embedding: axis(4, 0)},
		{ID: "e2", Text: "excel hard", Metadata: map[string]any{"category": "excel", "difficulty": "hard"}, Embedding: axis(4, 0)},
		{ID: "p1", Text: "python", Metadata: map[string]any{"category": "python", "difficulty": "easy"}, Embedding: axis(4, 0)},
	}
	if _, err := s.Add(ctx, "c", docs); err != nil {
		t.Fatalf("Add: %v", err)
	}

	tests := []struct {
		name  string
		where map[string]any
		want  []string
	}{
		{"no filter", nil, []string{"e1", "e2", "p1"}},
		{"category", map[string]any{"category": "excel"}, []string{"e1", "e2"}},
		{"category and difficulty", map[string]any{"category": "excel", "difficulty": "hard"}, []string{"e2"}},
		{"no match", map[string]any{"category": "sql"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := s.Query(ctx, "c", axis(4, 0), 10, tt.where)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			var got []string
			for _, m := range matches {
				got = append(got, m.ID)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuery_InvalidFilterKey(t *testing.T) {
	s := openTestVectorStore(t)
	_, err := s.Query(context.Background(), "c", axis(4, 0), 1, map[string]any{"x') OR 1=1 --": "a"})
	if err == nil {
		t.Fatal("expected error for invalid metadata key")
	}
}

func TestQuery_ZeroVector(t *testing.T) {
	s := openTestVectorStore(t)
	ctx := context.Background()
	if _, err := s.Add(ctx, "c", []Document{{ID: "a", Embedding: axis(4, 0)}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	matches, err := s.Query(ctx, "c", make([]float32, 4), 5, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if matches != nil {
		t.Errorf("expected nil matches for zero query vector, got %v", matches)
	}
}

func TestQuery_CollectionsIsolated(t *testing.T) {
	s := openTestVectorStore(t)
	ctx := context.Background()
	if _, err := s.Add(ctx, "a", []Document{{ID: "1", Embedding: axis(4, 0)}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	matches, err := s.Query(ctx, "b", axis(4, 0), 5, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches from empty collection", len(matches))
	}
}

func TestDelete(t *testing.T) {
	s := openTestVectorStore(t)
	ctx := context.Background()

	docs := []Document{
		{ID: "a", Metadata: map[string]any{"category": "excel"}, Embedding: axis(4, 0)},
		{ID: "b", Metadata: map[string]any{"category": "excel"}, Embedding: axis(4, 1)},
		{ID: "c", Metadata: map[string]any{"category": "python"}, Embedding: axis(4, 2)},
	}
	if _, err := s.Add(ctx, "col", docs); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, err := s.Delete(ctx, "col", nil, nil); !errors.Is(err, ErrEmptyDelete) {
		t.Errorf("Delete with nothing = %v, want ErrEmptyDelete", err)
	}

	n, err := s.Delete(ctx, "col", []string{"a"}, nil)
	if err != nil || n != 1 {
		t.Fatalf("Delete by id = %d, %v; want 1", n, err)
	}

	n, err = s.Delete(ctx, "col", nil, map[string]any{"category": "excel"})
	if err != nil || n != 1 {
		t.Fatalf("Delete by where = %d, %v; want 1", n, err)
	}

	st, err := s.Stats(ctx, "col")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Count != 1 {
		t.Errorf("count = %d, want 1", st.Count)
	}
}

func TestStatsAndReset(t *testing.T) {
	s := openTestVectorStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx, "missing")
	if err != nil {
		t.Fatalf("Stats on missing collection: %v", err)
	}
	if st.Count != 0 || st.Name != "missing" {
		t.Errorf("stats = %+v", st)
	}

	if _, err := s.Add(ctx, "col", []Document{{Embedding: axis(4, 0)}, {Embedding: axis(4, 1)}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	st, err = s.Stats(ctx, "col")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Count != 2 {
		t.Errorf("count = %d, want 2", st.Count)
	}
	if st.Metadata["hnsw:space"] != "cosine" {
		t.Errorf("metadata = %v, want cosine space", st.Metadata)
	}

	if err := s.Reset(ctx, "col"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	st, err = s.Stats(ctx, "col")
	if err != nil {
		t.Fatalf("Stats after reset: %v", err)
	}
	if st.Count != 0 {
		t.Errorf("count after reset = %d, want 0", st.Count)
	}
}

func TestDecodeFloat32sInto_Corrupt(t *testing.T) {
	if _, err := decodeFloat32sInto(nil, []byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated embedding")
	}
	v, err := decodeFloat32sInto(nil, encodeFloat32s([]float32{1.5, -2}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(v) != 2 || v[0] != 1.5 || v[1] != -2 {
		t.Errorf("decoded = %v", v)
	}
}
