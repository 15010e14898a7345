package retrieval

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultQueryResults is used when Query is called with n <= 0.
const DefaultQueryResults = 5

var _ VectorStore = (*SQLiteStore)(nil)

// ErrEmptyDelete is returned by Delete when neither IDs nor a filter is given.
var ErrEmptyDelete = errors.New("delete requires ids or a where filter")

// metadataKey limits filter keys to plain identifiers; they end up inside a
// JSON path expression.
var metadataKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStore provides vector storage and brute-force cosine search backed
// by the vector_collections and vectors tables.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore wraps an existing *sql.DB. The tables must already exist
// (created via storage migrations).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func (s *SQLiteStore) Add(ctx context.Context, collection string, docs []Document) ([]string, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vector_collections (name, metadata, created_at) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING`,
		collection, `{"hnsw:space":"cosine"}`, now,
	); err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", collection, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (collection, id, document, metadata, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			document = excluded.document, metadata = excluded.metadata, embedding = excluded.embedding`)
	if err != nil {
		return nil, fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		meta, err := encodeMetadata(d.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encoding metadata for %s: %w", d.ID, err)
		}
		createdAt := now
		if !d.CreatedAt.IsZero() {
			createdAt = d.CreatedAt.UTC().Format(time.RFC3339)
		}
		if _, err := stmt.ExecContext(ctx, collection, d.ID, d.Text, meta, encodeFloat32s(d.Embedding), createdAt); err != nil {
			return nil, fmt.Errorf("inserting document %s: %w", d.ID, err)
		}
		ids[i] = d.ID
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// idScore holds only the ID and similarity during the scan phase of Query.
// Full documents are fetched only for the top-n winners.
type idScore struct {
	ID    string
	Score float32
}

func (s *SQLiteStore) Query(ctx context.Context, collection string, vector []float32, n int, where map[string]any) ([]Match, error) {
	if n <= 0 {
		n = DefaultQueryResults
	}
	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	clause, args, err := whereClause(collection, where)
	if err != nil {
		return nil, err
	}

	// Phase 1: scan only id + embedding to find the top-n candidates.
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM vectors WHERE `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}

	h := &idScoreHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings.
	var buf []float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		score := cosine(vector, buf, queryNorm)
		if h.Len() < n {
			heap.Push(h, idScore{ID: id, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = idScore{ID: id, Score: score}
			heap.Fix(h, 0)
		}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch documents only for the winners.
	scores := make(map[string]float32, h.Len())
	ids := make([]string, 0, h.Len())
	for h.Len() > 0 {
		item := heap.Pop(h).(idScore)
		scores[item.ID] = item.Score
		ids = append(ids, item.ID)
	}

	args = []any{collection}
	for _, id := range ids {
		args = append(args, id)
	}
	fullRows, err := s.db.QueryContext(ctx, `SELECT id, document, metadata FROM vectors
		WHERE collection = ? AND id IN (?`+strings.Repeat(",?", len(ids)-1)+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching top documents: %w", err)
	}
	defer fullRows.Close()

	var matches []Match
	for fullRows.Next() {
		var m Match
		var meta string
		if err := fullRows.Scan(&m.ID, &m.Document, &meta); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if m.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", m.ID, err)
		}
		m.Distance = 1 - scores[m.ID]
		matches = append(matches, m)
	}
	if err := fullRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	// IN does not preserve order.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
	return matches, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, collection string, ids []string, where map[string]any) (int, error) {
	if len(ids) == 0 && len(where) == 0 {
		return 0, ErrEmptyDelete
	}

	clause, args, err := whereClause(collection, where)
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		clause += ` AND id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE `+clause, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", collection, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) Stats(ctx context.Context, collection string) (CollectionStats, error) {
	st := CollectionStats{Name: collection, Metadata: map[string]any{}}

	var meta string
	err := s.db.QueryRowContext(ctx, `SELECT metadata FROM vector_collections WHERE name = ?`, collection).Scan(&meta)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return st, nil
	case err != nil:
		return CollectionStats{}, fmt.Errorf("reading collection %s: %w", collection, err)
	}
	if st.Metadata, err = decodeMetadata(meta); err != nil {
		return CollectionStats{}, err
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors WHERE collection = ?`, collection).Scan(&st.Count); err != nil {
		return CollectionStats{}, fmt.Errorf("counting %s: %w", collection, err)
	}
	return st, nil
}

func (s *SQLiteStore) Reset(ctx context.Context, collection string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE collection = ?`, collection); err != nil {
		return fmt.Errorf("resetting %s: %w", collection, err)
	}
	return nil
}

// whereClause builds "collection = ? [AND json_extract(metadata, '$.k') = ?]...".
// Keys are sorted so the generated SQL is stable.
func whereClause(collection string, where map[string]any) (string, []any, error) {
	clause := "collection = ?"
	args := []any{collection}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !metadataKey.MatchString(k) {
			return "", nil, fmt.Errorf("invalid metadata key %q", k)
		}
		v := where[k]
		switch tv := v.(type) {
		case bool:
			// json_extract yields 1/0 for JSON booleans.
			v = boolToInt(tv)
		case string, int, int64, float64, float32:
		default:
			return "", nil, fmt.Errorf("unsupported filter value for %q: %T", k, v)
		}
		clause += " AND json_extract(metadata, '$." + k + "') = ?"
		args = append(args, v)
	}
	return clause, args, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func decodeMetadata(s string) (map[string]any, error) {
	m := map[string]any{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32sInto decodes little-endian bytes into buf, growing it when needed.
// A length that is not a multiple of 4 indicates corruption.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes dot(a,b) / (aNorm * |b|). aNorm is precomputed.
// Mismatched dimensions and zero vectors score 0.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// idScoreHeap is a min-heap of idScore ordered by Score.
type idScoreHeap []idScore

func (h idScoreHeap) Len() int           { return len(h) }
func (h idScoreHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h idScoreHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idScoreHeap) Push(x any)        { *h = append(*h, x.(idScore)) }
func (h *idScoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
