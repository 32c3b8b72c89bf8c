// Package vectorstore wraps an embedded, file-backed, columnar vector
// table. It fixes the schema described by the memory record, exposes
// add/update/delete/merge_insert/count_rows and a fluent
// search().distance().where().limit().to_array() query builder, and
// offers Refresh for cross-process visibility between the plugin
// process and the dashboard process that share one data directory.
//
// The filter language is string predicates over scalar columns combined
// with AND; there is no parameterization, so every interpolated
// identifier must already have passed config.ValidateID. This package
// trusts its callers on that point — it is the store engine's job, not
// this adapter's, to validate.
package vectorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/mnemo-dev/mnemo/internal/merrors"
)

func init() {
	sqlite_vec.Auto()
}

// Row is one memory record as stored in the vector table.
type Row struct {
	ID           string
	Memory       string
	UserID       string
	Vector       []float32
	MetadataJSON string
	Type         string
	CreatedAt    string
	UpdatedAt    string
	Hash         string
	Chunk        string
	SupersededBy string
}

const tableName = "memories"

// wrapWriteErr classifies a write-path driver error, promoting a busy or
// locked sqlite response to merrors.ErrTransientWrite so the retry
// kernel (internal/retry) knows to retry it under the write profile.
// Every other driver error is wrapped plain: it is not worth retrying
// on first sight.
func wrapWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked {
			return fmt.Errorf("%s: %w: %w", op, merrors.ErrTransientWrite, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Store is a handle onto the vector table. It is safe for concurrent
// use from multiple goroutines; it is not safe for concurrent use from
// multiple OS processes without calling Refresh before any read that
// must observe another process's writes.
type Store struct {
	db   *sql.DB
	path string
	dim  int
	log  zerolog.Logger
}

// Open creates or opens the vector table at path, pinning its vector
// dimension to dim. On first creation, a seed row is inserted and
// immediately deleted — sqlite-vec's vec0 virtual table fixes its
// vector width at CREATE time, so writing one row is the only way to
// confirm the schema took hold before real data depends on it.
func Open(ctx context.Context, path string, dim int, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	db.SetMaxOpenConns(1) // vec0 virtual tables do not tolerate concurrent writers on one handle

	s := &Store{db: db, path: path, dim: dim, log: log.With().Str("component", "vectorstore").Logger()}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(
		id TEXT PRIMARY KEY,
		embedding float[%d] distance_metric=cosine,
		memory TEXT,
		user_id TEXT,
		metadata_json TEXT,
		type TEXT,
		created_at TEXT,
		updated_at TEXT,
		hash TEXT,
		chunk TEXT,
		superseded_by TEXT
	)`, tableName, s.dim)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create vector table: %w", err)
	}

	count, err := s.CountRows(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	seed := Row{
		ID:           "__seed__",
		Memory:       "seed",
		UserID:       "__seed__",
		Vector:       make([]float32, s.dim),
		MetadataJSON: "{}",
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		UpdatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.Add(ctx, []Row{seed}); err != nil {
		return fmt.Errorf("write schema-pinning seed row: %w", err)
	}
	if err := s.Delete(ctx, "id = '__seed__'"); err != nil {
		return fmt.Errorf("delete schema-pinning seed row: %w", err)
	}
	return nil
}

// Close releases the underlying handle.
func (s *Store) Close() error { return s.db.Close() }

// Refresh re-opens the table handle from disk so this process observes
// writes made by another process sharing the same file. There is no
// cross-process lock; this is the only visibility primitive.
func (s *Store) Refresh(ctx context.Context) error {
	if err := s.db.Close(); err != nil {
		s.log.Warn().Err(err).Msg("refresh: close before reopen failed")
	}
	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("refresh vector store: %w", err)
	}
	db.SetMaxOpenConns(1)
	s.db = db
	return nil
}

// Add inserts new rows.
func (s *Store) Add(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapWriteErr("add: begin tx", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, embedding, memory, user_id, metadata_json, type, created_at, updated_at, hash, chunk, superseded_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, tableName))
	if err != nil {
		tx.Rollback()
		return wrapWriteErr("add: prepare", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		blob, err := sqlite_vec.SerializeFloat32(r.Vector)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("add: serialize vector for %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, blob, r.Memory, r.UserID, r.MetadataJSON, r.Type, r.CreatedAt, r.UpdatedAt, r.Hash, r.Chunk, r.SupersededBy); err != nil {
			tx.Rollback()
			return wrapWriteErr(fmt.Sprintf("add: insert %s", r.ID), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapWriteErr("add: commit", err)
	}
	return nil
}

// Update applies values to every row matching whereClause. whereClause
// must already be built from validated, escaped identifiers.
func (s *Store) Update(ctx context.Context, whereClause string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	sets := make([]string, 0, len(values))
	args := make([]interface{}, 0, len(values))
	for col, val := range values {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", tableName, strings.Join(sets, ", "), whereClause)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return wrapWriteErr("update", err)
	}
	return nil
}

// UpdateVector replaces both the stored vector and scalar columns for
// the row matching whereClause. Used only where the caller has decided
// to re-embed on merge (see open question in DESIGN.md); the default
// dedup-merge path uses Update and leaves the vector untouched.
func (s *Store) UpdateVector(ctx context.Context, whereClause string, vector []float32, values map[string]string) error {
	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return fmt.Errorf("update vector: serialize: %w", err)
	}
	sets := []string{"embedding = ?"}
	args := []interface{}{blob}
	for col, val := range values {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", tableName, strings.Join(sets, ", "), whereClause)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return wrapWriteErr("update vector", err)
	}
	return nil
}

// Delete physically removes every row matching whereClause.
func (s *Store) Delete(ctx context.Context, whereClause string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", tableName, whereClause)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return wrapWriteErr("delete", err)
	}
	return nil
}

// MergeInsert upserts row by id: an existing row with the same id is
// replaced in place, otherwise a new row is inserted. vec0 virtual
// tables do not support ON CONFLICT, so this is a delete-then-insert
// inside one transaction.
func (s *Store) MergeInsert(ctx context.Context, row Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapWriteErr("merge_insert: begin tx", err)
	}
	escapedID := strings.ReplaceAll(row.ID, "'", "''")
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = '%s'", tableName, escapedID)); err != nil {
		tx.Rollback()
		return wrapWriteErr("merge_insert: delete existing", err)
	}
	blob, err := sqlite_vec.SerializeFloat32(row.Vector)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("merge_insert: serialize vector: %w", err)
	}
	insert := fmt.Sprintf(
		`INSERT INTO %s (id, embedding, memory, user_id, metadata_json, type, created_at, updated_at, hash, chunk, superseded_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, tableName)
	if _, err := tx.ExecContext(ctx, insert, row.ID, blob, row.Memory, row.UserID, row.MetadataJSON, row.Type, row.CreatedAt, row.UpdatedAt, row.Hash, row.Chunk, row.SupersededBy); err != nil {
		tx.Rollback()
		return wrapWriteErr("merge_insert: insert", err)
	}
	if err := tx.Commit(); err != nil {
		return wrapWriteErr("merge_insert: commit", err)
	}
	return nil
}

// CountRows returns the number of rows currently in the table.
func (s *Store) CountRows(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count_rows: %w", err)
	}
	return n, nil
}

// Result is one row returned from a vector search, with its cosine
// distance to the query vector.
type Result struct {
	Row
	Distance float64
}

// Query is the fluent search().distance().where().limit().to_array()
// builder.
type Query struct {
	store    *Store
	vector   []float32
	distance string
	where    string
	limit    int
}

// Search starts a query against vector using cosine distance by
// default.
func (s *Store) Search(vector []float32) *Query {
	return &Query{store: s, vector: vector, distance: "cosine", limit: 10}
}

// Distance sets the distance metric. Only "cosine" is used by mnemo
// today; the method exists because every caller names the metric
// explicitly rather than relying on an implicit default.
func (q *Query) Distance(metric string) *Query {
	q.distance = metric
	return q
}

// Where sets the filter clause, ANDed into the generated WHERE. The
// clause must already be built from validated, escaped identifiers.
func (q *Query) Where(clause string) *Query {
	q.where = clause
	return q
}

// Limit caps the number of results.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// ToArray executes the query and returns matches ordered by ascending
// distance (most similar first).
func (q *Query) ToArray(ctx context.Context) ([]Result, error) {
	blob, err := sqlite_vec.SerializeFloat32(q.vector)
	if err != nil {
		return nil, fmt.Errorf("search: serialize query vector: %w", err)
	}

	clause := "embedding MATCH ?"
	args := []interface{}{blob}
	if q.where != "" {
		clause += " AND " + q.where
	}

	query := fmt.Sprintf(
		`SELECT id, memory, user_id, metadata_json, type, created_at, updated_at, hash, chunk, superseded_by, distance
		 FROM %s WHERE %s AND k = ? ORDER BY distance ASC`, tableName, clause)
	args = append(args, q.limit)

	rows, err := q.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Memory, &r.UserID, &r.MetadataJSON, &r.Type, &r.CreatedAt, &r.UpdatedAt, &r.Hash, &r.Chunk, &r.SupersededBy, &r.Distance); err != nil {
			return nil, fmt.Errorf("search: scan: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Scan runs a plain scalar scan (no vector match) over the table,
// applying whereClause only — used when the index only supports
// vector-keyed queries and the caller needs a filtered enumeration
// instead, e.g. listByType or the enumeration union in search.
func (s *Store) Scan(ctx context.Context, whereClause string, orderBy string, limit int) ([]Row, error) {
	query := fmt.Sprintf(
		`SELECT id, memory, user_id, metadata_json, type, created_at, updated_at, hash, chunk, superseded_by
		 FROM %s`, tableName)
	if whereClause != "" {
		query += " WHERE " + whereClause
	}
	if orderBy != "" {
		query += " ORDER BY " + orderBy
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Memory, &r.UserID, &r.MetadataJSON, &r.Type, &r.CreatedAt, &r.UpdatedAt, &r.Hash, &r.Chunk, &r.SupersededBy); err != nil {
			return nil, fmt.Errorf("scan: scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
