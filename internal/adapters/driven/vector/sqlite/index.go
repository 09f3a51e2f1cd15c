// Package sqlite provides a persisted catalog index stored in its own
// SQLite file. Vectors are little-endian float32 blobs; queries scan the
// collection (optionally one group) and rank by cosine distance.
//
// The file is deliberately separate from the relational store: the index is
// a derived projection and is never updated in the same transaction as the
// records it mirrors.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/supplymatch/internal/adapters/driven/vector"
	"github.com/custodia-labs/supplymatch/internal/core/domain"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.CatalogIndex = (*Index)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS vector_collections (
	name       TEXT PRIMARY KEY,
	dimensions INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS catalog_vectors (
	collection TEXT    NOT NULL REFERENCES vector_collections(name) ON DELETE CASCADE,
	id         INTEGER NOT NULL,
	title      TEXT    NOT NULL,
	group_id   INTEGER,
	embedding  BLOB    NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_catalog_vectors_group ON catalog_vectors(collection, group_id);
`

// Options configures Open.
type Options struct {
	// Path is the database file. Parent directories are created.
	Path string

	// Collection names the collection within the file.
	Collection string

	// Create makes a missing collection instead of failing.
	Create bool
}

// Index is a SQLite-backed catalog index for one collection.
type Index struct {
	db         *sql.DB
	collection string

	mu   sync.RWMutex
	dims int
}

// Open opens the collection. A missing collection is a
// domain.ErrConfiguration unless opts.Create is set.
func Open(opts Options) (*Index, error) {
	if opts.Collection == "" {
		return nil, fmt.Errorf("%w: collection name is required", domain.ErrConfiguration)
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("%w: vector index path is required", domain.ErrConfiguration)
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0700); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sql.Open("sqlite", opts.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening vector index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vector schema: %w", err)
	}

	idx := &Index{db: db, collection: opts.Collection}
	if err := idx.loadCollection(opts.Create); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) loadCollection(create bool) error {
	var dims int
	err := idx.db.QueryRow(`SELECT dimensions FROM vector_collections WHERE name = ?`, idx.collection).Scan(&dims)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if !create {
			return fmt.Errorf("%w: vector collection %q does not exist (run 'supplymatch items reindex')",
				domain.ErrConfiguration, idx.collection)
		}
		if _, err := idx.db.Exec(`INSERT INTO vector_collections (name) VALUES (?)`, idx.collection); err != nil {
			return fmt.Errorf("creating collection %q: %w", idx.collection, err)
		}
	case err != nil:
		return fmt.Errorf("reading collection %q: %w", idx.collection, err)
	default:
		idx.dims = dims
	}
	return nil
}

// Upsert inserts or overwrites records in one transaction.
func (idx *Index) Upsert(ctx context.Context, records []driven.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	dims, err := vector.CheckDimensions(idx.dims, records)
	if err != nil {
		return err
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if idx.dims == 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE vector_collections SET dimensions = ? WHERE name = ?`, dims, idx.collection); err != nil {
			return fmt.Errorf("recording dimensions: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO catalog_vectors (collection, id, title, group_id, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(collection, id) DO UPDATE SET
			title = excluded.title,
			group_id = excluded.group_id,
			embedding = excluded.embedding,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, idx.collection, r.Entry.ID, r.Entry.Title,
			nullableGroup(r.Entry.GroupID), float32SliceToBytes(r.Vector)); err != nil {
			return fmt.Errorf("upserting entry %d: %w", r.Entry.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	idx.dims = dims
	return nil
}

// Get returns the stored records for ids.
func (idx *Index) Get(ctx context.Context, ids []int64) (map[int64]driven.IndexRecord, error) {
	out := make(map[int64]driven.IndexRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	in, args := inClause(ids)
	rows, err := idx.db.QueryContext(ctx,
		`SELECT id, title, group_id, embedding FROM catalog_vectors WHERE collection = ? AND id IN (`+in+`)`,
		append([]any{idx.collection}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out[r.Entry.ID] = r
	}
	return out, rows.Err()
}

// DeleteIDs removes records by id.
func (idx *Index) DeleteIDs(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	in, args := inClause(ids)
	res, err := idx.db.ExecContext(ctx,
		`DELETE FROM catalog_vectors WHERE collection = ? AND id IN (`+in+`)`,
		append([]any{idx.collection}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("deleting entries: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DeleteGroup removes every record in the group.
func (idx *Index) DeleteGroup(ctx context.Context, groupID int64) (int, error) {
	res, err := idx.db.ExecContext(ctx,
		`DELETE FROM catalog_vectors WHERE collection = ? AND group_id = ?`, idx.collection, groupID)
	if err != nil {
		return 0, fmt.Errorf("deleting group %d: %w", groupID, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Query scans the collection and returns the k nearest records.
func (idx *Index) Query(ctx context.Context, vec []float32, k int, groupID *int64) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	query := `SELECT id, title, group_id, embedding FROM catalog_vectors WHERE collection = ?`
	args := []any{idx.collection}
	if groupID != nil {
		query += ` AND group_id = ?`
		args = append(args, *groupID)
	}

	rows, err := idx.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scanning collection: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		hits = append(hits, driven.VectorHit{
			Entry:    r.Entry,
			Distance: vector.CosineDistance(vec, r.Vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanning collection: %w", err)
	}
	return vector.TopK(hits, k), nil
}

// Count returns the number of records in the collection.
func (idx *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := idx.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM catalog_vectors WHERE collection = ?`, idx.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

// Dimensions returns the dimension recorded for the collection.
func (idx *Index) Dimensions() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dims
}

// Close closes the database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (driven.IndexRecord, error) {
	var (
		r       driven.IndexRecord
		groupID sql.NullInt64
		blob    []byte
	)
	if err := row.Scan(&r.Entry.ID, &r.Entry.Title, &groupID, &blob); err != nil {
		return r, fmt.Errorf("scanning entry: %w", err)
	}
	if groupID.Valid {
		g := groupID.Int64
		r.Entry.GroupID = &g
	}
	r.Vector = bytesToFloat32Slice(blob)
	return r, nil
}

func nullableGroup(g *int64) sql.NullInt64 {
	if g == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *g, Valid: true}
}

func inClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
