package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pdfagent/internal/util"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS collections (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE,
  dimension INTEGER NOT NULL DEFAULT 0,
  generation INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS embeddings (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  collection_id INTEGER NOT NULL,
  id TEXT NOT NULL,
  document TEXT NOT NULL,
  metadata TEXT NOT NULL DEFAULT '{}',
  embedding BLOB NOT NULL,
  UNIQUE(collection_id, id)
);
CREATE INDEX IF NOT EXISTS idx_embeddings_collection ON embeddings(collection_id);
`

// SQLiteClient persists collections in <dir>/index.sqlite3 and serves
// queries from HNSW graphs rebuilt whenever a collection's generation moves.
// Writers take <dir>/.index.lock so several processes can share a directory.
type SQLiteClient struct {
	db      *sql.DB
	lock    *flock.Flock
	writeMu sync.Mutex

	mu     sync.Mutex
	graphs map[int64]*graphIndex
}

func OpenSQLite(ctx context.Context, dir string) (*SQLiteClient, error) {
	if err := util.EnsureDir(dir); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "index.sqlite3")
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate index db: %w", err)
	}
	return &SQLiteClient{
		db:     db,
		lock:   flock.New(filepath.Join(dir, ".index.lock")),
		graphs: map[int64]*graphIndex{},
	}, nil
}

func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// withWriteLock serializes writers inside the process and across processes.
func (c *SQLiteClient) withWriteLock(ctx context.Context, fn func() error) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	locked, err := c.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire index lock: %w", err)
	}
	if !locked {
		return errors.New("acquire index lock: not acquired")
	}
	defer func() { _ = c.lock.Unlock() }()
	return fn()
}

func (c *SQLiteClient) CreateCollection(ctx context.Context, name string) (Collection, error) {
	var col *sqliteCollection
	err := c.withWriteLock(ctx, func() error {
		var id int64
		err := c.db.QueryRowContext(ctx, `SELECT id FROM collections WHERE name = ?`, name).Scan(&id)
		if err == nil {
			return ErrCollectionExists
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lookup collection: %w", err)
		}
		res, err := c.db.ExecContext(ctx, `INSERT INTO collections (name, created_at) VALUES (?, ?)`, name, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		col = &sqliteCollection{client: c, id: id, name: name}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return col, nil
}

func (c *SQLiteClient) GetOrCreateCollection(ctx context.Context, name string) (Collection, error) {
	var id int64
	err := c.db.QueryRowContext(ctx, `SELECT id FROM collections WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return &sqliteCollection{client: c, id: id, name: name}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup collection: %w", err)
	}
	col, err := c.CreateCollection(ctx, name)
	if errors.Is(err, ErrCollectionExists) {
		return c.GetOrCreateCollection(ctx, name)
	}
	return col, err
}

func (c *SQLiteClient) DeleteCollection(ctx context.Context, name string) error {
	return c.withWriteLock(ctx, func() error {
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin delete collection: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		var id int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM collections WHERE name = ?`, name).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrCollectionNotFound
			}
			return fmt.Errorf("lookup collection: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE collection_id = ?`, id); err != nil {
			return fmt.Errorf("delete embeddings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit delete collection: %w", err)
		}
		c.mu.Lock()
		delete(c.graphs, id)
		c.mu.Unlock()
		return nil
	})
}

type sqliteCollection struct {
	client *SQLiteClient
	id     int64
	name   string
}

func (s *sqliteCollection) Name() string { return s.name }

func (s *sqliteCollection) state(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}) (dim int, generation int64, err error) {
	err = q.QueryRowContext(ctx, `SELECT dimension, generation FROM collections WHERE id = ?`, s.id).Scan(&dim, &generation)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrCollectionNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("read collection state: %w", err)
	}
	return dim, generation, nil
}

func (s *sqliteCollection) Add(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	c := s.client
	return c.withWriteLock(ctx, func() error {
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin add: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		dim, generation, err := s.state(ctx, tx)
		if err != nil {
			return err
		}
		newDim, err := validateRecords(records, dim)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO embeddings (collection_id, id, document, metadata, embedding) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		replaced := false
		keys := make([]uint64, 0, len(records))
		vecs := make([][]float32, 0, len(records))
		for _, r := range records {
			res, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE collection_id = ? AND id = ?`, s.id, r.ID)
			if err != nil {
				return fmt.Errorf("replace record %s: %w", r.ID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				replaced = true
			}
			meta, err := json.Marshal(r.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata %s: %w", r.ID, err)
			}
			res, err = stmt.ExecContext(ctx, s.id, r.ID, r.Text, string(meta), encodeVector(r.Embedding))
			if err != nil {
				return fmt.Errorf("insert record %s: %w", r.ID, err)
			}
			seq, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("insert record %s: %w", r.ID, err)
			}
			keys = append(keys, uint64(seq))
			vecs = append(vecs, r.Embedding)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE collections SET dimension = ?, generation = generation + 1 WHERE id = ?`, newDim, s.id); err != nil {
			return fmt.Errorf("bump generation: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit add: %w", err)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		g, ok := c.graphs[s.id]
		if ok && !replaced && g.generation == generation {
			g.add(keys, vecs)
			g.generation = generation + 1
		} else {
			delete(c.graphs, s.id)
		}
		return nil
	})
}

func (s *sqliteCollection) Query(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	dim, generation, err := s.state(ctx, s.client.db)
	if err != nil {
		return nil, err
	}
	if dim == 0 || k <= 0 {
		return []Match{}, nil
	}
	if len(embedding) != dim {
		return nil, ErrDimensionMismatch{Expected: dim, Got: len(embedding)}
	}
	g, err := s.graph(ctx, generation)
	if err != nil {
		return nil, err
	}
	hits := g.search(embedding, k)
	if len(hits) == 0 {
		return []Match{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(hits)), ",")
	args := make([]any, 0, len(hits)+1)
	args = append(args, s.id)
	for _, h := range hits {
		args = append(args, int64(h.Key))
	}
	rows, err := s.client.db.QueryContext(ctx,
		`SELECT seq, id, document, metadata FROM embeddings WHERE collection_id = ? AND seq IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("load matches: %w", err)
	}
	defer rows.Close()
	bySeq := make(map[uint64]Match, len(hits))
	for rows.Next() {
		var (
			seq  int64
			m    Match
			meta string
		)
		if err := rows.Scan(&seq, &m.ID, &m.Text, &meta); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if meta != "" && meta != "null" {
			if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		bySeq[uint64(seq)] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	out := make([]Match, 0, len(hits))
	for _, h := range hits {
		m, ok := bySeq[h.Key]
		if !ok {
			continue
		}
		m.Score = h.Score
		out = append(out, m)
	}
	sortMatches(out)
	return out, nil
}

// graph returns the cached graph for generation, rebuilding it from rows when
// the collection changed since it was built.
func (s *sqliteCollection) graph(ctx context.Context, generation int64) (*graphIndex, error) {
	c := s.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.graphs[s.id]; ok && g.generation == generation {
		return g, nil
	}
	rows, err := c.db.QueryContext(ctx, `SELECT seq, embedding FROM embeddings WHERE collection_id = ? ORDER BY seq`, s.id)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer rows.Close()
	var (
		keys []uint64
		vecs [][]float32
	)
	for rows.Next() {
		var (
			seq  int64
			blob []byte
		)
		if err := rows.Scan(&seq, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		v, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		keys = append(keys, uint64(seq))
		vecs = append(vecs, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	g := newGraphIndex(generation)
	g.add(keys, vecs)
	c.graphs[s.id] = g
	return g, nil
}

func (s *sqliteCollection) Count(ctx context.Context) (int, error) {
	if _, _, err := s.state(ctx, s.client.db); err != nil {
		return 0, err
	}
	var n int
	if err := s.client.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings WHERE collection_id = ?`, s.id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

func encodeVector(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(x))
	}
	return b
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("corrupt embedding blob of %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
