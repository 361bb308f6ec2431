package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var ErrNoCollection = errors.New("collection does not exist")

type ChunkRecord struct {
	ChunkID   string
	Text      string
	Metadata  map[string]string
	Embedding string
}

// ChunkRepo owns the pdf_collections and pdf_chunks tables. Embedding values
// are pgvector literals.
type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// CreateCollection reports whether a new row was inserted.
func (r *ChunkRepo) CreateCollection(ctx context.Context, name string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `INSERT INTO pdf_collections (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return false, fmt.Errorf("create collection %s: %w", name, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ChunkRepo) DeleteCollection(ctx context.Context, name string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM pdf_collections WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoCollection
	}
	return nil
}

func (r *ChunkRepo) CollectionDimension(ctx context.Context, name string) (int, error) {
	var dim int
	err := r.db.Pool.QueryRow(ctx, `SELECT dimension FROM pdf_collections WHERE name = $1`, name).Scan(&dim)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNoCollection
	}
	if err != nil {
		return 0, fmt.Errorf("read collection %s: %w", name, err)
	}
	return dim, nil
}

func (r *ChunkRepo) UpsertChunks(ctx context.Context, collection string, dim int, chunks []ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx upsert chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `UPDATE pdf_collections SET dimension = $2 WHERE name = $1`, collection, dim)
	if err != nil {
		return fmt.Errorf("set collection dimension: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoCollection
	}
	batch := &pgx.Batch{}
	for _, c := range chunks {
		meta := c.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		batch.Queue(`
INSERT INTO pdf_chunks (collection, chunk_id, text, metadata, embedding)
VALUES ($1, $2, $3, $4, $5::vector)
ON CONFLICT (collection, chunk_id)
DO UPDATE SET
  text = EXCLUDED.text,
  metadata = EXCLUDED.metadata,
  embedding = EXCLUDED.embedding`,
			collection, c.ChunkID, c.Text, meta, c.Embedding,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

func (r *ChunkRepo) CountChunks(ctx context.Context, collection string) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM pdf_chunks WHERE collection = $1`, collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}
