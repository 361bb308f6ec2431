package vector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pdfagent/internal/storage"

	"github.com/jackc/pgx/v5"
)

// Queryer is the read side of a pgx pool or transaction.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Searcher runs cosine-distance queries against pdf_chunks.
type Searcher struct {
	q Queryer
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

func (s *Searcher) SearchChunks(ctx context.Context, collection string, queryVec []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 3
	}
	rows, err := s.q.Query(ctx, `
SELECT chunk_id,
       text,
       metadata,
       1 - (embedding <=> $2::vector) AS score
FROM pdf_chunks
WHERE collection = $1
ORDER BY embedding <=> $2::vector
LIMIT $3`, collection, ToLiteral(queryVec), topK)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]Match, 0, topK)
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Text, &m.Metadata, &m.Score); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// PGClient stores collections in Postgres with the pgvector extension.
type PGClient struct {
	db       *storage.DB
	repo     *storage.ChunkRepo
	searcher *Searcher
}

// NewPGClient migrates the schema and takes ownership of db.
func NewPGClient(ctx context.Context, db *storage.DB) (*PGClient, error) {
	if err := db.Migrate(ctx); err != nil {
		return nil, err
	}
	return &PGClient{db: db, repo: storage.NewChunkRepo(db), searcher: NewSearcher(db.Pool)}, nil
}

func (c *PGClient) CreateCollection(ctx context.Context, name string) (Collection, error) {
	created, err := c.repo.CreateCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, ErrCollectionExists
	}
	return &pgCollection{client: c, name: name}, nil
}

func (c *PGClient) GetOrCreateCollection(ctx context.Context, name string) (Collection, error) {
	if _, err := c.repo.CreateCollection(ctx, name); err != nil {
		return nil, err
	}
	return &pgCollection{client: c, name: name}, nil
}

func (c *PGClient) DeleteCollection(ctx context.Context, name string) error {
	err := c.repo.DeleteCollection(ctx, name)
	if errors.Is(err, storage.ErrNoCollection) {
		return ErrCollectionNotFound
	}
	return err
}

func (c *PGClient) Close() error {
	c.db.Close()
	return nil
}

type pgCollection struct {
	client *PGClient
	name   string
}

func (p *pgCollection) Name() string { return p.name }

func (p *pgCollection) dimension(ctx context.Context) (int, error) {
	dim, err := p.client.repo.CollectionDimension(ctx, p.name)
	if errors.Is(err, storage.ErrNoCollection) {
		return 0, ErrCollectionNotFound
	}
	return dim, err
}

func (p *pgCollection) Add(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	dim, err := p.dimension(ctx)
	if err != nil {
		return err
	}
	dim, err = validateRecords(records, dim)
	if err != nil {
		return err
	}
	rows := make([]storage.ChunkRecord, 0, len(records))
	for _, r := range records {
		rows = append(rows, storage.ChunkRecord{
			ChunkID:   r.ID,
			Text:      r.Text,
			Metadata:  r.Metadata,
			Embedding: ToLiteral(r.Embedding),
		})
	}
	err = p.client.repo.UpsertChunks(ctx, p.name, dim, rows)
	if errors.Is(err, storage.ErrNoCollection) {
		return ErrCollectionNotFound
	}
	return err
}

func (p *pgCollection) Query(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	dim, err := p.dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 || k <= 0 {
		return []Match{}, nil
	}
	if len(embedding) != dim {
		return nil, ErrDimensionMismatch{Expected: dim, Got: len(embedding)}
	}
	return p.client.searcher.SearchChunks(ctx, p.name, embedding, k)
}

func (p *pgCollection) Count(ctx context.Context) (int, error) {
	if _, err := p.dimension(ctx); err != nil {
		return 0, err
	}
	return p.client.repo.CountChunks(ctx, p.name)
}
