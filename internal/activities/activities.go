package activities

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"pdfagent/internal/config"
	"pdfagent/internal/pdfdoc"
	"pdfagent/internal/providers"
	"pdfagent/internal/util"
	"pdfagent/internal/vector"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Activities are the indexing steps. They run inline in the API process or
// inside a Temporal worker.
type Activities struct {
	cfg       config.Config
	store     vector.Client
	providers *providers.Manager
	log       *slog.Logger
}

func New(cfg config.Config, store vector.Client, pm *providers.Manager, log *slog.Logger) *Activities {
	if log == nil {
		log = slog.Default()
	}
	return &Activities{cfg: cfg, store: store, providers: pm, log: log}
}

func (a *Activities) ExtractDocumentActivity(ctx context.Context, in ExtractDocumentInput) (ExtractDocumentOutput, error) {
	_ = ctx
	f, err := os.Open(in.Path)
	if err != nil {
		return ExtractDocumentOutput{}, fmt.Errorf("open file for hash: %w", err)
	}
	docID, err := util.SHA256HexFromReader(f)
	f.Close()
	if err != nil {
		return ExtractDocumentOutput{}, fmt.Errorf("hash file: %w", err)
	}

	doc, err := pdfdoc.Load(in.Path)
	if err != nil {
		return ExtractDocumentOutput{}, err
	}
	text, offsets, numbers := doc.Text()
	if strings.TrimSpace(text) == "" {
		return ExtractDocumentOutput{}, util.ErrNoExtractableText
	}
	filename := in.Filename
	if filename == "" {
		filename = filepath.Base(in.Path)
	}
	a.log.Info("document extracted", "filename", filename, "document_id", docID, "pages", len(doc.Pages))
	return ExtractDocumentOutput{
		DocumentID:  docID,
		Filename:    filename,
		Pages:       len(doc.Pages),
		Text:        text,
		PageOffsets: offsets,
		PageNumbers: numbers,
	}, nil
}

func (a *Activities) ChunkDocumentActivity(ctx context.Context, in ChunkDocumentInput) (ChunkDocumentOutput, error) {
	_ = ctx
	if in.ChunkSize <= 0 {
		in.ChunkSize = a.cfg.ChunkSize
	}
	if in.ChunkOverlap < 0 || in.ChunkOverlap >= in.ChunkSize {
		in.ChunkOverlap = a.cfg.ChunkOverlap
	}

	raw := util.SplitText(in.Text, in.ChunkSize, in.ChunkOverlap)
	chunks := make([]ChunkItem, 0, len(raw))
	for _, c := range raw {
		page := pageAt(c.Start, in.PageOffsets, in.PageNumbers)
		chunks = append(chunks, ChunkItem{
			ChunkID:    uuid.NewString(),
			ChunkIndex: c.Index,
			Page:       page,
			Text:       c.Text,
			Metadata: map[string]string{
				"source":      in.Filename,
				"document_id": in.DocumentID,
				"chunk_index": strconv.Itoa(c.Index),
				"page":        strconv.Itoa(page),
			},
		})
	}
	return ChunkDocumentOutput{Chunks: chunks}, nil
}

// pageAt maps a rune offset of the joined document text to its page number.
func pageAt(offset int, offsets, numbers []int) int {
	if len(offsets) == 0 || len(offsets) != len(numbers) {
		return 1
	}
	i := sort.Search(len(offsets), func(i int) bool { return offsets[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return numbers[i]
}

// EmbedChunksActivity embeds chunk texts in batches, running up to
// EmbedConcurrency batches at once. Vectors keep chunk order.
func (a *Activities) EmbedChunksActivity(ctx context.Context, in EmbedChunksInput) (EmbedChunksOutput, error) {
	if len(in.Chunks) == 0 {
		return EmbedChunksOutput{}, nil
	}
	provider, ref := a.providers.Embedder()
	batch := a.cfg.EmbedBatchSize
	if batch <= 0 {
		batch = 64
	}
	op := in.Operation
	if op == "" {
		op = "embed"
	}

	vectors := make([][]float32, len(in.Chunks))
	infos := make([]providers.ProviderInfo, (len(in.Chunks)+batch-1)/batch)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.cfg.EmbedConcurrency, 1))
	for start := 0; start < len(in.Chunks); start += batch {
		start := start
		end := min(start+batch, len(in.Chunks))
		slot := start / batch
		g.Go(func() error {
			inputs := make([]string, 0, end-start)
			for _, c := range in.Chunks[start:end] {
				inputs = append(inputs, c.Text)
			}
			out, pi, err := provider.Embed(gctx, providers.EmbedRequest{
				Operation: op,
				Inputs:    inputs,
				Dimension: a.cfg.EmbedDim,
			})
			if err != nil {
				return fmt.Errorf("embed via %s: %w", ref.Raw, err)
			}
			if len(out) != len(inputs) {
				return fmt.Errorf("embed via %s: got %d vectors for %d inputs", ref.Raw, len(out), len(inputs))
			}
			copy(vectors[start:end], out)
			infos[slot] = pi
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.log.Error("embedding failed", "provider", ref.Raw, "error_class", providers.ClassifyError(err), "error", err)
		return EmbedChunksOutput{}, err
	}
	info := infos[0]
	a.log.Info("chunks embedded", "chunks", len(vectors), "provider", info.Name, "model", info.Model)
	return EmbedChunksOutput{Vectors: vectors, ProviderName: info.Name, Model: info.Model}, nil
}

// StoreChunksActivity writes embedded chunks to the named collection. Replace
// mode drops the collection first; a missing collection is not an error.
func (a *Activities) StoreChunksActivity(ctx context.Context, in StoreChunksInput) (StoreChunksOutput, error) {
	if len(in.Chunks) != len(in.Vectors) {
		return StoreChunksOutput{}, fmt.Errorf("have %d chunks but %d vectors", len(in.Chunks), len(in.Vectors))
	}
	name := in.Collection
	if name == "" {
		name = a.cfg.CollectionName
	}

	var (
		coll vector.Collection
		err  error
	)
	switch in.Mode {
	case ModeReplace:
		if err := a.store.DeleteCollection(ctx, name); err != nil && !errors.Is(err, vector.ErrCollectionNotFound) {
			return StoreChunksOutput{}, fmt.Errorf("delete collection %s: %w", name, err)
		}
		coll, err = a.store.CreateCollection(ctx, name)
	case ModeAdd:
		coll, err = a.store.GetOrCreateCollection(ctx, name)
	default:
		return StoreChunksOutput{}, fmt.Errorf("unknown index mode %q", in.Mode)
	}
	if err != nil {
		return StoreChunksOutput{}, fmt.Errorf("open collection %s: %w", name, err)
	}

	records := make([]vector.Record, 0, len(in.Chunks))
	for i, c := range in.Chunks {
		records = append(records, vector.Record{
			ID:        c.ChunkID,
			Text:      c.Text,
			Embedding: in.Vectors[i],
			Metadata:  c.Metadata,
		})
	}
	if err := coll.Add(ctx, records); err != nil {
		return StoreChunksOutput{}, fmt.Errorf("add chunks: %w", err)
	}
	total, err := coll.Count(ctx)
	if err != nil {
		return StoreChunksOutput{}, fmt.Errorf("count chunks: %w", err)
	}
	a.log.Info("chunks stored", "collection", name, "mode", in.Mode, "added", len(records), "total", total)
	return StoreChunksOutput{Collection: name, Added: len(records), Total: total}, nil
}
