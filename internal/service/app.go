// Package service owns the active collection, agent and document pointers and
// exposes the indexing and question-answering operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pdfagent/internal/activities"
	"pdfagent/internal/agent"
	"pdfagent/internal/config"
	"pdfagent/internal/providers"
	"pdfagent/internal/session"
	"pdfagent/internal/tools"
	"pdfagent/internal/util"
	"pdfagent/internal/vector"
	"pdfagent/internal/workflows"

	"github.com/google/uuid"
)

// NotReadyAnswer is returned for questions asked before anything was indexed.
const NotReadyAnswer = "The agent is not ready. Please upload and index a PDF file first."

const (
	documentFile = "active_document.pdf"
	sidecarFile  = "active_document.json"
	uploadDir    = "uploads"
)

var ErrInvalidMode = errors.New("mode must be 'replace' or 'add'")

// IndexError reports which indexing stage failed.
type IndexError struct {
	Stage string
	Err   error
}

func (e *IndexError) Error() string { return e.Err.Error() }
func (e *IndexError) Unwrap() error { return e.Err }

type IndexResult struct {
	Message    string `json:"message"`
	Filename   string `json:"filename"`
	Mode       string `json:"mode"`
	DocumentID string `json:"document_id"`
	Pages      int    `json:"pages"`
	Chunks     int    `json:"chunks"`
	Total      int    `json:"total"`
}

// ActiveDocument describes the last indexed upload. It is persisted next to
// the retained copy.
type ActiveDocument struct {
	Filename   string    `json:"filename"`
	DocumentID string    `json:"document_id"`
	Pages      int       `json:"pages"`
	Path       string    `json:"path"`
	IndexedAt  time.Time `json:"indexed_at"`
}

type Status struct {
	Ready      bool            `json:"ready"`
	Collection string          `json:"collection"`
	Chunks     int             `json:"chunks"`
	Document   *ActiveDocument `json:"document"`
	Sessions   int             `json:"sessions"`
}

type Options struct {
	Runner Runner
	Logger *slog.Logger
}

// App is the application context shared by all requests.
type App struct {
	cfg       config.Config
	store     vector.Client
	providers *providers.Manager
	sessions  *session.Store
	runner    Runner
	log       *slog.Logger

	// indexMu serializes index operations; mu guards the pointers below.
	indexMu sync.Mutex

	mu         sync.RWMutex
	collection vector.Collection
	agent      *agent.Agent
	document   *ActiveDocument
}

func New(cfg config.Config, store vector.Client, pm *providers.Manager, sessions *session.Store, opts Options) *App {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	runner := opts.Runner
	if runner == nil {
		runner = NewLocalRunner(activities.New(cfg, store, pm, log))
	}
	return &App{
		cfg:       cfg,
		store:     store,
		providers: pm,
		sessions:  sessions,
		runner:    runner,
		log:       log,
	}
}

// IndexDocument indexes an uploaded PDF in replace or add mode and rebuilds
// the agent against the refreshed collection.
func (a *App) IndexDocument(ctx context.Context, filename string, body io.Reader, mode string) (IndexResult, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode != activities.ModeReplace && mode != activities.ModeAdd {
		return IndexResult{}, ErrInvalidMode
	}
	name := util.SafeName(filename)
	if name == "" {
		name = "document.pdf"
	}

	a.indexMu.Lock()
	defer a.indexMu.Unlock()

	tmpPath := filepath.Join(a.cfg.IndexDir, uploadDir, uuid.NewString()+".pdf")
	if err := util.WriteFileAtomic(tmpPath, body); err != nil {
		return IndexResult{}, &IndexError{Stage: "upload", Err: err}
	}
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			a.log.Warn("remove upload", "path", tmpPath, "error", err)
		}
	}()
	a.log.Info("indexing document", "filename", name, "mode", mode, "path", tmpPath)

	out, err := a.runner.Index(ctx, workflows.IndexDocumentInput{
		Path:         tmpPath,
		Filename:     name,
		Mode:         mode,
		Collection:   a.cfg.CollectionName,
		ChunkSize:    a.cfg.ChunkSize,
		ChunkOverlap: a.cfg.ChunkOverlap,
	})
	if err != nil {
		var ie *IndexError
		if !errors.As(err, &ie) {
			ie = &IndexError{Stage: "index", Err: err}
		}
		a.log.Error("indexing failed", "filename", name, "mode", mode, "stage", ie.Stage, "error", ie.Err)
		return IndexResult{}, ie
	}

	coll, err := a.collectionFor(ctx, mode)
	if err != nil {
		return IndexResult{}, &IndexError{Stage: "rebuild", Err: err}
	}
	doc, err := a.retain(tmpPath, out)
	if err != nil {
		return IndexResult{}, &IndexError{Stage: "retain", Err: err}
	}
	ag := a.buildAgent(coll, doc.Path)

	a.mu.Lock()
	a.collection = coll
	a.agent = ag
	a.document = doc
	a.mu.Unlock()

	a.log.Info("document indexed", "filename", name, "mode", mode, "chunks", out.Chunks, "total", out.Total, "pages", out.Pages)
	return IndexResult{
		Message:    fmt.Sprintf("PDF '%s' indexed successfully in '%s' mode.", name, mode),
		Filename:   name,
		Mode:       mode,
		DocumentID: out.DocumentID,
		Pages:      out.Pages,
		Chunks:     out.Chunks,
		Total:      out.Total,
	}, nil
}

// collectionFor returns the handle the new agent queries. Add mode reuses the
// held handle; otherwise the persisted collection is opened.
func (a *App) collectionFor(ctx context.Context, mode string) (vector.Collection, error) {
	if mode == activities.ModeAdd {
		a.mu.RLock()
		held := a.collection
		a.mu.RUnlock()
		if held != nil {
			return held, nil
		}
	}
	return a.store.GetOrCreateCollection(ctx, a.cfg.CollectionName)
}

// retain copies the upload into the index directory so inspection tools can
// reopen it after the temporary file is gone.
func (a *App) retain(tmpPath string, out workflows.IndexDocumentOutput) (*ActiveDocument, error) {
	path := filepath.Join(a.cfg.IndexDir, documentFile)
	if err := util.CopyFileAtomic(tmpPath, path); err != nil {
		return nil, err
	}
	doc := &ActiveDocument{
		Filename:   out.Filename,
		DocumentID: out.DocumentID,
		Pages:      out.Pages,
		Path:       path,
		IndexedAt:  time.Now().UTC(),
	}
	if err := util.WriteJSONAtomic(filepath.Join(a.cfg.IndexDir, sidecarFile), doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (a *App) buildAgent(coll vector.Collection, documentPath string) *agent.Agent {
	chat, _ := a.providers.Chat()
	embedder, _ := a.providers.Embedder()
	toolset := tools.Set(coll, embedder, a.cfg.RetrieverTopK, a.cfg.EmbedDim, documentPath)
	return agent.New(chat, toolset, a.sessions, agent.Options{
		Temperature:   a.cfg.LLMTemperature,
		MaxIterations: a.cfg.AgentMaxIter,
		Logger:        a.log,
	})
}

// Answer runs one conversational turn. Before the first successful index it
// returns NotReadyAnswer without touching any collaborator.
func (a *App) Answer(ctx context.Context, question, sessionID string) (string, error) {
	a.mu.RLock()
	ag := a.agent
	a.mu.RUnlock()
	if ag == nil {
		return NotReadyAnswer, nil
	}
	a.log.Info("answering question", "session_id", sessionID, "question", util.Preview(question, 80))
	return ag.Answer(ctx, question, sessionID)
}

func (a *App) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.agent != nil
}

func (a *App) Status(ctx context.Context) Status {
	a.mu.RLock()
	coll := a.collection
	st := Status{
		Ready:      a.agent != nil,
		Collection: a.cfg.CollectionName,
		Sessions:   a.sessions.Len(),
	}
	if a.document != nil {
		d := *a.document
		st.Document = &d
	}
	a.mu.RUnlock()

	if coll != nil {
		n, err := coll.Count(ctx)
		if err != nil {
			a.log.Warn("count chunks", "collection", coll.Name(), "error", err)
		}
		st.Chunks = n
	}
	return st
}

func (a *App) Close() error {
	return a.store.Close()
}
