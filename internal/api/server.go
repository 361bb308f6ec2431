package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"pdfagent/internal/agent"
	"pdfagent/internal/config"
	"pdfagent/internal/providers"
	"pdfagent/internal/service"

	"github.com/google/uuid"
)

// Service is the application surface the HTTP handlers drive.
type Service interface {
	IndexDocument(ctx context.Context, filename string, body io.Reader, mode string) (service.IndexResult, error)
	Answer(ctx context.Context, question, sessionID string) (string, error)
	Status(ctx context.Context) service.Status
}

type Server struct {
	cfg config.Config
	svc Service
	log *slog.Logger
}

func NewServer(cfg config.Config, svc Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{cfg: cfg, svc: svc, log: log}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/index_pdf", s.handleIndexPDF)
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("/status", s.handleStatus)
	return withCORS(s.withRequestLog(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleIndexPDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	limit := int64(s.cfg.MaxUploadMB) << 20
	if limit <= 0 {
		limit = 128 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d MB", limit>>20))
			return
		}
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	fh := uploadedFile(r.MultipartForm)
	if fh == nil {
		writeErr(w, http.StatusBadRequest, errNoFile)
		return
	}
	mode := strings.TrimSpace(r.FormValue("mode"))
	if mode != "replace" && mode != "add" {
		writeErr(w, http.StatusBadRequest, service.ErrInvalidMode)
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()

	res, err := s.svc.IndexDocument(r.Context(), fh.Filename, f, mode)
	if err != nil {
		if errors.Is(err, service.ErrInvalidMode) {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, &detailError{
			detail: "Failed to index PDF: " + err.Error(),
			code:   indexCode(err),
			err:    err,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": res.Message,
		"chunks":  res.Chunks,
		"pages":   res.Pages,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	var req struct {
		Question  string `json:"question"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.SessionID) == "" {
		writeErr(w, http.StatusBadRequest, errQueryFields)
		return
	}

	answer, err := s.svc.Answer(r.Context(), req.Question, req.SessionID)
	if err != nil {
		s.log.Error("agent execution failed", "session_id", req.SessionID, "error", err)
		writeErr(w, http.StatusInternalServerError, &detailError{
			detail: "An error occurred during agent execution: " + err.Error(),
			code:   agentCode(err),
			err:    err,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"answer": answer})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Status(r.Context()))
}

// uploadedFile prefers the pdf_file field, then file, then any single file.
func uploadedFile(form *multipart.Form) *multipart.FileHeader {
	for _, key := range []string{"pdf_file", "file"} {
		if files := form.File[key]; len(files) > 0 {
			return files[0]
		}
	}
	for _, files := range form.File {
		if len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

func indexCode(err error) string {
	var ie *service.IndexError
	if errors.As(err, &ie) && ie.Stage == "embed" {
		if code := providerCode(err); code != "" {
			return code
		}
	}
	return "PA-INDEX-5001"
}

func agentCode(err error) string {
	if errors.Is(err, agent.ErrIterationLimit) {
		return "PA-AGENT-5002"
	}
	if code := providerCode(err); code != "" {
		return code
	}
	return "PA-AGENT-5001"
}

func providerCode(err error) string {
	switch providers.ClassifyError(err) {
	case providers.ErrorQuota:
		return "PA-PROVIDER-QUOTA"
	case providers.ErrorRate:
		return "PA-PROVIDER-RATE"
	case providers.ErrorAuth:
		return "PA-PROVIDER-AUTH"
	case providers.ErrorContext:
		return "PA-PROVIDER-CONTEXT"
	case providers.ErrorTransient:
		return "PA-PROVIDER-UNAVAILABLE"
	default:
		return ""
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestLog tags each request with an X-Request-ID and logs its outcome.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.log.Info("http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
