package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdfagent/internal/api"
	"pdfagent/internal/config"
	"pdfagent/internal/logging"
	"pdfagent/internal/providers"
	"pdfagent/internal/service"
	"pdfagent/internal/session"
	"pdfagent/internal/vector"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, logger); err != nil {
		logger.Error("pdfagent api stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := vector.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s vector store: %w", cfg.VectorBackend, err)
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("build providers: %w", err)
	}

	opts := service.Options{Logger: logger}
	if cfg.IndexRunner == "temporal" {
		tc, err := tclient.Dial(tclient.Options{
			HostPort: cfg.TemporalAddress,
			Logger:   tlog.NewStructuredLogger(logger),
		})
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("dial temporal at %s: %w", cfg.TemporalAddress, err)
		}
		defer tc.Close()
		opts.Runner = service.NewTemporalRunner(tc, cfg.TemporalTaskQueue)
	}

	sessions := session.NewStore(cfg.SessionMax, time.Duration(cfg.SessionTTLMinutes)*time.Minute)
	app := service.New(cfg, store, pm, sessions, opts)
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewServer(cfg, app, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("pdfagent api listening",
		"addr", cfg.APIAddr,
		"llm_providers", cfg.LLMProviders,
		"embed_providers", cfg.EmbedProviders,
		"vector_backend", cfg.VectorBackend,
		"index_runner", cfg.IndexRunner)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
