package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"pdfagent/internal/activities"
	"pdfagent/internal/config"
	"pdfagent/internal/logging"
	"pdfagent/internal/providers"
	"pdfagent/internal/vector"
	"pdfagent/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
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
		logger.Error("pdfagent worker stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	c, err := client.Dial(client.Options{
		HostPort: cfg.TemporalAddress,
		Logger:   tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("dial temporal at %s: %w", cfg.TemporalAddress, err)
	}
	defer c.Close()

	store, err := vector.Open(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("open %s vector store: %w", cfg.VectorBackend, err)
	}
	defer store.Close()
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, activities.New(cfg, store, pm, logger))

	logger.Info("pdfagent worker listening",
		"address", cfg.TemporalAddress,
		"queue", cfg.TemporalTaskQueue,
		"embed_providers", cfg.EmbedProviders,
		"vector_backend", cfg.VectorBackend)
	return w.Run(worker.InterruptCh())
}
