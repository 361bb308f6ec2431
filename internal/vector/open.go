package vector

import (
	"context"
	"fmt"
	"time"

	"pdfagent/internal/config"
	"pdfagent/internal/storage"
)

// Open returns the client for the configured backend.
func Open(ctx context.Context, cfg config.Config) (Client, error) {
	switch cfg.VectorBackend {
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.IndexDir)
	case "memory":
		return NewMemoryClient(), nil
	case "pgvector":
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		db, err := storage.NewDB(dialCtx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		c, err := NewPGClient(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}
