package storage

import (
	"context"
	"embed"
	"fmt"

	"github.com/xaenox/jobmail/internal/models"
	"github.com/xaenox/jobmail/pkg/config"
	"go.uber.org/zap"
)

//go:embed schema/*.sql
var schemas embed.FS

// Storage persists classification results. Inserts are idempotent per
// message id, so re-running over the same mailbox never duplicates rows.
type Storage interface {
	// StoreResults saves the job-related results and returns how many rows
	// were newly inserted. Individual row failures are logged and skipped;
	// the error is reserved for failures of the whole call.
	StoreResults(ctx context.Context, results []models.ClassificationResult) (int, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Open connects the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Storage, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return NewSQLiteStorage(ctx, cfg.Path, logger)
	case config.DriverPostgres:
		return NewPostgresStorage(ctx, cfg, logger)
	case config.DriverMemory:
		return NewMemoryStorage(logger), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func jobRelated(results []models.ClassificationResult) []models.ClassificationResult {
	out := make([]models.ClassificationResult, 0, len(results))
	for _, r := range results {
		if r.IsJobRelated {
			out = append(out, r)
		}
	}
	return out
}

func readSchema(name string) (string, error) {
	b, err := schemas.ReadFile("schema/" + name)
	if err != nil {
		return "", fmt.Errorf("error reading schema %s: %w", name, err)
	}
	return string(b), nil
}
