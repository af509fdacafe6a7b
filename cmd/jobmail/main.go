package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xaenox/jobmail/internal/classifier"
	"github.com/xaenox/jobmail/internal/gmail"
	"github.com/xaenox/jobmail/internal/metrics"
	"github.com/xaenox/jobmail/internal/notify"
	"github.com/xaenox/jobmail/internal/pipeline"
	"github.com/xaenox/jobmail/internal/storage"
	"github.com/xaenox/jobmail/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func run(args []string) error {
	// Bootstrap logger until the configured one exists.
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	flags := config.Flags()
	if err := flags.Parse(args); err != nil {
		logger.Error("Invalid arguments", zap.Error(err))
		return err
	}
	path, _ := flags.GetString("config")

	cfg, err := config.LoadConfig(path, flags)
	if err != nil {
		logger.Error("Failed to load config", zap.Error(err), zap.String("path", path))
		return err
	}

	configured, err := newLogger(cfg.Log)
	if err != nil {
		logger.Error("Failed to build logger", zap.Error(err), zap.String("level", cfg.Log.Level))
		return err
	}
	logger = configured

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, err := storage.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", zap.Error(err), zap.String("driver", cfg.Database.Driver))
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("Failed to close storage", zap.Error(cerr))
		}
	}()

	srv, err := gmail.NewService(ctx, cfg.Gmail)
	if err != nil {
		logger.Error("Failed to create Gmail client", zap.Error(err))
		return err
	}
	fetcher := gmail.NewFetcher(srv, cfg.Gmail, logger)

	chat, err := classifier.NewChatClient(cfg.LLM)
	if err != nil {
		logger.Error("Failed to create model client", zap.Error(err))
		return err
	}
	clf := classifier.NewLLMClassifier(chat, cfg.LLM, cfg.Analysis, logger)

	notifier, err := notify.New(cfg.Notify, logger)
	if err != nil {
		logger.Error("Failed to create notifier", zap.Error(err))
		return err
	}

	m := metrics.New()
	p := pipeline.New(fetcher, clf, store, m, cfg.Gmail, logger)

	summary, err := p.Run(ctx, cfg.Gmail.SearchQuery)
	pushMetrics(m, cfg.Metrics, logger)
	if err != nil {
		fields := []zap.Field{zap.Error(err), zap.String("run_id", summary.RunID)}
		if summary.LastPageToken != "" {
			fields = append(fields, zap.String("resume_page_token", summary.LastPageToken))
		}
		if errors.Is(err, context.Canceled) {
			logger.Warn("Run interrupted", fields...)
		} else {
			logger.Error("Run failed", fields...)
		}
		return err
	}

	logger.Info("Processing complete",
		zap.String("run_id", summary.RunID),
		zap.Int("processed", summary.ProcessedCount),
		zap.Int("inserted", summary.InsertedCount))

	if err := notifier.Notify(ctx, summary); err != nil {
		logger.Warn("Failed to send notification", zap.Error(err))
	}
	return nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// pushMetrics runs with its own deadline so an interrupted run still
// reports what it did.
func pushMetrics(m *metrics.Metrics, cfg config.MetricsConfig, logger *zap.Logger) {
	if cfg.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Push(ctx, cfg.PushgatewayURL, cfg.Job); err != nil {
		logger.Warn("Failed to push metrics", zap.Error(err))
	}
}
