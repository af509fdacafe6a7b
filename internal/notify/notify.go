package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaenox/jobmail/internal/models"
	"github.com/xaenox/jobmail/pkg/config"
	"go.uber.org/zap"
)

// Notifier reports the outcome of a run somewhere a person will see it.
type Notifier interface {
	Notify(ctx context.Context, summary models.RunSummary) error
}

// NopNotifier is used when no channel is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, models.RunSummary) error { return nil }

// New picks the notifier for cfg.
func New(cfg config.NotifyConfig, logger *zap.Logger) (Notifier, error) {
	if cfg.Telegram.Token == "" {
		return NopNotifier{}, nil
	}
	return NewTelegramNotifier(cfg.Telegram, logger)
}

// FormatSummary renders a run summary as plain text.
func FormatSummary(s models.RunSummary) string {
	var b strings.Builder
	b.WriteString("Job mail run finished\n")
	fmt.Fprintf(&b, "Run: %s\n", s.RunID)
	if s.Estimate == 0 {
		b.WriteString("No matching messages.")
		return b.String()
	}
	fmt.Fprintf(&b, "Processed: %d of ~%d\n", s.ProcessedCount, s.Estimate)
	fmt.Fprintf(&b, "New results: %d\n", s.InsertedCount)
	fmt.Fprintf(&b, "Fallback classifications: %d\n", s.FallbackCount)
	if s.SkippedCount > 0 {
		fmt.Fprintf(&b, "Skipped: %d\n", s.SkippedCount)
	}
	fmt.Fprintf(&b, "Batches: %d", s.Batches)
	if s.LastPageToken != "" {
		fmt.Fprintf(&b, "\nResume with --page-token %s", s.LastPageToken)
	}
	return b.String()
}
