package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/jobmail/internal/classifier"
	"github.com/xaenox/jobmail/internal/metrics"
	"github.com/xaenox/jobmail/internal/models"
	"github.com/xaenox/jobmail/internal/storage"
	"github.com/xaenox/jobmail/pkg/config"
	"go.uber.org/zap"
)

// Source is the mailbox side of the pipeline.
type Source interface {
	PageSource
	Estimate(ctx context.Context, query string) (int, error)
	Content(ctx context.Context, messageID string) (models.MessageContent, error)
}

// Pipeline drives fetch, classify and store over every result page,
// strictly one page and one message at a time.
type Pipeline struct {
	source     Source
	classifier classifier.Classifier
	store      storage.Storage
	metrics    *metrics.Metrics
	delay      time.Duration
	startToken string
	logger     *zap.Logger
}

func New(source Source, c classifier.Classifier, store storage.Storage, m *metrics.Metrics, cfg config.GmailConfig, logger *zap.Logger) *Pipeline {
	if m == nil {
		m = metrics.New()
	}
	return &Pipeline{
		source:     source,
		classifier: c,
		store:      store,
		metrics:    m,
		delay:      cfg.RateLimitDelay,
		startToken: cfg.PageToken,
		logger:     logger,
	}
}

// Run processes every message matching query. The returned error is fatal
// (source unreachable, storage unusable, context done); the summary is
// filled in as far as the run got.
func (p *Pipeline) Run(ctx context.Context, query string) (models.RunSummary, error) {
	summary := models.RunSummary{RunID: uuid.NewString()}
	logger := p.logger.With(zap.String("run_id", summary.RunID))

	estimate, err := p.source.Estimate(ctx, query)
	if err != nil {
		return summary, fmt.Errorf("estimate: %w", err)
	}
	summary.Estimate = estimate
	logger.Info("Starting run",
		zap.String("query", query),
		zap.Int("estimate", estimate),
		zap.String("page_token", p.startToken))

	if estimate == 0 {
		logger.Info("No matching messages")
		return summary, nil
	}

	pager := NewPager(p.source, query, p.startToken)
	for {
		// The resume token only moves past a page once that page is stored.
		summary.LastPageToken = pager.Token()

		page, err := pager.Next(ctx)
		if err != nil {
			return summary, fmt.Errorf("fetch page: %w", err)
		}

		if len(page.MessageIDs) > 0 {
			if err := p.processPage(ctx, page, &summary, logger); err != nil {
				return summary, err
			}
		}
		summary.LastPageToken = pager.Token()

		if finished(page, summary.ProcessedCount, estimate) {
			break
		}
		if err := p.wait(ctx); err != nil {
			return summary, err
		}
	}

	logger.Info("Run finished",
		zap.Int("processed", summary.ProcessedCount),
		zap.Int("inserted", summary.InsertedCount),
		zap.Int("fallback", summary.FallbackCount),
		zap.Int("skipped", summary.SkippedCount),
		zap.Int("batches", summary.Batches))
	return summary, nil
}

// finished holds every stop condition: an empty page, no continuation
// token, or at least the estimated number of messages seen.
func finished(page models.BatchPage, processed, estimate int) bool {
	return len(page.MessageIDs) == 0 || page.Last() || processed >= estimate
}

func (p *Pipeline) processPage(ctx context.Context, page models.BatchPage, summary *models.RunSummary, logger *zap.Logger) error {
	start := time.Now()

	results, err := p.processBatch(ctx, page.MessageIDs, logger)
	if err != nil {
		return err
	}

	inserted, err := p.store.StoreResults(ctx, results)
	if err != nil {
		return fmt.Errorf("store results: %w", err)
	}

	summary.Batches++
	summary.ProcessedCount += len(page.MessageIDs)
	summary.InsertedCount += inserted
	summary.SkippedCount += len(page.MessageIDs) - len(results)
	for _, r := range results {
		if r.Fallback {
			summary.FallbackCount++
		}
	}
	p.metrics.RecordBatch(time.Since(start), inserted)

	logger.Info("Batch stored",
		zap.Int("batch", summary.Batches),
		zap.Int("batch_size", len(page.MessageIDs)),
		zap.Int("new_rows", inserted),
		zap.Int("processed", summary.ProcessedCount),
		zap.Int("estimate", summary.Estimate),
		zap.Int("total_inserted", summary.InsertedCount))
	return nil
}

// processBatch classifies the page's messages in order. A message whose
// content cannot be loaded is logged and left out.
func (p *Pipeline) processBatch(ctx context.Context, ids []string, logger *zap.Logger) ([]models.ClassificationResult, error) {
	results := make([]models.ClassificationResult, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.metrics.MessagesProcessed.Inc()

		content, err := p.source.Content(ctx, id)
		if err != nil {
			logger.Warn("Skipping message",
				zap.String("message_id", id),
				zap.Error(err))
			p.metrics.MessagesSkipped.Inc()
			continue
		}

		result := p.classifier.Classify(ctx, id, content)
		p.metrics.RecordClassification(result.Fallback)
		results = append(results, result)
	}
	return results, nil
}

func (p *Pipeline) wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
