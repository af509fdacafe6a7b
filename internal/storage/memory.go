package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/xaenox/jobmail/internal/models"
	"go.uber.org/zap"
)

var errEmptyMessageID = errors.New("empty message id")

// MemoryStorage keeps results in a map. Useful for dry runs and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	results map[string]models.ClassificationResult
	logger  *zap.Logger
}

func NewMemoryStorage(logger *zap.Logger) *MemoryStorage {
	return &MemoryStorage{
		results: make(map[string]models.ClassificationResult),
		logger:  logger,
	}
}

func (s *MemoryStorage) StoreResults(ctx context.Context, results []models.ClassificationResult) (int, error) {
	rows := jobRelated(results)
	if len(rows) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, r := range rows {
		if r.MessageID == "" {
			s.logger.Warn("Failed to store result", zap.Error(errEmptyMessageID))
			continue
		}
		if _, exists := s.results[r.MessageID]; exists {
			continue
		}
		s.results[r.MessageID] = r
		inserted++
	}
	return inserted, nil
}

func (s *MemoryStorage) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results), nil
}

// Get returns a stored result by message id.
func (s *MemoryStorage) Get(messageID string) (models.ClassificationResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[messageID]
	return r, ok
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
