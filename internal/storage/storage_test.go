package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/jobmail/internal/models"
	"github.com/xaenox/jobmail/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func strPtr(s string) *string { return &s }

func result(id string, jobRelated bool) models.ClassificationResult {
	return models.ClassificationResult{
		MessageID:      id,
		IsJobRelated:   jobRelated,
		Category:       models.CategoryApplication,
		Snippet:        strPtr("Application received"),
		Company:        strPtr("Acme"),
		SourcePlatform: strPtr("LinkedIn"),
		ReceivedOn:     time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC),
	}
}

type backend struct {
	name string
	open func(t *testing.T, logger *zap.Logger) Storage
}

var backends = []backend{
	{"memory", func(t *testing.T, logger *zap.Logger) Storage {
		return NewMemoryStorage(logger)
	}},
	{"sqlite", func(t *testing.T, logger *zap.Logger) Storage {
		s, err := NewSQLiteStorage(context.Background(), filepath.Join(t.TempDir(), "jobs.db"), logger)
		require.NoError(t, err)
		return s
	}},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, open func(*zap.Logger) Storage)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, func(logger *zap.Logger) Storage {
				s := b.open(t, logger)
				t.Cleanup(func() { assert.NoError(t, s.Close()) })
				return s
			})
		})
	}
}

func TestStoreResultsIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(*zap.Logger) Storage) {
		ctx := context.Background()
		s := open(zaptest.NewLogger(t))
		batch := []models.ClassificationResult{result("a", true), result("b", true)}

		n, err := s.StoreResults(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.StoreResults(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		n, err = s.StoreResults(ctx, []models.ClassificationResult{result("b", true), result("c", true)})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})
}

func TestStoreResultsFiltersNonJob(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(*zap.Logger) Storage) {
		ctx := context.Background()
		s := open(zaptest.NewLogger(t))

		n, err := s.StoreResults(ctx, []models.ClassificationResult{
			result("job", true), result("newsletter", false), result("spam", false),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestStoreResultsEmpty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(*zap.Logger) Storage) {
		s := open(zaptest.NewLogger(t))

		n, err := s.StoreResults(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		n, err = s.StoreResults(context.Background(), []models.ClassificationResult{result("x", false)})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestStoreResultsSkipsBadRows(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(*zap.Logger) Storage) {
		core, logs := observer.New(zap.WarnLevel)
		s := open(zap.New(core))

		n, err := s.StoreResults(context.Background(), []models.ClassificationResult{
			result("first", true), result("", true), result("last", true),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 1, logs.FilterMessage("Failed to store result").Len())
	})
}

func TestSQLiteStoresColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	s, err := NewSQLiteStorage(context.Background(), path, zaptest.NewLogger(t))
	require.NoError(t, err)

	r := result("m-1", true)
	r.IsAutomated = true
	r.Category = models.CategoryRejection
	r.JobTitle = nil
	_, err = s.StoreResults(context.Background(), []models.ClassificationResult{r})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var (
		category   string
		automated  bool
		jobTitle   sql.NullString
		company    sql.NullString
		receivedOn sql.NullString
		analyzedAt sql.NullString
	)
	err = db.QueryRow(`SELECT category, is_automated, job_title, company,
		CAST(mail_received_on AS TEXT), CAST(analyzed_at AS TEXT)
		FROM job_emails WHERE gmail_id = ?`, "m-1").
		Scan(&category, &automated, &jobTitle, &company, &receivedOn, &analyzedAt)
	require.NoError(t, err)

	assert.Equal(t, "rejection", category)
	assert.True(t, automated)
	assert.False(t, jobTitle.Valid)
	assert.Equal(t, "Acme", company.String)
	assert.Equal(t, "2025-01-15", receivedOn.String)
	assert.True(t, analyzedAt.Valid)
}

func TestSQLiteStoresMissingDateAsNull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	s, err := NewSQLiteStorage(context.Background(), path, zaptest.NewLogger(t))
	require.NoError(t, err)

	r := result("undated", true)
	r.ReceivedOn = time.Time{}
	n, err := s.StoreResults(context.Background(), []models.ClassificationResult{r})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var receivedOn sql.NullString
	require.NoError(t, s.db.QueryRow(`SELECT CAST(mail_received_on AS TEXT) FROM job_emails WHERE gmail_id = ?`, "undated").Scan(&receivedOn))
	assert.False(t, receivedOn.Valid)
	require.NoError(t, s.Close())
}

func TestSQLiteReopenKeepsRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "jobs.db")

	s, err := NewSQLiteStorage(ctx, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = s.StoreResults(ctx, []models.ClassificationResult{result("a", true)})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLiteStorage(ctx, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	n, err := s.StoreResults(ctx, []models.ClassificationResult{result("a", true)})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStoreResultsCanceledContext(t *testing.T) {
	s, err := NewSQLiteStorage(context.Background(), filepath.Join(t.TempDir(), "jobs.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.StoreResults(ctx, []models.ClassificationResult{result("a", true)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen(t *testing.T) {
	logger := zaptest.NewLogger(t)

	s, err := Open(context.Background(), config.DatabaseConfig{Driver: config.DriverMemory}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = Open(context.Background(), config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "jobs.db"),
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStorage{}, s)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), config.DatabaseConfig{Driver: "mongo"}, logger)
	assert.Error(t, err)
}
