package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xaenox/jobmail/internal/models"
	"go.uber.org/zap"
)

const insertColumns = `gmail_id, is_related_to_job, is_automated, snippet, category,
	source_platform, job_title, company, location, is_international, mail_received_on`

// sqlStore holds the parts shared by the database/sql backends. Only the
// insert statement differs, because of placeholder syntax.
type sqlStore struct {
	db        *sql.DB
	insertSQL string
	logger    *zap.Logger
}

func (s *sqlStore) initSchema(ctx context.Context, name string) error {
	schema, err := readSchema(name)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}
	return nil
}

func (s *sqlStore) StoreResults(ctx context.Context, results []models.ClassificationResult) (int, error) {
	rows := jobRelated(results)
	if len(rows) == 0 {
		return 0, nil
	}

	stmt, err := s.db.PrepareContext(ctx, s.insertSQL)
	if err != nil {
		return 0, fmt.Errorf("error preparing insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}

		res, err := stmt.ExecContext(ctx,
			r.MessageID,
			r.IsJobRelated,
			r.IsAutomated,
			r.Snippet,
			string(r.Category),
			r.SourcePlatform,
			r.JobTitle,
			r.Company,
			r.Location,
			r.IsInternational,
			r.ReceivedDate(),
		)
		if err != nil {
			s.logger.Warn("Failed to store result",
				zap.String("message_id", r.MessageID),
				zap.Error(err))
			continue
		}

		n, err := res.RowsAffected()
		if err != nil {
			s.logger.Warn("Failed to read rows affected",
				zap.String("message_id", r.MessageID),
				zap.Error(err))
			continue
		}
		if n > 0 {
			inserted++
		}
	}
	return inserted, nil
}

func (s *sqlStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_emails`).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting results: %w", err)
	}
	return n, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
