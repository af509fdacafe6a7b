package gmail

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaenox/jobmail/internal/models"
	"github.com/xaenox/jobmail/pkg/config"
	"go.uber.org/zap"
	gm "google.golang.org/api/gmail/v1"
)

const user = "me"

// Fetcher pages through the Gmail search results and loads single messages.
type Fetcher struct {
	srv        *gm.Service
	batchSize  int64
	exclusions []string
	logger     *zap.Logger
}

func NewFetcher(srv *gm.Service, cfg config.GmailConfig, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		srv:        srv,
		batchSize:  int64(cfg.BatchSize),
		exclusions: cfg.Exclusions,
		logger:     logger,
	}
}

// BuildQuery appends the exclusion terms to a base search query.
func BuildQuery(base string, exclusions []string) string {
	terms := make([]string, 0, len(exclusions)+1)
	if base = strings.TrimSpace(base); base != "" {
		terms = append(terms, base)
	}
	for _, e := range exclusions {
		if e = strings.TrimSpace(e); e != "" {
			terms = append(terms, e)
		}
	}
	return strings.Join(terms, " ")
}

// Estimate asks Gmail how many messages match the query. The number is
// approximate and only used for progress reporting.
func (f *Fetcher) Estimate(ctx context.Context, query string) (int, error) {
	resp, err := f.srv.Users.Messages.List(user).
		Q(BuildQuery(query, f.exclusions)).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("failed to estimate messages: %w", err)
	}
	return int(resp.ResultSizeEstimate), nil
}

// FetchPage returns the message IDs of one result page.
func (f *Fetcher) FetchPage(ctx context.Context, query, pageToken string) (models.BatchPage, error) {
	call := f.srv.Users.Messages.List(user).
		Q(BuildQuery(query, f.exclusions)).
		MaxResults(f.batchSize)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return models.BatchPage{}, fmt.Errorf("failed to list messages: %w", err)
	}

	page := models.BatchPage{
		MessageIDs:    make([]string, 0, len(resp.Messages)),
		NextPageToken: resp.NextPageToken,
	}
	for _, m := range resp.Messages {
		if m != nil && m.Id != "" {
			page.MessageIDs = append(page.MessageIDs, m.Id)
		}
	}

	f.logger.Debug("Fetched message page",
		zap.Int("messages", len(page.MessageIDs)),
		zap.Bool("last", page.Last()))
	return page, nil
}

// Content loads a full message and extracts what the classifier needs.
func (f *Fetcher) Content(ctx context.Context, messageID string) (models.MessageContent, error) {
	msg, err := f.srv.Users.Messages.Get(user, messageID).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return models.MessageContent{}, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	return Extract(msg), nil
}
