package pipeline

import (
	"context"

	"github.com/xaenox/jobmail/internal/models"
)

// PageSource lists one page of message ids for a query.
type PageSource interface {
	FetchPage(ctx context.Context, query, pageToken string) (models.BatchPage, error)
}

// Pager walks the result pages of one query with a continuation token
// cursor. It never decides when to stop; the pipeline does.
type Pager struct {
	src   PageSource
	query string
	start string
	next  string
}

// NewPager starts at startToken, or at the first page when it is empty.
func NewPager(src PageSource, query, startToken string) *Pager {
	return &Pager{src: src, query: query, start: startToken, next: startToken}
}

// Next fetches the page at the cursor and advances it.
func (p *Pager) Next(ctx context.Context) (models.BatchPage, error) {
	page, err := p.src.FetchPage(ctx, p.query, p.next)
	if err != nil {
		return models.BatchPage{}, err
	}
	p.next = page.NextPageToken
	return page, nil
}

// Token is the page token the next call to Next will request.
func (p *Pager) Token() string { return p.next }

// Reset rewinds to the starting token.
func (p *Pager) Reset() { p.next = p.start }
