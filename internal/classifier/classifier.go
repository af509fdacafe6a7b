package classifier

import (
	"context"
	"regexp"
	"strings"

	"github.com/xaenox/jobmail/internal/models"
)

// FallbackSnippet marks results produced without the model.
const FallbackSnippet = "Fallback classification"

// Classifier turns extracted email content into a classification result.
// Implementations always return a usable result.
type Classifier interface {
	Classify(ctx context.Context, messageID string, content models.MessageContent) models.ClassificationResult
}

var automatedSender = regexp.MustCompile(`no-?reply|do-?not-?reply`)

// KeywordClassifier is the deterministic classifier used when the model
// cannot be reached or answers with something unusable.
type KeywordClassifier struct {
	rejectionKeywords []string
}

func NewKeywordClassifier(rejectionKeywords []string) *KeywordClassifier {
	keywords := make([]string, 0, len(rejectionKeywords))
	for _, k := range rejectionKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	return &KeywordClassifier{rejectionKeywords: keywords}
}

// Classify marks every message as job-related, since the search query is
// already scoped to job mail, and only tells rejections apart from the rest.
func (c *KeywordClassifier) Classify(_ context.Context, messageID string, content models.MessageContent) models.ClassificationResult {
	snippet := FallbackSnippet
	return models.ClassificationResult{
		MessageID:    messageID,
		IsJobRelated: true,
		IsAutomated:  IsAutomatedSender(content.From),
		Snippet:      &snippet,
		Category:     c.category(content.Body),
		ReceivedOn:   content.ReceivedOn,
		Fallback:     true,
	}
}

func (c *KeywordClassifier) category(body string) models.Category {
	text := strings.ToLower(body)
	for _, keyword := range c.rejectionKeywords {
		if strings.Contains(text, keyword) {
			return models.CategoryRejection
		}
	}
	return models.CategoryOther
}

// IsAutomatedSender reports whether the From header looks like a
// no-reply style mailbox.
func IsAutomatedSender(from string) bool {
	return automatedSender.MatchString(strings.ToLower(from))
}
