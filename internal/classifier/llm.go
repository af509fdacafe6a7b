package classifier

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xaenox/jobmail/internal/models"
	"github.com/xaenox/jobmail/pkg/config"
	"go.uber.org/zap"
)

// ChatMessage is one turn of a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ChatClient sends a chat conversation to a language model and returns the
// assistant's reply text.
type ChatClient interface {
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
}

// ChatFunc adapts a function to ChatClient.
type ChatFunc func(ctx context.Context, messages []ChatMessage) (string, error)

func (f ChatFunc) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	return f(ctx, messages)
}

// LLMClassifier asks a language model for a classification and falls back
// to the keyword heuristic on any failure.
type LLMClassifier struct {
	client           ChatClient
	fallback         *KeywordClassifier
	breaker          *gobreaker.CircuitBreaker
	timeout          time.Duration
	maxBodyLength    int
	snippetMaxLength int
	systemPrompt     string
	logger           *zap.Logger
}

func NewLLMClassifier(client ChatClient, llm config.LLMConfig, analysis config.AnalysisConfig, logger *zap.Logger) *LLMClassifier {
	c := &LLMClassifier{
		client:           client,
		fallback:         NewKeywordClassifier(llm.RejectionKeywords),
		timeout:          llm.Timeout,
		maxBodyLength:    llm.MaxBodyLength,
		snippetMaxLength: analysis.SnippetMaxLength,
		systemPrompt:     systemPrompt(llm.HomeRegion),
		logger:           logger,
	}

	if llm.Breaker.FailureThreshold > 0 {
		threshold := uint32(llm.Breaker.FailureThreshold)
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "llm",
			Timeout: llm.Breaker.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				// The caller going away says nothing about the model's health.
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Classifier circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}
	return c
}

func (c *LLMClassifier) Classify(ctx context.Context, messageID string, content models.MessageContent) models.ClassificationResult {
	verdict, err := c.analyze(ctx, content)
	if err != nil {
		c.logger.Warn("Model classification failed, using keyword fallback",
			zap.String("message_id", messageID),
			zap.Error(err))
		return c.fallback.Classify(ctx, messageID, content)
	}
	return verdict.Result(messageID, content.ReceivedOn)
}

// analyze is the model path. Its error decides whether the fallback runs.
func (c *LLMClassifier) analyze(ctx context.Context, content models.MessageContent) (Verdict, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := []ChatMessage{
		{Role: RoleSystem, Content: c.systemPrompt},
		{Role: RoleUser, Content: userPrompt(content, c.maxBodyLength)},
	}

	reply, err := c.chat(ctx, messages)
	if err != nil {
		return Verdict{}, err
	}
	return ParseVerdict(reply, c.snippetMaxLength)
}

func (c *LLMClassifier) chat(ctx context.Context, messages []ChatMessage) (string, error) {
	if c.breaker == nil {
		return c.client.Chat(ctx, messages)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.Chat(ctx, messages)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}
