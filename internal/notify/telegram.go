package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/jobmail/internal/models"
	"github.com/xaenox/jobmail/pkg/config"
	"go.uber.org/zap"
)

type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

func NewTelegramNotifier(cfg config.TelegramConfig, logger *zap.Logger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return newTelegramNotifier(api, cfg.ChatID, logger), nil
}

func newTelegramNotifier(api *tgbotapi.BotAPI, chatID int64, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		api:    api,
		chatID: chatID,
		logger: logger,
	}
}

func (n *TelegramNotifier) Notify(ctx context.Context, summary models.RunSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatSummary(summary))
	msg.DisableWebPagePreview = true
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send run summary: %w", err)
	}

	n.logger.Debug("Run summary sent",
		zap.Int64("chat_id", n.chatID),
		zap.String("run_id", summary.RunID))
	return nil
}
