package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const telegramTimeout = 10 * time.Second

// TelegramNotifier posts messages to a chat through the Bot API.
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID string
}

// NewTelegramNotifier creates a Telegram notifier. An empty apiURL uses the
// public Bot API. The token is not checked against the API up front.
func NewTelegramNotifier(apiURL, token, chatID string) (*TelegramNotifier, error) {
	opts := []bot.Option{bot.WithSkipGetMe()}
	if apiURL != "" {
		opts = append(opts, bot.WithServerURL(apiURL))
	}
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: b, chatID: chatID}, nil
}

// Name returns "telegram".
func (t *TelegramNotifier) Name() string { return "telegram" }

// Notify sends msg.HTML with HTML parse mode and link previews disabled.
func (t *TelegramNotifier) Notify(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, telegramTimeout)
	defer cancel()

	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:             t.chatID,
		Text:               msg.HTML,
		ParseMode:          models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: bot.True()},
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
