package delivery

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/tickerd/internal/types"
)

const maxTelegramMessage = 4096

// TelegramSink pushes feed items to one Telegram chat.
type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSink creates a sink for the given bot token and chat.
func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &TelegramSink{bot: bot, chatID: chatID}, nil
}

func (*TelegramSink) Name() string { return "telegram" }

// Deliver formats the item and sends it, falling back to plain text when
// Telegram rejects the markdown.
func (t *TelegramSink) Deliver(_ context.Context, item *types.Item) error {
	for _, part := range splitMessage(formatItem(item)) {
		msg := tgbotapi.NewMessage(t.chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := t.bot.Send(msg); err != nil {
			msg.ParseMode = ""
			if _, err := t.bot.Send(msg); err != nil {
				return fmt.Errorf("send message: %w", err)
			}
		}
	}
	return nil
}

func formatItem(item *types.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", item.Title)
	if item.Description != "" {
		b.WriteString(item.Description)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "_%s_", item.Category)
	if url, ok := item.Payload["url"].(string); ok && url != "" {
		fmt.Fprintf(&b, "\n%s", url)
	}
	return b.String()
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
