// Package notify posts run reports to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pathfinder/internal/logging"
	"pathfinder/internal/pipeline"
	"pathfinder/pkg/models"
)

// maxMessageLen is the Telegram limit for one text message
const maxMessageLen = 4096

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends the report of every run, including failed ones
type Telegram struct {
	bot    sender
	chatID int64
	logger logging.Logger
}

func NewTelegram(token string, chatID int64, logger logging.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID, logger: logger}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Deliver sends the run summary after a successful merge
func (t *Telegram) Deliver(ctx context.Context, report *pipeline.Report, rows []models.CanonicalPosting) error {
	active := 0
	for i := range rows {
		if rows[i].Active() {
			active++
		}
	}
	return t.Notify(ctx, report.Text()+fmt.Sprintf("\nactive postings: %d / %d\n", active, len(rows)))
}

// Notify sends text, split into as many messages as needed
func (t *Telegram) Notify(ctx context.Context, text string) error {
	for _, part := range split(text, maxMessageLen) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(t.chatID, part)
		msg.DisableWebPagePreview = true
		if _, err := t.bot.Send(msg); err != nil {
			return fmt.Errorf("failed to send telegram message: %w", err)
		}
	}
	t.logger.Debug("Telegram notification sent", logging.Fields{"chat_id": t.chatID})
	return nil
}

// split cuts text on line boundaries into chunks of at most limit bytes. A
// single longer line is cut on a rune boundary.
func split(text string, limit int) []string {
	var parts []string
	var b strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			if b.Len() > 0 {
				parts = append(parts, b.String())
				b.Reset()
			}
			cut := limit
			for cut > 1 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			parts = append(parts, line[:cut])
			line = line[cut:]
		}
		if b.Len()+len(line) > limit {
			parts = append(parts, b.String())
			b.Reset()
		}
		b.WriteString(line)
	}
	if b.Len() > 0 {
		parts = append(parts, b.String())
	}
	return parts
}
