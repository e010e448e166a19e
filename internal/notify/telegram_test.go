package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder/internal/logging"
	"pathfinder/internal/merge"
	"pathfinder/internal/pipeline"
	"pathfinder/pkg/models"
)

type fakeBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestDeliverSendsReport(t *testing.T) {
	bot := &fakeBot{}
	tg := &Telegram{bot: bot, chatID: 42, logger: logging.NewNopLogger()}

	expired := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	report := &pipeline.Report{
		RunID: "run-1",
		Chains: []pipeline.ChainReport{{
			Source: models.SourceWTTJ,
			Stages: []pipeline.StageSummary{{Stage: pipeline.StageCrawl, New: 3}},
		}},
		Merge: &merge.Stats{Rows: 2},
	}
	rows := []models.CanonicalPosting{{URL: "a"}, {URL: "b", ExpiredAt: &expired}}

	require.NoError(t, tg.Deliver(context.Background(), report, rows))
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Contains(t, bot.sent[0].Text, "crawl: 3 new")
	assert.Contains(t, bot.sent[0].Text, "active postings: 1 / 2")
}

func TestNotifyError(t *testing.T) {
	boom := errors.New("chat not found")
	tg := &Telegram{bot: &fakeBot{err: boom}, logger: logging.NewNopLogger()}
	assert.ErrorIs(t, tg.Notify(context.Background(), "hello"), boom)
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"fits", "a\nb\n", 10, []string{"a\nb\n"}},
		{"line boundary", "aaaa\nbbbb\ncc", 10, []string{"aaaa\nbbbb\n", "cc"}},
		{"long line", "abcdefghij\nk", 4, []string{"abcd", "efgh", "ij\nk"}},
		{"empty", "", 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := split(tt.text, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.text, strings.Join(got, ""))
		})
	}
}
