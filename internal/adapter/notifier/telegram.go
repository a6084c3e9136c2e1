package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/semmidev/custos/internal/config"
	"github.com/semmidev/custos/internal/domain"
)

// Telegram rejects messages longer than this.
const maxMessageLength = 4096

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts a short cycle summary to one chat. It never
// uploads artifacts.
type TelegramNotifier struct {
	bot    sender
	chatID int64
	on     map[string]bool
}

func NewTelegram(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newTelegram(bot, cfg.ChatID, cfg.On), nil
}

func newTelegram(bot sender, chatID int64, on []string) *TelegramNotifier {
	set := make(map[string]bool, len(on))
	for _, s := range on {
		set[strings.ToLower(s)] = true
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, on: set}
}

func (t *TelegramNotifier) wants(status domain.CycleStatus) bool {
	return t.on["all"] || t.on[string(status)]
}

func (t *TelegramNotifier) Notify(ctx context.Context, event domain.CycleEvent) error {
	if !t.wants(event.Status) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, formatEvent(event))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}

func formatEvent(event domain.CycleEvent) string {
	var b strings.Builder

	switch event.Status {
	case domain.CycleSucceeded:
		b.WriteString("✅ Backup Created\n\n")
	case domain.CycleFailed:
		b.WriteString("❌ Backup Failed\n\n")
	default:
		b.WriteString("⏭️ Backup Skipped\n\n")
	}

	fmt.Fprintf(&b, "🗄 Database: %s/%s\n", event.DatabaseType, event.DatabaseName)
	if a := event.Artifact; a != nil {
		fmt.Fprintf(&b, "📁 File: %s\n", a.Name)
		fmt.Fprintf(&b, "📊 Size: %.2f MB\n", float64(a.Size)/(1024*1024))
	}
	if c := event.Cleanup; c != nil && !c.Skipped {
		fmt.Fprintf(&b, "🧹 Cleanup: %d deleted, %d kept, %d failed\n", len(c.Deleted), c.Kept, len(c.Failed))
	}
	fmt.Fprintf(&b, "🕐 Time: %s (%s)\n", event.StartedAt.Format("2006-01-02 15:04:05"), event.Duration.Round(time.Second))
	if event.Err != nil {
		fmt.Fprintf(&b, "⚠️ Error: %v\n", event.Err)
	}
	fmt.Fprintf(&b, "🔖 Cycle: %s", event.ID)

	text := b.String()
	if len(text) > maxMessageLength {
		cut := maxMessageLength - 3
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return text
}
