package services

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"backend_panelhub/logger"
	"backend_panelhub/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Notifier отправляет оператору уведомления
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// TelegramNotifier отправляет HTML сообщения в чат оператора
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zap.Logger
}

// NewTelegramNotifier создает Telegram бота по токену
func NewTelegramNotifier(token, chatID string, log *zap.Logger) (*TelegramNotifier, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("неверный chat ID: %s", chatID)
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram бота: %w", err)
	}
	bot.Debug = false

	log = logger.OrNop(log).Named("telegram")
	log.Info("✅ Telegram бот авторизован", zap.String("username", bot.Self.UserName))

	return &TelegramNotifier{bot: bot, chatID: id, log: log}, nil
}

// Notify отправляет сообщение
func (tn *TelegramNotifier) Notify(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(tn.chatID, message)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := tn.bot.Send(msg); err != nil {
		return fmt.Errorf("ошибка отправки сообщения: %w", err)
	}
	return nil
}

// LogNotifier пишет уведомления в лог, когда Telegram не настроен
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier создает LogNotifier
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: logger.OrNop(log).Named("notifier")}
}

// Notify пишет сообщение в лог
func (ln *LogNotifier) Notify(_ context.Context, message string) error {
	ln.log.Info("Уведомление оператору", zap.String("message", message))
	return nil
}

// Digest ежедневная сводка для оператора
type Digest struct {
	Date           time.Time
	Expiring       []models.Subscription
	Overdue        []models.Subscription
	ExpiringPanels []models.Panel
	MarkedExpired  int
}

// IsEmpty проверяет, что в сводке нечего сообщать
func (d *Digest) IsEmpty() bool {
	return len(d.Expiring) == 0 && len(d.Overdue) == 0 && len(d.ExpiringPanels) == 0
}

// Render форматирует сводку в HTML для Telegram
func (d *Digest) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Resumen %s</b>\n", d.Date.Format("2006-01-02"))

	if len(d.Expiring) > 0 {
		fmt.Fprintf(&b, "\n<b>Por vencer (%d)</b>\n", len(d.Expiring))
		for _, sub := range d.Expiring {
			fmt.Fprintf(&b, "• %s: %s, vence %s (%d d)\n",
				html.EscapeString(clientName(sub)), html.EscapeString(serviceName(sub)),
				sub.DueDate.Format("2006-01-02"), DaysUntilDue(sub.DueDate, d.Date))
		}
	}

	if len(d.Overdue) > 0 {
		fmt.Fprintf(&b, "\n<b>Vencidas (%d)</b>\n", len(d.Overdue))
		for _, sub := range d.Overdue {
			fmt.Fprintf(&b, "• %s: %s, venció %s\n",
				html.EscapeString(clientName(sub)), html.EscapeString(serviceName(sub)),
				sub.DueDate.Format("2006-01-02"))
		}
	}

	if len(d.ExpiringPanels) > 0 {
		fmt.Fprintf(&b, "\n<b>Paneles por renovar (%d)</b>\n", len(d.ExpiringPanels))
		for _, p := range d.ExpiringPanels {
			fmt.Fprintf(&b, "• %s: %s\n", html.EscapeString(p.Name), p.ExpirationDate.Format("2006-01-02"))
		}
	}

	if d.MarkedExpired > 0 {
		fmt.Fprintf(&b, "\nMarcadas como vencidas: %d\n", d.MarkedExpired)
	}
	return b.String()
}

func clientName(sub models.Subscription) string {
	if sub.Client != nil {
		return sub.Client.Name
	}
	return fmt.Sprintf("cliente #%d", sub.ClientID)
}

func serviceName(sub models.Subscription) string {
	if sub.Service != nil {
		return sub.Service.Name
	}
	return fmt.Sprintf("servicio #%d", sub.ServiceID)
}
