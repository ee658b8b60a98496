package services

import (
	"context"
	"fmt"
	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"time"
	"zyvpn-miniapp/internal/api"
	"zyvpn-miniapp/internal/db"
	"zyvpn-miniapp/internal/host"
	"zyvpn-miniapp/internal/logger"
)

// Sender - отправка сообщений (*tgbotapi.BotAPI)
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Reminder напоминает о скором окончании подписки. Статус читается с сервера
// от имени пользователя, в базе хранится только expires_at, о котором уже напомнили.
type Reminder struct {
	bot        Sender
	prefs      *db.Prefs
	client     *api.Client
	signer     *host.Signer
	daysBefore int
	now        func() time.Time
}

func NewReminder(bot Sender, prefs *db.Prefs, client *api.Client, signer *host.Signer, daysBefore int) *Reminder {
	return &Reminder{bot: bot, prefs: prefs, client: client, signer: signer, daysBefore: daysBefore, now: time.Now}
}

// NotifyExpiringSubscriptions обходит известные чаты и возвращает число отправленных напоминаний
func (r *Reminder) NotifyExpiringSubscriptions(ctx context.Context) int {
	chats, err := r.prefs.KnownChats(ctx)
	if err != nil {
		logger.Error("load known chats", zap.Error(err))
		logger.NotifyAdmin("Не удалось загрузить чаты для напоминаний: " + err.Error())
		return 0
	}
	sent := 0
	for _, pref := range chats {
		if ctx.Err() != nil {
			break
		}
		if r.remind(ctx, pref) {
			sent++
		}
	}
	remindersSent.Add(float64(sent))
	logger.Info("expiry reminders done", zap.Int("chats", len(chats)), zap.Int("sent", sent))
	return sent
}

func (r *Reminder) remind(ctx context.Context, pref db.ChatPref) bool {
	user := host.WebAppUser{
		ID:           pref.TelegramID,
		FirstName:    pref.FirstName,
		LastName:     pref.LastName,
		Username:     pref.Username,
		LanguageCode: pref.LanguageCode,
	}
	client := r.client.WithInitData(func() string { return r.signer.For(user) })
	status, err := client.GetSubscriptionStatus(ctx)
	if err != nil {
		logger.Warn("reminder status", zap.Int64("user_id", pref.TelegramID), zap.Error(err))
		return false
	}
	if !status.Active || status.Subscription == nil || status.Subscription.ExpiresAt == nil {
		return false
	}

	exp := *status.Subscription.ExpiresAt
	now := r.now()
	if exp.Before(now) || exp.After(now.Add(time.Duration(r.daysBefore)*24*time.Hour)) {
		return false
	}
	if pref.RemindedExpiry == exp.Unix() {
		return false
	}

	chatID := pref.ChatID
	if chatID == 0 {
		chatID = pref.TelegramID
	}
	days := int(exp.Sub(now).Hours()/24) + 1
	text := fmt.Sprintf("Ваша подписка истекает через %d дн. (%s). Продлить: /start", days, exp.Format("02.01.2006"))
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		logger.NotifyAdmin(fmt.Sprintf("Ошибка отправки напоминания пользователю %d: %v", pref.TelegramID, err))
		return false
	}
	if err := r.prefs.MarkReminded(ctx, pref.TelegramID, exp.Unix()); err != nil {
		logger.Warn("mark reminded", zap.Int64("user_id", pref.TelegramID), zap.Error(err))
	}
	return true
}
