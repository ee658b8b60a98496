package logger

import (
	"fmt"
	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"sync"
)

// Sender - то, что умеет отправлять сообщения в Telegram (*tgbotapi.BotAPI)
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

var (
	notifier Sender
	adminID  int64
	once     sync.Once
)

// InitNotifier инициализирует Telegram-уведомления оператору об ошибках
func InitNotifier(bot Sender, admin int64) {
	once.Do(func() {
		notifier = bot
		adminID = admin
	})
}

// NotifyAdmin отправляет критическое уведомление оператору
func NotifyAdmin(msg string) {
	if notifier == nil || adminID == 0 {
		return
	}
	if _, err := notifier.Send(tgbotapi.NewMessage(adminID, "[ALERT] "+msg)); err != nil {
		Warn("notify admin failed", zap.Error(err))
	}
}

// NotifyOnPanic ловит панику, логирует и уведомляет
func NotifyOnPanic(where string) {
	if r := recover(); r != nil {
		Error("panic recovered", zap.String("where", where), zap.Any("panic", r), zap.Stack("stack"))
		NotifyAdmin("Panic in " + where + ": " + toString(r))
	}
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		return x.Error()
	default:
		return fmt.Sprintf("%v", v)
	}
}
