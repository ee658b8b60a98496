package host

import (
	"context"
	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"sync"
	"time"
	"zyvpn-miniapp/internal/logger"
)

// CallbackInvoiceCheck - кнопка "Я оплатил" под счётом, дальше идёт payload
const CallbackInvoiceCheck = "inv:"

// Sender - часть *tgbotapi.BotAPI, которая нужна мосту
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Telegram - мост для одного чата с ботом.
// Алерты - сообщения, хаптика - эмодзи перед следующим алертом,
// инвойс - кнопка со ссылкой, оплату подтверждает SuccessfulPayment.
type Telegram struct {
	api            Sender
	chatID         int64
	signer         *Signer
	invoiceTimeout time.Duration

	mu       sync.Mutex
	user     WebAppUser
	back     bool
	expanded bool
	haptic   HapticKind
	pending  map[string]chan InvoiceStatus
}

func NewTelegram(api Sender, chatID int64, user WebAppUser, signer *Signer, invoiceTimeout time.Duration) *Telegram {
	return &Telegram{
		api:            api,
		chatID:         chatID,
		user:           user,
		signer:         signer,
		invoiceTimeout: invoiceTimeout,
		pending:        make(map[string]chan InvoiceStatus),
	}
}

func (t *Telegram) Ready(ctx context.Context) error {
	_, err := t.api.Request(tgbotapi.NewChatAction(t.chatID, tgbotapi.ChatTyping))
	return err
}

func (t *Telegram) Expand(ctx context.Context) error {
	t.mu.Lock()
	t.expanded = true
	t.mu.Unlock()
	return nil
}

func (t *Telegram) ShowAlert(ctx context.Context, text string) error {
	t.mu.Lock()
	prefix := hapticPrefix(t.haptic)
	t.haptic = ""
	t.mu.Unlock()
	_, err := t.api.Send(tgbotapi.NewMessage(t.chatID, prefix+text))
	return err
}

func hapticPrefix(k HapticKind) string {
	switch k {
	case HapticSuccess:
		return "✅ "
	case HapticError:
		return "❌ "
	case HapticWarning:
		return "⚠️ "
	}
	return ""
}

func (t *Telegram) Haptic(ctx context.Context, kind HapticKind) {
	if kind == HapticSelection {
		return
	}
	t.mu.Lock()
	t.haptic = kind
	t.mu.Unlock()
}

func (t *Telegram) OpenInvoice(ctx context.Context, link, payload string) (InvoiceStatus, error) {
	ch := make(chan InvoiceStatus, 1)
	t.mu.Lock()
	t.pending[payload] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, payload)
		t.mu.Unlock()
	}()

	msg := tgbotapi.NewMessage(t.chatID, "Счёт на оплату в Telegram Stars готов. Нажмите кнопку ниже.")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("⭐ Оплатить", link)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Я оплатил", CallbackInvoiceCheck+payload)),
	)
	if _, err := t.api.Send(msg); err != nil {
		return InvoiceFailed, err
	}

	timer := time.NewTimer(t.invoiceTimeout)
	defer timer.Stop()
	select {
	case st := <-ch:
		return st, nil
	case <-ctx.Done():
		return InvoiceCancelled, nil
	case <-timer.C:
		logger.Info("invoice wait timed out", zap.Int64("chat_id", t.chatID), zap.String("payload", payload))
		return InvoiceCancelled, nil
	}
}

// ResolveInvoice завершает ожидание инвойса с данным payload. false - никто не ждёт.
func (t *Telegram) ResolveInvoice(payload string, st InvoiceStatus) bool {
	t.mu.Lock()
	ch, ok := t.pending[payload]
	t.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- st:
	default:
	}
	return true
}

// HasInvoice - ждём ли оплату по этому payload (для ответа на pre_checkout_query)
func (t *Telegram) HasInvoice(payload string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[payload]
	return ok
}

func (t *Telegram) SetBackButton(visible bool) {
	t.mu.Lock()
	t.back = visible
	t.mu.Unlock()
}

func (t *Telegram) BackButtonVisible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.back
}

func (t *Telegram) OpenLink(ctx context.Context, text, url string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("Открыть", url)),
	)
	_, err := t.api.Send(msg)
	return err
}

func (t *Telegram) InitData() string {
	return t.signer.For(t.User())
}

func (t *Telegram) User() WebAppUser {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.user
}

// UpdateUser обновляет профиль из свежего апдейта
func (t *Telegram) UpdateUser(u WebAppUser) {
	t.mu.Lock()
	changed := t.user != u
	t.user = u
	t.mu.Unlock()
	if changed {
		t.signer.Forget(u.ID)
	}
}

// UserFromTelegram переводит отправителя апдейта в WebAppUser
func UserFromTelegram(u *tgbotapi.User) WebAppUser {
	if u == nil {
		return WebAppUser{}
	}
	return WebAppUser{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.UserName,
		LanguageCode: u.LanguageCode,
	}
}
