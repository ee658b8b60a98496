package wallet

import (
	"context"
	"fmt"
	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"strings"
	"sync"
	"time"
	"zyvpn-miniapp/internal/logger"
)

// Callback data кнопок подтверждения перевода
const (
	CallbackSent       = "wallet:sent"
	CallbackCancel     = "wallet:cancel"
	CallbackDisconnect = "wallet:off"
)

type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// AddressStore хранит привязанный адрес между перезапусками
type AddressStore interface {
	WalletAddress(ctx context.Context, userID int64) (string, error)
	SetWalletAddress(ctx context.Context, userID int64, addr string) error
}

// Link - кошелёк через чат: адрес присылают сообщением,
// перевод делают по ссылке ton://transfer и подтверждают кнопкой.
type Link struct {
	api    Sender
	store  AddressStore
	chatID int64
	userID int64
	now    func() time.Time

	mu        sync.Mutex
	address   string
	loaded    bool
	waiters   []chan string
	confirmCh chan bool
}

func NewLink(api Sender, store AddressStore, chatID, userID int64) *Link {
	return &Link{api: api, store: store, chatID: chatID, userID: userID, now: time.Now}
}

func (l *Link) load(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded || l.store == nil {
		return
	}
	addr, err := l.store.WalletAddress(ctx, l.userID)
	if err != nil {
		logger.Warn("load wallet address", zap.Int64("user_id", l.userID), zap.Error(err))
		return
	}
	l.address = addr
	l.loaded = true
}

func (l *Link) Address() string {
	l.load(context.Background())
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.address
}

// AwaitingAddress - ждём от пользователя адрес кошелька текстом
func (l *Link) AwaitingAddress() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters) > 0
}

// AwaitingConfirmation - показана ссылка на перевод, ждём "Я отправил"
func (l *Link) AwaitingConfirmation() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.confirmCh != nil
}

func (l *Link) Connect(ctx context.Context) (string, error) {
	if addr := l.Address(); addr != "" {
		return addr, nil
	}
	ch := make(chan string, 1)
	l.mu.Lock()
	l.waiters = append(l.waiters, ch)
	first := len(l.waiters) == 1
	l.mu.Unlock()
	defer l.dropWaiter(ch)

	if first {
		msg := tgbotapi.NewMessage(l.chatID, "Отправьте адрес вашего TON-кошелька (начинается с UQ или EQ) следующим сообщением.")
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Отмена", CallbackCancel)),
		)
		if _, err := l.api.Send(msg); err != nil {
			return "", fmt.Errorf("wallet prompt: %w", err)
		}
	}

	select {
	case addr := <-ch:
		if addr == "" {
			return "", ErrNotConnected
		}
		return addr, nil
	case <-ctx.Done():
		return "", ErrNotConnected
	}
}

func (l *Link) dropWaiter(ch chan string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, w := range l.waiters {
		if w == ch {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return
		}
	}
}

// SubmitAddress - пользователь прислал адрес
func (l *Link) SubmitAddress(ctx context.Context, addr string) error {
	addr = strings.TrimSpace(addr)
	if !ValidAddress(addr) {
		return ErrInvalidAddress
	}
	if l.store != nil {
		if err := l.store.SetWalletAddress(ctx, l.userID, addr); err != nil {
			return fmt.Errorf("save wallet address: %w", err)
		}
	}
	l.mu.Lock()
	l.address = addr
	l.loaded = true
	waiters := l.waiters
	l.waiters = nil
	l.mu.Unlock()
	for _, w := range waiters {
		w <- addr
	}
	return nil
}

// CancelConnect прерывает ожидание адреса
func (l *Link) CancelConnect() {
	l.mu.Lock()
	waiters := l.waiters
	l.waiters = nil
	l.mu.Unlock()
	for _, w := range waiters {
		w <- ""
	}
}

func (l *Link) SendTransaction(ctx context.Context, tx Transaction) (Receipt, error) {
	addr := l.Address()
	if addr == "" {
		return Receipt{}, ErrNotConnected
	}
	if len(tx.Messages) == 0 {
		return Receipt{}, fmt.Errorf("empty transaction")
	}
	deadline := time.Unix(tx.ValidUntil, 0)
	if !l.now().Before(deadline) {
		return Receipt{}, ErrExpired
	}

	ch := make(chan bool, 1)
	l.mu.Lock()
	if l.confirmCh != nil {
		l.mu.Unlock()
		return Receipt{}, fmt.Errorf("another transaction is awaiting confirmation")
	}
	l.confirmCh = ch
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.confirmCh = nil
		l.mu.Unlock()
	}()

	m := tx.Messages[0]
	amount, _ := FromNano(m.Amount)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Переведите <b>%s TON</b> с кошелька <code>%s</code>\n", amount.String(), addr))
	sb.WriteString(fmt.Sprintf("на адрес <code>%s</code>\n", m.Address))
	if m.Comment != "" {
		sb.WriteString(fmt.Sprintf("Комментарий: <code>%s</code>\n", m.Comment))
	}
	sb.WriteString(fmt.Sprintf("\nСсылка для любого кошелька:\n<code>%s</code>\n", TransferLink(m, tx.ValidUntil)))
	sb.WriteString(fmt.Sprintf("\nПеревод действителен до %s UTC. После отправки нажмите «Я отправил».", deadline.UTC().Format("15:04")))

	msg := tgbotapi.NewMessage(l.chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("💎 Открыть Tonkeeper", TonkeeperLink(m, tx.ValidUntil))),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Я отправил", CallbackSent),
			tgbotapi.NewInlineKeyboardButtonData("Отмена", CallbackCancel),
		),
	)
	if _, err := l.api.Send(msg); err != nil {
		return Receipt{}, fmt.Errorf("send transfer request: %w", err)
	}

	timer := time.NewTimer(deadline.Sub(l.now()))
	defer timer.Stop()
	select {
	case ok := <-ch:
		if !ok {
			return Receipt{}, ErrRejected
		}
		return Receipt{Value: addr}, nil
	case <-timer.C:
		return Receipt{}, ErrExpired
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	}
}

// Confirm - ответ пользователя на запрос перевода. false - нет ожидающего перевода.
func (l *Link) Confirm(sent bool) bool {
	l.mu.Lock()
	ch := l.confirmCh
	l.mu.Unlock()
	if ch == nil {
		return false
	}
	select {
	case ch <- sent:
	default:
	}
	return true
}

func (l *Link) Disconnect(ctx context.Context) error {
	if l.store != nil {
		if err := l.store.SetWalletAddress(ctx, l.userID, ""); err != nil {
			return fmt.Errorf("forget wallet address: %w", err)
		}
	}
	l.mu.Lock()
	l.address = ""
	l.loaded = true
	l.mu.Unlock()
	return nil
}
