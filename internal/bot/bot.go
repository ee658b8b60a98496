package bot

import (
	"context"
	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"sync"
	"time"
	"zyvpn-miniapp/internal/api"
	"zyvpn-miniapp/internal/cache"
	"zyvpn-miniapp/internal/db"
	"zyvpn-miniapp/internal/host"
	"zyvpn-miniapp/internal/logger"
	"zyvpn-miniapp/internal/payment"
)

const sessionQueue = 32

// Deps - общие зависимости всех сессий
type Deps struct {
	API            host.Sender
	Client         *api.Client
	Signer         *host.Signer
	Prefs          *db.Prefs
	Rates          cache.Cache
	BotName        string
	BotUsername    string
	Payment        payment.Config
	InvoiceTimeout time.Duration
	SessionIdle    time.Duration
}

// Bot держит сессии чатов и раздаёт им апдейты
type Bot struct {
	deps    Deps
	limiter *RateLimiter

	mu       sync.Mutex
	sessions map[int64]*Session
	queues   map[int64]chan tgbotapi.Update
}

func New(deps Deps) *Bot {
	if deps.InvoiceTimeout <= 0 {
		deps.InvoiceTimeout = 15 * time.Minute
	}
	if deps.SessionIdle <= 0 {
		deps.SessionIdle = 30 * time.Minute
	}
	return &Bot{
		deps:     deps,
		limiter:  NewRateLimiter(),
		sessions: make(map[int64]*Session),
		queues:   make(map[int64]chan tgbotapi.Update),
	}
}

// StartWithInstance запускает long polling и обрабатывает апдейты до отмены ctx
func (b *Bot) StartWithInstance(ctx context.Context, botapi *tgbotapi.BotAPI) {
	logger.Info("Authorized on account", zap.String("username", botapi.Self.UserName))
	if _, err := botapi.Request(Commands()); err != nil {
		logger.Warn("set bot commands", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := botapi.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		botapi.StopReceivingUpdates()
	}()
	b.Run(ctx, updates)
}

// Run читает апдейты из одного канала. У каждого пользователя своя очередь,
// так что апдейты одного чата идут по порядку, а разные чаты не ждут друг друга.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			from := update.SentFrom()
			if from == nil {
				continue
			}
			b.enqueue(ctx, from.ID, update)
		}
	}
}

// enqueue кладёт апдейт в очередь пользователя под b.mu, чтобы worker не закрыл
// очередь между поиском и отправкой
func (b *Bot) enqueue(ctx context.Context, userID int64, update tgbotapi.Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[userID]
	if !ok {
		q = make(chan tgbotapi.Update, sessionQueue)
		b.queues[userID] = q
		go b.worker(ctx, userID, q)
	}

	select {
	case q <- update:
	default:
		logger.Warn("session queue is full, update dropped", zap.Int64("user_id", userID), zap.Int("update_id", update.UpdateID))
	}
}

func (b *Bot) worker(ctx context.Context, userID int64, q chan tgbotapi.Update) {
	idle := time.NewTimer(b.deps.SessionIdle)
	defer idle.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-q:
			b.HandleUpdate(ctx, update)
			idle.Reset(b.deps.SessionIdle)
		case <-idle.C:
			if b.evict(userID, q) {
				return
			}
			idle.Reset(b.deps.SessionIdle)
		}
	}
}

// evict забывает простаивающего пользователя. Сессию с идущей оплатой не трогаем.
func (b *Bot) evict(userID int64, q chan tgbotapi.Update) bool {
	s := b.lookup(userID)
	if s != nil {
		s.mu.Lock()
		busy := s.busy || s.flow.Busy()
		s.mu.Unlock()
		if busy {
			return false
		}
	}

	b.mu.Lock()
	if len(q) > 0 {
		b.mu.Unlock()
		return false
	}
	delete(b.queues, userID)
	if s != nil {
		delete(b.sessions, userID)
		sessionsActive.Dec()
	}
	b.mu.Unlock()

	if s != nil {
		s.mu.Lock()
		if s.navCancel != nil {
			s.navCancel()
		}
		s.mu.Unlock()
	}
	b.limiter.Forget(userID)
	if b.deps.Signer != nil {
		b.deps.Signer.Forget(userID)
	}
	logger.Debug("idle session dropped", zap.Int64("user_id", userID))
	return true
}

// session возвращает сессию пользователя, создавая её при первом апдейте
func (b *Bot) session(from *tgbotapi.User) *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[from.ID]
	if !ok {
		s = newSession(b, from)
		b.sessions[from.ID] = s
		sessionsActive.Inc()
	}
	return s
}

// lookup - существующая сессия без создания
func (b *Bot) lookup(userID int64) *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[userID]
}
