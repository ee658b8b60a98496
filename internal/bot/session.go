package bot

import (
	"context"
	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"strings"
	"sync"
	"unicode/utf8"
	"zyvpn-miniapp/internal/admin"
	"zyvpn-miniapp/internal/api"
	"zyvpn-miniapp/internal/host"
	"zyvpn-miniapp/internal/logger"
	"zyvpn-miniapp/internal/payment"
	"zyvpn-miniapp/internal/store"
	"zyvpn-miniapp/internal/views"
	"zyvpn-miniapp/internal/wallet"
)

// Экран приветствия не входит в навигацию nav:
const screenOnboarding = "onboarding"

// Telegram обрезает текст ответа на callback до 200 символов
const callbackTextLimit = 200

type inputMode string

const (
	inputNone     inputMode = ""
	inputPromo    inputMode = "promo"
	inputReferral inputMode = "referral"
	inputAdmin    inputMode = "admin"
)

// Session - одно открытое приложение: свой клиент API с init data пользователя,
// своё хранилище, мост, кошелёк и оплата. Апдейты одного пользователя
// обрабатываются по очереди, фоновые оплаты берут mu перед перерисовкой.
type Session struct {
	bot    *Bot
	chatID int64
	userID int64

	client  *api.Client
	store   *store.Store
	bridge  *host.Telegram
	wallet  *wallet.Link
	flow    *payment.Flow
	console *admin.Console

	mu        sync.Mutex
	root      context.Context
	navCtx    context.Context
	navCancel context.CancelFunc
	screen    string
	messageID int
	photo     bool
	input     inputMode
	prompt    *admin.Prompt
	booted    bool
	isAdmin   bool

	plan   *api.Plan
	method api.Provider
	busy   bool
	payErr string

	topUpAmount float64
	topUpMethod api.Provider
	topUpErr    string
	txs         []api.BalanceTransaction
	promoOK     string
	promoErr    string

	refApplied bool
	refMsg     string

	switchInfo *api.SwitchInfo
	srvErr     string
	needMore   bool
}

func newSession(b *Bot, from *tgbotapi.User) *Session {
	d := b.deps
	s := &Session{
		bot:         b,
		chatID:      from.ID,
		userID:      from.ID,
		root:        context.Background(),
		screen:      views.ScreenHome,
		method:      api.ProviderTON,
		topUpMethod: api.ProviderTON,
	}
	s.bridge = host.NewTelegram(d.API, s.chatID, host.UserFromTelegram(from), d.Signer, d.InvoiceTimeout)
	s.client = d.Client.WithInitData(s.bridge.InitData)
	s.store = store.New(s.client, d.Rates)

	var addrs wallet.AddressStore
	if d.Prefs != nil {
		addrs = d.Prefs
	}
	s.wallet = wallet.NewLink(d.API, addrs, s.chatID, s.userID)
	s.flow = payment.NewFlow(s.client, s.bridge, s.wallet, s.store, d.Payment)
	s.flow.OnState(func(st payment.State) {
		logger.Debug("payment state", zap.Int64("user_id", s.userID), zap.String("state", string(st)))
	})
	s.console = admin.NewConsole(s.client, s.userID, d.BotUsername)
	return s
}

// current - контекст текущего экрана
func (s *Session) current() context.Context {
	if s.navCtx == nil {
		return s.root
	}
	return s.navCtx
}

// navigate уходит на другой экран. Всё, что было запущено на старом экране, отменяется.
func (s *Session) navigate(screen string) context.Context {
	if s.navCancel != nil {
		s.navCancel()
	}
	s.navCtx, s.navCancel = context.WithCancel(s.root)
	s.screen = screen
	s.input = inputNone
	s.prompt = nil
	s.store.SetError("")
	s.bridge.SetBackButton(screen != views.ScreenHome && screen != screenOnboarding)

	switch screen {
	case views.ScreenPayment:
		s.payErr = ""
	case views.ScreenBalance:
		s.topUpErr, s.promoOK, s.promoErr = "", "", ""
	case views.ScreenReferral:
		s.refMsg = ""
	case views.ScreenServers:
		s.srvErr, s.needMore = "", false
	}
	return s.navCtx
}

// open - переход с загрузкой данных экрана и отрисовкой
func (s *Session) open(screen string, fresh bool) {
	if screen == views.ScreenAdmin {
		ctx := s.navigate(screen)
		s.adminResult(ctx, s.console.Open(ctx, views.TabStats), fresh)
		return
	}
	ctx := s.navigate(screen)
	s.load(ctx)
	s.render(ctx, fresh)
}

func (s *Session) ensureBooted(ctx context.Context) {
	if s.booted {
		return
	}
	if err := s.store.Bootstrap(ctx); err != nil {
		logger.Warn("bootstrap", zap.Int64("user_id", s.userID), zap.Error(err))
		return
	}
	s.booted = true
}

// load подтягивает данные, нужные текущему экрану. Ошибки оседают в store.Error.
func (s *Session) load(ctx context.Context) {
	st := s.store
	switch s.screen {
	case views.ScreenHome:
		if s.booted {
			_ = st.FetchUser(ctx)
			_ = st.FetchPlans(ctx)
		} else {
			s.ensureBooted(ctx)
		}
		_ = st.FetchSubscriptionStatus(ctx)
		_ = st.FetchServers(ctx)
		s.isAdmin = s.console.IsAdmin(ctx)
	case views.ScreenKey:
		_ = st.FetchSubscriptionStatus(ctx)
		if st.Snapshot().HasActiveSubscription() {
			_ = st.FetchConnectionKey(ctx)
		}
		_ = st.FetchServers(ctx)
	case views.ScreenPayment:
		_ = st.FetchUser(ctx)
		_ = st.FetchRates(ctx)
	case views.ScreenBalance:
		_ = st.FetchBalance(ctx)
		_ = st.FetchRates(ctx)
		s.loadTransactions(ctx)
	case views.ScreenReferral:
		_ = st.FetchReferralStats(ctx)
		_ = st.FetchReferralLink(ctx)
		s.loadReferralApplied(ctx)
	case views.ScreenServers:
		_ = st.FetchServers(ctx)
		_ = st.FetchSubscriptionStatus(ctx)
		s.loadSwitchInfo(ctx)
	}
}

func (s *Session) loadTransactions(ctx context.Context) {
	txs, err := s.client.GetBalanceTransactions(ctx, txHistory, 0)
	if err != nil {
		logger.Warn("balance transactions", zap.Int64("user_id", s.userID), zap.Error(err))
		return
	}
	if ctx.Err() == nil {
		s.txs = txs
	}
}

func (s *Session) loadReferralApplied(ctx context.Context) {
	prefs := s.bot.deps.Prefs
	if prefs == nil {
		return
	}
	applied, err := prefs.ReferralApplied(ctx, s.userID)
	if err != nil {
		logger.Warn("referral flag", zap.Int64("user_id", s.userID), zap.Error(err))
		return
	}
	s.refApplied = applied
}

func (s *Session) loadSwitchInfo(ctx context.Context) {
	s.switchInfo = nil
	if !s.store.Snapshot().HasActiveSubscription() {
		return
	}
	info, err := s.client.GetSwitchServerInfo(ctx)
	if err != nil {
		logger.Warn("switch server info", zap.Int64("user_id", s.userID), zap.Error(err))
		return
	}
	if ctx.Err() == nil {
		s.switchInfo = &info
	}
}

// build собирает текущий экран из состояния сессии, без запросов к API
func (s *Session) build() (views.Screen, error) {
	st := s.store.Snapshot()
	name := s.bot.deps.BotName
	switch s.screen {
	case screenOnboarding:
		return views.Onboarding(name), nil
	case views.ScreenKey:
		return views.Key(st)
	case views.ScreenPayment:
		if s.plan == nil {
			break
		}
		return views.Payment(views.PaymentData{
			Plan:          *s.plan,
			Balance:       st.Balance,
			Rates:         st.RatesOrFallback(),
			Method:        s.method,
			WalletAddress: s.wallet.Address(),
			Busy:          s.busy,
			Error:         s.payErr,
		}), nil
	case views.ScreenBalance:
		return views.Balance(views.BalanceData{
			Balance:       st.Balance,
			Rates:         st.RatesOrFallback(),
			Method:        s.topUpMethod,
			Amount:        s.topUpAmount,
			WalletAddress: s.wallet.Address(),
			Transactions:  s.txs,
			Busy:          s.busy,
			Waiting:       s.flow.State() == payment.StatePolling,
			Error:         s.topUpErr,
			PromoError:    s.promoErr,
			PromoSuccess:  s.promoOK,
		}), nil
	case views.ScreenReferral:
		return views.Referral(views.ReferralData{State: st, ReferralApplied: s.refApplied, Message: s.refMsg}), nil
	case views.ScreenServers:
		return views.Servers(views.ServersData{
			Servers:         st.Servers,
			Current:         st.CurrentServerID(),
			Selected:        st.SelectedServerID,
			HasSubscription: st.HasActiveSubscription(),
			Info:            s.switchInfo,
			Error:           s.srvErr,
			NeedMore:        s.needMore,
		}), nil
	case views.ScreenHelp:
		return views.Help(name), nil
	}
	return views.Home(views.HomeData{
		State:     st,
		FirstName: s.bridge.User().FirstName,
		BotName:   name,
		IsAdmin:   s.isAdmin,
	}), nil
}

// render показывает текущий экран. Экран админки перерисовывает консоль.
func (s *Session) render(ctx context.Context, fresh bool) {
	if s.screen == views.ScreenAdmin {
		return
	}
	scr, err := s.build()
	if err != nil {
		logger.Error("render screen", zap.String("screen", s.screen), zap.Error(err))
		scr = views.Screen{Text: "Не удалось показать экран: " + err.Error()}
	}
	s.show(scr, fresh)
}

// show редактирует последнее сообщение сессии или шлёт новое.
// Картинку нельзя превратить в текст правкой, поэтому фото всегда уходит новым сообщением.
func (s *Session) show(scr views.Screen, fresh bool) {
	tg := s.bot.deps.API
	if s.bridge.BackButtonVisible() {
		scr = views.WithBack(scr)
	}
	if scr.Photo != nil {
		photo := tgbotapi.NewPhoto(s.chatID, tgbotapi.FileBytes{Name: "key.png", Bytes: scr.Photo})
		photo.Caption = scr.Text
		photo.ParseMode = tgbotapi.ModeHTML
		if scr.Markup != nil {
			photo.ReplyMarkup = *scr.Markup
		}
		msg, err := tg.Send(photo)
		if err != nil {
			logger.Warn("send photo", zap.Int64("chat_id", s.chatID), zap.Error(err))
			return
		}
		s.messageID, s.photo = msg.MessageID, true
		return
	}

	if !fresh && s.messageID != 0 && !s.photo {
		var edit tgbotapi.EditMessageTextConfig
		if scr.Markup != nil {
			edit = tgbotapi.NewEditMessageTextAndMarkup(s.chatID, s.messageID, scr.Text, *scr.Markup)
		} else {
			edit = tgbotapi.NewEditMessageText(s.chatID, s.messageID, scr.Text)
		}
		edit.ParseMode = tgbotapi.ModeHTML
		_, err := tg.Send(edit)
		if err == nil || strings.Contains(err.Error(), "message is not modified") {
			return
		}
		logger.Debug("edit message failed, sending new", zap.Int64("chat_id", s.chatID), zap.Error(err))
	}

	msg := tgbotapi.NewMessage(s.chatID, scr.Text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if scr.Markup != nil {
		msg.ReplyMarkup = *scr.Markup
	}
	sent, err := tg.Send(msg)
	if err != nil {
		logger.Warn("send screen", zap.Int64("chat_id", s.chatID), zap.Error(err))
		return
	}
	s.messageID, s.photo = sent.MessageID, false
}

// adminResult применяет ответ консоли: экран, режим ввода и алерт
func (s *Session) adminResult(ctx context.Context, res admin.Result, fresh bool) string {
	if res.Prompt != nil {
		s.input = inputAdmin
		s.prompt = res.Prompt
	} else if s.input == inputAdmin {
		s.input = inputNone
		s.prompt = nil
	}
	if res.Screen != nil {
		s.show(*res.Screen, fresh)
	}
	return res.Alert
}

// answer закрывает "часики" на кнопке. Длинный текст уходит отдельным сообщением.
func (s *Session) answer(callbackID, text string) {
	tg := s.bot.deps.API
	if utf8.RuneCountInString(text) > callbackTextLimit {
		if _, err := tg.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
			logger.Debug("answer callback", zap.Error(err))
		}
		s.say(text)
		return
	}
	cb := tgbotapi.NewCallback(callbackID, text)
	if strings.HasPrefix(text, "❌") || strings.HasPrefix(text, "⚠️") {
		cb = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := tg.Request(cb); err != nil {
		logger.Debug("answer callback", zap.Error(err))
	}
}

// say - простое сообщение в чат
func (s *Session) say(text string) {
	if _, err := s.bot.deps.API.Send(tgbotapi.NewMessage(s.chatID, text)); err != nil {
		logger.Warn("send message", zap.Int64("chat_id", s.chatID), zap.Error(err))
	}
}
