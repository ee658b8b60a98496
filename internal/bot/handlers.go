package bot

import (
	"context"
	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"strings"
	"zyvpn-miniapp/internal/admin"
	"zyvpn-miniapp/internal/api"
	"zyvpn-miniapp/internal/db"
	"zyvpn-miniapp/internal/host"
	"zyvpn-miniapp/internal/logger"
	"zyvpn-miniapp/internal/views"
	"zyvpn-miniapp/internal/wallet"
)

const (
	msgTooFast        = "Пожалуйста, не так быстро! Подождите пару секунд..."
	msgUnknownCommand = "Неизвестная команда. Используйте /help для списка всех возможностей."
	msgWelcome        = "Добро пожаловать! Меню команд всегда под полем ввода."
	msgPaidNoWaiter   = "Оплата получена. Статус подписки обновится в течение минуты, проверьте /key."
)

// HandleUpdate обрабатывает один апдейт. Вызывается из очереди пользователя,
// поэтому апдейты одного чата никогда не идут параллельно.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer logger.NotifyOnPanic("HandleUpdate")

	switch {
	case update.PreCheckoutQuery != nil:
		updatesTotal.WithLabelValues("pre_checkout").Inc()
		b.handlePreCheckout(update.PreCheckoutQuery)
	case update.CallbackQuery != nil:
		updatesTotal.WithLabelValues("callback").Inc()
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		updatesTotal.WithLabelValues("message").Inc()
		b.handleMessage(ctx, update.Message)
	default:
		updatesTotal.WithLabelValues("other").Inc()
	}
}

// handlePreCheckout подтверждает оплату Stars. Счёт выставлен сервером, проверять нечего.
func (b *Bot) handlePreCheckout(q *tgbotapi.PreCheckoutQuery) {
	if s := b.lookup(q.From.ID); s != nil && !s.bridge.HasInvoice(q.InvoicePayload) {
		logger.Info("pre checkout without waiting invoice", zap.Int64("user_id", q.From.ID), zap.String("payload", q.InvoicePayload))
	}
	if _, err := b.deps.API.Request(tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: q.ID, OK: true}); err != nil {
		logger.Warn("answer pre checkout", zap.Error(err))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	s := b.session(cb.From)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = ctx
	s.bridge.UpdateUser(host.UserFromTelegram(cb.From))

	if !s.isAdmin && !b.limiter.Allow(s.userID, actionClass(cb.Data)) {
		rateLimitedTotal.Inc()
		s.answer(cb.ID, msgTooFast)
		return
	}
	logger.Debug("callback", zap.Int64("user_id", s.userID), zap.String("data", cb.Data))
	s.answer(cb.ID, s.route(cb.Data))
}

// route разбирает callback data по префиксам и возвращает текст ответа на кнопку
func (s *Session) route(data string) string {
	ctx := s.current()
	switch {
	case data == views.CbNoop:
		return ""
	case strings.HasPrefix(data, views.CbNav):
		s.open(strings.TrimPrefix(data, views.CbNav), false)
		return ""
	case strings.HasPrefix(data, views.CbOnboarding):
		return s.onboarding(strings.TrimPrefix(data, views.CbOnboarding))
	case strings.HasPrefix(data, views.CbPlan):
		return s.selectPlan(strings.TrimPrefix(data, views.CbPlan))
	case strings.HasPrefix(data, views.CbPayMethod):
		return s.selectMethod(ctx, api.Provider(strings.TrimPrefix(data, views.CbPayMethod)))
	case data == views.CbPay:
		return s.pay(ctx)
	case strings.HasPrefix(data, views.CbTopUpAmount):
		return s.selectAmount(ctx, strings.TrimPrefix(data, views.CbTopUpAmount))
	case strings.HasPrefix(data, views.CbTopUpMethod):
		return s.selectTopUpMethod(ctx, api.Provider(strings.TrimPrefix(data, views.CbTopUpMethod)))
	case data == views.CbTopUp:
		return s.topUp(ctx)
	case strings.HasPrefix(data, views.CbServer):
		return s.selectServer(ctx, strings.TrimPrefix(data, views.CbServer))
	case data == views.CbTrial:
		return s.trial(ctx)
	case data == views.CbPromo:
		return s.askInput(inputPromo, msgEnterPromo)
	case data == views.CbRefApply:
		return s.askInput(inputReferral, msgEnterReferral)
	case data == views.CbRefShare:
		return s.shareReferral(ctx)
	case strings.HasPrefix(data, views.CbAdmin):
		if s.screen != views.ScreenAdmin {
			ctx = s.navigate(views.ScreenAdmin)
		}
		return s.adminResult(ctx, s.console.Handle(ctx, data), false)
	case strings.HasPrefix(data, host.CallbackInvoiceCheck):
		return s.invoiceCheck(strings.TrimPrefix(data, host.CallbackInvoiceCheck))
	case strings.HasPrefix(data, "wallet:"):
		return s.walletAction(ctx, data)
	}
	logger.Info("unknown callback", zap.Int64("user_id", s.userID), zap.String("data", data))
	return msgUnknownAction
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.From == nil || !m.Chat.IsPrivate() {
		return
	}
	if m.SuccessfulPayment != nil {
		b.handleSuccessfulPayment(m)
		return
	}

	s := b.session(m.From)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = ctx
	s.bridge.UpdateUser(host.UserFromTelegram(m.From))
	s.touch(ctx, m)

	class := actionInput
	if m.IsCommand() {
		class = actionClass(m.Command())
	}
	if !s.isAdmin && !b.limiter.Allow(s.userID, class) {
		rateLimitedTotal.Inc()
		msg := tgbotapi.NewMessage(s.chatID, msgTooFast)
		msg.ReplyMarkup = ReplyKeyboard(s.isAdmin)
		if _, err := b.deps.API.Send(msg); err != nil {
			logger.Warn("send rate limit notice", zap.Error(err))
		}
		return
	}

	if m.IsCommand() {
		s.command(m.Command(), strings.TrimSpace(m.CommandArguments()))
		return
	}
	s.text(m.Text)
}

// handleSuccessfulPayment закрывает ожидание инвойса в сессии
func (b *Bot) handleSuccessfulPayment(m *tgbotapi.Message) {
	p := m.SuccessfulPayment
	logger.Info("successful payment",
		zap.Int64("user_id", m.From.ID),
		zap.String("payload", p.InvoicePayload),
		zap.String("currency", p.Currency),
		zap.Int("amount", p.TotalAmount),
		zap.String("charge_id", p.TelegramPaymentChargeID))
	if s := b.lookup(m.From.ID); s != nil && s.bridge.ResolveInvoice(p.InvoicePayload, host.InvoicePaid) {
		return
	}
	if _, err := b.deps.API.Send(tgbotapi.NewMessage(m.Chat.ID, msgPaidNoWaiter)); err != nil {
		logger.Warn("send payment notice", zap.Error(err))
	}
}

// touch сохраняет профиль чата в локальной базе
func (s *Session) touch(ctx context.Context, m *tgbotapi.Message) {
	prefs := s.bot.deps.Prefs
	if prefs == nil {
		return
	}
	err := prefs.Touch(ctx, db.ChatPref{
		TelegramID:   m.From.ID,
		ChatID:       m.Chat.ID,
		FirstName:    m.From.FirstName,
		LastName:     m.From.LastName,
		Username:     m.From.UserName,
		LanguageCode: m.From.LanguageCode,
	})
	if err != nil {
		logger.Warn("touch chat prefs", zap.Int64("user_id", s.userID), zap.Error(err))
	}
}

func (s *Session) command(cmd, args string) {
	switch {
	case cmd == "start":
		s.start(args)
	case cmd == "help":
		s.open(views.ScreenHelp, true)
	case cmd == "key":
		s.open(views.ScreenKey, true)
	case cmd == "balance":
		s.open(views.ScreenBalance, true)
	case cmd == "referral":
		s.open(views.ScreenReferral, true)
	case cmd == "servers":
		s.open(views.ScreenServers, true)
	case admin.IsCommand(cmd):
		ctx := s.navigate(views.ScreenAdmin)
		if alert := s.adminResult(ctx, s.console.Command(ctx, cmd, args), true); alert != "" {
			s.say(alert)
		}
	default:
		msg := tgbotapi.NewMessage(s.chatID, msgUnknownCommand)
		msg.ReplyMarkup = ReplyKeyboard(s.isAdmin)
		if _, err := s.bot.deps.API.Send(msg); err != nil {
			logger.Warn("send unknown command", zap.Error(err))
		}
	}
}

// start - вход в приложение: сброс состояния, реферальный код из ссылки, онбординг
func (s *Session) start(args string) {
	ctx := s.navigate(views.ScreenHome)
	s.store.Reset()
	s.booted = false
	if err := s.bridge.Ready(ctx); err != nil {
		logger.Warn("bridge ready", zap.Int64("user_id", s.userID), zap.Error(err))
	}
	_ = s.bridge.Expand(ctx)

	if code, ok := strings.CutPrefix(args, "ref_"); ok && code != "" {
		s.startReferral(ctx, code)
	}
	s.isAdmin = s.console.Recheck(ctx)

	welcome := tgbotapi.NewMessage(s.chatID, msgWelcome)
	welcome.ReplyMarkup = ReplyKeyboard(s.isAdmin)
	if _, err := s.bot.deps.API.Send(welcome); err != nil {
		logger.Warn("send welcome", zap.Error(err))
	}

	if prefs := s.bot.deps.Prefs; prefs != nil {
		seen, err := prefs.OnboardingSeen(ctx, s.userID)
		if err != nil {
			logger.Warn("onboarding flag", zap.Int64("user_id", s.userID), zap.Error(err))
		}
		if err == nil && !seen {
			s.screen = screenOnboarding
			s.render(ctx, true)
			return
		}
	}
	s.load(ctx)
	s.render(ctx, true)
}

// startReferral применяет код из ссылки приглашения, один раз на пользователя
func (s *Session) startReferral(ctx context.Context, code string) {
	if prefs := s.bot.deps.Prefs; prefs != nil {
		applied, err := prefs.ReferralApplied(ctx, s.userID)
		if err != nil {
			logger.Warn("referral flag", zap.Int64("user_id", s.userID), zap.Error(err))
			return
		}
		if applied {
			return
		}
	}
	if err := s.redeemReferral(ctx, code); err != nil {
		logger.Info("start referral rejected", zap.Int64("user_id", s.userID), zap.String("code", code), zap.Error(err))
	}
}

// text - сообщение без команды: адрес кошелька или ввод в текущем режиме
func (s *Session) text(text string) {
	ctx := s.current()
	switch {
	case s.wallet.AwaitingAddress():
		s.submitAddress(ctx, text)
	case s.input == inputPromo:
		s.applyPromo(ctx, text)
	case s.input == inputReferral:
		s.applyReferral(ctx, text)
	case s.input == inputAdmin && s.prompt != nil:
		if alert := s.adminResult(ctx, s.console.Submit(ctx, *s.prompt, text), true); alert != "" {
			s.say(alert)
		}
	case wallet.ValidAddress(strings.TrimSpace(text)):
		s.say("Кошелёк подключается при оплате. Выберите тариф или сумму пополнения.")
	default:
		msg := tgbotapi.NewMessage(s.chatID, msgUnknownCommand)
		msg.ReplyMarkup = ReplyKeyboard(s.isAdmin)
		if _, err := s.bot.deps.API.Send(msg); err != nil {
			logger.Warn("send unknown text", zap.Error(err))
		}
	}
}
