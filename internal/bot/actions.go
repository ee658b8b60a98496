package bot

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"strconv"
	"strings"
	"zyvpn-miniapp/internal/api"
	"zyvpn-miniapp/internal/host"
	"zyvpn-miniapp/internal/logger"
	"zyvpn-miniapp/internal/payment"
	"zyvpn-miniapp/internal/views"
	"zyvpn-miniapp/internal/wallet"
)

const txHistory = 10

const (
	msgEnterPromo    = "Отправьте промокод сообщением"
	msgEnterReferral = "Отправьте реферальный код друга сообщением"
	msgUnknownAction = "Неизвестное действие"
	msgPlanMissing   = "Тариф не найден"
	msgTrialOK       = "🎉 Пробный период активирован!"
	msgServerChanged = "Сервер изменён"
	msgServerPicked  = "Сервер выбран"
	msgBadAddress    = "Неверный адрес кошелька. Пришлите адрес TON ещё раз."
	msgPromoOK       = "Промокод активирован"
	msgReferralOK    = "Реферальный код применён"
	msgNoTransfer    = "Нет ожидающего перевода"
)

// selectPlan открывает оплату выбранного тарифа
func (s *Session) selectPlan(raw string) string {
	id, err := uuid.Parse(raw)
	if err != nil {
		return msgPlanMissing
	}
	var plan *api.Plan
	for _, p := range s.store.Snapshot().Plans {
		if p.ID == id {
			plan = &p
			break
		}
	}
	if plan == nil {
		return msgPlanMissing
	}
	s.plan = plan
	s.method = api.ProviderTON
	s.open(views.ScreenPayment, false)
	return ""
}

func (s *Session) selectMethod(ctx context.Context, p api.Provider) string {
	switch p {
	case api.ProviderTON, api.ProviderStars, api.ProviderBalance:
	default:
		return msgUnknownAction
	}
	if s.busy {
		return payment.Message(payment.ErrInProgress)
	}
	if p == api.ProviderBalance && s.plan != nil && !views.CanPayFromBalance(s.store.Snapshot().Balance, s.plan.PriceTON) {
		return payment.Message(payment.ErrInsufficientBalance)
	}
	s.method = p
	s.payErr = ""
	s.render(ctx, false)
	return ""
}

// pay запускает оплату в фоне. Итог приходит в afterPayment.
func (s *Session) pay(ctx context.Context) string {
	if s.plan == nil {
		return msgPlanMissing
	}
	if s.busy || s.flow.Busy() {
		return payment.Message(payment.ErrInProgress)
	}
	plan, method := *s.plan, s.method
	server := s.store.Snapshot().SelectedServerID
	s.busy = true
	s.payErr = ""
	s.render(ctx, false)

	go func() {
		defer logger.NotifyOnPanic("pay plan")
		_, err := s.flow.PayPlan(ctx, plan, method, server)
		s.afterPayment(ctx, err, views.ScreenKey, func(msg string) { s.payErr = msg })
	}()
	return ""
}

func (s *Session) selectAmount(ctx context.Context, raw string) string {
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil || amount <= 0 {
		return msgUnknownAction
	}
	if s.busy {
		return payment.Message(payment.ErrInProgress)
	}
	s.topUpAmount = amount
	s.topUpErr = ""
	s.render(ctx, false)
	return ""
}

func (s *Session) selectTopUpMethod(ctx context.Context, p api.Provider) string {
	if p != api.ProviderTON && p != api.ProviderStars {
		return msgUnknownAction
	}
	if s.busy {
		return payment.Message(payment.ErrInProgress)
	}
	s.topUpMethod = p
	s.topUpErr = ""
	s.render(ctx, false)
	return ""
}

func (s *Session) topUp(ctx context.Context) string {
	if s.topUpAmount <= 0 {
		return "Выберите сумму"
	}
	if s.busy || s.flow.Busy() {
		return payment.Message(payment.ErrInProgress)
	}
	amount, method := s.topUpAmount, s.topUpMethod
	s.busy = true
	s.topUpErr = ""
	s.render(ctx, false)

	go func() {
		defer logger.NotifyOnPanic("top up")
		_, err := s.flow.TopUp(ctx, amount, method)
		s.afterPayment(ctx, err, views.ScreenBalance, func(msg string) { s.topUpErr = msg })
	}()
	return ""
}

// afterPayment - итог фоновой оплаты. Если пользователь ушёл с экрана, ничего не показываем.
func (s *Session) afterPayment(ctx context.Context, err error, next string, setErr func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		msg := payment.Message(err)
		setErr(msg)
		if aerr := s.bridge.ShowAlert(ctx, msg); aerr != nil {
			logger.Warn("payment error alert", zap.Error(aerr))
		}
		s.render(ctx, true)
		return
	}
	if next == views.ScreenBalance {
		s.topUpAmount = 0
	}
	nctx := s.navigate(next)
	s.load(nctx)
	s.render(nctx, true)
}

// selectServer - без подписки запоминает выбор для покупки, с подпиской меняет сервер
func (s *Session) selectServer(ctx context.Context, raw string) string {
	id, err := uuid.Parse(raw)
	if err != nil {
		return msgUnknownAction
	}
	st := s.store.Snapshot()
	if !st.HasActiveSubscription() {
		s.store.SetSelectedServerID(&id)
		s.render(ctx, false)
		return msgServerPicked
	}
	if views.IsCurrent(st.CurrentServerID(), id) {
		return ""
	}

	res, err := s.client.SwitchServer(ctx, id)
	if err != nil {
		var re *api.RequestError
		s.needMore = errors.As(err, &re) && (re.NeedMore || api.IsPaymentRequired(err))
		s.srvErr = payment.Message(err)
		logger.Info("switch server rejected", zap.Int64("user_id", s.userID), zap.Error(err))
		s.render(ctx, false)
		return ""
	}
	s.srvErr, s.needMore = "", false
	if res.Key != "" {
		s.store.ApplyKey(res.Key)
	}
	_ = s.store.FetchSubscriptionStatus(ctx)
	_ = s.store.FetchConnectionKey(ctx)
	_ = s.store.FetchServers(ctx)
	if !res.UsedFree {
		_ = s.store.FetchBalance(ctx)
	}
	s.loadSwitchInfo(ctx)
	s.render(ctx, false)
	return msgServerChanged
}

func (s *Session) trial(ctx context.Context) string {
	res, err := s.client.ActivateTrial(ctx)
	if err != nil {
		return "❌ " + payment.Message(err)
	}
	if res.Key != "" {
		s.store.ApplyKey(res.Key)
	}
	_ = s.store.FetchUser(ctx)
	s.open(views.ScreenKey, false)
	return msgTrialOK
}

// askInput переводит чат в режим ввода кода
func (s *Session) askInput(mode inputMode, prompt string) string {
	s.input = mode
	s.prompt = nil
	s.say(prompt)
	return ""
}

func (s *Session) applyPromo(ctx context.Context, text string) {
	code := strings.TrimSpace(text)
	if code == "" {
		return
	}
	s.input = inputNone
	res, err := s.client.ApplyPromoCode(ctx, code)
	switch {
	case err != nil:
		s.promoOK, s.promoErr = "", payment.Message(err)
	case !res.Success:
		s.promoOK, s.promoErr = "", res.Message
	default:
		s.promoOK, s.promoErr = res.Message, ""
		if s.promoOK == "" {
			s.promoOK = msgPromoOK
		}
		if res.NewBalance != nil {
			s.store.ApplyBalance(*res.NewBalance)
		}
		_ = s.store.FetchUser(ctx)
		_ = s.store.FetchSubscriptionStatus(ctx)
		s.loadTransactions(ctx)
	}
	if s.screen != views.ScreenBalance {
		ok, bad := s.promoOK, s.promoErr
		ctx = s.navigate(views.ScreenBalance)
		s.promoOK, s.promoErr = ok, bad
		s.load(ctx)
	}
	s.render(ctx, true)
}

func (s *Session) applyReferral(ctx context.Context, text string) {
	code := strings.TrimSpace(text)
	if code == "" {
		return
	}
	s.input = inputNone
	if err := s.redeemReferral(ctx, code); err != nil {
		s.refMsg = "❌ " + payment.Message(err)
	} else {
		s.refMsg = "✅ " + msgReferralOK
	}
	_ = s.store.FetchReferralStats(ctx)
	s.render(ctx, true)
}

// shareReferral присылает кнопку, открывающую окно "поделиться" в Telegram
func (s *Session) shareReferral(ctx context.Context) string {
	link := s.store.Snapshot().ReferralLink
	if link == "" {
		return "Ссылка ещё загружается"
	}
	if err := s.bridge.OpenLink(ctx, "📤 Отправьте приглашение другу:", views.ReferralShareURL(link)); err != nil {
		logger.Warn("open share link", zap.Int64("user_id", s.userID), zap.Error(err))
		return "❌ Не удалось открыть ссылку"
	}
	return ""
}

// redeemReferral применяет код друга. Любой ответ сервера по существу закрывает
// повторные попытки, сетевые ошибки - нет.
func (s *Session) redeemReferral(ctx context.Context, code string) error {
	res, err := s.client.ApplyReferralCode(ctx, code)
	var re *api.RequestError
	if err != nil && !errors.As(err, &re) {
		return err
	}
	if prefs := s.bot.deps.Prefs; prefs != nil {
		if merr := prefs.MarkReferralApplied(ctx, s.userID); merr != nil {
			logger.Warn("mark referral applied", zap.Int64("user_id", s.userID), zap.Error(merr))
		}
	}
	s.refApplied = true
	if err != nil {
		return err
	}
	if !res.Success {
		return errors.New(res.Message)
	}
	logger.Info("referral code applied", zap.Int64("user_id", s.userID), zap.String("code", code))
	return nil
}

func (s *Session) onboarding(action string) string {
	if prefs := s.bot.deps.Prefs; prefs != nil {
		if err := prefs.MarkOnboardingSeen(s.current(), s.userID); err != nil {
			logger.Warn("mark onboarding seen", zap.Int64("user_id", s.userID), zap.Error(err))
		}
	}
	if action == "promo" {
		s.open(views.ScreenBalance, false)
		return s.askInput(inputPromo, msgEnterPromo)
	}
	s.open(views.ScreenHome, false)
	return ""
}

// submitAddress - ответ на запрос адреса кошелька
func (s *Session) submitAddress(ctx context.Context, text string) {
	addr := strings.TrimSpace(text)
	if err := s.wallet.SubmitAddress(ctx, addr); err != nil {
		if errors.Is(err, wallet.ErrInvalidAddress) {
			s.say(msgBadAddress)
			return
		}
		logger.Warn("submit wallet address", zap.Int64("user_id", s.userID), zap.Error(err))
		s.say("❌ " + err.Error())
		return
	}
	s.say("Кошелек подключен: " + views.ShortAddr(addr))
}

// walletAction - кнопки под запросом перевода и отключение кошелька
func (s *Session) walletAction(ctx context.Context, data string) string {
	switch data {
	case wallet.CallbackSent:
		if !s.wallet.AwaitingConfirmation() {
			return msgNoTransfer
		}
		s.wallet.Confirm(true)
		return "Проверяем перевод..."
	case wallet.CallbackCancel:
		switch {
		case s.wallet.AwaitingAddress():
			s.wallet.CancelConnect()
		case s.wallet.AwaitingConfirmation():
			s.wallet.Confirm(false)
		default:
			return msgNoTransfer
		}
		return ""
	case wallet.CallbackDisconnect:
		if s.wallet.AwaitingConfirmation() {
			return "Сначала завершите или отмените перевод"
		}
		if err := s.wallet.Disconnect(ctx); err != nil {
			logger.Warn("disconnect wallet", zap.Int64("user_id", s.userID), zap.Error(err))
			return "❌ " + err.Error()
		}
		s.render(ctx, false)
		return "Кошелёк отключён"
	}
	return msgUnknownAction
}

// invoiceCheck - пользователь говорит, что оплатил счёт; статус уточняем у сервера
func (s *Session) invoiceCheck(payload string) string {
	if !s.bridge.ResolveInvoice(payload, host.InvoicePending) {
		return "Счёт уже закрыт"
	}
	return "Проверяем оплату..."
}
