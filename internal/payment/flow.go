package payment

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"slices"
	"strconv"
	"sync"
	"time"
	"zyvpn-miniapp/internal/api"
	"zyvpn-miniapp/internal/host"
	"zyvpn-miniapp/internal/logger"
	"zyvpn-miniapp/internal/store"
	"zyvpn-miniapp/internal/wallet"
)

const refreshTimeout = 15 * time.Second

// API - методы сервера, которые нужны оплате
type API interface {
	BuySubscription(ctx context.Context, planID uuid.UUID, provider api.Provider, serverID *uuid.UUID) (*api.BuyResult, error)
	InitTONPayment(ctx context.Context, paymentID uuid.UUID) (*api.TONPaymentInfo, error)
	VerifyTONPayment(ctx context.Context, paymentID uuid.UUID, receipt string) (*api.VerifyResult, error)
	InitStarsPayment(ctx context.Context, paymentID uuid.UUID) (*api.StarsInvoice, error)
	GetPaymentStatus(ctx context.Context, paymentID uuid.UUID) (*api.PaymentStatus, error)
	PayFromBalance(ctx context.Context, planID uuid.UUID) (*api.BalancePayResult, error)
	InitTopUp(ctx context.Context, amount float64, provider api.Provider) (*api.TopUpIntent, error)
	GetTopUpTONInfo(ctx context.Context, paymentID uuid.UUID) (*api.TONPaymentInfo, error)
	InitTopUpStars(ctx context.Context, paymentID uuid.UUID) (*api.StarsInvoice, error)
	VerifyTopUp(ctx context.Context, paymentID uuid.UUID, receipt string) (*api.VerifyResult, error)
}

type Kind string

const (
	KindPlan  Kind = "plan"
	KindTopUp Kind = "topup"
)

// Outcome - итог успешной попытки
type Outcome struct {
	Kind       Kind
	Provider   api.Provider
	PaymentID  uuid.UUID
	Amount     float64
	Key        string
	NewBalance *float64
}

type Config struct {
	PollInterval time.Duration
	MaxAttempts  int
	TxValidity   time.Duration
}

// Flow - оплата в рамках одной сессии. Одновременно идёт не больше одной попытки.
type Flow struct {
	api      API
	host     host.Bridge
	wallet   wallet.Connector
	store    *store.Store
	poller   Poller
	validity time.Duration
	now      func() time.Time

	mu        sync.Mutex
	state     State
	running   bool
	observers []func(State)
}

func NewFlow(client API, bridge host.Bridge, w wallet.Connector, st *store.Store, cfg Config) *Flow {
	if cfg.TxValidity <= 0 {
		cfg.TxValidity = 600 * time.Second
	}
	return &Flow{
		api:      client,
		host:     bridge,
		wallet:   w,
		store:    st,
		poller:   Poller{Interval: cfg.PollInterval, MaxAttempts: cfg.MaxAttempts},
		validity: cfg.TxValidity,
		now:      time.Now,
		state:    StateIdle,
	}
}

// OnState подписывает наблюдателя на все переходы
func (f *Flow) OnState(fn func(State)) {
	f.mu.Lock()
	f.observers = append(f.observers, fn)
	f.mu.Unlock()
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Busy - идёт попытка, кнопки оплаты неактивны
func (f *Flow) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	observers := slices.Clone(f.observers)
	f.mu.Unlock()
	for _, fn := range observers {
		fn(s)
	}
}

func (f *Flow) start() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return false
	}
	f.running = true
	return true
}

func (f *Flow) stop() {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
}

// PayPlan оплачивает тариф. serverID - выбранный пользователем сервер, может быть nil.
func (f *Flow) PayPlan(ctx context.Context, plan api.Plan, provider api.Provider, serverID *uuid.UUID) (*Outcome, error) {
	if !f.start() {
		return nil, ErrInProgress
	}
	defer f.stop()

	out := &Outcome{Kind: KindPlan, Provider: provider, Amount: plan.PriceTON}
	var err error
	switch provider {
	case api.ProviderBalance:
		err = f.payFromBalance(ctx, plan, out)
	case api.ProviderTON:
		err = f.payPlanTON(ctx, plan, serverID, out)
	case api.ProviderStars:
		err = f.payPlanStars(ctx, plan, serverID, out)
	default:
		err = fmt.Errorf("unknown payment provider %q", provider)
	}
	return f.finish(ctx, out, err)
}

// TopUp пополняет баланс на amount TON через TON или Stars
func (f *Flow) TopUp(ctx context.Context, amount float64, provider api.Provider) (*Outcome, error) {
	if !f.start() {
		return nil, ErrInProgress
	}
	defer f.stop()

	out := &Outcome{Kind: KindTopUp, Provider: provider, Amount: amount}
	var err error
	switch provider {
	case api.ProviderTON:
		err = f.topUpTON(ctx, amount, out)
	case api.ProviderStars:
		err = f.topUpStars(ctx, amount, out)
	default:
		err = fmt.Errorf("unknown top-up provider %q", provider)
	}
	return f.finish(ctx, out, err)
}

func (f *Flow) payFromBalance(ctx context.Context, plan api.Plan, out *Outcome) error {
	if f.store.Snapshot().Balance < plan.PriceTON {
		return ErrInsufficientBalance
	}
	f.setState(StateIntentCreated)
	res, err := f.api.PayFromBalance(ctx, plan.ID)
	if err != nil {
		if api.IsPaymentRequired(err) {
			return fmt.Errorf("%w: %w", ErrInsufficientBalance, err)
		}
		return err
	}
	if !res.Success {
		return &Error{Msg: msgFailed}
	}
	out.Key = res.Key
	out.NewBalance = &res.NewBalance
	f.store.ApplyBalance(res.NewBalance)
	return nil
}

func (f *Flow) payPlanTON(ctx context.Context, plan api.Plan, serverID *uuid.UUID, out *Outcome) error {
	res, err := f.api.BuySubscription(ctx, plan.ID, api.ProviderTON, serverID)
	if err != nil {
		return err
	}
	out.PaymentID = res.Payment.ID
	f.setState(StateIntentCreated)

	info := res.TONInfo
	if info == nil {
		if info, err = f.api.InitTONPayment(ctx, out.PaymentID); err != nil {
			return &Error{Msg: msgNoTONInfo, Err: err}
		}
	}
	nano, err := wallet.ToNano(info.Amount)
	if err != nil {
		return &Error{Msg: msgNoTONInfo, Err: err}
	}
	return f.transfer(ctx, out, info.WalletAddress, nano, f.api.VerifyTONPayment)
}

func (f *Flow) topUpTON(ctx context.Context, amount float64, out *Outcome) error {
	nano, err := wallet.FloatToNano(amount)
	if err != nil {
		return err
	}
	intent, err := f.api.InitTopUp(ctx, amount, api.ProviderTON)
	if err != nil {
		return err
	}
	out.PaymentID = intent.PaymentID
	f.setState(StateIntentCreated)

	info, err := f.api.GetTopUpTONInfo(ctx, intent.PaymentID)
	if err != nil {
		return err
	}
	return f.transfer(ctx, out, info.WalletAddress, nano, f.api.VerifyTopUp)
}

type verifyFunc func(ctx context.Context, paymentID uuid.UUID, receipt string) (*api.VerifyResult, error)

// transfer: кошелёк (с подключением, если его нет), сверка квитанции и опрос
func (f *Flow) transfer(ctx context.Context, out *Outcome, to, nano string, verify verifyFunc) error {
	f.setState(StateAwaitingWallet)
	if f.wallet.Address() == "" {
		if _, err := f.wallet.Connect(ctx); err != nil {
			return err
		}
	}

	tx := wallet.Transaction{
		ValidUntil: f.now().Add(f.validity).Unix(),
		Messages:   []wallet.Message{{Address: to, Amount: nano}},
	}
	receipt, err := f.wallet.SendTransaction(ctx, tx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Msg: msgTxFailed + err.Error(), Err: err}
	}

	f.setState(StateSubmitted)
	res, err := verify(ctx, out.PaymentID, receipt.Value)
	if err != nil {
		return err
	}
	if res.Success {
		out.Key = res.Key
		out.NewBalance = res.NewBalance
		return nil
	}
	return f.poll(ctx, out)
}

func (f *Flow) poll(ctx context.Context, out *Outcome) error {
	f.setState(StatePolling)
	st, err := f.poller.Run(ctx, func(ctx context.Context) (*api.PaymentStatus, error) {
		return f.api.GetPaymentStatus(ctx, out.PaymentID)
	})
	if err != nil {
		if errors.Is(err, ErrPollTimeout) {
			return &Error{Msg: msgTxNotFound, Err: err}
		}
		return err
	}
	if st.Status == api.PaymentFailed {
		return &Error{Msg: msgTxNotFound}
	}
	if st.Key != nil {
		out.Key = *st.Key
	}
	out.NewBalance = st.NewBalance
	return nil
}

func (f *Flow) payPlanStars(ctx context.Context, plan api.Plan, serverID *uuid.UUID, out *Outcome) error {
	res, err := f.api.BuySubscription(ctx, plan.ID, api.ProviderStars, serverID)
	if err != nil {
		return err
	}
	out.PaymentID = res.Payment.ID
	f.setState(StateIntentCreated)
	return f.invoice(ctx, out, f.api.InitStarsPayment)
}

func (f *Flow) topUpStars(ctx context.Context, amount float64, out *Outcome) error {
	intent, err := f.api.InitTopUp(ctx, amount, api.ProviderStars)
	if err != nil {
		return err
	}
	out.PaymentID = intent.PaymentID
	f.setState(StateIntentCreated)
	return f.invoice(ctx, out, f.api.InitTopUpStars)
}

type invoiceFunc func(ctx context.Context, paymentID uuid.UUID) (*api.StarsInvoice, error)

func (f *Flow) invoice(ctx context.Context, out *Outcome, create invoiceFunc) error {
	inv, err := create(ctx, out.PaymentID)
	if err != nil {
		return err
	}
	if inv.InvoiceLink == "" {
		return &Error{Msg: msgNoInvoice}
	}

	f.setState(StateAwaitingWallet)
	status, err := f.host.OpenInvoice(ctx, inv.InvoiceLink, out.PaymentID.String())
	if err != nil {
		return err
	}
	switch status {
	case host.InvoicePaid:
		return nil
	case host.InvoiceCancelled:
		return &Error{Msg: msgCancelled}
	case host.InvoiceFailed:
		return &Error{Msg: msgFailed}
	default:
		// pending: результат узнаем у сервера
		return f.poll(ctx, out)
	}
}

// finish - единственное место, где пользователь получает итог попытки
func (f *Flow) finish(ctx context.Context, out *Outcome, err error) (*Outcome, error) {
	result := "completed"
	defer func() {
		attemptsTotal.WithLabelValues(string(out.Kind), string(out.Provider), result).Inc()
	}()

	if err != nil {
		if ctx.Err() != nil {
			// ушли с экрана: ничего не показываем, намерение на сервере остаётся
			result = "abandoned"
			f.setState(StateIdle)
			logger.Info("payment attempt abandoned",
				zap.String("kind", string(out.Kind)),
				zap.String("payment_id", out.PaymentID.String()))
			return nil, err
		}
		result = "failed"
		f.setState(StateFailed)
		f.host.Haptic(ctx, host.HapticError)
		logger.Warn("payment attempt failed",
			zap.String("kind", string(out.Kind)),
			zap.String("provider", string(out.Provider)),
			zap.String("payment_id", out.PaymentID.String()),
			zap.Error(err))
		return nil, err
	}

	f.setState(StateCompleted)
	f.host.Haptic(ctx, host.HapticSuccess)
	msg := msgPlanPaid
	if out.Kind == KindTopUp {
		msg = fmt.Sprintf(msgTopUpPaid, strconv.FormatFloat(out.Amount, 'f', -1, 64))
	}
	if err := f.host.ShowAlert(ctx, msg); err != nil {
		logger.Warn("payment success alert", zap.Error(err))
	}
	logger.Info("payment attempt completed",
		zap.String("kind", string(out.Kind)),
		zap.String("provider", string(out.Provider)),
		zap.String("payment_id", out.PaymentID.String()))

	f.refresh(ctx, out)
	return out, nil
}

func (f *Flow) refresh(ctx context.Context, out *Outcome) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
	defer cancel()

	if out.NewBalance != nil {
		f.store.ApplyBalance(*out.NewBalance)
	}
	if err := f.store.FetchUser(rctx); err != nil {
		logger.Warn("refresh user after payment", zap.Error(err))
	}
	if out.Kind != KindPlan {
		return
	}
	if out.Key != "" {
		f.store.ApplyKey(out.Key)
	} else if err := f.store.FetchConnectionKey(rctx); err != nil {
		logger.Warn("refresh key after payment", zap.Error(err))
	}
	if err := f.store.FetchSubscriptionStatus(rctx); err != nil {
		logger.Warn("refresh subscription after payment", zap.Error(err))
	}
}
