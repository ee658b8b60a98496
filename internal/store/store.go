// Package store - состояние приложения одной сессии.
//
// Каждое действие Fetch* независимо и идемпотентно, порядок зависимых загрузок
// задаёт вызывающий. Ответ, пришедший после отмены ctx (пользователь ушёл
// с экрана), в состояние не попадает.
package store

import (
	"context"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"sync"
	"time"
	"zyvpn-miniapp/internal/api"
	"zyvpn-miniapp/internal/cache"
	"zyvpn-miniapp/internal/logger"
)

const ratesTTL = 5 * time.Minute

// API - методы удалённого API, которые нужны состоянию
type API interface {
	GetMe(ctx context.Context) (*api.User, error)
	GetPlans(ctx context.Context) ([]api.Plan, error)
	GetSubscriptionStatus(ctx context.Context) (*api.SubscriptionStatus, error)
	GetSubscriptionKey(ctx context.Context) (string, error)
	GetReferralStats(ctx context.Context) (*api.ReferralStats, error)
	GetReferralLink(ctx context.Context) (*api.ReferralLink, error)
	GetRates(ctx context.Context) (api.ExchangeRates, error)
	GetBalance(ctx context.Context) (float64, error)
	GetServers(ctx context.Context) ([]api.Server, error)
}

type State struct {
	User               *api.User
	Plans              []api.Plan
	SubscriptionStatus *api.SubscriptionStatus
	ReferralStats      *api.ReferralStats
	ReferralLink       string
	ReferralCode       string
	// ConnectionKey пустой, пока ключ не загружен или подписки нет
	ConnectionKey    string
	Rates            *api.ExchangeRates
	Servers          []api.Server
	Balance          float64
	SelectedServerID *uuid.UUID
	Loading          bool
	Error            string
}

// RatesOrFallback - курсы для расчёта цен на экране
func (s State) RatesOrFallback() api.ExchangeRates {
	if s.Rates == nil {
		return api.FallbackRates
	}
	return *s.Rates
}

// CurrentServerID - сервер активной подписки
func (s State) CurrentServerID() *uuid.UUID {
	if s.SubscriptionStatus != nil && s.SubscriptionStatus.Subscription != nil {
		return s.SubscriptionStatus.Subscription.ServerID
	}
	if s.User != nil && s.User.Subscription != nil {
		return s.User.Subscription.ServerID
	}
	return nil
}

// HasActiveSubscription - по статусу, а если его ещё нет - по подписке в профиле
func (s State) HasActiveSubscription() bool {
	if s.SubscriptionStatus != nil {
		return s.SubscriptionStatus.Active
	}
	return s.User != nil && s.User.Subscription != nil && s.User.Subscription.Status == api.SubscriptionActive
}

type Listener func(State)

type Store struct {
	api   API
	cache cache.Cache

	mu        sync.Mutex
	state     State
	inflight  int
	listeners []Listener
}

// New создаёт состояние сессии. rates может быть nil.
func New(client API, rates cache.Cache) *Store {
	return &Store{api: client, cache: rates}
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyState()
}

func (s *Store) copyState() State {
	st := s.state
	st.Plans = append([]api.Plan(nil), s.state.Plans...)
	st.Servers = append([]api.Server(nil), s.state.Servers...)
	return st
}

// Subscribe регистрирует слушателя, он вызывается после каждого изменения
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

func (s *Store) begin(reset bool) {
	s.mu.Lock()
	s.inflight++
	s.state.Loading = true
	if reset {
		s.state.Error = ""
	}
	s.mu.Unlock()
}

// end применяет результат, только если ctx ещё жив
func (s *Store) end(ctx context.Context, apply func(*State)) {
	s.update(func(st *State) {
		s.inflight--
		st.Loading = s.inflight > 0
		if ctx.Err() == nil {
			apply(st)
		}
	})
}

func (s *Store) update(apply func(*State)) {
	s.mu.Lock()
	apply(&s.state)
	snap := s.copyState()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, l := range listeners {
		l(snap)
	}
}

func (s *Store) FetchUser(ctx context.Context) error {
	s.begin(true)
	u, err := s.api.GetMe(ctx)
	s.end(ctx, func(st *State) {
		if err != nil {
			st.Error = err.Error()
			return
		}
		st.User = u
		st.Balance = u.Balance
		if u.ReferralCode != "" {
			st.ReferralCode = u.ReferralCode
		}
	})
	return err
}

func (s *Store) FetchPlans(ctx context.Context) error {
	s.begin(false)
	plans, err := s.api.GetPlans(ctx)
	s.end(ctx, func(st *State) {
		if err != nil {
			st.Error = err.Error()
			return
		}
		st.Plans = plans
	})
	return err
}

func (s *Store) FetchSubscriptionStatus(ctx context.Context) error {
	s.begin(false)
	status, err := s.api.GetSubscriptionStatus(ctx)
	s.end(ctx, func(st *State) {
		if err != nil {
			st.Error = err.Error()
			return
		}
		st.SubscriptionStatus = status
	})
	return err
}

// FetchConnectionKey - при ошибке ключ сбрасывается, ошибка не выставляется
func (s *Store) FetchConnectionKey(ctx context.Context) error {
	s.begin(false)
	key, err := s.api.GetSubscriptionKey(ctx)
	s.end(ctx, func(st *State) {
		if err != nil {
			st.ConnectionKey = ""
			return
		}
		st.ConnectionKey = key
	})
	return err
}

func (s *Store) FetchReferralStats(ctx context.Context) error {
	s.begin(false)
	stats, err := s.api.GetReferralStats(ctx)
	s.end(ctx, func(st *State) {
		if err != nil {
			st.Error = err.Error()
			return
		}
		st.ReferralStats = stats
	})
	return err
}

func (s *Store) FetchReferralLink(ctx context.Context) error {
	s.begin(false)
	link, err := s.api.GetReferralLink(ctx)
	s.end(ctx, func(st *State) {
		if err != nil {
			st.Error = err.Error()
			return
		}
		st.ReferralLink = link.Link
		if link.Code != "" {
			st.ReferralCode = link.Code
		}
	})
	return err
}

// FetchRates - сначала общий кэш, потом API. При ошибке - статичные курсы, без ошибки в состоянии.
func (s *Store) FetchRates(ctx context.Context) error {
	s.begin(false)
	rates, err := s.loadRates(ctx)
	s.end(ctx, func(st *State) {
		if err != nil {
			fb := api.FallbackRates
			st.Rates = &fb
			return
		}
		st.Rates = &rates
	})
	return err
}

func (s *Store) loadRates(ctx context.Context) (api.ExchangeRates, error) {
	var r api.ExchangeRates
	if s.cache != nil {
		found, err := s.cache.Get(ctx, cache.RatesKey, &r)
		if err != nil {
			logger.Warn("rates cache read", zap.Error(err))
		}
		if found && err == nil {
			return r, nil
		}
	}
	r, err := s.api.GetRates(ctx)
	if err != nil {
		return r, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.RatesKey, r, ratesTTL); err != nil {
			logger.Warn("rates cache write", zap.Error(err))
		}
	}
	return r, nil
}

// FetchBalance - при ошибке баланс 0
func (s *Store) FetchBalance(ctx context.Context) error {
	s.begin(false)
	balance, err := s.api.GetBalance(ctx)
	s.end(ctx, func(st *State) {
		if err != nil {
			st.Balance = 0
			return
		}
		st.Balance = balance
	})
	return err
}

func (s *Store) FetchServers(ctx context.Context) error {
	s.begin(false)
	servers, err := s.api.GetServers(ctx)
	s.end(ctx, func(st *State) {
		if err != nil {
			st.Error = err.Error()
			return
		}
		st.Servers = servers
	})
	return err
}

func (s *Store) SetSelectedServerID(id *uuid.UUID) {
	s.update(func(st *State) { st.SelectedServerID = id })
}

func (s *Store) SetError(msg string) {
	s.update(func(st *State) { st.Error = msg })
}

// ApplyKey - ключ пришёл в ответе оплаты или смены сервера
func (s *Store) ApplyKey(key string) {
	if key == "" {
		return
	}
	s.update(func(st *State) { st.ConnectionKey = key })
}

// ApplyBalance - новый баланс из ответа сервера
func (s *Store) ApplyBalance(balance float64) {
	s.update(func(st *State) {
		st.Balance = balance
		if st.User != nil {
			u := *st.User
			u.Balance = balance
			st.User = &u
		}
	})
}

// Reset очищает всё пользовательское, например при смене аккаунта
func (s *Store) Reset() {
	s.update(func(st *State) {
		rates := st.Rates
		*st = State{Rates: rates}
	})
}

// Bootstrap - порядок запуска приложения: курсы, затем профиль и тарифы параллельно
func (s *Store) Bootstrap(ctx context.Context) error {
	_ = s.FetchRates(ctx)
	var wg sync.WaitGroup
	var userErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		userErr = s.FetchUser(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = s.FetchPlans(ctx)
	}()
	wg.Wait()
	return userErr
}
