package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zyvpn-miniapp/internal/api"
	"zyvpn-miniapp/internal/cache"
	"zyvpn-miniapp/internal/db"
	"zyvpn-miniapp/internal/host"
	"zyvpn-miniapp/internal/payment"
	"zyvpn-miniapp/internal/views"
	"zyvpn-miniapp/internal/wallet"
)

const (
	testToken = "123456:test-token"
	userID    = int64(1001)
	adminID   = int64(42)
)

var (
	planID  = uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	serverA = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	serverB = uuid.MustParse("c9bf9e57-1685-4c89-bafb-ff5af830be8a")
)

// fakeTelegram записывает всё, что бот отправил
type fakeTelegram struct {
	mu       sync.Mutex
	nextID   int
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeTelegram) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func chattableText(c tgbotapi.Chattable) string {
	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		return v.Text
	case tgbotapi.EditMessageTextConfig:
		return v.Text
	case tgbotapi.PhotoConfig:
		return v.Caption
	}
	return ""
}

func (f *fakeTelegram) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		out = append(out, chattableText(c))
	}
	return out
}

func (f *fakeTelegram) last() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeTelegram) sentContaining(sub string) bool {
	for _, t := range f.texts() {
		if strings.Contains(t, sub) {
			return true
		}
	}
	return false
}

func (f *fakeTelegram) photos() []tgbotapi.PhotoConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.PhotoConfig
	for _, c := range f.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeTelegram) callbackTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.requests {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb.Text)
		}
	}
	return out
}

// vpnBackend - поддельный API сервиса с одним тарифом и двумя серверами
type vpnBackend struct {
	mu              sync.Mutex
	balance         float64
	active          bool
	key             string
	switchStatus    int
	referralApplies int
	promos          map[string]float64
	hits            map[string]int
}

func newVPNBackend() *vpnBackend {
	return &vpnBackend{promos: map[string]float64{"BONUS": 2}, hits: map[string]int{}}
}

func (b *vpnBackend) hit(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

func (b *vpnBackend) set(fn func(b *vpnBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *vpnBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hits[r.URL.Path]++

	reply := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}
	ok := func(v any) { reply(http.StatusOK, v) }

	if r.URL.Path == "/api/rates" {
		ok(map[string]any{"ton_usd": 5, "usd_rub": 90, "ton_rub": 450})
		return
	}
	user, err := host.ValidateInitData(testToken, r.Header.Get("X-Telegram-Init-Data"), time.Hour, time.Now())
	if err != nil {
		reply(http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}

	var body map[string]string
	if r.Method == http.MethodPost && r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}

	switch r.URL.Path {
	case "/api/user/me":
		ok(map[string]any{"id": user.ID, "balance": b.balance, "referral_code": "REF1"})
	case "/api/plans":
		ok(map[string]any{"plans": []map[string]any{{
			"id": planID, "name": "Месяц", "duration_days": 30, "traffic_gb": 0,
			"max_devices": 3, "price_ton": 1, "price_stars": 100, "price_usd": 5, "is_active": true,
		}}})
	case "/api/servers":
		ok(map[string]any{"servers": []map[string]any{
			{"id": serverA, "name": "Amsterdam", "country": "NL", "flag_emoji": "🇳🇱", "is_active": true, "status": "online"},
			{"id": serverB, "name": "Frankfurt", "country": "DE", "flag_emoji": "🇩🇪", "is_active": true, "status": "online"},
		}})
	case "/api/subscription/status":
		if !b.active {
			ok(map[string]any{"active": false})
			return
		}
		exp := time.Now().Add(30 * 24 * time.Hour)
		ok(map[string]any{"active": true, "days_remaining": 30, "subscription": map[string]any{
			"id": uuid.New(), "user_id": user.ID, "plan_id": planID, "server_id": serverA,
			"status": "active", "expires_at": exp,
		}})
	case "/api/subscription/key":
		if !b.active {
			reply(http.StatusNotFound, map[string]any{"error": "No active subscription"})
			return
		}
		ok(map[string]any{"key": b.key})
	case "/api/subscription/trial":
		b.active, b.key = true, "vless://trial"
		ok(map[string]any{"success": true, "key": b.key})
	case "/api/subscription/switch-server/info":
		ok(map[string]any{"price": 0.5, "free_switches": 0})
	case "/api/subscription/switch-server":
		if b.switchStatus != 0 {
			reply(b.switchStatus, map[string]any{"error": "Недостаточно средств для смены сервера", "need_more": true})
			return
		}
		ok(map[string]any{"success": true, "key": "vless://switched", "used_free": true})
	case "/api/balance":
		ok(map[string]any{"balance": b.balance, "currency": "TON"})
	case "/api/balance/transactions":
		ok(map[string]any{"transactions": []any{}})
	case "/api/balance/pay":
		if b.balance < 1 {
			reply(http.StatusPaymentRequired, map[string]any{"error": "Insufficient balance"})
			return
		}
		b.balance--
		b.active, b.key = true, "vless://paid"
		ok(map[string]any{"success": true, "new_balance": b.balance, "key": b.key})
	case "/api/referral/apply":
		b.referralApplies++
		ok(map[string]any{"success": true, "message": "Код применён"})
	case "/api/referral/stats":
		ok(map[string]any{"total_referrals": 2, "pending_referrals": 1, "credited_bonus_ton": 0.5})
	case "/api/referral/link":
		ok(map[string]any{"link": "https://t.me/zyvpn_bot?start=ref_REF1", "code": "REF1"})
	case "/api/promo/apply":
		bonus, found := b.promos[body["code"]]
		if !found {
			reply(http.StatusBadRequest, map[string]any{"error": "Промокод не найден"})
			return
		}
		delete(b.promos, body["code"])
		b.balance += bonus
		ok(map[string]any{"success": true, "type": "balance", "value": bonus, "new_balance": b.balance, "message": "Баланс пополнен на 2 TON"})
	case "/api/admin/stats":
		if user.ID != adminID {
			reply(http.StatusForbidden, map[string]any{"error": "Access denied"})
			return
		}
		ok(map[string]any{"total_users": 10, "active_subscriptions": 4})
	default:
		reply(http.StatusNotFound, map[string]any{"error": "not found"})
	}
}

type testEnv struct {
	bot     *Bot
	tg      *fakeTelegram
	backend *vpnBackend
	prefs   *db.Prefs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	be := newVPNBackend()
	srv := httptest.NewServer(be)
	t.Cleanup(srv.Close)

	conn, err := db.Open("", filepath.Join(t.TempDir(), "prefs.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})

	tg := &fakeTelegram{}
	prefs := db.NewPrefs(conn)
	b := New(Deps{
		API:         tg,
		Client:      api.NewClient(srv.URL, srv.Client(), nil),
		Signer:      host.NewSigner(testToken, time.Hour),
		Prefs:       prefs,
		Rates:       cache.NewMemory(),
		BotName:     "ZyVPN",
		BotUsername: "zyvpn_bot",
		Payment:     payment.Config{PollInterval: 10 * time.Millisecond, MaxAttempts: 3},
	})
	b.limiter.limits[actionDefault] = limit{every: time.Millisecond, burst: 100}
	b.limiter.limits[actionInput] = limit{every: time.Millisecond, burst: 100}
	return &testEnv{bot: b, tg: tg, backend: be, prefs: prefs}
}

func (e *testEnv) send(text string) {
	m := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, FirstName: "Ivan"},
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		n := strings.IndexByte(text, ' ')
		if n < 0 {
			n = len(text)
		}
		m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}}
	}
	e.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: m})
}

func (e *testEnv) press(data string) {
	e.bot.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-" + data,
		From: &tgbotapi.User{ID: userID, FirstName: "Ivan"},
		Data: data,
	}})
}

// startSeen - /start для пользователя, который уже видел онбординг
func (e *testEnv) startSeen(t *testing.T) {
	t.Helper()
	require.NoError(t, e.prefs.MarkOnboardingSeen(context.Background(), userID))
	e.send("/start")
}

func markupTexts(c tgbotapi.Chattable) []string {
	var kb *tgbotapi.InlineKeyboardMarkup
	switch v := c.(type) {
	case tgbotapi.EditMessageTextConfig:
		kb = v.ReplyMarkup
	case tgbotapi.MessageConfig:
		if m, ok := v.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
			kb = &m
		}
	}
	if kb == nil {
		return nil
	}
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			out = append(out, btn.Text)
		}
	}
	return out
}

func TestStart_OnboardingShownOnce(t *testing.T) {
	e := newTestEnv(t)

	e.send("/start")
	assert.True(t, e.tg.sentContaining(msgWelcome))
	assert.Contains(t, chattableText(e.tg.last()), "Добро пожаловать в ZyVPN")

	e.press(views.CbOnboarding + "later")
	assert.Contains(t, chattableText(e.tg.last()), "Привет, Ivan!")

	seen, err := e.prefs.OnboardingSeen(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, seen)

	e.send("/start")
	assert.Contains(t, chattableText(e.tg.last()), "Выберите тариф")
}

func TestStart_ReferralAppliedOnce(t *testing.T) {
	e := newTestEnv(t)

	e.send("/start ref_FRIEND")
	e.send("/start ref_FRIEND")

	assert.Equal(t, 1, e.backend.hit("/api/referral/apply"))
	applied, err := e.prefs.ReferralApplied(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestKeyScreen_SendsQRCode(t *testing.T) {
	e := newTestEnv(t)
	e.backend.set(func(b *vpnBackend) { b.active, b.key = true, "vless://abc@host:443" })
	e.startSeen(t)

	e.press(views.CbNav + views.ScreenKey)

	photos := e.tg.photos()
	require.Len(t, photos, 1)
	assert.Contains(t, photos[0].Caption, "vless://abc@host:443")
}

func TestPayFromBalance_OpensKey(t *testing.T) {
	e := newTestEnv(t)
	e.backend.set(func(b *vpnBackend) { b.balance = 2 })
	e.startSeen(t)

	e.press(views.CbPlan + planID.String())
	assert.Contains(t, chattableText(e.tg.last()), "Оплата")

	e.press(views.CbPayMethod + string(api.ProviderBalance))
	assert.Contains(t, markupTexts(e.tg.last()), "✓ 💰 Баланс")

	e.press(views.CbPay)
	assert.Eventually(t, func() bool { return len(e.tg.photos()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, e.tg.sentContaining("Оплата успешна! Ваша подписка активирована."))
	assert.Contains(t, e.tg.photos()[0].Caption, "vless://paid")
	assert.Equal(t, 1, e.backend.hit("/api/balance/pay"))
}

func TestPay_LeavingScreenSuppressesResult(t *testing.T) {
	e := newTestEnv(t)
	e.startSeen(t)

	e.press(views.CbPlan + planID.String())
	e.press(views.CbNav + views.ScreenHelp)
	assert.Contains(t, chattableText(e.tg.last()), "/start - главный экран")
	assert.Zero(t, e.backend.hit("/api/balance/pay"))
}

func TestPromoCode(t *testing.T) {
	e := newTestEnv(t)
	e.startSeen(t)
	e.press(views.CbNav + views.ScreenBalance)

	e.press(views.CbPromo)
	assert.True(t, e.tg.sentContaining(msgEnterPromo))

	e.send("NOPE")
	assert.Contains(t, chattableText(e.tg.last()), "❌ Промокод не найден")
	assert.Contains(t, chattableText(e.tg.last()), "0.0000")

	e.press(views.CbPromo)
	e.send("BONUS")
	text := chattableText(e.tg.last())
	assert.Contains(t, text, "✅ Баланс пополнен на 2 TON")
	assert.Contains(t, text, "2.0000")
}

func TestReferralScreen_ApplyCode(t *testing.T) {
	e := newTestEnv(t)
	e.startSeen(t)

	e.press(views.CbNav + views.ScreenReferral)
	assert.Contains(t, markupTexts(e.tg.last()), "🎟 У меня есть код друга")

	e.press(views.CbRefApply)
	e.send("FRIEND")
	assert.Contains(t, chattableText(e.tg.last()), "✅ "+msgReferralOK)
	assert.NotContains(t, markupTexts(e.tg.last()), "🎟 У меня есть код друга")
}

func TestReferralScreen_ShareOpensLink(t *testing.T) {
	e := newTestEnv(t)
	e.startSeen(t)
	e.press(views.CbNav + views.ScreenReferral)

	e.press(views.CbRefShare)

	msg, ok := e.tg.last().(tgbotapi.MessageConfig)
	require.True(t, ok)
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	url := kb.InlineKeyboard[0][0].URL
	require.NotNil(t, url)
	assert.True(t, strings.HasPrefix(*url, "https://t.me/share/url?url="))
}

func TestBackButton_HiddenOnHome(t *testing.T) {
	e := newTestEnv(t)
	e.startSeen(t)
	assert.NotContains(t, markupTexts(e.tg.last()), "← Назад")

	e.press(views.CbNav + views.ScreenHelp)
	assert.Contains(t, markupTexts(e.tg.last()), "← Назад")

	e.press(views.CbNav + views.ScreenHome)
	assert.NotContains(t, markupTexts(e.tg.last()), "← Назад")
}

func TestWalletButtons_WithoutPendingTransfer(t *testing.T) {
	e := newTestEnv(t)
	e.startSeen(t)

	e.press(wallet.CallbackSent)
	e.press(wallet.CallbackCancel)

	assert.Equal(t, []string{msgNoTransfer, msgNoTransfer}, e.tg.callbackTexts())
}

func TestServers_SelectWithoutSubscription(t *testing.T) {
	e := newTestEnv(t)
	e.startSeen(t)
	e.press(views.CbNav + views.ScreenServers)

	e.press(views.CbServer + serverB.String())

	s := e.bot.lookup(userID)
	require.NotNil(t, s)
	sel := s.store.Snapshot().SelectedServerID
	require.NotNil(t, sel)
	assert.Equal(t, serverB, *sel)
	assert.Contains(t, e.tg.callbackTexts(), msgServerPicked)
	assert.Zero(t, e.backend.hit("/api/subscription/switch-server"))
}

func TestServers_SwitchNeedsTopUp(t *testing.T) {
	e := newTestEnv(t)
	e.backend.set(func(b *vpnBackend) {
		b.active, b.key = true, "vless://abc"
		b.switchStatus = http.StatusPaymentRequired
	})
	e.startSeen(t)
	e.press(views.CbNav + views.ScreenServers)
	assert.Contains(t, chattableText(e.tg.last()), "Смена сервера: 0.5 TON с баланса")

	e.press(views.CbServer + serverA.String())
	assert.Zero(t, e.backend.hit("/api/subscription/switch-server"), "current server is a no-op")

	e.press(views.CbServer + serverB.String())
	assert.Contains(t, chattableText(e.tg.last()), "Недостаточно средств для смены сервера")
	assert.Contains(t, markupTexts(e.tg.last()), "💎 Пополнить баланс")
}

func TestTrial(t *testing.T) {
	e := newTestEnv(t)
	e.startSeen(t)
	assert.Contains(t, markupTexts(e.tg.last()), "🎉 Попробовать бесплатно")

	e.press(views.CbTrial)
	assert.Contains(t, e.tg.callbackTexts(), msgTrialOK)
	require.Len(t, e.tg.photos(), 1)
	assert.Contains(t, e.tg.photos()[0].Caption, "vless://trial")
}

func TestAdminDeniedForRegularUser(t *testing.T) {
	e := newTestEnv(t)
	e.startSeen(t)
	assert.NotContains(t, markupTexts(e.tg.last()), "⚙️ Admin Panel")

	e.send("/admin")
	assert.Contains(t, chattableText(e.tg.last()), "Access denied")
}

func TestUnknownCommand(t *testing.T) {
	e := newTestEnv(t)
	e.send("/whatever")
	assert.Equal(t, msgUnknownCommand, chattableText(e.tg.last()))

	e.send("просто текст")
	assert.Equal(t, msgUnknownCommand, chattableText(e.tg.last()))
}

func TestRateLimit(t *testing.T) {
	e := newTestEnv(t)
	e.bot.limiter = NewRateLimiter()

	for i := 0; i < 12; i++ {
		e.press(views.CbNoop)
	}
	assert.Contains(t, e.tg.callbackTexts(), msgTooFast)
}

func TestPreCheckoutAnsweredOK(t *testing.T) {
	e := newTestEnv(t)
	e.bot.HandleUpdate(context.Background(), tgbotapi.Update{PreCheckoutQuery: &tgbotapi.PreCheckoutQuery{
		ID:             "pcq-1",
		From:           &tgbotapi.User{ID: userID},
		InvoicePayload: uuid.NewString(),
	}})

	e.tg.mu.Lock()
	defer e.tg.mu.Unlock()
	require.Len(t, e.tg.requests, 1)
	pc, ok := e.tg.requests[0].(tgbotapi.PreCheckoutConfig)
	require.True(t, ok)
	assert.True(t, pc.OK)
	assert.Equal(t, "pcq-1", pc.PreCheckoutQueryID)
}

func TestSuccessfulPaymentWithoutWaiter(t *testing.T) {
	e := newTestEnv(t)
	e.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
		SuccessfulPayment: &tgbotapi.SuccessfulPayment{
			Currency:       "XTR",
			TotalAmount:    100,
			InvoicePayload: uuid.NewString(),
		},
	}})
	assert.Equal(t, msgPaidNoWaiter, chattableText(e.tg.last()))
}

func TestRun_RoutesUpdatesPerUser(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan tgbotapi.Update, 2)
	updates <- tgbotapi.Update{UpdateID: 1, Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID},
		Chat:     &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:     "/help",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 5}},
	}}
	go e.bot.Run(ctx, updates)

	assert.Eventually(t, func() bool { return e.tg.sentContaining("/key - ключ подключения") }, 2*time.Second, 10*time.Millisecond)
}

func TestRun_DropsIdleSession(t *testing.T) {
	e := newTestEnv(t)
	e.bot.deps.SessionIdle = 50 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	help := tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID},
		Chat:     &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:     "/help",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 5}},
	}}
	updates := make(chan tgbotapi.Update, 2)
	updates <- help
	go e.bot.Run(ctx, updates)

	require.Eventually(t, func() bool { return e.bot.lookup(userID) != nil }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		e.bot.mu.Lock()
		defer e.bot.mu.Unlock()
		return len(e.bot.sessions) == 0 && len(e.bot.queues) == 0
	}, 2*time.Second, 10*time.Millisecond)

	updates <- help
	assert.Eventually(t, func() bool { return e.bot.lookup(userID) != nil }, 2*time.Second, 5*time.Millisecond)
}
