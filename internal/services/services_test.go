package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zyvpn-miniapp/internal/api"
	"zyvpn-miniapp/internal/cache"
	"zyvpn-miniapp/internal/db"
	"zyvpn-miniapp/internal/host"
)

const testToken = "123456:test-token"

type fakeSender struct {
	mu   sync.Mutex
	msgs []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.msgs = append(f.msgs, m)
	}
	return tgbotapi.Message{}, nil
}

// statusBackend отвечает статусом подписки по пользователю из init data
func statusBackend(t *testing.T, expiries map[int64]time.Time) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/rates" {
			json.NewEncoder(w).Encode(api.ExchangeRates{TonUSD: 6, UsdRUB: 90, TonRUB: 540})
			return
		}
		user, err := host.ValidateInitData(testToken, r.Header.Get("X-Telegram-Init-Data"), time.Hour, time.Now())
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		exp, ok := expiries[user.ID]
		if !ok {
			json.NewEncoder(w).Encode(map[string]any{"active": false})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"active":       true,
			"subscription": map[string]any{"status": "active", "expires_at": exp},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPrefs(t *testing.T) *db.Prefs {
	t.Helper()
	conn, err := db.Open("", filepath.Join(t.TempDir(), "prefs.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db.NewPrefs(conn)
}

func TestReminder_NotifiesOncePerExpiry(t *testing.T) {
	now := time.Now()
	srv := statusBackend(t, map[int64]time.Time{
		1: now.Add(48 * time.Hour),
		2: now.Add(10 * 24 * time.Hour),
	})
	prefs := newPrefs(t)
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, prefs.Touch(ctx, db.ChatPref{TelegramID: id, ChatID: id, FirstName: "u"}))
	}

	bot := &fakeSender{}
	r := NewReminder(bot, prefs, api.NewClient(srv.URL, srv.Client(), nil), host.NewSigner(testToken, time.Hour), 3)

	assert.Equal(t, 1, r.NotifyExpiringSubscriptions(ctx))
	require.Len(t, bot.msgs, 1)
	assert.Equal(t, int64(1), bot.msgs[0].ChatID)
	assert.Contains(t, bot.msgs[0].Text, "истекает через 2 дн.")

	assert.Equal(t, 0, r.NotifyExpiringSubscriptions(ctx), "same expiry is not reminded twice")

	pref, err := prefs.Get(ctx, 1)
	require.NoError(t, err)
	assert.NotZero(t, pref.RemindedExpiry)
}

func TestRatesRefresher_WritesCache(t *testing.T) {
	srv := statusBackend(t, nil)
	mem := cache.NewMemory()
	r := NewRatesRefresher(api.NewClient(srv.URL, srv.Client(), nil), mem)

	require.NoError(t, r.Refresh(context.Background()))

	var rates api.ExchangeRates
	found, err := mem.Get(context.Background(), cache.RatesKey, &rates)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 6.0, rates.TonUSD)
}

func TestRatesRefresher_KeepsCacheOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	mem := cache.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, cache.RatesKey, api.ExchangeRates{TonUSD: 1}, time.Minute))

	r := NewRatesRefresher(api.NewClient(srv.URL, srv.Client(), nil), mem)
	assert.Error(t, r.Refresh(ctx))

	var rates api.ExchangeRates
	found, _ := mem.Get(ctx, cache.RatesKey, &rates)
	assert.True(t, found)
	assert.Equal(t, 1.0, rates.TonUSD)
}

func TestHealth(t *testing.T) {
	ok := NewStatusServer(":0", map[string]Check{
		"db":  func(context.Context) error { return nil },
		"api": func(context.Context) error { return nil },
	})
	rec := httptest.NewRecorder()
	ok.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"api":"ok","db":"ok"}}`, rec.Body.String())

	bad := NewStatusServer(":0", map[string]Check{
		"api": func(context.Context) error { return errors.New("connection refused") },
	})
	rec = httptest.NewRecorder()
	bad.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewStatusServer(":0", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "miniapp_expiry_reminders_total"))
}

func TestChatsCheck(t *testing.T) {
	ctx := context.Background()
	prefs := newPrefs(t)
	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, prefs.Touch(ctx, db.ChatPref{TelegramID: id, ChatID: id}))
	}

	require.NoError(t, ChatsCheck(prefs)(ctx))
	rec := httptest.NewRecorder()
	NewStatusServer(":0", nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "miniapp_known_chats 3")
}

func TestInitDataCheck(t *testing.T) {
	check := InitDataCheck(testToken, host.NewSigner(testToken, time.Hour), time.Hour)
	assert.NoError(t, check(context.Background()))

	broken := InitDataCheck(testToken, host.NewSigner("other:token", time.Hour), time.Hour)
	assert.Error(t, broken(context.Background()))
}

func TestSchedule(t *testing.T) {
	c := cron.New()
	require.NoError(t, Schedule(context.Background(), c, &RatesRefresher{}, &Reminder{}))
	assert.Len(t, c.Entries(), 2)
}
