package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"zyvpn-miniapp/internal/api"
	"zyvpn-miniapp/internal/logger"
	"zyvpn-miniapp/internal/views"
)

const userID = 7

var planID = uuid.MustParse("7b0d0a6e-4c1c-4e63-9d4f-1a2b3c4d5e6f")

type adminBackend struct {
	mu         sync.Mutex
	balance    float64
	planActive bool
	days       string
	failWrites bool
	statsDown  int
	calls      map[string]int
}

func (b *adminBackend) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key]
}

func (b *adminBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[r.Method+" "+r.URL.Path]++
	if r.URL.Path == "/api/admin/stats" && b.statsDown > 0 {
		b.statsDown--
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"bad gateway"}`))
		return
	}

	if r.Header.Get("X-Telegram-Init-Data") != "admin" {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"Access denied"}`))
		return
	}
	if r.Method != http.MethodGet && b.failWrites {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"db is down"}`))
		return
	}

	reply := func(v any) { json.NewEncoder(w).Encode(v) }
	switch r.Method + " " + r.URL.Path {
	case "GET /api/admin/stats":
		reply(api.AdminStats{TotalUsers: 12, ActiveSubscriptions: 5})
	case "GET /api/admin/users":
		name := "Ann"
		users := []api.User{{ID: userID, FirstName: &name, Balance: b.balance, ReferralCode: "R7"}}
		if s := r.URL.Query().Get("search"); s != "" && !strings.Contains("ann", strings.ToLower(s)) {
			users = nil
		}
		reply(api.UserList{Users: users, Total: len(users)})
	case "GET /api/admin/users/7":
		reply(api.User{ID: userID, Balance: b.balance, ReferralCode: "R7"})
	case "POST /api/admin/users/7/balance/add":
		var req struct{ Amount float64 }
		json.NewDecoder(r.Body).Decode(&req)
		b.balance += req.Amount
		reply(map[string]bool{"success": true})
	case "GET /api/admin/plans":
		reply(map[string]any{"plans": []api.Plan{{ID: planID, Name: "Pro", DurationDays: 30, IsActive: b.planActive}}})
	case "PUT /api/admin/plans/" + planID.String():
		var patch api.PlanPatch
		json.NewDecoder(r.Body).Decode(&patch)
		if patch.IsActive != nil {
			b.planActive = *patch.IsActive
		}
		reply(map[string]bool{"success": true})
	case "GET /api/admin/promo":
		reply(map[string]any{"promo_codes": []api.PromoCode{}})
	case "POST /api/admin/promo/bulk":
		var req struct {
			Count  int
			Type   string
			Prefix string
		}
		json.NewDecoder(r.Body).Decode(&req)
		var codes []string
		for i := 0; i < req.Count; i++ {
			codes = append(codes, req.Prefix+"-"+strings.Repeat("X", i+1))
		}
		reply(map[string]any{"codes": codes, "count": len(codes)})
	case "GET /api/admin/settings":
		reply(map[string]any{"settings": map[string]string{views.SettingReferralBonusDays: b.days}})
	case "POST /api/admin/settings/referral-bonus-days":
		var req struct{ Days int }
		json.NewDecoder(r.Body).Decode(&req)
		b.days = strconv.Itoa(req.Days)
		reply(map[string]bool{"success": true})
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	}
}

func newConsole(t *testing.T, initData string) (*Console, *adminBackend) {
	t.Helper()
	b := &adminBackend{balance: 1, planActive: true, days: "7", calls: map[string]int{}}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	client := api.NewClient(srv.URL, srv.Client(), func() string { return initData })
	return NewConsole(client, userID, "zyvpn_bot"), b
}

func TestCheckAccess(t *testing.T) {
	ctx := context.Background()

	c, b := newConsole(t, "admin")
	require.NoError(t, c.CheckAccess(ctx))
	assert.True(t, c.IsAdmin(ctx))
	assert.Equal(t, 1, b.count("GET /api/admin/stats"), "a granted access is asked once")

	c, _ = newConsole(t, "user")
	assert.ErrorIs(t, c.CheckAccess(ctx), ErrAccessDenied)
	res := c.Open(ctx, views.TabUsers)
	require.NotNil(t, res.Screen)
	assert.Contains(t, res.Screen.Text, "Access denied")

	res = c.Handle(ctx, views.AdmData(views.AdmAddBalance, "7"))
	assert.Nil(t, res.Prompt)
	assert.Contains(t, res.Screen.Text, "Access denied")
}

func TestCheckAccess_ServerFailureIsNotRemembered(t *testing.T) {
	ctx := context.Background()
	c, b := newConsole(t, "admin")
	b.statsDown = 1

	assert.ErrorIs(t, c.CheckAccess(ctx), ErrAccessDenied)
	assert.True(t, c.IsAdmin(ctx))
	assert.True(t, c.IsAdmin(ctx))
	assert.Equal(t, 2, b.count("GET /api/admin/stats"))

	res := c.Open(ctx, views.TabStats)
	require.NotNil(t, res.Screen)
	assert.Contains(t, res.Screen.Text, "Пользователи: <b>12</b>")
}

func TestCheckAccess_DenialRecheckedOnDemand(t *testing.T) {
	ctx := context.Background()
	c, b := newConsole(t, "user")

	assert.False(t, c.IsAdmin(ctx))
	assert.False(t, c.IsAdmin(ctx))
	assert.Equal(t, 1, b.count("GET /api/admin/stats"), "403 is remembered")

	assert.False(t, c.Recheck(ctx))
	assert.Equal(t, 2, b.count("GET /api/admin/stats"))
}

func TestOpenTabs(t *testing.T) {
	c, _ := newConsole(t, "admin")
	ctx := context.Background()

	res := c.Handle(ctx, views.AdmData(views.AdmTab, views.TabStats))
	require.NotNil(t, res.Screen)
	assert.Contains(t, res.Screen.Text, "Пользователи: <b>12</b>")

	res = c.Handle(ctx, views.AdmData(views.AdmTab, views.TabPlans))
	assert.Contains(t, res.Screen.Text, "Pro")

	res = c.Handle(ctx, views.AdmData(views.AdmTab, views.TabBans))
	assert.Contains(t, res.Screen.Text, "❌ not found", "load failure is shown inside the tab")
}

func TestSearchUsers(t *testing.T) {
	c, _ := newConsole(t, "admin")
	ctx := context.Background()

	res := c.Handle(ctx, views.AdmData(views.AdmSearch))
	require.NotNil(t, res.Prompt)
	assert.Equal(t, views.AdmSearch, res.Prompt.Action)

	res = c.Submit(ctx, *res.Prompt, "ann")
	assert.Contains(t, res.Screen.Text, "Всего: 1")

	res = c.Submit(ctx, Prompt{Action: views.AdmSearch}, "bob")
	assert.Contains(t, res.Screen.Text, "Всего: 0")
}

func TestAddBalance_RefetchesAndLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(zap.NewNop()) })

	c, b := newConsole(t, "admin")
	ctx := context.Background()

	res := c.Handle(ctx, views.AdmData(views.AdmAddBalance, "7"))
	require.NotNil(t, res.Prompt)

	res = c.Submit(ctx, *res.Prompt, "2,5")
	require.NotNil(t, res.Screen)
	assert.Empty(t, res.Alert)
	assert.Contains(t, res.Screen.Text, "3.5000 TON")
	assert.Equal(t, 1, b.count("GET /api/admin/users/7"))

	entries := logs.FilterMessage("admin_action").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "add_balance", entries[0].ContextMap()["action"])
}

func TestAddBalance_BadInputKeepsPrompt(t *testing.T) {
	c, b := newConsole(t, "admin")
	p := Prompt{Action: views.AdmAddBalance, Arg: "7"}

	res := c.Submit(context.Background(), p, "много")
	assert.Nil(t, res.Screen)
	require.NotNil(t, res.Prompt)
	assert.Equal(t, p, *res.Prompt)
	assert.NotEmpty(t, res.Alert)
	assert.Zero(t, b.count("POST /api/admin/users/7/balance/add"))
}

func TestMutationFailure_KeepsScreen(t *testing.T) {
	c, b := newConsole(t, "admin")
	ctx := context.Background()
	c.Open(ctx, views.TabPlans)
	b.mu.Lock()
	b.failWrites = true
	b.mu.Unlock()

	res := c.Handle(ctx, views.AdmData(views.AdmPlanToggle, planID.String()))
	assert.Nil(t, res.Screen)
	assert.Equal(t, "❌ db is down", res.Alert)
	// список читается при открытии и перед переключением, после ошибки перечитывания нет
	assert.Equal(t, 2, b.count("GET /api/admin/plans"))
}

func TestTogglePlan(t *testing.T) {
	c, b := newConsole(t, "admin")
	ctx := context.Background()
	c.Open(ctx, views.TabPlans)

	res := c.Handle(ctx, views.AdmData(views.AdmPlanToggle, planID.String()))
	require.NotNil(t, res.Screen)
	assert.Contains(t, res.Screen.Text, "⛔ <b>Pro</b>")
	b.mu.Lock()
	assert.False(t, b.planActive)
	b.mu.Unlock()
}

func TestCancel_NeedsConfirmation(t *testing.T) {
	c, b := newConsole(t, "admin")
	ctx := context.Background()

	res := c.Handle(ctx, views.AdmData(views.AdmCancel, "7"))
	require.NotNil(t, res.Screen)
	assert.Contains(t, res.Screen.Text, "Отменить подписку")
	assert.Zero(t, b.count("POST /api/admin/users/7/subscription/cancel"))

	yes := res.Screen.Markup.InlineKeyboard[0][0]
	require.NotNil(t, yes.CallbackData)
	assert.Equal(t, views.AdmData(views.AdmConfirm, views.AdmCancel, "7"), *yes.CallbackData)

	res = c.Handle(ctx, *yes.CallbackData)
	assert.Equal(t, 1, b.count("POST /api/admin/users/7/subscription/cancel"))
	assert.NotEmpty(t, res.Alert, "backend has no cancel route in this fixture")
}

func TestBulkPromo(t *testing.T) {
	c, _ := newConsole(t, "admin")

	res := c.Command(context.Background(), "admin_promo_bulk", "3 days 7 1 gift")
	require.NotNil(t, res.Screen)
	assert.Contains(t, res.Alert, "Создано 3 промокодов")
	assert.Contains(t, res.Alert, "GIFT-XXX")
}

func TestSetSetting(t *testing.T) {
	c, _ := newConsole(t, "admin")
	ctx := context.Background()

	res := c.Handle(ctx, views.AdmData(views.AdmSetting, views.SettingReferralBonusDays))
	require.NotNil(t, res.Prompt)

	res = c.Submit(ctx, *res.Prompt, "1.5")
	assert.NotEmpty(t, res.Alert, "days must be integer")

	res = c.Submit(ctx, *res.Prompt, "14")
	require.NotNil(t, res.Screen)
	assert.Contains(t, res.Screen.Text, "<b>14</b>")
}

func TestCommands(t *testing.T) {
	c, _ := newConsole(t, "admin")
	ctx := context.Background()

	res := c.Command(ctx, "admin_addbal", "7 1")
	require.NotNil(t, res.Screen)
	assert.Contains(t, res.Screen.Text, "2.0000 TON")

	res = c.Command(ctx, "admin_addbal", "7 oops")
	assert.Nil(t, res.Prompt, "commands never switch the chat into input mode")
	assert.NotEmpty(t, res.Alert)

	res = c.Command(ctx, "admin_plan", "Pro;30")
	assert.Contains(t, res.Alert, "/admin_plan")

	res = c.Command(ctx, "admin_nope", "")
	assert.Contains(t, res.Alert, "/admin_stats")

	assert.True(t, IsCommand("admin_users"))
	assert.False(t, IsCommand("start"))
}

func TestParse(t *testing.T) {
	spec, err := parsePromo([]string{"balance", "1.5", "100"})
	require.NoError(t, err)
	assert.Equal(t, 1.5, spec.Value)
	require.NotNil(t, spec.MaxUses)
	assert.Equal(t, 100, *spec.MaxUses)

	_, err = parsePromo([]string{"coupon", "1"})
	assert.ErrorIs(t, err, errBadInput)

	count, spec, prefix, err := parseBulk([]string{"5", "days", "7", "VIP"})
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.Equal(t, "VIP", prefix)
	assert.Nil(t, spec.MaxUses)

	plan, err := parsePlan("Pro; 30; 0; 5; 1.5; 150; 3")
	require.NoError(t, err)
	assert.Equal(t, api.PlanInput{Name: "Pro", DurationDays: 30, MaxDevices: 5, PriceTON: 1.5, PriceStars: 150, PriceUSD: 3}, plan)

	srv, err := parseServer("NL-1;Netherlands;🇳🇱;1.2.3.4;443;https://panel:2053;admin;secret;1")
	require.NoError(t, err)
	assert.Equal(t, 443, srv.ServerPort)
	assert.True(t, srv.IsActive)

	ip, err := parseIP(" 2001:db8::1 ")
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", ip)
}
