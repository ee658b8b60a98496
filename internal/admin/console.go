package admin

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"net/http"
	"sync"
	"time"
	"zyvpn-miniapp/internal/api"
	"zyvpn-miniapp/internal/logger"
	"zyvpn-miniapp/internal/views"
)

// ErrAccessDenied - сервер не пустил в админские эндпоинты
var ErrAccessDenied = errors.New("admin: access denied")

const listLimit = 50

// API - админские вызовы сервера, *api.Client их реализует
type API interface {
	AdminStats(ctx context.Context) (*api.AdminStats, error)
	AdminListUsers(ctx context.Context, limit, offset int, search string) (*api.UserList, error)
	AdminGetUser(ctx context.Context, userID int64) (*api.User, error)
	AdminSetBalance(ctx context.Context, userID int64, balance float64) error
	AdminAddBalance(ctx context.Context, userID int64, amount float64) error
	AdminExtendSubscription(ctx context.Context, userID int64, days int) error
	AdminCancelSubscription(ctx context.Context, userID int64) error
	AdminBanUser(ctx context.Context, userID int64, reason string, expiresAt *time.Time) error
	AdminUnbanUser(ctx context.Context, userID int64) error
	AdminBanIP(ctx context.Context, ip, reason string, expiresAt *time.Time) error
	AdminUnbanIP(ctx context.Context, ip string) error
	AdminListBans(ctx context.Context, limit, offset int) ([]api.Ban, error)
	AdminListPromoCodes(ctx context.Context, limit, offset int) ([]api.PromoCode, error)
	AdminCreatePromoCode(ctx context.Context, spec api.PromoSpec) (*api.PromoCode, error)
	AdminCreateBulkPromoCodes(ctx context.Context, count int, spec api.PromoSpec, prefix string) ([]string, error)
	AdminDeactivatePromoCode(ctx context.Context, code string) error
	AdminLogs(ctx context.Context, limit, offset int) ([]api.AdminLog, error)
	AdminListPlans(ctx context.Context) ([]api.Plan, error)
	AdminCreatePlan(ctx context.Context, in api.PlanInput) (*api.Plan, error)
	AdminUpdatePlan(ctx context.Context, planID uuid.UUID, patch api.PlanPatch) error
	AdminDeletePlan(ctx context.Context, planID uuid.UUID) error
	AdminListServers(ctx context.Context) ([]api.AdminServer, error)
	AdminCreateServer(ctx context.Context, in api.ServerInput) (*api.AdminServer, error)
	AdminUpdateServer(ctx context.Context, serverID uuid.UUID, patch api.ServerPatch) error
	AdminDeleteServer(ctx context.Context, serverID uuid.UUID) error
	AdminTestServer(ctx context.Context, serverID uuid.UUID) (*api.ServerTestResult, error)
	AdminSettings(ctx context.Context) (map[string]string, error)
	AdminSetTopupBonus(ctx context.Context, percent float64) error
	AdminSetReferralBonus(ctx context.Context, percent float64) error
	AdminSetReferralBonusDays(ctx context.Context, days int) error
	AdminSetRegionSwitchPrice(ctx context.Context, price float64) error
}

// Prompt - какое значение админ должен прислать следующим сообщением
type Prompt struct {
	Action string
	Arg    string
}

// Result - что показать после действия. Пустой Screen значит оставить текущий экран.
type Result struct {
	Screen *views.Screen
	Prompt *Prompt
	Alert  string
}

// Console - админ-панель одного чата
type Console struct {
	api         API
	actorID     int64
	botUsername string

	mu     sync.Mutex
	access *bool
	view   string
	search string
	userID int64
	test   *api.ServerTestResult
}

func NewConsole(client API, actorID int64, botUsername string) *Console {
	return &Console{api: client, actorID: actorID, botUsername: botUsername, view: views.TabStats}
}

// CheckAccess спрашивает статистику, пока сервер не ответил по существу.
// Запоминаются только успех и 401/403, сбои сервера проверяются заново.
func (c *Console) CheckAccess(ctx context.Context) error {
	c.mu.Lock()
	known := c.access
	c.mu.Unlock()
	if known != nil {
		if *known {
			return nil
		}
		return ErrAccessDenied
	}
	return c.ask(ctx)
}

func (c *Console) ask(ctx context.Context) error {
	_, err := c.api.AdminStats(ctx)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	ok := err == nil
	c.mu.Lock()
	if ok || api.IsStatus(err, http.StatusUnauthorized) || api.IsStatus(err, http.StatusForbidden) {
		c.access = &ok
	} else {
		c.access = nil
	}
	c.mu.Unlock()
	if !ok {
		logger.Debug("admin access denied", zap.Int64("user_id", c.actorID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	return nil
}

// IsAdmin - показывать ли вход в админку на главном экране
func (c *Console) IsAdmin(ctx context.Context) bool {
	return c.CheckAccess(ctx) == nil
}

// Recheck забывает прошлый ответ и спрашивает сервер заново
func (c *Console) Recheck(ctx context.Context) bool {
	return c.ask(ctx) == nil
}

// Open переключает вкладку и загружает её заново
func (c *Console) Open(ctx context.Context, tab string) Result {
	if err := c.ask(ctx); err != nil {
		s := views.AdminDenied()
		return Result{Screen: &s}
	}
	c.mu.Lock()
	c.view = tab
	if tab != views.TabServers {
		c.test = nil
	}
	c.mu.Unlock()
	return c.show(ctx)
}

// ShowUser открывает карточку пользователя
func (c *Console) ShowUser(ctx context.Context, userID int64) Result {
	if err := c.CheckAccess(ctx); err != nil {
		s := views.AdminDenied()
		return Result{Screen: &s}
	}
	c.mu.Lock()
	c.view = views.AdmUser
	c.userID = userID
	c.mu.Unlock()
	return c.show(ctx)
}

func (c *Console) show(ctx context.Context) Result {
	s := c.render(ctx)
	return Result{Screen: &s}
}

// render заново тянет данные текущего вида. Ошибка загрузки выводится в самом экране.
func (c *Console) render(ctx context.Context) views.Screen {
	c.mu.Lock()
	view, search, userID, test := c.view, c.search, c.userID, c.test
	c.mu.Unlock()

	switch view {
	case views.AdmUser:
		u, err := c.api.AdminGetUser(ctx, userID)
		return views.AdminUser(u, errText(err))
	case views.TabUsers:
		list, err := c.api.AdminListUsers(ctx, listLimit, 0, search)
		return views.AdminUsers(list, search, errText(err))
	case views.TabBans:
		bans, err := c.api.AdminListBans(ctx, listLimit, 0)
		return views.AdminBans(bans, errText(err))
	case views.TabPromo:
		promos, err := c.api.AdminListPromoCodes(ctx, listLimit, 0)
		return views.AdminPromos(promos, c.botUsername, errText(err))
	case views.TabPlans:
		plans, err := c.api.AdminListPlans(ctx)
		return views.AdminPlans(plans, errText(err))
	case views.TabServers:
		servers, err := c.api.AdminListServers(ctx)
		return views.AdminServers(servers, test, errText(err))
	case views.TabSettings:
		settings, err := c.api.AdminSettings(ctx)
		return views.AdminSettings(settings, errText(err))
	case views.TabLogs:
		logs, err := c.api.AdminLogs(ctx, listLimit, 0)
		return views.AdminLogs(logs, errText(err))
	default:
		stats, err := c.api.AdminStats(ctx)
		return views.AdminStats(stats, errText(err))
	}
}

// mutate выполняет запрос и перечитывает текущий вид. При ошибке экран не трогаем.
func (c *Console) mutate(ctx context.Context, action, params string, call func(ctx context.Context) error) Result {
	if err := call(ctx); err != nil {
		logger.Warn("admin action failed", zap.String("action", action), zap.String("params", params), zap.Error(err))
		return Result{Alert: "❌ " + errText(err)}
	}
	logger.LogAdminAction(c.actorID, action, params)
	return c.show(ctx)
}

func (c *Console) setView(view string) {
	c.mu.Lock()
	c.view = view
	c.mu.Unlock()
}

func (c *Console) focusUser(userID int64) {
	c.mu.Lock()
	c.view = views.AdmUser
	c.userID = userID
	c.mu.Unlock()
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
