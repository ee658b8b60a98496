package api

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"net/http"
	"time"
)

const adminPrefix = "/api/admin"

func userPath(userID int64, suffix string) string {
	return fmt.Sprintf("%s/users/%d%s", adminPrefix, userID, suffix)
}

func (c *Client) adminPost(ctx context.Context, path string, body any) error {
	var r successResp
	return c.post(ctx, adminPrefix+path, body, &r)
}

func timeArg(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func (c *Client) AdminStats(ctx context.Context) (*AdminStats, error) {
	var s AdminStats
	if err := c.get(ctx, adminPrefix+"/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

type UserList struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
}

func (c *Client) AdminListUsers(ctx context.Context, limit, offset int, search string) (*UserList, error) {
	q := pageQuery(limit, offset)
	if search != "" {
		q.Set("search", search)
	}
	var r UserList
	if err := c.get(ctx, adminPrefix+"/users", q, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// AdminGetUser - пользователь вместе с текущей подпиской
func (c *Client) AdminGetUser(ctx context.Context, userID int64) (*User, error) {
	var u User
	if err := c.get(ctx, userPath(userID, ""), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) AdminSetBalance(ctx context.Context, userID int64, balance float64) error {
	return c.post(ctx, userPath(userID, "/balance/set"), map[string]float64{"balance": balance}, nil)
}

func (c *Client) AdminAddBalance(ctx context.Context, userID int64, amount float64) error {
	return c.post(ctx, userPath(userID, "/balance/add"), map[string]float64{"amount": amount}, nil)
}

func (c *Client) AdminExtendSubscription(ctx context.Context, userID int64, days int) error {
	return c.post(ctx, userPath(userID, "/subscription/extend"), map[string]int{"days": days}, nil)
}

func (c *Client) AdminCancelSubscription(ctx context.Context, userID int64) error {
	return c.post(ctx, userPath(userID, "/subscription/cancel"), nil, nil)
}

type banRequest struct {
	IP        string  `json:"ip,omitempty"`
	Reason    string  `json:"reason"`
	ExpiresAt *string `json:"expires_at,omitempty"`
}

func (c *Client) AdminBanUser(ctx context.Context, userID int64, reason string, expiresAt *time.Time) error {
	return c.post(ctx, userPath(userID, "/ban"), banRequest{Reason: reason, ExpiresAt: timeArg(expiresAt)}, nil)
}

func (c *Client) AdminUnbanUser(ctx context.Context, userID int64) error {
	return c.post(ctx, userPath(userID, "/unban"), nil, nil)
}

func (c *Client) AdminBanIP(ctx context.Context, ip, reason string, expiresAt *time.Time) error {
	return c.adminPost(ctx, "/bans/ip", banRequest{IP: ip, Reason: reason, ExpiresAt: timeArg(expiresAt)})
}

func (c *Client) AdminUnbanIP(ctx context.Context, ip string) error {
	return c.adminPost(ctx, "/bans/ip/unban", map[string]string{"ip": ip})
}

func (c *Client) AdminListBans(ctx context.Context, limit, offset int) ([]Ban, error) {
	var r struct {
		Bans []Ban `json:"bans"`
	}
	if err := c.get(ctx, adminPrefix+"/bans", pageQuery(limit, offset), &r); err != nil {
		return nil, err
	}
	return r.Bans, nil
}

func (c *Client) AdminListPromoCodes(ctx context.Context, limit, offset int) ([]PromoCode, error) {
	var r struct {
		PromoCodes []PromoCode `json:"promo_codes"`
	}
	if err := c.get(ctx, adminPrefix+"/promo", pageQuery(limit, offset), &r); err != nil {
		return nil, err
	}
	return r.PromoCodes, nil
}

// PromoSpec - параметры нового промокода. Type: balance или days.
type PromoSpec struct {
	Type        string     `json:"type"`
	Value       float64    `json:"value"`
	MaxUses     *int       `json:"max_uses,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Description string     `json:"description,omitempty"`
}

func (c *Client) AdminCreatePromoCode(ctx context.Context, spec PromoSpec) (*PromoCode, error) {
	var r PromoCode
	if err := c.post(ctx, adminPrefix+"/promo", spec, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

type bulkPromoRequest struct {
	Count     int        `json:"count"`
	Type      string     `json:"type"`
	Value     float64    `json:"value"`
	MaxUses   *int       `json:"max_uses,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Prefix    string     `json:"prefix,omitempty"`
}

func (c *Client) AdminCreateBulkPromoCodes(ctx context.Context, count int, spec PromoSpec, prefix string) ([]string, error) {
	req := bulkPromoRequest{
		Count:     count,
		Type:      spec.Type,
		Value:     spec.Value,
		MaxUses:   spec.MaxUses,
		ExpiresAt: spec.ExpiresAt,
		Prefix:    prefix,
	}
	var r struct {
		Codes []string `json:"codes"`
		Count int      `json:"count"`
	}
	if err := c.post(ctx, adminPrefix+"/promo/bulk", req, &r); err != nil {
		return nil, err
	}
	return r.Codes, nil
}

func (c *Client) AdminDeactivatePromoCode(ctx context.Context, code string) error {
	return c.adminPost(ctx, "/promo/deactivate", map[string]string{"code": code})
}

func (c *Client) AdminLogs(ctx context.Context, limit, offset int) ([]AdminLog, error) {
	var r struct {
		Logs []AdminLog `json:"logs"`
	}
	if err := c.get(ctx, adminPrefix+"/logs", pageQuery(limit, offset), &r); err != nil {
		return nil, err
	}
	return r.Logs, nil
}

func (c *Client) AdminListPlans(ctx context.Context) ([]Plan, error) {
	var r struct {
		Plans []Plan `json:"plans"`
	}
	if err := c.get(ctx, adminPrefix+"/plans", nil, &r); err != nil {
		return nil, err
	}
	return r.Plans, nil
}

type PlanInput struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	DurationDays int     `json:"duration_days"`
	TrafficGB    int     `json:"traffic_gb"`
	MaxDevices   int     `json:"max_devices"`
	PriceTON     float64 `json:"price_ton"`
	PriceStars   int     `json:"price_stars"`
	PriceUSD     float64 `json:"price_usd"`
	SortOrder    int     `json:"sort_order"`
}

// PlanPatch - частичное обновление тарифа, nil-поля не отправляются
type PlanPatch struct {
	Name         *string  `json:"name,omitempty"`
	Description  *string  `json:"description,omitempty"`
	DurationDays *int     `json:"duration_days,omitempty"`
	TrafficGB    *int     `json:"traffic_gb,omitempty"`
	MaxDevices   *int     `json:"max_devices,omitempty"`
	PriceTON     *float64 `json:"price_ton,omitempty"`
	PriceStars   *int     `json:"price_stars,omitempty"`
	PriceUSD     *float64 `json:"price_usd,omitempty"`
	IsActive     *bool    `json:"is_active,omitempty"`
	SortOrder    *int     `json:"sort_order,omitempty"`
}

func (c *Client) AdminCreatePlan(ctx context.Context, in PlanInput) (*Plan, error) {
	var p Plan
	if err := c.post(ctx, adminPrefix+"/plans", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) AdminUpdatePlan(ctx context.Context, planID uuid.UUID, patch PlanPatch) error {
	return c.do(ctx, request{method: http.MethodPut, path: adminPrefix + "/plans/" + planID.String(), body: patch}, nil)
}

func (c *Client) AdminDeletePlan(ctx context.Context, planID uuid.UUID) error {
	return c.do(ctx, request{method: http.MethodDelete, path: adminPrefix + "/plans/" + planID.String()}, nil)
}

func (c *Client) AdminListServers(ctx context.Context) ([]AdminServer, error) {
	var r struct {
		Servers []AdminServer `json:"servers"`
	}
	if err := c.get(ctx, adminPrefix+"/servers", nil, &r); err != nil {
		return nil, err
	}
	return r.Servers, nil
}

type ServerInput struct {
	Name          string  `json:"name"`
	Country       string  `json:"country"`
	City          *string `json:"city,omitempty"`
	FlagEmoji     string  `json:"flag_emoji"`
	XUIBaseURL    string  `json:"xui_base_url"`
	XUIUsername   string  `json:"xui_username"`
	XUIPassword   string  `json:"xui_password"`
	XUIInboundID  int     `json:"xui_inbound_id"`
	ServerAddress string  `json:"server_address"`
	ServerPort    int     `json:"server_port"`
	IsActive      bool    `json:"is_active"`
	SortOrder     int     `json:"sort_order"`
	Capacity      int     `json:"capacity"`
}

type ServerPatch struct {
	Name      *string `json:"name,omitempty"`
	IsActive  *bool   `json:"is_active,omitempty"`
	SortOrder *int    `json:"sort_order,omitempty"`
	Capacity  *int    `json:"capacity,omitempty"`
}

func (c *Client) AdminCreateServer(ctx context.Context, in ServerInput) (*AdminServer, error) {
	var s AdminServer
	if err := c.post(ctx, adminPrefix+"/servers", in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) AdminUpdateServer(ctx context.Context, serverID uuid.UUID, patch ServerPatch) error {
	return c.do(ctx, request{method: http.MethodPut, path: adminPrefix + "/servers/" + serverID.String(), body: patch}, nil)
}

func (c *Client) AdminDeleteServer(ctx context.Context, serverID uuid.UUID) error {
	return c.do(ctx, request{method: http.MethodDelete, path: adminPrefix + "/servers/" + serverID.String()}, nil)
}

// AdminTestServer проверяет связь с панелью сервера. Неудача связи приходит как Connected=false.
func (c *Client) AdminTestServer(ctx context.Context, serverID uuid.UUID) (*ServerTestResult, error) {
	var r ServerTestResult
	if err := c.post(ctx, adminPrefix+"/servers/"+serverID.String()+"/test", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) AdminSettings(ctx context.Context) (map[string]string, error) {
	var r struct {
		Settings map[string]string `json:"settings"`
	}
	if err := c.get(ctx, adminPrefix+"/settings", nil, &r); err != nil {
		return nil, err
	}
	return r.Settings, nil
}

func (c *Client) AdminSetTopupBonus(ctx context.Context, percent float64) error {
	return c.adminPost(ctx, "/settings/topup-bonus", map[string]float64{"percent": percent})
}

func (c *Client) AdminSetReferralBonus(ctx context.Context, percent float64) error {
	return c.adminPost(ctx, "/settings/referral-bonus", map[string]float64{"percent": percent})
}

func (c *Client) AdminSetReferralBonusDays(ctx context.Context, days int) error {
	return c.adminPost(ctx, "/settings/referral-bonus-days", map[string]int{"days": days})
}

func (c *Client) AdminSetRegionSwitchPrice(ctx context.Context, price float64) error {
	return c.adminPost(ctx, "/settings/region-switch-price", map[string]float64{"price": price})
}
