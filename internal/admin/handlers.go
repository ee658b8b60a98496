package admin

import (
	"context"
	"strings"
	"zyvpn-miniapp/internal/views"
)

// IsCommand - команда относится к админке
func IsCommand(cmd string) bool {
	return cmd == "admin" || strings.HasPrefix(cmd, "admin_")
}

// Command выполняет /admin_* команду. args - текст после команды.
func (c *Console) Command(ctx context.Context, cmd, args string) Result {
	if err := c.CheckAccess(ctx); err != nil {
		return denied()
	}
	fields := strings.Fields(args)
	switch cmd {
	case "admin", "admin_stats":
		return c.Open(ctx, views.TabStats)
	case "admin_users":
		c.mu.Lock()
		c.search = strings.TrimSpace(args)
		c.mu.Unlock()
		return c.Open(ctx, views.TabUsers)
	case "admin_bans":
		return c.Open(ctx, views.TabBans)
	case "admin_promos":
		return c.Open(ctx, views.TabPromo)
	case "admin_plans":
		return c.Open(ctx, views.TabPlans)
	case "admin_servers":
		return c.Open(ctx, views.TabServers)
	case "admin_settings":
		return c.Open(ctx, views.TabSettings)
	case "admin_logs":
		return c.Open(ctx, views.TabLogs)
	case "admin_user":
		return c.handleUser(ctx, fields)
	case "admin_addbal", "admin_setbal", "admin_extend":
		return c.handleUserValue(ctx, cmd, fields)
	case "admin_cancel":
		if len(fields) != 1 {
			return usage("/admin_cancel <user_id>")
		}
		if _, err := parseUserID(fields[0]); err != nil {
			return Result{Alert: err.Error()}
		}
		return confirm("Отменить подписку пользователя "+fields[0]+"?", views.AdmCancel, fields[0])
	case "admin_ban":
		return c.handleBan(ctx, args)
	case "admin_unban":
		if len(fields) != 1 {
			return usage("/admin_unban <user_id>")
		}
		id, err := parseUserID(fields[0])
		if err != nil {
			return Result{Alert: err.Error()}
		}
		return c.unban(ctx, id)
	case "admin_banip":
		return c.submitOnce(ctx, Prompt{Action: views.AdmBanIP}, args)
	case "admin_unbanip":
		if len(fields) != 1 {
			return usage("/admin_unbanip <ip>")
		}
		ip, err := parseIP(fields[0])
		if err != nil {
			return Result{Alert: err.Error()}
		}
		return c.unbanIP(ctx, ip)
	case "admin_promo":
		spec, err := parsePromo(fields)
		if err != nil {
			return usage("/admin_promo <balance|days|region_switch> <value> [max_uses]")
		}
		return c.createPromo(ctx, spec)
	case "admin_promo_bulk":
		count, spec, prefix, err := parseBulk(fields)
		if err != nil {
			return usage("/admin_promo_bulk <count> <type> <value> [max_uses] [prefix]")
		}
		return c.createBulk(ctx, count, spec, prefix)
	case "admin_deactivate":
		if len(fields) != 1 {
			return usage("/admin_deactivate <code>")
		}
		return confirm("Деактивировать промокод "+fields[0]+"?", views.AdmDeactivate, fields[0])
	case "admin_plan":
		in, err := parsePlan(args)
		if err != nil {
			return Result{Alert: err.Error() + "\n/admin_plan name;days;traffic_gb;devices;price_ton;price_stars;price_usd"}
		}
		return c.createPlan(ctx, in)
	case "admin_server":
		in, err := parseServer(args)
		if err != nil {
			return Result{Alert: err.Error() + "\n/admin_server name;country;flag;address;port;xui_url;xui_user;xui_pass;inbound_id"}
		}
		return c.createServer(ctx, in)
	case "admin_set":
		if len(fields) != 2 {
			return usage("/admin_set <key> <value>")
		}
		v, err := parseSetting(fields[0], fields[1])
		if err != nil {
			return Result{Alert: err.Error()}
		}
		return c.setSetting(ctx, fields[0], v)
	}
	return usage(commandsHelp)
}

const commandsHelp = `/admin_stats
/admin_users [поиск]
/admin_user <user_id>
/admin_addbal <user_id> <amount>
/admin_setbal <user_id> <balance>
/admin_extend <user_id> <days>
/admin_cancel <user_id>
/admin_ban <user_id> [reason]
/admin_unban <user_id>
/admin_banip <ip> [reason]
/admin_unbanip <ip>
/admin_promo <type> <value> [max_uses]
/admin_promo_bulk <count> <type> <value> [max_uses] [prefix]
/admin_deactivate <code>
/admin_plan name;days;traffic_gb;devices;price_ton;price_stars;price_usd
/admin_server name;country;flag;address;port;xui_url;xui_user;xui_pass;inbound_id
/admin_set <key> <value>
/admin_bans /admin_promos /admin_plans /admin_servers /admin_settings /admin_logs`

func usage(text string) Result {
	return Result{Alert: "Использование:\n" + text}
}

func (c *Console) handleUser(ctx context.Context, fields []string) Result {
	if len(fields) != 1 {
		return usage("/admin_user <user_id>")
	}
	id, err := parseUserID(fields[0])
	if err != nil {
		return Result{Alert: err.Error()}
	}
	return c.ShowUser(ctx, id)
}

func (c *Console) handleUserValue(ctx context.Context, cmd string, fields []string) Result {
	action := map[string]string{
		"admin_addbal": views.AdmAddBalance,
		"admin_setbal": views.AdmSetBalance,
		"admin_extend": views.AdmExtend,
	}[cmd]
	if len(fields) != 2 {
		return usage("/" + cmd + " <user_id> <value>")
	}
	return c.submitOnce(ctx, Prompt{Action: action, Arg: fields[0]}, fields[1])
}

func (c *Console) handleBan(ctx context.Context, args string) Result {
	idRaw, reason, _ := strings.Cut(strings.TrimSpace(args), " ")
	if idRaw == "" {
		return usage("/admin_ban <user_id> [reason]")
	}
	id, err := parseUserID(idRaw)
	if err != nil {
		return Result{Alert: err.Error()}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultBanReason
	}
	return c.ban(ctx, id, reason)
}

// submitOnce - как Submit, но команда не переводит чат в режим ввода
func (c *Console) submitOnce(ctx context.Context, p Prompt, text string) Result {
	res := c.Submit(ctx, p, text)
	res.Prompt = nil
	return res
}
