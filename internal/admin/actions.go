package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"zyvpn-miniapp/internal/api"
	"zyvpn-miniapp/internal/views"
)

const defaultBanReason = "Banned by admin"

func denied() Result {
	s := views.AdminDenied()
	return Result{Screen: &s}
}

func ask(action, arg, question string) Result {
	s := views.AdminPrompt(question)
	return Result{Screen: &s, Prompt: &Prompt{Action: action, Arg: arg}}
}

func confirm(question, action, arg string) Result {
	s := views.AdminConfirm(question, action, arg)
	return Result{Screen: &s}
}

func badInput(err error, p Prompt) Result {
	return Result{Alert: "⚠️ " + err.Error(), Prompt: &p}
}

// Handle обрабатывает нажатие adm:<action>[:<arg>]
func (c *Console) Handle(ctx context.Context, data string) Result {
	if err := c.CheckAccess(ctx); err != nil {
		return denied()
	}
	action, arg, _ := strings.Cut(strings.TrimPrefix(data, views.CbAdmin), ":")
	switch action {
	case views.AdmTab:
		return c.Open(ctx, arg)
	case views.AdmUser:
		id, err := parseUserID(arg)
		if err != nil {
			return Result{Alert: err.Error()}
		}
		return c.ShowUser(ctx, id)
	case views.AdmSearch:
		return ask(action, "", "Введите ID, username или имя пользователя")
	case views.AdmAddBalance:
		return ask(action, arg, fmt.Sprintf("Сколько TON начислить пользователю %s? Отрицательная сумма спишет баланс.", arg))
	case views.AdmSetBalance:
		return ask(action, arg, fmt.Sprintf("Новый баланс пользователя %s в TON", arg))
	case views.AdmExtend:
		return ask(action, arg, fmt.Sprintf("На сколько дней продлить подписку пользователя %s?", arg))
	case views.AdmBan:
		return ask(action, arg, fmt.Sprintf("Причина бана пользователя %s (или - для стандартной)", arg))
	case views.AdmBanIP:
		return ask(action, "", "IP-адрес и причина через пробел")
	case views.AdmPromoNew:
		return ask(action, "", "Тип, значение и лимит использований через пробел, например: balance 1.5 100")
	case views.AdmPromoBulk:
		return ask(action, "", "Количество, тип, значение, лимит и префикс, например: 10 days 7 1 GIFT")
	case views.AdmSetting:
		return ask(action, arg, "Новое значение "+arg)
	case views.AdmCancel:
		return confirm(fmt.Sprintf("Отменить подписку пользователя %s?", arg), action, arg)
	case views.AdmDeactivate:
		return confirm(fmt.Sprintf("Деактивировать промокод %s?", arg), action, arg)
	case views.AdmPlanDelete:
		return confirm("Удалить тариф?", action, arg)
	case views.AdmServerDelete:
		return confirm("Удалить сервер?", action, arg)
	case views.AdmUnban:
		id, err := parseUserID(arg)
		if err != nil {
			return Result{Alert: err.Error()}
		}
		return c.unban(ctx, id)
	case views.AdmUnbanIP:
		return c.unbanIP(ctx, arg)
	case views.AdmPlanToggle:
		return c.togglePlan(ctx, arg)
	case views.AdmServerToggle:
		return c.toggleServer(ctx, arg)
	case views.AdmServerTest:
		return c.testServer(ctx, arg)
	case views.AdmConfirm:
		inner, innerArg, _ := strings.Cut(arg, ":")
		return c.confirmed(ctx, inner, innerArg)
	}
	return Result{Alert: "Неизвестное действие"}
}

func (c *Console) confirmed(ctx context.Context, action, arg string) Result {
	switch action {
	case views.AdmCancel:
		id, err := parseUserID(arg)
		if err != nil {
			return Result{Alert: err.Error()}
		}
		return c.cancelSubscription(ctx, id)
	case views.AdmDeactivate:
		return c.deactivate(ctx, arg)
	case views.AdmPlanDelete:
		return c.deletePlan(ctx, arg)
	case views.AdmServerDelete:
		return c.deleteServer(ctx, arg)
	}
	return Result{Alert: "Неизвестное действие"}
}

// Submit принимает значение, которое админ прислал в ответ на Prompt
func (c *Console) Submit(ctx context.Context, p Prompt, text string) Result {
	if err := c.CheckAccess(ctx); err != nil {
		return denied()
	}
	text = strings.TrimSpace(text)
	switch p.Action {
	case views.AdmSearch:
		c.mu.Lock()
		c.search = text
		c.view = views.TabUsers
		c.mu.Unlock()
		return c.show(ctx)
	case views.AdmAddBalance, views.AdmSetBalance, views.AdmExtend, views.AdmBan:
		id, err := parseUserID(p.Arg)
		if err != nil {
			return Result{Alert: err.Error()}
		}
		switch p.Action {
		case views.AdmAddBalance:
			amount, err := parseAmount(text)
			if err != nil {
				return badInput(err, p)
			}
			return c.addBalance(ctx, id, amount)
		case views.AdmSetBalance:
			balance, err := parseBalance(text)
			if err != nil {
				return badInput(err, p)
			}
			return c.setBalance(ctx, id, balance)
		case views.AdmExtend:
			days, err := parseDays(text)
			if err != nil {
				return badInput(err, p)
			}
			return c.extend(ctx, id, days)
		default:
			if text == "" || text == "-" {
				text = defaultBanReason
			}
			return c.ban(ctx, id, text)
		}
	case views.AdmBanIP:
		ipRaw, reason, _ := strings.Cut(text, " ")
		ip, err := parseIP(ipRaw)
		if err != nil {
			return badInput(err, p)
		}
		return c.banIP(ctx, ip, reason)
	case views.AdmPromoNew:
		spec, err := parsePromo(strings.Fields(text))
		if err != nil {
			return badInput(err, p)
		}
		return c.createPromo(ctx, spec)
	case views.AdmPromoBulk:
		count, spec, prefix, err := parseBulk(strings.Fields(text))
		if err != nil {
			return badInput(err, p)
		}
		return c.createBulk(ctx, count, spec, prefix)
	case views.AdmSetting:
		v, err := parseSetting(p.Arg, text)
		if err != nil {
			return badInput(err, p)
		}
		return c.setSetting(ctx, p.Arg, v)
	}
	return Result{Alert: "Неизвестное действие"}
}

// userOp после успеха показывает карточку пользователя
func (c *Console) userOp(ctx context.Context, action string, id int64, params string, call func(ctx context.Context) error) Result {
	return c.mutate(ctx, action, params, func(ctx context.Context) error {
		if err := call(ctx); err != nil {
			return err
		}
		c.focusUser(id)
		return nil
	})
}

func (c *Console) addBalance(ctx context.Context, id int64, amount float64) Result {
	return c.userOp(ctx, "add_balance", id, fmt.Sprintf("user=%d amount=%s", id, views.Num(amount)), func(ctx context.Context) error {
		return c.api.AdminAddBalance(ctx, id, amount)
	})
}

func (c *Console) setBalance(ctx context.Context, id int64, balance float64) Result {
	return c.userOp(ctx, "set_balance", id, fmt.Sprintf("user=%d balance=%s", id, views.Num(balance)), func(ctx context.Context) error {
		return c.api.AdminSetBalance(ctx, id, balance)
	})
}

func (c *Console) extend(ctx context.Context, id int64, days int) Result {
	return c.userOp(ctx, "extend_subscription", id, fmt.Sprintf("user=%d days=%d", id, days), func(ctx context.Context) error {
		return c.api.AdminExtendSubscription(ctx, id, days)
	})
}

func (c *Console) cancelSubscription(ctx context.Context, id int64) Result {
	return c.userOp(ctx, "cancel_subscription", id, fmt.Sprintf("user=%d", id), func(ctx context.Context) error {
		return c.api.AdminCancelSubscription(ctx, id)
	})
}

func (c *Console) ban(ctx context.Context, id int64, reason string) Result {
	return c.userOp(ctx, "ban_user", id, fmt.Sprintf("user=%d reason=%s", id, reason), func(ctx context.Context) error {
		return c.api.AdminBanUser(ctx, id, reason, nil)
	})
}

func (c *Console) unban(ctx context.Context, id int64) Result {
	return c.mutate(ctx, "unban_user", fmt.Sprintf("user=%d", id), func(ctx context.Context) error {
		return c.api.AdminUnbanUser(ctx, id)
	})
}

func (c *Console) banIP(ctx context.Context, ip, reason string) Result {
	if reason == "" {
		reason = defaultBanReason
	}
	return c.mutate(ctx, "ban_ip", "ip="+ip, func(ctx context.Context) error {
		if err := c.api.AdminBanIP(ctx, ip, reason, nil); err != nil {
			return err
		}
		c.setView(views.TabBans)
		return nil
	})
}

func (c *Console) unbanIP(ctx context.Context, ip string) Result {
	return c.mutate(ctx, "unban_ip", "ip="+ip, func(ctx context.Context) error {
		return c.api.AdminUnbanIP(ctx, ip)
	})
}

func (c *Console) createPromo(ctx context.Context, spec api.PromoSpec) Result {
	var created *api.PromoCode
	res := c.mutate(ctx, "create_promo", fmt.Sprintf("type=%s value=%s", spec.Type, views.Num(spec.Value)), func(ctx context.Context) error {
		p, err := c.api.AdminCreatePromoCode(ctx, spec)
		if err != nil {
			return err
		}
		created = p
		c.setView(views.TabPromo)
		return nil
	})
	if created != nil {
		res.Alert = "✅ Создан промокод " + created.Code
	}
	return res
}

func (c *Console) createBulk(ctx context.Context, count int, spec api.PromoSpec, prefix string) Result {
	var codes []string
	res := c.mutate(ctx, "create_bulk_promo", fmt.Sprintf("count=%d type=%s value=%s prefix=%s", count, spec.Type, views.Num(spec.Value), prefix), func(ctx context.Context) error {
		list, err := c.api.AdminCreateBulkPromoCodes(ctx, count, spec, prefix)
		if err != nil {
			return err
		}
		codes = list
		c.setView(views.TabPromo)
		return nil
	})
	if codes != nil {
		res.Alert = fmt.Sprintf("✅ Создано %d промокодов:\n%s", len(codes), strings.Join(codes, "\n"))
	}
	return res
}

func (c *Console) deactivate(ctx context.Context, code string) Result {
	return c.mutate(ctx, "deactivate_promo", "code="+code, func(ctx context.Context) error {
		if err := c.api.AdminDeactivatePromoCode(ctx, code); err != nil {
			return err
		}
		c.setView(views.TabPromo)
		return nil
	})
}

func (c *Console) createPlan(ctx context.Context, in api.PlanInput) Result {
	return c.mutate(ctx, "create_plan", "name="+in.Name, func(ctx context.Context) error {
		if _, err := c.api.AdminCreatePlan(ctx, in); err != nil {
			return err
		}
		c.setView(views.TabPlans)
		return nil
	})
}

// togglePlan берёт текущее состояние тарифа из списка и инвертирует его
func (c *Console) togglePlan(ctx context.Context, raw string) Result {
	id, err := parseUUID(raw)
	if err != nil {
		return Result{Alert: err.Error()}
	}
	return c.mutate(ctx, "toggle_plan", "plan="+raw, func(ctx context.Context) error {
		plans, err := c.api.AdminListPlans(ctx)
		if err != nil {
			return err
		}
		for _, p := range plans {
			if p.ID == id {
				active := !p.IsActive
				return c.api.AdminUpdatePlan(ctx, id, api.PlanPatch{IsActive: &active})
			}
		}
		return fmt.Errorf("тариф %s не найден", raw)
	})
}

func (c *Console) deletePlan(ctx context.Context, raw string) Result {
	id, err := parseUUID(raw)
	if err != nil {
		return Result{Alert: err.Error()}
	}
	return c.mutate(ctx, "delete_plan", "plan="+raw, func(ctx context.Context) error {
		if err := c.api.AdminDeletePlan(ctx, id); err != nil {
			return err
		}
		c.setView(views.TabPlans)
		return nil
	})
}

func (c *Console) createServer(ctx context.Context, in api.ServerInput) Result {
	return c.mutate(ctx, "create_server", "name="+in.Name+" address="+in.ServerAddress, func(ctx context.Context) error {
		if _, err := c.api.AdminCreateServer(ctx, in); err != nil {
			return err
		}
		c.setView(views.TabServers)
		return nil
	})
}

func (c *Console) toggleServer(ctx context.Context, raw string) Result {
	id, err := parseUUID(raw)
	if err != nil {
		return Result{Alert: err.Error()}
	}
	return c.mutate(ctx, "toggle_server", "server="+raw, func(ctx context.Context) error {
		servers, err := c.api.AdminListServers(ctx)
		if err != nil {
			return err
		}
		for _, s := range servers {
			if s.ID == id {
				active := !s.IsActive
				return c.api.AdminUpdateServer(ctx, id, api.ServerPatch{IsActive: &active})
			}
		}
		return fmt.Errorf("сервер %s не найден", raw)
	})
}

func (c *Console) deleteServer(ctx context.Context, raw string) Result {
	id, err := parseUUID(raw)
	if err != nil {
		return Result{Alert: err.Error()}
	}
	return c.mutate(ctx, "delete_server", "server="+raw, func(ctx context.Context) error {
		if err := c.api.AdminDeleteServer(ctx, id); err != nil {
			return err
		}
		c.setView(views.TabServers)
		return nil
	})
}

// testServer не мутирует, но результат проверки держим до ухода с вкладки
func (c *Console) testServer(ctx context.Context, raw string) Result {
	id, err := parseUUID(raw)
	if err != nil {
		return Result{Alert: err.Error()}
	}
	res, err := c.api.AdminTestServer(ctx, id)
	if err != nil {
		return Result{Alert: "❌ " + errText(err)}
	}
	c.mu.Lock()
	c.test = res
	c.view = views.TabServers
	c.mu.Unlock()
	return c.show(ctx)
}

func (c *Console) setSetting(ctx context.Context, key string, v float64) Result {
	var call func(ctx context.Context) error
	switch key {
	case views.SettingTopupBonus:
		call = func(ctx context.Context) error { return c.api.AdminSetTopupBonus(ctx, v) }
	case views.SettingReferralBonus:
		call = func(ctx context.Context) error { return c.api.AdminSetReferralBonus(ctx, v) }
	case views.SettingReferralBonusDays:
		call = func(ctx context.Context) error { return c.api.AdminSetReferralBonusDays(ctx, int(v)) }
	case views.SettingRegionSwitchPrice:
		call = func(ctx context.Context) error { return c.api.AdminSetRegionSwitchPrice(ctx, v) }
	default:
		return Result{Alert: "Неизвестная настройка " + key}
	}
	return c.mutate(ctx, "set_setting", key+"="+strconv.FormatFloat(v, 'f', -1, 64), func(ctx context.Context) error {
		if err := call(ctx); err != nil {
			return err
		}
		c.setView(views.TabSettings)
		return nil
	})
}
