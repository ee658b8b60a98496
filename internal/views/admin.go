package views

import (
	"fmt"
	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"strconv"
	"strings"
	"zyvpn-miniapp/internal/api"
)

// Вкладки админки
const (
	TabStats    = "stats"
	TabUsers    = "users"
	TabBans     = "bans"
	TabPromo    = "promo"
	TabPlans    = "plans"
	TabServers  = "servers"
	TabSettings = "settings"
	TabLogs     = "logs"
)

// Действия админки: adm:<action>[:<arg>]. Префикс ok: - подтверждённая мутация.
const (
	AdmTab          = "tab"
	AdmSearch       = "search"
	AdmUser         = "user"
	AdmAddBalance   = "addbal"
	AdmSetBalance   = "setbal"
	AdmExtend       = "extend"
	AdmCancel       = "cancel"
	AdmBan          = "ban"
	AdmUnban        = "unban"
	AdmBanIP        = "banip"
	AdmUnbanIP      = "unbanip"
	AdmPromoNew     = "promonew"
	AdmPromoBulk    = "promobulk"
	AdmDeactivate   = "deact"
	AdmPlanToggle   = "plantgl"
	AdmPlanDelete   = "plandel"
	AdmServerTest   = "srvtest"
	AdmServerToggle = "srvtgl"
	AdmServerDelete = "srvdel"
	AdmSetting      = "set"
	AdmConfirm      = "ok"
)

// Ключи настроек на сервере
const (
	SettingTopupBonus        = "topup_bonus_percent"
	SettingReferralBonus     = "referral_bonus_percent"
	SettingReferralBonusDays = "referral_bonus_days"
	SettingRegionSwitchPrice = "region_switch_price"
)

var settingTitles = map[string]string{
	SettingTopupBonus:        "Бонус к пополнению, %",
	SettingReferralBonus:     "Реферальный бонус, %",
	SettingReferralBonusDays: "Дни реферального бонуса",
	SettingRegionSwitchPrice: "Цена смены сервера, TON",
}

var settingOrder = []string{SettingTopupBonus, SettingReferralBonus, SettingReferralBonusDays, SettingRegionSwitchPrice}

// AdmData собирает callback data админки
func AdmData(action string, args ...string) string {
	return CbAdmin + strings.Join(append([]string{action}, args...), ":")
}

func admButton(text, action string, args ...string) tgbotapi.InlineKeyboardButton {
	return button(text, AdmData(action, args...))
}

func adminTabs(active string) [][]tgbotapi.InlineKeyboardButton {
	tab := func(name, title string) tgbotapi.InlineKeyboardButton {
		return admButton(selected(title, name == active), AdmTab, name)
	}
	return [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(tab(TabStats, "Stats"), tab(TabUsers, "Users"), tab(TabBans, "Bans"), tab(TabPromo, "Promo")),
		tgbotapi.NewInlineKeyboardRow(tab(TabPlans, "Plans"), tab(TabServers, "Servers"), tab(TabSettings, "Settings"), tab(TabLogs, "Logs")),
	}
}

func adminScreen(tab, body, errMsg string, extra ...[]tgbotapi.InlineKeyboardButton) Screen {
	var b strings.Builder
	b.WriteString("⚙️ <b>Admin Panel</b>\n\n")
	if errMsg != "" {
		b.WriteString("❌ " + esc(errMsg) + "\n\n")
	}
	b.WriteString(body)
	rows := adminTabs(tab)
	rows = append(rows, extra...)
	return Screen{Text: b.String(), Markup: markup(rows...)}
}

func AdminDenied() Screen {
	return Screen{Text: "⛔ <b>Access denied</b>\n\nУ вас нет доступа к админ-панели", }
}

func AdminStats(s *api.AdminStats, errMsg string) Screen {
	var body string
	if s != nil {
		body = fmt.Sprintf("👥 Пользователи: <b>%d</b>\n✅ Активные подписки: <b>%d</b>\n🚫 Забанено: <b>%d</b>\n🎟 Активные промокоды: <b>%d</b>",
			s.TotalUsers, s.ActiveSubscriptions, s.BannedUsers, s.ActivePromoCodes)
	}
	return adminScreen(TabStats, body, errMsg)
}

func userTitle(u api.User) string {
	if name := u.DisplayName(); name != "" {
		return name
	}
	return fmt.Sprintf("User %d", u.ID)
}

func AdminUsers(list *api.UserList, search, errMsg string) Screen {
	var b strings.Builder
	var rows [][]tgbotapi.InlineKeyboardButton
	if search != "" {
		fmt.Fprintf(&b, "Поиск: <code>%s</code>\n", esc(search))
	}
	if list != nil {
		fmt.Fprintf(&b, "Всего: %d\n\n", list.Total)
		for _, u := range list.Users {
			fmt.Fprintf(&b, "<b>%s</b> · <code>%d</code> · %s\n", esc(userTitle(u)), u.ID, TON(u.Balance, 4))
			if u.Subscription != nil {
				fmt.Fprintf(&b, "   Sub: %s (until %s)\n", u.Subscription.Status, Date(u.Subscription.ExpiresAt))
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(admButton(userTitle(u), AdmUser, strconv.FormatInt(u.ID, 10))))
		}
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(admButton("🔍 Search", AdmSearch)))
	return adminScreen(TabUsers, b.String(), errMsg, rows...)
}

func AdminUser(u *api.User, errMsg string) Screen {
	if u == nil {
		return adminScreen(TabUsers, "Пользователь не найден", errMsg)
	}
	id := strconv.FormatInt(u.ID, 10)
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\nID: <code>%d</code>\n", esc(userTitle(*u)), u.ID)
	if u.Username != nil {
		fmt.Fprintf(&b, "Username: @%s\n", esc(*u.Username))
	}
	fmt.Fprintf(&b, "Баланс: %s\nРеф. код: <code>%s</code>\nС нами с %s\n", TON(u.Balance, 4), esc(u.ReferralCode), Date(&u.CreatedAt))

	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(admButton("+ Balance", AdmAddBalance, id), admButton("= Balance", AdmSetBalance, id)),
	}
	if s := u.Subscription; s != nil {
		fmt.Fprintf(&b, "\nПодписка: %s до %s\n", s.Status, Date(s.ExpiresAt))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(admButton("Extend", AdmExtend, id), admButton("Cancel", AdmCancel, id)))
	} else {
		b.WriteString("\nПодписки нет\n")
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(admButton("Extend", AdmExtend, id)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(admButton("Ban", AdmBan, id), admButton("Unban", AdmUnban, id)))
	return adminScreen(TabUsers, b.String(), errMsg, rows...)
}

func AdminBans(bans []api.Ban, errMsg string) Screen {
	var b strings.Builder
	var rows [][]tgbotapi.InlineKeyboardButton
	if len(bans) == 0 {
		b.WriteString("Банов нет\n")
	}
	for _, ban := range bans {
		target := "?"
		switch {
		case ban.UserID != nil:
			target = fmt.Sprintf("User %d", *ban.UserID)
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(admButton("Unban "+target, AdmUnban, strconv.FormatInt(*ban.UserID, 10))))
		case ban.IPAddress != nil:
			target = "IP " + *ban.IPAddress
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(admButton("Unban "+target, AdmUnbanIP, *ban.IPAddress)))
		}
		fmt.Fprintf(&b, "🚫 <b>%s</b> · %s", esc(target), Date(&ban.BannedAt))
		if ban.ExpiresAt != nil {
			fmt.Fprintf(&b, " → %s", Date(ban.ExpiresAt))
		}
		if r := derefStr(ban.Reason); r != "" {
			b.WriteString("\n   " + esc(r))
		}
		b.WriteString("\n")
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(admButton("🚫 Ban IP", AdmBanIP)))
	return adminScreen(TabBans, b.String(), errMsg, rows...)
}

// PromoShareText - текст для рассылки промокода
func PromoShareText(p api.PromoCode, botUsername string) string {
	bonus := fmt.Sprintf("%s TON на баланс", Num(p.Value))
	if p.Type == "days" {
		bonus = fmt.Sprintf("%s дней подписки", Num(p.Value))
	}
	return fmt.Sprintf("🎁 Промокод ZyVPN!\n\n▶️ Код: %s\n💎 Бонус: %s\n\n👉 Активируй: @%s → Баланс → Промокод", p.Code, bonus, botUsername)
}

func AdminPromos(promos []api.PromoCode, botUsername, errMsg string) Screen {
	var b strings.Builder
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range promos {
		state := "✅"
		if !p.IsActive {
			state = "⛔"
		}
		used := strconv.Itoa(p.UsedCount)
		if p.MaxUses != nil {
			used += "/" + strconv.Itoa(*p.MaxUses)
		}
		fmt.Fprintf(&b, "%s <code>%s</code> · %s %s · Used: %s\n", state, esc(p.Code), Num(p.Value), esc(p.Type), used)
		if p.IsActive {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("📤 "+p.Code, ShareURL("", PromoShareText(p, botUsername))),
				admButton("✕ "+p.Code, AdmDeactivate, p.Code),
			))
		}
	}
	if len(promos) == 0 {
		b.WriteString("Промокодов нет\n")
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(admButton("+ Create Promo Code", AdmPromoNew), admButton("+ Bulk", AdmPromoBulk)))
	return adminScreen(TabPromo, b.String(), errMsg, rows...)
}

func AdminPlans(plans []api.Plan, errMsg string) Screen {
	var b strings.Builder
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range plans {
		state := "✅"
		toggle := "Off"
		if !p.IsActive {
			state = "⛔"
			toggle = "On"
		}
		fmt.Fprintf(&b, "%s <b>%s</b> · %d дн · %s TON · %d ⭐ · $%s\n", state, esc(p.Name), p.DurationDays, Num(p.PriceTON), p.PriceStars, Num(p.PriceUSD))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			admButton(toggle+" "+p.Name, AdmPlanToggle, p.ID.String()),
			admButton("🗑 "+p.Name, AdmPlanDelete, p.ID.String()),
		))
	}
	b.WriteString("\nНовый тариф: /admin_plan name;days;traffic_gb;devices;price_ton;price_stars;price_usd")
	return adminScreen(TabPlans, b.String(), errMsg, rows...)
}

func AdminServers(servers []api.AdminServer, test *api.ServerTestResult, errMsg string) Screen {
	var b strings.Builder
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range servers {
		toggle := "Off"
		if !s.IsActive {
			toggle = "On"
		}
		fmt.Fprintf(&b, "%s\n   %s:%d · %d/%d\n", ServerLine(s.Server), esc(s.ServerAddress), s.ServerPort, s.CurrentLoad, s.Capacity)
		id := s.ID.String()
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			admButton("🔌 "+s.Name, AdmServerTest, id),
			admButton(toggle, AdmServerToggle, id),
			admButton("🗑", AdmServerDelete, id),
		))
	}
	if len(servers) == 0 {
		b.WriteString("Серверов нет\n")
	}
	if test != nil {
		if test.Connected {
			fmt.Fprintf(&b, "\n✅ Подключение есть: порт %d, SNI %s, short id %s\n", test.Port, esc(test.ServerName), esc(test.ShortID))
		} else {
			fmt.Fprintf(&b, "\n❌ Нет подключения: %s\n", esc(test.Error))
		}
	}
	b.WriteString("\nНовый сервер: /admin_server name;country;flag;address;port;xui_url;xui_user;xui_pass;inbound_id")
	return adminScreen(TabServers, b.String(), errMsg, rows...)
}

func AdminSettings(settings map[string]string, errMsg string) Screen {
	var b strings.Builder
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, key := range settingOrder {
		val := settings[key]
		if val == "" {
			val = "-"
		}
		fmt.Fprintf(&b, "%s: <b>%s</b>\n", settingTitles[key], esc(val))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(admButton("✏️ "+settingTitles[key], AdmSetting, key)))
	}
	return adminScreen(TabSettings, b.String(), errMsg, rows...)
}

func AdminLogs(logs []api.AdminLog, errMsg string) Screen {
	var b strings.Builder
	for _, l := range logs {
		fmt.Fprintf(&b, "%s · <code>%d</code> · %s", DateTime(l.CreatedAt), l.AdminID, esc(l.Action))
		if l.TargetUserID != nil {
			fmt.Fprintf(&b, " → %d", *l.TargetUserID)
		}
		if d := derefStr(l.Details); d != "" {
			b.WriteString(" · " + esc(d))
		}
		b.WriteString("\n")
	}
	if len(logs) == 0 {
		b.WriteString("Записей нет\n")
	}
	return adminScreen(TabLogs, b.String(), errMsg)
}

// AdminConfirm - подтверждение мутации. Да повторяет действие с префиксом ok.
func AdminConfirm(question, action string, args ...string) Screen {
	yes := AdmData(AdmConfirm, append([]string{action}, args...)...)
	return Screen{Text: "❓ " + esc(question), Markup: markup(tgbotapi.NewInlineKeyboardRow(
		button("✅ Да", yes),
		admButton("✖ Нет", AdmTab, TabStats),
	))}
}

// AdminPrompt - ожидание ввода значения сообщением
func AdminPrompt(question string) Screen {
	return Screen{Text: "✏️ " + esc(question), Markup: markup(tgbotapi.NewInlineKeyboardRow(admButton("✖ Отмена", AdmTab, TabStats)))}
}
