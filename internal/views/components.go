package views

import (
	"fmt"
	"math"
	"strings"
	"zyvpn-miniapp/internal/api"
)

const (
	popularPlan = "Pro"
	barWidth    = 12
	msPerDay    = 86400000
)

// TotalDays - полный срок подписки в днях, 30 если даты неизвестны
func TotalDays(sub *api.Subscription) int {
	if sub == nil || sub.StartedAt == nil || sub.ExpiresAt == nil {
		return 30
	}
	ms := sub.ExpiresAt.Sub(*sub.StartedAt).Milliseconds()
	days := int(math.Ceil(float64(ms) / msPerDay))
	return max(1, days)
}

// DaysUsed - сколько дней прошло. daysUsed + daysRemaining == totalDays.
func DaysUsed(total, remaining int) int {
	return total - remaining
}

// PlanCard - карточка тарифа с ценой в рублях
func PlanCard(p api.Plan, rates api.ExchangeRates) string {
	var b strings.Builder
	b.WriteString("<b>" + esc(p.Name) + "</b>")
	if p.Name == popularPlan {
		b.WriteString(" ⭐ Популярный")
	}
	b.WriteString("\n")
	if p.Description != "" {
		b.WriteString("<i>" + esc(p.Description) + "</i>\n")
	}
	traffic := "∞"
	if !p.Unlimited() {
		traffic = fmt.Sprintf("%d ГБ", p.TrafficGB)
	}
	fmt.Fprintf(&b, "📅 %d дн · 📊 %s · 📱 %d устр\n", p.DurationDays, traffic, p.Devices())
	fmt.Fprintf(&b, "≈%s ($%s)", RUB(p.PriceUSD*rates.UsdRUB), Num(p.PriceUSD))
	return b.String()
}

// PlanButtonLabel - короткая подпись кнопки тарифа
func PlanButtonLabel(p api.Plan, rates api.ExchangeRates) string {
	label := p.Name + " · ≈" + RUB(p.PriceUSD*rates.UsdRUB)
	if p.Name == popularPlan {
		label = "⭐ " + label
	}
	return label
}

// SubscriptionCard - срок и трафик активной подписки
func SubscriptionCard(st *api.SubscriptionStatus) string {
	if st == nil || st.Subscription == nil {
		return ""
	}
	sub := st.Subscription
	total := TotalDays(sub)
	used := DaysUsed(total, st.DaysRemaining)
	usedPercent := math.Min(100, math.Max(0, float64(used)/float64(total)*100))

	var b strings.Builder
	b.WriteString("🟢 <b>Активна</b>\n\n")
	fmt.Fprintf(&b, "Срок действия: %d дней\n", st.DaysRemaining)
	b.WriteString(Bar(100-usedPercent, barWidth) + "\n")
	fmt.Fprintf(&b, "До %s (%d из %d дней)\n\n", Date(sub.ExpiresAt), st.DaysRemaining, total)

	traffic := st.TrafficGB
	if traffic.Limit <= 0 {
		fmt.Fprintf(&b, "Трафик: %.1f ГБ\n", traffic.Used)
		b.WriteString("Безлимитный трафик")
		return b.String()
	}
	fmt.Fprintf(&b, "Трафик: %.1f / %s ГБ\n", traffic.Used, Num(traffic.Limit))
	b.WriteString(Bar(traffic.Used/traffic.Limit*100, barWidth))
	return b.String()
}

// MethodCard - строка способа оплаты
func MethodCard(icon, title, subtitle string, selected, disabled bool) string {
	mark := "○"
	if selected {
		mark = "●"
	}
	line := fmt.Sprintf("%s %s <b>%s</b>: %s", mark, icon, esc(title), esc(subtitle))
	if disabled {
		line = "<s>" + line + "</s>"
	}
	return line
}

// TxLabel - подпись типа операции по балансу
func TxLabel(t api.TransactionType) string {
	switch t {
	case api.TxReferralBonus:
		return "Реферальный бонус"
	case api.TxGiveaway:
		return "Розыгрыш"
	case api.TxSubscriptionPayment:
		return "Оплата подписки"
	case api.TxRefund:
		return "Возврат"
	case api.TxTopUp:
		return "Пополнение"
	case api.TxPromoCode:
		return "Промокод"
	case api.TxManual:
		return "Ручное начисление"
	default:
		return string(t)
	}
}

// ServerLine - флаг, название, город, нагрузка, пинг и статус
func ServerLine(s api.Server) string {
	name := s.FlagEmoji + " " + esc(s.Name)
	if city := derefStr(s.City); city != "" {
		name += ", " + esc(city)
	}
	status := "🔴 offline"
	if s.Status == api.ServerOnline {
		status = "🟢 online"
	}
	parts := []string{name, status, fmt.Sprintf("%d%%", int(math.Round(s.LoadPercent)))}
	if s.PingMs != nil {
		parts = append(parts, fmt.Sprintf("%d ms", *s.PingMs))
	}
	return strings.Join(parts, " · ")
}
