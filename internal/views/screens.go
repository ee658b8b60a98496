package views

import (
	"fmt"
	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"net/url"
	"strings"
	"zyvpn-miniapp/internal/api"
	"zyvpn-miniapp/internal/store"
	"zyvpn-miniapp/internal/wallet"
)

var TopUpAmounts = []float64{0.5, 1, 2, 5}

const (
	shareText  = "Присоединяйся к ZyVPN! Быстрый и безопасный VPN."
	qrSize     = 256
	txListSize = 10
)

type HomeData struct {
	State     store.State
	FirstName string
	BotName   string
	IsAdmin   bool
}

func Home(d HomeData) Screen {
	st := d.State
	rates := st.RatesOrFallback()
	var b strings.Builder

	fmt.Fprintf(&b, "<b>%s</b>\n", esc(d.BotName))
	if d.FirstName != "" {
		fmt.Fprintf(&b, "Привет, %s!\n", esc(d.FirstName))
	} else {
		b.WriteString("Быстрый и безопасный VPN\n")
	}
	fmt.Fprintf(&b, "💎 Баланс: %s\n", TON(st.Balance, 2))

	active := st.HasActiveSubscription()
	if active && st.SubscriptionStatus != nil && st.SubscriptionStatus.Subscription != nil {
		b.WriteString("\n<b>Ваша подписка</b>\n")
		b.WriteString(SubscriptionCard(st.SubscriptionStatus) + "\n")
	}

	if active {
		b.WriteString("\n<b>Продлить подписку</b>\n")
	} else {
		b.WriteString("\n<b>Выберите тариф</b>\n")
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range st.Plans {
		b.WriteString("\n" + PlanCard(p, rates) + "\n")
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button(PlanButtonLabel(p, rates), CbPlan+p.ID.String())))
	}
	if st.Error != "" {
		b.WriteString("\n⚠️ " + esc(st.Error) + "\n")
	}

	if !active && (st.User == nil || st.User.Subscription == nil) {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("🎉 Попробовать бесплатно", CbTrial)))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(navButton("🔑 Ключ", ScreenKey), navButton("🎁 Рефералы", ScreenReferral)),
		tgbotapi.NewInlineKeyboardRow(navButton("🌍 Серверы", ScreenServers), navButton("💎 Баланс", ScreenBalance)),
	)
	if d.IsAdmin {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(navButton("⚙️ Admin Panel", ScreenAdmin)))
	}
	return Screen{Text: b.String(), Markup: markup(rows...)}
}

// Onboarding показывается один раз, флаг хранится в prefs
func Onboarding(botName string) Screen {
	text := fmt.Sprintf("🎁 <b>Добро пожаловать в %s!</b>\n\n"+
		"У тебя есть промокод? Активируй его на странице баланса и получи бонус!\n\n"+
		"💎 <b>Баланс → Промокод</b>\nВведи код и нажми OK", esc(botName))
	return Screen{Text: text, Markup: markup(tgbotapi.NewInlineKeyboardRow(
		button("Позже", CbOnboarding+"later"),
		button("Ввести промокод", CbOnboarding+"promo"),
	))}
}

// Key - ключ подключения с QR-кодом
func Key(st store.State) (Screen, error) {
	if !st.HasActiveSubscription() {
		text := "🔒 <b>Нет активной подписки</b>\n\nОформите подписку, чтобы получить ключ подключения"
		return Screen{Text: text, Markup: markup(tgbotapi.NewInlineKeyboardRow(navButton("Выбрать тариф", ScreenHome)))}, nil
	}
	if st.ConnectionKey == "" {
		return Screen{Text: "⏳ Загружаем ключ..."}, nil
	}

	png, err := qrcode.Encode(st.ConnectionKey, qrcode.Medium, qrSize)
	if err != nil {
		return Screen{}, fmt.Errorf("qr: %w", err)
	}
	var b strings.Builder
	b.WriteString("<b>Ваш ключ</b>\n\nVLESS ключ:\n")
	b.WriteString("<code>" + esc(st.ConnectionKey) + "</code>\n")
	b.WriteString("<i>Нажмите на ключ, чтобы скопировать</i>\n\n")
	b.WriteString("<b>Как подключиться:</b>\n")
	b.WriteString("1. Установите приложение для VPN\n")
	b.WriteString("   iOS: Streisand, V2Box\n   Android: V2rayNG, NekoBox\n   Windows/Mac: Nekoray, V2rayN\n")
	b.WriteString("2. Скопируйте ключ выше\n")
	b.WriteString("3. В приложении выберите \"Добавить из буфера\"\n")
	b.WriteString("4. Подключитесь!")

	return Screen{
		Text:  b.String(),
		Photo: png,
		Markup: markup(
			tgbotapi.NewInlineKeyboardRow(navButton("🌍 Сменить сервер", ScreenServers)),
		),
	}, nil
}

// CanPayFromBalance - оплата с баланса доступна, только если хватает средств
func CanPayFromBalance(balance, priceTON float64) bool {
	return balance >= priceTON
}

type PaymentData struct {
	Plan          api.Plan
	Balance       float64
	Rates         api.ExchangeRates
	Method        api.Provider
	WalletAddress string
	Busy          bool
	Error         string
}

func Payment(d PaymentData) Screen {
	p := d.Plan
	var b strings.Builder
	b.WriteString("<b>Оплата</b>\nВыберите способ оплаты\n\n")
	fmt.Fprintf(&b, "<b>%s</b>\n", esc(p.Name))
	if p.Description != "" {
		b.WriteString(esc(p.Description) + "\n")
	}
	fmt.Fprintf(&b, "≈%s ($%s)\n\n", RUB(p.PriceUSD*d.Rates.UsdRUB), Num(p.PriceUSD))

	var methods []tgbotapi.InlineKeyboardButton
	canBalance := CanPayFromBalance(d.Balance, p.PriceTON)
	if d.Balance > 0 {
		sub := fmt.Sprintf("%s (хватает!)", TON(d.Balance, 4))
		if !canBalance {
			sub = fmt.Sprintf("%s (нужно %s TON)", TON(d.Balance, 4), Num(p.PriceTON))
		}
		b.WriteString(MethodCard("💰", "Баланс", sub, d.Method == api.ProviderBalance, !canBalance) + "\n")
		if canBalance {
			methods = append(methods, button(selected("💰 Баланс", d.Method == api.ProviderBalance), CbPayMethod+string(api.ProviderBalance)))
		} else {
			methods = append(methods, button("🚫 Баланс", CbNoop))
		}
	}
	b.WriteString(MethodCard("💎", "TON", fmt.Sprintf("%s TON ≈ %s", Num(p.PriceTON), RUB(p.PriceTON*d.Rates.TonRUB)), d.Method == api.ProviderTON, false) + "\n")
	b.WriteString(MethodCard("⭐", "Telegram Stars", fmt.Sprintf("%d ⭐ ≈ %s", p.PriceStars, RUB(float64(p.PriceStars)*StarRUB(d.Rates))), d.Method == api.ProviderStars, false) + "\n")
	methods = append(methods,
		button(selected("💎 TON", d.Method == api.ProviderTON), CbPayMethod+string(api.ProviderTON)),
		button(selected("⭐ Stars", d.Method == api.ProviderStars), CbPayMethod+string(api.ProviderStars)),
	)

	if d.Error != "" {
		b.WriteString("\n❌ " + esc(d.Error) + "\n")
	}
	if d.Method == api.ProviderTON && d.WalletAddress != "" {
		b.WriteString("\nКошелек подключен: " + ShortAddr(d.WalletAddress))
	}

	payLabel := "⏳ Обработка..."
	payData := CbNoop
	if !d.Busy {
		payData = CbPay
		switch d.Method {
		case api.ProviderBalance:
			payLabel = fmt.Sprintf("Оплатить с баланса (%s TON)", Num(p.PriceTON))
		case api.ProviderStars:
			payLabel = fmt.Sprintf("Оплатить %d Stars", p.PriceStars)
		default:
			payLabel = fmt.Sprintf("Оплатить %s TON", Num(p.PriceTON))
		}
	}
	return Screen{Text: b.String(), Markup: markup(
		methods,
		tgbotapi.NewInlineKeyboardRow(button(payLabel, payData)),
	)}
}

func selected(label string, on bool) string {
	if on {
		return "✓ " + label
	}
	return label
}

type BalanceData struct {
	Balance       float64
	Rates         api.ExchangeRates
	Method        api.Provider
	Amount        float64
	WalletAddress string
	Transactions  []api.BalanceTransaction
	Busy          bool
	Waiting       bool
	Error         string
	PromoError    string
	PromoSuccess  string
}

func Balance(d BalanceData) Screen {
	var b strings.Builder
	b.WriteString("<b>Баланс</b>\n\n")
	fmt.Fprintf(&b, "💎 <b>%s</b>\nTON ≈ %s\n\n", Num4(d.Balance), RUB(d.Balance*d.Rates.TonRUB))

	b.WriteString("<b>Промокод</b>\n")
	switch {
	case d.PromoSuccess != "":
		b.WriteString("✅ " + esc(d.PromoSuccess) + "\n")
	case d.PromoError != "":
		b.WriteString("❌ " + esc(d.PromoError) + "\n")
	default:
		b.WriteString("Нажмите «Ввести промокод» и отправьте код сообщением\n")
	}

	b.WriteString("\n<b>Пополнить баланс</b>\n")
	methodRow := tgbotapi.NewInlineKeyboardRow(
		button(selected("💎 TON", d.Method != api.ProviderStars), CbTopUpMethod+string(api.ProviderTON)),
		button(selected("⭐ Stars", d.Method == api.ProviderStars), CbTopUpMethod+string(api.ProviderStars)),
	)
	var amountRow []tgbotapi.InlineKeyboardButton
	for _, a := range TopUpAmounts {
		amountRow = append(amountRow, button(selected(Num(a), d.Amount == a), CbTopUpAmount+Num(a)))
	}

	var payRow []tgbotapi.InlineKeyboardButton
	if d.Amount > 0 {
		fmt.Fprintf(&b, "Сумма: %s TON\n≈ %s\n", Num(d.Amount), RUB(d.Amount*d.Rates.TonRUB))
		if d.Method == api.ProviderStars {
			fmt.Fprintf(&b, "В Stars: ~%d XTR\n", StarsEstimate(d.Amount))
		}
		if d.Error != "" {
			b.WriteString("❌ " + esc(d.Error) + "\n")
		}
		if d.Method != api.ProviderStars && d.WalletAddress != "" {
			b.WriteString("Кошелек: " + ShortAddr(d.WalletAddress) + "\n")
		}
		payRow = tgbotapi.NewInlineKeyboardRow(button(topUpLabel(d), topUpData(d)))
	} else {
		b.WriteString("Выберите сумму\n")
	}

	b.WriteString("\n<b>История операций</b>\n")
	if len(d.Transactions) == 0 {
		b.WriteString("Нет операций\n")
	}
	for i, tx := range d.Transactions {
		if i == txListSize {
			break
		}
		sign := ""
		if tx.Amount > 0 {
			sign = "+"
		}
		fmt.Fprintf(&b, "%s · %s · %s%s TON\n", TxLabel(tx.Type), DateTime(tx.CreatedAt), sign, Num4(tx.Amount))
	}

	var walletRow []tgbotapi.InlineKeyboardButton
	if d.WalletAddress != "" {
		walletRow = tgbotapi.NewInlineKeyboardRow(button("🔌 Отключить кошелёк", wallet.CallbackDisconnect))
	}
	return Screen{Text: b.String(), Markup: markup(
		tgbotapi.NewInlineKeyboardRow(button("🎟 Ввести промокод", CbPromo)),
		methodRow,
		amountRow,
		payRow,
		walletRow,
	)}
}

func topUpLabel(d BalanceData) string {
	switch {
	case d.Waiting:
		return "⏳ Ожидание подтверждения..."
	case d.Busy:
		return "⏳ Обработка..."
	case d.Method == api.ProviderStars:
		return "Пополнить через Stars"
	case d.WalletAddress == "":
		return "Подключить кошелёк"
	default:
		return fmt.Sprintf("Пополнить %s TON", Num(d.Amount))
	}
}

func topUpData(d BalanceData) string {
	if d.Busy || d.Waiting {
		return CbNoop
	}
	return CbTopUp
}

// StarsEstimate - примерная сумма в Stars для пополнения
func StarsEstimate(amountTON float64) int64 {
	return int64(amountTON*100 + 0.5)
}

func Num4(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

// ShareURL - ссылка на шаринг в Telegram
func ShareURL(link, text string) string {
	return "https://t.me/share/url?url=" + url.QueryEscape(link) + "&text=" + url.QueryEscape(text)
}

// ReferralShareURL - окно "поделиться" с приглашением и ссылкой
func ReferralShareURL(link string) string {
	return ShareURL(link, shareText)
}

type ReferralData struct {
	State           store.State
	ReferralApplied bool
	Message         string
}

func Referral(d ReferralData) Screen {
	st := d.State
	var b strings.Builder
	b.WriteString("<b>Реферальная программа</b>\nПриглашай друзей и получай % от их платежей!\n\n")
	b.WriteString("<b>Как это работает:</b>\n")
	b.WriteString("1️⃣ Поделись своей ссылкой с другом\n")
	b.WriteString("2️⃣ Друг регистрируется и оплачивает подписку\n")
	b.WriteString("3️⃣ Ты получаешь % от каждого платежа друга на баланс!\n")

	if rs := st.ReferralStats; rs != nil {
		fmt.Fprintf(&b, "\n👥 Приглашено: <b>%d</b>\n⏳ Ожидают: <b>%d</b>\n💎 Начислено: <b>+%.2f TON</b>\n",
			rs.TotalReferrals, rs.PendingReferrals, rs.CreditedBonusTON)
	}
	if d.Message != "" {
		b.WriteString("\n" + esc(d.Message) + "\n")
	}

	var shareRow, applyRow []tgbotapi.InlineKeyboardButton
	if st.ReferralLink != "" {
		b.WriteString("\nВаша ссылка:\n<code>" + esc(st.ReferralLink) + "</code>")
		shareRow = tgbotapi.NewInlineKeyboardRow(button("📤 Поделиться", CbRefShare))
	}
	if !d.ReferralApplied {
		applyRow = tgbotapi.NewInlineKeyboardRow(button("🎟 У меня есть код друга", CbRefApply))
	}
	return Screen{Text: b.String(), Markup: markup(shareRow, applyRow)}
}

type ServersData struct {
	Servers         []api.Server
	Current         *uuid.UUID
	Selected        *uuid.UUID
	HasSubscription bool
	Info            *api.SwitchInfo
	Error           string
	NeedMore        bool
}

// IsCurrent - сервер уже выбран в подписке, смена на него ничего не делает
func IsCurrent(current *uuid.UUID, id uuid.UUID) bool {
	return current != nil && *current == id
}

func Servers(d ServersData) Screen {
	var b strings.Builder
	b.WriteString("<b>Серверы</b>\n\n")
	if len(d.Servers) == 0 {
		b.WriteString("Нет доступных серверов\n")
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range d.Servers {
		b.WriteString(ServerLine(s) + "\n")
		label := s.FlagEmoji + " " + s.Name
		switch {
		case d.HasSubscription && IsCurrent(d.Current, s.ID):
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("✅ "+label+" (текущий)", CbNoop)))
		case !d.HasSubscription && IsCurrent(d.Selected, s.ID):
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("✓ "+label, CbNoop)))
		case s.Status == api.ServerOffline:
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("🔴 "+label, CbNoop)))
		default:
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(button(label, CbServer+s.ID.String())))
		}
	}

	if d.HasSubscription && d.Info != nil {
		if d.Info.FreeSwitches > 0 {
			fmt.Fprintf(&b, "\nСмена сервера: бесплатно (осталось %d)\n", d.Info.FreeSwitches)
		} else {
			fmt.Fprintf(&b, "\nСмена сервера: %s TON с баланса\n", Num(d.Info.Price))
		}
	}
	if !d.HasSubscription {
		b.WriteString("\nВыбранный сервер будет использован при покупке подписки\n")
	}
	if d.Error != "" {
		b.WriteString("\n❌ " + esc(d.Error) + "\n")
	}
	if d.NeedMore {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(navButton("💎 Пополнить баланс", ScreenBalance)))
	}
	return Screen{Text: b.String(), Markup: markup(rows...)}
}

func Help(botName string) Screen {
	text := fmt.Sprintf("<b>%s</b>\n\n"+
		"/start - главный экран\n"+
		"/key - ключ подключения\n"+
		"/balance - баланс и пополнение\n"+
		"/referral - реферальная программа\n"+
		"/servers - выбор сервера\n"+
		"/help - эта справка", esc(botName))
	return Screen{Text: text}
}
