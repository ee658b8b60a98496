package views

import (
	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"slices"
)

// Префиксы callback data. Telegram ограничивает data 64 байтами, uuid укладывается.
const (
	CbNav         = "nav:"
	CbPlan        = "plan:"
	CbPayMethod   = "pm:"
	CbPay         = "pay"
	CbTopUpAmount = "tu:amt:"
	CbTopUpMethod = "tu:m:"
	CbTopUp       = "topup"
	CbServer      = "srv:"
	CbTrial       = "trial"
	CbPromo       = "promo"
	CbRefApply    = "ref:apply"
	CbRefShare    = "ref:share"
	CbOnboarding  = "onb:"
	CbAdmin       = "adm:"
	CbNoop        = "noop"
)

// Экраны для nav:<screen>
const (
	ScreenHome     = "home"
	ScreenKey      = "key"
	ScreenBalance  = "balance"
	ScreenReferral = "referral"
	ScreenServers  = "servers"
	ScreenPayment  = "payment"
	ScreenAdmin    = "admin"
	ScreenHelp     = "help"
)

// Screen - текст в HTML и клавиатура. Photo, если есть, отправляется картинкой с подписью Text.
type Screen struct {
	Text   string
	Markup *tgbotapi.InlineKeyboardMarkup
	Photo  []byte
}

func markup(rows ...[]tgbotapi.InlineKeyboardButton) *tgbotapi.InlineKeyboardMarkup {
	var filtered [][]tgbotapi.InlineKeyboardButton
	for _, r := range rows {
		if len(r) > 0 {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	m := tgbotapi.NewInlineKeyboardMarkup(filtered...)
	return &m
}

func button(text, data string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, data)
}

func navButton(text, screen string) tgbotapi.InlineKeyboardButton {
	return button(text, CbNav+screen)
}

func backRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(navButton("← Назад", ScreenHome))
}

// WithBack добавляет под клавиатуру экрана кнопку возврата на главный
func WithBack(scr Screen) Screen {
	var rows [][]tgbotapi.InlineKeyboardButton
	if scr.Markup != nil {
		rows = slices.Clone(scr.Markup.InlineKeyboard)
	}
	scr.Markup = markup(append(rows, backRow())...)
	return scr
}
