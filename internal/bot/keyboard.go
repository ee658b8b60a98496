package bot

import (
	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ReplyKeyboard - постоянная клавиатура под полем ввода
func ReplyKeyboard(isAdmin bool) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/start"),
			tgbotapi.NewKeyboardButton("/key"),
			tgbotapi.NewKeyboardButton("/balance"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/servers"),
			tgbotapi.NewKeyboardButton("/referral"),
			tgbotapi.NewKeyboardButton("/help"),
		),
	}
	if isAdmin {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("/admin")))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

// Commands - меню команд бота
func Commands() tgbotapi.SetMyCommandsConfig {
	return tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Главный экран"},
		tgbotapi.BotCommand{Command: "key", Description: "Ключ подключения"},
		tgbotapi.BotCommand{Command: "balance", Description: "Баланс и пополнение"},
		tgbotapi.BotCommand{Command: "referral", Description: "Реферальная программа"},
		tgbotapi.BotCommand{Command: "servers", Description: "Выбор сервера"},
		tgbotapi.BotCommand{Command: "help", Description: "Справка"},
	)
}
