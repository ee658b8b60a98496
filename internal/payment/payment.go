// Package payment проводит одну попытку оплаты тарифа или пополнения баланса:
// создание намерения, действие в кошельке или инвойсе, сверка и опрос статуса.
package payment

import (
	"errors"
	"zyvpn-miniapp/internal/api"
)

// State - шаг попытки оплаты
type State string

const (
	StateIdle           State = "idle"
	StateIntentCreated  State = "intent_created"
	StateAwaitingWallet State = "awaiting_wallet_action"
	StateSubmitted      State = "submitted_for_verification"
	StatePolling        State = "polling"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

var (
	ErrPollTimeout         = errors.New("payment status polling attempts exhausted")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInProgress          = errors.New("payment already in progress")
)

const (
	msgPlanPaid       = "Оплата успешна! Ваша подписка активирована."
	msgTopUpPaid      = "Баланс пополнен на %s TON!"
	msgTxNotFound     = "Транзакция не найдена или истекло время ожидания"
	msgTxFailed       = "Транзакция отменена или не удалась: "
	msgCancelled      = "Оплата отменена"
	msgFailed         = "Ошибка оплаты"
	msgNoInvoice      = "Не удалось создать счёт для оплаты"
	msgNoTONInfo      = "Не удалось получить данные для оплаты TON"
	msgNoFunds        = "Недостаточно средств на балансе"
	msgAlreadyRunning = "Платёж уже обрабатывается"
)

// Error - отказ с текстом для пользователя
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message - текст ошибки для экрана. Сообщение сервера показывается как есть.
func Message(err error) string {
	var pe *Error
	var re *api.RequestError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return pe.Msg
	case errors.As(err, &re):
		return re.Message
	case errors.Is(err, ErrInsufficientBalance):
		return msgNoFunds
	case errors.Is(err, ErrPollTimeout):
		return msgTxNotFound
	case errors.Is(err, ErrInProgress):
		return msgAlreadyRunning
	default:
		return err.Error()
	}
}
