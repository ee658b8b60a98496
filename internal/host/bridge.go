// Package host описывает возможности среды, в которой открыто приложение:
// алерты, инвойсы Stars, хаптика, кнопка "назад" и подписанная init data.
package host

import "context"

type InvoiceStatus string

const (
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
	InvoiceFailed    InvoiceStatus = "failed"
	InvoicePending   InvoiceStatus = "pending"
)

type HapticKind string

const (
	HapticSuccess   HapticKind = "success"
	HapticError     HapticKind = "error"
	HapticWarning   HapticKind = "warning"
	HapticSelection HapticKind = "selection"
)

// Bridge - адаптер к хосту. Внедряется в корень сессии, в тестах подменяется Recorder.
type Bridge interface {
	Ready(ctx context.Context) error
	Expand(ctx context.Context) error
	ShowAlert(ctx context.Context, text string) error
	// OpenInvoice блокируется до оплаты, отмены или истечения ctx
	OpenInvoice(ctx context.Context, link, payload string) (InvoiceStatus, error)
	Haptic(ctx context.Context, kind HapticKind)
	SetBackButton(visible bool)
	BackButtonVisible() bool
	OpenLink(ctx context.Context, text, url string) error
	InitData() string
	User() WebAppUser
}
