// Package wallet - подключение TON-кошелька пользователя и отправка перевода.
package wallet

import (
	"context"
	"errors"
)

var (
	ErrNotConnected   = errors.New("wallet not connected")
	ErrRejected       = errors.New("transaction rejected by user")
	ErrExpired        = errors.New("transaction validity window passed")
	ErrInvalidAddress = errors.New("invalid TON address")
)

// Message - один перевод. Amount в нанотонах.
type Message struct {
	Address string
	Amount  string
	Comment string
}

type Transaction struct {
	// ValidUntil - unix-время, после которого кошелёк не примет перевод
	ValidUntil int64
	Messages   []Message
}

// Receipt - непрозрачная квитанция кошелька, уходит серверу на сверку как есть
type Receipt struct {
	Value string
}

type Connector interface {
	Address() string
	// Connect блокируется, пока пользователь не подключит кошелёк или не истечёт ctx
	Connect(ctx context.Context) (string, error)
	SendTransaction(ctx context.Context, tx Transaction) (Receipt, error)
	Disconnect(ctx context.Context) error
}
