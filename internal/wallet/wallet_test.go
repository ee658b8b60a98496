package wallet

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addrA = "UQBvW8Z5huBkMJYdnfAEM5JqTNkuWX3diqYENkWsIL0XggGG"

func TestToNano(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1", "1000000000", false},
		{"0.5", "500000000", false},
		{"1.5", "1500000000", false},
		{"0.05", "50000000", false},
		{"0.000000001", "1", false},
		{"123.456789012", "123456789012", false},
		{"0.0000000001", "", true},
		{"0", "", true},
		{"-1", "", true},
		{"abc", "", true},
	}
	for _, tt := range tests {
		got, err := ToNano(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFloatToNano(t *testing.T) {
	for amount, want := range map[float64]string{0.5: "500000000", 1: "1000000000", 2: "2000000000", 5: "5000000000", 0.1: "100000000"} {
		got, err := FloatToNano(amount)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress(addrA))
	assert.True(t, ValidAddress("  "+addrA+" "))
	assert.True(t, ValidAddress("0:"+strings.Repeat("ab", 32)))
	assert.False(t, ValidAddress("UQshort"))
	assert.False(t, ValidAddress("hello world"))
	assert.False(t, ValidAddress(""))
}

func TestTransferLink(t *testing.T) {
	m := Message{Address: addrA, Amount: "1500000000", Comment: "pay 1"}
	assert.Equal(t, "ton://transfer/"+addrA+"?amount=1500000000&exp=1700000600&text=pay+1", TransferLink(m, 1700000600))
	assert.True(t, strings.HasPrefix(TonkeeperLink(m, 0), "https://app.tonkeeper.com/transfer/"+addrA+"?amount=1500000000"))
}

type memStore struct {
	mu    sync.Mutex
	addrs map[int64]string
}

func (m *memStore) WalletAddress(ctx context.Context, userID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addrs[userID], nil
}

func (m *memStore) SetWalletAddress(ctx context.Context, userID int64, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addrs[userID] = addr
	return nil
}

type chatSender struct {
	sent chan tgbotapi.MessageConfig
}

func (c *chatSender) Send(ch tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := ch.(tgbotapi.MessageConfig); ok {
		c.sent <- m
	}
	return tgbotapi.Message{}, nil
}

func newLink() (*Link, *memStore, *chatSender) {
	st := &memStore{addrs: map[int64]string{}}
	cs := &chatSender{sent: make(chan tgbotapi.MessageConfig, 8)}
	return NewLink(cs, st, 10, 10), st, cs
}

func TestLink_ConnectWaitsForAddress(t *testing.T) {
	l, st, cs := newLink()

	got := make(chan string, 1)
	go func() {
		addr, err := l.Connect(context.Background())
		assert.NoError(t, err)
		got <- addr
	}()

	<-cs.sent
	assert.True(t, l.AwaitingAddress())
	assert.ErrorIs(t, l.SubmitAddress(context.Background(), "nope"), ErrInvalidAddress)
	require.NoError(t, l.SubmitAddress(context.Background(), addrA))

	assert.Equal(t, addrA, <-got)
	assert.False(t, l.AwaitingAddress())
	assert.Equal(t, addrA, st.addrs[10])

	// адрес переживает пересоздание
	l2 := NewLink(cs, st, 10, 10)
	assert.Equal(t, addrA, l2.Address())
}

func TestLink_ConnectCancelled(t *testing.T) {
	l, _, cs := newLink()
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := l.Connect(ctx)
		errc <- err
	}()
	<-cs.sent
	cancel()

	assert.ErrorIs(t, <-errc, ErrNotConnected)
	assert.Empty(t, l.Address())
}

func TestLink_SendTransactionNotConnected(t *testing.T) {
	l, _, _ := newLink()
	_, err := l.SendTransaction(context.Background(), Transaction{ValidUntil: time.Now().Add(time.Minute).Unix(), Messages: []Message{{Address: addrA, Amount: "1"}}})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestLink_SendTransaction(t *testing.T) {
	tests := []struct {
		desc    string
		confirm bool
		wantErr error
	}{
		{"sent", true, nil},
		{"rejected", false, ErrRejected},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			l, st, cs := newLink()
			st.addrs[10] = addrA

			type result struct {
				r   Receipt
				err error
			}
			done := make(chan result, 1)
			go func() {
				r, err := l.SendTransaction(context.Background(), Transaction{
					ValidUntil: time.Now().Add(10 * time.Minute).Unix(),
					Messages:   []Message{{Address: "EQDrjaLahLkMB-hMCmkzOyBuHJ139ZUYmPHu6RRBKnbdLIYI", Amount: "1500000000"}},
				})
				done <- result{r, err}
			}()

			msg := <-cs.sent
			assert.Contains(t, msg.Text, "1.5 TON")
			assert.Contains(t, msg.Text, "ton://transfer/EQDrjaLahLkMB-hMCmkzOyBuHJ139ZUYmPHu6RRBKnbdLIYI?amount=1500000000")
			require.True(t, l.AwaitingConfirmation())
			require.True(t, l.Confirm(tt.confirm))

			res := <-done
			if tt.wantErr != nil {
				assert.ErrorIs(t, res.err, tt.wantErr)
				return
			}
			require.NoError(t, res.err)
			assert.Equal(t, addrA, res.r.Value)
			assert.False(t, l.Confirm(true))
		})
	}
}

func TestLink_SendTransactionExpired(t *testing.T) {
	l, st, _ := newLink()
	st.addrs[10] = addrA
	_, err := l.SendTransaction(context.Background(), Transaction{
		ValidUntil: time.Now().Add(-time.Second).Unix(),
		Messages:   []Message{{Address: addrA, Amount: "1"}},
	})
	assert.ErrorIs(t, err, ErrExpired)
}

func TestLink_Disconnect(t *testing.T) {
	l, st, _ := newLink()
	st.addrs[10] = addrA
	require.Equal(t, addrA, l.Address())

	require.NoError(t, l.Disconnect(context.Background()))
	assert.Empty(t, l.Address())
	assert.Empty(t, st.addrs[10])
}
