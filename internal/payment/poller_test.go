package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zyvpn-miniapp/internal/api"
)

// sequence отдаёт статусы по порядку, последний повторяется
func sequence(calls *int, states ...api.PaymentState) CheckFunc {
	return func(ctx context.Context) (*api.PaymentStatus, error) {
		i := *calls
		*calls++
		if i >= len(states) {
			i = len(states) - 1
		}
		return &api.PaymentStatus{Status: states[i]}, nil
	}
}

func TestPoller_StopsAtFirstTerminal(t *testing.T) {
	calls := 0
	p := Poller{Interval: time.Millisecond}

	st, err := p.Run(context.Background(), sequence(&calls, api.PaymentPending, api.PaymentAwaitingTx, api.PaymentCompleted, api.PaymentFailed))
	require.NoError(t, err)
	assert.Equal(t, api.PaymentCompleted, st.Status)
	assert.Equal(t, 3, calls)
}

func TestPoller_FirstPollImmediate(t *testing.T) {
	calls := 0
	p := Poller{Interval: time.Hour}

	start := time.Now()
	st, err := p.Run(context.Background(), sequence(&calls, api.PaymentFailed))
	require.NoError(t, err)
	assert.Equal(t, api.PaymentFailed, st.Status)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPoller_Timeout(t *testing.T) {
	calls := 0
	p := Poller{Interval: time.Millisecond, MaxAttempts: 3}

	_, err := p.Run(context.Background(), sequence(&calls, api.PaymentPending))
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, 3, calls)
}

func TestPoller_TransientErrorsContinue(t *testing.T) {
	calls := 0
	check := func(ctx context.Context) (*api.PaymentStatus, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection reset")
		}
		return &api.PaymentStatus{Status: api.PaymentCompleted}, nil
	}

	st, err := Poller{Interval: time.Millisecond}.Run(context.Background(), check)
	require.NoError(t, err)
	assert.Equal(t, api.PaymentCompleted, st.Status)
	assert.Equal(t, 3, calls)
}

func TestPoller_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	check := func(ctx context.Context) (*api.PaymentStatus, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return &api.PaymentStatus{Status: api.PaymentPending}, nil
	}

	_, err := Poller{Interval: time.Millisecond}.Run(ctx, check)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
}
