package payment

import (
	"context"
	"go.uber.org/zap"
	"time"
	"zyvpn-miniapp/internal/api"
	"zyvpn-miniapp/internal/logger"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultMaxAttempts  = 200
)

type CheckFunc func(ctx context.Context) (*api.PaymentStatus, error)

// Poller опрашивает статус платежа: первый запрос сразу, дальше раз в Interval.
// MaxAttempts == 0 - без ограничения, остановит только ctx.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
}

// Run возвращает первый конечный статус (completed или failed).
// Ошибки отдельных запросов только логируются.
func (p Poller) Run(ctx context.Context, check CheckFunc) (*api.PaymentStatus, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	started := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		st, err := check(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			pollsTotal.WithLabelValues("error").Inc()
			logger.Warn("payment status poll failed", zap.Int("attempt", attempt), zap.Error(err))
		case st == nil:
			pollsTotal.WithLabelValues("empty").Inc()
		default:
			pollsTotal.WithLabelValues(string(st.Status)).Inc()
			if st.Status.Terminal() {
				logger.Info("payment reached terminal status",
					zap.String("payment_id", st.PaymentID.String()),
					zap.String("status", string(st.Status)),
					zap.Int("attempts", attempt),
					zap.Duration("elapsed", time.Since(started)))
				return st, nil
			}
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return nil, ErrPollTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
