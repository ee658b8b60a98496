package services

import (
	"context"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"time"
	"zyvpn-miniapp/internal/logger"
)

const (
	ratesSpec    = "@every 5m"
	reminderSpec = "0 10 * * *"
	jobTimeout   = 10 * time.Minute
)

// Schedule регистрирует фоновые задачи. Запуск и остановка - за вызывающим.
func Schedule(ctx context.Context, c *cron.Cron, rates *RatesRefresher, reminder *Reminder) error {
	if _, err := c.AddFunc(ratesSpec, job(ctx, "rates", func(ctx context.Context) {
		_ = rates.Refresh(ctx)
	})); err != nil {
		return err
	}
	if _, err := c.AddFunc(reminderSpec, job(ctx, "reminders", func(ctx context.Context) {
		reminder.NotifyExpiringSubscriptions(ctx)
	})); err != nil {
		return err
	}
	return nil
}

func job(ctx context.Context, name string, fn func(ctx context.Context)) func() {
	return func() {
		defer logger.NotifyOnPanic("job " + name)
		jctx, cancel := context.WithTimeout(ctx, jobTimeout)
		defer cancel()
		start := time.Now()
		fn(jctx)
		logger.Debug("job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	}
}
