package services

import (
	"context"
	"go.uber.org/zap"
	"time"
	"zyvpn-miniapp/internal/api"
	"zyvpn-miniapp/internal/cache"
	"zyvpn-miniapp/internal/logger"
)

// RatesTTL - курсы в кэше живут чуть дольше интервала обновления
const RatesTTL = 6 * time.Minute

// RatesRefresher кладёт свежие курсы в общий кэш, сессии читают их оттуда
type RatesRefresher struct {
	client *api.Client
	cache  cache.Cache
}

func NewRatesRefresher(client *api.Client, c cache.Cache) *RatesRefresher {
	return &RatesRefresher{client: client, cache: c}
}

func (r *RatesRefresher) Refresh(ctx context.Context) error {
	rates, err := r.client.GetRates(ctx)
	if err != nil {
		ratesRefreshTotal.WithLabelValues("error").Inc()
		logger.Warn("refresh rates", zap.Error(err))
		return err
	}
	if err := r.cache.Set(ctx, cache.RatesKey, rates, RatesTTL); err != nil {
		ratesRefreshTotal.WithLabelValues("error").Inc()
		logger.Warn("store rates", zap.Error(err))
		return err
	}
	ratesRefreshTotal.WithLabelValues("ok").Inc()
	logger.Debug("rates refreshed", zap.Float64("ton_usd", rates.TonUSD), zap.Float64("usd_rub", rates.UsdRUB))
	return nil
}
