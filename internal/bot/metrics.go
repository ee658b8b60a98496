package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "miniapp_sessions",
		Help: "Number of chat sessions held in memory",
	})

	updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniapp_updates_total",
		Help: "Telegram updates by kind",
	}, []string{"kind"})

	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniapp_rate_limited_total",
		Help: "Updates rejected by the per-user rate limiter",
	})
)
