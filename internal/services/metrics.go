package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	remindersSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniapp_expiry_reminders_total",
		Help: "Expiry reminders sent to users",
	})

	ratesRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniapp_rates_refresh_total",
		Help: "Exchange rates refresh attempts by result",
	}, []string{"result"})

	knownChats = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "miniapp_known_chats",
		Help: "Chats that have ever written to the bot",
	})
)
