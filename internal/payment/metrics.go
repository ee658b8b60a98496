package payment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniapp_payment_attempts_total",
		Help: "Finished payment attempts by kind, provider and result.",
	}, []string{"kind", "provider", "result"})

	pollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniapp_payment_polls_total",
		Help: "Payment status polls by reported status.",
	}, []string{"status"})
)
