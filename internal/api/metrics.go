package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniapp_api_requests_total",
		Help: "Requests to the VPN API by endpoint and HTTP status.",
	}, []string{"endpoint", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "miniapp_api_request_duration_seconds",
		Help:    "Latency of requests to the VPN API.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
