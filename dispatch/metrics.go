package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analyses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aimonitor_analyses_total",
		Help: "Analyzer calls by outcome.",
	}, []string{"outcome"})
	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aimonitor_notifications_total",
		Help: "Notifications by outcome.",
	}, []string{"outcome"})
)
