package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	orderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "comanda",
		Name:      "order_transitions_total",
		Help:      "Order state transitions by from/to status.",
	}, []string{"from", "to"})

	splitsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "comanda",
		Name:      "splits_finalized_total",
		Help:      "Finalized split batches by policy.",
	}, []string{"policy"})

	settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "comanda",
		Name:      "settlements_total",
		Help:      "Split payment settlement attempts by outcome.",
	}, []string{"outcome"})

	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "comanda",
		Name:      "sessions_started_total",
		Help:      "Table sessions started.",
	})
)
