package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "undo_ot_server_sessions_active",
		Help: "Number of documents with a running session",
	})

	clientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "undo_ot_server_clients_connected",
		Help: "Number of clients joined to a session",
	})

	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "undo_ot_server_messages_total",
		Help: "Total client messages handled by sessions, by type and result",
	}, []string{"type", "result"})

	droppedRepliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "undo_ot_server_dropped_replies_total",
		Help: "Total replies dropped because a client's send queue was full, by type",
	}, []string{"type"})
)
