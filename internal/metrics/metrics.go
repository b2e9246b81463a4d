package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrandTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errands_status_transitions_total",
		Help: "Applied errand status transitions by target status.",
	},
		[]string{"to"},
	)

	AcceptConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "errands_accept_conflicts_total",
		Help: "Accept attempts that lost the race or found the errand no longer open.",
	})

	PaymentsSettledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_settled_total",
		Help: "Payments moved to a terminal status, by source (verify, webhook, reconciler) and status.",
	},
		[]string{"source", "status"},
	)

	GatewayErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_gateway_errors_total",
		Help: "Failed payment gateway calls by operation.",
	},
		[]string{"operation"},
	)

	MessagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messages_sent_total",
		Help: "Messages persisted and broadcast.",
	})

	RatingsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratings_submitted_total",
		Help: "Ratings successfully submitted.",
	})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections",
		Help: "Currently open websocket connections.",
	})

	WSRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_rooms",
		Help: "Errand rooms with at least one member.",
	})
)
