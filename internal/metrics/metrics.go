package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Messages durably written via either the REST or socket path.",
	})
	PushDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_push_dropped_total",
		Help: "Push notifications dropped because a client send buffer was full.",
	})
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections",
		Help: "Currently open websocket connections.",
	})
)

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
