package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sable_messages_sent_total",
		Help: "Messages accepted by the send path.",
	}, []string{"kind"}) // direct|group

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sable_ws_connections",
		Help: "Currently open websocket connections.",
	})

	PresenceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sable_presence_transitions_total",
		Help: "Presence status flips recorded.",
	}, []string{"status"})

	MediaUploads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sable_media_uploads_total",
		Help: "Objects uploaded to storage.",
	})
)

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
