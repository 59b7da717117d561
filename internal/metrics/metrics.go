package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_sessions_created_total",
		Help: "Chat sessions created through the API.",
	})

	MessagesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_appended_total",
		Help: "Messages appended to sessions, by author kind.",
	}, []string{"kind"})

	RelayFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_relay_failures_total",
		Help: "Failed round trips to the bot webhook.",
	})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_rate_limited_total",
		Help: "Requests rejected by a rate limiter, by endpoint group.",
	}, []string{"group"})
)

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
