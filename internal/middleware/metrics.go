package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	wsConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total number of WebSocket connections",
		},
	)

	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	officeMessagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "office_messages_sent_total",
			Help: "Total number of chat messages sent",
		},
	)

	officeMatchesMadeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "office_matches_made_total",
			Help: "Total number of chess matches made, by opponent kind",
		},
		[]string{"opponent"},
	)

	officeGamesCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "office_games_completed_total",
			Help: "Total number of chess games completed",
		},
	)

	officePresenceJoined = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "office_presence_joined",
			Help: "Number of users with at least one live presence connection",
		},
	)

	officeTasksCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "office_tasks_completed_total",
			Help: "Total number of tasks approved as completed",
		},
	)
)

// MetricsMiddleware collects the request histogram and counters.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		httpRequestsInFlight.Inc()

		c.Next()

		httpRequestsInFlight.Dec()
		duration := time.Since(start).Seconds()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func RecordWebSocketConnection() {
	wsConnectionsTotal.Inc()
	wsActiveConnections.Inc()
}

func RecordWebSocketDisconnection() {
	wsActiveConnections.Dec()
}

func RecordMessageSent() {
	officeMessagesSentTotal.Inc()
}

// RecordMatchMade counts a made match; opponent is "human" or "bot".
func RecordMatchMade(opponent string) {
	officeMatchesMadeTotal.WithLabelValues(opponent).Inc()
}

func RecordGameCompleted() {
	officeGamesCompletedTotal.Inc()
}

func SetPresenceJoined(count float64) {
	officePresenceJoined.Set(count)
}

func RecordTaskCompleted() {
	officeTasksCompletedTotal.Inc()
}
