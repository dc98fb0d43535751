package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipedesk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipedesk_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	cardMoves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipedesk_card_moves_total",
			Help: "Total number of card moves by result",
		},
		[]string{"result"},
	)

	leadRowsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipedesk_lead_rows_imported_total",
			Help: "Total number of lead rows stored by uploads",
		},
	)

	logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipedesk_logins_total",
			Help: "Total number of login attempts by result",
		},
		[]string{"result"},
	)
)

// metrics records request counts and latency. Paths are labelled by route
// pattern so ids do not explode the label space.
func metrics(c *gin.Context) {
	start := time.Now()
	c.Next()

	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	status := strconv.Itoa(c.Writer.Status())
	httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
