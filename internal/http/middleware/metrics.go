package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Labels: method, path (registered route, raw path when unmatched), status.
// Route paths keep cardinality bounded.
var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// Status is left out to keep the histogram small.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				200, 500, 1 << 10, 2 << 10, 5 << 10,
				10 << 10, 25 << 10, 50 << 10,
				100 << 10, 250 << 10, 500 << 10,
				1 << 20, 2 << 20, 5 << 20,
			},
		},
		[]string{"method", "path"},
	)

	// sseStreams gauges open event-stream connections.
	sseStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tributaria_session_streams_open",
			Help: "Current number of open session event streams.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, sseStreams)
}

// MetricsOptions tunes Metrics.
type MetricsOptions struct {
	// Streaming lists route paths that hold the connection open (SSE). They
	// are counted and tracked in tributaria_session_streams_open, but left
	// out of the latency, size and in-flight series.
	Streaming []string
}

// Metrics instruments requests with Prometheus.
//
//	r.Use(middleware.Metrics(middleware.MetricsOptions{}))
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics(opts MetricsOptions) gin.HandlerFunc {
	streaming := make(map[string]struct{}, len(opts.Streaming))
	for _, p := range opts.Streaming {
		streaming[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		if _, ok := streaming[path]; ok {
			sseStreams.Inc()
			defer sseStreams.Dec()
			c.Next()
			httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
			return
		}

		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written.
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
