package reply

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// replyReqs counts webhook calls by outcome: ok, unavailable, malformed_response.
	replyReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tributaria_reply_requests_total",
			Help: "Total number of AI webhook requests by outcome.",
		},
		[]string{"outcome"},
	)

	// replyLat uses wider buckets than HTTP: the webhook can take tens of seconds.
	replyLat = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tributaria_reply_duration_seconds",
			Help:    "Duration of AI webhook requests in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
	)
)

func init() {
	prometheus.MustRegister(replyReqs, replyLat)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Kind.String()
	}
	return "unknown"
}

func observe(err error, d time.Duration) {
	replyReqs.WithLabelValues(outcome(err)).Inc()
	replyLat.Observe(d.Seconds())
}
