package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "villa"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	emailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Outgoing emails by type and result.",
		},
		[]string{"type", "result"},
	)

	jobItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_items_total",
			Help:      "Reservations handled by scheduled jobs, by outcome.",
		},
		[]string{"job", "outcome"},
	)

	pmsSync = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pms_sync_total",
			Help:      "PMS delivery attempts by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, emailsSent, jobItems, pmsSync)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncEmail records a send attempt; ok=false counts as "error".
func IncEmail(emailType string, ok bool) {
	emailsSent.WithLabelValues(emailType, result(ok)).Inc()
}

func IncJobItem(job, outcome string) {
	jobItems.WithLabelValues(job, outcome).Inc()
}

func IncPMSSync(ok bool) {
	pmsSync.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
