package bridge

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wmipc",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wmipc",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	ipcMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wmipc",
			Subsystem: "ipc",
			Name:      "messages_total",
			Help:      "IPC messages exchanged with the window manager.",
		},
		[]string{"direction", "type"},
	)
	ipcBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wmipc",
			Subsystem: "ipc",
			Name:      "payload_bytes_total",
			Help:      "IPC payload bytes exchanged with the window manager.",
		},
		[]string{"direction"},
	)
	ipcErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wmipc",
			Subsystem: "ipc",
			Name:      "errors_total",
			Help:      "Failed IPC exchanges by stage.",
		},
		[]string{"stage"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, ipcMessages, ipcBytes, ipcErrors)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordIPCMessage counts one message; direction is "sent" or "received".
func RecordIPCMessage(direction, msgType string, payloadLen int) {
	RegisterMetrics()
	ipcMessages.WithLabelValues(direction, msgType).Inc()
	ipcBytes.WithLabelValues(direction).Add(float64(payloadLen))
}

func RecordIPCError(stage string) {
	RegisterMetrics()
	ipcErrors.WithLabelValues(stage).Inc()
}
