package observability

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/jvsctl/internal/protocol/jvs"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK       = "ok"
	ResultChecksum = "checksum"
	ResultLength   = "length"
	ResultSync     = "sync"
	ResultInvalid  = "invalid"
	ResultShort    = "short_write"
	ResultTooLarge = "too_large"
	ResultError    = "error"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jvs",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jvs",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jvs",
			Subsystem: "frames",
			Name:      "sent_total",
			Help:      "Frames handed to the transport, by result.",
		},
		[]string{"transport", "result"},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jvs",
			Subsystem: "frames",
			Name:      "received_total",
			Help:      "Frames decoded from the transport, by result.",
		},
		[]string{"transport", "result"},
	)
	payloadBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jvs",
			Subsystem: "frames",
			Name:      "payload_bytes",
			Help:      "Payload size of valid received frames.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"transport"},
	)
	errorReports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jvs",
			Subsystem: "frames",
			Name:      "error_reports_total",
			Help:      "Checksum failure reports sent to the peer.",
		},
		[]string{"transport"},
	)
	transportOpens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jvs",
			Subsystem: "transport",
			Name:      "opens_total",
			Help:      "Transport open attempts, by success.",
		},
		[]string{"transport", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			framesSent,
			framesReceived,
			payloadBytes,
			errorReports,
			transportOpens,
		)
	})
}

// Result maps a jvs operation error onto a metric label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, jvs.ErrChecksumMismatch):
		return ResultChecksum
	case errors.Is(err, jvs.ErrLengthMismatch):
		return ResultLength
	case errors.Is(err, jvs.ErrBadSync):
		return ResultSync
	case errors.Is(err, jvs.ErrInvalidLength):
		return ResultInvalid
	case errors.Is(err, jvs.ErrPayloadTooLarge):
		return ResultTooLarge
	case errors.Is(err, jvs.ErrTransmitIncomplete):
		return ResultShort
	default:
		return ResultError
	}
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordSend(transport string, err error) {
	RegisterMetrics()
	framesSent.WithLabelValues(transport, Result(err)).Inc()
}

func RecordReceive(transport string, frame jvs.Frame, err error) {
	RegisterMetrics()
	result := Result(err)
	framesReceived.WithLabelValues(transport, result).Inc()
	switch result {
	case ResultOK:
		payloadBytes.WithLabelValues(transport).Observe(float64(frame.Length))
	case ResultChecksum:
		errorReports.WithLabelValues(transport).Inc()
	}
}

func RecordTransportOpen(transport string, success bool) {
	RegisterMetrics()
	transportOpens.WithLabelValues(transport, strconv.FormatBool(success)).Inc()
}
