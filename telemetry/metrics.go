// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	ChatRequests        *prometheus.CounterVec // labels: method, status
	ChatOperations      *prometheus.CounterVec // labels: op, result
	LoginAttempts       prometheus.Counter
	LoginFailures       *prometheus.CounterVec // labels: stage
	StateSignatures     prometheus.Counter
	StateDecodeFailures prometheus.Counter

	// Histograms (seconds)
	ChatRequestDuration prometheus.Observer
	KeepAliveDuration   prometheus.Observer

	// Gauges
	ChatConnectedGauge prometheus.Gauge // 1=connected,0=not
	TrackedRoomsGauge  prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chatkeeper_chat_requests_total", Help: "HTTP requests issued to the chat service"}, []string{"method", "status"})
		ChatOperations = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chatkeeper_chat_operations_total", Help: "Chat client operations by outcome"}, []string{"op", "result"})
		LoginAttempts = promauto.NewCounter(prometheus.CounterOpts{Name: "chatkeeper_login_attempts_total", Help: "Number of login pipelines started"})
		LoginFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chatkeeper_login_failures_total", Help: "Login pipeline failures by stage"}, []string{"stage"})
		StateSignatures = promauto.NewCounter(prometheus.CounterOpts{Name: "chatkeeper_state_signatures_total", Help: "Room state snapshots posted"})
		StateDecodeFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "chatkeeper_state_decode_failures_total", Help: "State tokens that could not be decoded during recovery"})
		ChatRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chatkeeper_chat_request_duration_seconds", Help: "Chat service request duration seconds", Buckets: prometheus.DefBuckets})
		KeepAliveDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chatkeeper_keepalive_pass_duration_seconds", Help: "Keep-alive pass duration seconds", Buckets: prometheus.DefBuckets})
		ChatConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chatkeeper_chat_connected", Help: "Chat session connected=1 otherwise 0"})
		TrackedRoomsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chatkeeper_state_tracked_rooms", Help: "Rooms with a current state snapshot"})
	})
}

// RecordChatRequest counts one round trip to the chat service. status 0 means no response.
func RecordChatRequest(method string, status int, d time.Duration) {
	if ChatRequests != nil {
		ChatRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	}
	if ChatRequestDuration != nil {
		ChatRequestDuration.Observe(d.Seconds())
	}
}

// RecordOperation counts a chat client operation as ok or error.
func RecordOperation(op string, err error) {
	if ChatOperations == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	ChatOperations.WithLabelValues(op, result).Inc()
}

// RecordLoginAttempt increments the login attempt counter.
func RecordLoginAttempt() {
	if LoginAttempts != nil {
		LoginAttempts.Inc()
	}
}

// RecordLoginFailure counts a failed login stage.
func RecordLoginFailure(stage string) {
	if LoginFailures != nil {
		LoginFailures.WithLabelValues(stage).Inc()
	}
}

// RecordSignature counts a posted state snapshot.
func RecordSignature() {
	if StateSignatures != nil {
		StateSignatures.Inc()
	}
}

// RecordDecodeFailure counts a state token skipped during recovery.
func RecordDecodeFailure() {
	if StateDecodeFailures != nil {
		StateDecodeFailures.Inc()
	}
}

// SetChatConnected sets gauge to 1 if connected else 0.
func SetChatConnected(connected bool) {
	if ChatConnectedGauge != nil {
		if connected {
			ChatConnectedGauge.Set(1)
		} else {
			ChatConnectedGauge.Set(0)
		}
	}
}

// SetTrackedRooms records the number of rooms holding a snapshot.
func SetTrackedRooms(n int) {
	if TrackedRoomsGauge != nil {
		TrackedRoomsGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
