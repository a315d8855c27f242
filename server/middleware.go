package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/onnwee/chatkeeper/telemetry"
)

const correlationHeader = "X-Correlation-ID"

// instrument tags each request with a correlation id and a server span, lets the project
// name be learned from the Host header, and logs the request before dispatching to next.
func instrument(next http.Handler, project *ProjectName) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get(correlationHeader)
		if corr == "" {
			corr = uuid.NewString()
		}
		w.Header().Set(correlationHeader, corr)

		ctx, span := telemetry.StartSpan(telemetry.WithCorrelation(r.Context(), corr), "http-server", r.Method+" "+r.URL.Path,
			telemetry.HTTPMethodAttr(r.Method),
			telemetry.HTTPRouteAttr(r.URL.Path),
			telemetry.HTTPURLAttr(r.URL.String()),
		)
		defer span.End()

		project.Learn(r.Host)
		logRequest(ctx, r)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		telemetry.SetSpanHTTPStatus(span, rec.status)
		if rec.status >= http.StatusBadRequest {
			span.SetStatus(telemetry.ErrorStatus(fmt.Sprintf("HTTP %d", rec.status)))
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// roomRefererPattern matches links to a chat room; the first group is the room id.
var roomRefererPattern = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`^https?://chat\.stackexchange\.com/rooms/(\d+)`)
})

// refererRoom returns the chat room a request was made from, or 0.
func refererRoom(referer string) int64 {
	m := roomRefererPattern().FindStringSubmatch(referer)
	if m == nil {
		return 0
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// logRequest records every request, naming the chat room when the Referer points at one.
// The info line carries no correlation id so repeated requests collapse in the log ring.
func logRequest(ctx context.Context, r *http.Request) {
	telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

	attrs := []any{slog.String("path", r.URL.Path)}
	referer := r.Referer()
	if room := refererRoom(referer); room != 0 {
		attrs = append(attrs, slog.Int64("room_id", room))
	} else if referer != "" {
		attrs = append(attrs, slog.String("referer", referer))
	}
	slog.Info("request", attrs...)
}

// clientIP returns the first X-Forwarded-For address, or RemoteAddr without its port.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ip, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(ip)
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx >= 0 {
		ip = ip[:idx]
	}
	return ip
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
}
