package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsInitialized(t *testing.T) {
	Init()

	if ChatRequestDuration == nil {
		t.Error("ChatRequestDuration histogram not initialized")
	}
	if KeepAliveDuration == nil {
		t.Error("KeepAliveDuration histogram not initialized")
	}
	if ChatRequests == nil || ChatOperations == nil || LoginFailures == nil {
		t.Error("counter vectors not initialized")
	}
}

func TestRecordOperationLabels(t *testing.T) {
	Init()

	beforeOK := promtest.ToFloat64(ChatOperations.WithLabelValues("search", "ok"))
	beforeErr := promtest.ToFloat64(ChatOperations.WithLabelValues("search", "error"))

	RecordOperation("search", nil)
	RecordOperation("search", errors.New("boom"))
	RecordOperation("search", errors.New("boom again"))

	if got := promtest.ToFloat64(ChatOperations.WithLabelValues("search", "ok")) - beforeOK; got != 1 {
		t.Errorf("ok delta = %v, want 1", got)
	}
	if got := promtest.ToFloat64(ChatOperations.WithLabelValues("search", "error")) - beforeErr; got != 2 {
		t.Errorf("error delta = %v, want 2", got)
	}
}

func TestRecordChatRequest(t *testing.T) {
	Init()

	before := promtest.ToFloat64(ChatRequests.WithLabelValues("GET", "200"))
	RecordChatRequest("GET", 200, 15*time.Millisecond)
	if got := promtest.ToFloat64(ChatRequests.WithLabelValues("GET", "200")) - before; got != 1 {
		t.Errorf("request delta = %v, want 1", got)
	}
}

func TestConnectedGauge(t *testing.T) {
	Init()

	SetChatConnected(true)
	if got := promtest.ToFloat64(ChatConnectedGauge); got != 1 {
		t.Errorf("connected gauge = %v, want 1", got)
	}
	SetChatConnected(false)
	if got := promtest.ToFloat64(ChatConnectedGauge); got != 0 {
		t.Errorf("connected gauge = %v, want 0", got)
	}

	SetTrackedRooms(3)
	if got := promtest.ToFloat64(TrackedRoomsGauge); got != 3 {
		t.Errorf("tracked rooms = %v, want 3", got)
	}
}

func TestCountersDoNotPanic(t *testing.T) {
	Init()

	RecordLoginAttempt()
	RecordLoginFailure("fetch_login_page")
	RecordSignature()
	RecordDecodeFailure()
}

func TestTimeFuncRecordsObservation(t *testing.T) {
	Init()

	testHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration",
		Buckets: prometheus.DefBuckets,
	})
	prometheus.MustRegister(testHistogram)
	defer prometheus.Unregister(testHistogram)

	executed := false
	duration := TimeFunc(testHistogram, func() {
		time.Sleep(10 * time.Millisecond)
		executed = true
	})

	if !executed {
		t.Error("TimeFunc did not execute provided function")
	}
	if duration < 10*time.Millisecond {
		t.Errorf("TimeFunc duration = %v, want >= 10ms", duration)
	}

	metric := &dto.Metric{}
	if err := testHistogram.Write(metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Histogram == nil {
		t.Fatal("Histogram metric is nil")
	}
	if *metric.Histogram.SampleCount == 0 {
		t.Error("TimeFunc did not record observation in histogram")
	}
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("GetCorrelation(empty) = %q", got)
	}
	ctx = WithCorrelation(ctx, "abc")
	if got := GetCorrelation(ctx); got != "abc" {
		t.Errorf("GetCorrelation = %q, want abc", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
