package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProbeURL(t *testing.T) {
	tests := []struct {
		addr, want string
	}{
		{":8080", "http://localhost:8080/healthz"},
		{"0.0.0.0:3000", "http://localhost:3000/healthz"},
		{"127.0.0.1:9000", "http://127.0.0.1:9000/healthz"},
	}
	for _, tt := range tests {
		if got := probeURL(tt.addr, "/healthz"); got != tt.want {
			t.Errorf("probeURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/readyz" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	if !probe(context.Background(), srv.URL+"/healthz") {
		t.Error("probe(/healthz) = false, want true")
	}
	if probe(context.Background(), srv.URL+"/readyz") {
		t.Error("probe(/readyz) = true for a 503")
	}
	if probe(context.Background(), "http://127.0.0.1:1/healthz") {
		t.Error("probe of a closed port = true")
	}
}
