package logging

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRingDedupAndOrder(t *testing.T) {
	r := NewRing()
	r.Add("a")
	r.Add("b")
	r.Add("a")

	got := r.Snapshot()
	if len(got) != 2 || got[0].Text != "b" || got[1].Text != "a" {
		t.Errorf("Snapshot() = %+v, want [b a]", got)
	}
}

func TestRingCap(t *testing.T) {
	r := NewRing()
	for i := 0; i < MaxItems+5; i++ {
		r.Add(fmt.Sprintf("line %d", i))
	}
	got := r.Snapshot()
	if len(got) != MaxItems {
		t.Fatalf("len = %d, want %d", len(got), MaxItems)
	}
	if got[0].Text != "line 5" || got[MaxItems-1].Text != "line 24" {
		t.Errorf("kept %q..%q, want line 5..line 24", got[0].Text, got[MaxItems-1].Text)
	}
}

func TestRingTime(t *testing.T) {
	r := NewRing()
	r.now = func() time.Time { return time.Date(2024, 3, 9, 7, 5, 3, 0, time.FixedZone("x", 3600)) }
	r.Add("hello")
	if got := r.Snapshot()[0].Time; got != "06:05:03" {
		t.Errorf("Time = %q, want 06:05:03 (UTC)", got)
	}
}

func TestRingSnapshotIsCopy(t *testing.T) {
	r := NewRing()
	r.Add("a")
	snap := r.Snapshot()
	snap[0].Text = "changed"
	if r.Snapshot()[0].Text != "a" {
		t.Error("Snapshot shares memory with the ring")
	}
}

type panicky struct{}

func (panicky) String() string { panic("boom") }

func TestLogNeverPanics(t *testing.T) {
	ring := NewRing()
	useLogger(t, slog.New(NewHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), ring)))

	Log(panicky{})
	Log(42)
	Log(nil)
	Log(fmt.Errorf("wrapped: %w", os.ErrNotExist))

	got := ring.Snapshot()
	want := []string{"<unprintable logging.panicky>", "42", "<nil>", "wrapped: file does not exist"}
	if len(got) != len(want) {
		t.Fatalf("ring = %+v", got)
	}
	for i, w := range want {
		if got[i].Text != w {
			t.Errorf("item %d = %q, want %q", i, got[i].Text, w)
		}
	}
}

func TestHandlerTee(t *testing.T) {
	var buf bytes.Buffer
	ring := NewRing()
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}), ring))

	logger.With(slog.String("component", "bot")).Info("found state", slog.Int64("room_id", 42))
	logger.WithGroup("req").Info("served", slog.String("path", "/log"), slog.Group("ref", slog.Int("room", 7)))
	logger.Debug("hidden")

	got := ring.Snapshot()
	want := []string{
		"found state component=bot room_id=42",
		"served req.path=/log req.ref.room=7",
	}
	if len(got) != len(want) {
		t.Fatalf("ring = %+v, want %d items", got, len(want))
	}
	for i, w := range want {
		if got[i].Text != w {
			t.Errorf("item %d = %q, want %q", i, got[i].Text, w)
		}
	}
	if !strings.Contains(buf.String(), "found state") {
		t.Errorf("record not delegated: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		want  slog.Level
		known bool
	}{
		{"", slog.LevelInfo, true},
		{"DEBUG", slog.LevelDebug, true},
		{"warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"loud", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, known := ParseLevel(tt.in)
		if got != tt.want || known != tt.known {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, known, tt.want, tt.known)
		}
	}
}

func TestSetupWritesFileAndRing(t *testing.T) {
	useLogger(t, slog.Default())
	path := filepath.Join(t.TempDir(), "chatkeeper.log")
	ring := NewRing()

	closer := Setup(Options{Level: "debug", Format: "json", File: path}, ring)
	slog.Debug("written to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"written to file"`) {
		t.Errorf("log file = %q", data)
	}
	found := false
	for _, it := range ring.Snapshot() {
		if it.Text == "written to file" {
			found = true
		}
	}
	if !found {
		t.Errorf("ring = %+v, missing record", ring.Snapshot())
	}
}

func useLogger(t *testing.T, l *slog.Logger) {
	t.Helper()
	prev := slog.Default()
	slog.SetDefault(l)
	t.Cleanup(func() { slog.SetDefault(prev) })
}
