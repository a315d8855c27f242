package main

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/onnwee/chatkeeper/bot"
	"github.com/onnwee/chatkeeper/testutil"
)

func newMockChat(t *testing.T) *testutil.MockChatServer {
	t.Helper()
	m := testutil.NewMockChatServer(t)
	m.MockLogin("login-fkey", false)
	m.MockHome("chat-fkey", 1234)
	t.Setenv("SE_EMAIL", "bot@example.com")
	t.Setenv("SE_PASSWORD", "pw")
	t.Setenv("PROJECT_NAME", "sparkle")
	t.Setenv("STATE_HOST", "")
	return m
}

func run(t *testing.T, m *testutil.MockChatServer, args ...string) (string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if m != nil {
		args = append(args, "--login-url", m.LoginURL(), "--chat-url", m.URL)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSearchCommand(t *testing.T) {
	m := newMockChat(t)
	var query string
	page := testutil.PageHTML(testutil.MonologueHTML(1234, "Bot", testutil.ChatMessage{ID: 100, RoomID: 42, ContentHTML: "hello world"}))
	m.Handlers["/search"] = func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(page))
	}

	out, err := run(t, m, "search", "hello", "--mine")
	if err != nil {
		t.Fatalf("search error = %v", err)
	}
	if !strings.Contains(out, "42") || !strings.Contains(out, "100") || !strings.Contains(out, "hello world") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(query, "user=1234") || !strings.Contains(query, "q=hello") {
		t.Errorf("query = %q", query)
	}
}

func TestSendCommand(t *testing.T) {
	m := newMockChat(t)
	m.MockPost(42, http.StatusOK, 777)

	out, err := run(t, m, "send", "42", "hi there")
	if err != nil {
		t.Fatalf("send error = %v", err)
	}
	if !strings.Contains(out, "sent message 777") {
		t.Errorf("output = %q", out)
	}
	if posts := m.Posts(); len(posts) != 1 || posts[0].Get("text") != "hi there" {
		t.Errorf("posts = %v", posts)
	}
}

func TestTranscriptCommandBadRoom(t *testing.T) {
	m := newMockChat(t)
	if _, err := run(t, m, "transcript", "lobby"); err == nil || !strings.Contains(err.Error(), "invalid room id") {
		t.Errorf("error = %v, want invalid room id", err)
	}
	if got := m.Hits("GET /users/login"); got != 0 {
		t.Errorf("logged in %d times for a bad argument", got)
	}
}

func TestStateDecodeCommand(t *testing.T) {
	t.Setenv("PROJECT_NAME", "sparkle")
	link, err := bot.NewCodec("sparkle", "").Encode(bot.Snapshot{T: 1700000000000, DT: 5})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	out, err := run(t, nil, "state", "decode", link)
	if err != nil {
		t.Fatalf("state decode error = %v", err)
	}
	if strings.TrimSpace(out) != `{"dt":5,"t":1700000000000}` {
		t.Errorf("output = %q", out)
	}
}

func TestStateDecodeNeedsProject(t *testing.T) {
	t.Setenv("PROJECT_NAME", "")
	if _, err := run(t, nil, "state", "decode", "https://x.glitch.me/?_?%7B%7D"); err == nil {
		t.Error("expected an error without a project name")
	}
}

func TestStateShowAndSet(t *testing.T) {
	m := newMockChat(t)
	link, err := bot.NewCodec("sparkle", "").Encode(bot.Snapshot{T: 1700000000000})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	m.MockSearch(testutil.PageHTML(testutil.MonologueHTML(1234, "Bot",
		testutil.ChatMessage{ID: 100, RoomID: 42, ContentHTML: testutil.ImageOneboxHTML(link)})))
	m.MockPost(42, http.StatusOK, 101)

	out, err := run(t, m, "state", "show")
	if err != nil {
		t.Fatalf("state show error = %v", err)
	}
	if !strings.Contains(out, "room 42 (message 100") {
		t.Errorf("show output = %q", out)
	}

	out, err = run(t, m, "state", "set", "42", "keepAlive=true", "note=plain text")
	if err != nil {
		t.Fatalf("state set error = %v", err)
	}
	if !strings.Contains(out, "signed room 42 in message 101") {
		t.Errorf("set output = %q", out)
	}
	posts := m.Posts()
	if len(posts) != 1 {
		t.Fatalf("got %d posts, want 1", len(posts))
	}
	text := posts[0].Get("text")
	if !strings.HasPrefix(text, ":100 !https://sparkle.glitch.me/?_?") {
		t.Fatalf("posted text = %q", text)
	}
	s, err := bot.NewCodec("sparkle", "").Decode(strings.TrimPrefix(text, ":100 !"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !s.KeepAlive() || string(s.Fields["note"]) != `"plain text"` {
		t.Errorf("posted snapshot fields = %v", s.Fields)
	}
}

func TestParseFields(t *testing.T) {
	fields, err := parseFields([]string{"n=3", "s=hello", `o={"a":1}`})
	if err != nil {
		t.Fatalf("parseFields() error = %v", err)
	}
	if string(fields["n"]) != "3" || string(fields["s"]) != `"hello"` || string(fields["o"]) != `{"a":1}` {
		t.Errorf("fields = %v", fields)
	}
	if _, err := parseFields([]string{"novalue"}); err == nil {
		t.Error("expected error for a field without '='")
	}
}
