package stackchat

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/chatkeeper/testutil"
)

func TestSendMessage_NotConnected(t *testing.T) {
	m := testutil.NewMockChatServer(t)
	m.MockLogin("login-fkey", false)
	m.MockHome("chat-fkey", 1234)
	m.MockPost(42, http.StatusOK, 1)
	c := NewClient(newTestSession(t, m))

	done := make(chan error, 1)
	go func() {
		_, err := c.SendMessage(context.Background(), 42, "hello")
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("SendMessage() error = %v, want ErrNotConnected", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendMessage() blocked waiting for login")
	}
	if got := m.Hits("POST /chats/42/messages/new"); got != 0 {
		t.Errorf("post endpoint hit %d times before login, want 0", got)
	}
}

func TestReadOperations_NotConnected(t *testing.T) {
	m := testutil.NewMockChatServer(t)
	c := NewClient(newTestSession(t, m))

	if _, err := c.Search(context.Background(), SearchQuery{Text: "img"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Search() error = %v, want ErrNotConnected", err)
	}
	if _, err := c.Transcript(context.Background(), 42); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Transcript() error = %v, want ErrNotConnected", err)
	}
}

func TestSendMessage(t *testing.T) {
	m, c := newConnectedClient(t)
	m.MockPost(42, http.StatusOK, 555)

	ack, err := c.SendMessage(context.Background(), 42, ":100 !https://example.glitch.me/?_?%7B%7D")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if ack.ID != 555 {
		t.Errorf("ack.ID = %d, want 555", ack.ID)
	}
	if ack.Time != 1700000000 {
		t.Errorf("ack.Time = %d, want 1700000000", ack.Time)
	}

	posts := m.Posts()
	if len(posts) != 1 {
		t.Fatalf("got %d posts, want 1", len(posts))
	}
	if got := posts[0].Get("fkey"); got != "chat-fkey" {
		t.Errorf("posted fkey = %q, want chat-fkey", got)
	}
	if got := posts[0].Get("text"); got != ":100 !https://example.glitch.me/?_?%7B%7D" {
		t.Errorf("posted text = %q", got)
	}
}

func TestSendMessage_NonJSONReply(t *testing.T) {
	m, c := newConnectedClient(t)
	m.Handlers["/chats/7/messages/new"] = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("You can perform this action again in 3 seconds"))
	}
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ack, err := c.SendMessage(context.Background(), 7, "hi")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if ack.ID != 0 {
		t.Errorf("ack.ID = %d, want 0 for a reply without JSON", ack.ID)
	}
	out := logs.String()
	if !strings.Contains(out, "undecodable post reply") || !strings.Contains(out, "again in 3 seconds") {
		t.Errorf("log = %q, want the undecodable reply logged", out)
	}
}

func TestSendMessage_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantAuth  bool
		wantClass ErrorClass
	}{
		{"stale fkey", http.StatusForbidden, true, ErrorClassRetryable},
		{"unauthorized", http.StatusUnauthorized, true, ErrorClassRetryable},
		{"bad request", http.StatusBadRequest, false, ErrorClassFatal},
		{"server error", http.StatusInternalServerError, false, ErrorClassRetryable},
		{"throttled", http.StatusTooManyRequests, false, ErrorClassRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, c := newConnectedClient(t)
			m.MockPost(42, tt.status, 0)

			_, err := c.SendMessage(context.Background(), 42, "hello")
			if err == nil {
				t.Fatal("SendMessage() error = nil")
			}
			var authErr *AuthError
			if got := errors.As(err, &authErr); got != tt.wantAuth {
				t.Errorf("errors.As(AuthError) = %v, want %v (err %v)", got, tt.wantAuth, err)
			}
			if !tt.wantAuth {
				var tErr *TransportError
				if !errors.As(err, &tErr) || tErr.Status != tt.status {
					t.Errorf("error = %v, want TransportError with status %d", err, tt.status)
				}
			}
			if got := ClassifyError(err); got != tt.wantClass {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.wantClass)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	m, c := newConnectedClient(t)
	var query url.Values
	page := testutil.PageHTML(
		testutil.MonologueHTML(1234, "Bot",
			testutil.ChatMessage{ID: 100, RoomID: 42, ContentHTML: testutil.ImageOneboxHTML("https://example.glitch.me/?_?%7B%22t%22%3A1%7D")},
			testutil.ChatMessage{ID: 90, RoomID: 42, ContentHTML: "older"},
		),
	)
	m.Handlers["/search"] = func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}

	msgs, err := c.Search(context.Background(), SearchQuery{Text: "img", UserID: 1234})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := map[string]string{
		"q":        "img",
		"room":     "",
		"user":     "1234",
		"page":     "1",
		"pagesize": "100",
		"sort":     "newest",
	}
	for k, v := range want {
		if _, ok := query[k]; !ok {
			t.Errorf("query missing %q", k)
		}
		if got := query.Get(k); got != v {
			t.Errorf("query[%s] = %q, want %q", k, got, v)
		}
	}

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].MessageID != 100 || msgs[0].RoomID != 42 || msgs[0].UserID != 1234 {
		t.Errorf("first message = %+v", msgs[0])
	}
	if got := msgs[0].ImageLink(); got != "https://example.glitch.me/?_?%7B%22t%22%3A1%7D" {
		t.Errorf("ImageLink() = %q", got)
	}
	if msgs[1].ImageLink() != "" {
		t.Errorf("second message ImageLink() = %q, want empty", msgs[1].ImageLink())
	}
}

func TestSearchQueryValues(t *testing.T) {
	v := SearchQuery{Text: "x", RoomID: 9, Page: 3, PageSize: 50, Sort: SortRelevance}.values()
	if v.Get("room") != "9" || v.Get("user") != "" || v.Get("page") != "3" || v.Get("pagesize") != "50" || v.Get("sort") != "relevance" {
		t.Errorf("values() = %v", v)
	}
}

func TestTranscript(t *testing.T) {
	m, c := newConnectedClient(t)
	m.MockTranscript(42, testutil.PageHTML(
		testutil.MonologueHTML(77, "Alice", testutil.ChatMessage{ID: 500, RoomID: 42, ContentHTML: "hello"}),
		testutil.MonologueHTML(1234, "Bot", testutil.ChatMessage{ID: 501, RoomID: 42, ParentID: 500, ContentHTML: "@Alice hi"}),
	))

	msgs, err := c.Transcript(context.Background(), 42)
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].UserName != "Alice" || msgs[0].Text != "hello" {
		t.Errorf("first message = %+v", msgs[0])
	}
	if !msgs[1].IsReply() || msgs[1].ParentID != 500 {
		t.Errorf("second message ParentID = %d, want 500", msgs[1].ParentID)
	}
}

func TestTranscript_MissingRoom(t *testing.T) {
	_, c := newConnectedClient(t)

	_, err := c.Transcript(context.Background(), 99)
	var tErr *TransportError
	if !errors.As(err, &tErr) || tErr.Status != http.StatusNotFound {
		t.Errorf("Transcript() error = %v, want 404 TransportError", err)
	}
}
