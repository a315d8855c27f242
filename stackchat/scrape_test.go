package stackchat

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/onnwee/chatkeeper/testutil"
)

func mustDocument(t *testing.T, page string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	return doc
}

func TestScrapeMessages(t *testing.T) {
	doc := mustDocument(t, testutil.PageHTML(
		testutil.MonologueHTML(11, "Alice",
			testutil.ChatMessage{ID: 3, RoomID: 8, ContentHTML: "first"},
			testutil.ChatMessage{ID: 4, RoomID: 8, ContentHTML: "second <b>bold</b>"},
		),
		testutil.MonologueHTML(22, "Bob",
			testutil.ChatMessage{ID: 5, RoomID: 9, ParentID: 3, ContentHTML: "reply"},
		),
	))

	got := ScrapeMessages(doc)
	want := []Message{
		{RoomID: 8, MessageID: 3, Text: "first", UserID: 11, UserName: "Alice"},
		{RoomID: 8, MessageID: 4, Text: "second bold", UserID: 11, UserName: "Alice"},
		{RoomID: 9, MessageID: 5, ParentID: 3, Text: "reply", UserID: 22, UserName: "Bob"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		g := got[i]
		if g.RoomID != want[i].RoomID || g.MessageID != want[i].MessageID || g.ParentID != want[i].ParentID ||
			g.Text != want[i].Text || g.UserID != want[i].UserID || g.UserName != want[i].UserName {
			t.Errorf("message %d = %+v, want %+v", i, g, want[i])
		}
		if g.Content == nil {
			t.Errorf("message %d has nil Content", i)
		}
	}
}

func TestScrapeMessages_Incomplete(t *testing.T) {
	page := `<html><body>
<div class="monologue"><div class="messages">
<div class="message"><div class="content">no id or link</div></div>
<div class="message" id="message-7"><a href="/transcript/12?m=7#7"></a><div class="content">fine</div></div>
</div></div>
</body></html>`

	got := ScrapeMessages(mustDocument(t, page))
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].MessageID != 0 || got[0].RoomID != 0 || got[0].Text != "no id or link" {
		t.Errorf("incomplete message = %+v", got[0])
	}
	if got[1].MessageID != 7 || got[1].RoomID != 12 {
		t.Errorf("complete message = %+v", got[1])
	}
	if got[1].UserID != 0 || got[1].UserName != "" {
		t.Errorf("message without signature has author %d %q", got[1].UserID, got[1].UserName)
	}
}

func TestScrapeMessages_Empty(t *testing.T) {
	if got := ScrapeMessages(mustDocument(t, testutil.PageHTML())); len(got) != 0 {
		t.Errorf("got %d messages from an empty page", len(got))
	}
}

func TestIDHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"user link", pathSegmentID("/users/123/name", 2), 123},
		{"transcript link", pathSegmentID("/transcript/11540?m=1#1", 2), 11540},
		{"absolute link", pathSegmentID("https://chat.example.com/users/5/x", 2), 5},
		{"short path", pathSegmentID("/users", 2), 0},
		{"empty", pathSegmentID("", 2), 0},
		{"non numeric", pathSegmentID("/users/abc/x", 2), 0},
		{"fragment", fragmentID("/transcript/message/99#99"), 99},
		{"no fragment", fragmentID("/transcript/message/99"), 0},
		{"element id", elementIDSuffix("message-42"), 42},
		{"element id without dash", elementIDSuffix("message42"), 0},
		{"negative", parseID("-3"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %d, want %d", tt.got, tt.want)
			}
		})
	}
}
