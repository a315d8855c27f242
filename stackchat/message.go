package stackchat

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Message is one chat message scraped from a rendered page.
// Integer fields are 0 when the page did not carry them; the service only assigns positive ids.
type Message struct {
	RoomID    int64
	MessageID int64
	ParentID  int64 // set when the message is a reply

	// Content is the rendered .content element, kept for structural lookups such as oneboxed links.
	Content *goquery.Selection
	Text    string

	UserID   int64
	UserName string
}

// IsReply reports whether the message replies to another one.
func (m Message) IsReply() bool { return m.ParentID != 0 }

// ImageLink returns the href of the first oneboxed image in the message, or "".
func (m Message) ImageLink() string {
	if m.Content == nil {
		return ""
	}
	href, _ := m.Content.Find(".ob-image a").First().Attr("href")
	return href
}

// pathSegmentID parses the numeric path segment at idx of an href such as
// "/users/123/name" (idx 2 -> 123) or "/transcript/11540?m=1#1" (idx 2 -> 11540).
func pathSegmentID(href string, idx int) int64 {
	if href == "" {
		return 0
	}
	u, err := url.Parse(href)
	if err != nil {
		return 0
	}
	parts := strings.Split(u.Path, "/")
	if idx >= len(parts) {
		return 0
	}
	return parseID(parts[idx])
}

// fragmentID parses "#123" style anchors, as used by reply-info links.
func fragmentID(href string) int64 {
	_, frag, ok := strings.Cut(href, "#")
	if !ok {
		return 0
	}
	return parseID(frag)
}

// elementIDSuffix parses ids of the form "message-123".
func elementIDSuffix(id string) int64 {
	_, suffix, ok := strings.Cut(id, "-")
	if !ok {
		return 0
	}
	return parseID(suffix)
}

func parseID(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
