package testutil

import (
	"fmt"
	"strings"
)

// ChatMessage describes one .message element for the page builders below.
type ChatMessage struct {
	ID          int64
	RoomID      int64
	ParentID    int64
	ContentHTML string
}

// MonologueHTML renders a .monologue block the way search and transcript pages do.
func MonologueHTML(userID int64, userName string, msgs ...ChatMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="monologue user-%d">`, userID)
	fmt.Fprintf(&b, `<div class="signature"><div class="tiny-signature"><div class="username"><a href="/users/%d/%s" title="%s">%s</a></div></div></div>`,
		userID, strings.ToLower(userName), userName, userName)
	b.WriteString(`<div class="messages">`)
	for _, m := range msgs {
		b.WriteString(MessageHTML(m))
	}
	b.WriteString(`</div></div>`)
	return b.String()
}

// MessageHTML renders a single .message element.
func MessageHTML(m ChatMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="message" id="message-%d">`, m.ID)
	fmt.Fprintf(&b, `<a name="%d" href="/transcript/%d?m=%d#%d"><span class="action-link"></span></a>`, m.ID, m.RoomID, m.ID, m.ID)
	if m.ParentID != 0 {
		fmt.Fprintf(&b, `<a class="reply-info" href="/transcript/message/%d#%d"></a>`, m.ParentID, m.ParentID)
	}
	fmt.Fprintf(&b, `<div class="content">%s</div>`, m.ContentHTML)
	b.WriteString(`</div>`)
	return b.String()
}

// ImageOneboxHTML renders the onebox the chat site shows for a posted image link.
func ImageOneboxHTML(href string) string {
	return fmt.Sprintf(`<div class="onebox ob-image"><a rel="nofollow noopener noreferrer" href="%s"><img src="%s" class="user-image" alt="user image"></a></div>`, href, href)
}

// PageHTML wraps monologues in a minimal chat page.
func PageHTML(monologues ...string) string {
	return `<!DOCTYPE html><html><head><title>chat</title></head><body><div id="content">` +
		strings.Join(monologues, "") + `</div></body></html>`
}
