package stackchat

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ScrapeMessages returns every message on a search-result or transcript page, in document order.
//
// Messages are grouped in .monologue blocks whose .signature names the author once.
// A message missing its id or room link is still returned with that field left at 0,
// so one odd element never hides the rest of the page.
func ScrapeMessages(doc *goquery.Document) []Message {
	var messages []Message
	doc.Find(".monologue").Each(func(_ int, monologue *goquery.Selection) {
		signature := monologue.Find(".signature .username a").First()
		userName := strings.TrimSpace(signature.Text())
		userHref, _ := signature.Attr("href")
		userID := pathSegmentID(userHref, 2)

		monologue.Find(".message").Each(func(_ int, el *goquery.Selection) {
			m := Message{UserID: userID, UserName: userName}

			id, _ := el.Attr("id")
			m.MessageID = elementIDSuffix(id)

			roomHref, _ := el.Find("a").First().Attr("href")
			m.RoomID = pathSegmentID(roomHref, 2)

			if reply := el.Find(".reply-info").First(); reply.Length() > 0 {
				replyHref, _ := reply.Attr("href")
				m.ParentID = fragmentID(replyHref)
			}

			content := el.Find(".content").First()
			m.Content = content
			m.Text = strings.TrimSpace(content.Text())

			if m.MessageID == 0 || m.RoomID == 0 {
				slog.Debug("incomplete chat message",
					slog.String("element_id", id),
					slog.Int64("message_id", m.MessageID),
					slog.Int64("room_id", m.RoomID),
					slog.String("component", "stackchat"))
			}
			messages = append(messages, m)
		})
	})
	return messages
}
