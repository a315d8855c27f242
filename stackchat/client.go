package stackchat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/onnwee/chatkeeper/telemetry"
)

// Search sort orders accepted by the chat search page.
const (
	SortNewest    = "newest"
	SortRelevance = "relevance"
)

// Client performs room-scoped chat operations over a Session.
// Every call is one HTTP round trip and fails with ErrNotConnected until the session has logged in;
// it never waits for the login to finish.
type Client struct {
	session *Session
}

// NewClient wraps s.
func NewClient(s *Session) *Client { return &Client{session: s} }

// Session returns the underlying session.
func (c *Client) Session() *Session { return c.session }

// UserID returns the bot's own chat user id, or 0 before login.
func (c *Client) UserID() int64 { return c.session.UserID() }

// Ack is the service's reply to a posted message. Fields are zero when the reply carried none.
type Ack struct {
	ID   int64 `json:"id"`
	Time int64 `json:"time"`
}

// SendMessage posts body to roomID. A 401/403 reply is an AuthError: the fkey went stale and the
// caller must reconnect.
func (c *Client) SendMessage(ctx context.Context, roomID int64, body string) (ack *Ack, err error) {
	defer func() { c.finish("send", strconv.FormatInt(roomID, 10), err) }()

	fkey, _, err := c.session.credentials()
	if err != nil {
		return nil, err
	}
	target := fmt.Sprintf("%s/chats/%d/messages/new", c.session.endpoints.Chat, roomID)
	form := url.Values{}
	form.Set("text", body)
	form.Set("fkey", fkey)

	resp, err := c.session.roundTrip(ctx, Request{Method: http.MethodPost, URL: target, Form: form})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{URL: target, Status: resp.StatusCode}
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, &TransportError{Op: http.MethodPost, URL: target, Status: resp.StatusCode}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Op: http.MethodPost, URL: target, Err: err}
	}
	ack = &Ack{}
	// the post endpoint answers with JSON; anything else still counts as sent, but unchained
	if err := json.Unmarshal(raw, ack); err != nil {
		slog.Debug("undecodable post reply",
			slog.Int64("room_id", roomID),
			slog.String("body", truncate(string(raw), 200)),
			slog.Any("err", err),
			slog.String("component", "stackchat"))
	}
	return ack, nil
}

// SearchQuery mirrors the chat search page parameters. Zero RoomID/UserID mean "any".
type SearchQuery struct {
	Text     string
	RoomID   int64
	UserID   int64
	Page     int    // default 1
	PageSize int    // default 100
	Sort     string // default SortNewest
}

func (q SearchQuery) values() url.Values {
	v := url.Values{}
	v.Set("q", q.Text)
	v.Set("room", optionalID(q.RoomID))
	v.Set("user", optionalID(q.UserID))
	page := q.Page
	if page <= 0 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	sort := q.Sort
	if sort == "" {
		sort = SortNewest
	}
	v.Set("page", strconv.Itoa(page))
	v.Set("pagesize", strconv.Itoa(pageSize))
	v.Set("sort", sort)
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func optionalID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// Search returns one page of search results. Callers page explicitly through q.Page.
func (c *Client) Search(ctx context.Context, q SearchQuery) (msgs []Message, err error) {
	defer func() { c.finish("search", q.Text, err) }()

	if _, _, err := c.session.credentials(); err != nil {
		return nil, err
	}
	doc, err := c.session.FetchDocument(ctx, Request{URL: c.session.endpoints.Chat + "/search", Query: q.values()})
	if err != nil {
		return nil, err
	}
	return ScrapeMessages(doc), nil
}

// Transcript returns the latest messages of roomID's transcript page.
func (c *Client) Transcript(ctx context.Context, roomID int64) (msgs []Message, err error) {
	defer func() { c.finish("transcript", strconv.FormatInt(roomID, 10), err) }()

	if _, _, err := c.session.credentials(); err != nil {
		return nil, err
	}
	target := fmt.Sprintf("%s/transcript/%d", c.session.endpoints.Chat, roomID)
	doc, err := c.session.FetchDocument(ctx, Request{URL: target})
	if err != nil {
		return nil, err
	}
	return ScrapeMessages(doc), nil
}

func (c *Client) finish(op, target string, err error) {
	telemetry.RecordOperation(op, err)
	if err != nil {
		slog.Warn("chat operation failed",
			slog.String("op", op),
			slog.String("target", target),
			slog.String("class", ClassifyError(err).String()),
			slog.Any("err", err),
			slog.String("component", "stackchat"))
	}
}
