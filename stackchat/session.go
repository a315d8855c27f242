package stackchat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"github.com/onnwee/chatkeeper/telemetry"
)

const (
	DefaultLoginURL = "https://security.stackexchange.com/users/login"
	DefaultChatURL  = "https://chat.stackexchange.com"

	userAgent    = "Mozilla/5.0 (compatible; chatkeeper/1.0)"
	maxBodyBytes = 8 * 1024 * 1024
)

// Endpoints locates the login form and the chat site. Empty fields fall back to the defaults.
type Endpoints struct {
	Login string // full URL of the login form
	Chat  string // chat site base URL, no trailing slash
}

func (e Endpoints) withDefaults() Endpoints {
	if e.Login == "" {
		e.Login = DefaultLoginURL
	}
	if e.Chat == "" {
		e.Chat = DefaultChatURL
	}
	e.Chat = strings.TrimRight(e.Chat, "/")
	return e
}

// Request describes one page fetch. Query is appended to URL; a non-nil Form is sent
// as an application/x-www-form-urlencoded body.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Form   url.Values
}

// Session holds the cookie jar and login state for one chat account.
// Credentials and tokens are per instance, so tests can run several sessions side by side.
type Session struct {
	email     string
	password  string
	endpoints Endpoints
	http      *http.Client

	mu      sync.RWMutex
	account string
	fkey    string
	userID  int64

	started   atomic.Bool
	connected chan struct{}
	connErr   error // written once before connected is closed
}

// NewSession returns a logged-out session. Call Connect before any chat operation.
func NewSession(email, password string, endpoints Endpoints) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Session{
		email:     email,
		password:  password,
		endpoints: endpoints.withDefaults(),
		http:      &http.Client{Jar: jar},
		connected: make(chan struct{}),
	}, nil
}

// Endpoints returns the resolved endpoints used by this session.
func (s *Session) Endpoints() Endpoints { return s.endpoints }

// Connected returns a channel closed once Connect has finished, successfully or not.
func (s *Session) Connected() <-chan struct{} { return s.connected }

// Err returns the login outcome. It is nil until Connected is closed.
func (s *Session) Err() error {
	select {
	case <-s.connected:
		return s.connErr
	default:
		return nil
	}
}

// Wait blocks until login finishes or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.connected:
		return s.connErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsConnected reports whether login completed successfully.
func (s *Session) IsConnected() bool {
	_, _, err := s.credentials()
	return err == nil
}

// UserID returns the logged-in chat user id, or 0 before login.
func (s *Session) UserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Account returns the name passed to Connect.
func (s *Session) Account() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// credentials returns the chat fkey and user id, or ErrNotConnected if login has not completed.
func (s *Session) credentials() (string, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fkey == "" || s.userID == 0 {
		return "", 0, ErrNotConnected
	}
	return s.fkey, s.userID, nil
}

// FetchDocument issues r with the session cookies and parses the response as HTML.
func (s *Session) FetchDocument(ctx context.Context, r Request) (*goquery.Document, error) {
	resp, err := s.roundTrip(ctx, r)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &TransportError{Op: resp.Request.Method, URL: r.URL, Status: resp.StatusCode}
	}
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &ParseError{URL: r.URL, Err: err}
	}
	doc.Url = resp.Request.URL
	return doc, nil
}

// roundTrip sends r and returns the raw response. Only network failures are errors here;
// callers decide what a status code means.
func (s *Session) roundTrip(ctx context.Context, r Request) (*http.Response, error) {
	method := r.Method
	switch {
	case method != "":
	case r.Form != nil:
		method = http.MethodPost
	default:
		method = http.MethodGet
	}
	target := r.URL
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.Query.Encode()
	}

	var body io.Reader
	if r.Form != nil {
		body = strings.NewReader(r.Form.Encode())
	}

	ctx, span := telemetry.StartSpan(ctx, "stackchat", method+" "+r.URL,
		telemetry.HTTPMethodAttr(method),
		telemetry.HTTPURLAttr(r.URL),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, &TransportError{Op: method, URL: r.URL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if r.Form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	// form bodies carry credentials and are never logged
	attrs := []any{slog.String("method", method), slog.String("url", r.URL), slog.String("component", "stackchat")}
	if len(r.Query) > 0 {
		attrs = append(attrs, slog.String("query", r.Query.Encode()))
	}
	slog.Info("chat request", attrs...)

	start := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		telemetry.RecordChatRequest(method, 0, time.Since(start))
		telemetry.RecordError(span, err)
		return nil, &TransportError{Op: method, URL: r.URL, Err: err}
	}
	telemetry.RecordChatRequest(method, resp.StatusCode, time.Since(start))
	telemetry.SetSpanHTTPStatus(span, resp.StatusCode)
	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(telemetry.ErrorStatus(resp.Status))
	} else {
		telemetry.SetSpanSuccess(span)
	}
	return resp, nil
}
