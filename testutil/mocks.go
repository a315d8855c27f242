package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// MockChatServer fakes the login form and the chat site on a single httptest server.
// The login form lives at /users/login; every other path belongs to the chat site.
type MockChatServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc

	mu    sync.Mutex
	posts []url.Values
	hits  map[string]int
}

// NewMockChatServer creates a new mock chat server.
func NewMockChatServer(t *testing.T) *MockChatServer {
	t.Helper()
	m := &MockChatServer{
		Handlers: make(map[string]http.HandlerFunc),
		hits:     make(map[string]int),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.hits[r.Method+" "+r.URL.Path]++
		m.mu.Unlock()
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// LoginURL is the login form URL to use as stackchat.Endpoints.Login.
func (m *MockChatServer) LoginURL() string { return m.URL + "/users/login" }

// Hits returns how many requests reached "METHOD /path".
func (m *MockChatServer) Hits(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[key]
}

// Posts returns the forms received by message post endpoints, in order.
func (m *MockChatServer) Posts() []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]url.Values, len(m.posts))
	copy(out, m.posts)
	return out
}

// MockLogin serves a login form carrying loginFkey and accepts a credential POST that echoes it.
// When inactive is set, the POST answers with the "create your profile" confirmation page.
func (m *MockChatServer) MockLogin(loginFkey string, inactive bool) {
	m.Handlers["/users/login"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.Method == http.MethodGet {
			fkeyInput := ""
			if loginFkey != "" {
				fkeyInput = fmt.Sprintf(`<input type="hidden" name="fkey" value="%s">`, loginFkey)
			}
			_, _ = fmt.Fprintf(w, `<html><body><form id="login-form" method="post">%s<input name="email"><input name="password" type="password"></form></body></html>`, fkeyInput)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("fkey") != loginFkey {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "acct", Value: "t=session", Path: "/"})
		if inactive {
			_, _ = fmt.Fprint(w, `<html><body><form><input type="submit" id="confirm-submit" value="Confirm and create"></form></body></html>`)
			return
		}
		_, _ = fmt.Fprint(w, `<html><body><div class="topbar">welcome back</div></body></html>`)
	}
}

// MockHome serves the chat home page with the given fkey and profile link. Empty fkey or
// zero userID omit the corresponding element. The page is only served with the login cookie.
func (m *MockChatServer) MockHome(fkey string, userID int64) {
	m.Handlers["/"] = func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("acct"); err != nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = fmt.Fprint(w, `<html><body><a href="/users/login">log in</a></body></html>`)
			return
		}
		fkeyInput := ""
		if fkey != "" {
			fkeyInput = fmt.Sprintf(`<input id="fkey" name="fkey" type="hidden" value="%s">`, fkey)
		}
		profile := ""
		if userID != 0 {
			profile = fmt.Sprintf(`<a href="/users/%d/bot">bot</a>`, userID)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, `<html><body><div class="topbar-menu-links">%s<a href="/faq">faq</a></div>%s</body></html>`, profile, fkeyInput)
	}
}

// MockPage serves a fixed HTML page at path.
func (m *MockChatServer) MockPage(path, page string) {
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, page)
	}
}

// MockSearch serves page as the search results page.
func (m *MockChatServer) MockSearch(page string) { m.MockPage("/search", page) }

// MockTranscript serves page as roomID's transcript.
func (m *MockChatServer) MockTranscript(roomID int64, page string) {
	m.MockPage(fmt.Sprintf("/transcript/%d", roomID), page)
}

// MockPost records posts to roomID and answers with status; a 200 carries {"id":ackID}.
func (m *MockChatServer) MockPost(roomID int64, status int, ackID int64) {
	m.Handlers[fmt.Sprintf("/chats/%d/messages/new", roomID)] = func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		m.posts = append(m.posts, r.PostForm)
		m.mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int64{"id": ackID, "time": 1700000000}) //nolint:errcheck // test mock response
	}
}
