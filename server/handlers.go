package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/chatkeeper/logging"
)

// ChatStatus reports the chat login outcome; *stackchat.Session implements it.
type ChatStatus interface {
	IsConnected() bool
	Err() error
}

// Deps are the collaborators the handlers read from. Chat may be nil when no credentials are configured.
type Deps struct {
	Project  *ProjectName
	Ring     *logging.Ring
	Chat     ChatStatus
	PixelURL string
	Now      func() time.Time
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	project  *ProjectName
	ring     *logging.Ring
	chat     ChatStatus
	pixelURL string
	now      func() time.Time
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	h := &Handlers{
		project:  deps.Project,
		ring:     deps.Ring,
		chat:     deps.Chat,
		pixelURL: deps.PixelURL,
		now:      deps.Now,
	}
	if h.project == nil {
		h.project = NewProjectName("")
	}
	if h.ring == nil {
		h.ring = logging.Default
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// HandlePixel redirects to a tiny image, so a chat message embedding it pings the service.
func (h *Handlers) HandlePixel(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.pixelURL, http.StatusFound)
}

// HandleFeed serves a one-entry Atom feed. It changes once a day, which is enough for feed
// readers to keep polling the project.
func (h *Handlers) HandleFeed(w http.ResponseWriter, r *http.Request) {
	slog.Info("serving feed", slog.String("ip", clientIP(r)), slog.String("component", "http"))
	body, err := RenderFeed(h.project.Get(), h.now())
	if err != nil {
		slog.Error("render feed", slog.Any("err", err), slog.String("component", "http"))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	noCache(w)
	w.Header().Set("Content-Type", "application/atom+xml")
	_, _ = w.Write(body)
}

// HandleLog serves the recent log lines as an image that refreshes itself.
func (h *Handlers) HandleLog(w http.ResponseWriter, r *http.Request) {
	body, err := RenderLogSnapshot(h.project.Get(), h.ring.Snapshot())
	if err != nil {
		slog.Error("render log", slog.Any("err", err), slog.String("component", "http"))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	noCache(w)
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Refresh", "6")
	_, _ = w.Write(body)
}

// HandleBadge serves an image naming the project that redirects to its source.
func (h *Handlers) HandleBadge(w http.ResponseWriter, r *http.Request) {
	project := h.project.Get()
	body, err := RenderBadge(project)
	if err != nil {
		slog.Error("render badge", slog.Any("err", err), slog.String("component", "http"))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	noCache(w)
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Refresh", "0;URL="+editURL(project))
	_, _ = w.Write(body)
}
