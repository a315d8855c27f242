package server

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	errChatDisabled   = errors.New("chat credentials not configured")
	errLoginPending   = errors.New("chat login not finished")
	errProjectUnknown = errors.New("project name not known yet")
)

// HandleHealthz responds to liveness probe requests.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports ready once the project name is known and the chat session has logged in.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"project", func() error {
			if h.project.Get() == "" {
				return errProjectUnknown
			}
			return nil
		}},
		{"chat", func() error {
			if h.chat == nil {
				return errChatDisabled
			}
			if h.chat.IsConnected() {
				return nil
			}
			if err := h.chat.Err(); err != nil {
				return err
			}
			return errLoginPending
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			// Set headers before writing status code
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}
