// Package logging keeps the recent log lines the service shows on its /log image,
// and configures the process-wide slog logger that feeds them.
package logging

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// MaxItems is how many lines a Ring keeps.
const MaxItems = 20

// Item is one line in the ring. Time is the UTC clock time, HH:MM:SS.
type Item struct {
	Time string
	Text string
}

// Ring holds the most recent distinct log lines, oldest first.
type Ring struct {
	mu    sync.Mutex
	items []Item
	now   func() time.Time
}

// NewRing returns an empty ring.
func NewRing() *Ring { return &Ring{now: time.Now} }

// Default is the ring fed by the logger Setup installs.
var Default = NewRing()

// Add appends text, first dropping any older line with the same text.
func (r *Ring) Add(text string) {
	item := Item{Time: r.now().UTC().Format(time.TimeOnly), Text: text}

	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.items[:0]
	for _, it := range r.items {
		if it.Text != text {
			kept = append(kept, it)
		}
	}
	r.items = append(kept, item)
	if over := len(r.items) - MaxItems; over > 0 {
		r.items = append([]Item(nil), r.items[over:]...)
	}
}

// Snapshot returns a copy of the ring, oldest first.
func (r *Ring) Snapshot() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Item(nil), r.items...)
}

// Log writes any value as an info line. It never panics: a value whose String method
// panics is logged as <unprintable T>.
func Log(v any) {
	slog.Info(text(v))
}

func text(v any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("<unprintable %T>", v)
		}
	}()
	return fmt.Sprint(v)
}
