package server

import (
	"log/slog"
	"strings"
	"sync"
)

// ProjectName is the web project's name, either configured or learned from the Host of the
// first request to the project's *.glitch.* address. Once set it never changes.
type ProjectName struct {
	mu    sync.RWMutex
	name  string
	named chan struct{}
}

// NewProjectName returns a ProjectName, already set when name is not empty.
func NewProjectName(name string) *ProjectName {
	p := &ProjectName{named: make(chan struct{})}
	p.Set(name)
	return p
}

// Set records name unless a name is already known. It reports whether name was taken.
func (p *ProjectName) Set(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.name != "" {
		return false
	}
	p.name = name
	close(p.named)
	return true
}

// Learn takes the project name from a request Host such as "sparkle.glitch.me".
func (p *ProjectName) Learn(host string) {
	if !strings.Contains(host, ".glitch.") {
		return
	}
	label, _, _ := strings.Cut(host, ".")
	if p.Set(label) {
		slog.Info("learned project name", slog.String("project", label), slog.String("component", "http"))
	}
}

// Get returns the name, or "" while unknown.
func (p *ProjectName) Get() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

// Named is closed once the name is known.
func (p *ProjectName) Named() <-chan struct{} { return p.named }
