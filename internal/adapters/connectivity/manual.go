// internal/adapters/connectivity/manual.go
package connectivity

import (
	"log/slog"
	"sync"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/ports"
)

// listeners fans edges out to registered callbacks
type listeners struct {
	mu     sync.Mutex
	nextID int
	cbs    map[int]func(bool)
}

func (l *listeners) add(cb func(bool)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cbs == nil {
		l.cbs = make(map[int]func(bool))
	}
	id := l.nextID
	l.nextID++
	l.cbs[id] = cb

	return func() {
		l.mu.Lock()
		delete(l.cbs, id)
		l.mu.Unlock()
	}
}

func (l *listeners) notify(online bool) {
	l.mu.Lock()
	cbs := make([]func(bool), 0, len(l.cbs))
	for _, cb := range l.cbs {
		cbs = append(cbs, cb)
	}
	l.mu.Unlock()

	for _, cb := range cbs {
		cb(online)
	}
}

// Manual is a connectivity flag flipped by the API or by tests
type Manual struct {
	mu     sync.RWMutex
	online bool
	subs   listeners
	logger *slog.Logger
}

var _ ports.ConnectivityProvider = (*Manual)(nil)

// NewManual creates a provider with the given initial state
func NewManual(online bool, logger *slog.Logger) *Manual {
	return &Manual{
		online: online,
		logger: logger.With(slog.String("component", "connectivity"), slog.String("mode", "manual")),
	}
}

// IsOnline returns the current flag
func (m *Manual) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// OnChange registers cb for online/offline edges
func (m *Manual) OnChange(cb func(online bool)) func() {
	return m.subs.add(cb)
}

// SetOnline sets the flag. Callbacks run synchronously, and only on an edge.
func (m *Manual) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if !changed {
		return
	}

	m.logger.Info("connectivity changed", slog.Bool("online", online))
	m.subs.notify(online)
}
