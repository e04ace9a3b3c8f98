package view

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kdimtricp/paintestimator/internal/models"
)

// Manager keeps the views of all connected clients. Views never share
// state; the manager only indexes them.
type Manager struct {
	deps   Deps
	logger *zap.Logger

	views   map[string]*View
	viewsMu sync.RWMutex
}

func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Manager{
		deps:   deps,
		logger: deps.Logger,
		views:  make(map[string]*View),
	}
}

func (m *Manager) Create(mode models.Mode) *View {
	v := New(mode, m.deps)

	m.viewsMu.Lock()
	m.views[v.ID] = v
	m.viewsMu.Unlock()

	m.logger.Info("view created", zap.String("view", v.ID), zap.String("mode", string(mode)))
	return v
}

func (m *Manager) Get(id string) (*View, bool) {
	m.viewsMu.RLock()
	defer m.viewsMu.RUnlock()

	v, ok := m.views[id]
	return v, ok
}

func (m *Manager) Delete(id string) bool {
	m.viewsMu.Lock()
	v, ok := m.views[id]
	delete(m.views, id)
	m.viewsMu.Unlock()

	if ok {
		v.Close()
	}
	return ok
}

// Expire closes views created before the cutoff and returns how many were
// removed.
func (m *Manager) Expire(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.viewsMu.Lock()
	var stale []*View
	for id, v := range m.views {
		if v.CreatedAt.Before(cutoff) {
			stale = append(stale, v)
			delete(m.views, id)
		}
	}
	m.viewsMu.Unlock()

	for _, v := range stale {
		v.Close()
	}
	if len(stale) > 0 {
		m.logger.Info("expired views", zap.Int("count", len(stale)))
	}
	return len(stale)
}

func (m *Manager) Close() {
	m.viewsMu.Lock()
	views := m.views
	m.views = make(map[string]*View)
	m.viewsMu.Unlock()

	for _, v := range views {
		v.Close()
	}
}
