package cart

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Manager hands out one Store per session. Sessions never share cart state:
// two sessions may hold divergent carts, mirroring how separate browser
// contexts bootstrap independently.
type Manager struct {
	gateway Gateway
	ids     IDStore
	logger  *slog.Logger

	mu     sync.Mutex
	stores map[string]*Store
}

func NewManager(gateway Gateway, ids IDStore, logger *slog.Logger) *Manager {
	return &Manager{
		gateway: gateway,
		ids:     ids,
		logger:  logger,
		stores:  make(map[string]*Store),
	}
}

// NewSessionID mints an opaque session identifier.
func (m *Manager) NewSessionID() string {
	return uuid.NewString()
}

// Store returns the session's store, creating it on first touch. The
// session id doubles as the fixed persisted-identifier key, so a returning
// session resumes its cart even after a restart (given a durable IDStore).
func (m *Manager) Store(sessionID string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[sessionID]; ok {
		return s
	}
	s := NewStore(m.gateway, m.ids, sessionID, m.logger)
	m.stores[sessionID] = s
	return s
}
