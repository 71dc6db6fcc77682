package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fpang/ai-image-editor/internal/chat"
	"github.com/rs/zerolog/log"
)

// Manager defaults.
const (
	DefaultIdleTimeout     = 2 * time.Hour
	DefaultCleanupInterval = 10 * time.Minute
	DefaultMaxSessions     = 200
)

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session not found")

// ManagerOptions configure a Manager.
type ManagerOptions struct {
	Session         Options
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	MaxSessions     int
}

// Manager is a registry of controllers, one per browser tab. Idle sessions
// are removed by a background loop; when full, the least recently active
// session is evicted.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Controller
	editor   chat.Editor
	opts     ManagerOptions

	cancelCleanup context.CancelFunc
	cleanupDone   chan struct{}
}

// NewManager creates a manager and starts its cleanup loop. Call Shutdown
// to stop it.
func NewManager(editor chat.Editor, opts ManagerOptions) *Manager {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		sessions:      make(map[string]*Controller),
		editor:        editor,
		opts:          opts,
		cancelCleanup: cancel,
		cleanupDone:   make(chan struct{}),
	}
	go m.cleanupLoop(ctx)
	return m
}

// Create registers a new empty session.
func (m *Manager) Create() *Controller {
	c := NewController(m.editor, m.opts.Session)

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) >= m.opts.MaxSessions {
		m.evictLRU()
	}
	m.sessions[c.ID()] = c

	log.Debug().Str("session", c.ID()).Int("count", len(m.sessions)).Msg("Session created")
	return c
}

// Get returns the controller for id.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Delete removes a session. Unknown IDs report false.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown stops the cleanup loop and waits for it to exit.
func (m *Manager) Shutdown() {
	if m.cancelCleanup != nil {
		m.cancelCleanup()
		<-m.cleanupDone
		m.cancelCleanup = nil
	}
}

func (m *Manager) cleanupLoop(ctx context.Context) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(m.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanupIdle(time.Now())
		}
	}
}

// cleanupIdle removes sessions inactive for longer than the idle timeout.
// Sessions with an operation in flight are kept.
func (m *Manager) cleanupIdle(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, c := range m.sessions {
		if now.Sub(c.LastActive()) > m.opts.IdleTimeout && c.Snapshot().State != StateProcessing {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Int("remaining", len(m.sessions)).Msg("Cleaned up idle sessions")
	}
	return removed
}

// evictLRU removes the least recently active session. Caller holds m.mu.
func (m *Manager) evictLRU() {
	var oldestID string
	var oldest time.Time
	for id, c := range m.sessions {
		if t := c.LastActive(); oldestID == "" || t.Before(oldest) {
			oldestID, oldest = id, t
		}
	}
	if oldestID != "" {
		delete(m.sessions, oldestID)
		log.Info().Str("session", oldestID).Msg("Evicted least recently used session")
	}
}
