package session

import (
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/adiatmad/xlsformbuilderku/internal/metrics"
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("session not found")

// Manager keeps the open sessions of a server, keyed by ULID.
type Manager struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session
	entropy  io.Reader
}

// NewManager returns an empty manager. Sessions it creates share opts.
func NewManager(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Manager{
		opts:     opts,
		sessions: make(map[string]*Session),
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Create opens a new empty session.
func (m *Manager) Create() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(m.opts.Clock()), m.entropy).String()
	s := New(id, m.opts)
	m.sessions[id] = s
	m.gauge()
	m.logger().Info("session created", "session", id)
	return s
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete closes the session with the given id.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	m.gauge()
	m.logger().Info("session deleted", "session", id)
	return nil
}

// IDs returns the open session ids in creation order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	// ULIDs sort lexically by creation time.
	slices.Sort(ids)
	return ids
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Metrics returns the metrics sessions report to, or nil.
func (m *Manager) Metrics() *metrics.Metrics {
	return m.opts.Metrics
}

func (m *Manager) gauge() {
	if m.opts.Metrics != nil {
		m.opts.Metrics.SessionsActive.Set(float64(len(m.sessions)))
	}
}

func (m *Manager) logger() *slog.Logger {
	if m.opts.Logger != nil {
		return m.opts.Logger
	}
	return slog.Default()
}
