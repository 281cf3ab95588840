package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager owns the live sessions of a process and serializes their lifecycle per ID.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	mu    sync.Mutex            // guards locks
	locks map[string]*lockEntry // per-session locks

	sessionsMu sync.RWMutex
	sessions   map[string]*Session

	sessionOpts []Option
	locker      ports.DistributedLocker
	lockTTL     time.Duration
	logger      *slog.Logger
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) ManagerOption {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the TTL of distributed locks.
func WithLockTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager and the sessions it opens.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithSessionOptions sets options applied to every session the Manager opens.
func WithSessionOptions(opts ...Option) ManagerOption {
	return func(m *Manager) {
		m.sessionOpts = append(m.sessionOpts, opts...)
	}
}

// NewManager creates a new Session Manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]*Session),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Open creates and starts the session id. An empty id gets a generated one.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	var s *Session
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		m.sessionsMu.RLock()
		_, exists := m.sessions[id]
		m.sessionsMu.RUnlock()
		if exists {
			return fmt.Errorf("open %s: %w", id, domain.ErrSessionExists)
		}

		opts := append([]Option{WithSessionLogger(m.logger)}, m.sessionOpts...)
		var err error
		if s, err = New(id, opts...); err != nil {
			return err
		}

		m.sessionsMu.Lock()
		m.sessions[id] = s
		m.sessionsMu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("Session opened", "session_id", id)
	return s, nil
}

// Get returns the live session id.
func (m *Manager) Get(id string) (*Session, error) {
	m.sessionsMu.RLock()
	defer m.sessionsMu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, domain.ErrSessionNotFound)
	}
	return s, nil
}

// Close stops the session id and forgets it.
func (m *Manager) Close(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		m.sessionsMu.Lock()
		s, ok := m.sessions[id]
		delete(m.sessions, id)
		m.sessionsMu.Unlock()
		if !ok {
			return fmt.Errorf("close %s: %w", id, domain.ErrSessionNotFound)
		}
		m.logger.Info("Session closed", "session_id", id)
		return s.Close(ctx)
	})
}

// List returns the IDs of the live sessions, sorted.
func (m *Manager) List() []string {
	m.sessionsMu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.sessionsMu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Shutdown closes every live session.
func (m *Manager) Shutdown(ctx context.Context) error {
	var first error
	for _, id := range m.List() {
		if err := m.Close(ctx, id); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
