package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harun/iattom/internal/observability"
	"github.com/rs/zerolog"
)

// Store persists sessions by contact ID. Implementations must be safe for
// concurrent use; per-contact read-modify-write atomicity is the caller's job.
type Store interface {
	// Get returns the session for contactID, or a fresh default session if none exists
	Get(ctx context.Context, contactID string) (*Session, error)

	// Put upserts the full session
	Put(ctx context.Context, s *Session) error

	// Delete removes every field kept for contactID. Deleting an unknown contact is not an error.
	Delete(ctx context.Context, contactID string) error

	// Close releases backend resources
	Close() error
}

// Backend names accepted by Open
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Options selects and configures a Store backend
type Options struct {
	Backend   string        // memory (default) or sqlite
	Path      string        // sqlite database file
	TTL       time.Duration // sqlite inactivity expiry (default: 30 days)
	SweepSpec string        // cron spec for purging expired rows (default: "@every 1h")
	Logger    zerolog.Logger
}

// Open builds the Store described by opts
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendMemory:
		opts.Logger.Info().Str("backend", BackendMemory).Msg("Session store initialized")
		return NewMemoryStore(), nil
	case BackendSQLite:
		store, err := NewSQLiteStore(ctx, SQLiteOptions{
			Path:      opts.Path,
			TTL:       opts.TTL,
			SweepSpec: opts.SweepSpec,
			Logger:    opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown session store backend: %s", opts.Backend)
	}
}

// MemoryStore is a volatile Store. Contents are lost on restart.
type MemoryStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	observability.EnsureRegistered()
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns a copy of the stored session
func (m *MemoryStore) Get(ctx context.Context, contactID string) (*Session, error) {
	if err := ValidateContactID(contactID); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { observability.RecordSessionLoad(time.Since(start)) }()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.sessions[contactID]; ok {
		return s.Clone(), nil
	}
	return New(contactID), nil
}

// Put stores a copy of s
func (m *MemoryStore) Put(ctx context.Context, s *Session) error {
	if s == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if err := ValidateContactID(s.ContactID); err != nil {
		return err
	}
	start := time.Now()
	defer func() { observability.RecordSessionSave(time.Since(start)) }()

	s.UpdatedAt = m.now().UTC()

	m.mu.Lock()
	m.sessions[s.ContactID] = s.Clone()
	m.mu.Unlock()
	return nil
}

// Delete forgets contactID
func (m *MemoryStore) Delete(ctx context.Context, contactID string) error {
	if err := ValidateContactID(contactID); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, contactID)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close is a no-op for the memory backend
func (m *MemoryStore) Close() error {
	return nil
}
