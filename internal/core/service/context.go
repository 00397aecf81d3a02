package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aichat/chat-gateway/internal/core/domain"
	"github.com/aichat/chat-gateway/internal/core/ports"
)

const defaultContextTTL = 12 * time.Hour

// SessionContext bundles the per-browser-session state: the credential store,
// the session registry behind the controller, and the controller itself.
// It has an explicit construction point (POST /session) and teardown (DELETE
// /session, or idle eviction) — no ambient globals.
type SessionContext struct {
	ID          string
	CreatedAt   time.Time
	Credentials ports.CredentialStore
	Controller  ports.AccessController
}

// ContextFactory wires a fresh SessionContext for a given context id.
type ContextFactory func(id string) *SessionContext

type contextEntry struct {
	ctx      *SessionContext
	lastSeen time.Time
}

// ContextManager creates, resolves, and tears down session contexts. Contexts
// idle past the TTL are evicted lazily on the next manager access; there is
// no background sweeper.
type ContextManager struct {
	ttl     time.Duration
	factory ContextFactory
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*contextEntry
}

func NewContextManager(ttl time.Duration, factory ContextFactory) *ContextManager {
	if ttl <= 0 {
		ttl = defaultContextTTL
	}
	return &ContextManager{
		ttl:     ttl,
		factory: factory,
		now:     time.Now,
		entries: make(map[string]*contextEntry),
	}
}

// Create builds and registers a new session context.
func (m *ContextManager) Create() *SessionContext {
	id := uuid.NewString()
	sc := m.factory(id)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()
	m.entries[id] = &contextEntry{ctx: sc, lastSeen: m.now().UTC()}
	return sc
}

// Get resolves a context by id, refreshing its idle timer. Unknown and
// already-evicted ids fail with domain.ErrContextNotFound.
func (m *ContextManager) Get(id string) (*SessionContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()

	entry, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("resolve context %s: %w", id, domain.ErrContextNotFound)
	}
	entry.lastSeen = m.now().UTC()
	return entry.ctx, nil
}

// Delete tears down a context. Idempotent.
func (m *ContextManager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
}

// Len reports the number of live contexts.
func (m *ContextManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()
	return len(m.entries)
}

func (m *ContextManager) evictLocked() {
	cutoff := m.now().UTC().Add(-m.ttl)
	for id, entry := range m.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(m.entries, id)
		}
	}
}
