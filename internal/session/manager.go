// Package session issues, validates, refreshes and revokes time-bounded
// session tokens. The in-memory index is authoritative for the lifetime of
// the process; a durable store mirrors it best-effort so sessions survive
// restarts and can be shared across nodes.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sentra/authengine/pkg/logger"
	"github.com/sentra/authengine/pkg/utils"
)

const tokenBytes = 32

type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Record

	// revoked holds tombstones for recently revoked tokens so a durable-store
	// repopulation racing a revoke cannot resurrect the session. Entries are
	// pruned after the manager TTL.
	revoked map[string]time.Time

	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store Store, ttl time.Duration) *Manager {
	if store == nil {
		store = NopStore{}
	}
	return &Manager{
		sessions: make(map[string]*Record),
		revoked:  make(map[string]time.Time),
		store:    store,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create mints a session for the identity. The durable mirror is best-effort:
// a store failure is logged and the session stays valid in memory.
func (m *Manager) Create(ctx context.Context, identity, method string) (Record, error) {
	return m.CreateWithTTL(ctx, identity, method, m.ttl)
}

func (m *Manager) CreateWithTTL(ctx context.Context, identity, method string, ttl time.Duration) (Record, error) {
	token, err := utils.RandomToken(tokenBytes)
	if err != nil {
		return Record{}, err
	}

	now := m.now().UTC()
	rec := Record{
		Token:          token,
		Identity:       identity,
		Method:         method,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(ttl),
		IsActive:       true,
	}

	m.mu.Lock()
	m.sessions[token] = &rec
	m.mu.Unlock()

	if err := m.store.Persist(ctx, rec); err != nil {
		logger.WarnWithIdentity(identity, "session_mirror_failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return rec, nil
}

// Validate returns the session for a token, or nil if the token is unknown,
// revoked or expired. An expired session is revoked as a side effect, so a
// second validation of the same token is an ordinary miss.
func (m *Manager) Validate(ctx context.Context, token string) *Record {
	now := m.now().UTC()

	m.mu.Lock()
	rec, ok := m.sessions[token]
	if ok {
		if !rec.IsActive || now.After(rec.ExpiresAt) {
			delete(m.sessions, token)
			m.mu.Unlock()
			m.deleteMirror(ctx, token)
			return nil
		}
		rec.LastActivityAt = now
		copied := *rec
		m.mu.Unlock()
		return &copied
	}
	m.mu.Unlock()

	// Miss: the session may predate this process. Repopulate from the
	// durable tier if it is still live there.
	stored, err := m.store.Lookup(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warn("session_lookup_failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return nil
	}
	if !stored.IsActive || now.After(stored.ExpiresAt) {
		m.deleteMirror(ctx, token)
		return nil
	}

	stored.LastActivityAt = now

	m.mu.Lock()
	// Re-check after the awaited lookup: a revoke that landed during the
	// store read left a tombstone and must win over the stale record.
	if _, revokedMeanwhile := m.revoked[token]; revokedMeanwhile {
		m.mu.Unlock()
		return nil
	}
	if existing, ok := m.sessions[token]; ok {
		copied := *existing
		m.mu.Unlock()
		return &copied
	}
	copied := stored
	m.sessions[token] = &copied
	m.mu.Unlock()

	return &stored
}

// Refresh extends a valid session's expiry by the manager's TTL from now.
func (m *Manager) Refresh(ctx context.Context, token string) *Record {
	now := m.now().UTC()

	m.mu.Lock()
	rec, ok := m.sessions[token]
	if !ok || !rec.IsActive || now.After(rec.ExpiresAt) {
		m.mu.Unlock()
		return nil
	}
	rec.LastActivityAt = now
	rec.ExpiresAt = now.Add(m.ttl)
	copied := *rec
	m.mu.Unlock()

	if err := m.store.Persist(ctx, copied); err != nil {
		logger.WarnWithIdentity(copied.Identity, "session_mirror_failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return &copied
}

// Revoke removes a session everywhere. Revoking an unknown token is a no-op.
func (m *Manager) Revoke(ctx context.Context, token string) {
	now := m.now().UTC()

	m.mu.Lock()
	delete(m.sessions, token)
	m.revoked[token] = now
	m.pruneTombstones(now)
	m.mu.Unlock()

	m.deleteMirror(ctx, token)
}

// RevokeAll removes every in-memory session for an identity (account-lock
// scenarios). Durable rows are deleted per token.
func (m *Manager) RevokeAll(ctx context.Context, identity string) int {
	now := m.now().UTC()

	m.mu.Lock()
	var tokens []string
	for token, rec := range m.sessions {
		if rec.Identity == identity {
			tokens = append(tokens, token)
		}
	}
	for _, token := range tokens {
		delete(m.sessions, token)
		m.revoked[token] = now
	}
	m.pruneTombstones(now)
	m.mu.Unlock()

	for _, token := range tokens {
		m.deleteMirror(ctx, token)
	}
	return len(tokens)
}

// ActiveCount reports live in-memory sessions, for metrics.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// pruneTombstones drops revocation markers older than the manager TTL. By
// then the durable row has either been deleted or expired on its own, so a
// repopulation can no longer return it. Caller holds m.mu.
func (m *Manager) pruneTombstones(now time.Time) {
	for token, revokedAt := range m.revoked {
		if now.Sub(revokedAt) > m.ttl {
			delete(m.revoked, token)
		}
	}
}

func (m *Manager) deleteMirror(ctx context.Context, token string) {
	if err := m.store.Delete(ctx, token); err != nil {
		logger.Warn("session_mirror_delete_failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
