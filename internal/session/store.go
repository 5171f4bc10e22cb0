package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when no record exists for a token.
var ErrNotFound = errors.New("session not found")

// Record is the durable view of a session. Stores persist and return it; the
// Manager owns the authoritative in-memory state.
type Record struct {
	Token          string    `json:"token"`
	Identity       string    `json:"identity"`
	Method         string    `json:"method"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	IsActive       bool      `json:"isActive"`
}

// Store mirrors sessions to durable storage. Implementations must treat
// Delete of a missing token as a no-op. Mirror failures are soft: the
// Manager logs them and keeps serving from memory.
type Store interface {
	Persist(ctx context.Context, rec Record) error
	Lookup(ctx context.Context, token string) (Record, error)
	Delete(ctx context.Context, token string) error
}

// NopStore is used when no durable tier is configured (tests, single-node
// deployments that accept session loss on restart).
type NopStore struct{}

func (NopStore) Persist(context.Context, Record) error { return nil }

func (NopStore) Lookup(context.Context, string) (Record, error) {
	return Record{}, ErrNotFound
}

func (NopStore) Delete(context.Context, string) error { return nil }
