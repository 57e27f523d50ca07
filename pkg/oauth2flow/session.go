// pkg/oauth2flow/session.go
package oauth2flow

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Session is the ephemeral record backing one pending authorization-code
// flow for a (tenant, connector) pair.
type Session struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier"`
	CreatedAt    time.Time `json:"created_at"`
}

var (
	// ErrInvalidState covers every failure mode of Consume: no pending
	// session, expired session, or state mismatch. Callers must fail
	// closed and report it identically in all three cases.
	ErrInvalidState = errors.New("oauth2flow: invalid or expired state")
)

// SessionStore persists pending sessions with a TTL. Consume removes the
// session atomically with respect to concurrent callbacks: at most one
// caller ever receives it, and a mismatched state burns it.
type SessionStore interface {
	Begin(ctx context.Context, tenant, connector string, s Session) error
	Consume(ctx context.Context, tenant, connector, suppliedState string) (Session, error)
	Discard(ctx context.Context, tenant, connector string) error
}

type memSession struct {
	s   Session
	exp time.Time
}

// MemorySessionStore is the dev/test implementation.
type MemorySessionStore struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]memSession
	now func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{ttl: ttl, m: map[string]memSession{}, now: time.Now}
}

func sessKey(tenant, connector string) string { return tenant + ":" + connector }

func (st *MemorySessionStore) Begin(ctx context.Context, tenant, connector string, s Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.m[sessKey(tenant, connector)] = memSession{s: s, exp: st.now().Add(st.ttl)}
	return nil
}

func (st *MemorySessionStore) Consume(ctx context.Context, tenant, connector, suppliedState string) (Session, error) {
	st.mu.Lock()
	e, ok := st.m[sessKey(tenant, connector)]
	if ok {
		delete(st.m, sessKey(tenant, connector))
	}
	st.mu.Unlock()
	if !ok || st.now().After(e.exp) {
		return Session{}, ErrInvalidState
	}
	if !StateEqual(suppliedState, e.s.State) {
		return Session{}, ErrInvalidState
	}
	return e.s, nil
}

func (st *MemorySessionStore) Discard(ctx context.Context, tenant, connector string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.m, sessKey(tenant, connector))
	return nil
}
