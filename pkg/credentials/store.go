// pkg/credentials/store.go
package credentials

import (
	"context"
	"sync"
	"time"
)

// Store persists credential records keyed by (tenant, connector). Put is
// a whole-record upsert: concurrent writers are last-write-wins and
// readers never observe a partially written record.
type Store interface {
	Get(ctx context.Context, tenant, connector string) (Record, bool, error)
	Put(ctx context.Context, tenant, connector string, rec Record) error
	// Delete reports whether a record existed, so disconnect can stay
	// idempotent while the HTTP layer distinguishes 200 from 404.
	Delete(ctx context.Context, tenant, connector string) (bool, error)
}

// MemoryStore is the dev/test implementation.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]Record
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{m: map[string]Record{}} }

func recKey(tenant, connector string) string { return tenant + ":" + connector }

func (s *MemoryStore) Get(ctx context.Context, tenant, connector string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.m[recKey(tenant, connector)]
	return rec, ok, nil
}

func (s *MemoryStore) Put(ctx context.Context, tenant, connector string, rec Record) error {
	rec.TenantID = tenant
	rec.ConnectorID = connector
	rec.UpdatedAt = time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[recKey(tenant, connector)] = rec
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, tenant, connector string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[recKey(tenant, connector)]
	delete(s.m, recKey(tenant, connector))
	return ok, nil
}
