// pkg/connectors/registry.go
package connectors

import (
	"context"
	"sync"

	"connectorhub/pkg/credentials"
)

// DescriptorStatus is a descriptor merged with the tenant's live link
// status, read from the credential store only. Listing connectors must
// never trigger vendor calls.
type DescriptorStatus struct {
	Descriptor
	Status credentials.Status `json:"status"`
}

// Registry holds the registered connector set and dispatches
// tenant-scoped operations by connector id. It is constructed explicitly
// at startup and handed to the HTTP layer; no ambient global state.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Connector
	creds credentials.Store
}

func NewRegistry(creds credentials.Store) *Registry {
	return &Registry{byID: map[string]Connector{}, creds: creds}
}

func (r *Registry) Register(c Connector) {
	id := c.Descriptor().ID
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[id]; !exists {
		r.order = append(r.order, id)
	}
	r.byID[id] = c
}

func (r *Registry) Get(id string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// List returns descriptors in registration order with the tenant's
// status merged in.
func (r *Registry) List(ctx context.Context, tenant string) ([]DescriptorStatus, error) {
	r.mu.RLock()
	ids := append([]string(nil), r.order...)
	r.mu.RUnlock()

	out := make([]DescriptorStatus, 0, len(ids))
	for _, id := range ids {
		c, ok := r.Get(id)
		if !ok {
			continue
		}
		ds := DescriptorStatus{Descriptor: c.Descriptor(), Status: credentials.StatusNotConfigured}
		rec, found, err := r.creds.Get(ctx, tenant, id)
		if err != nil {
			return nil, err
		}
		if found {
			ds.Status = rec.Status
		}
		out = append(out, ds)
	}
	return out, nil
}
