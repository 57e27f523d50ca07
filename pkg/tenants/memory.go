// pkg/tenants/memory.go
package tenants

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"connectorhub/pkg/logger"
)

type memProvider struct {
	mu   sync.RWMutex
	byID map[string]Tenant
}

// NewMemoryProviderFromEnv seeds tenants from TENANT_SEED_JSON
// (`[{"id":"...","slug":"...","display_name":"..."}]`). With no seed a
// single "dev" tenant exists so local bring-up needs no setup.
func NewMemoryProviderFromEnv(log logger.Sugared) Provider {
	p := &memProvider{byID: map[string]Tenant{}}
	seed := os.Getenv("TENANT_SEED_JSON")
	if seed != "" {
		var entries []struct {
			ID          string `json:"id"`
			Slug        string `json:"slug"`
			DisplayName string `json:"display_name"`
		}
		if err := json.Unmarshal([]byte(seed), &entries); err != nil {
			log.Warnw("invalid TENANT_SEED_JSON, starting with no tenants", "err", err.Error())
		}
		for _, e := range entries {
			p.byID[e.ID] = Tenant{ID: e.ID, Slug: e.Slug, DisplayName: e.DisplayName, CreatedAt: time.Now().UTC()}
		}
	}
	if len(p.byID) == 0 {
		p.byID["dev"] = Tenant{ID: "dev", Slug: "dev", DisplayName: "Development", CreatedAt: time.Now().UTC()}
	}
	return p
}

func (m *memProvider) Get(ctx context.Context, id string) (Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.byID[id]; ok {
		return t, nil
	}
	return Tenant{}, ErrNotFound
}

func (m *memProvider) List(ctx context.Context) ([]Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Tenant, 0, len(m.byID))
	for _, t := range m.byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
