// internal/gateway/catalog.go
package gateway

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog carries operator overrides for the built-in connector set:
// a connector can be disabled or renamed without a rebuild.
//
//	connectors:
//	  jira:
//	    display_name: "Jira (Acme)"
//	  confluence:
//	    enabled: false
type Catalog struct {
	Connectors map[string]CatalogEntry `yaml:"connectors"`
}

type CatalogEntry struct {
	DisplayName string `yaml:"display_name"`
	Enabled     *bool  `yaml:"enabled"`
}

// LoadCatalog reads the YAML catalog. An empty path yields an empty
// catalog (everything enabled, no overrides).
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return Catalog{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Enabled defaults to true for connectors the catalog does not mention.
func (c Catalog) Enabled(id string) bool {
	e, ok := c.Connectors[id]
	if !ok || e.Enabled == nil {
		return true
	}
	return *e.Enabled
}

func (c Catalog) DisplayName(id, fallback string) string {
	if e, ok := c.Connectors[id]; ok && e.DisplayName != "" {
		return e.DisplayName
	}
	return fallback
}
