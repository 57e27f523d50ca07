// pkg/connectors/connector.go
package connectors

import (
	"context"

	"connectorhub/pkg/connectors/normalize"
)

// Descriptor is the static metadata of a connector definition.
type Descriptor struct {
	ID                  string   `json:"id"`
	DisplayName         string   `json:"display_name"`
	Scopes              []string `json:"scopes"`
	Resources           []string `json:"resources"`
	SupportingResources []string `json:"supporting_resources"`
}

// LoginResult is returned from Login; the caller redirects the user to
// AuthorizeURL and later presents State on the callback.
type LoginResult struct {
	AuthorizeURL string `json:"authorize_url"`
	State        string `json:"state"`
}

// Connector is one vendor integration. Every operation is tenant-scoped;
// implementations obtain tokens through the lifecycle manager and map
// vendor responses through pkg/connectors/normalize. Failures surface as
// *normalize.Error values (via errors.As); anything else is a local bug
// the gateway reports as INTERNAL.
type Connector interface {
	Descriptor() Descriptor
	Login(ctx context.Context, tenant string) (LoginResult, error)
	Callback(ctx context.Context, tenant, code, state string) error
	Search(ctx context.Context, tenant, query, resource string, page, perPage int) ([]normalize.Item, error)
	Create(ctx context.Context, tenant, resource string, payload map[string]any) (normalize.Item, error)
	ListSupporting(ctx context.Context, tenant, resource string) ([]normalize.Item, error)
	// Disconnect is idempotent; the boolean reports whether a linked
	// credential actually existed.
	Disconnect(ctx context.Context, tenant string) (bool, error)
}
