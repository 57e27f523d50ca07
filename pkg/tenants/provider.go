package tenants

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("tenants: not found")

type Provider interface {
	// Get resolves a tenant by the identifier presented on the request.
	Get(ctx context.Context, id string) (Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
}
