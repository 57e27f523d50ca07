package tenants

import "time"

// Tenant is a logical customer / account space. Every credential,
// pending authorization, and connector call is scoped to one tenant.
type Tenant struct {
	ID          string // uuid or operator-chosen identifier
	Slug        string // short name (acme)
	DisplayName string
	CreatedAt   time.Time
}
