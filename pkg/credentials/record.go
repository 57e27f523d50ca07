// pkg/credentials/record.go
package credentials

import "time"

// Status of a tenant's link to a connector.
type Status string

const (
	StatusNotConfigured Status = "not_configured"
	StatusLinked        Status = "linked"
	StatusError         Status = "error"
)

// Record is the persisted credential state for one (tenant, connector).
// Token fields are ciphertext produced by pkg/secrets before they reach
// this package; the store never sees plaintext tokens.
type Record struct {
	TenantID               string            `bson:"tenant_id"`
	ConnectorID            string            `bson:"connector_id"`
	AccessTokenCiphertext  string            `bson:"access_token_ciphertext"`
	RefreshTokenCiphertext string            `bson:"refresh_token_ciphertext,omitempty"`
	// ExpiresAt already has the safety skew subtracted; a token is usable
	// strictly before this instant.
	ExpiresAt time.Time         `bson:"expires_at"`
	Scope     string            `bson:"scope,omitempty"`
	Extra     map[string]string `bson:"extra,omitempty"`
	Status    Status            `bson:"status"`
	UpdatedAt time.Time         `bson:"updated_at"`
}
