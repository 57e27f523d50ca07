// pkg/oauth2flow/state.go
package oauth2flow

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// PKCE is a verifier/challenge pair for the authorization-code flow.
type PKCE struct {
	Verifier  string
	Challenge string
	Method    string // always "S256"
}

// NewPKCE generates a 256-bit random code verifier and its S256 challenge.
func NewPKCE() PKCE {
	v := randomToken(32)
	sum := sha256.Sum256([]byte(v))
	return PKCE{
		Verifier:  v,
		Challenge: base64.RawURLEncoding.EncodeToString(sum[:]),
		Method:    "S256",
	}
}

// NewState returns an unguessable opaque CSRF state value. Binding to a
// tenant/connector happens by storing the state on the pending session,
// never by decoding the value.
func NewState() string { return randomToken(32) }

// StateEqual compares a supplied state against the stored one in
// constant time.
func StateEqual(supplied, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(stored)) == 1
}

func randomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failure means the process cannot operate safely.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
