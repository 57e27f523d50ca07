// pkg/oauth2flow/lifecycle.go
package oauth2flow

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"connectorhub/pkg/credentials"
	"connectorhub/pkg/logger"
	"connectorhub/pkg/secrets"
)

// ExpirySkew is subtracted from vendor-reported expiry so refresh happens
// before the vendor actually starts rejecting the token.
const ExpirySkew = 30 * time.Second

const defaultExpiresIn = time.Hour

var refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "connectorhub_token_refresh_total",
	Help: "Refresh-token grant attempts by connector and result.",
}, []string{"connector", "result"})

// Lifecycle hands out currently valid plaintext access tokens for a
// (tenant, connector), refreshing and re-persisting transparently.
// Concurrent refreshes for the same key collapse into one vendor call:
// Atlassian rotates refresh tokens, and losing that race would strand
// the stored refresh token.
type Lifecycle struct {
	store  credentials.Store
	box    *secrets.Box
	log    logger.Sugared
	client *http.Client
	group  singleflight.Group
	now    func() time.Time
}

func NewLifecycle(store credentials.Store, box *secrets.Box, log logger.Sugared, vendorTimeout time.Duration) *Lifecycle {
	return &Lifecycle{
		store:  store,
		box:    box,
		log:    log.Named("lifecycle"),
		client: &http.Client{Timeout: vendorTimeout},
		now:    time.Now,
	}
}

// EnsureAccessToken returns a valid access token for the pair, or ""
// when the tenant is not usably connected (no record, no refresh token,
// undecryptable blob, or vendor refused the refresh). A non-nil error
// means a local store failure, not a vendor one.
func (l *Lifecycle) EnsureAccessToken(ctx context.Context, tenant, connectorID string, cfg *oauth2.Config) (string, error) {
	rec, ok, err := l.store.Get(ctx, tenant, connectorID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	if tok := l.freshToken(rec); tok != "" {
		return tok, nil
	}

	v, err, _ := l.group.Do(tenant+":"+connectorID, func() (any, error) {
		return l.refresh(ctx, tenant, connectorID, cfg)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// freshToken decrypts the stored access token and returns it if the
// (already skewed) expiry is still in the future. Decryption failures
// degrade to "absent", never an error and never partial bytes.
func (l *Lifecycle) freshToken(rec credentials.Record) string {
	if rec.AccessTokenCiphertext == "" || !l.now().Before(rec.ExpiresAt) {
		return ""
	}
	tok, err := l.box.Decrypt(rec.AccessTokenCiphertext)
	if err != nil {
		l.log.Warnw("stored access token undecryptable, treating as absent",
			"tenant", rec.TenantID, "connector", rec.ConnectorID)
		return ""
	}
	return tok
}

func (l *Lifecycle) refresh(ctx context.Context, tenant, connectorID string, cfg *oauth2.Config) (string, error) {
	// Re-read inside the flight: a collapsed waiter may arrive after the
	// winner already persisted a fresh token.
	rec, ok, err := l.store.Get(ctx, tenant, connectorID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	if tok := l.freshToken(rec); tok != "" {
		return tok, nil
	}
	if rec.RefreshTokenCiphertext == "" {
		return "", nil
	}
	refreshToken, err := l.box.Decrypt(rec.RefreshTokenCiphertext)
	if err != nil {
		l.log.Warnw("stored refresh token undecryptable, treating as absent",
			"tenant", tenant, "connector", connectorID)
		return "", nil
	}

	hctx := context.WithValue(ctx, oauth2.HTTPClient, l.client)
	tok, err := cfg.TokenSource(hctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		refreshTotal.WithLabelValues(connectorID, "failure").Inc()
		// Status only; bodies can echo client secrets.
		if rerr, ok := err.(*oauth2.RetrieveError); ok && rerr.Response != nil {
			l.log.Errorw("token refresh rejected", "connector", connectorID, "status", rerr.Response.StatusCode)
			// A 4xx means the grant itself is dead (revoked or expired
			// refresh token); transient 5xx leaves the record alone.
			if rerr.Response.StatusCode >= 400 && rerr.Response.StatusCode < 500 {
				l.markError(ctx, tenant, connectorID, rec)
			}
		} else {
			l.log.Errorw("token refresh failed", "connector", connectorID, "err", err.Error())
		}
		return "", nil
	}
	if tok.RefreshToken == "" {
		// Vendor did not rotate; keep using the old one.
		tok.RefreshToken = refreshToken
	}
	if err := l.Persist(ctx, tenant, connectorID, tok, rec.Extra); err != nil {
		return "", err
	}
	refreshTotal.WithLabelValues(connectorID, "success").Inc()
	return tok.AccessToken, nil
}

// markError flips the stored status so listings report the link as
// broken instead of healthy. Ciphertexts stay in place for diagnosis;
// a fresh Login/Callback overwrites the whole record.
func (l *Lifecycle) markError(ctx context.Context, tenant, connectorID string, rec credentials.Record) {
	rec.Status = credentials.StatusError
	if err := l.store.Put(ctx, tenant, connectorID, rec); err != nil {
		l.log.Warnw("could not record refresh failure", "tenant", tenant, "connector", connectorID)
	}
}

// Persist encrypts and stores a token response as a whole-record upsert,
// preserving connector metadata. Used by both the callback exchange and
// the refresh path.
func (l *Lifecycle) Persist(ctx context.Context, tenant, connectorID string, tok *oauth2.Token, extra map[string]string) error {
	accessCT, err := l.box.Encrypt(tok.AccessToken)
	if err != nil {
		return err
	}
	refreshCT := ""
	if tok.RefreshToken != "" {
		if refreshCT, err = l.box.Encrypt(tok.RefreshToken); err != nil {
			return err
		}
	}
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = l.now().Add(defaultExpiresIn)
	}
	scope, _ := tok.Extra("scope").(string)
	return l.store.Put(ctx, tenant, connectorID, credentials.Record{
		AccessTokenCiphertext:  accessCT,
		RefreshTokenCiphertext: refreshCT,
		ExpiresAt:              expiry.Add(-ExpirySkew),
		Scope:                  scope,
		Extra:                  extra,
		Status:                 credentials.StatusLinked,
	})
}
