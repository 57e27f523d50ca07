// pkg/middleware/tenant.go
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"connectorhub/pkg/connectors/normalize"
	"connectorhub/pkg/tenants"
)

type ctxTenantKey struct{}

// HeaderTenantID carries the caller's tenant on every connector request.
const HeaderTenantID = "X-Tenant-ID"

// WithTenant resolves and validates the tenant identifier. Health,
// metrics and well-known endpoints stay tenant-free.
func WithTenant(prov tenants.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" ||
				strings.HasPrefix(r.URL.Path, "/.well-known/") {
				next.ServeHTTP(w, r)
				return
			}
			id := strings.TrimSpace(r.Header.Get(HeaderTenantID))
			if id == "" {
				writeTenantError(w, http.StatusBadRequest,
					normalize.NewError(normalize.CodeValidation, "missing "+HeaderTenantID+" header"))
				return
			}
			t, err := prov.Get(r.Context(), id)
			if errors.Is(err, tenants.ErrNotFound) {
				writeTenantError(w, http.StatusNotFound,
					normalize.NewError(normalize.CodeNotFound, "unknown tenant"))
				return
			}
			if err != nil {
				writeTenantError(w, http.StatusInternalServerError,
					normalize.NewError(normalize.CodeInternal, "tenant lookup failed"))
				return
			}
			ctx := context.WithValue(r.Context(), ctxTenantKey{}, t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TenantFrom(ctx context.Context) tenants.Tenant {
	if v := ctx.Value(ctxTenantKey{}); v != nil {
		return v.(tenants.Tenant)
	}
	return tenants.Tenant{}
}

func writeTenantError(w http.ResponseWriter, status int, e *normalize.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(e)
}
