package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"connectorhub/pkg/connectors"
	"connectorhub/pkg/connectors/normalize"
	"connectorhub/pkg/credentials"
	"connectorhub/pkg/middleware"
	"connectorhub/pkg/tenants"
)

// stubConnector lets the gateway be tested without a vendor.
type stubConnector struct {
	id         string
	searchErr  error
	items      []normalize.Item
	created    normalize.Item
	linked     map[string]bool
	lastTenant string
}

func (s *stubConnector) Descriptor() connectors.Descriptor {
	return connectors.Descriptor{
		ID: s.id, DisplayName: strings.ToUpper(s.id[:1]) + s.id[1:],
		Resources: []string{"issue"}, SupportingResources: []string{"project"},
	}
}

func (s *stubConnector) Login(ctx context.Context, tenant string) (connectors.LoginResult, error) {
	s.lastTenant = tenant
	return connectors.LoginResult{AuthorizeURL: "https://vendor.example.com/authorize?state=s1", State: "s1"}, nil
}

func (s *stubConnector) Callback(ctx context.Context, tenant, code, state string) error {
	if state != "s1" {
		return normalize.NewError(normalize.CodeAuthFailed, "state does not match a pending authorization")
	}
	if s.linked == nil {
		s.linked = map[string]bool{}
	}
	s.linked[tenant] = true
	return nil
}

func (s *stubConnector) Search(ctx context.Context, tenant, query, resource string, page, perPage int) ([]normalize.Item, error) {
	s.lastTenant = tenant
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.items, nil
}

func (s *stubConnector) Create(ctx context.Context, tenant, resource string, payload map[string]any) (normalize.Item, error) {
	if len(payload) == 0 {
		return normalize.Item{}, normalize.NewError(normalize.CodeValidation, "payload required")
	}
	return s.created, nil
}

func (s *stubConnector) ListSupporting(ctx context.Context, tenant, resource string) ([]normalize.Item, error) {
	return s.items, nil
}

func (s *stubConnector) Disconnect(ctx context.Context, tenant string) (bool, error) {
	if s.linked[tenant] {
		delete(s.linked, tenant)
		return true, nil
	}
	return false, nil
}

func newFixture(t *testing.T, catalog Catalog) (*httptest.Server, *stubConnector, credentials.Store) {
	t.Helper()
	creds := credentials.NewMemoryStore()
	reg := connectors.NewRegistry(creds)
	stub := &stubConnector{
		id:      "jira",
		items:   []normalize.Item{{ID: "PROJ-1", Title: "First", Type: "issue"}},
		created: normalize.Item{ID: "PROJ-2", Title: "Created", Type: "issue"},
	}
	reg.Register(stub)

	prov := tenants.NewMemoryProviderFromEnv(zap.NewNop().Sugar())
	h := NewHandler(reg, catalog, zap.NewNop().Sugar())

	r := chi.NewRouter()
	r.Use(middleware.WithTenant(prov))
	h.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, stub, creds
}

func do(t *testing.T, method, url string, tenant string, body string) (*http.Response, map[string]any) {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if tenant != "" {
		req.Header.Set(middleware.HeaderTenantID, tenant)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestTenantHeaderRequired(t *testing.T) {
	srv, _, _ := newFixture(t, Catalog{})
	resp, body := do(t, http.MethodGet, srv.URL+"/connectors", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", body["code"])
}

func TestUnknownTenant(t *testing.T) {
	srv, _, _ := newFixture(t, Catalog{})
	resp, body := do(t, http.MethodGet, srv.URL+"/connectors", "nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestListConnectorsWithStatus(t *testing.T) {
	srv, _, creds := newFixture(t, Catalog{})
	require.NoError(t, creds.Put(context.Background(), "dev", "jira",
		credentials.Record{Status: credentials.StatusLinked}))

	resp, body := do(t, http.MethodGet, srv.URL+"/connectors", "dev", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := body["connectors"].([]any)
	require.Len(t, list, 1)
	entry := list[0].(map[string]any)
	assert.Equal(t, "jira", entry["id"])
	assert.Equal(t, "linked", entry["status"])
}

func TestCatalogDisablesConnector(t *testing.T) {
	off := false
	srv, _, _ := newFixture(t, Catalog{Connectors: map[string]CatalogEntry{
		"jira": {Enabled: &off},
	}})

	resp, body := do(t, http.MethodGet, srv.URL+"/connectors", "dev", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["connectors"])

	resp, body = do(t, http.MethodGet, srv.URL+"/connectors/jira/search?q=x", "dev", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestCatalogRenamesConnector(t *testing.T) {
	srv, _, _ := newFixture(t, Catalog{Connectors: map[string]CatalogEntry{
		"jira": {DisplayName: "Jira (Acme)"},
	}})
	resp, body := do(t, http.MethodGet, srv.URL+"/connectors", "dev", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entry := body["connectors"].([]any)[0].(map[string]any)
	assert.Equal(t, "Jira (Acme)", entry["display_name"])
}

func TestLoginAndCallback(t *testing.T) {
	srv, stub, _ := newFixture(t, Catalog{})

	resp, body := do(t, http.MethodGet, srv.URL+"/connectors/jira/oauth/login", "dev", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://vendor.example.com/authorize?state=s1", body["authorize_url"])
	assert.Equal(t, "dev", stub.lastTenant)

	resp, body = do(t, http.MethodGet, srv.URL+"/connectors/jira/oauth/callback?code=abc&state=s1", "dev", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "jira", body["connector"])

	resp, body = do(t, http.MethodGet, srv.URL+"/connectors/jira/oauth/callback?code=abc&state=bad", "dev", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "AUTH_FAILED", body["code"])
}

func TestSearch(t *testing.T) {
	srv, _, _ := newFixture(t, Catalog{})

	resp, body := do(t, http.MethodGet, srv.URL+"/connectors/jira/search?q=first", "dev", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "PROJ-1", items[0].(map[string]any)["id"])
	assert.Equal(t, float64(1), body["page"])
	assert.Equal(t, float64(25), body["per_page"])
}

func TestSearchValidation(t *testing.T) {
	srv, _, _ := newFixture(t, Catalog{})

	resp, body := do(t, http.MethodGet, srv.URL+"/connectors/jira/search", "dev", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", body["code"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/connectors/jira/search?q=x&per_page=1000", "dev", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/connectors/jira/search?q=x&page=zero", "dev", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchErrorMapping(t *testing.T) {
	srv, stub, _ := newFixture(t, Catalog{})
	ra := 17
	stub.searchErr = &normalize.Error{Status: "error", Code: normalize.CodeRateLimited, Message: "vendor rate limit exceeded", RetryAfter: &ra}

	resp, body := do(t, http.MethodGet, srv.URL+"/connectors/jira/search?q=x", "dev", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMITED", body["code"])
	assert.Equal(t, float64(17), body["retry_after"])
}

func TestUnclassifiedErrorBecomesInternal(t *testing.T) {
	srv, stub, _ := newFixture(t, Catalog{})
	stub.searchErr = errors.New("mongo: connection reset with secret dsn user:pass@host")

	resp, body := do(t, http.MethodGet, srv.URL+"/connectors/jira/search?q=x", "dev", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "INTERNAL", body["code"])
	assert.NotContains(t, body["message"], "user:pass")
}

func TestCreateResource(t *testing.T) {
	srv, _, _ := newFixture(t, Catalog{})

	resp, body := do(t, http.MethodPost, srv.URL+"/connectors/jira/resources", "dev",
		`{"resource":"issue","payload":{"project_key":"PROJ","summary":"s"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	item := body["item"].(map[string]any)
	assert.Equal(t, "PROJ-2", item["id"])

	resp, body = do(t, http.MethodPost, srv.URL+"/connectors/jira/resources", "dev", `not-json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", body["code"])
}

func TestSupportingRequiresResource(t *testing.T) {
	srv, _, _ := newFixture(t, Catalog{})

	resp, body := do(t, http.MethodGet, srv.URL+"/connectors/jira/supporting", "dev", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", body["code"])

	resp, body = do(t, http.MethodGet, srv.URL+"/connectors/jira/supporting?resource=project", "dev", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["items"], 1)
}

func TestDisconnect(t *testing.T) {
	srv, _, _ := newFixture(t, Catalog{})

	resp, body := do(t, http.MethodDelete, srv.URL+"/connectors/jira/connection", "dev", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["code"])

	_, _ = do(t, http.MethodGet, srv.URL+"/connectors/jira/oauth/callback?code=abc&state=s1", "dev", "")
	resp, body = do(t, http.MethodDelete, srv.URL+"/connectors/jira/connection", "dev", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["deleted"])
}

func TestUnknownConnector(t *testing.T) {
	srv, _, _ := newFixture(t, Catalog{})
	resp, body := do(t, http.MethodGet, srv.URL+"/connectors/linear/oauth/login", "dev", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestOpenAPIDocIsPublic(t *testing.T) {
	srv, _, _ := newFixture(t, Catalog{})
	resp, body := do(t, http.MethodGet, srv.URL+"/.well-known/openapi.json", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "3.1.0", body["openapi"])
	paths := body["paths"].(map[string]any)
	assert.Contains(t, paths, "/connectors")
	assert.Contains(t, paths, "/connectors/{id}/search")
}
