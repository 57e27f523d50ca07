// pkg/connectors/atlassian/atlassian.go
package atlassian

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jmespath/go-jmespath"
	"golang.org/x/oauth2"

	"connectorhub/pkg/config"
	"connectorhub/pkg/connectors"
	"connectorhub/pkg/connectors/normalize"
	"connectorhub/pkg/credentials"
	"connectorhub/pkg/logger"
	"connectorhub/pkg/oauth2flow"
)

// Jira and Confluence share the Atlassian cloud OAuth scheme: one
// authorize/token host, a cloud id resolved per site after token
// issuance, and product APIs addressed under /ex/<product>/<cloudId>.
// The two connectors are one implementation with different profiles.

const (
	DefaultAuthURL  = "https://auth.atlassian.com/authorize"
	DefaultTokenURL = "https://auth.atlassian.com/oauth/token"
	DefaultAPIBase  = "https://api.atlassian.com"
)

const (
	extraCloudID = "cloud_id"
	extraSiteURL = "site_url"
)

// profile captures how the products differ: scopes, paths, and the
// normalization rules for each payload family.
type profile struct {
	id          string
	displayName string
	scopes      []string
	resources   []string
	supporting  []string

	searchPath  func(apiBase, cloudID string) string
	searchQuery func(q string, page, perPage int) url.Values
	searchItems string // jmespath to the result array
	searchRules normalize.ItemRules
	itemURL     func(siteURL, id string) string

	createPath  func(apiBase, cloudID string) string
	createBody  func(payload map[string]any) (map[string]any, *normalize.Error)
	createTitle func(payload map[string]any) string
	createdID   string // jmespath into the create response

	supportingPath  func(apiBase, cloudID, resource string) string
	supportingItems string
	supportingRules func(resource string) normalize.ItemRules
}

// Deps are the collaborators every Atlassian connector needs. Endpoint
// and APIBase default to the Atlassian cloud and exist for staging and
// tests.
type Deps struct {
	Lifecycle   *oauth2flow.Lifecycle
	Sessions    oauth2flow.SessionStore
	Credentials credentials.Store
	Log         logger.Sugared

	HTTPTimeout time.Duration
	Endpoint    oauth2.Endpoint
	APIBase     string
}

type Connector struct {
	p        profile
	oauthCfg *oauth2.Config
	lc       *oauth2flow.Lifecycle
	sessions oauth2flow.SessionStore
	creds    credentials.Store
	client   *http.Client
	log      logger.Sugared
	apiBase  string
}

func newConnector(p profile, oc config.OAuthClient, d Deps) *Connector {
	ep := d.Endpoint
	if ep.AuthURL == "" {
		ep = oauth2.Endpoint{AuthURL: DefaultAuthURL, TokenURL: DefaultTokenURL}
	}
	apiBase := d.APIBase
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	timeout := d.HTTPTimeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Connector{
		p: p,
		oauthCfg: &oauth2.Config{
			ClientID:     oc.ClientID,
			ClientSecret: oc.ClientSecret,
			RedirectURL:  oc.RedirectURI,
			Endpoint:     ep,
			Scopes:       p.scopes,
		},
		lc:       d.Lifecycle,
		sessions: d.Sessions,
		creds:    d.Credentials,
		client:   &http.Client{Timeout: timeout},
		log:      d.Log.Named(p.id),
		apiBase:  apiBase,
	}
}

func (c *Connector) Descriptor() connectors.Descriptor {
	return connectors.Descriptor{
		ID:                  c.p.id,
		DisplayName:         c.p.displayName,
		Scopes:              c.p.scopes,
		Resources:           c.p.resources,
		SupportingResources: c.p.supporting,
	}
}

func (c *Connector) Login(ctx context.Context, tenant string) (connectors.LoginResult, error) {
	if c.oauthCfg.ClientID == "" {
		return connectors.LoginResult{}, normalize.NewError(normalize.CodeConfigRequired, "OAuth client is not configured for this connector")
	}
	pkce := oauth2flow.NewPKCE()
	state := oauth2flow.NewState()
	if err := c.sessions.Begin(ctx, tenant, c.p.id, oauth2flow.Session{
		State:        state,
		CodeVerifier: pkce.Verifier,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		return connectors.LoginResult{}, err
	}
	authorizeURL := c.oauthCfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("audience", "api.atlassian.com"),
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("code_challenge", pkce.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", pkce.Method),
	)
	return connectors.LoginResult{AuthorizeURL: authorizeURL, State: state}, nil
}

func (c *Connector) Callback(ctx context.Context, tenant, code, state string) error {
	if code == "" {
		return normalize.NewError(normalize.CodeValidation, "missing authorization code")
	}
	sess, err := c.sessions.Consume(ctx, tenant, c.p.id, state)
	if err == oauth2flow.ErrInvalidState {
		return normalize.NewError(normalize.CodeAuthFailed, "state does not match a pending authorization")
	}
	if err != nil {
		return err
	}

	hctx := context.WithValue(ctx, oauth2.HTTPClient, c.client)
	tok, err := c.oauthCfg.Exchange(hctx, code,
		oauth2.SetAuthURLParam("code_verifier", sess.CodeVerifier))
	if err != nil {
		if rerr, ok := err.(*oauth2.RetrieveError); ok && rerr.Response != nil {
			c.log.Errorw("code exchange rejected", "tenant", tenant, "status", rerr.Response.StatusCode)
			return normalize.NewError(normalize.CodeAuthFailed, "vendor rejected the code exchange")
		}
		c.log.Errorw("code exchange failed", "tenant", tenant, "err", err.Error())
		return normalize.NewError(normalize.CodeUpstream, "vendor token endpoint unreachable")
	}

	extra, nerr := c.resolveSite(ctx, tok.AccessToken)
	if nerr != nil {
		return nerr
	}
	if err := c.lc.Persist(ctx, tenant, c.p.id, tok, extra); err != nil {
		return err
	}
	return nil
}

// resolveSite discovers the cloud id and site URL that every subsequent
// product API call is addressed by.
func (c *Connector) resolveSite(ctx context.Context, accessToken string) (map[string]string, error) {
	status, raw, header, err := c.doJSON(ctx, accessToken, http.MethodGet,
		c.apiBase+"/oauth/token/accessible-resources", nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, normalize.MapError(status, nil, header)
	}
	sites, _ := raw.([]any)
	if len(sites) == 0 {
		// Token granted but no accessible site; usable metadata is
		// missing until the user re-links with a site selected.
		return map[string]string{}, nil
	}
	first, _ := sites[0].(map[string]any)
	extra := map[string]string{}
	if id, _ := first["id"].(string); id != "" {
		extra[extraCloudID] = id
	}
	if u, _ := first["url"].(string); u != "" {
		extra[extraSiteURL] = u
	}
	return extra, nil
}

// connection returns the plaintext access token and stored site metadata,
// or a classified error when the tenant cannot call the vendor yet.
func (c *Connector) connection(ctx context.Context, tenant string) (token, cloudID, siteURL string, err error) {
	token, err = c.lc.EnsureAccessToken(ctx, tenant, c.p.id, c.oauthCfg)
	if err != nil {
		return "", "", "", err
	}
	if token == "" {
		return "", "", "", normalize.NewError(normalize.CodeAuthRequired, "connector is not linked for this tenant")
	}
	rec, ok, err := c.creds.Get(ctx, tenant, c.p.id)
	if err != nil {
		return "", "", "", err
	}
	if !ok || rec.Extra[extraCloudID] == "" {
		return "", "", "", normalize.NewError(normalize.CodeConfigRequired, "no Atlassian site is resolved for this tenant")
	}
	return token, rec.Extra[extraCloudID], rec.Extra[extraSiteURL], nil
}

func (c *Connector) Search(ctx context.Context, tenant, query, resource string, page, perPage int) ([]normalize.Item, error) {
	if !contains(c.p.resources, resource) {
		return nil, normalize.NewError(normalize.CodeValidation, fmt.Sprintf("unsupported resource %q", resource))
	}
	token, cloudID, siteURL, err := c.connection(ctx, tenant)
	if err != nil {
		return nil, err
	}
	u := c.p.searchPath(c.apiBase, cloudID) + "?" + c.p.searchQuery(query, page, perPage).Encode()
	status, raw, header, err := c.doJSON(ctx, token, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, normalize.MapError(status, nil, header)
	}
	return c.mapItems(raw, c.p.searchItems, c.p.searchRules, siteURL)
}

func (c *Connector) Create(ctx context.Context, tenant, resource string, payload map[string]any) (normalize.Item, error) {
	if !contains(c.p.resources, resource) {
		return normalize.Item{}, normalize.NewError(normalize.CodeValidation, fmt.Sprintf("unsupported resource %q", resource))
	}
	body, nerr := c.p.createBody(payload)
	if nerr != nil {
		return normalize.Item{}, nerr
	}
	token, cloudID, siteURL, err := c.connection(ctx, tenant)
	if err != nil {
		return normalize.Item{}, err
	}
	status, raw, header, err := c.doJSON(ctx, token, http.MethodPost, c.p.createPath(c.apiBase, cloudID), body)
	if err != nil {
		return normalize.Item{}, err
	}
	if status < 200 || status > 299 {
		return normalize.Item{}, normalize.MapError(status, nil, header)
	}
	id := lookupString(raw, c.p.createdID)
	if id == "" {
		return normalize.Item{}, normalize.NewError(normalize.CodeUpstream, "vendor create response is missing an id")
	}
	item := normalize.Item{ID: id, Title: c.p.createTitle(payload), Type: resource}
	if item.Title == "" {
		item.Title = id
	}
	if siteURL != "" {
		item.URL = normalize.StringPtr(c.p.itemURL(siteURL, id))
	}
	return item, nil
}

func (c *Connector) ListSupporting(ctx context.Context, tenant, resource string) ([]normalize.Item, error) {
	if !contains(c.p.supporting, resource) {
		return nil, normalize.NewError(normalize.CodeValidation, fmt.Sprintf("unsupported supporting resource %q", resource))
	}
	token, cloudID, _, err := c.connection(ctx, tenant)
	if err != nil {
		return nil, err
	}
	status, raw, header, err := c.doJSON(ctx, token, http.MethodGet, c.p.supportingPath(c.apiBase, cloudID, resource), nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, normalize.MapError(status, nil, header)
	}
	items, err := c.mapItems(raw, c.p.supportingItems, c.p.supportingRules(resource), "")
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Connector) Disconnect(ctx context.Context, tenant string) (bool, error) {
	existed, err := c.creds.Delete(ctx, tenant, c.p.id)
	if err != nil {
		return false, err
	}
	if err := c.sessions.Discard(ctx, tenant, c.p.id); err != nil {
		return existed, err
	}
	return existed, nil
}

// doJSON performs one authenticated vendor call. A single attempt, the
// caller's deadline, no retries.
func (c *Connector) doJSON(ctx context.Context, token, method, rawURL string, body any) (int, any, http.Header, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, nil, nil, err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, nil, normalize.NewError(normalize.CodeUpstream, "vendor unreachable")
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	var decoded any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp.StatusCode, decoded, resp.Header, nil
}

func (c *Connector) mapItems(raw any, arrayExpr string, rules normalize.ItemRules, siteURL string) ([]normalize.Item, error) {
	arr, err := jmespath.Search(arrayExpr, raw)
	if err != nil {
		return nil, normalize.NewError(normalize.CodeUpstream, "vendor response has an unexpected shape")
	}
	list, _ := arr.([]any)
	items := make([]normalize.Item, 0, len(list))
	for _, el := range list {
		item, err := normalize.MapItem(el, rules)
		if err != nil {
			c.log.Warnw("skipping vendor document without id")
			continue
		}
		if siteURL != "" && c.p.itemURL != nil {
			item.URL = normalize.StringPtr(c.p.itemURL(siteURL, item.ID))
		}
		items = append(items, item)
	}
	return items, nil
}

func lookupString(raw any, expr string) string {
	v, err := jmespath.Search(expr, raw)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
