// pkg/connectors/atlassian/confluence.go
package atlassian

import (
	"fmt"
	"net/url"
	"strconv"

	"connectorhub/pkg/config"
	"connectorhub/pkg/connectors/normalize"
)

// NewConfluence builds the Confluence Cloud connector: CQL search over
// pages, page creation, and space listing as the supporting resource.
func NewConfluence(oc config.OAuthClient, d Deps) *Connector {
	return newConnector(confluenceProfile(), oc, d)
}

func confluenceProfile() profile {
	return profile{
		id:          "confluence",
		displayName: "Confluence",
		scopes: []string{
			"read:confluence-content.all",
			"write:confluence-content",
			"read:confluence-space.summary",
			"offline_access",
		},
		resources:  []string{"page"},
		supporting: []string{"space"},

		searchPath: func(apiBase, cloudID string) string {
			return fmt.Sprintf("%s/ex/confluence/%s/wiki/rest/api/search", apiBase, cloudID)
		},
		searchQuery: func(q string, page, perPage int) url.Values {
			v := url.Values{}
			v.Set("cql", `text ~ "`+quoteJQL(q)+`" AND type = page`)
			v.Set("start", strconv.Itoa((page-1)*perPage))
			v.Set("limit", strconv.Itoa(perPage))
			return v
		},
		searchItems: "results",
		searchRules: normalize.ItemRules{
			ID:       "content.id",
			Title:    "content.title",
			Subtitle: "resultGlobalContainer.title",
			Type:     "page",
		},
		itemURL: func(siteURL, id string) string {
			return siteURL + "/wiki/pages/viewpage.action?pageId=" + id
		},

		createPath: func(apiBase, cloudID string) string {
			return fmt.Sprintf("%s/ex/confluence/%s/wiki/rest/api/content", apiBase, cloudID)
		},
		createBody:  confluenceCreateBody,
		createTitle: func(payload map[string]any) string { s, _ := payload["title"].(string); return s },
		createdID:   "id",

		supportingPath: func(apiBase, cloudID, resource string) string {
			return fmt.Sprintf("%s/ex/confluence/%s/wiki/rest/api/space?limit=50", apiBase, cloudID)
		},
		supportingItems: "results",
		supportingRules: func(resource string) normalize.ItemRules {
			return normalize.ItemRules{ID: "key", Title: "name", Type: "space"}
		},
	}
}

func confluenceCreateBody(payload map[string]any) (map[string]any, *normalize.Error) {
	spaceKey, _ := payload["space_key"].(string)
	title, _ := payload["title"].(string)
	if spaceKey == "" || title == "" {
		return nil, normalize.NewError(normalize.CodeValidation, "page creation requires space_key and title")
	}
	content, _ := payload["content"].(string)
	return map[string]any{
		"type":  "page",
		"title": title,
		"space": map[string]any{"key": spaceKey},
		"body": map[string]any{
			"storage": map[string]any{"value": content, "representation": "storage"},
		},
	}, nil
}
