// pkg/connectors/atlassian/jira.go
package atlassian

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"connectorhub/pkg/config"
	"connectorhub/pkg/connectors/normalize"
)

// NewJira builds the Jira Cloud connector: JQL search over issues,
// issue creation, and project listing as the supporting resource.
func NewJira(oc config.OAuthClient, d Deps) *Connector {
	return newConnector(jiraProfile(), oc, d)
}

func jiraProfile() profile {
	return profile{
		id:          "jira",
		displayName: "Jira",
		scopes:      []string{"read:jira-user", "read:jira-work", "write:jira-work", "offline_access"},
		resources:   []string{"issue"},
		supporting:  []string{"project"},

		searchPath: func(apiBase, cloudID string) string {
			return fmt.Sprintf("%s/ex/jira/%s/rest/api/3/search", apiBase, cloudID)
		},
		searchQuery: func(q string, page, perPage int) url.Values {
			v := url.Values{}
			v.Set("jql", `text ~ "`+quoteJQL(q)+`" ORDER BY updated DESC`)
			v.Set("startAt", strconv.Itoa((page-1)*perPage))
			v.Set("maxResults", strconv.Itoa(perPage))
			v.Set("fields", "summary,status")
			return v
		},
		searchItems: "issues",
		searchRules: normalize.ItemRules{
			ID:       "key",
			Title:    "fields.summary",
			Subtitle: "fields.status.name",
			Type:     "issue",
		},
		itemURL: func(siteURL, id string) string {
			return siteURL + "/browse/" + id
		},

		createPath: func(apiBase, cloudID string) string {
			return fmt.Sprintf("%s/ex/jira/%s/rest/api/3/issue", apiBase, cloudID)
		},
		createBody:  jiraCreateBody,
		createTitle: func(payload map[string]any) string { s, _ := payload["summary"].(string); return s },
		createdID:   "key",

		supportingPath: func(apiBase, cloudID, resource string) string {
			return fmt.Sprintf("%s/ex/jira/%s/rest/api/3/project/search", apiBase, cloudID)
		},
		supportingItems: "values",
		supportingRules: func(resource string) normalize.ItemRules {
			return normalize.ItemRules{ID: "key", Title: "name", Type: "project"}
		},
	}
}

func jiraCreateBody(payload map[string]any) (map[string]any, *normalize.Error) {
	projectKey, _ := payload["project_key"].(string)
	summary, _ := payload["summary"].(string)
	if projectKey == "" || summary == "" {
		return nil, normalize.NewError(normalize.CodeValidation, "issue creation requires project_key and summary")
	}
	issueType, _ := payload["issue_type"].(string)
	if issueType == "" {
		issueType = "Task"
	}
	fields := map[string]any{
		"project":   map[string]any{"key": projectKey},
		"summary":   summary,
		"issuetype": map[string]any{"name": issueType},
	}
	if desc, _ := payload["description"].(string); desc != "" {
		// Jira v3 takes Atlassian Document Format for descriptions.
		fields["description"] = map[string]any{
			"type":    "doc",
			"version": 1,
			"content": []any{map[string]any{
				"type":    "paragraph",
				"content": []any{map[string]any{"type": "text", "text": desc}},
			}},
		}
	}
	return map[string]any{"fields": fields}, nil
}

// quoteJQL strips characters that would terminate the quoted JQL term.
func quoteJQL(q string) string {
	return strings.NewReplacer(`"`, " ", `\`, " ").Replace(q)
}
