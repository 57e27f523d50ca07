// pkg/connectors/normalize/rules.go
package normalize

import (
	"errors"
	"strconv"

	"github.com/jmespath/go-jmespath"
)

// ItemRules declares where a connector finds the unified fields inside a
// raw vendor document. ID and Title are jmespath expressions; Subtitle is
// optional; Type is a literal label.
type ItemRules struct {
	ID       string
	Title    string
	Subtitle string
	Type     string
}

var ErrNoID = errors.New("normalize: vendor document has no id")

// MapItem extracts a unified Item from decoded vendor JSON. It is pure:
// no I/O, no mutation of raw. A missing title falls back to the id; a
// missing id is an error the caller classifies.
func MapItem(raw any, rules ItemRules) (Item, error) {
	id := lookupString(raw, rules.ID)
	if id == "" {
		return Item{}, ErrNoID
	}
	title := lookupString(raw, rules.Title)
	if title == "" {
		title = id
	}
	item := Item{ID: id, Title: title, Type: rules.Type}
	if rules.Subtitle != "" {
		if sub := lookupString(raw, rules.Subtitle); sub != "" {
			item.Subtitle = StringPtr(sub)
		}
	}
	return item, nil
}

func lookupString(raw any, expr string) string {
	if expr == "" {
		return ""
	}
	v, err := jmespath.Search(expr, raw)
	if err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}
