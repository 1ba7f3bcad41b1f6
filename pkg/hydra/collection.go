package hydra

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/platinummonkey/gantry/pkg/filter"
	"github.com/platinummonkey/gantry/pkg/metadata"
)

// Page describes one page of a collection response
type Page struct {
	Resource *metadata.Resource
	Members  []metadata.Item
	Total    int64
	Groups   []string

	// Path is the collection path that was requested, e.g. /chicken_coops/2/chickens
	Path string
	// Query is the request query; pagination keys are rewritten for view links
	Query url.Values

	Paginated    bool
	CurrentPage  int
	ItemsPerPage int
	PageParam    string

	// Search lists the filter variables advertised in hydra:search
	Search []filter.Description
}

// LastPage returns the number of the last page, at least 1
func (p Page) LastPage() int {
	if !p.Paginated || p.ItemsPerPage <= 0 || p.Total == 0 {
		return 1
	}
	last := int((p.Total + int64(p.ItemsPerPage) - 1) / int64(p.ItemsPerPage))
	if last < 1 {
		return 1
	}
	return last
}

// Collection renders a hydra:Collection document
func (n *Normalizer) Collection(ctx context.Context, p Page) (Document, error) {
	members := make([]any, 0, len(p.Members))
	for _, item := range p.Members {
		doc, err := n.member(ctx, p.Resource, item, p.Groups, map[string]bool{})
		if err != nil {
			return nil, err
		}
		members = append(members, doc)
	}

	doc := Document{
		"@context":         ContextIRI(p.Resource),
		"@id":              p.Path,
		"@type":            "hydra:Collection",
		"hydra:totalItems": p.Total,
		"hydra:member":     members,
	}
	if view := p.view(); view != nil {
		doc["hydra:view"] = view
	}
	if len(p.Search) > 0 {
		doc["hydra:search"] = SearchTemplate(p.Path, p.Search)
	}
	return doc, nil
}

// view renders hydra:view. It is present when the collection spans
// several pages or the request carried a query.
func (p Page) view() Document {
	last := p.LastPage()
	multiPage := p.Paginated && last > 1
	if !multiPage && len(p.Query) == 0 {
		return nil
	}

	current := p.CurrentPage
	if current < 1 {
		current = 1
	}
	if !multiPage {
		return Document{
			"@id":   p.link(0),
			"@type": "hydra:PartialCollectionView",
		}
	}

	view := Document{
		"@id":         p.link(current),
		"@type":       "hydra:PartialCollectionView",
		"hydra:first": p.link(1),
		"hydra:last":  p.link(last),
	}
	if current > 1 {
		view["hydra:previous"] = p.link(current - 1)
	}
	if current < last {
		view["hydra:next"] = p.link(current + 1)
	}
	return view
}

// link renders the collection path with the request query and, when page
// is positive, the given page number
func (p Page) link(page int) string {
	values := url.Values{}
	for k, v := range p.Query {
		values[k] = append([]string(nil), v...)
	}
	param := p.PageParam
	if param == "" {
		param = "page"
	}
	if page > 0 {
		values.Set(param, strconv.Itoa(page))
	}
	if len(values) == 0 {
		return p.Path
	}
	return p.Path + "?" + values.Encode()
}

// SearchTemplate renders the hydra:search IRI template of a collection
func SearchTemplate(path string, descriptions []filter.Description) Document {
	variables := make([]string, 0, len(descriptions))
	mappings := make([]any, 0, len(descriptions))
	for _, d := range descriptions {
		variables = append(variables, d.Variable)
		mappings = append(mappings, Document{
			"@type":    "IriTemplateMapping",
			"variable": d.Variable,
			"property": d.Property,
			"required": d.Required,
		})
	}
	return Document{
		"@type":                        "hydra:IriTemplate",
		"hydra:template":               path + "{?" + strings.Join(variables, ",") + "}",
		"hydra:variableRepresentation": "BasicRepresentation",
		"hydra:mapping":                mappings,
	}
}
