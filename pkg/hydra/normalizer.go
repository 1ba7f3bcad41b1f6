package hydra

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/platinummonkey/gantry/pkg/metadata"
)

// DateLayout is how dates and datetimes are written
const DateLayout = "2006-01-02T15:04:05-07:00"

// Document is a JSON-LD object
type Document map[string]any

// Loader fetches related items for embedding. storage.Store satisfies it.
type Loader interface {
	Get(ctx context.Context, res *metadata.Resource, id any) (metadata.Item, error)
}

// Normalizer converts items into JSON-LD documents
type Normalizer struct {
	reg    *metadata.Registry
	loader Loader
}

// NewNormalizer creates a normalizer. loader may be nil, in which case
// relations are always written as IRIs.
func NewNormalizer(reg *metadata.Registry, loader Loader) *Normalizer {
	return &Normalizer{reg: reg, loader: loader}
}

// ContextIRI returns the @context of a resource
func ContextIRI(res *metadata.Resource) string {
	return "/contexts/" + res.Name
}

// Item renders a top level item document
func (n *Normalizer) Item(ctx context.Context, res *metadata.Resource, item metadata.Item, groups []string) (Document, error) {
	doc, err := n.member(ctx, res, item, groups, map[string]bool{})
	if err != nil {
		return nil, err
	}
	doc["@context"] = ContextIRI(n.concrete(res, item))
	return doc, nil
}

// concrete returns the class of an item read through a hierarchy
func (n *Normalizer) concrete(res *metadata.Resource, item metadata.Item) *metadata.Resource {
	if !res.IsHierarchy() {
		return res
	}
	discr, _ := item[metadata.DiscriminatorKey].(string)
	return res.Root().Concrete(discr)
}

// member renders an item without @context, as found in hydra:member
func (n *Normalizer) member(ctx context.Context, res *metadata.Resource, item metadata.Item, groups []string, visited map[string]bool) (Document, error) {
	concrete := n.concrete(res, item)
	iri := n.reg.IRI(concrete, concrete.IdentifierValue(item))
	visited[iri] = true
	defer delete(visited, iri)

	doc := Document{
		"@id":   iri,
		"@type": concrete.Name,
	}
	for _, f := range concrete.ReadableFields(groups) {
		value, present := item[f.Name]
		if !present {
			continue
		}
		switch {
		case f.Relation != nil:
			rendered, err := n.relation(ctx, f, value, groups, visited)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", concrete.Name, f.Name, err)
			}
			doc[f.Name] = rendered
		case f.Type == metadata.TypeEmbedded:
			doc[f.Name] = embedded(f, value)
		default:
			doc[f.Name] = Scalar(value)
		}
	}
	return doc, nil
}

// Scalar converts a stored value into its JSON representation
func Scalar(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.Format(DateLayout)
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.Format(DateLayout)
	case decimal.Decimal:
		return v.String()
	case decimal.NullDecimal:
		if !v.Valid {
			return nil
		}
		return v.Decimal.String()
	default:
		return v
	}
}

func embedded(f *metadata.Field, value any) any {
	nested, ok := value.(metadata.Item)
	if !ok {
		return nil
	}
	out := make(Document, len(f.Embedded))
	for _, sub := range f.Embedded {
		out[sub.Name] = Scalar(nested[sub.Name])
	}
	return out
}

func (n *Normalizer) relation(ctx context.Context, f *metadata.Field, value any, groups []string, visited map[string]bool) (any, error) {
	target := f.Relation.TargetResource()
	if target == nil {
		return nil, fmt.Errorf("relation to %s is not resolved", f.Relation.Target)
	}
	embed := n.loader != nil && sharesGroups(target, groups)

	one := func(id any) (any, error) {
		iri := n.reg.IRI(target, id)
		if !embed || visited[iri] {
			return iri, nil
		}
		related, err := n.loader.Get(ctx, target, id)
		if err != nil {
			return nil, err
		}
		return n.member(ctx, target, related, groups, visited)
	}

	if f.Relation.IsToMany() {
		ids, _ := value.([]any)
		out := make([]any, 0, len(ids))
		for _, id := range ids {
			rendered, err := one(id)
			if err != nil {
				return nil, err
			}
			out = append(out, rendered)
		}
		return out, nil
	}
	if value == nil {
		return nil, nil
	}
	return one(value)
}

// sharesGroups reports whether a related resource exposes properties in
// one of the requested groups
func sharesGroups(target *metadata.Resource, groups []string) bool {
	if len(groups) == 0 {
		return false
	}
	for _, f := range target.Fields {
		if len(f.Groups) > 0 && f.InGroups(groups) {
			return true
		}
	}
	return false
}
