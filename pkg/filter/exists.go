package filter

import (
	"context"

	"github.com/platinummonkey/gantry/pkg/query"
)

// ExistsFilter matches on the presence of a value: exists[description]=true.
// Collection associations are tested with a subquery.
type ExistsFilter struct {
	cfg Config
}

// NewExistsFilter creates an exists filter
func NewExistsFilter(cfg Config) (Filter, error) {
	return &ExistsFilter{cfg: cfg}, nil
}

// Apply implements Filter
func (f *ExistsFilter) Apply(ctx context.Context, b *query.Builder, params Params) error {
	for _, bd := range f.cfg.Bindings {
		param, ok := bd.Param(params)
		if !ok {
			continue
		}
		raw, _ := param.First()
		exists, valid := ParseBool(raw)
		if !valid {
			ignored(ctx, "exists", bd.Variable(), raw)
			continue
		}

		field := fieldAt(f.cfg.Resource, bd.Property)
		if field != nil && field.Relation != nil && !field.Relation.IsOwningToOne() {
			condition, err := b.ExistsCondition(bd.Property)
			if err != nil {
				return err
			}
			if !exists {
				condition = "NOT " + condition
			}
			b.Where(condition)
			continue
		}

		col, err := b.Resolve(bd.Property)
		if err != nil {
			return err
		}
		if exists {
			b.Where(col.Expr + " IS NOT NULL")
		} else {
			b.Where(col.Expr + " IS NULL")
		}
	}
	return nil
}

// Describe implements Filter
func (f *ExistsFilter) Describe() []Description {
	out := make([]Description, 0, len(f.cfg.Bindings))
	for _, bd := range f.cfg.Bindings {
		out = append(out, Description{Variable: bd.Variable(), Property: bd.Property, Type: "bool", Required: bd.Required})
	}
	return out
}
