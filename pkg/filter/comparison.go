package filter

import (
	"context"

	"github.com/platinummonkey/gantry/pkg/query"
)

var comparisonOperators = []struct {
	name     string
	operator string
}{
	{"eq", "="},
	{"ne", "<>"},
	{"gt", ">"},
	{"gte", ">="},
	{"lt", "<"},
	{"lte", "<="},
}

// ComparisonFilter compares scalar properties: price[gte]=10,
// createdAt[lt]=2020-01-01, name[ne]=foo
type ComparisonFilter struct {
	cfg Config
}

// NewComparisonFilter creates a comparison filter
func NewComparisonFilter(cfg Config) (Filter, error) {
	return &ComparisonFilter{cfg: cfg}, nil
}

// Apply implements Filter
func (f *ComparisonFilter) Apply(ctx context.Context, b *query.Builder, params Params) error {
	for _, bd := range f.cfg.Bindings {
		param, ok := bd.Param(params)
		if !ok {
			continue
		}
		for _, op := range comparisonOperators {
			raw, sent := param.SubValue(op.name)
			if !sent {
				continue
			}
			col, err := b.Resolve(bd.Property)
			if err != nil {
				return err
			}
			placeholder, valid := scalarArg(b, col.Field, raw)
			if !valid {
				ignored(ctx, "comparison", bd.Variable()+"["+op.name+"]", raw)
				continue
			}
			b.Where(col.Expr + " " + op.operator + " " + placeholder)
		}
	}
	return nil
}

// Describe implements Filter
func (f *ComparisonFilter) Describe() []Description {
	out := make([]Description, 0, len(f.cfg.Bindings)*len(comparisonOperators))
	for _, bd := range f.cfg.Bindings {
		typ := typeName(fieldAt(f.cfg.Resource, bd.Property))
		for _, op := range comparisonOperators {
			out = append(out, Description{
				Variable: bd.Variable() + "[" + op.name + "]",
				Property: bd.Property,
				Type:     typ,
				Required: bd.Required,
			})
		}
	}
	return out
}
