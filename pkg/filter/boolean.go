package filter

import (
	"context"

	"github.com/platinummonkey/gantry/pkg/query"
)

// BooleanFilter matches boolean properties: active=true, active=0
type BooleanFilter struct {
	cfg Config
}

// NewBooleanFilter creates a boolean filter
func NewBooleanFilter(cfg Config) (Filter, error) {
	return &BooleanFilter{cfg: cfg}, nil
}

// Apply implements Filter
func (f *BooleanFilter) Apply(ctx context.Context, b *query.Builder, params Params) error {
	for _, bd := range f.cfg.Bindings {
		param, ok := bd.Param(params)
		if !ok {
			continue
		}
		raw, _ := param.First()
		value, valid := ParseBool(raw)
		if !valid {
			ignored(ctx, "boolean", bd.Variable(), raw)
			continue
		}
		col, err := b.Resolve(bd.Property)
		if err != nil {
			return err
		}
		b.Where(col.Expr + " = " + b.Arg(value))
	}
	return nil
}

// Describe implements Filter
func (f *BooleanFilter) Describe() []Description {
	out := make([]Description, 0, len(f.cfg.Bindings))
	for _, bd := range f.cfg.Bindings {
		out = append(out, Description{Variable: bd.Variable(), Property: bd.Property, Type: "bool", Required: bd.Required})
	}
	return out
}
