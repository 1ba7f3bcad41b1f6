package filter

import (
	"context"
	"fmt"

	"github.com/platinummonkey/gantry/pkg/query"
)

// OrFilter applies an inner filter once per sent value and ORs the
// results, so name[]=a&name[]=b matches either value. The inner filter type
// is named by the "filter" argument and defaults to exact.
type OrFilter struct {
	cfg   Config
	inner Filter
}

// NewOrFilter creates an OR filter
func NewOrFilter(cfg Config) (Filter, error) {
	innerType := cfg.Arg("filter", "exact")
	if innerType == "or" {
		return nil, fmt.Errorf("or filter cannot wrap itself")
	}
	t, ok := Lookup(innerType)
	if !ok {
		return nil, fmt.Errorf("or filter wraps %s: %w", innerType, ErrUnknownFilter)
	}
	inner, err := t.New(cfg)
	if err != nil {
		return nil, err
	}
	return &OrFilter{cfg: cfg, inner: inner}, nil
}

// Apply implements Filter
func (f *OrFilter) Apply(ctx context.Context, b *query.Builder, params Params) error {
	return b.WithinOr(func() error {
		for _, bd := range f.cfg.Bindings {
			param, ok := bd.Param(params)
			if !ok {
				continue
			}
			for _, value := range param.Values {
				one := &Param{Values: []string{value}}
				if err := f.inner.Apply(ctx, b, bindingParams(bd, one)); err != nil {
					return err
				}
			}
			for _, sub := range param.SubOrder {
				for _, value := range param.Sub[sub] {
					one := &Param{Sub: map[string][]string{sub: {value}}, SubOrder: []string{sub}}
					if err := f.inner.Apply(ctx, b, bindingParams(bd, one)); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
}

// bindingParams rebuilds request params so that bd reads param
func bindingParams(bd Binding, param *Param) Params {
	if bd.Sub == "" {
		return single(bd.Key, param)
	}
	outer := &Param{Sub: map[string][]string{bd.Sub: param.Values}, SubOrder: []string{bd.Sub}}
	return single(bd.Key, outer)
}

// Describe implements Filter
func (f *OrFilter) Describe() []Description {
	return f.inner.Describe()
}
