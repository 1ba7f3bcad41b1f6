package filter

import (
	"context"
	"strings"

	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/query"
)

var rangeOperators = []struct {
	name     string
	operator string
}{
	{"between", ""},
	{"gt", ">"},
	{"gte", ">="},
	{"lt", "<"},
	{"lte", "<="},
}

// RangeFilter bounds numeric properties: price[gt]=10, price[between]=10..20
type RangeFilter struct {
	cfg Config
}

// NewRangeFilter creates a range filter
func NewRangeFilter(cfg Config) (Filter, error) {
	return &RangeFilter{cfg: cfg}, nil
}

// Apply implements Filter
func (f *RangeFilter) Apply(ctx context.Context, b *query.Builder, params Params) error {
	for _, bd := range f.cfg.Bindings {
		param, ok := bd.Param(params)
		if !ok {
			continue
		}
		for _, op := range rangeOperators {
			raw, sent := param.SubValue(op.name)
			if !sent {
				continue
			}
			if err := f.applyOperator(ctx, b, bd, op.name, op.operator, raw); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *RangeFilter) applyOperator(ctx context.Context, b *query.Builder, bd Binding, name, operator, raw string) error {
	variable := bd.Variable() + "[" + name + "]"

	if name == "between" {
		parts := strings.Split(raw, "..")
		if len(parts) != 2 {
			ignored(ctx, "range", variable, raw)
			return nil
		}
		low, lowOK := ParseNumber(parts[0])
		high, highOK := ParseNumber(parts[1])
		if !lowOK || !highOK {
			ignored(ctx, "range", variable, raw)
			return nil
		}
		col, err := b.Resolve(bd.Property)
		if err != nil {
			return err
		}
		if low.Equal(high) {
			b.Where(col.Expr + " = " + numberArg(b, col.Field, low))
			return nil
		}
		lowArg := numberArg(b, col.Field, low)
		highArg := numberArg(b, col.Field, high)
		b.Where(col.Expr + " BETWEEN " + lowArg + " AND " + highArg)
		return nil
	}

	value, valid := ParseNumber(raw)
	if !valid {
		ignored(ctx, "range", variable, raw)
		return nil
	}
	col, err := b.Resolve(bd.Property)
	if err != nil {
		return err
	}
	b.Where(col.Expr + " " + operator + " " + numberArg(b, col.Field, value))
	return nil
}

// Describe implements Filter
func (f *RangeFilter) Describe() []Description {
	out := make([]Description, 0, len(f.cfg.Bindings)*len(rangeOperators))
	for _, bd := range f.cfg.Bindings {
		for _, op := range rangeOperators {
			out = append(out, Description{
				Variable: bd.Variable() + "[" + op.name + "]",
				Property: bd.Property,
				Type:     "string",
				Required: bd.Required,
			})
		}
	}
	return out
}

// NumericFilter matches numeric properties exactly: quantity=10,
// quantity[]=10&quantity[]=20
type NumericFilter struct {
	cfg Config
}

// NewNumericFilter creates a numeric filter
func NewNumericFilter(cfg Config) (Filter, error) {
	return &NumericFilter{cfg: cfg}, nil
}

// Apply implements Filter
func (f *NumericFilter) Apply(ctx context.Context, b *query.Builder, params Params) error {
	for _, bd := range f.cfg.Bindings {
		param, ok := bd.Param(params)
		if !ok {
			continue
		}
		col, err := b.Resolve(bd.Property)
		if err != nil {
			return err
		}

		var placeholders []string
		for _, raw := range param.Values {
			value, valid := ParseNumber(raw)
			if !valid || (col.Field.Type == metadata.TypeInt && !value.IsInteger()) {
				ignored(ctx, "numeric", bd.Variable(), raw)
				continue
			}
			placeholders = append(placeholders, numberArg(b, col.Field, value))
		}
		switch len(placeholders) {
		case 0:
		case 1:
			b.Where(col.Expr + " = " + placeholders[0])
		default:
			b.Where(col.Expr + " IN (" + strings.Join(placeholders, ", ") + ")")
		}
	}
	return nil
}

// Describe implements Filter
func (f *NumericFilter) Describe() []Description {
	out := make([]Description, 0, len(f.cfg.Bindings)*2)
	for _, bd := range f.cfg.Bindings {
		typ := typeName(fieldAt(f.cfg.Resource, bd.Property))
		out = append(out,
			Description{Variable: bd.Variable(), Property: bd.Property, Type: typ, Required: bd.Required},
			Description{Variable: bd.Variable() + "[]", Property: bd.Property, Type: typ, Required: bd.Required, IsCollection: true},
		)
	}
	return out
}
