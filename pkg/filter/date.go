package filter

import (
	"context"

	"github.com/platinummonkey/gantry/pkg/query"
)

// Null management modes of the date filter
const (
	ExcludeNull               = "exclude_null"
	IncludeNullBefore         = "include_null_before"
	IncludeNullAfter          = "include_null_after"
	IncludeNullBeforeAndAfter = "include_null_before_and_after"
)

var dateOperators = []struct {
	name     string
	operator string
	before   bool
}{
	{"before", "<=", true},
	{"strictly_before", "<", true},
	{"after", ">=", false},
	{"strictly_after", ">", false},
}

// DateFilter matches dates against bounds: createdAt[after]=2015-04-05.
// The binding option picks the null management mode.
type DateFilter struct {
	cfg Config
}

// NewDateFilter creates a date filter
func NewDateFilter(cfg Config) (Filter, error) {
	return &DateFilter{cfg: cfg}, nil
}

// Apply implements Filter
func (f *DateFilter) Apply(ctx context.Context, b *query.Builder, params Params) error {
	for _, bd := range f.cfg.Bindings {
		param, ok := bd.Param(params)
		if !ok {
			continue
		}
		for _, op := range dateOperators {
			raw, sent := param.SubValue(op.name)
			if !sent {
				continue
			}
			value, valid := ParseDate(raw)
			if !valid {
				ignored(ctx, "date", bd.Variable()+"["+op.name+"]", raw)
				continue
			}
			col, err := b.Resolve(bd.Property)
			if err != nil {
				return err
			}

			condition := col.Expr + " " + op.operator + " " + b.Arg(b.Dialect().BindTime(col.Field.Type, value))
			switch {
			case bd.Option == ExcludeNull:
				condition = "(" + col.Expr + " IS NOT NULL AND " + condition + ")"
			case includesNull(bd.Option, op.before):
				condition = "(" + condition + " OR " + col.Expr + " IS NULL)"
			}
			b.Where(condition)
		}
	}
	return nil
}

func includesNull(mode string, before bool) bool {
	switch mode {
	case IncludeNullBeforeAndAfter:
		return true
	case IncludeNullBefore:
		return before
	case IncludeNullAfter:
		return !before
	default:
		return false
	}
}

// Describe implements Filter
func (f *DateFilter) Describe() []Description {
	out := make([]Description, 0, len(f.cfg.Bindings)*len(dateOperators))
	for _, bd := range f.cfg.Bindings {
		for _, op := range dateOperators {
			out = append(out, Description{
				Variable: bd.Variable() + "[" + op.name + "]",
				Property: bd.Property,
				Type:     "DateTimeInterface",
				Required: bd.Required,
			})
		}
	}
	return out
}
