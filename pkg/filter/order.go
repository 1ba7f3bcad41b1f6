package filter

import (
	"context"
	"strings"

	"github.com/platinummonkey/gantry/pkg/query"
)

// OrderFilter sorts collections: order[name]=desc, order[relatedDummy.name]=asc.
//
// A binding option sets a default direction used for empty values and a
// null placement, e.g. "desc,nulls_largest". Orderings apply in the order
// the request sends them, also across order filters declared separately on
// the same parameter name, which a Set merges into one.
type OrderFilter struct {
	cfg Config
}

// NewOrderFilter creates an order filter
func NewOrderFilter(cfg Config) (Filter, error) {
	return &OrderFilter{cfg: cfg}, nil
}

type orderOption struct {
	direction string
	nulls     query.Nulls
}

func parseOrderOption(option string) orderOption {
	var out orderOption
	for _, part := range strings.Split(option, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		switch part {
		case "asc", "desc":
			out.direction = part
		case string(query.NullsSmallest), string(query.NullsLargest),
			string(query.NullsAlwaysFirst), string(query.NullsAlwaysLast):
			out.nulls = query.Nulls(part)
		}
	}
	return out
}

// Apply implements Filter
func (f *OrderFilter) Apply(ctx context.Context, b *query.Builder, params Params) error {
	seenKeys := make(map[string]bool)
	for _, bd := range f.cfg.Bindings {
		if seenKeys[bd.Key] {
			continue
		}
		seenKeys[bd.Key] = true

		param, ok := params.Get(bd.Key)
		if !ok {
			continue
		}
		if bd.Sub == "" {
			if raw, sent := param.First(); sent {
				if err := f.order(ctx, b, bd, raw); err != nil {
					return err
				}
			}
			continue
		}
		for _, sub := range param.SubOrder {
			match, found := f.binding(bd.Key, sub)
			if !found {
				continue
			}
			raw, _ := param.SubValue(sub)
			if err := f.order(ctx, b, match, raw); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *OrderFilter) sharesKey(other *OrderFilter) bool {
	for _, a := range f.cfg.Bindings {
		for _, b := range other.cfg.Bindings {
			if a.Key == b.Key {
				return true
			}
		}
	}
	return false
}

func (f *OrderFilter) binding(key, sub string) (Binding, bool) {
	for _, bd := range f.cfg.Bindings {
		if bd.Key == key && bd.Sub == sub {
			return bd, true
		}
	}
	return Binding{}, false
}

func (f *OrderFilter) order(ctx context.Context, b *query.Builder, bd Binding, raw string) error {
	option := parseOrderOption(bd.Option)
	direction := strings.ToLower(strings.TrimSpace(raw))
	if direction == "" {
		direction = option.direction
	}
	if direction != "asc" && direction != "desc" {
		ignored(ctx, "order", bd.Variable(), raw)
		return nil
	}
	col, err := b.Resolve(bd.Property)
	if err != nil {
		return err
	}
	b.OrderBy(col.Expr, direction, option.nulls)
	return nil
}

// Describe implements Filter
func (f *OrderFilter) Describe() []Description {
	out := make([]Description, 0, len(f.cfg.Bindings))
	for _, bd := range f.cfg.Bindings {
		out = append(out, Description{Variable: bd.Variable(), Property: bd.Property, Type: "string", Required: bd.Required})
	}
	return out
}
