package filter

import (
	"context"
	"strings"

	"github.com/platinummonkey/gantry/pkg/query"
)

// Search strategies. Each has a case insensitive variant prefixed with "i".
const (
	StrategyExact     = "exact"
	StrategyPartial   = "partial"
	StrategyStart     = "start"
	StrategyEnd       = "end"
	StrategyWordStart = "word_start"
)

// SearchFilter matches properties by strategy: name=foo, name[]=a&name[]=b.
// Several values are ORed. Relations and identifiers accept IRIs or raw
// identifiers; a value referencing something else disables the filter.
type SearchFilter struct {
	cfg  Config
	name string
	// forced overrides the per binding strategy
	forced string
}

// NewSearchFilter creates a search filter
func NewSearchFilter(cfg Config) (Filter, error) {
	return &SearchFilter{cfg: cfg, name: "search"}, nil
}

// ExactFilter matches parameter values exactly
type ExactFilter struct {
	*SearchFilter
}

// NewExactFilter creates an exact filter
func NewExactFilter(cfg Config) (Filter, error) {
	return &ExactFilter{&SearchFilter{cfg: cfg, name: "exact", forced: StrategyExact}}, nil
}

// PartialSearchFilter matches text containing the parameter value,
// ignoring case
type PartialSearchFilter struct {
	*SearchFilter
}

// NewPartialSearchFilter creates a partial search filter
func NewPartialSearchFilter(cfg Config) (Filter, error) {
	return &PartialSearchFilter{&SearchFilter{cfg: cfg, name: "partial", forced: "i" + StrategyPartial}}, nil
}

func (f *SearchFilter) strategy(bd Binding) string {
	if f.forced != "" {
		return f.forced
	}
	if bd.Option == "" {
		return StrategyExact
	}
	return strings.ToLower(bd.Option)
}

// Apply implements Filter
func (f *SearchFilter) Apply(ctx context.Context, b *query.Builder, params Params) error {
	for _, bd := range f.cfg.Bindings {
		param, ok := bd.Param(params)
		if !ok || len(param.Values) == 0 {
			continue
		}
		if err := f.applyBinding(ctx, b, bd, param.Values); err != nil {
			return err
		}
	}
	return nil
}

func (f *SearchFilter) applyBinding(ctx context.Context, b *query.Builder, bd Binding, values []string) error {
	owner, field := lookupPath(f.cfg.Resource, bd.Property)
	if field == nil {
		return nil
	}

	if field.Relation != nil || isIdentifier(owner, field) {
		target := owner
		if field.Relation != nil {
			target = field.Relation.TargetResource()
		}
		ids, valid := relationIDs(f.cfg.Registry, target, values)
		if !valid {
			ignored(ctx, f.name, bd.Variable(), strings.Join(values, ","))
			return nil
		}
		col, err := b.Resolve(bd.Property)
		if err != nil {
			return err
		}
		b.Where(inCondition(b, col.Expr, ids))
		return nil
	}

	col, err := b.Resolve(bd.Property)
	if err != nil {
		return err
	}

	strategy := f.strategy(bd)
	caseInsensitive := strings.HasPrefix(strategy, "i")
	strategy = strings.TrimPrefix(strategy, "i")

	if !field.Type.IsTextual() {
		var placeholders []string
		for _, raw := range values {
			placeholder, valid := scalarArg(b, field, raw)
			if !valid {
				ignored(ctx, f.name, bd.Variable(), raw)
				continue
			}
			placeholders = append(placeholders, placeholder)
		}
		if len(placeholders) > 0 {
			b.Where(inPlaceholders(col.Expr, placeholders))
		}
		return nil
	}

	if strategy == StrategyExact && !caseInsensitive {
		ids := make([]any, len(values))
		for i, v := range values {
			ids[i] = v
		}
		b.Where(inCondition(b, col.Expr, ids))
		return nil
	}

	conditions := make([]string, 0, len(values))
	for _, v := range values {
		switch strategy {
		case StrategyExact:
			conditions = append(conditions, "LOWER("+col.Expr+") = LOWER("+b.Arg(v)+")")
		case StrategyPartial:
			conditions = append(conditions, likeCondition(b, col.Expr, "%"+escapeLike(v)+"%", caseInsensitive))
		case StrategyStart:
			conditions = append(conditions, likeCondition(b, col.Expr, escapeLike(v)+"%", caseInsensitive))
		case StrategyEnd:
			conditions = append(conditions, likeCondition(b, col.Expr, "%"+escapeLike(v), caseInsensitive))
		case StrategyWordStart:
			first := likeCondition(b, col.Expr, escapeLike(v)+"%", caseInsensitive)
			inner := likeCondition(b, col.Expr, "% "+escapeLike(v)+"%", caseInsensitive)
			conditions = append(conditions, "("+first+" OR "+inner+")")
		default:
			ignored(ctx, f.name, bd.Variable(), "strategy "+strategy)
			return nil
		}
	}
	b.Where(orConditions(conditions))
	return nil
}

// Describe implements Filter
func (f *SearchFilter) Describe() []Description {
	out := make([]Description, 0, len(f.cfg.Bindings)*2)
	for _, bd := range f.cfg.Bindings {
		typ := typeName(fieldAt(f.cfg.Resource, bd.Property))
		strategy := f.strategy(bd)
		out = append(out,
			Description{Variable: bd.Variable(), Property: bd.Property, Type: typ, Required: bd.Required, Strategy: strategy},
			Description{Variable: bd.Variable() + "[]", Property: bd.Property, Type: typ, Required: bd.Required, Strategy: strategy, IsCollection: true},
		)
	}
	return out
}

// IriFilter matches relations by IRI: chickenCoop=/chicken_coops/2.
// Values that are not IRIs of the related resource match nothing.
type IriFilter struct {
	cfg Config
}

// NewIriFilter creates an IRI filter
func NewIriFilter(cfg Config) (Filter, error) {
	return &IriFilter{cfg: cfg}, nil
}

// Apply implements Filter
func (f *IriFilter) Apply(ctx context.Context, b *query.Builder, params Params) error {
	for _, bd := range f.cfg.Bindings {
		param, ok := bd.Param(params)
		if !ok || len(param.Values) == 0 {
			continue
		}
		col, err := b.Resolve(bd.Property)
		if err != nil {
			return err
		}
		if col.Relation == nil {
			continue
		}
		target := col.Relation.TargetResource()

		var ids []any
		for _, v := range param.Values {
			if !strings.HasPrefix(v, "/") && !strings.Contains(v, "://") {
				ignored(ctx, "iri", bd.Variable(), v)
				continue
			}
			id, valid := relationID(f.cfg.Registry, target, v)
			if !valid {
				ignored(ctx, "iri", bd.Variable(), v)
				continue
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			b.Where("1 = 0")
			continue
		}
		b.Where(inCondition(b, col.Expr, ids))
	}
	return nil
}

// Describe implements Filter
func (f *IriFilter) Describe() []Description {
	out := make([]Description, 0, len(f.cfg.Bindings)*2)
	for _, bd := range f.cfg.Bindings {
		out = append(out,
			Description{Variable: bd.Variable(), Property: bd.Property, Type: "string", Required: bd.Required},
			Description{Variable: bd.Variable() + "[]", Property: bd.Property, Type: "string", Required: bd.Required, IsCollection: true},
		)
	}
	return out
}

func inCondition(b *query.Builder, expr string, values []any) string {
	if len(values) == 1 {
		return expr + " = " + b.Arg(values[0])
	}
	return expr + " IN (" + b.ArgList(values) + ")"
}

func inPlaceholders(expr string, placeholders []string) string {
	if len(placeholders) == 1 {
		return expr + " = " + placeholders[0]
	}
	return expr + " IN (" + strings.Join(placeholders, ", ") + ")"
}

func orConditions(conditions []string) string {
	if len(conditions) == 1 {
		return conditions[0]
	}
	return "(" + strings.Join(conditions, " OR ") + ")"
}
