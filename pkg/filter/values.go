package filter

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/observability"
	"github.com/platinummonkey/gantry/pkg/query"
)

// ParseBool accepts true, false, 1 and 0
func ParseBool(value string) (bool, bool) {
	switch strings.ToLower(value) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	default:
		return false, false
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDate parses the date formats accepted in query strings. Values
// without a zone are read as UTC.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	// a "+" offset arrives as a space once the query string is decoded
	if i := strings.LastIndex(value, " "); i > 10 && len(value)-i == 6 {
		value = value[:i] + "+" + value[i+1:]
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseNumber parses a decimal number
func ParseNumber(value string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// numberArg binds a number so that it compares correctly with a column of
// the given field type on both dialects
func numberArg(b *query.Builder, f *metadata.Field, d decimal.Decimal) string {
	switch {
	case f.Type == metadata.TypeInt && d.IsInteger():
		return b.Arg(d.IntPart())
	case b.Dialect() == query.Postgres && (f.Type == metadata.TypeDecimal || f.Type == metadata.TypeInt):
		return "CAST(" + b.Arg(d.String()) + " AS NUMERIC)"
	default:
		return b.Arg(d.InexactFloat64())
	}
}

// scalarArg parses and binds a raw value for an equality on field f
func scalarArg(b *query.Builder, f *metadata.Field, raw string) (string, bool) {
	switch {
	case f.Type.IsNumeric():
		d, ok := ParseNumber(raw)
		if !ok {
			return "", false
		}
		return numberArg(b, f, d), true
	case f.Type == metadata.TypeBool:
		v, ok := ParseBool(raw)
		if !ok {
			return "", false
		}
		return b.Arg(v), true
	case f.Type.IsTemporal():
		t, ok := ParseDate(raw)
		if !ok {
			return "", false
		}
		return b.Arg(b.Dialect().BindTime(f.Type, t)), true
	case f.Type == metadata.TypeEnum && len(f.Choices) > 0:
		for _, c := range f.Choices {
			if c == raw {
				return b.Arg(raw), true
			}
		}
		return "", false
	default:
		return b.Arg(raw), true
	}
}

// relationIDs converts IRIs or raw identifiers into identifiers of target.
// ok is false when any value does not reference target.
func relationIDs(reg *metadata.Registry, target *metadata.Resource, values []string) ([]any, bool) {
	ids := make([]any, 0, len(values))
	for _, v := range values {
		id, ok := relationID(reg, target, v)
		if !ok {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func relationID(reg *metadata.Registry, target *metadata.Resource, value string) (any, bool) {
	if strings.HasPrefix(value, "/") || strings.Contains(value, "://") {
		if reg == nil {
			return nil, false
		}
		res, id, err := reg.ParseIRI(value)
		if err != nil || res.Root() != target.Root() {
			return nil, false
		}
		return id, true
	}
	id, err := target.ParseIdentifier(value)
	if err != nil {
		return nil, false
	}
	return id, true
}

// escapeLike escapes LIKE wildcards; conditions use ESCAPE '\'
func escapeLike(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(value)
}

// likeCondition renders a LIKE comparison, lowering both sides when
// caseInsensitive is set
func likeCondition(b *query.Builder, expr, pattern string, caseInsensitive bool) string {
	if caseInsensitive {
		return "LOWER(" + expr + ") LIKE LOWER(" + b.Arg(pattern) + ") ESCAPE '\\'"
	}
	return expr + " LIKE " + b.Arg(pattern) + " ESCAPE '\\'"
}

func ignored(ctx context.Context, filter, variable, value string) {
	observability.FromContext(ctx).
		WithField("filter", filter).
		WithField("parameter", variable).
		WithField("value", value).
		Debug("ignoring invalid filter value")
}

func typeName(f *metadata.Field) string {
	switch {
	case f == nil:
		return "string"
	case f.Relation != nil:
		return "string"
	case f.Type == metadata.TypeBool:
		return "bool"
	case f.Type == metadata.TypeInt:
		return "int"
	case f.Type == metadata.TypeFloat || f.Type == metadata.TypeDecimal:
		return "float"
	case f.Type.IsTemporal():
		return "DateTimeInterface"
	default:
		return "string"
	}
}

// fieldAt walks a dotted property path through relations and embedded
// values without touching a query
func fieldAt(res *metadata.Resource, path string) *metadata.Field {
	_, f := lookupPath(res, path)
	return f
}

// lookupPath returns the leaf field of a path and the resource owning it
func lookupPath(res *metadata.Resource, path string) (*metadata.Resource, *metadata.Field) {
	parts := strings.Split(path, ".")
	for i, part := range parts {
		if res == nil {
			return nil, nil
		}
		owner := res
		f, ok := res.Field(part)
		if !ok {
			for _, c := range res.Children() {
				if f, ok = c.Field(part); ok {
					owner = c
					break
				}
			}
		}
		if !ok {
			return nil, nil
		}
		if i == len(parts)-1 {
			return owner, f
		}
		switch {
		case f.Type == metadata.TypeEmbedded && i+1 == len(parts)-1:
			sub, found := f.EmbeddedField(parts[i+1])
			if !found {
				return nil, nil
			}
			return owner, sub
		case f.Relation != nil:
			res = f.Relation.TargetResource()
		default:
			return nil, nil
		}
	}
	return nil, nil
}

func isIdentifier(res *metadata.Resource, f *metadata.Field) bool {
	if res == nil || f == nil || res.Identifier.Kind == metadata.IdentifierComposite {
		return false
	}
	for _, name := range res.Identifier.Fields {
		if name == f.Name {
			return true
		}
	}
	return false
}
