package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/platinummonkey/gantry/pkg/metadata"
)

// column is one selected column and where its value goes in an item
type column struct {
	name string
	// field receives the value; for embedded values it is the sub-field
	field *metadata.Field
	// parent is the embedded field owning field, if any
	parent        *metadata.Field
	discriminator bool
}

// selectColumns lists the columns read for items of res. The whole table
// is read so that items of child classes come back complete.
func selectColumns(res *metadata.Resource) []column {
	root := res.Root()
	var out []column
	for _, f := range root.StorageFields() {
		switch {
		case f.Relation != nil:
			if f.Relation.IsOwningToOne() {
				out = append(out, column{name: f.Column, field: f})
			}
		case f.Type == metadata.TypeEmbedded:
			for _, sub := range f.Embedded {
				out = append(out, column{name: sub.Column, field: sub, parent: f})
			}
		default:
			out = append(out, column{name: f.Column, field: f})
		}
	}
	if d := root.DiscriminatorColumn(); d != "" {
		out = append(out, column{name: d, discriminator: true})
	}
	return out
}

func columnNames(columns []column) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

// decodeRow turns scanned values into an item of the concrete resource
// named by the discriminator
func decodeRow(res *metadata.Resource, columns []column, values []any) (metadata.Item, *metadata.Resource) {
	concrete := res
	for i, c := range columns {
		if c.discriminator {
			if v, ok := asString(values[i]); ok {
				concrete = res.Root().Concrete(v)
			}
		}
	}

	item := make(metadata.Item, len(columns))
	for i, c := range columns {
		raw := values[i]
		switch {
		case c.discriminator:
			if v, ok := asString(raw); ok {
				item[metadata.DiscriminatorKey] = v
			}
		case c.parent != nil:
			if _, ok := concrete.Field(c.parent.Name); !ok {
				continue
			}
			nested, _ := item[c.parent.Name].(metadata.Item)
			if nested == nil {
				nested = make(metadata.Item, len(c.parent.Embedded))
				item[c.parent.Name] = nested
			}
			nested[c.field.Name] = normalize(c.field, raw)
		default:
			if _, ok := concrete.Field(c.field.Name); !ok {
				continue
			}
			if c.field.Relation != nil {
				item[c.field.Name] = normalizeID(c.field.Relation.TargetResource(), raw)
				continue
			}
			item[c.field.Name] = normalize(c.field, raw)
		}
	}
	return item, concrete
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// normalize converts a driver value into the Go type used in items for a
// field type
func normalize(f *metadata.Field, raw any) any {
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	if raw == nil {
		return nil
	}

	switch f.Type {
	case metadata.TypeBool:
		switch v := raw.(type) {
		case bool:
			return v
		case int64:
			return v != 0
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil
			}
			return b
		}
	case metadata.TypeInt:
		switch v := raw.(type) {
		case int64:
			return v
		case float64:
			return int64(v)
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil
			}
			return n
		}
	case metadata.TypeFloat:
		switch v := raw.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		case string:
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil
			}
			return n
		}
	case metadata.TypeDecimal:
		switch v := raw.(type) {
		case float64:
			return decimal.NewFromFloat(v)
		case int64:
			return decimal.NewFromInt(v)
		case string:
			d, err := decimal.NewFromString(v)
			if err != nil {
				return nil
			}
			return d
		}
	case metadata.TypeDate, metadata.TypeDateTime:
		t, ok := asTime(raw)
		if !ok {
			return nil
		}
		if f.Type == metadata.TypeDate {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		return t
	default:
		if s, ok := asString(raw); ok {
			return s
		}
	}
	return raw
}

// normalizeID converts a stored identifier of target
func normalizeID(target *metadata.Resource, raw any) any {
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	if raw == nil || target == nil {
		return raw
	}
	target = target.Root()
	switch target.Identifier.Kind {
	case metadata.IdentifierAuto:
		return normalize(&metadata.Field{Type: metadata.TypeInt}, raw)
	case metadata.IdentifierUUID:
		s, _ := asString(raw)
		return s
	default:
		fields := target.IdentifierFields()
		if len(fields) == 1 {
			return normalize(fields[0], raw)
		}
		return raw
	}
}

func asTime(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), true
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func asString(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []byte:
		return string(v), true
	case time.Time:
		return v.UTC().Format(time.RFC3339), true
	default:
		return fmt.Sprint(v), true
	}
}

// idKey is the map key used to group rows by identifier
func idKey(id any) string {
	if b, ok := id.([]byte); ok {
		return string(b)
	}
	return strings.TrimSpace(fmt.Sprint(id))
}
