package hydra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/platinummonkey/gantry/pkg/metadata"
)

// ErrInvalidInput is wrapped by every InputError
var ErrInvalidInput = errors.New("invalid input")

// InputError reports a body property whose value cannot be converted
type InputError struct {
	Property string
	Message  string
}

func (e *InputError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match ErrInvalidInput
func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

func typeError(property, expected string, given any) *InputError {
	return &InputError{
		Property: property,
		Message:  fmt.Sprintf("The type of the %q attribute must be %q, %q given.", property, expected, jsonType(given)),
	}
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number, float64, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// dateLayouts are accepted for date and datetime input
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Denormalize converts a decoded request body into an item holding only
// the properties writable in groups. Unknown and read-only properties are
// ignored. Numbers must be decoded as json.Number.
func (n *Normalizer) Denormalize(res *metadata.Resource, body map[string]any, groups []string) (metadata.Item, error) {
	item := make(metadata.Item, len(body))
	for _, f := range res.Fields {
		raw, present := body[f.Name]
		if !present || !writable(res, f, groups) {
			continue
		}
		value, err := n.value(f, f.Name, raw)
		if err != nil {
			return nil, err
		}
		item[f.Name] = value
	}
	return item, nil
}

func writable(res *metadata.Resource, f *metadata.Field, groups []string) bool {
	if f.Generated || !f.InGroups(groups) {
		return false
	}
	if res.Identifier.Kind == metadata.IdentifierAuto {
		for _, id := range res.Identifier.Fields {
			if id == f.Name {
				return false
			}
		}
	}
	if f.Relation != nil {
		return f.Relation.IsOwningToOne() || (f.Relation.Kind == metadata.ManyToMany && f.Relation.MappedBy == "")
	}
	return true
}

func (n *Normalizer) value(f *metadata.Field, path string, raw any) (any, error) {
	if raw == nil {
		if f.Relation != nil && f.Relation.IsToMany() {
			return []any{}, nil
		}
		return nil, nil
	}

	switch {
	case f.Relation != nil:
		return n.relationValue(f, path, raw)
	case f.Type == metadata.TypeEmbedded:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, typeError(path, "object", raw)
		}
		nested := make(metadata.Item, len(f.Embedded))
		for _, sub := range f.Embedded {
			v, present := obj[sub.Name]
			if !present {
				continue
			}
			converted, err := n.value(sub, path+"."+sub.Name, v)
			if err != nil {
				return nil, err
			}
			nested[sub.Name] = converted
		}
		return nested, nil
	}

	switch f.Type {
	case metadata.TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, typeError(path, "bool", raw)
		}
		return b, nil
	case metadata.TypeInt:
		num, ok := raw.(json.Number)
		if !ok {
			return nil, typeError(path, "int", raw)
		}
		v, err := num.Int64()
		if err != nil {
			return nil, typeError(path, "int", raw)
		}
		return v, nil
	case metadata.TypeFloat:
		num, ok := raw.(json.Number)
		if !ok {
			return nil, typeError(path, "float", raw)
		}
		v, err := num.Float64()
		if err != nil {
			return nil, typeError(path, "float", raw)
		}
		return v, nil
	case metadata.TypeDecimal:
		var s string
		switch v := raw.(type) {
		case string:
			s = v
		case json.Number:
			s = v.String()
		default:
			return nil, typeError(path, "string", raw)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, &InputError{Property: path, Message: fmt.Sprintf("%q is not a valid decimal for %q.", s, path)}
		}
		return d, nil
	case metadata.TypeDate, metadata.TypeDateTime:
		s, ok := raw.(string)
		if !ok {
			return nil, typeError(path, "string", raw)
		}
		t, err := parseDate(s)
		if err != nil {
			return nil, &InputError{Property: path, Message: fmt.Sprintf("Failed to parse time string (%s) for %q.", s, path)}
		}
		if f.Type == metadata.TypeDate {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		return t, nil
	default:
		s, ok := raw.(string)
		if !ok {
			return nil, typeError(path, "string", raw)
		}
		return s, nil
	}
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func (n *Normalizer) relationValue(f *metadata.Field, path string, raw any) (any, error) {
	if f.Relation.IsToMany() {
		list, ok := raw.([]any)
		if !ok {
			return nil, typeError(path, "array", raw)
		}
		ids := make([]any, 0, len(list))
		for _, el := range list {
			id, err := n.reference(f, path, el)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	}
	return n.reference(f, path, raw)
}

// reference resolves an IRI, or an object carrying @id, into the related
// identifier
func (n *Normalizer) reference(f *metadata.Field, path string, raw any) (any, error) {
	iri, ok := raw.(string)
	if obj, isObj := raw.(map[string]any); isObj {
		iri, ok = obj["@id"].(string)
	}
	if !ok {
		return nil, typeError(path, "IRI", raw)
	}

	res, id, err := n.reg.ParseIRI(iri)
	if err != nil {
		return nil, &InputError{Property: path, Message: fmt.Sprintf("Invalid IRI %q.", iri)}
	}
	target := f.Relation.TargetResource()
	if target == nil || res.Root() != target.Root() {
		return nil, &InputError{Property: path, Message: fmt.Sprintf("Invalid IRI %q.", iri)}
	}
	return id, nil
}
