package metadata

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// ItemOf converts a tagged entity into an Item keyed by property name.
//
// To-one relations holding a target entity are reduced to the target's
// identifier and owning many-to-many slices to a list of identifiers.
// Generated identifiers that are still zero are left out so the store can
// assign them. Relation targets must be resolved first.
func (r *Resource) ItemOf(entity any) (Item, error) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("resource %s: nil entity", r.Name)
		}
		v = v.Elem()
	}
	if v.Type() != r.goType {
		return nil, fmt.Errorf("resource %s: cannot convert %s", r.Name, v.Type())
	}

	item := make(Item, len(r.Fields)+1)
	for _, f := range r.Fields {
		fv := v.FieldByIndex(f.index)
		switch {
		case f.Relation != nil:
			value, keep, err := relationValue(f, fv)
			if err != nil {
				return nil, fmt.Errorf("resource %s: %w", r.Name, err)
			}
			if keep {
				item[f.Name] = value
			}
		case f.Type == TypeEmbedded:
			item[f.Name] = embeddedValue(f, fv)
		default:
			value := scalarValue(fv)
			if f.Generated && isZero(value) {
				continue
			}
			if r.Identifier.Kind == IdentifierUUID && r.isIdentifierField(f.Name) && isZero(value) {
				continue
			}
			item[f.Name] = value
		}
	}
	if r.IsHierarchy() {
		item[DiscriminatorKey] = r.DiscriminatorValue()
	}
	return item, nil
}

// SetIdentifier writes a generated identifier back into an entity
func (r *Resource) SetIdentifier(entity any, id any) error {
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("resource %s: SetIdentifier needs a non-nil pointer", r.Name)
	}
	v = v.Elem()
	if v.Type() != r.goType {
		return fmt.Errorf("resource %s: cannot set identifier on %s", r.Name, v.Type())
	}
	fields := r.IdentifierFields()
	if len(fields) != 1 {
		return fmt.Errorf("resource %s: only single identifiers are generated", r.Name)
	}
	return assign(v.FieldByIndex(fields[0].index), id)
}

func assign(fv reflect.Value, value any) error {
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		fv = fv.Elem()
	}
	if fv.Type() == uuidType {
		parsed, err := uuid.Parse(fmt.Sprint(value))
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(parsed))
		return nil
	}
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := toInt64(value)
		if !ok {
			return fmt.Errorf("cannot assign %T to %s", value, fv.Type())
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := toInt64(value)
		if !ok || n < 0 {
			return fmt.Errorf("cannot assign %T to %s", value, fv.Type())
		}
		fv.SetUint(uint64(n))
	case reflect.String:
		fv.SetString(fmt.Sprint(value))
	default:
		return fmt.Errorf("cannot assign identifier to %s", fv.Type())
	}
	return nil
}

func toInt64(value any) (int64, bool) {
	switch n := value.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func scalarValue(fv reflect.Value) any {
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return nil
		}
		fv = fv.Elem()
	}
	switch fv.Type() {
	case timeType, decimalType:
		return fv.Interface()
	case uuidType:
		id := fv.Interface().(uuid.UUID)
		if id == uuid.Nil {
			return ""
		}
		return id.String()
	}
	switch fv.Kind() {
	case reflect.String:
		return fv.String()
	case reflect.Bool:
		return fv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(fv.Uint())
	case reflect.Float32, reflect.Float64:
		return fv.Float()
	default:
		return fv.Interface()
	}
}

func embeddedValue(f *Field, fv reflect.Value) any {
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return nil
		}
		fv = fv.Elem()
	}
	out := make(Item, len(f.Embedded))
	for _, sub := range f.Embedded {
		out[sub.Name] = scalarValue(fv.FieldByIndex(sub.index))
	}
	return out
}

// relationValue reports the stored value of a relation and whether the
// relation is stored on this side at all
func relationValue(f *Field, fv reflect.Value) (any, bool, error) {
	rel := f.Relation
	switch {
	case rel.IsOwningToOne():
		if fv.Kind() == reflect.Ptr && fv.IsNil() {
			return nil, true, nil
		}
		id, err := targetIdentifier(rel, fv)
		return id, true, err
	case rel.Kind == ManyToMany && rel.MappedBy == "":
		ids := make([]any, 0, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			el := fv.Index(i)
			if el.Kind() == reflect.Ptr && el.IsNil() {
				continue
			}
			id, err := targetIdentifier(rel, el)
			if err != nil {
				return nil, false, err
			}
			ids = append(ids, id)
		}
		return ids, true, nil
	default:
		return nil, false, nil
	}
}

func targetIdentifier(rel *Relation, fv reflect.Value) (any, error) {
	inner := fv
	if inner.Kind() == reflect.Ptr {
		inner = inner.Elem()
	}
	// relations may also be declared as plain identifier fields
	if inner.Kind() != reflect.Struct || inner.Type() == uuidType {
		return scalarValue(fv), nil
	}
	target := rel.TargetResource()
	if target == nil {
		return nil, fmt.Errorf("relation to %s is not resolved", rel.Target)
	}
	concrete := target
	for _, c := range collectHierarchy(target) {
		if c.goType == inner.Type() {
			concrete = c
			break
		}
	}
	item, err := concrete.ItemOf(inner.Interface())
	if err != nil {
		return nil, err
	}
	id := concrete.IdentifierValue(item)
	if isZero(id) {
		return nil, fmt.Errorf("related %s has no identifier yet, persist it first", rel.Target)
	}
	return id, nil
}

func collectHierarchy(res *Resource) []*Resource {
	out := []*Resource{res}
	for _, c := range res.children {
		out = append(out, collectHierarchy(c)...)
	}
	return out
}

func isZero(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case int64:
		return x == 0
	case string:
		return x == ""
	case map[string]any:
		for _, part := range x {
			if isZero(part) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
