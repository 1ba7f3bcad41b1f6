package metadata

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
)

// Parse builds resource metadata from a tagged struct.
//
// Mapping is read from the orm tag, a semicolon separated option list:
//
//	ID          int64        `json:"id" orm:"id;generated"`
//	Name        string       `json:"name" orm:"column=label" assert:"notBlank;length(max=255)"`
//	CreatedAt   *time.Time   `json:"createdAt" orm:"type=date"`
//	ChickenCoop *ChickenCoop `json:"chickenCoop" orm:"manyToOne=ChickenCoop"`
//	Chickens    []*Chicken   `json:"chickens" orm:"oneToMany=Chicken;mappedBy=chickenCoop"`
//	Embedded    Embeddable   `json:"embeddedDummy" orm:"embedded"`
//
// Fields tagged orm:"-" or json:"-" are skipped. Anonymous struct fields
// are flattened, which is how child classes reuse their parent's mapping.
func Parse(name string, entity any, opts ...Option) (*Resource, error) {
	t := reflect.TypeOf(entity)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("resource %s: entity must be a struct, got %T", name, entity)
	}

	snake := ToSnake(name)
	res := &Resource{
		Name:      name,
		Table:     snake,
		IRIPrefix: "/" + Pluralize(snake),
		Pagination: Pagination{
			Enabled:      true,
			ItemsPerPage: DefaultItemsPerPage,
		},
		goType: t,
	}

	fields, ids, err := parseFields(t, nil, "")
	if err != nil {
		return nil, fmt.Errorf("resource %s: %w", name, err)
	}
	res.Fields = fields

	for _, opt := range opts {
		opt(res)
	}
	for _, f := range fields {
		if rel := f.Relation; rel != nil && rel.Kind == ManyToMany && rel.MappedBy == "" && rel.JoinTable == "" {
			rel.JoinTable = res.Table + "_" + ToSnake(f.Name)
		}
	}

	if res.Identifier.Kind == "" {
		res.Identifier, err = inferIdentifier(fields, ids)
		if err != nil {
			return nil, fmt.Errorf("resource %s: %w", name, err)
		}
	}
	if res.Identifier.Kind == IdentifierComposite && len(res.Identifier.Fields) != 2 {
		return nil, fmt.Errorf("resource %s: composite identifier needs exactly two fields", name)
	}

	res.index()
	for _, id := range res.Identifier.Fields {
		if _, ok := res.fields[id]; !ok {
			return nil, fmt.Errorf("resource %s: unknown identifier field %q", name, id)
		}
	}
	return res, nil
}

// MustParse is Parse for package level fixture declarations
func MustParse(name string, entity any, opts ...Option) *Resource {
	res, err := Parse(name, entity, opts...)
	if err != nil {
		panic(err)
	}
	return res
}

type idTag struct {
	field     *Field
	generated bool
	uuid      bool
}

func parseFields(t reflect.Type, index []int, columnPrefix string) ([]*Field, []idTag, error) {
	var fields []*Field
	var ids []idTag

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		fieldIndex := append(append([]int(nil), index...), i)

		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && sf.Tag.Get("orm") == "" {
			inner, innerIDs, err := parseFields(sf.Type, fieldIndex, columnPrefix)
			if err != nil {
				return nil, nil, err
			}
			fields = append(fields, inner...)
			ids = append(ids, innerIDs...)
			continue
		}
		if !sf.IsExported() {
			continue
		}

		ormTag := sf.Tag.Get("orm")
		jsonName := strings.Split(sf.Tag.Get("json"), ",")[0]
		if ormTag == "-" || jsonName == "-" {
			continue
		}
		if jsonName == "" {
			jsonName = LowerCamel(sf.Name)
		}

		opts := parseOptions(ormTag)
		f := &Field{
			Name:        jsonName,
			Column:      columnPrefix + ToSnake(jsonName),
			Groups:      splitList(sf.Tag.Get("groups"), ","),
			Constraints: parseConstraints(sf.Tag.Get("assert")),
			index:       fieldIndex,
		}
		if col, ok := opts["column"]; ok {
			f.Column = columnPrefix + col
		}

		if err := typeField(f, sf.Type, opts); err != nil {
			return nil, nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}

		if f.Type == TypeEmbedded {
			elem := sf.Type
			if elem.Kind() == reflect.Ptr {
				elem = elem.Elem()
			}
			sub, _, err := parseFields(elem, nil, f.Column+"_")
			if err != nil {
				return nil, nil, fmt.Errorf("embedded %s: %w", sf.Name, err)
			}
			for _, s := range sub {
				// embedded values are nullable as a whole
				if f.Nullable {
					s.Nullable = true
				}
			}
			f.Embedded = sub
			f.Column = ""
		}

		if _, ok := opts["id"]; ok {
			_, generated := opts["generated"]
			_, isUUID := opts["uuid"]
			if sf.Type == uuidType {
				isUUID = true
			}
			ids = append(ids, idTag{field: f, generated: generated, uuid: isUUID})
		}
		fields = append(fields, f)
	}
	return fields, ids, nil
}

func typeField(f *Field, t reflect.Type, opts map[string]string) error {
	if _, ok := opts["nullable"]; ok {
		f.Nullable = true
	}

	if rel := relationFromOptions(opts); rel != nil {
		f.Type = TypeRelation
		f.Relation = rel
		switch {
		case rel.IsToMany():
			if t.Kind() != reflect.Slice {
				return fmt.Errorf("%s relation must be a slice", rel.Kind)
			}
			f.Column = ""
		case rel.IsOwningToOne():
			if t.Kind() == reflect.Ptr {
				f.Nullable = true
			}
			if rel.JoinColumn == "" {
				rel.JoinColumn = ToSnake(f.Name) + "_id"
			}
			f.Column = rel.JoinColumn
		default:
			f.Column = ""
		}
		return nil
	}

	if t.Kind() == reflect.Ptr {
		f.Nullable = true
		t = t.Elem()
	}

	switch {
	case t == timeType:
		f.Type = TypeDateTime
	case t == decimalType:
		f.Type = TypeDecimal
	case t == uuidType:
		f.Type = TypeString
	case t.Kind() == reflect.String:
		f.Type = TypeString
	case t.Kind() == reflect.Bool:
		f.Type = TypeBool
	case t.Kind() >= reflect.Int && t.Kind() <= reflect.Uint64:
		f.Type = TypeInt
	case t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64:
		f.Type = TypeFloat
	case t.Kind() == reflect.Struct:
		f.Type = TypeEmbedded
	default:
		return fmt.Errorf("unsupported type %s", t)
	}

	if typ, ok := opts["type"]; ok {
		switch FieldType(typ) {
		case TypeDate, TypeDateTime:
			if t != timeType {
				return fmt.Errorf("type=%s requires time.Time", typ)
			}
		case TypeText, TypeEnum:
			if t.Kind() != reflect.String {
				return fmt.Errorf("type=%s requires a string", typ)
			}
		default:
			return fmt.Errorf("unknown type %q", typ)
		}
		f.Type = FieldType(typ)
	}
	if choices, ok := opts["choices"]; ok {
		f.Choices = splitList(choices, "|")
		if f.Type == TypeString {
			f.Type = TypeEnum
		}
	}
	if _, ok := opts["generated"]; ok {
		f.Generated = true
	}
	return nil
}

func relationFromOptions(opts map[string]string) *Relation {
	for _, kind := range []RelationKind{ManyToOne, OneToOne, OneToMany, ManyToMany} {
		target, ok := opts[string(kind)]
		if !ok {
			continue
		}
		rel := &Relation{
			Kind:       kind,
			Target:     target,
			JoinColumn: opts["joinColumn"],
			MappedBy:   opts["mappedBy"],
			JoinTable:  opts["joinTable"],
		}
		return rel
	}
	return nil
}

func inferIdentifier(fields []*Field, ids []idTag) (Identifier, error) {
	switch len(ids) {
	case 0:
		for _, f := range fields {
			if f.Name == "id" {
				return Identifier{Kind: IdentifierAuto, Fields: []string{"id"}}, nil
			}
		}
		return Identifier{}, fmt.Errorf("no identifier declared")
	case 1:
		id := ids[0]
		switch {
		case id.uuid:
			return Identifier{Kind: IdentifierUUID, Fields: []string{id.field.Name}}, nil
		case id.generated || id.field.Type == TypeInt:
			id.field.Generated = true
			return Identifier{Kind: IdentifierAuto, Fields: []string{id.field.Name}}, nil
		default:
			return Identifier{Kind: IdentifierNatural, Fields: []string{id.field.Name}}, nil
		}
	default:
		names := make([]string, 0, len(ids))
		for _, id := range ids {
			names = append(names, id.field.Name)
		}
		return Identifier{Kind: IdentifierComposite, Fields: names}, nil
	}
}

// parseOptions splits "id;column=label;manyToOne=Target" into a map
func parseOptions(tag string) map[string]string {
	opts := make(map[string]string)
	for _, part := range splitList(tag, ";") {
		key, value, _ := strings.Cut(part, "=")
		opts[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return opts
}

// parseConstraints reads "notBlank;length(min=2,max=10)"
func parseConstraints(tag string) []Constraint {
	var out []Constraint
	for _, part := range splitList(tag, ";") {
		name, rest, hasArgs := strings.Cut(part, "(")
		c := Constraint{Name: strings.TrimSpace(name)}
		if hasArgs {
			rest = strings.TrimSuffix(rest, ")")
			c.Args = make(map[string]string)
			for _, arg := range splitList(rest, ",") {
				k, v, _ := strings.Cut(arg, "=")
				c.Args[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
		}
		out = append(out, c)
	}
	return out
}
