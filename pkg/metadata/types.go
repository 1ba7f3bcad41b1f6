package metadata

import "strings"

// FieldType is the persistence type of a mapped field
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeText     FieldType = "text"
	TypeBool     FieldType = "bool"
	TypeInt      FieldType = "int"
	TypeFloat    FieldType = "float"
	TypeDecimal  FieldType = "decimal"
	TypeDate     FieldType = "date"
	TypeDateTime FieldType = "datetime"
	TypeEnum     FieldType = "enum"
	TypeEmbedded FieldType = "embedded"
	TypeRelation FieldType = "relation"
)

// IsNumeric reports whether values of this type compare numerically
func (t FieldType) IsNumeric() bool {
	return t == TypeInt || t == TypeFloat || t == TypeDecimal
}

// IsTemporal reports whether values of this type are dates
func (t FieldType) IsTemporal() bool {
	return t == TypeDate || t == TypeDateTime
}

// IsTextual reports whether values of this type are strings
func (t FieldType) IsTextual() bool {
	return t == TypeString || t == TypeText || t == TypeEnum
}

// RelationKind is the cardinality of an association
type RelationKind string

const (
	ManyToOne  RelationKind = "manyToOne"
	OneToOne   RelationKind = "oneToOne"
	OneToMany  RelationKind = "oneToMany"
	ManyToMany RelationKind = "manyToMany"
)

// Relation describes an association between two resources.
//
// The owning side of a to-one relation stores the target identifier in
// JoinColumn. OneToMany relations are always inverse and name the owning
// property on the target in MappedBy. ManyToMany relations own a JoinTable
// unless MappedBy is set.
type Relation struct {
	Kind       RelationKind
	Target     string
	JoinColumn string
	MappedBy   string
	JoinTable  string

	target *Resource
}

// TargetResource returns the resolved target, nil before Registry.Resolve
func (r *Relation) TargetResource() *Resource {
	return r.target
}

// IsToMany reports whether the relation holds a collection
func (r *Relation) IsToMany() bool {
	return r.Kind == OneToMany || r.Kind == ManyToMany
}

// IsOwningToOne reports whether the relation is stored as a column on this side
func (r *Relation) IsOwningToOne() bool {
	return (r.Kind == ManyToOne || r.Kind == OneToOne) && r.MappedBy == ""
}

// Constraint is a validation rule attached to a field
type Constraint struct {
	Name string
	Args map[string]string
}

// Arg returns a constraint argument or an empty string
func (c Constraint) Arg(key string) string {
	if c.Args == nil {
		return ""
	}
	return c.Args[key]
}

// Field describes one mapped property of a resource
type Field struct {
	// Name is the API property name
	Name string
	// Column is the storage column, empty for inverse relations
	Column string
	Type   FieldType

	Nullable  bool
	Generated bool
	Choices   []string
	Groups    []string

	Constraints []Constraint
	Embedded    []*Field
	Relation    *Relation

	index []int
}

// InGroups reports whether the field is exposed for any of the given groups.
// A field without groups is only exposed when no groups are requested.
func (f *Field) InGroups(groups []string) bool {
	if len(groups) == 0 {
		return true
	}
	for _, g := range groups {
		for _, fg := range f.Groups {
			if g == fg {
				return true
			}
		}
	}
	return false
}

// EmbeddedField returns a sub-field of an embedded value by property name
func (f *Field) EmbeddedField(name string) (*Field, bool) {
	for _, sub := range f.Embedded {
		if sub.Name == name {
			return sub, true
		}
	}
	return nil, false
}

// IdentifierKind is the strategy used to identify items of a resource
type IdentifierKind string

const (
	IdentifierAuto      IdentifierKind = "auto"
	IdentifierUUID      IdentifierKind = "uuid"
	IdentifierNatural   IdentifierKind = "natural"
	IdentifierComposite IdentifierKind = "composite"
)

// Identifier names the properties that identify an item
type Identifier struct {
	Kind   IdentifierKind
	Fields []string
}

// Operation kinds
type OperationKind string

const (
	OpGetCollection OperationKind = "get_collection"
	OpGet           OperationKind = "get"
	OpPost          OperationKind = "post"
	OpPut           OperationKind = "put"
	OpPatch         OperationKind = "patch"
	OpDelete        OperationKind = "delete"
)

// Method returns the HTTP method served by the operation
func (k OperationKind) Method() string {
	switch k {
	case OpPost:
		return "POST"
	case OpPut:
		return "PUT"
	case OpPatch:
		return "PATCH"
	case OpDelete:
		return "DELETE"
	default:
		return "GET"
	}
}

// IsCollection reports whether the operation targets the collection path
func (k OperationKind) IsCollection() bool {
	return k == OpGetCollection || k == OpPost
}

// Operation is an exposed API operation with its own security and groups
type Operation struct {
	Kind OperationKind

	Security                string
	SecurityPostDenormalize string
	SecurityMessage         string

	NormalizationGroups   []string
	DenormalizationGroups []string
}

// FilterRef declares a filter by type, the way resources reference filter services.
// Properties maps a property to a filter specific option (a search strategy,
// an order direction, a null management mode).
type FilterRef struct {
	Type       string            `yaml:"type"`
	Properties map[string]string `yaml:"properties"`
	Args       map[string]string `yaml:"args"`
}

// Parameter binds a query parameter key to a filter
type Parameter struct {
	Key      string    `yaml:"key"`
	Property string    `yaml:"property"`
	Filter   FilterRef `yaml:"filter"`
	Required bool      `yaml:"required"`
	// Properties expands a ":property" placeholder in Key
	Properties []string `yaml:"properties"`
}

// Pagination controls collection paging
type Pagination struct {
	Enabled            bool
	ItemsPerPage       int
	MaxItemsPerPage    int
	ClientItemsPerPage bool
	ClientEnabled      bool
}

// OrderSpec is a default collection ordering
type OrderSpec struct {
	Property  string `yaml:"property"`
	Direction string `yaml:"direction"`
}

// Link exposes a collection of this resource below a parent item, for
// example /chicken_coops/{id}/chickens. Property is the to-one relation
// on this resource that points to the parent.
type Link struct {
	Path       string
	FromClass  string
	Property   string
	Identifier string
}

// Inheritance declares single table inheritance
type Inheritance struct {
	Parent              string
	DiscriminatorColumn string
	DiscriminatorValue  string
}

// DiscriminatorKey is the item key holding the stored discriminator value
const DiscriminatorKey = "@discriminator"

// Item is a decoded row keyed by API property name
type Item map[string]any

// Clone returns a shallow copy with embedded values copied
func (i Item) Clone() Item {
	if i == nil {
		return nil
	}
	out := make(Item, len(i))
	for k, v := range i {
		if nested, ok := v.(Item); ok {
			v = nested.Clone()
		}
		out[k] = v
	}
	return out
}

func splitList(value, sep string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
