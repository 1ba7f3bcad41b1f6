package metadata

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// DefaultItemsPerPage is used when a resource does not configure paging
const DefaultItemsPerPage = 30

// Resource is the mapping and API metadata of one exposed class
type Resource struct {
	Name       string
	Table      string
	IRIPrefix  string
	Identifier Identifier
	Fields     []*Field

	Operations       []Operation
	Filters          []FilterRef
	Parameters       []Parameter
	StrictParameters bool

	Security        string
	SecurityMessage string

	NormalizationGroups   []string
	DenormalizationGroups []string

	Pagination  Pagination
	Order       []OrderSpec
	Links       []Link
	Inheritance *Inheritance

	goType   reflect.Type
	fields   map[string]*Field
	parent   *Resource
	children []*Resource
}

// Option customizes a resource while it is parsed
type Option func(*Resource)

// WithTable overrides the storage table
func WithTable(table string) Option {
	return func(r *Resource) { r.Table = table }
}

// WithIRIPrefix overrides the collection path, e.g. /chicken_coops
func WithIRIPrefix(prefix string) Option {
	return func(r *Resource) { r.IRIPrefix = "/" + strings.Trim(prefix, "/") }
}

// WithIdentifier forces an identifier strategy
func WithIdentifier(kind IdentifierKind, fields ...string) Option {
	return func(r *Resource) { r.Identifier = Identifier{Kind: kind, Fields: fields} }
}

// WithOperations restricts the exposed operations
func WithOperations(ops ...Operation) Option {
	return func(r *Resource) { r.Operations = append(r.Operations, ops...) }
}

// WithFilters binds filters to the resource collection
func WithFilters(refs ...FilterRef) Option {
	return func(r *Resource) { r.Filters = append(r.Filters, refs...) }
}

// WithParameters declares query parameters
func WithParameters(params ...Parameter) Option {
	return func(r *Resource) { r.Parameters = append(r.Parameters, params...) }
}

// WithStrictParameters rejects query parameters that no filter declares
func WithStrictParameters() Option {
	return func(r *Resource) { r.StrictParameters = true }
}

// WithSecurity sets the resource wide security expression
func WithSecurity(expression, message string) Option {
	return func(r *Resource) {
		r.Security = expression
		r.SecurityMessage = message
	}
}

// WithGroups sets normalization and denormalization groups
func WithGroups(normalization, denormalization []string) Option {
	return func(r *Resource) {
		r.NormalizationGroups = normalization
		r.DenormalizationGroups = denormalization
	}
}

// WithPagination replaces the paging configuration
func WithPagination(p Pagination) Option {
	return func(r *Resource) { r.Pagination = p }
}

// WithItemsPerPage sets the page size
func WithItemsPerPage(n int) Option {
	return func(r *Resource) { r.Pagination.ItemsPerPage = n }
}

// WithOrder sets the default collection order
func WithOrder(specs ...OrderSpec) Option {
	return func(r *Resource) { r.Order = append(r.Order, specs...) }
}

// WithLink exposes the resource below a parent item
func WithLink(link Link) Option {
	return func(r *Resource) { r.Links = append(r.Links, link) }
}

// WithInheritance maps the resource onto its parent's table
func WithInheritance(parent, column, value string) Option {
	return func(r *Resource) {
		r.Inheritance = &Inheritance{Parent: parent, DiscriminatorColumn: column, DiscriminatorValue: value}
	}
}

// Filter builds a FilterRef from property options
func Filter(typ string, properties map[string]string) FilterRef {
	return FilterRef{Type: typ, Properties: properties}
}

// Field returns a field by API property name
func (r *Resource) Field(name string) (*Field, bool) {
	f, ok := r.fields[name]
	return f, ok
}

// GoType returns the struct type the resource was parsed from
func (r *Resource) GoType() reflect.Type {
	return r.goType
}

// Parent returns the inheritance parent, if any
func (r *Resource) Parent() *Resource {
	return r.parent
}

// Children returns resources inheriting from this one
func (r *Resource) Children() []*Resource {
	return r.children
}

// Root returns the resource owning the storage table
func (r *Resource) Root() *Resource {
	if r.parent != nil {
		return r.parent.Root()
	}
	return r
}

// DiscriminatorColumn returns the column holding the concrete class name
func (r *Resource) DiscriminatorColumn() string {
	root := r.Root()
	if root.Inheritance != nil && root.Inheritance.DiscriminatorColumn != "" {
		return root.Inheritance.DiscriminatorColumn
	}
	for _, c := range root.children {
		if c.Inheritance != nil && c.Inheritance.DiscriminatorColumn != "" {
			return c.Inheritance.DiscriminatorColumn
		}
	}
	return ""
}

// DiscriminatorValue returns the value stored for items of this resource
func (r *Resource) DiscriminatorValue() string {
	if r.Inheritance != nil && r.Inheritance.DiscriminatorValue != "" {
		return r.Inheritance.DiscriminatorValue
	}
	return ToSnake(r.Name)
}

// IsHierarchy reports whether the table stores several classes
func (r *Resource) IsHierarchy() bool {
	return r.parent != nil || len(r.children) > 0
}

// Concrete returns the resource matching a stored discriminator value
func (r *Resource) Concrete(discriminator string) *Resource {
	if discriminator == "" || r.DiscriminatorValue() == discriminator {
		return r
	}
	for _, c := range r.children {
		if found := c.Concrete(discriminator); found.DiscriminatorValue() == discriminator {
			return found
		}
	}
	return r
}

// StorageFields returns the fields stored in the table, including those of
// child classes for a hierarchy root
func (r *Resource) StorageFields() []*Field {
	seen := make(map[string]bool)
	var out []*Field
	var walk func(res *Resource)
	walk = func(res *Resource) {
		for _, f := range res.Fields {
			key := f.Name
			if f.Column != "" {
				key = f.Column
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, f)
		}
		for _, c := range res.children {
			walk(c)
		}
	}
	walk(r.Root())
	return out
}

// HasOperation reports whether an operation is exposed
func (r *Resource) HasOperation(kind OperationKind) bool {
	_, ok := r.Operation(kind)
	return ok
}

// Operation returns an exposed operation. Resources declaring no
// operations expose all of them.
func (r *Resource) Operation(kind OperationKind) (Operation, bool) {
	if len(r.Operations) == 0 {
		return Operation{Kind: kind}, true
	}
	for _, op := range r.Operations {
		if op.Kind == kind {
			return op, true
		}
	}
	return Operation{}, false
}

// NormalizationGroupsFor returns the read groups of an operation
func (r *Resource) NormalizationGroupsFor(op Operation) []string {
	if len(op.NormalizationGroups) > 0 {
		return op.NormalizationGroups
	}
	return r.NormalizationGroups
}

// DenormalizationGroupsFor returns the write groups of an operation
func (r *Resource) DenormalizationGroupsFor(op Operation) []string {
	if len(op.DenormalizationGroups) > 0 {
		return op.DenormalizationGroups
	}
	return r.DenormalizationGroups
}

// IdentifierFields returns the fields making up the identifier
func (r *Resource) IdentifierFields() []*Field {
	out := make([]*Field, 0, len(r.Identifier.Fields))
	for _, name := range r.Identifier.Fields {
		if f, ok := r.fields[name]; ok {
			out = append(out, f)
		}
	}
	return out
}

// IdentifierColumn returns the single identifier column.
// Composite identifiers have no single column and return "".
func (r *Resource) IdentifierColumn() string {
	if r.Identifier.Kind == IdentifierComposite {
		return ""
	}
	fields := r.IdentifierFields()
	if len(fields) == 0 {
		return ""
	}
	return fields[0].Column
}

// IdentifierValue extracts the identifier from an item
func (r *Resource) IdentifierValue(item Item) any {
	if r.Identifier.Kind == IdentifierComposite {
		out := make(map[string]any, len(r.Identifier.Fields))
		for _, name := range r.Identifier.Fields {
			out[name] = item[name]
		}
		return out
	}
	if len(r.Identifier.Fields) == 0 {
		return nil
	}
	return item[r.Identifier.Fields[0]]
}

// FormatIdentifier renders an identifier for use in an IRI
func (r *Resource) FormatIdentifier(id any) string {
	if composite, ok := id.(map[string]any); ok {
		parts := make([]string, 0, len(r.Identifier.Fields))
		for _, name := range r.Identifier.Fields {
			parts = append(parts, fmt.Sprintf("%s=%v", name, composite[name]))
		}
		return strings.Join(parts, ";")
	}
	return fmt.Sprint(id)
}

// ParseIdentifier converts the identifier segment of an IRI
func (r *Resource) ParseIdentifier(raw string) (any, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty identifier")
	}
	switch r.Identifier.Kind {
	case IdentifierAuto:
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid identifier %q: %w", raw, err)
		}
		return id, nil
	case IdentifierUUID:
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid identifier %q: %w", raw, err)
		}
		return id.String(), nil
	case IdentifierComposite:
		out := make(map[string]any, len(r.Identifier.Fields))
		for _, part := range strings.Split(raw, ";") {
			key, value, ok := strings.Cut(part, "=")
			if !ok {
				return nil, fmt.Errorf("invalid composite identifier %q", raw)
			}
			f, found := r.fields[key]
			if !found || !r.isIdentifierField(key) {
				return nil, fmt.Errorf("unknown identifier part %q", key)
			}
			v, err := parseScalar(f, value)
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		if len(out) != len(r.Identifier.Fields) {
			return nil, fmt.Errorf("incomplete composite identifier %q", raw)
		}
		return out, nil
	default:
		fields := r.IdentifierFields()
		if len(fields) == 0 {
			return nil, fmt.Errorf("resource %s has no identifier", r.Name)
		}
		return parseScalar(fields[0], raw)
	}
}

func (r *Resource) isIdentifierField(name string) bool {
	for _, f := range r.Identifier.Fields {
		if f == name {
			return true
		}
	}
	return false
}

func parseScalar(f *Field, raw string) (any, error) {
	switch f.Type {
	case TypeInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q for %s", raw, f.Name)
		}
		return v, nil
	default:
		return raw, nil
	}
}

// ReadableFields returns fields exposed for the given groups, sorted by name
func (r *Resource) ReadableFields(groups []string) []*Field {
	out := make([]*Field, 0, len(r.Fields))
	for _, f := range r.Fields {
		if f.InGroups(groups) {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Resource) index() {
	r.fields = make(map[string]*Field, len(r.Fields))
	for _, f := range r.Fields {
		r.fields[f.Name] = f
	}
}
