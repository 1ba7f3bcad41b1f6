package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/platinummonkey/gantry/pkg/metadata"
)

// RootAlias is the table alias of the queried resource
const RootAlias = "o"

var (
	// ErrUnknownProperty is returned for property paths that match no field
	ErrUnknownProperty = errors.New("unknown property")
	// ErrNotFilterable is returned for paths that cannot be used in a condition
	ErrNotFilterable = errors.New("property cannot be filtered")
)

// Nulls controls where NULL values are placed in an ordering
type Nulls string

const (
	NullsDefault     Nulls = ""
	NullsSmallest    Nulls = "nulls_smallest"
	NullsLargest     Nulls = "nulls_largest"
	NullsAlwaysFirst Nulls = "nulls_always_first"
	NullsAlwaysLast  Nulls = "nulls_always_last"
)

// Order directions
const (
	DirectionAsc  = "ASC"
	DirectionDesc = "DESC"
)

// many-to-many join table columns
const (
	joinTableSourceID = "source_id"
	joinTableTargetID = "target_id"
)

// JoinTableColumns returns the source and target columns of join tables
func JoinTableColumns() (source, target string) {
	return joinTableSourceID, joinTableTargetID
}

// Column is a property path resolved against the query
type Column struct {
	// Expr is the qualified SQL column, e.g. j1.name
	Expr string
	// Field is the leaf field of the path
	Field *metadata.Field
	// Resource owns the leaf field
	Resource *metadata.Resource
	// Relation is set when the path ends on an association; Expr then holds
	// the related identifier
	Relation *metadata.Relation
	// ToMany reports whether the path crosses a collection association
	ToMany bool
}

type join struct {
	sql string
}

type orderExpr struct {
	expr      string
	direction string
}

// Builder assembles a SELECT over one resource. Conditions are ANDed;
// WithinOr collects conditions into a single OR group.
//
// Arguments are bound in the order Arg is called, so callers must request
// placeholders in the textual order of the conditions they produce.
type Builder struct {
	dialect  Dialect
	resource *metadata.Resource

	joins    []join
	aliases  map[string]string
	aliasSeq int

	where []string
	group *[]string
	args  []any

	orders   []orderExpr
	distinct bool
	limit    int
	offset   int
}

// NewBuilder creates a builder for a resource. Child resources of a single
// table hierarchy are restricted to their discriminator values.
func NewBuilder(dialect Dialect, res *metadata.Resource) *Builder {
	b := &Builder{
		dialect:  dialect,
		resource: res,
		aliases:  make(map[string]string),
	}
	if res.Parent() != nil {
		if column := res.DiscriminatorColumn(); column != "" {
			values := make([]string, 0)
			for _, r := range hierarchy(res) {
				values = append(values, QuoteLiteral(r.DiscriminatorValue()))
			}
			b.where = append(b.where, fmt.Sprintf("%s.%s IN (%s)", RootAlias, column, strings.Join(values, ", ")))
		}
	}
	return b
}

func hierarchy(res *metadata.Resource) []*metadata.Resource {
	out := []*metadata.Resource{res}
	for _, c := range res.Children() {
		out = append(out, hierarchy(c)...)
	}
	return out
}

// Dialect returns the dialect used for placeholders
func (b *Builder) Dialect() Dialect {
	return b.dialect
}

// Resource returns the queried resource
func (b *Builder) Resource() *metadata.Resource {
	return b.resource
}

// Arg binds a value and returns its placeholder
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

// ArgList binds several values for an IN list
func (b *Builder) ArgList(values []any) string {
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = b.Arg(v)
	}
	return strings.Join(placeholders, ", ")
}

// Args returns the bound arguments
func (b *Builder) Args() []any {
	return b.args
}

// Where adds a condition
func (b *Builder) Where(condition string) {
	if b.group != nil {
		*b.group = append(*b.group, condition)
		return
	}
	b.where = append(b.where, condition)
}

// WithinOr runs fn collecting its conditions into one OR group
func (b *Builder) WithinOr(fn func() error) error {
	previous := b.group
	var conditions []string
	b.group = &conditions
	err := fn()
	b.group = previous
	if err != nil {
		return err
	}
	switch len(conditions) {
	case 0:
	case 1:
		b.Where(conditions[0])
	default:
		b.Where("(" + strings.Join(conditions, " OR ") + ")")
	}
	return nil
}

// Conditions returns the current top level conditions
func (b *Builder) Conditions() []string {
	return b.where
}

// Resolve turns a dotted property path into a column, joining relations as
// needed: "relatedDummy.thirdLevel.level", "embeddedDummy.dummyName".
func (b *Builder) Resolve(path string) (Column, error) {
	parts := strings.Split(path, ".")
	res := b.resource
	alias := RootAlias
	toMany := false

	for i := 0; i < len(parts); i++ {
		last := i == len(parts)-1
		f, ok := lookupField(res, parts[i])
		if !ok {
			return Column{}, fmt.Errorf("%s on %s: %w", path, b.resource.Name, ErrUnknownProperty)
		}

		switch {
		case f.Type == metadata.TypeEmbedded:
			if i+1 != len(parts)-1 {
				return Column{}, fmt.Errorf("%s: embedded values need one sub property: %w", path, ErrNotFilterable)
			}
			sub, ok := f.EmbeddedField(parts[i+1])
			if !ok {
				return Column{}, fmt.Errorf("%s on %s: %w", path, b.resource.Name, ErrUnknownProperty)
			}
			return Column{Expr: alias + "." + sub.Column, Field: sub, Resource: res, ToMany: toMany}, nil

		case f.Relation != nil:
			rel := f.Relation
			if rel.TargetResource() == nil {
				return Column{}, fmt.Errorf("%s: relation to %s is not resolved", path, rel.Target)
			}
			if last && rel.IsOwningToOne() {
				return Column{Expr: alias + "." + f.Column, Field: f, Resource: res, Relation: rel, ToMany: toMany}, nil
			}
			next, err := b.join(alias, res, f)
			if err != nil {
				return Column{}, err
			}
			if rel.IsToMany() {
				toMany = true
			}
			if last {
				target := rel.TargetResource()
				idColumn := target.IdentifierColumn()
				if idColumn == "" {
					return Column{}, fmt.Errorf("%s: composite targets: %w", path, ErrNotFilterable)
				}
				return Column{Expr: next + "." + idColumn, Field: f, Resource: res, Relation: rel, ToMany: toMany}, nil
			}
			alias = next
			res = rel.TargetResource()

		default:
			if !last {
				return Column{}, fmt.Errorf("%s: %s is not a relation: %w", path, f.Name, ErrNotFilterable)
			}
			return Column{Expr: alias + "." + f.Column, Field: f, Resource: res, ToMany: toMany}, nil
		}
	}
	return Column{}, fmt.Errorf("%s: %w", path, ErrUnknownProperty)
}

// lookupField finds a property on a resource or, for hierarchy roots, on
// one of its children
func lookupField(res *metadata.Resource, name string) (*metadata.Field, bool) {
	if f, ok := res.Field(name); ok {
		return f, true
	}
	for _, c := range res.Children() {
		if f, ok := lookupField(c, name); ok {
			return f, true
		}
	}
	return nil, false
}

func (b *Builder) nextAlias(prefix string) string {
	b.aliasSeq++
	return prefix + strconv.Itoa(b.aliasSeq)
}

// join adds the LEFT JOIN for relation f from alias and returns the target alias
func (b *Builder) join(alias string, res *metadata.Resource, f *metadata.Field) (string, error) {
	key := alias + "." + f.Name
	if existing, ok := b.aliases[key]; ok {
		return existing, nil
	}

	rel := f.Relation
	target := rel.TargetResource()
	targetID := target.IdentifierColumn()
	sourceID := res.IdentifierColumn()
	if targetID == "" || sourceID == "" {
		return "", fmt.Errorf("%s: joins on composite identifiers: %w", f.Name, ErrNotFilterable)
	}

	next := b.nextAlias("j")
	switch {
	case rel.IsOwningToOne():
		b.joins = append(b.joins, join{sql: fmt.Sprintf("LEFT JOIN %s %s ON %s.%s = %s.%s",
			target.Table, next, next, targetID, alias, f.Column)})

	case rel.Kind == metadata.ManyToMany && rel.MappedBy == "":
		link := next + "_t"
		b.joins = append(b.joins,
			join{sql: fmt.Sprintf("LEFT JOIN %s %s ON %s.%s = %s.%s",
				rel.JoinTable, link, link, joinTableSourceID, alias, sourceID)},
			join{sql: fmt.Sprintf("LEFT JOIN %s %s ON %s.%s = %s.%s",
				target.Table, next, next, targetID, link, joinTableTargetID)},
		)

	case rel.Kind == metadata.ManyToMany:
		owning, _ := target.Field(rel.MappedBy)
		link := next + "_t"
		b.joins = append(b.joins,
			join{sql: fmt.Sprintf("LEFT JOIN %s %s ON %s.%s = %s.%s",
				owning.Relation.JoinTable, link, link, joinTableTargetID, alias, sourceID)},
			join{sql: fmt.Sprintf("LEFT JOIN %s %s ON %s.%s = %s.%s",
				target.Table, next, next, targetID, link, joinTableSourceID)},
		)

	default:
		owning, ok := target.Field(rel.MappedBy)
		if !ok || owning.Column == "" {
			return "", fmt.Errorf("%s: inverse side %s has no column: %w", f.Name, rel.MappedBy, ErrNotFilterable)
		}
		b.joins = append(b.joins, join{sql: fmt.Sprintf("LEFT JOIN %s %s ON %s.%s = %s.%s",
			target.Table, next, next, owning.Column, alias, sourceID)})
	}

	if rel.IsToMany() {
		b.distinct = true
	}
	b.aliases[key] = next
	return next, nil
}

// JoinPath joins every relation of a dotted path and returns the alias and
// resource of its last target
func (b *Builder) JoinPath(path string) (string, *metadata.Resource, error) {
	alias := RootAlias
	res := b.resource
	if path == "" {
		return alias, res, nil
	}
	for _, part := range strings.Split(path, ".") {
		f, ok := lookupField(res, part)
		if !ok {
			return "", nil, fmt.Errorf("%s on %s: %w", path, b.resource.Name, ErrUnknownProperty)
		}
		if f.Relation == nil || f.Relation.TargetResource() == nil {
			return "", nil, fmt.Errorf("%s: %s is not a relation: %w", path, part, ErrNotFilterable)
		}
		next, err := b.join(alias, res, f)
		if err != nil {
			return "", nil, err
		}
		alias, res = next, f.Relation.TargetResource()
	}
	return alias, res, nil
}

// ExistsCondition returns an EXISTS subquery matching items that hold at
// least one element in the collection at path
func (b *Builder) ExistsCondition(path string) (string, error) {
	parent, name := "", path
	if i := strings.LastIndex(path, "."); i >= 0 {
		parent, name = path[:i], path[i+1:]
	}
	alias, res, err := b.JoinPath(parent)
	if err != nil {
		return "", err
	}

	f, ok := lookupField(res, name)
	if !ok || f.Relation == nil || f.Relation.IsOwningToOne() {
		return "", fmt.Errorf("%s: %w", path, ErrNotFilterable)
	}
	rel := f.Relation
	target := rel.TargetResource()
	sourceID := res.IdentifierColumn()
	if target == nil || sourceID == "" {
		return "", fmt.Errorf("%s: %w", path, ErrNotFilterable)
	}
	sub := b.nextAlias("s")

	switch {
	case rel.Kind == metadata.ManyToMany && rel.MappedBy == "":
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.%s = %s.%s)",
			rel.JoinTable, sub, sub, joinTableSourceID, alias, sourceID), nil
	case rel.Kind == metadata.ManyToMany:
		owning, _ := target.Field(rel.MappedBy)
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.%s = %s.%s)",
			owning.Relation.JoinTable, sub, sub, joinTableTargetID, alias, sourceID), nil
	default:
		owning, ok := target.Field(rel.MappedBy)
		if !ok || owning.Column == "" {
			return "", fmt.Errorf("%s: %w", path, ErrNotFilterable)
		}
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.%s = %s.%s)",
			target.Table, sub, sub, owning.Column, alias, sourceID), nil
	}
}

// OrderBy appends an ordering on a resolved expression
func (b *Builder) OrderBy(expr, direction string, nulls Nulls) {
	direction = strings.ToUpper(direction)
	if direction != DirectionDesc {
		direction = DirectionAsc
	}

	nullsFirst, explicit := false, true
	switch nulls {
	case NullsSmallest:
		nullsFirst = direction == DirectionAsc
	case NullsLargest:
		nullsFirst = direction == DirectionDesc
	case NullsAlwaysFirst:
		nullsFirst = true
	case NullsAlwaysLast:
		nullsFirst = false
	default:
		explicit = false
	}
	if explicit {
		rank := fmt.Sprintf("CASE WHEN %s IS NULL THEN 1 ELSE 0 END", expr)
		if nullsFirst {
			rank = fmt.Sprintf("CASE WHEN %s IS NULL THEN 0 ELSE 1 END", expr)
		}
		b.orders = append(b.orders, orderExpr{expr: rank, direction: DirectionAsc})
	}
	b.orders = append(b.orders, orderExpr{expr: expr, direction: direction})
}

// HasOrder reports whether an ordering was added
func (b *Builder) HasOrder() bool {
	return len(b.orders) > 0
}

// Paginate limits the result window. A non-positive limit disables paging.
func (b *Builder) Paginate(limit, offset int) {
	b.limit = limit
	b.offset = offset
}

// Distinct reports whether collection joins repeat root rows, forcing a
// DISTINCT or grouped select
func (b *Builder) Distinct() bool {
	return b.distinct
}

func (b *Builder) from(sb *strings.Builder) {
	sb.WriteString(" FROM ")
	sb.WriteString(b.resource.Table)
	sb.WriteString(" ")
	sb.WriteString(RootAlias)
	for _, j := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(j.sql)
	}
	sb.WriteString(" WHERE 1=1")
	for _, cond := range b.where {
		sb.WriteString(" AND ")
		sb.WriteString(cond)
	}
}

// SelectSQL renders the paginated SELECT of the given root columns.
//
// Collection joins repeat root rows. Without joined orderings a DISTINCT
// select collapses them; an ordering on a joined column instead groups by
// the root columns and sorts on MIN (ascending) or MAX (descending) of the
// joined values, so each item holds exactly one row in the page window.
func (b *Builder) SelectSQL(columns ...string) string {
	grouped := b.distinct && b.ordersBeyond(columns)

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if b.distinct && !grouped {
		sb.WriteString("DISTINCT ")
	}
	for i, c := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(RootAlias)
		sb.WriteString(".")
		sb.WriteString(c)
	}

	orderTerms := make([]string, len(b.orders))
	for i, o := range b.orders {
		term := o.expr
		if grouped && !isRootColumn(o.expr, columns) {
			alias := fmt.Sprintf("ord_%d", i)
			sb.WriteString(", ")
			sb.WriteString(aggregate(o))
			sb.WriteString(" AS ")
			sb.WriteString(alias)
			term = alias
		}
		orderTerms[i] = term + " " + o.direction
	}

	b.from(&sb)

	if grouped {
		sb.WriteString(" GROUP BY ")
		for i, c := range columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(RootAlias)
			sb.WriteString(".")
			sb.WriteString(c)
		}
	}
	if len(orderTerms) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(orderTerms, ", "))
	}
	if b.limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", b.limit, b.offset))
	}
	return sb.String()
}

// ordersBeyond reports whether an ordering uses a column outside columns
func (b *Builder) ordersBeyond(columns []string) bool {
	for _, o := range b.orders {
		if !isRootColumn(o.expr, columns) {
			return true
		}
	}
	return false
}

// aggregate folds a joined ordering over the rows of one item: the
// smallest value leads an ascending sort and the largest a descending one
func aggregate(o orderExpr) string {
	if o.direction == DirectionDesc {
		return "MAX(" + o.expr + ")"
	}
	return "MIN(" + o.expr + ")"
}

func isRootColumn(expr string, columns []string) bool {
	for _, c := range columns {
		if expr == RootAlias+"."+c {
			return true
		}
	}
	return false
}

// CountSQL renders the total count of distinct root items
func (b *Builder) CountSQL() string {
	var ids []string
	for _, f := range b.resource.IdentifierFields() {
		ids = append(ids, RootAlias+"."+f.Column)
	}
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) FROM (SELECT DISTINCT ")
	sb.WriteString(strings.Join(ids, ", "))
	b.from(&sb)
	sb.WriteString(") c")
	return sb.String()
}
