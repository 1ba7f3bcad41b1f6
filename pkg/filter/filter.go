package filter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/query"
)

var (
	// ErrUnknownFilter is returned for filter types nobody registered
	ErrUnknownFilter = errors.New("unknown filter type")
	// ErrParameterNotSupported is returned by strict resources for undeclared keys
	ErrParameterNotSupported = errors.New("Parameter not supported")
)

// Filter turns query parameters into query conditions
type Filter interface {
	// Apply adds the conditions matching params. Values the filter cannot
	// interpret are ignored.
	Apply(ctx context.Context, b *query.Builder, params Params) error
	// Describe lists the query variables the filter understands
	Describe() []Description
}

// Description documents one query variable, rendered as a hydra:search mapping
type Description struct {
	Variable     string
	Property     string
	Type         string
	Required     bool
	Strategy     string
	IsCollection bool
}

// Binding ties a query key to a property
type Binding struct {
	// Key is the top level query key
	Key string
	// Sub is the nested key for bindings like order[name], empty otherwise
	Sub      string
	Property string
	// Option is the filter specific property option, e.g. a search strategy
	Option   string
	Required bool
}

// Variable returns the query variable, e.g. "order[name]"
func (bd Binding) Variable() string {
	if bd.Sub == "" {
		return bd.Key
	}
	return bd.Key + "[" + bd.Sub + "]"
}

// Param returns what the request sent for this binding
func (bd Binding) Param(params Params) (*Param, bool) {
	param, ok := params.Get(bd.Key)
	if !ok {
		return nil, false
	}
	if bd.Sub == "" {
		return param, !param.Empty()
	}
	values, ok := param.Sub[bd.Sub]
	if !ok {
		return nil, false
	}
	return &Param{Values: values}, true
}

// Config is what a filter is built from
type Config struct {
	Resource *metadata.Resource
	Registry *metadata.Registry
	Bindings []Binding
	Args     map[string]string
}

// Arg returns a filter argument with a fallback
func (c Config) Arg(key, fallback string) string {
	if v, ok := c.Args[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Constructor builds a filter
type Constructor func(cfg Config) (Filter, error)

// Type describes a filter type: how to build it, which properties it
// applies to when none are listed and how resource level bindings are keyed
type Type struct {
	New      Constructor
	Supports func(f *metadata.Field) bool
	// ParameterArg names the argument overriding ParameterName
	ParameterArg string
	// ParameterName, when set, nests properties below one key: order[name]
	ParameterName string
}

var (
	typesMu sync.RWMutex
	types   = map[string]Type{}
)

// Register makes a filter type available by name
func Register(name string, t Type) {
	typesMu.Lock()
	defer typesMu.Unlock()
	types[name] = t
}

// Lookup returns a registered filter type
func Lookup(name string) (Type, bool) {
	typesMu.RLock()
	defer typesMu.RUnlock()
	t, ok := types[name]
	return t, ok
}

func init() {
	Register("boolean", Type{New: NewBooleanFilter, Supports: isType(metadata.TypeBool)})
	Register("date", Type{New: NewDateFilter, Supports: isTemporal})
	Register("range", Type{New: NewRangeFilter, Supports: isNumeric})
	Register("numeric", Type{New: NewNumericFilter, Supports: isNumeric})
	Register("order", Type{New: NewOrderFilter, Supports: isOrderable, ParameterArg: "orderParameterName", ParameterName: "order"})
	Register("exists", Type{New: NewExistsFilter, Supports: isNullable, ParameterArg: "parameterName", ParameterName: "exists"})
	Register("search", Type{New: NewSearchFilter, Supports: isSearchable})
	Register("iri", Type{New: NewIriFilter, Supports: isRelation})
	Register("exact", Type{New: NewExactFilter, Supports: isSearchable})
	Register("partial", Type{New: NewPartialSearchFilter, Supports: isTextual})
	Register("comparison", Type{New: NewComparisonFilter, Supports: isComparable})
	Register("or", Type{New: NewOrFilter, Supports: isSearchable})
}

// New builds the filter declared by ref on a resource
func New(ref metadata.FilterRef, res *metadata.Resource, reg *metadata.Registry) (Filter, error) {
	t, ok := Lookup(ref.Type)
	if !ok {
		return nil, fmt.Errorf("%s on %s: %w", ref.Type, res.Name, ErrUnknownFilter)
	}
	return t.New(Config{
		Resource: res,
		Registry: reg,
		Bindings: resourceBindings(t, ref, res),
		Args:     ref.Args,
	})
}

// resourceBindings keys each property of a resource level filter
func resourceBindings(t Type, ref metadata.FilterRef, res *metadata.Resource) []Binding {
	properties := make([]string, 0, len(ref.Properties))
	for p := range ref.Properties {
		properties = append(properties, p)
	}
	if len(properties) == 0 && t.Supports != nil {
		for _, f := range res.Fields {
			if t.Supports(f) {
				properties = append(properties, f.Name)
			}
		}
	}
	sort.Strings(properties)

	nested := t.ParameterName
	if t.ParameterArg != "" {
		if v, ok := ref.Args[t.ParameterArg]; ok && v != "" {
			nested = v
		}
	}

	bindings := make([]Binding, 0, len(properties))
	for _, p := range properties {
		bd := Binding{Key: p, Property: p, Option: ref.Properties[p]}
		if nested != "" {
			bd.Key, bd.Sub = nested, p
		}
		bindings = append(bindings, bd)
	}
	return bindings
}

// parameterBindings keys a declared query parameter. A ":property"
// placeholder in the key yields one binding per listed property.
func parameterBindings(p metadata.Parameter) []Binding {
	option := ""
	if len(p.Filter.Properties) > 0 {
		property := p.Property
		if property == "" {
			property = p.Key
		}
		option = p.Filter.Properties[property]
	}

	if base, ok := strings.CutSuffix(p.Key, "[:property]"); ok {
		bindings := make([]Binding, 0, len(p.Properties))
		for _, prop := range p.Properties {
			bindings = append(bindings, Binding{
				Key:      base,
				Sub:      prop,
				Property: prop,
				Option:   p.Filter.Properties[prop],
				Required: p.Required,
			})
		}
		return bindings
	}

	property := p.Property
	if property == "" {
		property = p.Key
	}
	return []Binding{{Key: p.Key, Property: property, Option: option, Required: p.Required}}
}

func isType(t metadata.FieldType) func(*metadata.Field) bool {
	return func(f *metadata.Field) bool { return f.Type == t }
}

func isTemporal(f *metadata.Field) bool { return f.Type.IsTemporal() }

func isNumeric(f *metadata.Field) bool { return f.Type.IsNumeric() }

func isTextual(f *metadata.Field) bool { return f.Type.IsTextual() }

func isRelation(f *metadata.Field) bool { return f.Relation != nil }

func isSearchable(f *metadata.Field) bool {
	return f.Type.IsTextual() || f.Relation != nil
}

func isComparable(f *metadata.Field) bool {
	return f.Type.IsNumeric() || f.Type.IsTemporal() || f.Type.IsTextual()
}

func isOrderable(f *metadata.Field) bool {
	if f.Relation != nil {
		return f.Relation.IsOwningToOne()
	}
	return f.Type != metadata.TypeEmbedded
}

func isNullable(f *metadata.Field) bool {
	if f.Relation != nil {
		return true
	}
	return f.Nullable && f.Type != metadata.TypeEmbedded
}
