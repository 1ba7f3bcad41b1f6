package metadata

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownResource is returned when a name or IRI matches no resource
	ErrUnknownResource = errors.New("unknown resource")
	// ErrInvalidIRI is returned for IRIs that cannot be parsed into an item reference
	ErrInvalidIRI = errors.New("invalid IRI")
)

// Registry holds all exposed resources and resolves references between them
type Registry struct {
	mu        sync.RWMutex
	resources map[string]*Resource
	order     []string
	byType    map[reflect.Type]*Resource
	resolved  bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		resources: make(map[string]*Resource),
		byType:    make(map[reflect.Type]*Resource),
	}
}

// Register adds resources. Registering a name twice replaces the earlier one.
func (r *Registry) Register(resources ...*Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, res := range resources {
		if _, exists := r.resources[res.Name]; !exists {
			r.order = append(r.order, res.Name)
		}
		r.resources[res.Name] = res
		if res.goType != nil {
			r.byType[res.goType] = res
		}
	}
	r.resolved = false
}

// Resolve links relation targets and inheritance parents. It must be called
// after all resources are registered and before the registry is served.
func (r *Registry) Resolve() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, res := range r.resources {
		res.parent = nil
		res.children = nil
	}

	for _, name := range r.order {
		res := r.resources[name]
		if res.Inheritance == nil || res.Inheritance.Parent == "" {
			continue
		}
		parent, ok := r.resources[res.Inheritance.Parent]
		if !ok {
			return fmt.Errorf("resource %s: parent %q: %w", name, res.Inheritance.Parent, ErrUnknownResource)
		}
		res.parent = parent
		parent.children = append(parent.children, res)
	}

	for _, name := range r.order {
		res := r.resources[name]
		if res.parent != nil {
			res.Table = res.Root().Table
		}
		if err := r.resolveFields(res, res.Fields); err != nil {
			return fmt.Errorf("resource %s: %w", name, err)
		}
	}

	r.resolved = true
	return nil
}

func (r *Registry) resolveFields(res *Resource, fields []*Field) error {
	for _, f := range fields {
		if len(f.Embedded) > 0 {
			if err := r.resolveFields(res, f.Embedded); err != nil {
				return err
			}
		}
		if f.Relation == nil {
			continue
		}
		target, ok := r.resources[f.Relation.Target]
		if !ok {
			return fmt.Errorf("field %s: target %q: %w", f.Name, f.Relation.Target, ErrUnknownResource)
		}
		f.Relation.target = target

		if f.Relation.MappedBy != "" {
			owning, ok := target.fields[f.Relation.MappedBy]
			if !ok || owning.Relation == nil {
				return fmt.Errorf("field %s: mappedBy %q is not a relation on %s", f.Name, f.Relation.MappedBy, target.Name)
			}
		}
		if f.Relation.Kind == OneToMany && f.Relation.MappedBy == "" {
			return fmt.Errorf("field %s: oneToMany relations need mappedBy", f.Name)
		}
	}
	return nil
}

// Get returns a resource by short name
func (r *Registry) Get(name string) (*Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[name]
	return res, ok
}

// MustGet returns a resource or panics, used by fixtures and tests
func (r *Registry) MustGet(name string) *Resource {
	res, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("resource %s is not registered", name))
	}
	return res
}

// ForType returns the resource parsed from the given struct type
func (r *Registry) ForType(t reflect.Type) (*Resource, bool) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byType[t]
	return res, ok
}

// Resources returns all resources in registration order
func (r *Registry) Resources() []*Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Resource, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.resources[name])
	}
	return out
}

// Resolved reports whether Resolve succeeded since the last Register
func (r *Registry) Resolved() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolved
}

// IRI builds the item IRI of a resource, e.g. /chicken_coops/2
func (r *Registry) IRI(res *Resource, id any) string {
	return res.IRIPrefix + "/" + res.FormatIdentifier(id)
}

// CollectionIRI returns the collection path of a resource
func (r *Registry) CollectionIRI(res *Resource) string {
	return res.IRIPrefix
}

// ParseIRI resolves an item IRI into its resource and identifier.
// Both absolute URLs and paths are accepted.
func (r *Registry) ParseIRI(iri string) (*Resource, any, error) {
	path := iri
	if i := strings.Index(path, "://"); i >= 0 {
		rest := path[i+3:]
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return nil, nil, fmt.Errorf("%q: %w", iri, ErrInvalidIRI)
		}
		path = rest[slash:]
	}
	if q := strings.IndexAny(path, "?#"); q >= 0 {
		path = path[:q]
	}
	if !strings.HasPrefix(path, "/") {
		return nil, nil, fmt.Errorf("%q: %w", iri, ErrInvalidIRI)
	}

	slash := strings.LastIndex(path, "/")
	prefix, raw := path[:slash], path[slash+1:]
	if prefix == "" || raw == "" {
		return nil, nil, fmt.Errorf("%q: %w", iri, ErrInvalidIRI)
	}

	res := r.byPrefix(prefix)
	if res == nil {
		return nil, nil, fmt.Errorf("%q: %w", iri, ErrUnknownResource)
	}
	id, err := res.ParseIdentifier(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%q: %w: %v", iri, ErrInvalidIRI, err)
	}
	return res, id, nil
}

func (r *Registry) byPrefix(prefix string) *Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		if res := r.resources[name]; res.IRIPrefix == prefix {
			return res
		}
	}
	return nil
}

// Names returns the sorted resource names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}
