package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/query"
)

// MissingParametersError lists required query parameters that were not sent
type MissingParametersError struct {
	Variables []string
}

func (e *MissingParametersError) Error() string {
	return "missing required parameters: " + strings.Join(e.Variables, ", ")
}

// UnsupportedParameterError names the key a strict resource rejected
type UnsupportedParameterError struct {
	Key string
}

func (e *UnsupportedParameterError) Error() string {
	return fmt.Sprintf("%s: %q", ErrParameterNotSupported.Error(), e.Key)
}

// Unwrap lets errors.Is match ErrParameterNotSupported
func (e *UnsupportedParameterError) Unwrap() error {
	return ErrParameterNotSupported
}

// Set holds every filter declared on a resource, from resource level filter
// references and declared query parameters
type Set struct {
	resource *metadata.Resource
	filters  []Filter
	required []Binding
	keys     map[string]bool
	strict   bool
}

// NewSet builds the filters of a resource. The registry must be resolved.
// allowed lists keys accepted by strict resources besides filter keys,
// such as pagination parameters.
func NewSet(res *metadata.Resource, reg *metadata.Registry, allowed ...string) (*Set, error) {
	s := &Set{
		resource: res,
		keys:     make(map[string]bool),
		strict:   res.StrictParameters,
	}
	for _, key := range allowed {
		s.keys[key] = true
	}

	for _, ref := range res.Filters {
		t, ok := Lookup(ref.Type)
		if !ok {
			return nil, fmt.Errorf("%s on %s: %w", ref.Type, res.Name, ErrUnknownFilter)
		}
		bindings := resourceBindings(t, ref, res)
		if err := s.add(t, bindings, ref.Args, reg); err != nil {
			return nil, err
		}
	}

	for _, p := range res.Parameters {
		t, ok := Lookup(p.Filter.Type)
		if !ok {
			return nil, fmt.Errorf("parameter %s on %s: %s: %w", p.Key, res.Name, p.Filter.Type, ErrUnknownFilter)
		}
		bindings := parameterBindings(p)
		if err := s.add(t, bindings, p.Filter.Args, reg); err != nil {
			return nil, err
		}
		for _, bd := range bindings {
			if bd.Required {
				s.required = append(s.required, bd)
			}
		}
	}
	return s, nil
}

func (s *Set) add(t Type, bindings []Binding, args map[string]string, reg *metadata.Registry) error {
	for _, bd := range bindings {
		if fieldAt(s.resource, bd.Property) == nil {
			return fmt.Errorf("filter on %s: %s: %w", s.resource.Name, bd.Property, query.ErrUnknownProperty)
		}
		s.keys[bd.Key] = true
	}
	f, err := t.New(Config{Resource: s.resource, Registry: reg, Bindings: bindings, Args: args})
	if err != nil {
		return fmt.Errorf("filter on %s: %w", s.resource.Name, err)
	}
	if order, ok := f.(*OrderFilter); ok && s.mergeOrder(order) {
		return nil
	}
	s.filters = append(s.filters, f)
	return nil
}

// mergeOrder folds order into an earlier order filter reading the same
// query key, so one pass over the request keeps its sort precedence
func (s *Set) mergeOrder(order *OrderFilter) bool {
	for _, f := range s.filters {
		existing, ok := f.(*OrderFilter)
		if !ok || !existing.sharesKey(order) {
			continue
		}
		existing.cfg.Bindings = append(existing.cfg.Bindings, order.cfg.Bindings...)
		return true
	}
	return false
}

// Validate checks strict parameters and required parameters
func (s *Set) Validate(params Params) error {
	if s.strict {
		for _, key := range params.Keys() {
			if !s.keys[key] {
				return &UnsupportedParameterError{Key: key}
			}
		}
	}

	var missing []string
	for _, bd := range s.required {
		param, ok := bd.Param(params)
		if !ok || !hasValue(param) {
			missing = append(missing, bd.Variable())
		}
	}
	if len(missing) > 0 {
		return &MissingParametersError{Variables: missing}
	}
	return nil
}

func hasValue(p *Param) bool {
	for _, v := range p.Values {
		if v != "" {
			return true
		}
	}
	for _, values := range p.Sub {
		for _, v := range values {
			if v != "" {
				return true
			}
		}
	}
	return false
}

// Apply validates params and applies every filter
func (s *Set) Apply(ctx context.Context, b *query.Builder, params Params) error {
	if err := s.Validate(params); err != nil {
		return err
	}
	for _, f := range s.filters {
		if err := f.Apply(ctx, b, params); err != nil {
			return err
		}
	}
	return nil
}

// Describe returns the query variables of all filters in declaration order
func (s *Set) Describe() []Description {
	var out []Description
	seen := make(map[string]bool)
	for _, f := range s.filters {
		for _, d := range f.Describe() {
			if seen[d.Variable] {
				continue
			}
			seen[d.Variable] = true
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of filters
func (s *Set) Len() int {
	return len(s.filters)
}
