package fixtures

import (
	"fmt"

	"github.com/platinummonkey/gantry/pkg/metadata"
)

// Resources parses every fixture resource. Each call returns fresh
// metadata so registries never share resolved state.
func Resources() []*metadata.Resource {
	var out []*metadata.Resource
	for _, group := range [][]*metadata.Resource{
		dummyResources(),
		scalarResources(),
		relationResources(),
		identifierResources(),
		securityResources(),
		parameterResources(),
	} {
		out = append(out, group...)
	}
	return out
}

// NewRegistry registers and resolves every fixture resource. Overlays are
// applied before resolution so they may add filters and operations.
func NewRegistry(overlays ...*metadata.Overlay) (*metadata.Registry, error) {
	reg := metadata.NewRegistry()
	reg.Register(Resources()...)
	for _, o := range overlays {
		if err := o.Apply(reg); err != nil {
			return nil, fmt.Errorf("failed to apply overlay: %w", err)
		}
	}
	if err := reg.Resolve(); err != nil {
		return nil, fmt.Errorf("failed to resolve fixtures: %w", err)
	}
	return reg, nil
}
