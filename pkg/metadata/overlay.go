package metadata

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Overlay carries API metadata declared outside of Go code.
//
//	resources:
//	  Chicken:
//	    itemsPerPage: 10
//	    filters:
//	      - type: search
//	        properties: {name: partial}
//	    parameters:
//	      - key: "search[:property]"
//	        properties: [name]
//	        filter: {type: partial}
type Overlay struct {
	Resources map[string]ResourceOverlay `yaml:"resources"`
}

// ResourceOverlay is the overlay of one resource. Zero values leave the
// resource untouched; filters and parameters are appended.
type ResourceOverlay struct {
	Filters          []FilterRef `yaml:"filters"`
	Parameters       []Parameter `yaml:"parameters"`
	Security         string      `yaml:"security"`
	SecurityMessage  string      `yaml:"securityMessage"`
	StrictParameters *bool       `yaml:"strictParameters"`
	ItemsPerPage     int         `yaml:"itemsPerPage"`
	MaxItemsPerPage  int         `yaml:"maxItemsPerPage"`
	ClientPagination *bool       `yaml:"clientPagination"`
	Order            []OrderSpec `yaml:"order"`
	Operations       []OverlayOp `yaml:"operations"`
}

// OverlayOp overrides the security of one operation
type OverlayOp struct {
	Kind            OperationKind `yaml:"kind"`
	Security        string        `yaml:"security"`
	SecurityMessage string        `yaml:"securityMessage"`
}

// LoadOverlay decodes a YAML overlay
func LoadOverlay(r io.Reader) (*Overlay, error) {
	var o Overlay
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil {
		if err == io.EOF {
			return &o, nil
		}
		return nil, fmt.Errorf("failed to decode overlay: %w", err)
	}
	return &o, nil
}

// LoadOverlayFile decodes a YAML overlay from disk
func LoadOverlayFile(path string) (*Overlay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open overlay: %w", err)
	}
	defer f.Close()
	return LoadOverlay(f)
}

// Apply merges the overlay into registered resources
func (o *Overlay) Apply(reg *Registry) error {
	for name, ro := range o.Resources {
		res, ok := reg.Get(name)
		if !ok {
			return fmt.Errorf("overlay resource %s: %w", name, ErrUnknownResource)
		}
		res.Filters = append(res.Filters, ro.Filters...)
		res.Parameters = append(res.Parameters, ro.Parameters...)
		if ro.Security != "" {
			res.Security = ro.Security
			res.SecurityMessage = ro.SecurityMessage
		}
		if ro.StrictParameters != nil {
			res.StrictParameters = *ro.StrictParameters
		}
		if ro.ItemsPerPage > 0 {
			res.Pagination.ItemsPerPage = ro.ItemsPerPage
		}
		if ro.MaxItemsPerPage > 0 {
			res.Pagination.MaxItemsPerPage = ro.MaxItemsPerPage
		}
		if ro.ClientPagination != nil {
			res.Pagination.ClientItemsPerPage = *ro.ClientPagination
			res.Pagination.ClientEnabled = *ro.ClientPagination
		}
		if len(ro.Order) > 0 {
			res.Order = ro.Order
		}
		for _, op := range ro.Operations {
			if err := applyOperation(res, op); err != nil {
				return fmt.Errorf("overlay resource %s: %w", name, err)
			}
		}
	}
	return nil
}

func applyOperation(res *Resource, op OverlayOp) error {
	if len(res.Operations) == 0 {
		return fmt.Errorf("operation %s: resource exposes default operations only", op.Kind)
	}
	for i := range res.Operations {
		if res.Operations[i].Kind == op.Kind {
			res.Operations[i].Security = op.Security
			res.Operations[i].SecurityMessage = op.SecurityMessage
			return nil
		}
	}
	return fmt.Errorf("operation %s is not exposed", op.Kind)
}
