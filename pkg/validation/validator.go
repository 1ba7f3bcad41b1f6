package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/platinummonkey/gantry/pkg/metadata"
)

// Violation is one failed constraint
type Violation struct {
	PropertyPath string `json:"propertyPath"`
	Message      string `json:"message"`
	Code         string `json:"code"`
}

// ViolationList is returned as an error when an item is invalid
type ViolationList []Violation

func (l ViolationList) Error() string {
	lines := make([]string, len(l))
	for i, v := range l {
		lines[i] = v.PropertyPath + ": " + v.Message
	}
	return strings.Join(lines, "\n")
}

// Validator checks items against field constraints. Checks are built once
// per field and cached.
type Validator struct {
	mu     sync.RWMutex
	checks map[*metadata.Field][]check
}

// NewValidator creates a validator
func NewValidator() *Validator {
	return &Validator{checks: make(map[*metadata.Field][]check)}
}

// CheckResource reports constraints that cannot be built, such as unknown
// names or malformed arguments
func (v *Validator) CheckResource(res *metadata.Resource) error {
	for _, f := range res.Fields {
		fields := []*metadata.Field{f}
		if f.Type == metadata.TypeEmbedded {
			fields = f.Embedded
		}
		for _, field := range fields {
			if _, err := v.fieldChecks(field); err != nil {
				return fmt.Errorf("resource %s field %s: %w", res.Name, field.Name, err)
			}
		}
	}
	return nil
}

// Validate checks every field of item and returns the violations in field
// declaration order
func (v *Validator) Validate(res *metadata.Resource, item metadata.Item) ViolationList {
	var violations ViolationList
	for _, f := range res.Fields {
		if f.Type == metadata.TypeEmbedded {
			nested, _ := item[f.Name].(metadata.Item)
			if nested == nil {
				if m, ok := item[f.Name].(map[string]any); ok {
					nested = metadata.Item(m)
				}
			}
			violations = v.validateField(violations, f, f.Name, item[f.Name])
			for _, sub := range f.Embedded {
				var value any
				if nested != nil {
					value = nested[sub.Name]
				}
				violations = v.validateField(violations, sub, f.Name+"."+sub.Name, value)
			}
			continue
		}
		violations = v.validateField(violations, f, f.Name, item[f.Name])
	}
	return violations
}

func (v *Validator) validateField(violations ViolationList, f *metadata.Field, path string, value any) ViolationList {
	checks, err := v.fieldChecks(f)
	if err != nil {
		// declarations are verified by CheckResource at registration
		return violations
	}
	for _, c := range checks {
		if message, code, ok := c(value); !ok {
			violations = append(violations, Violation{PropertyPath: path, Message: message, Code: code})
		}
	}
	return violations
}

func (v *Validator) fieldChecks(f *metadata.Field) ([]check, error) {
	v.mu.RLock()
	checks, ok := v.checks[f]
	v.mu.RUnlock()
	if ok {
		return checks, nil
	}

	for _, c := range f.Constraints {
		built, err := newCheck(c)
		if err != nil {
			return nil, err
		}
		checks = append(checks, built)
	}
	if f.Type == metadata.TypeEnum && len(f.Choices) > 0 {
		checks = append(checks, choiceCheck(f.Choices))
	}

	v.mu.Lock()
	v.checks[f] = checks
	v.mu.Unlock()
	return checks, nil
}
