package fixtures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gantry/pkg/filter"
	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/security"
	"github.com/platinummonkey/gantry/pkg/validation"
)

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	assert.True(t, reg.Resolved())
	assert.Len(t, reg.Resources(), len(Resources()))

	checker := security.NewChecker(nil)
	validator := validation.NewValidator()
	for _, res := range reg.Resources() {
		t.Run(res.Name, func(t *testing.T) {
			require.NoError(t, checker.CheckResource(res))
			require.NoError(t, validator.CheckResource(res))
			_, err := filter.NewSet(res, reg, "page", "itemsPerPage", "pagination")
			require.NoError(t, err)
		})
	}
}

func TestResourcesAreFresh(t *testing.T) {
	a, err := NewRegistry()
	require.NoError(t, err)
	b, err := NewRegistry()
	require.NoError(t, err)
	assert.NotSame(t, a.MustGet("Dummy"), b.MustGet("Dummy"))
}

func TestIRIPrefixes(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	tests := []struct {
		name string
		want string
	}{
		{"Dummy", "/dummies"},
		{"RelatedDummy", "/related_dummies"},
		{"ChickenCoop", "/chicken_coops"},
		{"UuidDummy", "/uuid_dummies"},
		{"DummyProduct", "/dummy_products"},
		{"Cat", "/cats"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.CollectionIRI(reg.MustGet(tt.name)))
		})
	}
}

func TestIdentifiers(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	assert.Equal(t, metadata.IdentifierAuto, reg.MustGet("Dummy").Identifier.Kind)
	assert.Equal(t, metadata.IdentifierUUID, reg.MustGet("UuidDummy").Identifier.Kind)
	assert.Equal(t, metadata.IdentifierNatural, reg.MustGet("SlugDummy").Identifier.Kind)
	assert.Equal(t, metadata.IdentifierComposite, reg.MustGet("CompositeItem").Identifier.Kind)

	composite := reg.MustGet("CompositeItem")
	id, err := composite.ParseIdentifier("code=abc;version=2")
	require.NoError(t, err)
	assert.Equal(t, "code=abc;version=2", composite.FormatIdentifier(id))
}

func TestHierarchy(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	animal := reg.MustGet("Animal")
	cat := reg.MustGet("Cat")
	assert.True(t, cat.IsHierarchy())
	assert.Same(t, animal, cat.Root())
	assert.Equal(t, animal.Table, cat.Table)
	assert.Equal(t, "cat", cat.DiscriminatorValue())
	assert.Len(t, animal.Children(), 2)
}

func TestOverlay(t *testing.T) {
	overlay := &metadata.Overlay{
		Resources: map[string]metadata.ResourceOverlay{
			"ThirdLevel": {
				Filters: []metadata.FilterRef{metadata.Filter("search", map[string]string{"level": "exact"})},
			},
		},
	}
	reg, err := NewRegistry(overlay)
	require.NoError(t, err)
	assert.Len(t, reg.MustGet("ThirdLevel").Filters, 1)

	_, err = NewRegistry(&metadata.Overlay{Resources: map[string]metadata.ResourceOverlay{"Nope": {}}})
	assert.Error(t, err)
}
