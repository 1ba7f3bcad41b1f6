package fixtures

import (
	"github.com/google/uuid"

	"github.com/platinummonkey/gantry/pkg/metadata"
)

// UuidDummy is identified by a generated UUID
type UuidDummy struct {
	ID   uuid.UUID `json:"id" orm:"id"`
	Name string    `json:"name" assert:"notBlank"`
}

// SlugDummy is identified by a client supplied slug
type SlugDummy struct {
	Slug string `json:"slug" orm:"id" assert:"notBlank;regex(pattern=^[a-z0-9-]+$)"`
	Name string `json:"name"`
}

// CompositeItem is identified by a code and a version,
// e.g. /composite_items/code=abc;version=2
type CompositeItem struct {
	Code    string `json:"code" orm:"id"`
	Version int64  `json:"version" orm:"id"`
	Field1  string `json:"field1"`
}

// CompositeLabel is identified by a language and a key
type CompositeLabel struct {
	Language string `json:"language" orm:"id" assert:"length(min=2,max=2)"`
	Key      string `json:"key" orm:"id"`
	Value    string `json:"value"`
}

func identifierResources() []*metadata.Resource {
	return []*metadata.Resource{
		metadata.MustParse("UuidDummy", UuidDummy{},
			metadata.WithFilters(metadata.Filter("search", map[string]string{"id": "exact", "name": "partial"})),
		),
		metadata.MustParse("SlugDummy", SlugDummy{},
			metadata.WithFilters(metadata.Filter("order", map[string]string{"slug": "desc"})),
		),
		metadata.MustParse("CompositeItem", CompositeItem{},
			metadata.WithFilters(metadata.Filter("search", map[string]string{"code": "exact"})),
		),
		metadata.MustParse("CompositeLabel", CompositeLabel{},
			metadata.WithFilters(metadata.Filter("search", map[string]string{"language": "exact"})),
		),
	}
}
