package fixtures

import (
	"time"

	"github.com/platinummonkey/gantry/pkg/filter"
	"github.com/platinummonkey/gantry/pkg/metadata"
)

// FilteredBooleanParameter declares boolean query parameters
type FilteredBooleanParameter struct {
	ID      int64 `json:"id" orm:"id;generated"`
	Active  *bool `json:"active"`
	Enabled *bool `json:"enabled"`
}

// FilteredDateParameter declares date query parameters
type FilteredDateParameter struct {
	ID        int64      `json:"id" orm:"id;generated"`
	CreatedAt *time.Time `json:"createdAt"`
}

// FilteredRangeParameter declares range query parameters
type FilteredRangeParameter struct {
	ID       int64 `json:"id" orm:"id;generated"`
	Quantity int   `json:"quantity"`
}

// FilteredOrderParameter declares order query parameters
type FilteredOrderParameter struct {
	ID        int64      `json:"id" orm:"id;generated"`
	CreatedAt *time.Time `json:"createdAt"`
	Name      string     `json:"name"`
}

// FilteredExistsParameter declares exists query parameters
type FilteredExistsParameter struct {
	ID          int64   `json:"id" orm:"id;generated"`
	Description *string `json:"description"`
}

// FilteredSearchParameter rejects query parameters it does not declare
type FilteredSearchParameter struct {
	ID          int64  `json:"id" orm:"id;generated"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// FilteredRequiredParameter cannot be listed without a name
type FilteredRequiredParameter struct {
	ID   int64  `json:"id" orm:"id;generated"`
	Name string `json:"name"`
}

func parameterResources() []*metadata.Resource {
	return []*metadata.Resource{
		metadata.MustParse("FilteredBooleanParameter", FilteredBooleanParameter{},
			metadata.WithParameters(
				metadata.Parameter{Key: "active", Filter: metadata.FilterRef{Type: "boolean"}},
				metadata.Parameter{Key: "enabled", Filter: metadata.FilterRef{Type: "boolean"}},
			),
		),
		metadata.MustParse("FilteredDateParameter", FilteredDateParameter{},
			metadata.WithParameters(
				metadata.Parameter{Key: "createdAt", Filter: metadata.FilterRef{Type: "date"}},
				metadata.Parameter{
					Key:      "date_include_null_always",
					Property: "createdAt",
					Filter: metadata.FilterRef{
						Type:       "date",
						Properties: map[string]string{"createdAt": filter.IncludeNullBeforeAndAfter},
					},
				},
			),
		),
		metadata.MustParse("FilteredRangeParameter", FilteredRangeParameter{},
			metadata.WithParameters(
				metadata.Parameter{Key: "quantity", Filter: metadata.FilterRef{Type: "range"}},
				metadata.Parameter{Key: "amount", Property: "quantity", Filter: metadata.FilterRef{Type: "range"}},
			),
		),
		metadata.MustParse("FilteredOrderParameter", FilteredOrderParameter{},
			metadata.WithParameters(
				metadata.Parameter{
					Key:        "order[:property]",
					Properties: []string{"createdAt", "name"},
					Filter:     metadata.FilterRef{Type: "order"},
				},
				metadata.Parameter{
					Key:      "order_created",
					Property: "createdAt",
					Filter: metadata.FilterRef{
						Type:       "order",
						Properties: map[string]string{"createdAt": "asc,nulls_always_last"},
					},
				},
			),
		),
		metadata.MustParse("FilteredExistsParameter", FilteredExistsParameter{},
			metadata.WithParameters(
				metadata.Parameter{Key: "has_description", Property: "description", Filter: metadata.FilterRef{Type: "exists"}},
				metadata.Parameter{
					Key:        "exists[:property]",
					Properties: []string{"description"},
					Filter:     metadata.FilterRef{Type: "exists"},
				},
			),
		),
		metadata.MustParse("FilteredSearchParameter", FilteredSearchParameter{},
			metadata.WithStrictParameters(),
			metadata.WithParameters(
				metadata.Parameter{Key: "name", Filter: metadata.FilterRef{Type: "exact"}},
				metadata.Parameter{Key: "q", Property: "description", Filter: metadata.FilterRef{Type: "partial"}},
			),
		),
		metadata.MustParse("FilteredRequiredParameter", FilteredRequiredParameter{},
			metadata.WithParameters(
				metadata.Parameter{Key: "name", Filter: metadata.FilterRef{Type: "exact"}, Required: true},
			),
		),
	}
}
