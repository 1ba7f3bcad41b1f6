package fixtures

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/platinummonkey/gantry/pkg/filter"
	"github.com/platinummonkey/gantry/pkg/metadata"
)

// DummyDate holds one date per null management mode of the date filter
type DummyDate struct {
	ID                            int64      `json:"id" orm:"id;generated"`
	DummyDate                     *time.Time `json:"dummyDate" orm:"type=date"`
	DateIncludeNullAfter          *time.Time `json:"dateIncludeNullAfter" orm:"type=date"`
	DateIncludeNullBefore         *time.Time `json:"dateIncludeNullBefore" orm:"type=date"`
	DateIncludeNullBeforeAndAfter *time.Time `json:"dateIncludeNullBeforeAndAfter" orm:"type=date"`
}

// DummyImmutableDate has a required date
type DummyImmutableDate struct {
	ID        int64     `json:"id" orm:"id;generated"`
	DummyDate time.Time `json:"dummyDate" orm:"type=date"`
}

// DummyBoolean has a nullable boolean
type DummyBoolean struct {
	ID             int64 `json:"id" orm:"id;generated"`
	IsDummyBoolean *bool `json:"isDummyBoolean"`
}

// ConvertedBoolean exposes a snake cased property name
type ConvertedBoolean struct {
	ID            int64 `json:"id" orm:"id;generated"`
	NameConverted *bool `json:"name_converted"`
}

// DummyProduct is filtered on quantities and prices
type DummyProduct struct {
	ID       int64           `json:"id" orm:"id;generated"`
	Name     string          `json:"name" assert:"notBlank"`
	Quantity int             `json:"quantity" assert:"range(min=0)"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category" orm:"choices=book|food|toy"`
}

func scalarResources() []*metadata.Resource {
	return []*metadata.Resource{
		metadata.MustParse("DummyDate", DummyDate{},
			metadata.WithFilters(
				metadata.Filter("date", map[string]string{
					"dummyDate":                     "",
					"dateIncludeNullAfter":          filter.IncludeNullAfter,
					"dateIncludeNullBefore":         filter.IncludeNullBefore,
					"dateIncludeNullBeforeAndAfter": filter.IncludeNullBeforeAndAfter,
				}),
				metadata.Filter("order", map[string]string{"dummyDate": ""}),
			),
		),
		metadata.MustParse("DummyImmutableDate", DummyImmutableDate{},
			metadata.WithFilters(metadata.Filter("date", map[string]string{"dummyDate": filter.ExcludeNull})),
		),
		metadata.MustParse("DummyBoolean", DummyBoolean{},
			metadata.WithFilters(
				metadata.Filter("boolean", map[string]string{"isDummyBoolean": ""}),
				metadata.Filter("exists", map[string]string{"isDummyBoolean": ""}),
			),
		),
		metadata.MustParse("ConvertedBoolean", ConvertedBoolean{},
			metadata.WithFilters(metadata.Filter("boolean", map[string]string{"name_converted": ""})),
		),
		metadata.MustParse("DummyProduct", DummyProduct{},
			metadata.WithOrder(metadata.OrderSpec{Property: "quantity", Direction: "asc"}),
			metadata.WithFilters(
				metadata.Filter("range", map[string]string{"quantity": ""}),
				metadata.Filter("numeric", map[string]string{"quantity": ""}),
				metadata.Filter("comparison", map[string]string{"price": ""}),
				metadata.Filter("order", map[string]string{"quantity": "", "price": "", "name": ""}),
				metadata.Filter("search", map[string]string{"name": "iword_start", "category": "exact"}),
			),
		),
	}
}
