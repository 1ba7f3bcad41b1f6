package fixtures

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/platinummonkey/gantry/pkg/metadata"
)

// Dummy is the general purpose fixture: scalar fields of every type, a
// to-one and a to-many relation and an embedded value
type Dummy struct {
	ID             int64            `json:"id" orm:"id;generated"`
	Name           string           `json:"name" assert:"notBlank"`
	Alias          *string          `json:"alias"`
	Description    *string          `json:"description" orm:"type=text"`
	DummyDate      *time.Time       `json:"dummyDate"`
	DummyFloat     *float64         `json:"dummyFloat"`
	DummyPrice     *decimal.Decimal `json:"dummyPrice"`
	DummyBoolean   *bool            `json:"dummyBoolean"`
	RelatedDummy   *RelatedDummy    `json:"relatedDummy" orm:"manyToOne=RelatedDummy"`
	RelatedDummies []*RelatedDummy  `json:"relatedDummies" orm:"manyToMany=RelatedDummy"`
	EmbeddedDummy  EmbeddableDummy  `json:"embeddedDummy" orm:"embedded"`
}

// EmbeddableDummy is a value object stored in its owner's table
type EmbeddableDummy struct {
	DummyName    *string          `json:"dummyName"`
	DummyBoolean *bool            `json:"dummyBoolean"`
	DummyDate    *time.Time       `json:"dummyDate"`
	DummyFloat   *float64         `json:"dummyFloat"`
	DummyPrice   *decimal.Decimal `json:"dummyPrice"`
}

// RelatedDummy is the target of Dummy relations. Its item operation reads
// the barcelona group, which embeds ThirdLevel.
type RelatedDummy struct {
	ID           int64       `json:"id" orm:"id;generated"`
	Name         *string     `json:"name" groups:"barcelona"`
	Symfony      string      `json:"symfony" groups:"barcelona"`
	DummyDate    *time.Time  `json:"dummyDate"`
	Age          *int        `json:"age"`
	DummyBoolean *bool       `json:"dummyBoolean"`
	ThirdLevel   *ThirdLevel `json:"thirdLevel" orm:"manyToOne=ThirdLevel" groups:"barcelona"`
}

// ThirdLevel is two relations away from Dummy
type ThirdLevel struct {
	ID    int64 `json:"id" orm:"id;generated"`
	Level int   `json:"level" groups:"barcelona"`
	Test  bool  `json:"test"`
}

func dummyResources() []*metadata.Resource {
	return []*metadata.Resource{
		metadata.MustParse("Dummy", Dummy{},
			metadata.WithPagination(metadata.Pagination{
				Enabled:            true,
				ItemsPerPage:       3,
				MaxItemsPerPage:    30,
				ClientItemsPerPage: true,
				ClientEnabled:      true,
			}),
			metadata.WithFilters(
				metadata.Filter("search", map[string]string{
					"id":                            "exact",
					"name":                          "partial",
					"alias":                         "start",
					"description":                   "word_start",
					"relatedDummy.name":             "exact",
					"relatedDummies":                "exact",
					"relatedDummies.name":           "start",
					"relatedDummy.thirdLevel.level": "exact",
					"embeddedDummy.dummyName":       "ipartial",
				}),
				metadata.Filter("order", map[string]string{
					"id":                      "",
					"name":                    "desc",
					"description":             "nulls_largest",
					"dummyDate":               "",
					"relatedDummy.name":       "",
					"relatedDummies.name":     "",
					"embeddedDummy.dummyName": "",
				}),
				metadata.Filter("range", map[string]string{"dummyFloat": "", "dummyPrice": ""}),
				metadata.Filter("numeric", map[string]string{"dummyFloat": "", "dummyPrice": ""}),
				metadata.Filter("date", map[string]string{"dummyDate": "", "embeddedDummy.dummyDate": ""}),
				metadata.Filter("boolean", map[string]string{"dummyBoolean": "", "embeddedDummy.dummyBoolean": ""}),
				metadata.Filter("exists", map[string]string{
					"alias":          "",
					"description":    "",
					"relatedDummy":   "",
					"dummyBoolean":   "",
					"relatedDummies": "",
				}),
			),
		),
		metadata.MustParse("RelatedDummy", RelatedDummy{},
			metadata.WithOperations(allOperations(metadata.Operation{
				Kind:                metadata.OpGet,
				NormalizationGroups: []string{"barcelona"},
			})...),
			metadata.WithFilters(
				metadata.Filter("search", map[string]string{"name": "exact", "thirdLevel.level": "exact"}),
				metadata.Filter("boolean", map[string]string{"dummyBoolean": ""}),
			),
		),
		metadata.MustParse("ThirdLevel", ThirdLevel{}),
	}
}

// allOperations lists every operation kind, replacing those given
func allOperations(overrides ...metadata.Operation) []metadata.Operation {
	kinds := []metadata.OperationKind{
		metadata.OpGetCollection, metadata.OpPost, metadata.OpGet,
		metadata.OpPut, metadata.OpPatch, metadata.OpDelete,
	}
	ops := make([]metadata.Operation, 0, len(kinds))
	for _, kind := range kinds {
		op := metadata.Operation{Kind: kind}
		for _, o := range overrides {
			if o.Kind == kind {
				op = o
			}
		}
		ops = append(ops, op)
	}
	return ops
}
