package fixtures

import (
	"github.com/platinummonkey/gantry/pkg/metadata"
)

// Chicken lives in a coop and is filtered by its coop IRI
type Chicken struct {
	ID          int64        `json:"id" orm:"id;generated"`
	Name        string       `json:"name" assert:"notBlank"`
	ChickenCoop *ChickenCoop `json:"chickenCoop" orm:"manyToOne=ChickenCoop"`
}

// ChickenCoop exposes its chickens below /chicken_coops/{id}/chickens
type ChickenCoop struct {
	ID       int64      `json:"id" orm:"id;generated"`
	Chickens []*Chicken `json:"chickens" orm:"oneToMany=Chicken;mappedBy=chickenCoop"`
}

// Company employs employees
type Company struct {
	ID        int64       `json:"id" orm:"id;generated"`
	Name      string      `json:"name" assert:"notBlank"`
	Employees []*Employee `json:"employees" orm:"oneToMany=Employee;mappedBy=company"`
}

// Employee is listed below /companies/{companyId}/employees
type Employee struct {
	ID      int64    `json:"id" orm:"id;generated"`
	Name    string   `json:"name" assert:"notBlank"`
	Company *Company `json:"company" orm:"manyToOne=Company"`
}

// TreeDummy is a self referencing tree
type TreeDummy struct {
	ID       int64        `json:"id" orm:"id;generated"`
	Name     string       `json:"name"`
	Parent   *TreeDummy   `json:"parent" orm:"manyToOne=TreeDummy"`
	Children []*TreeDummy `json:"children" orm:"oneToMany=TreeDummy;mappedBy=parent"`
}

// Animal is the root of a single table hierarchy
type Animal struct {
	ID   int64  `json:"id" orm:"id;generated"`
	Name string `json:"name" assert:"notBlank"`
}

// Cat is an Animal stored with the cat discriminator
type Cat struct {
	Animal
	Lives *int `json:"lives" assert:"range(min=0,max=9)"`
}

// Dog is an Animal stored with the dog discriminator
type Dog struct {
	Animal
	GoodBoy *bool `json:"goodBoy"`
}

func relationResources() []*metadata.Resource {
	return []*metadata.Resource{
		metadata.MustParse("Chicken", Chicken{},
			metadata.WithLink(metadata.Link{
				Path:       "/chicken_coops/{id}/chickens",
				FromClass:  "ChickenCoop",
				Property:   "chickenCoop",
				Identifier: "id",
			}),
			metadata.WithParameters(
				metadata.Parameter{Key: "chickenCoop", Filter: metadata.FilterRef{Type: "iri"}},
				metadata.Parameter{Key: "name", Filter: metadata.FilterRef{Type: "exact"}},
				metadata.Parameter{Key: "namePartial", Property: "name", Filter: metadata.FilterRef{Type: "partial"}},
				metadata.Parameter{
					Key:      "anyName",
					Property: "name",
					Filter:   metadata.FilterRef{Type: "or", Args: map[string]string{"filter": "exact"}},
				},
				metadata.Parameter{
					Key:        "order[:property]",
					Properties: []string{"id", "name"},
					Filter:     metadata.FilterRef{Type: "order"},
				},
			),
		),
		metadata.MustParse("ChickenCoop", ChickenCoop{}),
		metadata.MustParse("Company", Company{}),
		metadata.MustParse("Employee", Employee{},
			metadata.WithLink(metadata.Link{
				Path:       "/companies/{companyId}/employees",
				FromClass:  "Company",
				Property:   "company",
				Identifier: "companyId",
			}),
			metadata.WithFilters(metadata.Filter("search", map[string]string{"name": "ipartial", "company": "exact"})),
		),
		metadata.MustParse("TreeDummy", TreeDummy{},
			metadata.WithLink(metadata.Link{
				Path:       "/tree_dummies/{id}/children",
				FromClass:  "TreeDummy",
				Property:   "parent",
				Identifier: "id",
			}),
			metadata.WithFilters(
				metadata.Filter("exists", map[string]string{"parent": "", "children": ""}),
				metadata.Filter("search", map[string]string{"parent": "exact", "parent.name": "exact"}),
				metadata.Filter("order", map[string]string{"name": "", "parent.name": "nulls_smallest"}),
			),
		),
		metadata.MustParse("Animal", Animal{},
			metadata.WithFilters(
				metadata.Filter("search", map[string]string{"name": "istart"}),
				metadata.Filter("order", map[string]string{"name": ""}),
			),
		),
		metadata.MustParse("Cat", Cat{}, metadata.WithInheritance("Animal", "discr", "cat")),
		metadata.MustParse("Dog", Dog{},
			metadata.WithInheritance("Animal", "discr", "dog"),
			metadata.WithFilters(metadata.Filter("boolean", map[string]string{"goodBoy": ""})),
		),
	}
}
